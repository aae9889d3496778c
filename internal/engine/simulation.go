package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"

	"github.com/talgya/cattle-herd/internal/agents"
	"github.com/talgya/cattle-herd/internal/areas"
	"github.com/talgya/cattle-herd/internal/attributes"
	"github.com/talgya/cattle-herd/internal/behavior"
	"github.com/talgya/cattle-herd/internal/config"
	"github.com/talgya/cattle-herd/internal/herdtree"
	"github.com/talgya/cattle-herd/internal/world"
)

// ActorIDBase is the first harness id handed to players, threats and
// explosives, leaving everything below it to the herd spawner.
const ActorIDBase world.ActorID = 1 << 20

const maxEvents = 1000

// ErrUnknownAgent is returned by interventions that name no live animal.
var ErrUnknownAgent = errors.New("unknown agent")

// Simulation holds the herd, the influence field and the actor harness, and
// steps them in a fixed order.
type Simulation struct {
	mu sync.RWMutex

	Clock   *world.ManualClock
	Space   *world.Harness
	Nav     world.Nav
	Areas   *areas.Subsystem
	Effects *attributes.Pipeline
	Latent  *behavior.LatentTable
	Tree    *herdtree.Tree
	Spawner *agents.Spawner

	Herd     []*agents.Controller
	Events   []Event // Recent events, oldest first
	LastTick uint64  // Most recent tick processed
	Stats    SimStats

	env     *agents.Env
	ctrlCfg agents.ControllerConfig
	rng     *rand.Rand
	index   map[world.ActorID]*agents.Controller

	unsaved  []Event
	branch   map[world.ActorID]int
	panicked map[world.ActorID]bool
}

// Event is a notable occurrence in the herd.
type Event struct {
	Tick        uint64         `json:"tick"`
	Time        float64        `json:"time"`
	Agent       world.ActorID  `json:"agent,omitempty"`
	Category    string         `json:"category"` // "behavior", "panic", "lasso", "zone", "intervention"
	Description string         `json:"description"`
	Meta        map[string]any `json:"meta,omitempty"`
}

// SimStats tracks aggregate herd statistics, refreshed every tick.
type SimStats struct {
	Alive         int     `json:"alive"`
	Panicked      int     `json:"panicked"`
	Grazing       int     `json:"grazing"`
	Lassoed       int     `json:"lassoed"`
	AvgFear       float32 `json:"avg_fear"`
	MaxFear       float32 `json:"max_fear"`
	ActiveEffects int     `json:"active_effects"`
	Branches      [9]int  `json:"branches"` // Animals per root branch
}

// NewSimulation builds the herd, zones, guides and actors described by cfg.
func NewSimulation(cfg *config.Config) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("new simulation: %w", err)
	}
	tree, err := herdtree.Build(cfg.Tuning())
	if err != nil {
		return nil, fmt.Errorf("new simulation: %w", err)
	}

	s := &Simulation{
		Clock:    &world.ManualClock{},
		Space:    world.NewHarness(ActorIDBase),
		Nav:      cfg.BuildNav(),
		Effects:  attributes.NewPipeline(),
		Latent:   behavior.NewLatentTable(),
		Tree:     tree,
		ctrlCfg:  cfg.ControllerConfig(),
		rng:      rand.New(rand.NewSource(cfg.Seed + 700)),
		index:    make(map[world.ActorID]*agents.Controller),
		branch:   make(map[world.ActorID]int),
		panicked: make(map[world.ActorID]bool),
	}
	s.Areas = areas.NewSubsystem(s.Effects, cfg.Seed)
	s.Spawner = agents.NewSpawner(cfg.SpawnConfig(), s.Nav)
	s.env = &agents.Env{
		Nav:     s.Nav,
		Space:   s.Space,
		Clock:   s.Clock,
		Areas:   s.Areas,
		Effects: s.Effects,
		Latent:  s.Latent,
	}

	for i, zc := range cfg.Zones {
		z, err := zc.Build()
		if err != nil {
			return nil, fmt.Errorf("new simulation: zones[%d]: %w", i, err)
		}
		s.Areas.RegisterZone(z)
	}
	for _, gc := range cfg.Guides {
		s.Areas.RegisterGuide(gc.Build())
	}
	for i, ac := range cfg.Actors {
		a, err := ac.Build()
		if err != nil {
			return nil, fmt.Errorf("new simulation: actors[%d]: %w", i, err)
		}
		s.Space.Spawn(a)
	}
	for _, sc := range cfg.Spawn {
		for _, a := range s.Spawner.SpawnHerd(sc.Build(), s.env) {
			s.addAgent(a)
		}
	}

	s.updateStats()
	slog.Info("simulation ready",
		"animals", len(s.Herd),
		"zones", len(cfg.Zones),
		"guides", len(cfg.Guides),
		"actors", len(cfg.Actors),
	)
	return s, nil
}

// CurrentTick returns the most recently processed tick number.
func (s *Simulation) CurrentTick() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.LastTick
}

// Now returns the simulation clock in seconds.
func (s *Simulation) Now() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Clock.Now()
}

// Env returns the collaborators shared by every animal.
func (s *Simulation) Env() *agents.Env { return s.env }

// SpawnAgent places one animal at pos, bypassing spawn areas.
func (s *Simulation) SpawnAgent(pos world.Vec3) *agents.Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addAgent(s.Spawner.SpawnAt(pos, s.env))
}

func (s *Simulation) addAgent(a *agents.Agent) *agents.Controller {
	c := agents.NewController(a, s.Tree, s.ctrlCfg, s.rng)
	s.Herd = append(s.Herd, c)
	s.index[a.ID] = c
	s.Space.Put(world.Actor{ID: a.ID, Class: world.ClassAnimal, Position: a.Position})
	return c
}

// Controller returns the controller for animal id.
func (s *Simulation) Controller(id world.ActorID) (*agents.Controller, bool) {
	c, ok := s.index[id]
	return c, ok
}

// Agent returns animal id.
func (s *Simulation) Agent(id world.ActorID) (*agents.Agent, bool) {
	c, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return c.Agent, true
}

// Step advances the simulation by dt seconds.
func (s *Simulation) Step(dt float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Clock.Advance(dt)
	now := s.Clock.Now()
	s.LastTick++

	// Zone mutations requested between ticks land before anyone looks.
	s.Areas.Thaw()

	occupants := s.occupants()
	s.Areas.UpdateOverlaps(occupants)
	s.Areas.Tick(dt, now, occupants)
	if n := s.Effects.SweepOrphans(s.Areas.SourceAlive); n > 0 {
		slog.Debug("orphaned effects removed", "tick", s.LastTick, "count", n)
	}

	s.Areas.Freeze()
	for _, c := range s.Herd {
		c.Think(now, dt)
	}
	s.Areas.Thaw()

	s.Effects.Tick(dt)

	for _, c := range s.Herd {
		a := c.Agent
		if !a.Alive {
			continue
		}
		c.Move(dt)
		s.Space.Move(a.ID, a.Position, a.Velocity)
	}

	s.observe()
	s.updateStats()
}

func (s *Simulation) occupants() []areas.Occupant {
	out := make([]areas.Occupant, 0, len(s.Herd))
	for _, c := range s.Herd {
		if c.Agent.Alive {
			out = append(out, c.Agent)
		}
	}
	return out
}

// observe turns branch switches and panic transitions into events.
func (s *Simulation) observe() {
	for _, c := range s.Herd {
		a := c.Agent
		if !a.Alive {
			continue
		}

		b := c.Branch()
		prev, seen := s.branch[a.ID]
		s.branch[a.ID] = b
		if seen && prev != b {
			s.emit(Event{
				Agent:       a.ID,
				Category:    "behavior",
				Description: fmt.Sprintf("animal %d switched from %s to %s", a.ID, herdtree.BranchName(prev), herdtree.BranchName(b)),
				Meta:        map[string]any{"from": herdtree.BranchName(prev), "to": herdtree.BranchName(b)},
			})
		}

		p := a.IsPanicked()
		if p != s.panicked[a.ID] {
			s.panicked[a.ID] = p
			desc := fmt.Sprintf("animal %d calmed down", a.ID)
			if p {
				desc = fmt.Sprintf("animal %d panicked", a.ID)
			}
			s.emit(Event{
				Agent:       a.ID,
				Category:    "panic",
				Description: desc,
				Meta:        map[string]any{"fear": a.FearPercent()},
			})
		}
	}
}

// emit records an event. Caller holds the write lock.
func (s *Simulation) emit(e Event) {
	e.Tick = s.LastTick
	e.Time = s.Clock.Now()
	s.Events = append(s.Events, e)
	if len(s.Events) > maxEvents {
		s.Events = s.Events[len(s.Events)-maxEvents:]
	}
	s.unsaved = append(s.unsaved, e)
	if len(s.unsaved) > maxEvents {
		s.unsaved = s.unsaved[len(s.unsaved)-maxEvents:]
	}
	slog.Debug("event", "tick", e.Tick, "category", e.Category, "description", e.Description)
}

// DrainEvents returns the events recorded since the last drain.
func (s *Simulation) DrainEvents() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.unsaved
	s.unsaved = nil
	return out
}

// RecentEvents returns up to limit of the newest events, oldest first.
func (s *Simulation) RecentEvents(limit int) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := 0
	if limit > 0 && len(s.Events) > limit {
		start = len(s.Events) - limit
	}
	return append([]Event(nil), s.Events[start:]...)
}

func (s *Simulation) updateStats() {
	var st SimStats
	var totalFear float32
	for _, c := range s.Herd {
		a := c.Agent
		if !a.Alive {
			continue
		}
		st.Alive++
		f := a.FearPercent()
		totalFear += f
		st.MaxFear = max(st.MaxFear, f)
		if a.IsPanicked() {
			st.Panicked++
		}
		if a.HasTag(attributes.TagGrazing) {
			st.Grazing++
		}
		if a.Lassoed {
			st.Lassoed++
		}
		st.ActiveEffects += len(s.Effects.ActiveEffects(a.ID))
		if b := c.Branch(); b >= 0 && b < len(st.Branches) {
			st.Branches[b]++
		}
	}
	if st.Alive > 0 {
		st.AvgFear = totalFear / float32(st.Alive)
	}
	s.Stats = st
}
