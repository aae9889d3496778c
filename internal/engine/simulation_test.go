package engine

import (
	"errors"
	"math"
	"testing"

	"github.com/talgya/cattle-herd/internal/areas"
	"github.com/talgya/cattle-herd/internal/attributes"
	"github.com/talgya/cattle-herd/internal/blackboard"
	"github.com/talgya/cattle-herd/internal/config"
	"github.com/talgya/cattle-herd/internal/herdtree"
	"github.com/talgya/cattle-herd/internal/steering"
	"github.com/talgya/cattle-herd/internal/world"
)

const dt = 0.1

func newTestSim(t *testing.T, edit func(cfg *config.Config)) *Simulation {
	t.Helper()
	cfg := config.Default()
	cfg.Seed = 7
	cfg.Nav = "plain"
	if edit != nil {
		edit(cfg)
	}
	s, err := NewSimulation(cfg)
	if err != nil {
		t.Fatalf("new simulation: %v", err)
	}
	return s
}

func stepN(s *Simulation, n int) {
	for i := 0; i < n; i++ {
		s.Step(dt)
	}
}

func near(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func target(t *testing.T, b *blackboard.Blackboard) world.Vec3 {
	t.Helper()
	p, ok := b.Vector(blackboard.TargetLocation)
	if !ok {
		t.Fatalf("TargetLocation not set")
	}
	return p
}

func TestScenario_ThreatInducedFear(t *testing.T) {
	s := newTestSim(t, func(cfg *config.Config) {
		cfg.Attributes.FearDecayRate = 0
		cfg.Wander.Radius = 0 // keep the animal at the origin
	})
	c := s.SpawnAgent(world.Vec3{})
	threat := s.SpawnActor(world.Actor{Class: world.ClassThreat, Position: world.V(800, 0, 0)})
	a := c.Agent

	s.Step(dt)
	if id, ok := a.Board.Actor(blackboard.NearestThreat); !ok || id != threat {
		t.Fatalf("nearest threat: got %d (%v), want %d", id, ok, threat)
	}
	if d, _ := a.Board.Float(blackboard.ThreatDistance); !near(float64(d), 800, 1) {
		t.Fatalf("threat distance: got %g, want 800", d)
	}

	stepN(s, 19)
	// 4 fear/s over the sensed part of 2 s.
	if fear := a.Attributes.Get(attributes.Fear); fear < 6 || fear > 8.5 {
		t.Fatalf("fear after 2s: got %g, want about 8", fear)
	}
	if a.IsPanicked() {
		t.Fatalf("animal should not panic at 8%% fear")
	}
	if c.Branch() != herdtree.BranchWander {
		t.Fatalf("branch: got %s, want wander", herdtree.BranchName(c.Branch()))
	}
}

func TestScenario_ThreatFearDecays(t *testing.T) {
	s := newTestSim(t, func(cfg *config.Config) { cfg.Wander.Radius = 0 })
	c := s.SpawnAgent(world.Vec3{})
	s.SpawnActor(world.Actor{Class: world.ClassThreat, Position: world.V(800, 0, 0)})

	stepN(s, 20)
	// Decay of 5/s outpaces 4/s of threat fear.
	if fear := c.Agent.Attributes.Get(attributes.Fear); fear > 2 {
		t.Fatalf("fear should stay low with decay, got %g", fear)
	}
}

func TestScenario_LureOnceCalm(t *testing.T) {
	s := newTestSim(t, func(cfg *config.Config) {
		cfg.Attributes.Fear = 20
		cfg.Attributes.LureSusceptibility = 1
	})
	c := s.SpawnAgent(world.Vec3{})
	player := s.SpawnActor(world.Actor{Class: world.ClassPlayer, Position: world.V(500, 0, 0), Trumpet: world.TrumpetLure})
	a := c.Agent

	s.Step(dt)
	if fear := a.Attributes.Get(attributes.Fear); fear != 0 {
		t.Fatalf("fear after one lure pulse: got %g, want 0", fear)
	}
	if id, _ := a.Board.Actor(blackboard.LurerActor); id != player {
		t.Fatalf("lurer: got %d, want %d", id, player)
	}
	if c.Branch() != herdtree.BranchLured {
		t.Fatalf("branch: got %s, want lured", herdtree.BranchName(c.Branch()))
	}
	p := target(t, a.Board)
	if p.X <= 0 || p.X >= 500 || !near(p.Y, 0, 1e-6) {
		t.Fatalf("target should sit between animal and player, got %v", p)
	}
	if !near(p.X, 350, 1) {
		t.Fatalf("target: got %v, want (350,0,0)", p)
	}
}

func TestScenario_FlowGuideOverridesWander(t *testing.T) {
	s := newTestSim(t, func(cfg *config.Config) {
		cfg.Guides = []config.Guide{{
			Points: []config.Point{{-1000, 0, 0}, {1000, 0, 0}},
			Radius: 500,
		}}
	})
	c := s.SpawnAgent(world.V(0, 200, 0))
	a := c.Agent

	s.Step(dt)
	flow, ok := a.Board.Vector(blackboard.FlowDirection)
	if !ok || !near(flow.X, 1, 0.01) || !near(flow.Y, 0, 0.01) {
		t.Fatalf("flow direction: got %v, want (1,0,0)", flow)
	}
	if c.Branch() != herdtree.BranchFlow {
		t.Fatalf("branch: got %s, want flow", herdtree.BranchName(c.Branch()))
	}
	if p := target(t, a.Board); !near(p.X, 300, 1) || !near(p.Y, 200, 1) {
		t.Fatalf("target: got %v, want (300,200,0)", p)
	}
}

func TestScenario_PanicZoneFlees(t *testing.T) {
	s := newTestSim(t, func(cfg *config.Config) {
		cfg.Zones = []config.Zone{{
			Kind:     "panic",
			Extent:   config.Point{300, 300, 250},
			Priority: 100,
		}}
	})
	start := world.V(100, 0, 0)
	c := s.SpawnAgent(start)
	a := c.Agent

	smp := s.Areas.PrimaryAreaAt(start)
	if smp.Kind != areas.KindPanic || smp.Direction.X < 0.99 {
		t.Fatalf("primary area: got %v, want panic heading +X", smp)
	}

	s.Step(dt)
	if c.Branch() != herdtree.BranchFlee {
		t.Fatalf("branch: got %s, want flee", herdtree.BranchName(c.Branch()))
	}
	if a.Movement.Mode() != steering.Panic {
		t.Fatalf("mode: got %v, want panic", a.Movement.Mode())
	}
	if !a.HasTag(attributes.TagThreatened) {
		t.Fatalf("panic zone effect should tag the animal")
	}
	p := target(t, a.Board)
	off := p.Sub(start)
	if !near(off.Len(), 500, 1) {
		t.Fatalf("flee distance: got %g, want 500", off.Len())
	}
	// 15 degrees either side of +X.
	if off.X < 500*math.Cos(15*math.Pi/180)-1 {
		t.Fatalf("flee heading too far from +X: %v", off)
	}

	s.Step(dt)
	if fear := a.Attributes.Get(attributes.Fear); fear <= 0 {
		t.Fatalf("panic zone should add fear, got %g", fear)
	}
}

func TestScenario_HerdCohesion(t *testing.T) {
	s := newTestSim(t, nil)
	positions := []world.Vec3{
		world.V(0, 0, 0), world.V(100, 0, 0), world.V(-100, 0, 0),
		world.V(0, 100, 0), world.V(0, -100, 0),
	}
	centre := s.SpawnAgent(positions[0])
	edge := s.SpawnAgent(positions[1])
	for _, p := range positions[2:] {
		s.SpawnAgent(p)
	}

	s.Step(dt)
	if n, _ := centre.Agent.Board.Int(blackboard.HerdCount); n != 4 {
		t.Fatalf("centre herd count: got %d, want 4", n)
	}
	if dir, _ := centre.Agent.Board.Vector(blackboard.HerdDirection); !dir.IsNearlyZero() {
		t.Fatalf("centre forces should balance, got %v", dir)
	}
	if dir, _ := edge.Agent.Board.Vector(blackboard.HerdDirection); dir.X >= 0 {
		t.Fatalf("edge animal should head toward the centroid, got %v", dir)
	}
}

func TestScenario_EffectRemovedOnExit(t *testing.T) {
	s := newTestSim(t, func(cfg *config.Config) {
		cfg.Zones = []config.Zone{{Kind: "graze", Extent: config.Point{1000, 1000, 250}}}
	})
	c := s.SpawnAgent(world.Vec3{})
	a := c.Agent

	s.Step(dt)
	if !a.HasTag(attributes.TagGrazing) {
		t.Fatalf("animal inside a graze zone should be tagged grazing")
	}
	if c.Branch() != herdtree.BranchGraze {
		t.Fatalf("branch: got %s, want graze", herdtree.BranchName(c.Branch()))
	}

	if err := s.Teleport(a.ID, world.V(5000, 0, 0)); err != nil {
		t.Fatalf("teleport: %v", err)
	}
	if task := c.ActiveTask(); task != "" || c.Branch() != -1 {
		t.Fatalf("teleport should rewind the tree, active %q branch %d", task, c.Branch())
	}
	s.Step(dt)
	if c.Branch() == herdtree.BranchGraze {
		t.Fatalf("still on the graze branch after leaving the zone")
	}
	if a.HasTag(attributes.TagGrazing) {
		t.Fatalf("grazing tag should be gone one tick after leaving")
	}
	if fx := s.Effects.ActiveEffects(a.ID); len(fx) != 0 {
		t.Fatalf("effects left after exit: %v", fx)
	}
	if occ := s.Areas.Occupants(1); len(occ) != 0 {
		t.Fatalf("zone still lists occupants: %v", occ)
	}
}

func TestNewSimulation_SpawnsFromConfig(t *testing.T) {
	s := newTestSim(t, func(cfg *config.Config) {
		cfg.Spawn = []config.SpawnArea{{
			Shape:       "box",
			Extent:      config.Point{1000, 1000, 100},
			Count:       5,
			MinDistance: 200,
		}}
		cfg.Actors = []config.Actor{{Class: "threat", Position: config.Point{3000, 0, 0}}}
		cfg.Zones = []config.Zone{{Kind: "avoid", Center: config.Point{2000, 0, 0}, Extent: config.Point{200, 200, 250}}}
	})

	if len(s.Herd) != 5 {
		t.Fatalf("herd size: got %d, want 5", len(s.Herd))
	}
	for i, c := range s.Herd {
		if c.Agent.ID != world.ActorID(i+1) {
			t.Fatalf("animal %d has id %d", i, c.Agent.ID)
		}
	}
	if _, ok := s.Space.Actor(ActorIDBase); !ok {
		t.Fatalf("configured threat should get the first actor id")
	}
	st := s.Status()
	if st.Animals != 5 || st.Actors != 1 || st.Zones != 1 {
		t.Fatalf("status: %+v", st)
	}
	if st.Stats.Alive != 5 {
		t.Fatalf("stats alive: got %d, want 5", st.Stats.Alive)
	}
}

func TestNewSimulation_RejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Tick.DT = 0
	if _, err := NewSimulation(cfg); !errors.Is(err, config.ErrInvalidConfig) {
		t.Fatalf("got %v, want ErrInvalidConfig", err)
	}
}

func TestSimulation_LassoEventsAndStats(t *testing.T) {
	s := newTestSim(t, nil)
	c := s.SpawnAgent(world.Vec3{})
	id := c.Agent.ID

	s.Step(dt)
	if c.Branch() != herdtree.BranchWander {
		t.Fatalf("idle animal should wander, got %s", herdtree.BranchName(c.Branch()))
	}
	s.DrainEvents()

	if err := s.Lasso(id, ActorIDBase); err != nil {
		t.Fatalf("lasso: %v", err)
	}
	s.Step(dt)
	if c.Branch() != herdtree.BranchLassoed {
		t.Fatalf("lassoed animal should idle, got %s", herdtree.BranchName(c.Branch()))
	}
	if s.Stats.Lassoed != 1 {
		t.Fatalf("stats lassoed: got %d", s.Stats.Lassoed)
	}

	events := s.DrainEvents()
	var sawLasso, sawSwitch bool
	for _, e := range events {
		switch e.Category {
		case "lasso":
			sawLasso = true
		case "behavior":
			sawSwitch = e.Agent == id && e.Meta["to"] == "lassoed"
		}
	}
	if !sawLasso || !sawSwitch {
		t.Fatalf("events: %+v", events)
	}
	if rest := s.DrainEvents(); len(rest) != 0 {
		t.Fatalf("drain should empty the queue, got %d", len(rest))
	}
	if recent := s.RecentEvents(1); len(recent) != 1 || recent[0].Category != "behavior" {
		t.Fatalf("recent events: %+v", recent)
	}

	if err := s.ReleaseLasso(id); err != nil {
		t.Fatalf("release: %v", err)
	}
	if c.Agent.Lassoed {
		t.Fatalf("animal should be free")
	}
}

func TestSimulation_InterventionsRejectUnknownAgent(t *testing.T) {
	s := newTestSim(t, nil)
	if err := s.AddFear(99, 10); !errors.Is(err, ErrUnknownAgent) {
		t.Fatalf("add fear: got %v", err)
	}
	if err := s.ApplyImpulse(99, world.V(1, 0, 0), true); !errors.Is(err, ErrUnknownAgent) {
		t.Fatalf("impulse: got %v", err)
	}

	c := s.SpawnAgent(world.Vec3{})
	if err := s.KillAgent(c.Agent.ID); err != nil {
		t.Fatalf("kill: %v", err)
	}
	if err := s.AddFear(c.Agent.ID, 10); !errors.Is(err, ErrUnknownAgent) {
		t.Fatalf("dead animals take no interventions, got %v", err)
	}
	s.Step(dt)
	if s.Stats.Alive != 0 {
		t.Fatalf("alive: got %d, want 0", s.Stats.Alive)
	}
}

func TestSimulation_ImpulseMovesAnimal(t *testing.T) {
	s := newTestSim(t, func(cfg *config.Config) { cfg.Wander.Radius = 0 })
	c := s.SpawnAgent(world.Vec3{})

	if err := s.ApplyImpulse(c.Agent.ID, world.V(500, 0, 0), true); err != nil {
		t.Fatalf("impulse: %v", err)
	}
	s.Step(dt)
	if c.Agent.Position.X <= 0 {
		t.Fatalf("impulse should push the animal along +X, at %v", c.Agent.Position)
	}
	got, _ := s.Space.Actor(c.Agent.ID)
	if got.Position != c.Agent.Position {
		t.Fatalf("harness out of sync: %v vs %v", got.Position, c.Agent.Position)
	}
}

func TestSimulation_Views(t *testing.T) {
	s := newTestSim(t, func(cfg *config.Config) {
		cfg.Zones = []config.Zone{{Name: "meadow", Kind: "graze", Extent: config.Point{1000, 1000, 250}}}
		cfg.Guides = []config.Guide{{Name: "lane", Points: []config.Point{{5000, 0, 0}, {7000, 0, 0}}}}
	})
	c := s.SpawnAgent(world.Vec3{})
	s.Step(dt)

	d, ok := s.AgentDetail(c.Agent.ID)
	if !ok {
		t.Fatalf("agent detail missing")
	}
	if _, ok := d.Attributes["Fear"]; !ok {
		t.Fatalf("attributes: %v", d.Attributes)
	}
	if _, ok := d.Blackboard["HomeLocation"]; !ok {
		t.Fatalf("blackboard: %v", d.Blackboard)
	}
	if d.Branch != "graze" || d.Area != "graze" {
		t.Fatalf("detail branch %q area %q", d.Branch, d.Area)
	}
	if _, ok := s.AgentDetail(404); ok {
		t.Fatalf("unknown animal should have no detail")
	}

	zones := s.Zones()
	if len(zones) != 2 || zones[0].Name != "meadow" || zones[1].Kind != areas.KindFlowGuide.String() {
		t.Fatalf("zones: %+v", zones)
	}
	if len(zones[0].Occupants) != 1 || zones[0].Occupants[0] != c.Agent.ID {
		t.Fatalf("occupants: %v", zones[0].Occupants)
	}

	states := s.AgentStates()
	if len(states) != 1 || states[0].ID != c.Agent.ID || !states[0].Alive {
		t.Fatalf("states: %+v", states)
	}
}

func TestAgentDetailFearDecay(t *testing.T) {
	tests := []struct {
		name        string
		zone        config.Zone
		wantMult    float32
		wantBlocked bool
	}{
		{"open pasture", config.Zone{Kind: "avoid", Center: config.Point{9000, 0, 0}, Extent: config.Point{100, 100, 100}}, 1, false},
		{"graze", config.Zone{Kind: "graze", Extent: config.Point{1000, 1000, 250}}, 2, false},
		{"panic", config.Zone{Kind: "panic", Extent: config.Point{1000, 1000, 250}}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSim(t, func(cfg *config.Config) {
				cfg.Zones = []config.Zone{tt.zone}
			})
			c := s.SpawnAgent(world.Vec3{})
			s.Step(dt)

			d, ok := s.AgentDetail(c.Agent.ID)
			if !ok {
				t.Fatalf("agent detail missing")
			}
			if d.FearDecayMultiplier != tt.wantMult || d.FearDecayBlocked != tt.wantBlocked {
				t.Fatalf("decay: got %g blocked=%v, want %g blocked=%v",
					d.FearDecayMultiplier, d.FearDecayBlocked, tt.wantMult, tt.wantBlocked)
			}
		})
	}
}

func TestSimulation_OneRootBranchPerTick(t *testing.T) {
	s := newTestSim(t, func(cfg *config.Config) {
		cfg.Zones = []config.Zone{{Kind: "graze", Extent: config.Point{1000, 1000, 250}}}
	})
	c := s.SpawnAgent(world.V(5000, 0, 0))
	id := c.Agent.ID

	steps := []struct {
		name   string
		action func() error
		want   int
	}{
		{"idle", nil, herdtree.BranchWander},
		{"lasso", func() error { return s.Lasso(id, ActorIDBase) }, herdtree.BranchLassoed},
		{"held", nil, herdtree.BranchLassoed},
		{"release", func() error { return s.ReleaseLasso(id) }, herdtree.BranchWander},
		{"into meadow", func() error { return s.Teleport(id, world.Vec3{}) }, herdtree.BranchGraze},
		{"grazing", nil, herdtree.BranchGraze},
		{"lasso in meadow", func() error { return s.Lasso(id, ActorIDBase) }, herdtree.BranchLassoed},
		{"release in meadow", func() error { return s.ReleaseLasso(id) }, herdtree.BranchGraze},
	}
	for _, st := range steps {
		if st.action != nil {
			if err := st.action(); err != nil {
				t.Fatalf("%s: %v", st.name, err)
			}
		}
		s.Step(dt)
		if c.Branch() != st.want {
			t.Fatalf("%s: branch %s, want %s", st.name, herdtree.BranchName(c.Branch()), herdtree.BranchName(st.want))
		}
	}
}
