package engine

import (
	"github.com/talgya/cattle-herd/internal/areas"
	"github.com/talgya/cattle-herd/internal/attributes"
	"github.com/talgya/cattle-herd/internal/herdtree"
	"github.com/talgya/cattle-herd/internal/world"
)

// Status is the headline view of the simulation.
type Status struct {
	Tick    uint64   `json:"tick"`
	Time    float64  `json:"time"`
	SimTime string   `json:"sim_time"`
	Animals int      `json:"animals"`
	Zones   int      `json:"zones"`
	Guides  int      `json:"guides"`
	Actors  int      `json:"actors"`
	Stats   SimStats `json:"stats"`
}

// AgentState is a per-animal summary, also used for telemetry samples.
type AgentState struct {
	ID       world.ActorID `json:"id"`
	Position world.Vec3    `json:"position"`
	Velocity world.Vec3    `json:"velocity"`
	Fear     float32       `json:"fear"`
	FearPct  float32       `json:"fear_pct"`
	Panicked bool          `json:"panicked"`
	Mode     string        `json:"mode"`
	Branch   string        `json:"branch"`
	Task     string        `json:"task,omitempty"`
	Area     string        `json:"area"`
	Lassoed  bool          `json:"lassoed,omitempty"`
	Alive    bool          `json:"alive"`
}

// AgentDetail is everything the inspector shows for one animal.
type AgentDetail struct {
	AgentState
	Home       world.Vec3                  `json:"home"`
	Yaw        float64                     `json:"yaw"`
	Attributes map[string]attributes.Value `json:"attributes"`
	Tags       []string                    `json:"tags"`
	Effects    []attributes.EffectInfo     `json:"effects"`
	Blackboard map[string]any              `json:"blackboard"`
	Path       string                      `json:"path,omitempty"`
	LastTask   string                      `json:"last_task,omitempty"`
	LastStatus string                      `json:"last_status,omitempty"`
	Primary    areas.Sample                `json:"primary_area"`
	Flow       world.Vec3                  `json:"flow"`
	Chews      uint32                      `json:"chews"`

	FearDecayMultiplier float32 `json:"fear_decay_multiplier"`
	FearDecayBlocked    bool    `json:"fear_decay_blocked"`
}

// ZoneView describes a registered zone or flow guide.
type ZoneView struct {
	ID        uint32          `json:"id"`
	Name      string          `json:"name,omitempty"`
	Kind      string          `json:"kind"`
	Shape     string          `json:"shape,omitempty"`
	Center    world.Vec3      `json:"center"`
	Extent    world.Vec3      `json:"extent,omitempty"`
	Points    []world.Vec3    `json:"points,omitempty"`
	Priority  int             `json:"priority"`
	FleeMode  string          `json:"flee_mode,omitempty"`
	Occupants []world.ActorID `json:"occupants,omitempty"`
}

// Status returns the headline view.
func (s *Simulation) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	actors := 0
	for _, a := range s.Space.All() {
		if a.Class != world.ClassAnimal {
			actors++
		}
	}
	return Status{
		Tick:    s.LastTick,
		Time:    s.Clock.Now(),
		SimTime: SimTime(s.LastTick, s.Clock.Dt()),
		Animals: len(s.Herd),
		Zones:   len(s.Areas.Zones()),
		Guides:  len(s.Areas.Guides()),
		Actors:  actors,
		Stats:   s.Stats,
	}
}

// AgentStates returns a summary of every animal in id order.
func (s *Simulation) AgentStates() []AgentState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]AgentState, 0, len(s.Herd))
	for _, c := range s.Herd {
		out = append(out, s.agentState(c.Agent.ID))
	}
	return out
}

// AgentDetail returns the inspector view of animal id.
func (s *Simulation) AgentDetail(id world.ActorID) (AgentDetail, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.index[id]
	if !ok {
		return AgentDetail{}, false
	}
	a := c.Agent
	d := AgentDetail{
		AgentState: s.agentState(id),
		Home:       a.Home,
		Yaw:        a.Yaw,
		Attributes: a.Attributes.Snapshot(),
		Tags:       a.Tags.List(),
		Effects:    s.Effects.ActiveEffects(id),
		Blackboard: a.Board.Snapshot(),
		Path:       c.ActivePath(),
		Primary:    a.Primary,
		Flow:       a.Flow,
		Chews:      a.Chews,
	}
	d.FearDecayMultiplier, d.FearDecayBlocked = s.Effects.DecayMultiplier(id)
	if name, st := c.LastTask(); name != "" {
		d.LastTask = name
		d.LastStatus = st.String()
	}
	return d, true
}

func (s *Simulation) agentState(id world.ActorID) AgentState {
	c := s.index[id]
	a := c.Agent
	return AgentState{
		ID:       a.ID,
		Position: a.Position,
		Velocity: a.Velocity,
		Fear:     a.Attributes.Get(attributes.Fear),
		FearPct:  a.FearPercent(),
		Panicked: a.IsPanicked(),
		Mode:     a.Movement.Mode().String(),
		Branch:   herdtree.BranchName(c.Branch()),
		Task:     c.ActiveTask(),
		Area:     a.Primary.Kind.String(),
		Lassoed:  a.Lassoed,
		Alive:    a.Alive,
	}
}

// Zones returns every zone followed by every flow guide.
func (s *Simulation) Zones() []ZoneView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	zones := s.Areas.Zones()
	guides := s.Areas.Guides()
	out := make([]ZoneView, 0, len(zones)+len(guides))
	for _, z := range zones {
		v := ZoneView{
			ID:        uint32(z.ID),
			Name:      z.Name,
			Kind:      z.Kind.String(),
			Shape:     z.Shape.Kind.String(),
			Center:    z.Shape.Centroid(),
			Extent:    z.Shape.Extent,
			Points:    z.Shape.Points,
			Priority:  z.Priority + z.Kind.Value(),
			Occupants: s.Areas.Occupants(z.ID),
		}
		if z.Kind == areas.KindPanic {
			v.FleeMode = z.FleeMode.String()
		}
		out = append(out, v)
	}
	for _, g := range guides {
		v := ZoneView{
			ID:       uint32(g.ID),
			Name:     g.Name,
			Kind:     areas.KindFlowGuide.String(),
			Points:   g.Points,
			Priority: g.Priority + areas.KindFlowGuide.Value(),
		}
		if len(g.Points) > 0 {
			v.Center = g.Points[0]
		}
		if g.Bounded {
			v.Shape = g.Bounds.Kind.String()
			v.Center = g.Bounds.Center
			v.Extent = g.Bounds.Extent
		}
		out = append(out, v)
	}
	return out
}
