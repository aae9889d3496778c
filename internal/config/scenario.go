package config

import (
	"fmt"

	"github.com/talgya/cattle-herd/internal/agents"
	"github.com/talgya/cattle-herd/internal/areas"
	"github.com/talgya/cattle-herd/internal/herdtree"
	"github.com/talgya/cattle-herd/internal/world"
)

// Point is a position written as [x, y, z].
type Point [3]float64

// Vec converts the point.
func (p Point) Vec() world.Vec3 { return world.V(p[0], p[1], p[2]) }

func vecs(ps []Point) []world.Vec3 {
	out := make([]world.Vec3, len(ps))
	for i, p := range ps {
		out[i] = p.Vec()
	}
	return out
}

// SpawnArea places a group of animals.
type SpawnArea struct {
	Shape       string  `yaml:"shape"` // box or spline
	Center      Point   `yaml:"center"`
	Extent      Point   `yaml:"extent"`
	Yaw         float64 `yaml:"yaw"`
	Points      []Point `yaml:"points"`
	Count       int     `yaml:"count"`
	MinDistance float64 `yaml:"min_distance"`
	MaxAttempts int     `yaml:"max_attempts"`
}

// Build converts the area for the spawner.
func (s SpawnArea) Build() agents.SpawnArea {
	var shape areas.Shape
	if s.Shape == "spline" {
		shape = areas.Loop(500, vecs(s.Points)...)
	} else {
		shape = areas.Box(s.Center.Vec(), s.Extent.Vec(), s.Yaw)
	}
	return agents.SpawnArea{
		Shape:       shape,
		Count:       s.Count,
		MinDistance: s.MinDistance,
		MaxAttempts: s.MaxAttempts,
	}
}

// Zone is an influence zone in a scenario. Optional fields override the
// stock tuning of the zone's kind.
type Zone struct {
	Name     string  `yaml:"name"`
	Kind     string  `yaml:"kind"`  // graze, avoid or panic
	Shape    string  `yaml:"shape"` // box or spline
	Center   Point   `yaml:"center"`
	Extent   Point   `yaml:"extent"`
	Yaw      float64 `yaml:"yaw"`
	Points   []Point `yaml:"points"`
	Height   float64 `yaml:"height"`
	Priority int     `yaml:"priority"`

	EdgeFalloff         *float64 `yaml:"edge_falloff"`
	SpeedModifier       *float32 `yaml:"speed_modifier"`
	FearDecayMultiplier *float32 `yaml:"fear_decay_multiplier"`
	AvoidanceRadius     *float64 `yaml:"avoidance_radius"`
	FearPerSecond       *float32 `yaml:"fear_per_second"`
	FleeStrength        *float64 `yaml:"flee_strength"`
	FleeMode            string   `yaml:"flee_mode"`
}

// Build converts the zone. Degenerate shapes are not an error here; the
// area subsystem reports them when the zone is registered.
func (z Zone) Build() (areas.Zone, error) {
	kind, err := areas.ParseKind(z.Kind)
	if err != nil {
		return areas.Zone{}, err
	}

	var shape areas.Shape
	switch z.Shape {
	case "", "box":
		shape = areas.Box(z.Center.Vec(), z.Extent.Vec(), z.Yaw)
	case "spline":
		h := z.Height
		if h <= 0 {
			h = 500
		}
		shape = areas.Loop(h, vecs(z.Points)...)
	default:
		return areas.Zone{}, fmt.Errorf("unknown shape %q", z.Shape)
	}

	var out areas.Zone
	switch kind {
	case areas.KindGraze:
		out = areas.NewGrazeZone(shape)
	case areas.KindAvoid:
		out = areas.NewAvoidZone(shape)
	case areas.KindPanic:
		out = areas.NewPanicZone(shape)
		mode, err := areas.ParseFleeMode(z.FleeMode)
		if err != nil {
			return areas.Zone{}, err
		}
		out.FleeMode = mode
	default:
		return areas.Zone{}, fmt.Errorf("kind %q is not a zone kind", z.Kind)
	}

	out.Name = z.Name
	out.Priority = z.Priority
	if z.Height > 0 {
		out.Height = z.Height
	}
	if z.EdgeFalloff != nil {
		out.EdgeFalloff = *z.EdgeFalloff
	}
	if z.SpeedModifier != nil {
		out.SpeedModifier = *z.SpeedModifier
	}
	if z.FearDecayMultiplier != nil {
		out.FearDecayMultiplier = *z.FearDecayMultiplier
	}
	if z.AvoidanceRadius != nil {
		out.AvoidanceRadius = *z.AvoidanceRadius
	}
	if z.FearPerSecond != nil {
		out.FearPerSecond = *z.FearPerSecond
	}
	if z.FleeStrength != nil {
		out.FleeStrength = *z.FleeStrength
	}
	return out, nil
}

// Guide is a flow guide in a scenario.
type Guide struct {
	Name          string   `yaml:"name"`
	Points        []Point  `yaml:"points"`
	Radius        float64  `yaml:"radius"`
	Priority      int      `yaml:"priority"`
	PullToPath    bool     `yaml:"pull_to_path"`
	PullStrength  *float64 `yaml:"pull_strength"`
	CheckInterval float64  `yaml:"check_interval"`

	// Bounded guides weight by position inside the box.
	Bounded      bool     `yaml:"bounded"`
	Center       Point    `yaml:"center"`
	Extent       Point    `yaml:"extent"`
	Yaw          float64  `yaml:"yaw"`
	FlowStrength *float64 `yaml:"flow_strength"`
}

// Build converts the guide.
func (g Guide) Build() areas.FlowGuide {
	var out areas.FlowGuide
	if g.Bounded {
		out = areas.NewBoundedFlowGuide(areas.Box(g.Center.Vec(), g.Extent.Vec(), g.Yaw), vecs(g.Points)...)
	} else {
		out = areas.NewFlowGuide(vecs(g.Points)...)
	}
	out.Name = g.Name
	out.Priority = g.Priority
	out.PullToPath = g.PullToPath
	if g.Radius > 0 {
		out.InfluenceRadius = g.Radius
	}
	if g.PullStrength != nil {
		out.PullStrength = *g.PullStrength
	}
	if g.FlowStrength != nil {
		out.FlowStrength = *g.FlowStrength
	}
	if g.CheckInterval > 0 {
		out.CheckInterval = g.CheckInterval
	}
	return out
}

// Actor is a non-animal actor placed in the harness: a player, a threat or
// an explosive.
type Actor struct {
	Class        string   `yaml:"class"`
	Position     Point    `yaml:"position"`
	Trumpet      string   `yaml:"trumpet"`
	HasGun       bool     `yaml:"has_gun"`
	LastFireTime *float64 `yaml:"last_fire_time"` // Unset = never fired
	Fuse         string   `yaml:"fuse"`
}

// Build converts the actor.
func (a Actor) Build() (world.Actor, error) {
	class, err := world.ParseClass(a.Class)
	if err != nil {
		return world.Actor{}, err
	}
	if class == world.ClassAnimal {
		return world.Actor{}, fmt.Errorf("animals are spawned, not placed")
	}
	trumpet, err := world.ParseTrumpet(a.Trumpet)
	if err != nil {
		return world.Actor{}, err
	}
	fuse, err := world.ParseFuse(a.Fuse)
	if err != nil {
		return world.Actor{}, err
	}
	out := world.Actor{
		Class:    class,
		Position: a.Position.Vec(),
		Trumpet:  trumpet,
		HasGun:   a.HasGun,
		Fuse:     fuse,
	}
	if a.LastFireTime != nil {
		out.HasFired = true
		out.LastFireTime = *a.LastFireTime
	}
	return out, nil
}

// Tuning returns the behavior tree tuning.
func (c *Config) Tuning() herdtree.Tuning {
	t := herdtree.DefaultTuning()

	t.Herd.Radius = c.Herd.Radius
	t.Herd.SeparationDistance = c.Herd.SeparationDistance
	t.Herd.CohesionWeight = c.Herd.CohesionWeight
	t.Herd.AlignmentWeight = c.Herd.AlignmentWeight
	t.Herd.SeparationWeight = c.Herd.SeparationWeight

	t.Threats.DetectionRadius = c.Threats.DetectionRadius
	t.Threats.FearStartDistance = c.Threats.FearStartDistance
	t.Threats.MaxFearPerSecond = c.Threats.MaxFearPerSecond
	t.Threats.PlayersAreThreats = c.Threats.PlayersAreThreats
	t.FleeThreatDistance = c.Threats.FleeDistance
	t.PanicZoneFlee = c.Threats.PanicZoneFlee

	pa := c.PlayerActions
	t.PlayerActions.ExplosiveRadius = pa.ExplosiveRadius
	t.PlayerActions.TrumpetRadius = pa.TrumpetRadius
	t.PlayerActions.GunshotRadius = pa.GunshotRadius
	t.PlayerActions.GunshotMemory = pa.GunshotMemory
	t.PlayerActions.LureCalmPerPulse = pa.LureCalmPerPulse
	t.PlayerActions.ScareFearPerPulse = pa.ScareFearPerPulse
	t.PlayerActions.GunshotFear = pa.GunshotFear
	t.CuriosityMaxFear = pa.CuriosityMaxFear
	t.LookDuration = pa.LookDuration

	t.Flee.Distance = c.Flee.Distance
	t.Flee.AngleVariation = c.Flee.AngleVariation
	t.Flee.UseNavigation = c.Wander.UseNavigation
	t.FleeActor.Distance = c.Flee.ActorDistance
	t.FleeActor.AngleVariation = c.Flee.ActorAngleVariation
	t.FleeActor.UseNavigation = c.Wander.UseNavigation
	t.FollowFlow.UseNavigation = c.Wander.UseNavigation

	t.Wander.MinDistance = c.Wander.MinDistance
	t.Wander.UseNavigation = c.Wander.UseNavigation
	t.WanderRetryDelay = c.Wander.RetryDelay

	t.LureThreshold = c.Lure.AttractionThreshold
	t.FollowActor.AcceptableRadius = c.Lure.AcceptableRadius

	t.Graze.MinDuration = c.Graze.MinDuration
	t.Graze.MaxDuration = c.Graze.MaxDuration
	t.Graze.AnimationChance = c.Graze.AnimationChance

	t.MoveTo.AcceptanceRadius = c.Move.AcceptanceRadius
	t.MoveTo.Timeout = c.Move.Timeout
	return t
}

// ControllerConfig returns the per-agent controller settings.
func (c *Config) ControllerConfig() agents.ControllerConfig {
	return agents.ControllerConfig{
		WanderRadius:       c.Wander.Radius,
		AreaUpdateInterval: c.Agent.AreaUpdateInterval,
		LassoFear:          c.Agent.LassoFear,
	}
}

// SpawnConfig returns the animal template.
func (c *Config) SpawnConfig() agents.SpawnConfig {
	return agents.SpawnConfig{
		Seed:       c.Seed,
		Attributes: c.Attributes,
		Movement:   c.Movement,
	}
}

// BuildNav builds the navigation stub.
func (c *Config) BuildNav() world.Nav {
	if c.Nav == "plain" {
		return world.NewOpenPlain(c.Seed)
	}
	p := c.Pasture
	p.Seed = c.Seed
	return world.GeneratePasture(p)
}
