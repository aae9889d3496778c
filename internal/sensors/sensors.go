// Package sensors holds the behavior tree services that read the world and
// write an agent's blackboard: its own state, nearby threats, player actions
// and herd neighbours.
package sensors

import (
	"math"

	"github.com/talgya/cattle-herd/internal/agents"
	"github.com/talgya/cattle-herd/internal/attributes"
	"github.com/talgya/cattle-herd/internal/behavior"
	"github.com/talgya/cattle-herd/internal/blackboard"
	"github.com/talgya/cattle-herd/internal/world"
)

// Ctx is the behavior context sensors run in.
type Ctx = behavior.Context[*agents.Agent]

// Timing is a service's firing interval and random deviation in seconds.
type Timing struct {
	Interval  float64 `yaml:"interval"`
	Deviation float64 `yaml:"deviation"`
}

// UpdateCattleState mirrors the agent's fear and area into the blackboard.
type UpdateCattleState struct {
	Timing Timing
}

// NewUpdateCattleState returns the service with stock timing.
func NewUpdateCattleState() *UpdateCattleState {
	return &UpdateCattleState{Timing: Timing{Interval: 0.1, Deviation: 0.02}}
}

func (s *UpdateCattleState) Name() string       { return "UpdateCattleState" }
func (s *UpdateCattleState) Interval() float64  { return s.Timing.Interval }
func (s *UpdateCattleState) Deviation() float64 { return s.Timing.Deviation }

func (s *UpdateCattleState) Tick(ctx *Ctx, elapsed float64) {
	a, b := ctx.Agent, ctx.Board

	b.SetFloat(blackboard.FearLevel, a.FearPercent())
	panicked := a.IsPanicked()
	b.SetBool(blackboard.IsPanicked, panicked)
	switch {
	case panicked && !a.Tags.Has(attributes.TagPanicked):
		a.Tags.Add(attributes.TagPanicked)
	case !panicked && a.Tags.Has(attributes.TagPanicked):
		a.Tags.Clear(attributes.TagPanicked)
	}

	env := a.Env()
	if env == nil || env.Areas == nil {
		return
	}
	primary := env.Areas.PrimaryAreaAt(a.Position)
	b.SetAreaType(primary.Kind)
	if primary.Valid() && !primary.Direction.IsNearlyZero() {
		b.SetVector(blackboard.FlowDirection, primary.Direction)
	} else {
		b.SetVector(blackboard.FlowDirection, env.Areas.FlowAt(a.Position))
	}
}

// CheckNearbyThreats finds the closest threat and frightens the agent when
// it is close.
type CheckNearbyThreats struct {
	Timing            Timing
	DetectionRadius   float64
	FearStartDistance float64
	MaxFearPerSecond  float32
	PlayersAreThreats bool
}

// NewCheckNearbyThreats returns the service with stock tuning.
func NewCheckNearbyThreats() *CheckNearbyThreats {
	return &CheckNearbyThreats{
		Timing:            Timing{Interval: 0.25, Deviation: 0.05},
		DetectionRadius:   1500,
		FearStartDistance: 1000,
		MaxFearPerSecond:  20,
	}
}

func (s *CheckNearbyThreats) Name() string       { return "CheckNearbyThreats" }
func (s *CheckNearbyThreats) Interval() float64  { return s.Timing.Interval }
func (s *CheckNearbyThreats) Deviation() float64 { return s.Timing.Deviation }

func (s *CheckNearbyThreats) Tick(ctx *Ctx, elapsed float64) {
	a, b := ctx.Agent, ctx.Board
	env := a.Env()
	if env == nil || env.Space == nil {
		return
	}

	mask := world.ClassThreat.Mask()
	if s.PlayersAreThreats {
		mask |= world.ClassPlayer.Mask()
	}
	nearest, dist := nearestActor(env.Space, a, s.DetectionRadius, mask, nil)
	if nearest == world.None {
		b.ClearActor(blackboard.NearestThreat)
		b.SetFloat(blackboard.ThreatDistance, float32(s.DetectionRadius))
		return
	}
	b.SetActor(blackboard.NearestThreat, nearest)
	b.SetFloat(blackboard.ThreatDistance, float32(dist))

	if dist < s.FearStartDistance && s.FearStartDistance > 0 {
		closeness := float32(1 - dist/s.FearStartDistance)
		a.AddFear(s.MaxFearPerSecond * closeness * float32(elapsed))
	}
}

// DetectPlayerActions watches for lit explosives, trumpets and gunfire.
type DetectPlayerActions struct {
	Timing            Timing
	ExplosiveRadius   float64
	TrumpetRadius     float64
	GunshotRadius     float64
	GunshotMemory     float64 // Seconds a shot stays relevant
	LureCalmPerPulse  float32
	ScareFearPerPulse float32
	GunshotFear       float32
}

// NewDetectPlayerActions returns the service with stock tuning.
func NewDetectPlayerActions() *DetectPlayerActions {
	return &DetectPlayerActions{
		Timing:            Timing{Interval: 0.2, Deviation: 0.05},
		ExplosiveRadius:   800,
		TrumpetRadius:     1500,
		GunshotRadius:     1500,
		GunshotMemory:     2,
		LureCalmPerPulse:  30,
		ScareFearPerPulse: 10,
		GunshotFear:       15,
	}
}

func (s *DetectPlayerActions) Name() string       { return "DetectPlayerActions" }
func (s *DetectPlayerActions) Interval() float64  { return s.Timing.Interval }
func (s *DetectPlayerActions) Deviation() float64 { return s.Timing.Deviation }

func (s *DetectPlayerActions) Tick(ctx *Ctx, elapsed float64) {
	a, b := ctx.Agent, ctx.Board
	env := a.Env()
	if env == nil || env.Space == nil {
		return
	}

	fusing := func(act world.Actor) bool { return act.Fuse == world.FuseFusing }
	if id, _ := nearestActor(env.Space, a, s.ExplosiveRadius, world.ClassExplosive.Mask(), fusing); id != world.None {
		b.SetActor(blackboard.NearbyExplosive, id)
	} else {
		b.ClearActor(blackboard.NearbyExplosive)
	}

	playing := func(act world.Actor) bool { return act.Trumpet != world.TrumpetSilent }
	lured, scared := false, false
	if id, _ := nearestActor(env.Space, a, s.TrumpetRadius, world.ClassPlayer.Mask(), playing); id != world.None {
		player, _ := env.Space.Actor(id)
		switch player.Trumpet {
		case world.TrumpetLure:
			lured = true
			b.SetActor(blackboard.LurerActor, id)
			a.AddCalm(s.LureCalmPerPulse)
		case world.TrumpetScare:
			scared = true
			b.SetActor(blackboard.ScarerActor, id)
			a.AddFear(s.ScareFearPerPulse)
		}
	}
	b.SetBool(blackboard.IsBeingLured, lured)
	b.SetBool(blackboard.IsBeingScared, scared)
	if !lured {
		b.ClearActor(blackboard.LurerActor)
	}
	if !scared {
		b.ClearActor(blackboard.ScarerActor)
	}

	now := ctx.Now
	firing := func(act world.Actor) bool {
		return act.HasFired && now-act.LastFireTime <= s.GunshotMemory
	}
	shooter := world.None
	best := math.MaxFloat64
	for _, id := range env.Space.ActorsInSphere(a.Position, s.GunshotRadius, world.ClassPlayer.Mask()) {
		act, ok := env.Space.Actor(id)
		if !ok || !firing(act) {
			continue
		}
		if a.HearShot(id, act.LastFireTime) {
			a.AddFear(s.GunshotFear)
		}
		if d := act.Position.Dist(a.Position); d < best {
			shooter, best = id, d
		}
	}
	b.SetBool(blackboard.IsPlayerShooting, shooter != world.None)
	if shooter != world.None {
		b.SetActor(blackboard.ShooterActor, shooter)
	} else {
		b.ClearActor(blackboard.ShooterActor)
	}
}

// HerdBehavior computes the flocking direction from nearby herd members.
type HerdBehavior struct {
	Timing             Timing
	Radius             float64
	SeparationDistance float64
	CohesionWeight     float64
	AlignmentWeight    float64
	SeparationWeight   float64
}

// NewHerdBehavior returns the service with stock tuning.
func NewHerdBehavior() *HerdBehavior {
	return &HerdBehavior{
		Timing:             Timing{Interval: 0.2, Deviation: 0.05},
		Radius:             800,
		SeparationDistance: 150,
		CohesionWeight:     0.3,
		AlignmentWeight:    0.2,
		SeparationWeight:   0.5,
	}
}

func (s *HerdBehavior) Name() string       { return "HerdBehavior" }
func (s *HerdBehavior) Interval() float64  { return s.Timing.Interval }
func (s *HerdBehavior) Deviation() float64 { return s.Timing.Deviation }

func (s *HerdBehavior) Tick(ctx *Ctx, elapsed float64) {
	a, b := ctx.Agent, ctx.Board
	env := a.Env()
	if env == nil || env.Space == nil {
		return
	}
	dir, count := s.Compute(env.Space, a.ID, a.Position)
	b.SetVector(blackboard.HerdDirection, dir)
	b.SetInt(blackboard.HerdCount, count)
}

// Compute returns the herd direction and neighbour count for an animal at me.
func (s *HerdBehavior) Compute(space world.Space, self world.ActorID, me world.Vec3) (world.Vec3, int) {
	var centroid, avgVel, separation world.Vec3
	count := 0
	for _, id := range space.ActorsInSphere(me, s.Radius, world.ClassAnimal.Mask()) {
		if id == self {
			continue
		}
		peer, ok := space.Actor(id)
		if !ok {
			continue
		}
		count++
		centroid = centroid.Add(peer.Position)
		avgVel = avgVel.Add(peer.Velocity)

		d := me.Dist(peer.Position)
		if d > 0 && d < s.SeparationDistance {
			push := me.Sub(peer.Position).Normalize().Scale((1 - d/s.SeparationDistance) * s.SeparationWeight)
			separation = separation.Add(push)
		}
	}
	if count == 0 {
		return world.Vec3{}, 0
	}
	n := float64(count)
	centroid = centroid.Scale(1 / n)
	avgVel = avgVel.Scale(1 / n)

	cohesion := centroid.Sub(me).Normalize().Scale(s.CohesionWeight)
	alignment := avgVel.Normalize().Scale(s.AlignmentWeight)
	return cohesion.Add(alignment).Add(separation).Horizontal().Normalize(), count
}

// nearestActor returns the closest actor of the masked classes within radius
// that passes keep, excluding the agent itself.
func nearestActor(space world.Space, a *agents.Agent, radius float64, mask world.ClassMask, keep func(world.Actor) bool) (world.ActorID, float64) {
	best := world.None
	bestDist := math.MaxFloat64
	for _, id := range space.ActorsInSphere(a.Position, radius, mask) {
		if id == a.ID {
			continue
		}
		act, ok := space.Actor(id)
		if !ok || (keep != nil && !keep(act)) {
			continue
		}
		if d := act.Position.Dist(a.Position); d < bestDist {
			best, bestDist = id, d
		}
	}
	return best, bestDist
}
