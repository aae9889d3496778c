// Package tasks holds the leaf actions of the herd tree. Target-writing tasks
// finish instantly after writing TargetLocation; MoveTo then walks there.
package tasks

import (
	"math"

	"github.com/talgya/cattle-herd/internal/agents"
	"github.com/talgya/cattle-herd/internal/behavior"
	"github.com/talgya/cattle-herd/internal/blackboard"
	"github.com/talgya/cattle-herd/internal/steering"
	"github.com/talgya/cattle-herd/internal/world"
)

// Ctx is the behavior context tasks run in.
type Ctx = behavior.Context[*agents.Agent]

type base = behavior.TaskBase[*agents.Agent]

// projectExtent is the half-size of the box nav projection searches.
var projectExtent = world.V(500, 500, 500)

// project snaps p onto the nav surface when enabled. A failed projection
// fails the calling task.
func project(ctx *Ctx, p world.Vec3, enabled bool) (world.Vec3, bool) {
	env := ctx.Agent.Env()
	if !enabled || env == nil || env.Nav == nil {
		return p, true
	}
	return env.Nav.ProjectPoint(p, projectExtent)
}

func randomHeading(ctx *Ctx) world.Vec3 {
	return world.FromAngle(ctx.Rand.Float64() * 2 * math.Pi)
}

// jitter rotates dir by a uniform angle in [-deg, +deg].
func jitter(ctx *Ctx, dir world.Vec3, deg float64) world.Vec3 {
	if deg <= 0 {
		return dir
	}
	return dir.RotateZ((ctx.Rand.Float64()*2 - 1) * deg)
}

// actorPosition resolves a blackboard actor key through the world.
func actorPosition(ctx *Ctx, task string, key blackboard.ActorKey) (world.Vec3, bool) {
	id, ok := ctx.Board.Actor(key)
	if !ok {
		ctx.Board.ReportMissing(task, key.String())
		return world.Vec3{}, false
	}
	env := ctx.Agent.Env()
	if env == nil || env.Space == nil {
		return world.Vec3{}, false
	}
	act, ok := env.Space.Actor(id)
	if !ok {
		return world.Vec3{}, false
	}
	return act.Position, true
}

func setTarget(ctx *Ctx, p world.Vec3) {
	ctx.Board.SetVector(blackboard.TargetLocation, p)
}

// Wander picks a random point around home.
type Wander struct {
	base
	MinDistance   float64
	Attempts      int
	UseNavigation bool
}

// NewWander returns the task with stock tuning.
func NewWander() *Wander {
	return &Wander{MinDistance: 200, Attempts: 10, UseNavigation: true}
}

func (t *Wander) Name() string { return "Wander" }

func (t *Wander) Execute(ctx *Ctx, mem behavior.Memory) behavior.Status {
	home, ok := ctx.Board.Vector(blackboard.HomeLocation)
	if !ok {
		ctx.Board.ReportMissing(t.Name(), blackboard.HomeLocation.String())
		return behavior.Failed
	}
	radius, ok := ctx.Board.Float(blackboard.WanderRadius)
	if !ok {
		ctx.Board.ReportMissing(t.Name(), blackboard.WanderRadius.String())
		return behavior.Failed
	}

	me := ctx.Agent.Position
	for i := 0; i < t.Attempts; i++ {
		angle := ctx.Rand.Float64() * 2 * math.Pi
		r := ctx.Rand.Float64() * float64(radius)
		p := home.Add(world.FromAngle(angle).Scale(r))
		if p.Dist2D(me) < t.MinDistance {
			continue
		}
		p, ok := project(ctx, p, t.UseNavigation)
		if !ok {
			continue
		}
		ctx.Agent.Movement.SetMode(steering.Walking)
		setTarget(ctx, p)
		return behavior.Succeeded
	}
	return behavior.Failed
}

// Graze stands the animal still for a random time, chewing now and then.
//
// Memory layout: duration f32 at 0, elapsed f32 at 4.
type Graze struct {
	base
	MinDuration     float64
	MaxDuration     float64
	AnimationChance float64 // Chew probability per second
}

// NewGraze returns the task with stock tuning.
func NewGraze() *Graze {
	return &Graze{MinDuration: 5, MaxDuration: 15, AnimationChance: 0.3}
}

func (t *Graze) Name() string    { return "Graze" }
func (t *Graze) MemorySize() int { return 8 }

func (t *Graze) Execute(ctx *Ctx, mem behavior.Memory) behavior.Status {
	d := t.MinDuration
	if t.MaxDuration > t.MinDuration {
		d += ctx.Rand.Float64() * (t.MaxDuration - t.MinDuration)
	}
	mem.SetFloat32(0, float32(d))
	mem.SetFloat32(4, 0)

	a := ctx.Agent
	a.StopMove()
	a.Movement.Stop()
	a.Movement.SetMode(steering.Grazing)
	return behavior.InProgress
}

func (t *Graze) Tick(ctx *Ctx, mem behavior.Memory) behavior.Status {
	elapsed := mem.Float32(4) + float32(ctx.Dt)
	mem.SetFloat32(4, elapsed)

	if ctx.Rand.Float64() < t.AnimationChance*ctx.Dt {
		ctx.Agent.Chew()
	}
	if elapsed >= mem.Float32(0) {
		ctx.Agent.Movement.SetMode(steering.Walking)
		return behavior.Succeeded
	}
	return behavior.InProgress
}

// Flee runs away from the nearest threat, along the area flow, or in a
// random direction, in that order of preference.
type Flee struct {
	base
	Distance       float64
	AngleVariation float64 // Degrees
	UseNavigation  bool
}

// NewFlee returns the task with stock tuning.
func NewFlee() *Flee {
	return &Flee{Distance: 500, AngleVariation: 15, UseNavigation: true}
}

func (t *Flee) Name() string { return "Flee" }

func (t *Flee) Execute(ctx *Ctx, mem behavior.Memory) behavior.Status {
	me := ctx.Agent.Position

	var dir world.Vec3
	if _, ok := ctx.Board.Actor(blackboard.NearestThreat); ok {
		if threat, ok := actorPosition(ctx, t.Name(), blackboard.NearestThreat); ok {
			dir = me.Sub(threat).Horizontal()
		}
	}
	if dir.IsNearlyZero() {
		if flow, ok := ctx.Board.Vector(blackboard.FlowDirection); ok {
			dir = flow.Horizontal()
		}
	}
	if dir.IsNearlyZero() {
		dir = randomHeading(ctx)
	}
	dir = jitter(ctx, dir.Normalize(), t.AngleVariation)

	p, ok := project(ctx, me.Add(dir.Scale(t.Distance)), t.UseNavigation)
	if !ok {
		return behavior.Failed
	}
	ctx.Agent.Movement.SetMode(steering.Panic)
	setTarget(ctx, p)
	return behavior.Succeeded
}

// FollowFlow steps along the current flow direction.
type FollowFlow struct {
	base
	Distance      float64
	UseNavigation bool
}

// NewFollowFlow returns the task with stock tuning.
func NewFollowFlow() *FollowFlow {
	return &FollowFlow{Distance: 300, UseNavigation: true}
}

func (t *FollowFlow) Name() string { return "FollowFlow" }

func (t *FollowFlow) Execute(ctx *Ctx, mem behavior.Memory) behavior.Status {
	flow, ok := ctx.Board.Vector(blackboard.FlowDirection)
	if !ok || flow.Horizontal().IsNearlyZero() {
		return behavior.Failed
	}
	dir := flow.Horizontal().Normalize()

	p, ok := project(ctx, ctx.Agent.Position.Add(dir.Scale(t.Distance)), t.UseNavigation)
	if !ok {
		return behavior.Failed
	}
	ctx.Agent.Movement.SetMode(steering.Walking)
	setTarget(ctx, p)
	return behavior.Succeeded
}

// FleeFromActor runs directly away from the actor under Key.
type FleeFromActor struct {
	base
	Key            blackboard.ActorKey
	Distance       float64
	AngleVariation float64
	UseNavigation  bool
}

// NewFleeFromActor returns the task reading key with stock tuning.
func NewFleeFromActor(key blackboard.ActorKey) *FleeFromActor {
	return &FleeFromActor{Key: key, Distance: 800, AngleVariation: 30, UseNavigation: true}
}

func (t *FleeFromActor) Name() string { return "FleeFromActor(" + t.Key.String() + ")" }

func (t *FleeFromActor) Execute(ctx *Ctx, mem behavior.Memory) behavior.Status {
	from, ok := actorPosition(ctx, t.Name(), t.Key)
	if !ok {
		return behavior.Failed
	}
	me := ctx.Agent.Position
	dir := me.Sub(from).Horizontal()
	if dir.IsNearlyZero() {
		dir = randomHeading(ctx)
	}
	dir = jitter(ctx, dir.Normalize(), t.AngleVariation)

	p, ok := project(ctx, me.Add(dir.Scale(t.Distance)), t.UseNavigation)
	if !ok {
		return behavior.Failed
	}
	ctx.Agent.Movement.SetMode(steering.Panic)
	setTarget(ctx, p)
	return behavior.Succeeded
}

// FollowActor closes in on the actor under Key, stopping short of it.
type FollowActor struct {
	base
	Key              blackboard.ActorKey
	AcceptableRadius float64
}

// NewFollowActor returns the task reading key with stock tuning.
func NewFollowActor(key blackboard.ActorKey) *FollowActor {
	return &FollowActor{Key: key, AcceptableRadius: 300}
}

func (t *FollowActor) Name() string { return "FollowActor(" + t.Key.String() + ")" }

func (t *FollowActor) Execute(ctx *Ctx, mem behavior.Memory) behavior.Status {
	to, ok := actorPosition(ctx, t.Name(), t.Key)
	if !ok {
		return behavior.Failed
	}
	id, _ := ctx.Board.Actor(t.Key)
	ctx.Board.SetActor(blackboard.TargetActor, id)
	ctx.Agent.Movement.SetMode(steering.Walking)

	me := ctx.Agent.Position
	if me.Dist2D(to) <= t.AcceptableRadius {
		setTarget(ctx, me)
		return behavior.Succeeded
	}
	dir := to.Sub(me).Horizontal().Normalize()
	setTarget(ctx, to.Sub(dir.Scale(t.AcceptableRadius*0.5)))
	return behavior.Succeeded
}

// LookAtActor turns the animal toward the actor under Key.
type LookAtActor struct {
	base
	Key blackboard.ActorKey
}

// NewLookAtActor returns the task reading key.
func NewLookAtActor(key blackboard.ActorKey) *LookAtActor {
	return &LookAtActor{Key: key}
}

func (t *LookAtActor) Name() string { return "LookAtActor(" + t.Key.String() + ")" }

func (t *LookAtActor) Execute(ctx *Ctx, mem behavior.Memory) behavior.Status {
	at, ok := actorPosition(ctx, t.Name(), t.Key)
	if !ok {
		return behavior.Failed
	}
	ctx.Agent.StopMove()
	ctx.Agent.Movement.Stop()
	ctx.Agent.SetFocus(at)
	return behavior.Succeeded
}

// MoveTo walks to TargetLocation. It is latent: arrival is reported by the
// agent's controller, and the task only watches the timeout.
//
// Memory layout: elapsed f32 at 0.
type MoveTo struct {
	AcceptanceRadius float64
	Timeout          float64
}

// NewMoveTo returns the task with stock tuning.
func NewMoveTo() *MoveTo {
	return &MoveTo{AcceptanceRadius: 50, Timeout: 10}
}

func (t *MoveTo) Name() string    { return "MoveTo" }
func (t *MoveTo) MemorySize() int { return 4 }

func (t *MoveTo) Execute(ctx *Ctx, mem behavior.Memory) behavior.Status {
	goal, ok := ctx.Board.Vector(blackboard.TargetLocation)
	if !ok {
		ctx.Board.ReportMissing(t.Name(), blackboard.TargetLocation.String())
		return behavior.Failed
	}
	a := ctx.Agent
	if a.Position.Dist2D(goal) <= t.AcceptanceRadius {
		return behavior.Succeeded
	}
	mem.SetFloat32(0, 0)
	a.ClearFocus()
	a.MoveTo(goal, t.AcceptanceRadius)
	return behavior.InProgress
}

func (t *MoveTo) Tick(ctx *Ctx, mem behavior.Memory) behavior.Status {
	elapsed := mem.Float32(0) + float32(ctx.Dt)
	mem.SetFloat32(0, elapsed)
	if t.Timeout > 0 && float64(elapsed) >= t.Timeout-1e-6 {
		ctx.Agent.StopMove()
		return behavior.Failed
	}
	return behavior.InProgress
}

func (t *MoveTo) Abort(ctx *Ctx, mem behavior.Memory) {
	ctx.Agent.StopMove()
}

// Idle holds the animal in place until its branch is aborted.
type Idle struct {
	base
}

func (Idle) Name() string { return "Idle" }

func (Idle) Execute(ctx *Ctx, mem behavior.Memory) behavior.Status {
	ctx.Agent.StopMove()
	ctx.Agent.Movement.Stop()
	return behavior.InProgress
}

// Wait idles for Seconds.
//
// Memory layout: elapsed f32 at 0.
type Wait struct {
	Seconds float64
}

func (t *Wait) Name() string    { return "Wait" }
func (t *Wait) MemorySize() int { return 4 }

func (t *Wait) Execute(ctx *Ctx, mem behavior.Memory) behavior.Status {
	if t.Seconds <= 0 {
		return behavior.Succeeded
	}
	mem.SetFloat32(0, 0)
	return behavior.InProgress
}

func (t *Wait) Tick(ctx *Ctx, mem behavior.Memory) behavior.Status {
	elapsed := mem.Float32(0) + float32(ctx.Dt)
	mem.SetFloat32(0, elapsed)
	if float64(elapsed) >= t.Seconds-1e-6 {
		return behavior.Succeeded
	}
	return behavior.InProgress
}

func (t *Wait) Abort(ctx *Ctx, mem behavior.Memory) {}
