// Package agents provides the herd animal data model, the collaborator API
// the rest of the game uses to push animals around, the per-agent controller
// that ties attributes, blackboard, behavior tree and steering together, and
// the herd spawner.
package agents

import (
	"github.com/talgya/cattle-herd/internal/areas"
	"github.com/talgya/cattle-herd/internal/attributes"
	"github.com/talgya/cattle-herd/internal/behavior"
	"github.com/talgya/cattle-herd/internal/blackboard"
	"github.com/talgya/cattle-herd/internal/steering"
	"github.com/talgya/cattle-herd/internal/world"
)

// Env is the set of collaborators every agent shares.
type Env struct {
	Nav     world.Nav
	Space   world.Space
	Clock   world.Clock
	Areas   *areas.Subsystem
	Effects *attributes.Pipeline
	Latent  *behavior.LatentTable

	// OnChew fires when a grazing animal plays its chew animation.
	OnChew func(id world.ActorID)
}

// Agent is one herd animal.
type Agent struct {
	ID world.ActorID `json:"id"`

	// Location
	Position   world.Vec3 `json:"position"`
	Velocity   world.Vec3 `json:"velocity"`
	Yaw        float64    `json:"yaw"` // Degrees from +X
	FocalPoint world.Vec3 `json:"focal_point"`
	HasFocus   bool       `json:"has_focus"`
	Home       world.Vec3 `json:"home"`

	// State
	Attributes *attributes.Set        `json:"-"`
	Tags       *attributes.TagSet     `json:"-"`
	Movement   *steering.Movement     `json:"-"`
	Board      *blackboard.Blackboard `json:"-"`

	// Lasso
	Lassoed    bool          `json:"lassoed"`
	LassoOwner world.ActorID `json:"lasso_owner,omitempty"`

	// Area cache, refreshed every AreaUpdateInterval
	Primary areas.Sample `json:"primary_area"`
	Flow    world.Vec3   `json:"flow"`

	Chews uint32 `json:"chews"`
	Alive bool   `json:"alive"`

	env        *Env
	sources    []attributes.Source
	areaTimer  float64
	shotsHeard map[world.ActorID]float64
	lassoFear  float32

	moveGoal   world.Vec3
	moveAccept float64
	moving     bool
}

// NewAgent creates a live agent at pos with its home at pos.
func NewAgent(id world.ActorID, pos world.Vec3, attrs attributes.Defaults, move steering.Config, env *Env) *Agent {
	a := &Agent{
		ID:         id,
		Position:   pos,
		Home:       pos,
		Attributes: attributes.NewSet(attrs),
		Tags:       attributes.NewTagSet(),
		Movement:   steering.New(move),
		Board:      blackboard.New(id),
		Alive:      true,
		env:        env,
		shotsHeard: make(map[world.ActorID]float64),
		lassoFear:  50,
	}
	if env != nil && env.Effects != nil {
		env.Effects.Register(id, a.Attributes, a.Tags)
	}
	return a
}

// Env returns the shared collaborators.
func (a *Agent) Env() *Env { return a.env }

// ActorID implements areas.Occupant.
func (a *Agent) ActorID() world.ActorID { return a.ID }

// Location implements areas.Occupant.
func (a *Agent) Location() world.Vec3 { return a.Position }

// EnterSource records a zone or guide currently influencing the agent.
func (a *Agent) EnterSource(src attributes.Source) {
	for _, s := range a.sources {
		if s == src {
			return
		}
	}
	a.sources = append(a.sources, src)
}

// ExitSource forgets a zone or guide.
func (a *Agent) ExitSource(src attributes.Source) {
	for i, s := range a.sources {
		if s == src {
			a.sources = append(a.sources[:i], a.sources[i+1:]...)
			return
		}
	}
}

// ActiveSources returns the zones and guides the agent is inside.
func (a *Agent) ActiveSources() []attributes.Source {
	return append([]attributes.Source(nil), a.sources...)
}

// ApplyPhysicsImpulse pushes the agent, as a lasso pull or a blast would.
func (a *Agent) ApplyPhysicsImpulse(impulse world.Vec3, velocityChange bool) {
	if !a.Alive {
		return
	}
	a.Movement.AddImpulse(impulse, velocityChange)
}

// AddFear routes amount through IncomingFear. Non-positive amounts are ignored.
func (a *Agent) AddFear(amount float32) {
	if amount <= 0 || a.env == nil || a.env.Effects == nil {
		return
	}
	a.env.Effects.ApplyEffect(attributes.InstantFear(amount), attributes.Source{}, a.ID)
}

// AddCalm routes amount through IncomingCalm. Non-positive amounts are ignored.
func (a *Agent) AddCalm(amount float32) {
	if amount <= 0 || a.env == nil || a.env.Effects == nil {
		return
	}
	a.env.Effects.ApplyEffect(attributes.InstantCalm(amount), attributes.Source{}, a.ID)
}

// HasTag reports exact tag membership.
func (a *Agent) HasTag(tag string) bool { return a.Tags.Has(tag) }

// HasTagPrefix reports membership of tag or any of its children.
func (a *Agent) HasTagPrefix(tag string) bool { return a.Tags.HasPrefix(tag) }

// FearPercent returns Fear / MaxFear.
func (a *Agent) FearPercent() float32 { return a.Attributes.FearPercent() }

// IsPanicked reports whether fear is at or above the panic threshold.
func (a *Agent) IsPanicked() bool { return a.Attributes.IsPanicked() }

// OnLassoCaptured tethers the agent to owner.
func (a *Agent) OnLassoCaptured(owner world.ActorID) {
	if !a.Alive || a.Lassoed {
		return
	}
	a.Lassoed = true
	a.LassoOwner = owner
	a.Tags.Add(attributes.TagLassoed)
	a.Tags.Add(attributes.TagLassoTether)
	a.AddFear(a.lassoFear)
	a.Movement.SetMode(steering.Panic)
}

// OnLassoReleased frees the agent.
func (a *Agent) OnLassoReleased() {
	if !a.Lassoed {
		return
	}
	a.Lassoed = false
	a.LassoOwner = world.None
	a.Tags.Clear(attributes.TagLassoed)
	a.Tags.Clear(attributes.TagLassoTether)
	if a.IsPanicked() {
		a.Movement.SetMode(steering.Panic)
	} else {
		a.Movement.SetMode(steering.Walking)
	}
}

// HearShot records a gunshot from shooter fired at fireTime and reports
// whether it is one the agent has not reacted to yet.
func (a *Agent) HearShot(shooter world.ActorID, fireTime float64) bool {
	if last, ok := a.shotsHeard[shooter]; ok && last == fireTime {
		return false
	}
	a.shotsHeard[shooter] = fireTime
	return true
}

// SetFocus turns the agent toward p without moving it.
func (a *Agent) SetFocus(p world.Vec3) {
	a.FocalPoint = p
	a.HasFocus = true
	if d := p.Sub(a.Position).Horizontal(); !d.IsNearlyZero() {
		a.Yaw = d.Yaw()
	}
}

// ClearFocus drops the focal point.
func (a *Agent) ClearFocus() { a.HasFocus = false }

// Chew fires the chew animation hook.
func (a *Agent) Chew() {
	a.Chews++
	if a.env != nil && a.env.OnChew != nil {
		a.env.OnChew(a.ID)
	}
}

// Kill removes the agent from play. Its effects are discarded and later
// effect applications are ignored.
func (a *Agent) Kill() {
	if !a.Alive {
		return
	}
	a.Alive = false
	a.moving = false
	a.Movement.Stop()
	if a.env != nil && a.env.Effects != nil {
		a.env.Effects.Unregister(a.ID)
	}
}

// MoveTo steers toward goal. Arrival within acceptance finishes the agent's
// latent task with Succeeded.
func (a *Agent) MoveTo(goal world.Vec3, acceptance float64) {
	a.moveGoal = goal
	a.moveAccept = acceptance
	a.moving = true
	a.Movement.SetTarget(goal)
}

// StopMove cancels a MoveTo without reporting arrival.
func (a *Agent) StopMove() {
	a.moving = false
	a.Movement.ClearTarget()
}

// Moving reports whether a MoveTo is under way.
func (a *Agent) Moving() bool { return a.moving }

// checkArrival completes a MoveTo once the agent is within acceptance.
func (a *Agent) checkArrival() bool {
	if !a.moving || a.Position.Dist2D(a.moveGoal) > a.moveAccept {
		return false
	}
	a.StopMove()
	if a.env != nil && a.env.Latent != nil {
		a.env.Latent.Finish(a.ID, behavior.Succeeded)
	}
	return true
}

// updateFacing points the agent along its velocity when it has no focal point.
func (a *Agent) updateFacing() {
	if a.HasFocus {
		return
	}
	if v := a.Velocity.Horizontal(); v.Len() > 1 {
		a.Yaw = v.Yaw()
	}
}
