// Package steering turns an agent's move target and the influences acting on
// it into a velocity, and integrates accumulated physics impulses.
package steering

import (
	"math"

	"github.com/talgya/cattle-herd/internal/world"
)

// Mode selects the base speed.
type Mode uint8

const (
	Grazing Mode = iota
	Walking
	Panic
)

var modeNames = [...]string{"grazing", "walking", "panic"}

func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return "unknown"
}

// Config tunes the integrator.
type Config struct {
	GrazingSpeed float64 `yaml:"grazing_speed"`
	WalkingSpeed float64 `yaml:"walking_speed"`
	PanicSpeed   float64 `yaml:"panic_speed"`

	AreaInfluence float64 `yaml:"area_influence"`
	FlowInfluence float64 `yaml:"flow_influence"`
	HerdInfluence float64 `yaml:"herd_influence"`

	MaxPhysicsVelocity float64 `yaml:"max_physics_velocity"`
	PhysicsDecay       float64 `yaml:"physics_decay"`
	Mass               float64 `yaml:"mass"`
	PhysicsInfluence   float64 `yaml:"physics_influence"`
}

// DefaultConfig returns the stock cattle tuning.
func DefaultConfig() Config {
	return Config{
		GrazingSpeed:       100,
		WalkingSpeed:       300,
		PanicSpeed:         600,
		AreaInfluence:      1.0,
		FlowInfluence:      0.5,
		HerdInfluence:      0.25,
		MaxPhysicsVelocity: 1200,
		PhysicsDecay:       5,
		Mass:               100,
		PhysicsInfluence:   1,
	}
}

// Movement is one agent's motion state.
type Movement struct {
	cfg  Config
	mode Mode

	areaDir      world.Vec3
	areaStrength float64
	areaSpeed    float64
	attrSpeed    float64

	flowDir world.Vec3
	herdDir world.Vec3

	target    world.Vec3
	hasTarget bool

	velocity world.Vec3 // Steering velocity from the last integration
	physVel  world.Vec3
}

// New returns a walking Movement.
func New(cfg Config) *Movement {
	return &Movement{cfg: cfg, mode: Walking, areaSpeed: 1, attrSpeed: 1}
}

// SetMode switches the base speed. The next task sets the mode it needs;
// nothing restores a previous mode.
func (m *Movement) SetMode(mode Mode) { m.mode = mode }

// Mode returns the current movement mode.
func (m *Movement) Mode() Mode { return m.mode }

func (m *Movement) baseSpeed() float64 {
	switch m.mode {
	case Grazing:
		return m.cfg.GrazingSpeed
	case Panic:
		return m.cfg.PanicSpeed
	}
	return m.cfg.WalkingSpeed
}

// MaxWalkSpeed is the base speed times the area and attribute modifiers.
func (m *Movement) MaxWalkSpeed() float64 {
	return m.baseSpeed() * m.areaSpeed * m.attrSpeed
}

// SetAreaInfluence stores the primary zone's influence.
func (m *Movement) SetAreaInfluence(dir world.Vec3, strength float64, speedModifier float64) {
	m.areaDir = dir.Normalize()
	m.areaStrength = strength
	m.areaSpeed = clamp(speedModifier, 0.1, 3)
}

// ClearAreaInfluence drops any zone influence.
func (m *Movement) ClearAreaInfluence() {
	m.areaDir = world.Vec3{}
	m.areaStrength = 0
	m.areaSpeed = 1
}

// SetAttributeSpeed stores the agent's SpeedModifier attribute.
func (m *Movement) SetAttributeSpeed(v float64) { m.attrSpeed = clamp(v, 0.1, 3) }

func (m *Movement) SetFlow(dir world.Vec3) { m.flowDir = dir }
func (m *Movement) SetHerd(dir world.Vec3) { m.herdDir = dir }

// SetTarget gives the integrator a destination.
func (m *Movement) SetTarget(p world.Vec3) {
	m.target = p
	m.hasTarget = true
}

// ClearTarget removes the destination.
func (m *Movement) ClearTarget() { m.hasTarget = false }

// Target returns the destination, if any.
func (m *Movement) Target() (world.Vec3, bool) { return m.target, m.hasTarget }

// Stop clears the destination and the steering velocity immediately.
func (m *Movement) Stop() {
	m.hasTarget = false
	m.velocity = world.Vec3{}
}

// Velocity returns the last steering velocity plus physics velocity.
func (m *Movement) Velocity() world.Vec3 { return m.velocity.Add(m.physVel) }

// PhysicsVelocity returns the accumulated impulse velocity.
func (m *Movement) PhysicsVelocity() world.Vec3 { return m.physVel }

// AddImpulse accumulates a physics impulse. A velocity change is applied
// as-is; otherwise the impulse is divided by mass.
func (m *Movement) AddImpulse(impulse world.Vec3, velocityChange bool) {
	dv := impulse
	if !velocityChange {
		mass := m.cfg.Mass
		if mass <= 0 {
			mass = 1
		}
		dv = impulse.Scale(1 / mass)
	}
	m.physVel = m.physVel.Add(dv.Scale(m.cfg.PhysicsInfluence)).ClampLen(m.cfg.MaxPhysicsVelocity)
}

// Integrate advances pos by dt and returns the new position and velocity.
func (m *Movement) Integrate(pos world.Vec3, dt float64) (world.Vec3, world.Vec3) {
	m.physVel = m.physVel.Scale(math.Exp(-m.cfg.PhysicsDecay * dt))
	if m.physVel.Len() < 1 {
		m.physVel = world.Vec3{}
	}

	m.velocity = world.Vec3{}
	if m.hasTarget {
		to := m.target.Sub(pos).Horizontal()
		dist := to.Len()
		dir := to.ClampLen(1)
		dir = dir.Add(m.areaDir.Scale(m.areaStrength * m.cfg.AreaInfluence))
		dir = dir.Add(m.flowDir.Scale(m.cfg.FlowInfluence))
		dir = dir.Add(m.herdDir.Scale(m.cfg.HerdInfluence))
		dir = dir.Horizontal().Normalize()

		speed := m.MaxWalkSpeed()
		if dt > 0 && dist/dt < speed {
			// Arrive instead of overshooting.
			speed = dist / dt
		}
		m.velocity = dir.Scale(speed)
	}

	m.physVel = m.physVel.ClampLen(m.cfg.MaxPhysicsVelocity)
	vel := m.velocity.Add(m.physVel)
	return pos.Add(vel.Scale(dt)), vel
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
