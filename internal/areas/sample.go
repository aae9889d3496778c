package areas

import (
	"math"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/cattle-herd/internal/world"
)

// Sample is one zone's influence at a query point.
type Sample struct {
	Kind          Kind       `json:"kind"`
	Zone          ZoneID     `json:"zone,omitempty"`
	Guide         GuideID    `json:"guide,omitempty"`
	Direction     world.Vec3 `json:"direction"`
	Strength      float64    `json:"strength"`
	SpeedModifier float32    `json:"speed_modifier"`
	Priority      int        `json:"priority"`
}

// Valid reports whether the sample came from a zone.
func (s Sample) Valid() bool { return s.Kind != KindNone }

// stampedeField is a slowly drifting angle field. Animals close together read
// similar angles and bolt the same way.
type stampedeField struct {
	noise     opensimplex.Noise
	scale     float64 // Spatial frequency per world unit
	timeScale float64 // Drift per second
}

func newStampedeField(seed int64) *stampedeField {
	return &stampedeField{
		noise:     opensimplex.New(seed + 11),
		scale:     1.0 / 2000,
		timeScale: 0.05,
	}
}

func (f *stampedeField) direction(p world.Vec3, now float64) world.Vec3 {
	n := f.noise.Eval3(p.X*f.scale, p.Y*f.scale, now*f.timeScale)
	return world.FromAngle(n * 2 * math.Pi)
}

// fleeContext carries the per-query randomness panic zones need.
type fleeContext struct {
	rng      *rand.Rand
	stampede *stampedeField
	now      float64
}

func (fx *fleeContext) randomDir() world.Vec3 {
	return world.FromAngle(fx.rng.Float64() * 2 * math.Pi)
}
