package areas

import (
	"errors"
	"fmt"
	"math"

	"github.com/talgya/cattle-herd/internal/attributes"
	"github.com/talgya/cattle-herd/internal/world"
)

// ErrZoneShapeDegenerate marks a zone whose shape can never contain a point.
var ErrZoneShapeDegenerate = errors.New("degenerate zone shape")

// ZoneID identifies a registered zone.
type ZoneID uint32

// Zone is a shape-bound region. Fields below each variant heading only apply
// to zones of that Kind.
type Zone struct {
	ID       ZoneID
	Name     string
	Kind     Kind
	Shape    Shape
	Priority int // Designer offset added to Kind.Value

	Height        float64 // Vertical band for proximity checks
	EdgeFalloff   float64
	SpeedModifier float32

	// Graze
	FearDecayMultiplier float32
	ContainmentStrength float64

	// Avoid
	AvoidStrength       float64
	AvoidanceRadius     float64
	InsideSpeedModifier float32

	// Panic
	FleeStrength  float64
	FearPerSecond float32
	FleeMode      FleeMode
}

// NewGrazeZone returns a graze zone with stock tuning.
func NewGrazeZone(shape Shape) Zone {
	return Zone{
		Kind:                KindGraze,
		Shape:               shape,
		Height:              500,
		EdgeFalloff:         200,
		SpeedModifier:       0.3,
		FearDecayMultiplier: 2,
		ContainmentStrength: 0.5,
	}
}

// NewAvoidZone returns an avoid zone with stock tuning.
func NewAvoidZone(shape Shape) Zone {
	return Zone{
		Kind:                KindAvoid,
		Shape:               shape,
		Height:              500,
		EdgeFalloff:         100,
		SpeedModifier:       1,
		AvoidStrength:       1,
		AvoidanceRadius:     300,
		InsideSpeedModifier: 0.5,
	}
}

// NewPanicZone returns a panic zone with stock tuning.
func NewPanicZone(shape Shape) Zone {
	return Zone{
		Kind:          KindPanic,
		Shape:         shape,
		Height:        500,
		EdgeFalloff:   400,
		SpeedModifier: 1.5,
		FleeStrength:  1,
		FearPerSecond: 30,
		FleeMode:      FleeOutward,
	}
}

// Validate reports configuration problems that make the zone inert.
func (z *Zone) Validate() error {
	if z.Shape.Degenerate() {
		switch z.Shape.Kind {
		case ShapeSpline:
			return fmt.Errorf("zone %q: %w: spline loop needs 3 points, has %d", z.Name, ErrZoneShapeDegenerate, len(z.Shape.Points))
		default:
			return fmt.Errorf("zone %q: %w: box extent %v", z.Name, ErrZoneShapeDegenerate, z.Shape.Extent)
		}
	}
	return nil
}

// Source is the effect source reference for this zone.
func (z *Zone) Source() attributes.Source {
	return attributes.Source{Kind: attributes.SourceZone, ID: uint64(z.ID)}
}

// Effect returns the effect an agent receives while overlapping the zone.
func (z *Zone) Effect() attributes.Effect {
	switch z.Kind {
	case KindGraze:
		return attributes.Effect{
			Name:                "GrazeState",
			Policy:              attributes.Infinite,
			Tags:                []string{attributes.TagGrazing},
			FearDecayMultiplier: z.FearDecayMultiplier,
		}
	case KindAvoid:
		return attributes.Effect{
			Name:   "AvoidState",
			Policy: attributes.Infinite,
			Tags:   []string{attributes.TagAvoiding},
		}
	case KindPanic:
		const period = 0.1
		return attributes.Effect{
			Name:            "PanicState",
			Policy:          attributes.Infinite,
			Period:          period,
			Tags:            []string{attributes.TagThreatened},
			BlocksFearDecay: true,
			Modifiers: []attributes.Modifier{{
				Attribute: attributes.IncomingFear,
				Op:        attributes.OpAdd,
				Magnitude: z.FearPerSecond * period,
			}},
		}
	}
	return attributes.Effect{Name: "ZoneState", Policy: attributes.Infinite}
}

// Contains is the overlap test that drives enter/exit. Avoid zones also
// contain their outer band.
func (z *Zone) Contains(p world.Vec3) bool {
	if z.Kind == KindAvoid {
		if z.Shape.Degenerate() || !z.withinBand(p) {
			return false
		}
		return z.Shape.DistanceToBoundary(p) < z.AvoidanceRadius
	}
	return z.Shape.Contains(p)
}

func (z *Zone) withinBand(p world.Vec3) bool {
	c := z.Shape.Centroid()
	return math.Abs(p.Z-c.Z) <= z.Height/2
}

// edgeStrength ramps from 0 at the boundary to 1 at EdgeFalloff inside.
func (z *Zone) edgeStrength(d float64) float64 {
	if d >= 0 {
		return 0
	}
	if z.EdgeFalloff <= 0 {
		return 1
	}
	return clamp(-d/z.EdgeFalloff, 0, 1)
}

// sampleAt computes the zone's influence at p. ok is false when p is outside.
func (z *Zone) sampleAt(p world.Vec3, fx *fleeContext) (Sample, bool) {
	if !z.Contains(p) {
		return Sample{}, false
	}
	d := z.Shape.DistanceToBoundary(p)
	s := Sample{
		Kind:          z.Kind,
		Zone:          z.ID,
		SpeedModifier: z.SpeedModifier,
		Priority:      z.Priority + z.Kind.Value(),
		Strength:      z.edgeStrength(d),
	}

	switch z.Kind {
	case KindGraze:
		s.Direction = z.containment(p, d).Scale(z.ContainmentStrength)
	case KindAvoid:
		s.Direction = z.avoidance(p).Scale(z.AvoidStrength)
		if d < 0 {
			s.Strength = 1
			s.SpeedModifier = z.InsideSpeedModifier
		} else {
			s.Strength = 1 - d/z.AvoidanceRadius
			s.SpeedModifier = 1
		}
	case KindPanic:
		s.Direction = z.flee(p, fx).Scale(z.FleeStrength)
	}
	return s, true
}

// containment pulls toward the centroid, growing from zero at EdgeFalloff
// inside to full at the boundary.
func (z *Zone) containment(p world.Vec3, d float64) world.Vec3 {
	if d <= -z.EdgeFalloff {
		return world.Vec3{}
	}
	toCenter := z.Shape.Centroid().Sub(p).Horizontal().Normalize()
	inner := 0.0
	if z.EdgeFalloff > 0 {
		inner = clamp(-d/z.EdgeFalloff, 0, 1)
	}
	return toCenter.Scale(1 - inner)
}

// avoidance points out of the zone: away from the boundary when outside,
// toward the nearest face when inside.
func (z *Zone) avoidance(p world.Vec3) world.Vec3 {
	c := z.Shape.ClosestBoundaryPoint(p)
	dir := p.Sub(c).Horizontal()
	if z.Shape.Contains(p) {
		dir = dir.Scale(-1)
	}
	if dir.IsNearlyZero() {
		return z.Shape.Forward()
	}
	return dir.Normalize()
}

func (z *Zone) flee(p world.Vec3, fx *fleeContext) world.Vec3 {
	switch z.FleeMode {
	case FleeScatter:
		return fx.randomDir()
	case FleeStampede:
		return fx.stampede.direction(p, fx.now)
	}

	var center world.Vec3
	if z.Shape.Kind == ShapeSpline && len(z.Shape.poly) > 0 {
		center = closestOnPolyline(z.Shape.poly, p, true)
	} else {
		center = z.Shape.Centroid()
	}
	dir := p.Sub(center).Horizontal()
	if dir.IsNearlyZero() {
		return fx.randomDir()
	}
	return dir.Normalize()
}
