package areas

import (
	"fmt"
	"math"

	"github.com/talgya/cattle-herd/internal/attributes"
	"github.com/talgya/cattle-herd/internal/world"
)

// GuideID identifies a registered flow guide.
type GuideID uint32

// FalloffFunc maps normalized distance (0 on the path, 1 at the radius) to a
// weight in [0, 1].
type FalloffFunc func(t float64) float64

// LinearFalloff is the default falloff curve.
func LinearFalloff(t float64) float64 { return 1 - t }

// FlowGuide is a path that biases movement along its tangent. Agents are
// matched by proximity to the path rather than by overlap.
type FlowGuide struct {
	ID       GuideID
	Name     string
	Points   []world.Vec3 // Open Catmull-Rom path
	Priority int

	InfluenceRadius float64
	Falloff         FalloffFunc
	PullToPath      bool
	PullStrength    float64

	// Bounded guides weight by position inside Bounds instead of by
	// distance to the path.
	Bounded      bool
	Bounds       Shape
	FlowStrength float64

	CheckInterval float64 // Seconds between occupancy polls

	samples  []world.Vec3
	tangents []world.Vec3
	timer    float64
}

// NewFlowGuide returns a proximity guide along points.
func NewFlowGuide(points ...world.Vec3) FlowGuide {
	return FlowGuide{
		Points:          points,
		InfluenceRadius: 500,
		PullStrength:    0.3,
		FlowStrength:    0.5,
		CheckInterval:   0.25,
	}
}

// NewBoundedFlowGuide returns a guide whose influence is the box around the
// path.
func NewBoundedFlowGuide(bounds Shape, points ...world.Vec3) FlowGuide {
	g := NewFlowGuide(points...)
	g.Bounded = true
	if bounds.Extent == (world.Vec3{}) {
		bounds.Extent = world.V(600, 300, 250)
	}
	g.Bounds = bounds
	return g
}

// Validate reports whether the guide can ever produce a direction.
func (g *FlowGuide) Validate() error {
	if len(g.Points) < 2 {
		return fmt.Errorf("guide %q: %w: path needs 2 points, has %d", g.Name, ErrZoneShapeDegenerate, len(g.Points))
	}
	return nil
}

// Source is the effect source reference for this guide.
func (g *FlowGuide) Source() attributes.Source {
	return attributes.Source{Kind: attributes.SourceGuide, ID: uint64(g.ID)}
}

// Effect returns the effect an agent receives while near the guide.
func (g *FlowGuide) Effect() attributes.Effect {
	return attributes.Effect{
		Name:   "GuidedState",
		Policy: attributes.Infinite,
		Tags:   []string{attributes.TagGuided},
	}
}

func (g *FlowGuide) prepare() {
	g.samples, g.tangents = nil, nil
	n := len(g.Points)
	if n < 2 {
		return
	}
	at := func(i int) world.Vec3 {
		if i < 0 {
			i = 0
		}
		if i >= n {
			i = n - 1
		}
		return g.Points[i]
	}
	for seg := 0; seg < n-1; seg++ {
		p0, p1, p2, p3 := at(seg-1), at(seg), at(seg+1), at(seg+2)
		steps := samplesPerPoint
		if seg == n-2 {
			steps++ // include the final endpoint
		}
		for i := 0; i < steps; i++ {
			t := float64(i) / samplesPerPoint
			g.samples = append(g.samples, catmullRom(p0, p1, p2, p3, t))
			g.tangents = append(g.tangents, catmullRomTangent(p0, p1, p2, p3, t).Normalize())
		}
	}
	if g.Bounded {
		g.Bounds.prepare()
	}
}

// closest returns the nearest point on the path and the tangent there.
func (g *FlowGuide) closest(p world.Vec3) (world.Vec3, world.Vec3) {
	c, seg, t := closestSegment(g.samples, p, false)
	tan := g.tangents[seg]
	if seg+1 < len(g.tangents) {
		tan = tan.Lerp(g.tangents[seg+1], t)
	}
	return c, tan.Normalize()
}

// Weight is the guide's influence weight at p, zero when out of range.
func (g *FlowGuide) Weight(p world.Vec3) float64 {
	if len(g.samples) < 2 {
		return 0
	}
	if g.Bounded {
		b := &g.Bounds
		if !b.Contains(p) || b.Extent.X <= 0 || b.Extent.Y <= 0 {
			return 0
		}
		l := b.toLocal(p)
		xr := 1 - math.Abs(l.X)/b.Extent.X
		yr := 1 - math.Abs(l.Y)/b.Extent.Y
		return clamp(math.Min(xr, yr)*g.FlowStrength, 0, 1)
	}

	c, _ := g.closest(p)
	d := c.Dist2D(p)
	if g.InfluenceRadius <= 0 || d >= g.InfluenceRadius {
		return 0
	}
	f := g.Falloff
	if f == nil {
		f = LinearFalloff
	}
	return clamp(f(d/g.InfluenceRadius), 0, 1)
}

// DirectionAt returns the flow direction the guide imparts at p.
func (g *FlowGuide) DirectionAt(p world.Vec3) world.Vec3 {
	if len(g.samples) < 2 {
		return world.Vec3{}
	}
	c, tan := g.closest(p)
	tan = tan.Horizontal().Normalize()
	if !g.PullToPath {
		return tan
	}
	toPath := c.Sub(p).Horizontal().Normalize()
	if toPath.IsNearlyZero() {
		return tan
	}
	return tan.Lerp(toPath, g.PullStrength).Normalize()
}

func (g *FlowGuide) sampleAt(p world.Vec3) (Sample, bool) {
	w := g.Weight(p)
	if w <= 0 {
		return Sample{}, false
	}
	return Sample{
		Kind:          KindFlowGuide,
		Guide:         g.ID,
		Direction:     g.DirectionAt(p),
		Strength:      w,
		SpeedModifier: 1,
		Priority:      g.Priority + KindFlowGuide.Value(),
	}, true
}
