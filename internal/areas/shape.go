package areas

import (
	"math"

	"github.com/talgya/cattle-herd/internal/world"
)

// ShapeKind selects the containment test a zone uses.
type ShapeKind uint8

const (
	ShapeBox    ShapeKind = iota // Oriented box
	ShapeSpline                  // Closed Catmull-Rom loop
)

func (k ShapeKind) String() string {
	if k == ShapeSpline {
		return "spline"
	}
	return "box"
}

// samplesPerPoint controls how finely spline loops are tessellated.
const samplesPerPoint = 10

// Shape is the footprint of a zone.
type Shape struct {
	Kind   ShapeKind
	Center world.Vec3
	Extent world.Vec3 // Box half-extents
	Yaw    float64    // Box rotation about Z in degrees

	Points []world.Vec3 // Spline loop control points
	Height float64      // Vertical span of a spline loop

	poly     []world.Vec3
	centroid world.Vec3
}

// Box returns an oriented box shape.
func Box(center, extent world.Vec3, yaw float64) Shape {
	return Shape{Kind: ShapeBox, Center: center, Extent: extent, Yaw: yaw}
}

// Loop returns a closed spline shape through points.
func Loop(height float64, points ...world.Vec3) Shape {
	s := Shape{Kind: ShapeSpline, Points: points, Height: height}
	s.prepare()
	return s
}

// prepare caches the tessellated outline of a spline loop.
func (s *Shape) prepare() {
	if s.Kind != ShapeSpline {
		s.centroid = s.Center
		return
	}
	s.centroid = world.Vec3{}
	if len(s.Points) == 0 {
		s.poly = nil
		return
	}
	for _, p := range s.Points {
		s.centroid = s.centroid.Add(p)
	}
	s.centroid = s.centroid.Scale(1 / float64(len(s.Points)))
	if len(s.Points) < 3 {
		s.poly = nil
		return
	}
	s.poly = tessellateLoop(s.Points, len(s.Points)*samplesPerPoint)
}

// Degenerate reports whether the shape can never contain a point.
func (s *Shape) Degenerate() bool {
	switch s.Kind {
	case ShapeBox:
		return s.Extent.X <= 0 || s.Extent.Y <= 0 || s.Extent.Z <= 0
	case ShapeSpline:
		return len(s.Points) < 3
	}
	return true
}

// Centroid returns the box centre or the mean of the loop's control points.
func (s *Shape) Centroid() world.Vec3 {
	if s.Kind == ShapeBox {
		return s.Center
	}
	return s.centroid
}

// Forward is the box's local +X axis in world space.
func (s *Shape) Forward() world.Vec3 {
	return world.V(1, 0, 0).RotateZ(s.Yaw)
}

func (s *Shape) toLocal(p world.Vec3) world.Vec3 {
	return p.Sub(s.Center).RotateZ(-s.Yaw)
}

func (s *Shape) toWorld(l world.Vec3) world.Vec3 {
	return l.RotateZ(s.Yaw).Add(s.Center)
}

func (s *Shape) withinHeight(p world.Vec3) bool {
	switch s.Kind {
	case ShapeBox:
		return math.Abs(p.Z-s.Center.Z) <= s.Extent.Z
	default:
		return math.Abs(p.Z-s.centroid.Z) <= s.Height/2
	}
}

// Contains reports whether p lies inside the shape.
func (s *Shape) Contains(p world.Vec3) bool {
	if s.Degenerate() {
		return false
	}
	switch s.Kind {
	case ShapeBox:
		l := s.toLocal(p)
		return math.Abs(l.X) <= s.Extent.X && math.Abs(l.Y) <= s.Extent.Y && math.Abs(l.Z) <= s.Extent.Z
	case ShapeSpline:
		return s.withinHeight(p) && pointInPolygon(s.poly, p)
	}
	return false
}

// DistanceToBoundary is negative inside the shape and positive outside.
// Inside a box it is the distance to the nearest face, negated.
func (s *Shape) DistanceToBoundary(p world.Vec3) float64 {
	if s.Degenerate() {
		return math.Inf(1)
	}
	switch s.Kind {
	case ShapeBox:
		l := s.toLocal(p)
		dx := math.Abs(l.X) - s.Extent.X
		dy := math.Abs(l.Y) - s.Extent.Y
		dz := math.Abs(l.Z) - s.Extent.Z
		if dx < 0 && dy < 0 && dz < 0 {
			return math.Max(dx, math.Max(dy, dz))
		}
		return math.Sqrt(sq(math.Max(dx, 0)) + sq(math.Max(dy, 0)) + sq(math.Max(dz, 0)))
	default:
		c := closestOnPolyline(s.poly, p, true)
		d := p.Dist2D(c)
		if pointInPolygon(s.poly, p) {
			return -d
		}
		return d
	}
}

// ClosestBoundaryPoint returns the nearest point on the outline. From inside a
// box that is the nearest face.
func (s *Shape) ClosestBoundaryPoint(p world.Vec3) world.Vec3 {
	switch s.Kind {
	case ShapeBox:
		l := s.toLocal(p)
		c := world.Vec3{
			X: clamp(l.X, -s.Extent.X, s.Extent.X),
			Y: clamp(l.Y, -s.Extent.Y, s.Extent.Y),
			Z: clamp(l.Z, -s.Extent.Z, s.Extent.Z),
		}
		if c == l {
			// Inside: snap to the nearest vertical face.
			if s.Extent.X-math.Abs(l.X) <= s.Extent.Y-math.Abs(l.Y) {
				c.X = math.Copysign(s.Extent.X, l.X)
			} else {
				c.Y = math.Copysign(s.Extent.Y, l.Y)
			}
		}
		return s.toWorld(c)
	default:
		if len(s.poly) == 0 {
			return s.centroid
		}
		return closestOnPolyline(s.poly, p, true)
	}
}

// tessellateLoop samples a closed Catmull-Rom spline.
func tessellateLoop(pts []world.Vec3, samples int) []world.Vec3 {
	n := len(pts)
	out := make([]world.Vec3, 0, samples)
	for i := 0; i < samples; i++ {
		u := float64(i) / float64(samples) * float64(n)
		seg := int(u)
		t := u - float64(seg)
		p0 := pts[(seg-1+n)%n]
		p1 := pts[seg%n]
		p2 := pts[(seg+1)%n]
		p3 := pts[(seg+2)%n]
		out = append(out, catmullRom(p0, p1, p2, p3, t))
	}
	return out
}

func catmullRom(p0, p1, p2, p3 world.Vec3, t float64) world.Vec3 {
	t2 := t * t
	t3 := t2 * t
	a := p1.Scale(2)
	b := p2.Sub(p0).Scale(t)
	c := p0.Scale(2).Sub(p1.Scale(5)).Add(p2.Scale(4)).Sub(p3).Scale(t2)
	d := p1.Scale(3).Sub(p0).Sub(p2.Scale(3)).Add(p3).Scale(t3)
	return a.Add(b).Add(c).Add(d).Scale(0.5)
}

func catmullRomTangent(p0, p1, p2, p3 world.Vec3, t float64) world.Vec3 {
	t2 := t * t
	b := p2.Sub(p0)
	c := p0.Scale(2).Sub(p1.Scale(5)).Add(p2.Scale(4)).Sub(p3).Scale(2 * t)
	d := p1.Scale(3).Sub(p0).Sub(p2.Scale(3)).Add(p3).Scale(3 * t2)
	return b.Add(c).Add(d).Scale(0.5)
}

// pointInPolygon casts a ray along +X and counts edge crossings.
func pointInPolygon(poly []world.Vec3, p world.Vec3) bool {
	n := len(poly)
	if n < 3 {
		return false
	}
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := poly[i], poly[j]
		if (a.Y > p.Y) != (b.Y > p.Y) {
			x := a.X + (p.Y-a.Y)/(b.Y-a.Y)*(b.X-a.X)
			if p.X < x {
				inside = !inside
			}
		}
	}
	return inside
}

// closestOnPolyline returns the nearest point on the polyline, measured in
// the horizontal plane.
func closestOnPolyline(poly []world.Vec3, p world.Vec3, closed bool) world.Vec3 {
	c, _, _ := closestSegment(poly, p, closed)
	return c
}

// closestSegment returns the closest point, the index of the segment start and
// the parameter along that segment.
func closestSegment(poly []world.Vec3, p world.Vec3, closed bool) (world.Vec3, int, float64) {
	if len(poly) == 0 {
		return world.Vec3{}, 0, 0
	}
	if len(poly) == 1 {
		return poly[0], 0, 0
	}
	segs := len(poly) - 1
	if closed {
		segs = len(poly)
	}
	best := math.MaxFloat64
	var bestPt world.Vec3
	bestSeg, bestT := 0, 0.0
	for i := 0; i < segs; i++ {
		a := poly[i]
		b := poly[(i+1)%len(poly)]
		ab := b.Sub(a).Horizontal()
		t := 0.0
		if l2 := ab.LenSq(); l2 > 0 {
			t = clamp(p.Sub(a).Horizontal().Dot(ab)/l2, 0, 1)
		}
		c := a.Lerp(b, t)
		if d := c.Dist2D(p); d < best {
			best, bestPt, bestSeg, bestT = d, c, i, t
		}
	}
	return bestPt, bestSeg, bestT
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

func sq(v float64) float64 { return v * v }
