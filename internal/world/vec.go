// Package world holds the geometry primitives, actor identities and the
// collaborator interfaces the herd core consumes: navigation, spatial queries
// and the simulation clock. It also provides the harness implementations used
// by the command and by tests.
package world

import (
	"fmt"
	"math"
)

// nearlyZero matches the tolerance used for direction checks throughout the core.
const nearlyZero = 1e-4

// Vec3 is a point or direction in world units. Z is up.
type Vec3 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// V is shorthand for constructing a Vec3.
func V(x, y, z float64) Vec3 {
	return Vec3{X: x, Y: y, Z: z}
}

// Up is the world up axis.
var Up = Vec3{Z: 1}

func (v Vec3) Add(o Vec3) Vec3       { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3       { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Scale(s float64) Vec3  { return Vec3{v.X * s, v.Y * s, v.Z * s} }
func (v Vec3) Dot(o Vec3) float64    { return v.X*o.X + v.Y*o.Y + v.Z*o.Z }
func (v Vec3) LenSq() float64        { return v.Dot(v) }
func (v Vec3) Len() float64          { return math.Sqrt(v.LenSq()) }
func (v Vec3) Dist(o Vec3) float64   { return v.Sub(o).Len() }
func (v Vec3) Dist2D(o Vec3) float64 { return math.Hypot(v.X-o.X, v.Y-o.Y) }

// Horizontal drops the Z component.
func (v Vec3) Horizontal() Vec3 {
	return Vec3{X: v.X, Y: v.Y}
}

// IsNearlyZero reports whether every component is within tolerance of zero.
func (v Vec3) IsNearlyZero() bool {
	return math.Abs(v.X) <= nearlyZero && math.Abs(v.Y) <= nearlyZero && math.Abs(v.Z) <= nearlyZero
}

// Normalize returns the unit vector, or the zero vector when v is too short
// to have a meaningful direction.
func (v Vec3) Normalize() Vec3 {
	l := v.Len()
	if l < 1e-8 {
		return Vec3{}
	}
	return v.Scale(1 / l)
}

// ClampLen shortens v to at most max units.
func (v Vec3) ClampLen(max float64) Vec3 {
	l := v.Len()
	if l <= max || l == 0 {
		return v
	}
	return v.Scale(max / l)
}

// RotateZ rotates v about the up axis by deg degrees (counter-clockwise).
func (v Vec3) RotateZ(deg float64) Vec3 {
	rad := deg * math.Pi / 180
	s, c := math.Sincos(rad)
	return Vec3{X: v.X*c - v.Y*s, Y: v.X*s + v.Y*c, Z: v.Z}
}

// Lerp interpolates between v and o.
func (v Vec3) Lerp(o Vec3, t float64) Vec3 {
	return v.Add(o.Sub(v).Scale(t))
}

// Yaw returns the heading of v in degrees, measured from +X.
func (v Vec3) Yaw() float64 {
	return math.Atan2(v.Y, v.X) * 180 / math.Pi
}

func (v Vec3) String() string {
	return fmt.Sprintf("(%.1f, %.1f, %.1f)", v.X, v.Y, v.Z)
}

// FromAngle returns the horizontal unit vector at the given angle in radians.
func FromAngle(rad float64) Vec3 {
	s, c := math.Sincos(rad)
	return Vec3{X: c, Y: s}
}
