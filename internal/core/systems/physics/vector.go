package physics

import "math"

// DefaultNormalizeEpsilon is the magnitude at or below which Normalized yields Zero.
const DefaultNormalizeEpsilon = 1e-12

// Vector2 is a 2D vector with value semantics. Every method returns a new value
// except the *Assign variants, which mutate the receiver.
type Vector2 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Zero is the zero vector.
var Zero = Vector2{}

// Vec2 creates a new Vector2.
func Vec2(x, y float64) Vector2 { return Vector2{X: x, Y: y} }

func (v Vector2) Add(o Vector2) Vector2 { return Vector2{v.X + o.X, v.Y + o.Y} }
func (v Vector2) Sub(o Vector2) Vector2 { return Vector2{v.X - o.X, v.Y - o.Y} }
func (v Vector2) Neg() Vector2          { return Vector2{-v.X, -v.Y} }

// Scale returns v * s.
func (v Vector2) Scale(s float64) Vector2 { return Vector2{v.X * s, v.Y * s} }

// ScaleVec returns s * v. It is the scalar-first form of Scale.
func ScaleVec(s float64, v Vector2) Vector2 { return v.Scale(s) }

// Div returns v / s. Division by zero follows IEEE-754.
func (v Vector2) Div(s float64) Vector2 { return Vector2{v.X / s, v.Y / s} }

func (v *Vector2) AddAssign(o Vector2)      { *v = v.Add(o) }
func (v *Vector2) SubAssign(o Vector2)      { *v = v.Sub(o) }
func (v *Vector2) ScaleAssign(s float64)    { *v = v.Scale(s) }
func (v Vector2) MagnitudeSquared() float64 { return v.X*v.X + v.Y*v.Y }
func (v Vector2) Magnitude() float64        { return math.Sqrt(v.MagnitudeSquared()) }
func (v Vector2) Dot(o Vector2) float64     { return v.X*o.X + v.Y*o.Y }

// Normalized returns the unit vector pointing along v, or Zero when the
// magnitude is at or below DefaultNormalizeEpsilon.
func (v Vector2) Normalized() Vector2 { return v.NormalizedEps(DefaultNormalizeEpsilon) }

// NormalizedEps is Normalized with a caller supplied epsilon.
func (v Vector2) NormalizedEps(epsilon float64) Vector2 {
	m := v.Magnitude()
	if !(m > epsilon) {
		return Zero
	}
	return v.Div(m)
}
