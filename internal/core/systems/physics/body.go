package physics

// Construction defaults for NewBody.
const (
	DefaultMass          = 1.0
	DefaultRadius        = 10.0
	DefaultRestitution   = 0.5
	DefaultLinearDamping = 0.0

	// MinMass is the floor applied to mass at construction.
	MinMass = 1e-6
)

// Body is the simulation state of a single point mass with a collider shape.
//
// Mass is floored to MinMass only by NewBody and WithMass; assigning the field
// directly afterwards bypasses that guard.
type Body struct {
	Position Vector2
	Velocity Vector2
	Mass     float64
	Shape    ColliderShape

	// Restitution is the fraction of velocity kept after a boundary bounce
	// (0 stops, 1 is perfectly elastic).
	Restitution float64
	// LinearDamping is a per-second velocity decay coefficient, >= 0.
	LinearDamping float64

	force Vector2
}

type BodyOption func(*Body)

func WithPosition(p Vector2) BodyOption { return func(b *Body) { b.Position = p } }
func WithVelocity(v Vector2) BodyOption { return func(b *Body) { b.Velocity = v } }

func WithMass(m float64) BodyOption {
	return func(b *Body) { b.Mass = max(m, MinMass) }
}

func WithShape(s ColliderShape) BodyOption   { return func(b *Body) { b.Shape = s } }
func WithRestitution(r float64) BodyOption   { return func(b *Body) { b.Restitution = r } }
func WithLinearDamping(d float64) BodyOption { return func(b *Body) { b.LinearDamping = d } }

// NewBody creates a body at rest at the origin with DefaultMass, a circle of
// DefaultRadius, DefaultRestitution and DefaultLinearDamping, then applies opts.
func NewBody(opts ...BodyOption) Body {
	b := Body{
		Mass:          DefaultMass,
		Shape:         Circle(DefaultRadius),
		Restitution:   DefaultRestitution,
		LinearDamping: DefaultLinearDamping,
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// InverseMass is 1/Mass, computed on every call.
func (b *Body) InverseMass() float64 { return 1 / b.Mass }

// AccumulatedForce is the sum of forces applied since the last step.
func (b *Body) AccumulatedForce() Vector2 { return b.force }

// ApplyForce adds f to the pending force. Forces are cleared after every step,
// so continuous forces must be reapplied each frame.
func (b *Body) ApplyForce(f Vector2) { b.force.AddAssign(f) }

func (b *Body) clearForces() { b.force = Zero }

// AABB is the body's bounding box at its current position.
func (b *Body) AABB() AABB { return b.Shape.AABB(b.Position) }
