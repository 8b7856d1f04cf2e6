package physics

import "fmt"

// DefaultGravity points down the -Y axis in metres per second squared.
var DefaultGravity = Vector2{0, -9.81}

// World owns an ordered set of bodies and advances them with Step.
//
// Bodies are stored by value; insertion order is simulation order and is never
// changed. A World is not safe for concurrent use: the host must serialize
// Step, AddBody and ApplyForce.
type World struct {
	// Gravity is an acceleration, not a force.
	Gravity Vector2

	bounds    *Bounds
	bodies    []Body
	onContact ContactHandler
}

type WorldOption func(*World)

// WithBounds constrains every body to b.
func WithBounds(b Bounds) WorldOption {
	return func(w *World) { w.bounds = &b }
}

func WithBodies(bodies ...Body) WorldOption {
	return func(w *World) { w.bodies = append(w.bodies, bodies...) }
}

func WithContactHandler(h ContactHandler) WorldOption {
	return func(w *World) { w.onContact = h }
}

func NewWorld(gravity Vector2, opts ...WorldOption) *World {
	w := &World{Gravity: gravity}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *World) AddBody(b Body) { w.bodies = append(w.bodies, b) }

// Bodies returns a copy of the bodies in simulation order.
func (w *World) Bodies() []Body {
	out := make([]Body, len(w.bodies))
	copy(out, w.bodies)
	return out
}

func (w *World) Len() int { return len(w.bodies) }

// Body returns a copy of the body at index i.
func (w *World) Body(i int) (Body, bool) {
	if i < 0 || i >= len(w.bodies) {
		return Body{}, false
	}
	return w.bodies[i], true
}

func (w *World) Bounds() (Bounds, bool) {
	if w.bounds == nil {
		return Bounds{}, false
	}
	return *w.bounds, true
}

// SetContactHandler replaces the contact observer; nil disables it.
func (w *World) SetContactHandler(h ContactHandler) { w.onContact = h }

// ApplyForce adds f to the pending force of the body at index i.
func (w *World) ApplyForce(i int, f Vector2) error {
	if i < 0 || i >= len(w.bodies) {
		return fmt.Errorf("apply force to body %d of %d: %w", i, len(w.bodies), ErrBodyNotFound)
	}
	w.bodies[i].ApplyForce(f)
	return nil
}

// Step advances every body by dt seconds. A dt that is not positive leaves the
// world untouched, pending forces included.
func (w *World) Step(dt float64) {
	if !(dt > 0) {
		return
	}
	for i := range w.bodies {
		w.stepBody(i, dt)
	}
}

func (w *World) stepBody(i int, dt float64) {
	b := &w.bodies[i]

	// Gravity is scaled to a force so it sums with the accumulated forces.
	gravityForce := w.Gravity.Scale(b.Mass)
	totalForce := b.force.Add(gravityForce)
	acceleration := totalForce.Scale(b.InverseMass())

	// Semi-implicit Euler: position uses the updated velocity.
	b.Velocity.AddAssign(acceleration.Scale(dt))
	b.Position.AddAssign(b.Velocity.Scale(dt))

	b.clearForces()

	if w.bounds != nil {
		w.resolveBounds(i, b)
	}

	if b.LinearDamping > 0 {
		k := max(0, 1-b.LinearDamping*dt)
		b.Velocity.ScaleAssign(k)
	}
}

func (w *World) resolveBounds(i int, b *Body) {
	box := b.AABB()

	var hx, hy [2]axisHit
	b.Position.X, b.Velocity.X, hx = resolveAxis(
		b.Position.X, b.Velocity.X, box.Min.X, box.Max.X, w.bounds.Min.X, w.bounds.Max.X, b.Restitution)
	b.Position.Y, b.Velocity.Y, hy = resolveAxis(
		b.Position.Y, b.Velocity.Y, box.Min.Y, box.Max.Y, w.bounds.Min.Y, w.bounds.Max.Y, b.Restitution)

	if w.onContact == nil {
		return
	}
	w.report(i, AxisX, hx)
	w.report(i, AxisY, hy)
}

func (w *World) report(i int, axis Axis, hits [2]axisHit) {
	for side, h := range hits {
		if !h.hit {
			continue
		}
		w.onContact(Contact{
			Body:        i,
			Axis:        axis,
			Side:        Side(side),
			Penetration: h.penetration,
			Reflected:   h.reflected,
		})
	}
}
