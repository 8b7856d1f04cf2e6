package runner

import "github.com/zeusync/kinetic/internal/core/systems/physics"

// Event types published on the bus.
const (
	EventFrame   = "world.frame"
	EventContact = "world.contact"
	EventReset   = "world.reset"
)

// Frame is an immutable snapshot of the world taken right after a step.
type Frame struct {
	Session string
	Seq     uint64
	// DT is the clamped delta handed to the step, in seconds.
	DT float64
	// Time is the simulated time accumulated so far, in seconds.
	Time     float64
	Hash     uint64
	Gravity  physics.Vector2
	Bounds   *physics.Bounds
	Bodies   []physics.Body
	Contacts []physics.Contact
}

func snapshot(w *physics.World) (physics.Vector2, *physics.Bounds, []physics.Body) {
	var bounds *physics.Bounds
	if b, ok := w.Bounds(); ok {
		bounds = &b
	}
	return w.Gravity, bounds, w.Bodies()
}
