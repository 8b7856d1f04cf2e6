package physics

type Axis uint8

const (
	AxisX Axis = iota
	AxisY
)

func (a Axis) String() string {
	if a == AxisY {
		return "y"
	}
	return "x"
}

type Side uint8

const (
	SideMin Side = iota
	SideMax
)

func (s Side) String() string {
	if s == SideMax {
		return "max"
	}
	return "min"
}

// Contact describes one boundary correction made during a step.
type Contact struct {
	Body        int
	Axis        Axis
	Side        Side
	Penetration float64
	// Reflected is false when the body was already moving away from the wall,
	// in which case only its position was corrected.
	Reflected bool
}

// ContactHandler observes boundary corrections. It runs inside Step and must
// not call back into the world.
type ContactHandler func(Contact)

type axisHit struct {
	hit         bool
	penetration float64
	reflected   bool
}

// resolveAxis keeps one axis of a body inside [boundMin, boundMax] given the
// box edges lo and hi on that axis. The low and high checks are independent;
// when the box is wider than the bounds both fire, low side first.
func resolveAxis(pos, vel, lo, hi, boundMin, boundMax, restitution float64) (float64, float64, [2]axisHit) {
	var hits [2]axisHit

	if lo < boundMin {
		p := boundMin - lo
		pos += p
		hits[SideMin] = axisHit{hit: true, penetration: p}
		if vel < 0 {
			vel = -vel * restitution
			hits[SideMin].reflected = true
		}
	}

	if hi > boundMax {
		p := hi - boundMax
		pos -= p
		hits[SideMax] = axisHit{hit: true, penetration: p}
		if vel > 0 {
			vel = -vel * restitution
			hits[SideMax].reflected = true
		}
	}

	return pos, vel, hits
}
