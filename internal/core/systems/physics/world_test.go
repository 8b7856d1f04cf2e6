package physics

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorld_StepGravityFreeFall(t *testing.T) {
	w := NewWorld(Vec2(0, -10))
	w.AddBody(NewBody(WithMass(1)))

	w.Step(1)

	b := w.Bodies()[0]
	assert.InDelta(t, -10, b.Velocity.Y, eps)
	assert.InDelta(t, -10, b.Position.Y, eps)
	assert.InDelta(t, 0, b.Position.X, eps)
}

func TestWorld_StepAppliesForceAndClears(t *testing.T) {
	w := NewWorld(Zero)
	b := NewBody(WithMass(2))
	b.ApplyForce(Vec2(4, 0))
	w.AddBody(b)

	w.Step(1)

	got := w.Bodies()[0]
	assert.Equal(t, Zero, got.AccumulatedForce())
	assert.InDelta(t, 2, got.Velocity.X, eps)
	assert.InDelta(t, 2, got.Position.X, eps)
}

func TestWorld_GravityIndependentOfMass(t *testing.T) {
	w := NewWorld(Vec2(0, -10), WithBodies(
		NewBody(WithMass(1)),
		NewBody(WithMass(50)),
	))
	w.Step(0.5)

	bodies := w.Bodies()
	assertVecInDelta(t, bodies[0].Velocity, bodies[1].Velocity)
	assertVecInDelta(t, bodies[0].Position, bodies[1].Position)
}

func TestWorld_NonPositiveDtIsNoop(t *testing.T) {
	newWorld := func() *World {
		b := NewBody(WithPosition(Vec2(1, 2)), WithVelocity(Vec2(3, 4)), WithLinearDamping(1))
		b.ApplyForce(Vec2(5, 6))
		return NewWorld(Vec2(0, -10),
			WithBounds(NewBounds(Vec2(0, 0), Vec2(1, 1))),
			WithBodies(b))
	}

	for _, dt := range []float64{0, -1, -1e-9} {
		w := newWorld()
		before := w.Bodies()
		hash := w.StateHash()
		w.Step(dt)
		assert.Equal(t, before, w.Bodies(), "dt=%v", dt)
		assert.Equal(t, hash, w.StateHash(), "dt=%v", dt)
	}
}

func TestWorld_ZeroDtIdempotent(t *testing.T) {
	w := NewWorld(Vec2(0, -10), WithBodies(NewBody(WithVelocity(Vec2(1, 1)))))
	before := w.StateHash()
	for i := 0; i < 10; i++ {
		w.Step(0)
	}
	assert.Equal(t, before, w.StateHash())
}

func TestWorld_Damping(t *testing.T) {
	w := NewWorld(Zero, WithBodies(NewBody(
		WithVelocity(Vec2(10, -4)),
		WithLinearDamping(2),
	)))
	w.Step(0.25)

	assertVecInDelta(t, Vec2(5, -2), w.Bodies()[0].Velocity)
}

func TestWorld_DampingClampsToZero(t *testing.T) {
	for _, v := range []Vector2{Vec2(10, -4), Vec2(-300, 0.5), Vec2(1e6, 1e6)} {
		w := NewWorld(Zero, WithBodies(NewBody(WithVelocity(v), WithLinearDamping(10))))
		w.Step(1)
		got := w.Bodies()[0].Velocity
		assert.Equal(t, 0.0, got.X)
		assert.Equal(t, 0.0, got.Y)
	}
}

func TestResolveAxis_MinSideReflects(t *testing.T) {
	// Box min edge at -2 against a bound at 0.
	pos, vel, hits := resolveAxis(0, -10, -2, 2, 0, 100, 0.5)
	assert.InDelta(t, 2, pos, eps)
	assert.InDelta(t, 5, vel, eps)
	assert.True(t, hits[SideMin].hit)
	assert.True(t, hits[SideMin].reflected)
	assert.InDelta(t, 2, hits[SideMin].penetration, eps)
	assert.False(t, hits[SideMax].hit)
}

func TestResolveAxis_MinSideMovingAway(t *testing.T) {
	pos, vel, hits := resolveAxis(0, 3, -2, 2, 0, 100, 0.5)
	assert.InDelta(t, 2, pos, eps)
	assert.InDelta(t, 3, vel, eps)
	assert.True(t, hits[SideMin].hit)
	assert.False(t, hits[SideMin].reflected)
}

func TestResolveAxis_MaxSide(t *testing.T) {
	pos, vel, hits := resolveAxis(99, 8, 97, 101, 0, 100, 0.25)
	assert.InDelta(t, 98, pos, eps)
	assert.InDelta(t, -2, vel, eps)
	assert.True(t, hits[SideMax].reflected)

	pos, vel, _ = resolveAxis(99, -8, 97, 101, 0, 100, 0.25)
	assert.InDelta(t, 98, pos, eps)
	assert.InDelta(t, -8, vel, eps)
}

func TestResolveAxis_Inside(t *testing.T) {
	pos, vel, hits := resolveAxis(50, -8, 48, 52, 0, 100, 0.5)
	assert.Equal(t, 50.0, pos)
	assert.Equal(t, -8.0, vel)
	assert.False(t, hits[SideMin].hit)
	assert.False(t, hits[SideMax].hit)
}

func TestResolveAxis_DoubleViolation(t *testing.T) {
	// Box of width 10 in bounds of width 4: both sides fire, low first.
	pos, vel, hits := resolveAxis(2, -4, -3, 7, 0, 4, 1)
	assert.True(t, hits[SideMin].hit)
	assert.True(t, hits[SideMax].hit)
	// +3 then -3.
	assert.InDelta(t, 2, pos, eps)
	// Reflected to +4 on the low side, then back to -4 on the high side.
	assert.InDelta(t, -4, vel, eps)
}

func TestWorld_BoundaryBounce(t *testing.T) {
	var contacts []Contact
	w := NewWorld(Zero,
		WithBounds(NewBounds(Vec2(0, 0), Vec2(100, 100))),
		WithContactHandler(func(c Contact) { contacts = append(contacts, c) }),
		WithBodies(NewBody(
			WithPosition(Vec2(1, 50)),
			WithVelocity(Vec2(-8, 0)),
			WithShape(Circle(1)),
			WithRestitution(0.5),
		)),
	)

	// Integrates to x=-1, box min -2, pushed back by 2.
	w.Step(0.25)

	b := w.Bodies()[0]
	assert.InDelta(t, 1, b.Position.X, eps)
	assert.InDelta(t, 4, b.Velocity.X, eps)
	assert.InDelta(t, 50, b.Position.Y, eps)

	require.Len(t, contacts, 1)
	assert.Equal(t, Contact{Body: 0, Axis: AxisX, Side: SideMin, Penetration: 2, Reflected: true}, contacts[0])
}

func TestWorld_BoundaryFloorWithRect(t *testing.T) {
	w := NewWorld(Vec2(0, -10),
		WithBounds(NewBounds(Vec2(0, 0), Vec2(10, 10))),
		WithBodies(NewBody(
			WithPosition(Vec2(5, 1)),
			WithShape(Rect(Vec2(2, 2))),
			WithRestitution(0),
		)),
	)
	for i := 0; i < 100; i++ {
		w.Step(1.0 / 60)
	}
	b := w.Bodies()[0]
	assert.InDelta(t, 1, b.Position.Y, 1e-6, "rect rests on the floor")
	assert.InDelta(t, 0, b.AABB().Min.Y, 1e-6)
}

func TestWorld_DampingAfterBounce(t *testing.T) {
	w := NewWorld(Zero,
		WithBounds(NewBounds(Vec2(0, 0), Vec2(100, 100))),
		WithBodies(NewBody(
			WithPosition(Vec2(1, 50)),
			WithVelocity(Vec2(-8, 0)),
			WithShape(Circle(1)),
			WithRestitution(0.5),
			WithLinearDamping(2),
		)),
	)
	w.Step(0.25)

	// Reflected to +4 then damped by k = 0.5.
	assert.InDelta(t, 2, w.Bodies()[0].Velocity.X, eps)
}

func TestWorld_NoBoundsUnconstrained(t *testing.T) {
	w := NewWorld(Zero, WithBodies(NewBody(WithVelocity(Vec2(-1000, 0)))))
	_, ok := w.Bounds()
	assert.False(t, ok)

	w.Step(1)
	assert.InDelta(t, -1000, w.Bodies()[0].Position.X, eps)
}

func TestWorld_ApplyForceByIndex(t *testing.T) {
	w := NewWorld(Zero, WithBodies(NewBody(), NewBody(WithMass(2))))

	require.NoError(t, w.ApplyForce(1, Vec2(2, 0)))
	err := w.ApplyForce(2, Vec2(1, 1))
	assert.True(t, errors.Is(err, ErrBodyNotFound))
	assert.ErrorIs(t, w.ApplyForce(-1, Zero), ErrBodyNotFound)

	b, ok := w.Body(1)
	require.True(t, ok)
	assert.Equal(t, Vec2(2, 0), b.AccumulatedForce())

	w.Step(1)
	b, _ = w.Body(1)
	assert.InDelta(t, 1, b.Velocity.X, eps)
	b, _ = w.Body(0)
	assert.Equal(t, Zero, b.Velocity)
}

func TestWorld_BodiesIsCopy(t *testing.T) {
	w := NewWorld(Zero, WithBodies(NewBody()))
	snapshot := w.Bodies()
	snapshot[0].Position = Vec2(99, 99)

	b, _ := w.Body(0)
	assert.Equal(t, Zero, b.Position)
	assert.Equal(t, 1, w.Len())
}

func TestWorld_InsertionOrderPreserved(t *testing.T) {
	w := NewWorld(Zero)
	for i := 0; i < 5; i++ {
		w.AddBody(NewBody(WithPosition(Vec2(float64(i), 0))))
	}
	w.Step(0.1)
	for i, b := range w.Bodies() {
		assert.Equal(t, float64(i), b.Position.X)
	}
}

func TestWorld_StateHashDeterministic(t *testing.T) {
	build := func() *World {
		return NewWorld(Vec2(0, 250),
			WithBounds(NewBounds(Vec2(0, 0), Vec2(350, 650))),
			WithBodies(
				NewBody(WithPosition(Vec2(150, 80)), WithShape(Circle(20)), WithRestitution(0.8), WithLinearDamping(0.03)),
				NewBody(WithPosition(Vec2(40, 300)), WithVelocity(Vec2(120, -30)), WithShape(Rect(Vec2(30, 10)))),
			))
	}
	a, b := build(), build()
	for i := 0; i < 600; i++ {
		require.NoError(t, a.ApplyForce(1, Vec2(5, 0)))
		require.NoError(t, b.ApplyForce(1, Vec2(5, 0)))
		a.Step(1.0 / 60)
		b.Step(1.0 / 60)
	}
	assert.Equal(t, a.StateHash(), b.StateHash())

	b.Step(1.0 / 60)
	assert.NotEqual(t, a.StateHash(), b.StateHash())
}
