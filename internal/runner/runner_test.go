package runner

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeusync/kinetic/internal/config"
	"github.com/zeusync/kinetic/internal/core/events/bus"
	"github.com/zeusync/kinetic/internal/core/observability/log"
	"github.com/zeusync/kinetic/internal/core/systems/physics"
)

const eps = 1e-9

func newTestRunner(t *testing.T, w *physics.World, cfg config.RunnerConfig, opts ...Option) *Runner {
	t.Helper()
	r, err := New(w, cfg, bus.New(), log.NewNop(), opts...)
	require.NoError(t, err)
	return r
}

func fallingWorld() *physics.World {
	return physics.NewWorld(physics.Vec2(0, -10), physics.WithBodies(physics.NewBody()))
}

func TestNew_NilWorld(t *testing.T) {
	_, err := New(nil, config.RunnerConfig{}, nil, nil)
	assert.ErrorIs(t, err, ErrNilWorld)
}

func TestNew_InitialSnapshot(t *testing.T) {
	r := newTestRunner(t, fallingWorld(), config.RunnerConfig{}, WithSession("s1"))

	f := r.Snapshot()
	assert.Equal(t, "s1", f.Session)
	assert.Equal(t, uint64(0), f.Seq)
	assert.Len(t, f.Bodies, 1)
	assert.Nil(t, f.Bounds)
	assert.Equal(t, physics.Vec2(0, -10), f.Gravity)
}

func TestTick_ClampsDelta(t *testing.T) {
	cfg := config.RunnerConfig{MaxStep: 50 * time.Millisecond}
	r := newTestRunner(t, physics.NewWorld(physics.Zero), cfg)
	t0 := time.Unix(1000, 0)

	f := r.Tick(t0)
	assert.Equal(t, 0.0, f.DT, "first tick only records the time")

	f = r.Tick(t0.Add(10 * time.Millisecond))
	assert.InDelta(t, 0.01, f.DT, eps)

	f = r.Tick(t0.Add(5 * time.Second))
	assert.InDelta(t, 0.05, f.DT, eps)

	f = r.Tick(t0)
	assert.Equal(t, 0.0, f.DT, "clock going backwards")

	m := r.Metrics()
	assert.Equal(t, uint64(4), m.Frames)
	assert.Equal(t, uint64(2), m.Steps)
	assert.Equal(t, uint64(2), m.ClampedFrames)
	assert.InDelta(t, 0.06, r.Snapshot().Time, eps)
}

func TestAdvance_MatchesWorldStep(t *testing.T) {
	r := newTestRunner(t, fallingWorld(), config.RunnerConfig{})

	f := r.Advance(1)
	require.Len(t, f.Bodies, 1)
	assert.InDelta(t, -10, f.Bodies[0].Velocity.Y, eps)
	assert.InDelta(t, -10, f.Bodies[0].Position.Y, eps)
	assert.Equal(t, uint64(1), f.Seq)

	reference := fallingWorld()
	reference.Step(1)
	assert.Equal(t, reference.StateHash(), f.Hash)
}

func TestAdvance_PublishesFramesAndContacts(t *testing.T) {
	w := physics.NewWorld(physics.Zero,
		physics.WithBounds(physics.NewBounds(physics.Vec2(0, 0), physics.Vec2(100, 100))),
		physics.WithBodies(physics.NewBody(
			physics.WithPosition(physics.Vec2(1, 50)),
			physics.WithVelocity(physics.Vec2(-8, 0)),
			physics.WithShape(physics.Circle(1)),
		)),
	)
	r := newTestRunner(t, w, config.RunnerConfig{})

	var frames []Frame
	var contacts [][]physics.Contact
	_, err := r.Bus().Subscribe(EventFrame, func(e bus.Event) error {
		frames = append(frames, e.Data().(Frame))
		return nil
	})
	require.NoError(t, err)
	_, err = r.Bus().Subscribe(EventContact, func(e bus.Event) error {
		contacts = append(contacts, e.Data().([]physics.Contact))
		return nil
	})
	require.NoError(t, err)

	r.Advance(0.25)
	r.Advance(0.25)

	require.Len(t, frames, 2)
	require.Len(t, frames[0].Contacts, 1)
	assert.Equal(t, physics.AxisX, frames[0].Contacts[0].Axis)
	assert.Empty(t, frames[1].Contacts)
	require.Len(t, contacts, 1)
}

func TestApplyForce_AppliedBeforeNextStep(t *testing.T) {
	r := newTestRunner(t, physics.NewWorld(physics.Zero, physics.WithBodies(physics.NewBody(physics.WithMass(2)))), config.RunnerConfig{})

	errCh := make(chan error, 1)
	go func() { errCh <- r.ApplyForce(context.Background(), 0, physics.Vec2(4, 0)) }()
	require.Eventually(t, func() bool { return len(r.commands) == 1 }, time.Second, time.Millisecond)

	f := r.Advance(1)
	require.NoError(t, <-errCh)
	assert.InDelta(t, 2, f.Bodies[0].Velocity.X, eps)
	assert.Equal(t, physics.Zero, f.Bodies[0].AccumulatedForce())
}

func TestApplyForce_BadIndex(t *testing.T) {
	r := newTestRunner(t, fallingWorld(), config.RunnerConfig{})

	errCh := make(chan error, 1)
	go func() { errCh <- r.ApplyForce(context.Background(), 5, physics.Vec2(1, 0)) }()
	require.Eventually(t, func() bool { return len(r.commands) == 1 }, time.Second, time.Millisecond)
	r.Advance(0)

	assert.ErrorIs(t, <-errCh, physics.ErrBodyNotFound)
	assert.Equal(t, uint64(1), r.Metrics().CommandErrors)
}

func TestSubmit_QueueFull(t *testing.T) {
	r := newTestRunner(t, fallingWorld(), config.RunnerConfig{CommandBuffer: 1})

	errCh := make(chan error, 1)
	go func() { errCh <- r.ApplyForce(context.Background(), 0, physics.Zero) }()
	require.Eventually(t, func() bool { return len(r.commands) == 1 }, time.Second, time.Millisecond)

	err := r.ApplyForce(context.Background(), 0, physics.Zero)
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, uint64(1), r.Metrics().DroppedCommands)

	r.Advance(0)
	require.NoError(t, <-errCh)
}

func TestSubmit_ContextCancelled(t *testing.T) {
	r := newTestRunner(t, fallingWorld(), config.RunnerConfig{})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := r.ApplyForce(ctx, 0, physics.Vec2(100, 0))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	f := r.Advance(1)
	assert.Equal(t, 0.0, f.Bodies[0].Velocity.X, "abandoned command must not be applied")
	m := r.Metrics()
	assert.Equal(t, uint64(1), m.AbandonedCommands)
	assert.Zero(t, m.Commands)
}

func TestRun_ServesCommands(t *testing.T) {
	r := newTestRunner(t, fallingWorld(), config.RunnerConfig{FPS: 500})
	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	var runErr error
	go func() {
		defer wg.Done()
		runErr = r.Run(ctx)
	}()

	require.Eventually(t, func() bool { return r.Metrics().Frames > 2 }, 2*time.Second, time.Millisecond)
	assert.ErrorIs(t, r.Run(ctx), ErrAlreadyRunning)

	opCtx, opCancel := context.WithTimeout(ctx, time.Second)
	defer opCancel()
	idx, err := r.AddBody(opCtx, physics.NewBody(physics.WithPosition(physics.Vec2(5, 5))))
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
	require.NoError(t, r.ApplyForce(opCtx, idx, physics.Vec2(1, 0)))

	require.Eventually(t, func() bool { return len(r.Snapshot().Bodies) == 2 }, time.Second, time.Millisecond)

	cancel()
	wg.Wait()
	assert.NoError(t, runErr)
	m := r.Metrics()
	assert.False(t, m.StartedAt.IsZero())
	assert.Positive(t, m.Deliveries)
	assert.Positive(t, m.Bus.Published)
	assert.Zero(t, m.DeliveryErrors)
}

func TestReset_SwapsWorld(t *testing.T) {
	r := newTestRunner(t, fallingWorld(), config.RunnerConfig{})
	resets := 0
	_, _ = r.Bus().Subscribe(EventReset, func(e bus.Event) error {
		resets++
		return nil
	})
	r.Advance(0.5)

	next := physics.NewWorld(physics.Zero, physics.WithBodies(physics.NewBody(), physics.NewBody()))
	errCh := make(chan error, 1)
	go func() { errCh <- r.Reset(context.Background(), next) }()
	require.Eventually(t, func() bool { return len(r.commands) == 1 }, time.Second, time.Millisecond)

	f := r.Advance(0.5)
	require.NoError(t, <-errCh)
	assert.Len(t, f.Bodies, 2)
	assert.Equal(t, 1, resets)
	assert.InDelta(t, 1.0, f.Time, eps)

	assert.ErrorIs(t, r.Reset(context.Background(), nil), ErrNilWorld)
}

func TestReset_DropsOldContacts(t *testing.T) {
	w := physics.NewWorld(physics.Zero,
		physics.WithBounds(physics.NewBounds(physics.Vec2(0, 0), physics.Vec2(10, 10))),
		physics.WithBodies(physics.NewBody(
			physics.WithPosition(physics.Vec2(0, 5)),
			physics.WithShape(physics.Circle(1)),
		)),
	)
	r := newTestRunner(t, w, config.RunnerConfig{})
	require.Len(t, r.Advance(0.1).Contacts, 1)

	var reset Frame
	_, err := r.Bus().Subscribe(EventReset, func(e bus.Event) error {
		reset = e.Data().(Frame)
		return nil
	})
	require.NoError(t, err)
	var frames []Frame
	_, err = r.Bus().Subscribe(EventFrame, func(e bus.Event) error {
		frames = append(frames, e.Data().(Frame))
		return nil
	})
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- r.Reset(context.Background(), physics.NewWorld(physics.Zero)) }()
	require.Eventually(t, func() bool { return len(r.commands) == 1 }, time.Second, time.Millisecond)
	r.drain()

	require.NoError(t, <-errCh)
	assert.Empty(t, reset.Contacts)
	assert.Empty(t, r.Snapshot().Contacts)
	require.Len(t, frames, 1, "reset is followed by a frame of the new world")
	assert.Empty(t, frames[0].Bodies)
}

func TestPublish_ContactEventsOnlyWithContacts(t *testing.T) {
	r := newTestRunner(t, fallingWorld(), config.RunnerConfig{})
	contactEvents := 0
	_, err := r.Bus().Subscribe(EventContact, func(bus.Event) error {
		contactEvents++
		return nil
	})
	require.NoError(t, err)

	r.Advance(0.1)
	r.Advance(0.1)
	assert.Zero(t, contactEvents)
}
