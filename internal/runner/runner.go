package runner

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/zeusync/kinetic/internal/config"
	"github.com/zeusync/kinetic/internal/core/events/bus"
	"github.com/zeusync/kinetic/internal/core/observability/log"
	"github.com/zeusync/kinetic/internal/core/systems/physics"
)

const eventSource = "runner"

// Runner drives a world from a wall clock. It is the only writer of the
// world: other goroutines reach it through queued commands that are applied
// right before the next step, and read it through immutable Frames.
//
// Tick and Advance must be called from a single goroutine; Run does so.
type Runner struct {
	cfg     config.RunnerConfig
	bus     bus.EventBus
	log     log.Log
	session string
	now     func() time.Time

	commands chan *command
	running  atomic.Bool

	// owned by the stepping goroutine
	world    *physics.World
	last     time.Time
	seq      uint64
	simTime  float64
	contacts []physics.Contact

	mu     sync.RWMutex
	latest Frame

	metrics metricsRecorder
}

// Command states. A command is applied only if the stepping goroutine takes
// it before its submitter gives up.
const (
	commandPending int32 = iota
	commandTaken
	commandAbandoned
)

type command struct {
	apply func() error
	done  chan error
	state atomic.Int32
}

type Option func(*Runner)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option { return func(r *Runner) { r.now = now } }

func WithSession(id string) Option { return func(r *Runner) { r.session = id } }

func New(world *physics.World, cfg config.RunnerConfig, eventBus bus.EventBus, logger log.Log, opts ...Option) (*Runner, error) {
	if world == nil {
		return nil, ErrNilWorld
	}
	if cfg.FPS <= 0 {
		cfg.FPS = config.DefaultFPS
	}
	if cfg.MaxStep <= 0 {
		cfg.MaxStep = config.DefaultMaxStep
	}
	if cfg.CommandBuffer <= 0 {
		cfg.CommandBuffer = config.DefaultCommandBuffer
	}
	if eventBus == nil {
		eventBus = bus.New()
	}
	if logger == nil {
		logger = log.NewNop()
	}

	r := &Runner{
		cfg:      cfg,
		bus:      eventBus,
		session:  uuid.NewString(),
		now:      time.Now,
		commands: make(chan *command, cfg.CommandBuffer),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = logger.With(log.String("component", "runner"), log.String("session", r.session))
	r.install(world)
	return r, nil
}

func (r *Runner) Session() string   { return r.session }
func (r *Runner) Bus() bus.EventBus { return r.bus }

// Metrics reports frame and command counters. Bus delivery timings are
// recorded while Run is active.
func (r *Runner) Metrics() Metrics {
	m := r.metrics.snapshot()
	m.Bus = r.bus.GetMetrics()
	return m
}

// Snapshot returns the most recent frame.
func (r *Runner) Snapshot() Frame {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latest
}

// Run ticks at the configured rate until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer r.running.Store(false)

	obs := &deliveryObserver{metrics: &r.metrics}
	r.bus.AddObserver(obs)
	defer r.bus.RemoveObserver(obs)

	interval := time.Second / time.Duration(r.cfg.FPS)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	start := r.now()
	r.last = start
	r.metrics.started(start)
	r.log.Info("runner started",
		log.Int("fps", r.cfg.FPS),
		log.Duration("max_step", r.cfg.MaxStep),
		log.Int("bodies", r.world.Len()),
	)

	for {
		select {
		case <-ctx.Done():
			m := r.metrics.snapshot()
			r.log.Info("runner stopped",
				log.Uint64("frames", m.Frames),
				log.Duration("avg_step", m.AvgStepDuration),
			)
			return nil
		case <-ticker.C:
			r.Tick(r.now())
		}
	}
}

// Tick steps the world by the wall-clock time elapsed since the previous
// tick, clamped to [0, MaxStep]. The first tick only records the time.
func (r *Runner) Tick(now time.Time) Frame {
	var elapsed time.Duration
	if !r.last.IsZero() {
		elapsed = now.Sub(r.last)
	}
	r.last = now

	clamped := false
	switch {
	case elapsed < 0:
		elapsed, clamped = 0, true
	case elapsed > r.cfg.MaxStep:
		elapsed, clamped = r.cfg.MaxStep, true
	}
	if clamped {
		r.log.Debug("frame delta clamped", log.Duration("delta", elapsed))
	}
	return r.advance(elapsed.Seconds(), clamped, now)
}

// Advance steps the world by exactly dt seconds, bypassing the clock.
func (r *Runner) Advance(dt float64) Frame {
	return r.advance(dt, false, r.now())
}

func (r *Runner) advance(dt float64, clamped bool, at time.Time) Frame {
	r.drain()

	r.contacts = r.contacts[:0]
	start := time.Now()
	r.world.Step(dt)
	took := time.Since(start)

	if dt > 0 {
		r.simTime += dt
	}
	r.seq++

	frame := r.frame(dt)
	r.mu.Lock()
	r.latest = frame
	r.mu.Unlock()

	r.metrics.frame(dt > 0, clamped, took, at)
	r.publish(frame)
	return frame
}

func (r *Runner) frame(dt float64) Frame {
	gravity, bounds, bodies := snapshot(r.world)
	return Frame{
		Session:  r.session,
		Seq:      r.seq,
		DT:       dt,
		Time:     r.simTime,
		Hash:     r.world.StateHash(),
		Gravity:  gravity,
		Bounds:   bounds,
		Bodies:   bodies,
		Contacts: slices.Clone(r.contacts),
	}
}

func (r *Runner) publish(frame Frame) {
	meta := map[string]any{"session": r.session, "seq": frame.Seq}
	for _, c := range frame.Contacts {
		r.log.Debug("boundary contact",
			log.Int("body", c.Body),
			log.Stringer("axis", c.Axis),
			log.Stringer("side", c.Side),
			log.Float64("penetration", c.Penetration),
			log.Bool("reflected", c.Reflected),
		)
	}
	err := errors.Join(
		r.bus.Publish(bus.NewEvent(EventFrame, eventSource, frame, meta)),
		r.bus.PublishWithFilters(bus.NewEvent(EventContact, eventSource, frame.Contacts, meta), hasContacts),
	)
	if err != nil {
		r.log.Warn("frame subscriber failed", log.Uint64("seq", frame.Seq), log.Error(err))
	}
}

func hasContacts(e bus.Event) bool {
	contacts, ok := e.Data().([]physics.Contact)
	return ok && len(contacts) > 0
}

// install makes w the simulated world. Runs on the stepping goroutine, or
// before it starts.
func (r *Runner) install(w *physics.World) {
	w.SetContactHandler(func(c physics.Contact) { r.contacts = append(r.contacts, c) })
	r.world = w
	// contacts collected so far belong to the previous world
	r.contacts = r.contacts[:0]
	r.mu.Lock()
	r.latest = r.frame(0)
	r.mu.Unlock()
}

func (r *Runner) drain() {
	for {
		select {
		case cmd := <-r.commands:
			if !cmd.state.CompareAndSwap(commandPending, commandTaken) {
				r.metrics.abandoned()
				continue
			}
			err := cmd.apply()
			r.metrics.command(err)
			cmd.done <- err
		default:
			return
		}
	}
}

// submit queues fn for the stepping goroutine and waits for its result. If
// ctx ends before the command is taken, it is never applied.
func (r *Runner) submit(ctx context.Context, fn func() error) error {
	cmd := &command{apply: fn, done: make(chan error, 1)}
	select {
	case r.commands <- cmd:
	default:
		r.metrics.dropped()
		r.log.Warn("command dropped", log.Int("queued", len(r.commands)))
		return ErrQueueFull
	}
	select {
	case err := <-cmd.done:
		return err
	case <-ctx.Done():
		if cmd.state.CompareAndSwap(commandPending, commandAbandoned) {
			return ctx.Err()
		}
		// already taken; apply runs to completion
		return <-cmd.done
	}
}

// ApplyForce adds f to body i before the next step.
func (r *Runner) ApplyForce(ctx context.Context, i int, f physics.Vector2) error {
	return r.submit(ctx, func() error { return r.world.ApplyForce(i, f) })
}

// AddBody appends b before the next step and returns its index.
func (r *Runner) AddBody(ctx context.Context, b physics.Body) (int, error) {
	var idx int
	err := r.submit(ctx, func() error {
		r.world.AddBody(b)
		idx = r.world.Len() - 1
		return nil
	})
	return idx, err
}

// Reset swaps in a new world, e.g. after the scene file changed. Simulated
// time and the frame sequence carry on.
func (r *Runner) Reset(ctx context.Context, w *physics.World) error {
	if w == nil {
		return ErrNilWorld
	}
	return r.submit(ctx, func() error {
		r.install(w)
		r.log.Info("world reset", log.Int("bodies", w.Len()))
		// also sent as a frame so subscribers see the new world before the next step
		frame := r.Snapshot()
		meta := map[string]any{"session": r.session, "seq": frame.Seq}
		return r.bus.PublishBatch(
			bus.NewEvent(EventReset, eventSource, frame, meta),
			bus.NewEvent(EventFrame, eventSource, frame, meta),
		)
	})
}
