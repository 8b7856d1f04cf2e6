package runner

import (
	"sync"
	"time"

	"github.com/zeusync/kinetic/internal/core/events/bus"
)

type Metrics struct {
	Frames            uint64
	Steps             uint64
	ClampedFrames     uint64
	Commands          uint64
	CommandErrors     uint64
	DroppedCommands   uint64
	AbandonedCommands uint64
	LastStepDuration  time.Duration
	AvgStepDuration   time.Duration
	MaxStepDuration   time.Duration
	StartedAt         time.Time
	LastFrameAt       time.Time

	// Delivery timings are only recorded while Run is active.
	Deliveries          uint64
	DeliveryErrors      uint64
	AvgDeliveryDuration time.Duration
	MaxDeliveryDuration time.Duration
	Bus                 bus.EventBusMetrics
}

type metricsRecorder struct {
	mu sync.RWMutex
	m  Metrics
}

func (r *metricsRecorder) frame(stepped, clamped bool, took time.Duration, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m.Frames++
	r.m.LastFrameAt = at
	if clamped {
		r.m.ClampedFrames++
	}
	if !stepped {
		return
	}
	r.m.Steps++
	r.m.LastStepDuration = took
	r.m.AvgStepDuration = (r.m.AvgStepDuration*time.Duration(r.m.Steps-1) + took) / time.Duration(r.m.Steps)
	r.m.MaxStepDuration = max(r.m.MaxStepDuration, took)
}

func (r *metricsRecorder) command(err error) {
	r.mu.Lock()
	r.m.Commands++
	if err != nil {
		r.m.CommandErrors++
	}
	r.mu.Unlock()
}

func (r *metricsRecorder) dropped() {
	r.mu.Lock()
	r.m.DroppedCommands++
	r.mu.Unlock()
}

func (r *metricsRecorder) abandoned() {
	r.mu.Lock()
	r.m.AbandonedCommands++
	r.mu.Unlock()
}

func (r *metricsRecorder) delivered(err error, took time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m.Deliveries++
	if err != nil {
		r.m.DeliveryErrors++
	}
	r.m.AvgDeliveryDuration = (r.m.AvgDeliveryDuration*time.Duration(r.m.Deliveries-1) + took) / time.Duration(r.m.Deliveries)
	r.m.MaxDeliveryDuration = max(r.m.MaxDeliveryDuration, took)
}

// deliveryObserver feeds bus delivery timings into the runner metrics.
type deliveryObserver struct {
	metrics *metricsRecorder
}

func (o *deliveryObserver) OnPublish(string, bus.Event) {}

func (o *deliveryObserver) OnDelivered(_ string, _ int, err error, took time.Duration) {
	o.metrics.delivered(err, took)
}

func (r *metricsRecorder) started(at time.Time) {
	r.mu.Lock()
	r.m.StartedAt = at
	r.mu.Unlock()
}

func (r *metricsRecorder) snapshot() Metrics {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.m
}
