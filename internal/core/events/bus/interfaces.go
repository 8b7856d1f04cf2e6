package bus

import "time"

// EventBus is an in-process pub/sub bus used to fan simulation output out to
// the host surfaces (network stream, terminal view, logs).
//
// Delivery is synchronous in the publisher's goroutine, so handlers must be
// quick. Handler errors are joined and returned from Publish. All methods are
// safe for concurrent use.
type EventBus interface {
	// Publish delivers the event to every active subscriber of event.Type().
	Publish(event Event) error
	// PublishWithFilters drops the event silently if any filter rejects it.
	PublishWithFilters(event Event, filters ...EventFilter) error
	// PublishBatch publishes events in order and joins their errors.
	PublishBatch(events ...Event) error

	Subscribe(eventType string, handler EventHandler) (Subscription, error)
	// Unsubscribe cancels sub. A nil sub is ignored.
	Unsubscribe(sub Subscription) error

	AddObserver(obs EventBusObserver)
	RemoveObserver(obs EventBusObserver)
	// GetMetrics is only populated while at least one observer is registered.
	GetMetrics() EventBusMetrics
}

// Event is an immutable message. Data carries the payload; consumers type
// assert it based on Type.
type Event interface {
	Type() string
	Source() string
	Timestamp() time.Time
	Data() any
	Metadata() map[string]any
}

type (
	EventHandler func(event Event) error
	EventFilter  func(event Event) bool
)

type Subscription interface {
	ID() string
	EventType() string
	IsActive() bool
	// Cancel de-registers the handler. Multiple calls are safe.
	Cancel() error
}

// EventBusObserver is notified about deliveries; implementations should
// return quickly.
type EventBusObserver interface {
	OnPublish(eventType string, event Event)
	OnDelivered(eventType string, handlers int, err error, took time.Duration)
}

type EventBusMetrics struct {
	Published         uint64
	DeliveredHandlers uint64
	Errors            uint64
	DroppedByFilters  uint64
	SubscribersActive uint64
}
