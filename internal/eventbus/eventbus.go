package eventbus

// Event represents an arbitrary event passed on the bus.
type Event = any

// EventBus implements a simple publish/subscribe event bus.
type EventBus interface {
	Publish(Event)
	Subscribe() <-chan Event
	Unsubscribe(<-chan Event)
	Close()
}

// Bus is the default EventBus, a TypedBus carrying untyped events.
type Bus struct {
	*TypedBus[Event]
}

// New creates a new Bus.
func New() *Bus { return &Bus{TypedBus: NewTyped[Event]()} }

// NewWithBuffer creates a Bus whose subscribers buffer n events.
func NewWithBuffer(n int) *Bus { return &Bus{TypedBus: NewTypedWithBuffer[Event](n)} }
