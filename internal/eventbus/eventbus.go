// Package eventbus carries incident, recommendation, acknowledgment and unit
// events between the assignment manager, telemetry and the metrics collector.
package eventbus

// Event is any value published on a Bus. Producers publish the types of
// package core/events.
type Event interface{}

// EventBus is the untyped bus shared by the service components.
type EventBus interface {
	Publish(Event)
	Subscribe() <-chan Event
	Unsubscribe(<-chan Event)
	Close()
}

// Bus is a TypedBus of Event.
type Bus struct {
	*TypedBus[Event]
}

var _ EventBus = (*Bus)(nil)

func New() *Bus { return &Bus{TypedBus: NewTyped[Event](DefaultBuffer)} }
