// pkg/event/event.go
package event

import (
	"sync"

	"github.com/opd-ai/rigid2d/pkg/physics"
)

// Type represents the type of event
type Type string

// Simulation event types
const (
	ContactBegan      Type = "contact_began"
	ContactEnded      Type = "contact_ended"
	BodyRemoved       Type = "body_removed"
	SimulationStarted Type = "simulation_started"
	SimulationStopped Type = "simulation_stopped"
)

// Event is the base interface for all events
type Event interface {
	GetType() Type
	GetSource() interface{}
}

// BaseEvent provides common functionality for all events
type BaseEvent struct {
	EventType Type
	Source    interface{}
}

// GetType returns the event type
func (e *BaseEvent) GetType() Type {
	return e.EventType
}

// GetSource returns the event source
func (e *BaseEvent) GetSource() interface{} {
	return e.Source
}

// Handler is a function that handles events
type Handler func(Event)

// SubscriptionID identifies one registered handler
type SubscriptionID uint64

// Subscription is returned by Subscribe; Cancel removes the handler
type Subscription struct {
	ID     SubscriptionID
	Type   Type
	Cancel func()
}

type subscriber struct {
	id      SubscriptionID
	handler Handler
}

// Bus manages event subscriptions and dispatches synchronously on the publishing goroutine
type Bus struct {
	handlers map[Type][]subscriber
	nextID   SubscriptionID
	mu       sync.RWMutex
}

// NewEventBus creates a new event bus
func NewEventBus() *Bus {
	return &Bus{
		handlers: make(map[Type][]subscriber),
		nextID:   1,
	}
}

// Subscribe registers a handler for a specific event type
func (b *Bus) Subscribe(eventType Type, handler Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.handlers[eventType] = append(b.handlers[eventType], subscriber{id: id, handler: handler})

	return &Subscription{
		ID:     id,
		Type:   eventType,
		Cancel: func() { b.Unsubscribe(id) },
	}
}

// Unsubscribe removes the handler registered under id. It reports whether one was found.
func (b *Bus) Unsubscribe(id SubscriptionID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, subs := range b.handlers {
		for i, s := range subs {
			if s.id != id {
				continue
			}
			remaining := make([]subscriber, 0, len(subs)-1)
			remaining = append(remaining, subs[:i]...)
			remaining = append(remaining, subs[i+1:]...)
			if len(remaining) == 0 {
				delete(b.handlers, eventType)
			} else {
				b.handlers[eventType] = remaining
			}
			return true
		}
	}
	return false
}

// HandlerCount returns the number of handlers subscribed to eventType
func (b *Bus) HandlerCount(eventType Type) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[eventType])
}

// Publish sends an event to all subscribed handlers in subscription order.
// Handlers may subscribe or unsubscribe while being called.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	subs := b.handlers[event.GetType()]
	b.mu.RUnlock()

	for _, s := range subs {
		s.handler(event)
	}
}

// ContactEvent reports two bodies starting or stopping touching
type ContactEvent struct {
	BaseEvent
	BodyA   string
	BodyB   string
	BodyAID physics.BodyID
	BodyBID physics.BodyID
}

// NewContactEvent creates a contact began/ended event
func NewContactEvent(eventType Type, source interface{}, bodyA, bodyB string, idA, idB physics.BodyID) *ContactEvent {
	return &ContactEvent{
		BaseEvent: BaseEvent{
			EventType: eventType,
			Source:    source,
		},
		BodyA:   bodyA,
		BodyB:   bodyB,
		BodyAID: idA,
		BodyBID: idB,
	}
}

// BodyEvent carries a single body, used for removal
type BodyEvent struct {
	BaseEvent
	Body   string
	BodyID physics.BodyID
}

// NewBodyEvent creates a body event
func NewBodyEvent(eventType Type, source interface{}, name string, id physics.BodyID) *BodyEvent {
	return &BodyEvent{
		BaseEvent: BaseEvent{
			EventType: eventType,
			Source:    source,
		},
		Body:   name,
		BodyID: id,
	}
}

// SimulationEvent marks lifecycle changes
type SimulationEvent struct {
	BaseEvent
	Scene string
	Tick  uint64
}

// NewSimulationEvent creates a lifecycle event
func NewSimulationEvent(eventType Type, source interface{}, scene string, tick uint64) *SimulationEvent {
	return &SimulationEvent{
		BaseEvent: BaseEvent{
			EventType: eventType,
			Source:    source,
		},
		Scene: scene,
		Tick:  tick,
	}
}
