package stream

import (
	"context"

	"github.com/opd-ai/rigid2d/pkg/event"
)

// Notice is the payload of an event message
type Notice struct {
	Event string `json:"event"`
	BodyA string `json:"bodyA,omitempty"`
	BodyB string `json:"bodyB,omitempty"`
	Body  string `json:"body,omitempty"`
	Scene string `json:"scene,omitempty"`
	Tick  uint64 `json:"tick,omitempty"`
}

// NoticeFor converts a bus event into its wire form. Unknown event kinds are reported
// by type only.
func NoticeFor(e event.Event) Notice {
	n := Notice{Event: string(e.GetType())}
	switch ev := e.(type) {
	case *event.ContactEvent:
		n.BodyA, n.BodyB = ev.BodyA, ev.BodyB
	case *event.BodyEvent:
		n.Body = ev.Body
	case *event.SimulationEvent:
		n.Scene, n.Tick = ev.Scene, ev.Tick
	}
	return n
}

// ForwardedEvents are the bus events Forward relays to clients
var ForwardedEvents = []event.Type{
	event.ContactBegan,
	event.ContactEnded,
	event.BodyRemoved,
	event.SimulationStarted,
	event.SimulationStopped,
}

// Forward broadcasts every ForwardedEvents event published on bus as an event message.
// The returned function removes the subscriptions.
func (s *Server) Forward(bus *event.Bus) func() {
	subs := make([]*event.Subscription, 0, len(ForwardedEvents))
	for _, t := range ForwardedEvents {
		subs = append(subs, bus.Subscribe(t, func(e event.Event) {
			if s.ClientCount() == 0 {
				return
			}
			if _, err := s.Broadcast(Message{Type: TypeEvent, Data: NoticeFor(e)}); err != nil {
				s.logger.Error(context.Background(), "event broadcast failed", err, "event", string(e.GetType()))
			}
		}))
	}
	return func() {
		for _, sub := range subs {
			sub.Cancel()
		}
	}
}
