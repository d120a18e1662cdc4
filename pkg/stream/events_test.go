package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/rigid2d/pkg/event"
	"github.com/opd-ai/rigid2d/pkg/physics"
)

func TestNoticeFor(t *testing.T) {
	tests := []struct {
		name string
		in   event.Event
		want Notice
	}{
		{
			name: "contact",
			in:   event.NewContactEvent(event.ContactBegan, nil, "ball", "ground", physics.BodyID{}, physics.BodyID{Index: 1}),
			want: Notice{Event: "contact_began", BodyA: "ball", BodyB: "ground"},
		},
		{
			name: "body removed",
			in:   event.NewBodyEvent(event.BodyRemoved, nil, "crate0", physics.BodyID{Index: 2}),
			want: Notice{Event: "body_removed", Body: "crate0"},
		},
		{
			name: "lifecycle",
			in:   event.NewSimulationEvent(event.SimulationStopped, nil, "demo", 42),
			want: Notice{Event: "simulation_stopped", Scene: "demo", Tick: 42},
		},
		{
			name: "other",
			in:   &event.BaseEvent{EventType: "custom"},
			want: Notice{Event: "custom"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NoticeFor(tt.in))
		})
	}
}

func TestServer_ForwardRelaysBusEvents(t *testing.T) {
	s, _, url := newTestServer(t, 0)
	bus := event.NewEventBus()
	stop := s.Forward(bus)

	for _, typ := range ForwardedEvents {
		assert.Equal(t, 1, bus.HandlerCount(typ), "handler for %s", typ)
	}

	c := dial(t, url)
	env, err := c.Next()
	require.NoError(t, err)
	require.Equal(t, TypeHello, env.Type)
	waitForClients(t, s, 1)

	bus.Publish(event.NewContactEvent(event.ContactEnded, nil, "a", "b", physics.BodyID{}, physics.BodyID{Index: 1}))

	env, err = c.Next()
	require.NoError(t, err)
	assert.Equal(t, TypeEvent, env.Type)
	var notice Notice
	require.NoError(t, env.Decode(&notice))
	assert.Equal(t, Notice{Event: "contact_ended", BodyA: "a", BodyB: "b"}, notice)

	stop()
	for _, typ := range ForwardedEvents {
		assert.Equal(t, 0, bus.HandlerCount(typ), "handler for %s", typ)
	}
}
