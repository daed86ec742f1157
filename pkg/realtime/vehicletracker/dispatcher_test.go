package vehicletracker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/fleettracker/pkg/ctdf"
)

type captureSink struct {
	mu     sync.Mutex
	events []ctdf.Event
	err    error
}

func (s *captureSink) Name() string {
	return "capture"
}

func (s *captureSink) Send(event ctdf.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return s.err
}

func (s *captureSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestAsyncDispatcherDeliversToEverySink(t *testing.T) {
	first := &captureSink{err: errors.New("sink unavailable")}
	second := &captureSink{}

	dispatcher := NewAsyncDispatcher(16, first, second)

	ctx, cancel := context.WithCancel(context.Background())
	dispatcher.Start(ctx)

	dispatcher.Dispatch(
		ctdf.Event{Type: ctdf.EventTypeTrackingSessionStarted},
		ctdf.Event{Type: ctdf.EventTypeTrackingAlertCreated},
	)

	cancel()
	dispatcher.Wait()

	assert.Equal(t, 2, first.Len())
	assert.Equal(t, 2, second.Len())
	assert.Equal(t, ctdf.EventTypeTrackingAlertCreated, second.events[1].Type)
}

func TestAsyncDispatcherDropsWhenFull(t *testing.T) {
	sink := &captureSink{}
	dispatcher := NewAsyncDispatcher(2, sink)

	// not started so nothing drains the buffer
	dispatcher.Dispatch(
		ctdf.Event{Type: ctdf.EventTypeTrackingSessionStarted},
		ctdf.Event{Type: ctdf.EventTypeTrackingAlertCreated},
		ctdf.Event{Type: ctdf.EventTypeTrackingSessionEnded},
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dispatcher.Start(ctx)
	dispatcher.Wait()

	require.Equal(t, 2, sink.Len())
	assert.Equal(t, ctdf.EventTypeTrackingSessionStarted, sink.events[0].Type)
	assert.Equal(t, ctdf.EventTypeTrackingAlertCreated, sink.events[1].Type)
}

func TestTrackerEventsReachQueueSink(t *testing.T) {
	publisher := &fakePublisher{}
	dispatcher := NewAsyncDispatcher(64, &QueueSink{Queue: publisher})

	config := DefaultConfig()
	tracker := NewTracker(config, WithDispatcher(dispatcher))

	ctx, cancel := context.WithCancel(context.Background())
	dispatcher.Start(ctx)

	session := startTestSession(t, tracker, StartSessionRequest{BusRef: "bus-7"})
	_, err := tracker.TriggerEmergency(session.PrimaryIdentifier, EmergencyRequest{
		Type:        ctdf.EmergencyTypePanic,
		Description: "Passenger taken ill",
	})
	require.NoError(t, err)

	cancel()
	dispatcher.Wait()

	var types []ctdf.EventType
	var emergency *ctdf.TrackingEvent
	for _, payload := range publisher.payloads {
		var event ctdf.TrackingEvent
		require.NoError(t, json.Unmarshal(payload, &event))
		types = append(types, event.Type)

		if event.Type == ctdf.EventTypeEmergencyTriggered {
			emergency = &event
		}
	}

	assert.Contains(t, types, ctdf.EventTypeTrackingSessionStarted)
	require.NotNil(t, emergency)
	assert.Equal(t, "bus-7", emergency.Body.BusRef)
	require.NotNil(t, emergency.Body.Emergency)
	assert.Equal(t, "Passenger taken ill", emergency.Body.Emergency.Description)
	assert.True(t, emergency.ShouldNotify())
}
