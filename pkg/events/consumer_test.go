package events

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/fleettracker/pkg/ctdf"
)

type fakePublisher struct {
	payloads [][]byte
	err      error
}

func (p *fakePublisher) PublishBytes(payload ...[]byte) error {
	if p.err != nil {
		return p.err
	}
	p.payloads = append(p.payloads, payload...)
	return nil
}

func eventDelivery(t *testing.T, event ctdf.Event) *rmq.TestDelivery {
	t.Helper()

	payload, err := json.Marshal(event)
	require.NoError(t, err)

	return rmq.NewTestDeliveryString(string(payload))
}

func TestConsumePublishesNotifications(t *testing.T) {
	notifyQueue := &fakePublisher{}
	consumer := NewEventsBatchConsumer(notifyQueue)

	timestamp := time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

	urgentAlert := eventDelivery(t, ctdf.Event{
		Type:      ctdf.EventTypeTrackingAlertCreated,
		Timestamp: timestamp,
		Body: ctdf.TrackingEventBody{
			SessionRef: "TRACKING:1",
			BusRef:     "bus-1",
			Alert: &ctdf.Alert{
				Type:     ctdf.AlertTypeSpeedViolation,
				Severity: ctdf.AlertSeverityCritical,
				Message:  "Speed 120.0 km/h exceeds limit",
			},
		},
	})
	minorAlert := eventDelivery(t, ctdf.Event{
		Type:      ctdf.EventTypeTrackingAlertCreated,
		Timestamp: timestamp,
		Body: ctdf.TrackingEventBody{
			SessionRef: "TRACKING:1",
			BusRef:     "bus-1",
			Alert: &ctdf.Alert{
				Type:     ctdf.AlertTypeGeofenceEntry,
				Severity: ctdf.AlertSeverityLow,
				Message:  "Entered Depot",
			},
		},
	})
	started := eventDelivery(t, ctdf.Event{
		Type:      ctdf.EventTypeTrackingSessionStarted,
		Timestamp: timestamp,
		Body:      ctdf.TrackingEventBody{SessionRef: "TRACKING:1"},
	})
	broken := rmq.NewTestDeliveryString("not json")

	consumer.Consume(rmq.Deliveries{urgentAlert, minorAlert, started, broken})

	assert.Equal(t, rmq.Acked, urgentAlert.State)
	assert.Equal(t, rmq.Acked, minorAlert.State)
	assert.Equal(t, rmq.Acked, started.State)
	assert.Equal(t, rmq.Rejected, broken.State)

	require.Len(t, notifyQueue.payloads, 1)

	var notification ctdf.Notification
	require.NoError(t, json.Unmarshal(notifyQueue.payloads[0], &notification))
	assert.Equal(t, ctdf.NotificationTypePush, notification.Type)
	assert.Equal(t, ctdf.NotificationTopicOperations, notification.TargetTopic)
	assert.Equal(t, "critical alert on bus-1", notification.Title)
	assert.Equal(t, "Speed 120.0 km/h exceeds limit", notification.Message)
}

func TestConsumeLeavesEventUnackedWhenPublishFails(t *testing.T) {
	consumer := NewEventsBatchConsumer(&fakePublisher{err: errors.New("redis down")})

	offline := eventDelivery(t, ctdf.Event{
		Type: ctdf.EventTypeTrackingSessionOffline,
		Body: ctdf.TrackingEventBody{SessionRef: "TRACKING:2", BusRef: "bus-2"},
	})

	consumer.Consume(rmq.Deliveries{offline})

	assert.Equal(t, rmq.Unacked, offline.State)
}

func TestNewNotification(t *testing.T) {
	notification := NewNotification(&ctdf.TrackingEvent{
		Type: ctdf.EventTypeEmergencyTriggered,
		Body: ctdf.TrackingEventBody{
			SessionRef: "TRACKING:3",
			Emergency:  &ctdf.Emergency{Description: "Collision at junction"},
		},
	})

	assert.Equal(t, "Emergency on TRACKING:3", notification.Title)
	assert.Equal(t, "Collision at junction", notification.Message)
	assert.Empty(t, notification.TargetUser)
}

func TestNewNotificationTrimsMessage(t *testing.T) {
	long := make([]byte, 500)
	for i := range long {
		long[i] = 'a'
	}

	notification := NewNotification(&ctdf.TrackingEvent{
		Type: ctdf.EventTypeTrackingAlertCreated,
		Body: ctdf.TrackingEventBody{
			BusRef: "bus-9",
			Alert:  &ctdf.Alert{Severity: ctdf.AlertSeverityHigh, Message: string(long)},
		},
	})

	assert.Len(t, notification.Message, maxNotificationMessageLength)
}

func TestTestEmergencyEventIsNotified(t *testing.T) {
	notifyQueue := &fakePublisher{}
	consumer := NewEventsBatchConsumer(notifyQueue)

	delivery := eventDelivery(t, newTestEmergencyEvent("bus-9", time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)))
	consumer.Consume(rmq.Deliveries{delivery})

	assert.Equal(t, rmq.Acked, delivery.State)
	require.Len(t, notifyQueue.payloads, 1)

	var notification ctdf.Notification
	require.NoError(t, json.Unmarshal(notifyQueue.payloads[0], &notification))
	assert.Equal(t, ctdf.NotificationTypePush, notification.Type)
	assert.Equal(t, map[string]string{
		"event":     string(ctdf.EventTypeEmergencyTriggered),
		"session":   "TRACKING:TEST",
		"bus":       "bus-9",
		"emergency": "EMERGENCY:TEST",
	}, notification.Data)
}
