package events

import (
	"encoding/json"

	"github.com/adjust/rmq/v5"
	"github.com/rs/zerolog/log"
	"github.com/travigo/fleettracker/pkg/ctdf"
)

const EventsQueueName = "events-queue"
const NotifyQueueName = "notify-queue"

// Publisher is satisfied by rmq.Queue
type Publisher interface {
	PublishBytes(payload ...[]byte) error
}

type EventsBatchConsumer struct {
	NotifyQueue Publisher
}

func NewEventsBatchConsumer(notifyQueue Publisher) *EventsBatchConsumer {
	return &EventsBatchConsumer{NotifyQueue: notifyQueue}
}

func (consumer *EventsBatchConsumer) Consume(batch rmq.Deliveries) {
	for _, delivery := range batch {
		var event ctdf.TrackingEvent
		if err := json.Unmarshal([]byte(delivery.Payload()), &event); err != nil {
			log.Error().Err(err).Msg("Failed to decode event")

			if err := delivery.Reject(); err != nil {
				log.Error().Err(err).Msg("Failed to reject event")
			}
			continue
		}

		log.Debug().
			Str("type", string(event.Type)).
			Str("session", event.Body.SessionRef).
			Msg("Received event")

		if event.ShouldNotify() {
			if err := consumer.notify(&event); err != nil {
				log.Error().Err(err).Str("type", string(event.Type)).Msg("Failed to publish notification")

				// leave it unacked so it is returned to the queue by the cleaner
				continue
			}
		}

		if err := delivery.Ack(); err != nil {
			log.Error().Err(err).Msg("Failed to ack event")
		}
	}
}

func (consumer *EventsBatchConsumer) notify(event *ctdf.TrackingEvent) error {
	notificationBytes, err := json.Marshal(NewNotification(event))
	if err != nil {
		return err
	}

	return consumer.NotifyQueue.PublishBytes(notificationBytes)
}
