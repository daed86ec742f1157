package vehicletracker

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/rs/zerolog/log"
	"github.com/travigo/fleettracker/pkg/consumer"
	"github.com/travigo/fleettracker/pkg/ctdf"
)

const TrackingQueueName = "tracking-queue"

const numConsumers = 5
const batchSize = 200
const batchTimeout = 2 * time.Second

// errMalformedPayload marks deliveries that can never be applied and are rejected
var errMalformedPayload = errors.New("malformed tracking update")

type BatchConsumer struct {
	tracker *Tracker
}

func NewBatchConsumer(tracker *Tracker) *BatchConsumer {
	return &BatchConsumer{tracker: tracker}
}

func (c *BatchConsumer) Consume(batch rmq.Deliveries) {
	for _, delivery := range batch {
		err := c.handlePayload(delivery.Payload())

		if errors.Is(err, errMalformedPayload) {
			log.Error().Err(err).Msg("Rejecting tracking update")

			if err := delivery.Reject(); err != nil {
				log.Error().Err(err).Msg("Failed to reject tracking update")
			}
			continue
		}

		if err != nil {
			// domain errors will not succeed on retry
			log.Debug().Err(err).Msg("Tracking update not applied")
		}

		if err := delivery.Ack(); err != nil {
			log.Error().Err(err).Msg("Failed to ack tracking update")
		}
	}
}

func (c *BatchConsumer) handlePayload(payload string) error {
	var event ctdf.TrackingUpdateEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return fmt.Errorf("%w: %w", errMalformedPayload, err)
	}

	identifier := event.SessionRef
	if identifier == "" {
		if event.BusRef == "" {
			return fmt.Errorf("%w: no session or bus reference", errMalformedPayload)
		}

		var err error
		identifier, err = c.tracker.FindLiveSessionByBus(event.BusRef)
		if err != nil {
			return err
		}
	}

	switch event.MessageType {
	case ctdf.TrackingUpdateMessageTypeLocation:
		if event.Location == nil {
			return fmt.Errorf("%w: location message without location", errMalformedPayload)
		}

		_, err := c.tracker.ApplyLocationUpdate(identifier, *event.Location)
		return err
	case ctdf.TrackingUpdateMessageTypeHeartbeat:
		heartbeat := ctdf.Heartbeat{Timestamp: event.RecordedAt}
		if event.Heartbeat != nil {
			heartbeat = *event.Heartbeat
		}

		return c.tracker.Heartbeat(identifier, heartbeat)
	default:
		return fmt.Errorf("%w: unknown message type %q", errMalformedPayload, event.MessageType)
	}
}

// StartConsumers attaches the batch consumers to the tracking queue
func StartConsumers(connection rmq.Connection, tracker *Tracker) error {
	redisConsumer := consumer.RedisConsumer{
		QueueName:       TrackingQueueName,
		NumberConsumers: numConsumers,
		BatchSize:       batchSize,
		Timeout:         batchTimeout,
		Consumer:        NewBatchConsumer(tracker),
	}

	_, err := redisConsumer.Start(connection)
	return err
}
