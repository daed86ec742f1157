package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/rs/zerolog/log"
	"github.com/travigo/fleettracker/pkg/ctdf"
)

const sendTimeout = 10 * time.Second

type NotifyBatchConsumer struct {
	PushManager *PushManager
}

func NewNotifyBatchConsumer(pushManager *PushManager) *NotifyBatchConsumer {
	return &NotifyBatchConsumer{PushManager: pushManager}
}

func (c *NotifyBatchConsumer) Consume(batch rmq.Deliveries) {
	for _, delivery := range batch {
		var notification ctdf.Notification
		if err := json.Unmarshal([]byte(delivery.Payload()), &notification); err != nil {
			log.Error().Err(err).Msg("Failed to decode notification")

			if err := delivery.Reject(); err != nil {
				log.Error().Err(err).Msg("Failed to reject notification")
			}
			continue
		}

		switch notification.Type {
		case ctdf.NotificationTypePush:
			ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
			err := c.PushManager.SendPush(ctx, notification)
			cancel()

			if err != nil {
				log.Error().Err(err).Str("title", notification.Title).Msg("Failed to send push notification")
			}
		default:
			log.Warn().Str("type", string(notification.Type)).Msg("Unsupported notification type")
		}

		if err := delivery.Ack(); err != nil {
			log.Error().Err(err).Msg("Failed to ack notification")
		}
	}
}
