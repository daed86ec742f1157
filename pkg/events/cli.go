package events

import (
	"context"
	"encoding/json"
	"os/signal"
	"syscall"
	"time"

	"github.com/kr/pretty"
	"github.com/rs/zerolog/log"
	"github.com/travigo/fleettracker/pkg/consumer"
	"github.com/travigo/fleettracker/pkg/ctdf"
	"github.com/travigo/fleettracker/pkg/redis_client"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "events",
		Usage: "Turns tracking events into notifications",
		Subcommands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "consume the events queue",
				Action: runEvents,
			},
			{
				Name:  "test-event",
				Usage: "publish a test emergency event",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "bus",
						Value: "TEST-BUS",
						Usage: "Vehicle the emergency is raised on",
					},
				},
				Action: func(c *cli.Context) error {
					if err := redis_client.Connect(); err != nil {
						return err
					}

					eventsQueue, err := redis_client.QueueConnection.OpenQueue(EventsQueueName)
					if err != nil {
						return err
					}

					event := newTestEmergencyEvent(c.String("bus"), time.Now())
					pretty.Println(event)

					eventBytes, err := json.Marshal(event)
					if err != nil {
						return err
					}

					return eventsQueue.PublishBytes(eventBytes)
				},
			},
		},
	}
}

func runEvents(c *cli.Context) error {
	if err := redis_client.Connect(); err != nil {
		return err
	}

	notifyQueue, err := redis_client.QueueConnection.OpenQueue(NotifyQueueName)
	if err != nil {
		return err
	}

	eventsConsumer := consumer.RedisConsumer{
		QueueName:       EventsQueueName,
		NumberConsumers: 5,
		BatchSize:       20,
		Timeout:         2 * time.Second,
		Consumer:        NewEventsBatchConsumer(notifyQueue),
	}
	if err := eventsConsumer.Setup(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	log.Info().Msg("Stopping events consumers")

	<-redis_client.QueueConnection.StopAllConsuming()

	return nil
}

func newTestEmergencyEvent(busRef string, now time.Time) ctdf.Event {
	return ctdf.Event{
		Type:      ctdf.EventTypeEmergencyTriggered,
		Timestamp: now,
		Body: ctdf.TrackingEventBody{
			SessionRef: "TRACKING:TEST",
			BusRef:     busRef,
			Emergency: &ctdf.Emergency{
				PrimaryIdentifier: "EMERGENCY:TEST",
				Type:              ctdf.EmergencyTypePanic,
				Status:            ctdf.EmergencyStatusActive,
				Description:       "Test emergency raised from the command line",
				TriggeredAt:       now,
			},
		},
	}
}
