package notify

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/travigo/fleettracker/pkg/consumer"
	"github.com/travigo/fleettracker/pkg/database"
	"github.com/travigo/fleettracker/pkg/events"
	"github.com/travigo/fleettracker/pkg/redis_client"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "notify",
		Usage: "Delivers queued notifications as push messages",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "consume the notify queue",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "consumers",
						Value: 5,
						Usage: "number of queue consumers",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Value: 20,
						Usage: "notifications handled per batch",
					},
				},
				Action: runNotify,
			},
		},
	}
}

func runNotify(c *cli.Context) error {
	if err := database.Connect(); err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := database.Disconnect(ctx); err != nil {
			log.Error().Err(err).Msg("Failed to disconnect from database")
		}
	}()

	if err := redis_client.Connect(); err != nil {
		return err
	}

	pushManager := &PushManager{}
	if err := pushManager.Setup(c.Context); err != nil {
		return err
	}

	notifyConsumer := consumer.RedisConsumer{
		QueueName:       events.NotifyQueueName,
		NumberConsumers: c.Int("consumers"),
		BatchSize:       c.Int("batch-size"),
		Timeout:         2 * time.Second,
		Consumer:        NewNotifyBatchConsumer(pushManager),
	}
	if err := notifyConsumer.Setup(); err != nil {
		return err
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	received := <-signals
	log.Info().Str("signal", received.String()).Msg("Stopping notify consumers")

	go func() {
		// second signal forces exit if draining hangs
		<-signals
		os.Exit(1)
	}()

	<-redis_client.QueueConnection.StopAllConsuming()

	return nil
}
