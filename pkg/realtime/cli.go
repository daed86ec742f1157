package realtime

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
	"github.com/travigo/fleettracker/pkg/api"
	"github.com/travigo/fleettracker/pkg/consumer"
	"github.com/travigo/fleettracker/pkg/database"
	"github.com/travigo/fleettracker/pkg/elastic_client"
	"github.com/travigo/fleettracker/pkg/events"
	"github.com/travigo/fleettracker/pkg/realtime/vehicletracker"
	"github.com/travigo/fleettracker/pkg/redis_client"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "realtime",
		Usage: "Realtime vehicle tracking",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run the vehicle tracking engine and its web API",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "listen",
						Value: ":8080",
						Usage: "listen target for the web server",
					},
					&cli.StringFlag{
						Name:  "config",
						Usage: "YAML file overriding the tracker defaults",
					},
				},
				Action: run,
			},
			vehicletracker.RegisterCLI(),
		},
	}
}

func run(c *cli.Context) error {
	config, err := vehicletracker.LoadConfig(c.String("config"))
	if err != nil {
		return err
	}

	if err := database.Connect(); err != nil {
		return err
	}
	if err := redis_client.Connect(); err != nil {
		return err
	}
	if err := elastic_client.Connect(false); err != nil {
		return err
	}

	eventsQueue, err := redis_client.QueueConnection.OpenQueue(events.EventsQueueName)
	if err != nil {
		return err
	}

	sinks := []vehicletracker.EventSink{&vehicletracker.QueueSink{Queue: eventsQueue}}
	if elastic_client.Enabled() {
		sinks = append(sinks, vehicletracker.NewElasticSink())
	}
	dispatcher := vehicletracker.NewAsyncDispatcher(config.DispatchBuffer, sinks...)

	tracker := vehicletracker.NewTracker(config, vehicletracker.WithDispatcher(dispatcher))

	sessionsCollection := database.GetCollection(database.TrackingSessionsCollection)

	liveSessions, err := vehicletracker.LoadLiveSessions(c.Context, sessionsCollection)
	if err != nil {
		return err
	}
	restored := tracker.Restore(liveSessions)
	log.Info().Int("restored", restored).Int("stored", len(liveSessions)).Msg("Restored live tracking sessions")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dispatcher.Start(ctx)

	if err := vehicletracker.StartConsumers(redis_client.QueueConnection, tracker); err != nil {
		return err
	}

	persister := vehicletracker.NewPersister(tracker, sessionsCollection, vehicletracker.NewSessionStateCache(redis_client.Client))

	workers := pool.New()
	workers.Go(func() { tracker.RunConnectivityMonitor(ctx) })
	workers.Go(func() { persister.Run(ctx) })
	workers.Go(func() { vehicletracker.StartCleaner(ctx, redis_client.QueueConnection) })

	go consumer.StartStatsServer(vehicletracker.TrackingQueueName)

	webApp := api.NewApp(tracker)
	go func() {
		if err := webApp.Listen(c.String("listen")); err != nil {
			log.Fatal().Err(err).Msg("Web server stopped")
		}
	}()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	<-signals // wait for signal
	go func() {
		<-signals // hard exit on second signal (in case shutdown gets stuck)
		os.Exit(1)
	}()

	log.Info().Msg("Shutting down")

	if err := webApp.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown web server")
	}

	<-redis_client.QueueConnection.StopAllConsuming() // wait for all Consume() calls to finish

	// stops the monitor and gives the persister its final flush
	cancel()
	workers.Wait()

	dispatcher.Wait()
	elastic_client.WaitUntilQueueEmpty()

	disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer disconnectCancel()

	return database.Disconnect(disconnectCtx)
}
