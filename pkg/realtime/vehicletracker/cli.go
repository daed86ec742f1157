package vehicletracker

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/kr/pretty"
	"github.com/travigo/fleettracker/pkg/ctdf"
	"github.com/travigo/fleettracker/pkg/database"
	"github.com/travigo/fleettracker/pkg/redis_client"
	"github.com/urfave/cli/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "vehicle-tracker",
		Usage: "Tools for the vehicle tracking engine",
		Subcommands: []*cli.Command{
			{
				Name:  "cleaner",
				Usage: "run the queue cleaner for the tracking queue",
				Action: func(c *cli.Context) error {
					if err := redis_client.Connect(); err != nil {
						return err
					}

					ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
					defer stop()

					StartCleaner(ctx, redis_client.QueueConnection)

					<-redis_client.QueueConnection.StopAllConsuming()

					return nil
				},
			},
			{
				Name:      "inspect",
				Usage:     "dump a stored tracking session",
				ArgsUsage: "<session identifier>",
				Action: func(c *cli.Context) error {
					if c.Args().Len() != 1 {
						return errors.New("a session identifier must be provided")
					}

					if err := database.Connect(); err != nil {
						return err
					}

					var session *ctdf.TrackingSession
					collection := database.GetCollection(database.TrackingSessionsCollection)
					err := collection.FindOne(c.Context, bson.M{"primaryidentifier": c.Args().First()}).Decode(&session)
					if errors.Is(err, mongo.ErrNoDocuments) {
						return fmt.Errorf("session %s not found", c.Args().First())
					} else if err != nil {
						return err
					}

					pretty.Println(session)

					return nil
				},
			},
			{
				Name:  "gtfsrt",
				Usage: "poll a GTFS-RT vehicle positions feed onto the tracking queue",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "url",
						Usage:    "URL of the GTFS-RT feed",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "provider",
						Usage: "name of the feed provider",
					},
					&cli.DurationFlag{
						Name:  "interval",
						Usage: "how often to poll the feed",
						Value: 30 * time.Second,
					},
					&cli.DurationFlag{
						Name:  "max-age",
						Usage: "skip positions older than this",
						Value: 20 * time.Minute,
					},
				},
				Action: func(c *cli.Context) error {
					if err := redis_client.Connect(); err != nil {
						return err
					}

					queue, err := redis_client.QueueConnection.OpenQueue(TrackingQueueName)
					if err != nil {
						return err
					}

					poller := &FeedPoller{
						URL:      c.String("url"),
						Provider: c.String("provider"),
						MaxAge:   c.Duration("max-age"),
						Queue:    queue,
					}

					ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
					defer stop()

					poller.Run(ctx, c.Duration("interval"))

					return nil
				},
			},
		},
	}
}
