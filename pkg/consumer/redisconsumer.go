package consumer

import (
	"fmt"
	"net/http"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/travigo/fleettracker/pkg/redis_client"
)

const StatsServerAddress = ":3333"

const pollDuration = 1 * time.Second

// RedisConsumer attaches a number of batch consumers to one rmq queue
type RedisConsumer struct {
	QueueName string

	NumberConsumers int
	BatchSize       int

	Timeout time.Duration

	Consumer rmq.BatchConsumer
}

// Setup starts the consumers on the shared queue connection and serves stats in the background
func (c *RedisConsumer) Setup() error {
	if _, err := c.Start(redis_client.QueueConnection); err != nil {
		return err
	}

	go StartStatsServer(c.QueueName)

	return nil
}

// Start opens the queue on connection and registers every consumer.
// Prefetch holds one full batch per consumer.
func (c *RedisConsumer) Start(connection rmq.Connection) (rmq.Queue, error) {
	log.Info().Str("queue", c.QueueName).Int("consumers", c.NumberConsumers).Msg("Starting consumers")

	queue, err := connection.OpenQueue(c.QueueName)
	if err != nil {
		return nil, err
	}

	prefetch := int64(c.NumberConsumers * c.BatchSize)
	if err := queue.StartConsuming(prefetch, pollDuration); err != nil {
		return nil, err
	}

	for i := 0; i < c.NumberConsumers; i++ {
		tag := fmt.Sprintf("%s-%d", c.QueueName, i)

		if _, err := queue.AddBatchConsumer(tag, int64(c.BatchSize), c.Timeout, c.Consumer); err != nil {
			return nil, fmt.Errorf("adding consumer %s: %w", tag, err)
		}
		log.Debug().Str("consumer", tag).Msg("Consumer registered")
	}

	return queue, nil
}

// StartStatsServer blocks serving queue stats, health and prometheus metrics
func StartStatsServer(name string) {
	endpoint := fmt.Sprintf("/%s/stats", name)

	mux := http.NewServeMux()
	mux.Handle(endpoint, NewStatsHandler(redis_client.QueueConnection))
	mux.Handle("/health", NewHealthHandler())
	mux.Handle("/metrics", promhttp.Handler())

	log.Info().Str("address", StatsServerAddress).Str("endpoint", endpoint).Msg("Stats server listening")
	if err := http.ListenAndServe(StatsServerAddress, mux); err != nil {
		log.Error().Err(err).Msg("Stats server stopped")
	}
}
