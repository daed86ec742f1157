package elastic_client

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esutil"
	"github.com/rs/zerolog/log"
	"github.com/travigo/fleettracker/pkg/util"
)

var Client *elasticsearch.Client
var bulkIndexer esutil.BulkIndexer

const flushInterval = 15 * time.Second

var errNotConfigured = errors.New("elasticsearch configuration not set")

// clientConfig builds the client settings from TRAVIGO_ELASTICSEARCH_* variables
func clientConfig(env map[string]string) elasticsearch.Config {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if env["TRAVIGO_ELASTICSEARCH_INSECURE"] == "YES" {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	retryBackoff := backoff.NewExponentialBackOff()

	return elasticsearch.Config{
		Addresses: []string{env["TRAVIGO_ELASTICSEARCH_ADDRESS"]},
		Username:  env["TRAVIGO_ELASTICSEARCH_USERNAME"],
		Password:  env["TRAVIGO_ELASTICSEARCH_PASSWORD"],
		Transport: transport,

		RetryOnStatus: []int{502, 503, 504, 429},
		RetryBackoff: func(attempt int) time.Duration {
			if attempt == 1 {
				retryBackoff.Reset()
			}
			return retryBackoff.NextBackOff()
		},
		MaxRetries: 5,
	}
}

// Connect sets up the client and bulk indexer. When no address is configured it is a no-op
// unless required is set.
func Connect(required bool) error {
	env := util.GetEnvironmentVariables()

	if env["TRAVIGO_ELASTICSEARCH_ADDRESS"] == "" {
		if required {
			return errNotConfigured
		}

		log.Info().Msg("Skipping Elasticsearch setup")
		return nil
	}

	es, err := elasticsearch.NewClient(clientConfig(env))
	if err != nil {
		return err
	}

	if _, err := es.Info(); err != nil {
		return err
	}

	indexer, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Client:        es,
		FlushInterval: flushInterval,
		OnError: func(ctx context.Context, err error) {
			log.Error().Err(err).Msg("Elasticsearch bulk indexer error")
		},
	})
	if err != nil {
		return err
	}

	Client = es
	bulkIndexer = indexer

	log.Info().Str("address", env["TRAVIGO_ELASTICSEARCH_ADDRESS"]).Msg("Elasticsearch client setup")

	return nil
}

// Enabled reports if a client was configured
func Enabled() bool {
	return Client != nil
}

// IndexRequest queues one document on the bulk indexer, it is dropped when elasticsearch is not configured
func IndexRequest(indexName string, document io.ReadSeeker) {
	if bulkIndexer == nil {
		return
	}

	err := bulkIndexer.Add(
		context.Background(),
		esutil.BulkIndexerItem{
			Index:  indexName,
			Action: "index",
			Body:   document,
			OnFailure: func(ctx context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
				if err != nil {
					log.Error().Err(err).Str("index", indexName).Msg("Failed to index document")
				} else {
					log.Error().Str("index", indexName).Str("type", res.Error.Type).Str("reason", res.Error.Reason).Msg("Failed to index document")
				}
			},
		},
	)
	if err != nil {
		log.Error().Err(err).Str("index", indexName).Msg("Failed to queue document")
	}
}

// WaitUntilQueueEmpty flushes outstanding documents and closes the indexer
func WaitUntilQueueEmpty() {
	if bulkIndexer == nil {
		return
	}

	if err := bulkIndexer.Close(context.Background()); err != nil {
		log.Error().Err(err).Msg("Failed to flush Elasticsearch bulk indexer")
	}

	stats := bulkIndexer.Stats()
	log.Info().
		Uint64("indexed", stats.NumIndexed).
		Uint64("failed", stats.NumFailed).
		Msg("Elasticsearch bulk indexer closed")
}
