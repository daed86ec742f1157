package elastic_client

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientConfig(t *testing.T) {
	config := clientConfig(map[string]string{
		"TRAVIGO_ELASTICSEARCH_ADDRESS":  "https://elastic.internal:9200",
		"TRAVIGO_ELASTICSEARCH_USERNAME": "fleet",
		"TRAVIGO_ELASTICSEARCH_PASSWORD": "secret",
	})

	assert.Equal(t, []string{"https://elastic.internal:9200"}, config.Addresses)
	assert.Equal(t, "fleet", config.Username)
	assert.Equal(t, 5, config.MaxRetries)
	assert.Contains(t, config.RetryOnStatus, http.StatusTooManyRequests)

	transport, ok := config.Transport.(*http.Transport)
	require.True(t, ok)
	assert.True(t, transport.TLSClientConfig == nil || !transport.TLSClientConfig.InsecureSkipVerify)

	first := config.RetryBackoff(1)
	assert.Greater(t, first, time.Duration(0))
}

func TestClientConfigInsecure(t *testing.T) {
	config := clientConfig(map[string]string{
		"TRAVIGO_ELASTICSEARCH_ADDRESS":  "https://localhost:9200",
		"TRAVIGO_ELASTICSEARCH_INSECURE": "YES",
	})

	transport, ok := config.Transport.(*http.Transport)
	require.True(t, ok)
	require.NotNil(t, transport.TLSClientConfig)
	assert.True(t, transport.TLSClientConfig.InsecureSkipVerify)
}

func TestUnconfiguredClient(t *testing.T) {
	t.Setenv("TRAVIGO_ELASTICSEARCH_ADDRESS", "")

	assert.NoError(t, Connect(false))
	assert.ErrorIs(t, Connect(true), errNotConfigured)
	assert.False(t, Enabled())

	// no-ops without a client
	IndexRequest("tracking-events-2026-10", nil)
	WaitUntilQueueEmpty()
}
