package consumer

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/fleettracker/pkg/redis_client"
)

func TestHealthHandler(t *testing.T) {
	server := miniredis.RunT(t)
	require.NoError(t, redis_client.ConnectWithOptions(&redis.Options{Addr: server.Addr()}))

	recorder := httptest.NewRecorder()
	NewHealthHandler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "OK", recorder.Body.String())

	server.Close()

	recorder = httptest.NewRecorder()
	NewHealthHandler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
}

func TestStatsHandler(t *testing.T) {
	server := miniredis.RunT(t)
	require.NoError(t, redis_client.ConnectWithOptions(&redis.Options{Addr: server.Addr()}))

	queue, err := redis_client.QueueConnection.OpenQueue("tracking-queue")
	require.NoError(t, err)
	require.NoError(t, queue.Publish(`{"MessageType":"Heartbeat"}`))

	recorder := httptest.NewRecorder()
	NewStatsHandler(redis_client.QueueConnection).ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/tracking-queue/stats", nil))

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "tracking-queue")
}
