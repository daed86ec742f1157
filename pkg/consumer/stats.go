package consumer

import (
	"fmt"
	"net/http"

	"github.com/adjust/rmq/v5"
	"github.com/travigo/fleettracker/pkg/database"
	"github.com/travigo/fleettracker/pkg/redis_client"
)

type StatsServerHandler struct {
	redisConnection rmq.Connection
}

func NewStatsHandler(connection rmq.Connection) *StatsServerHandler {
	return &StatsServerHandler{redisConnection: connection}
}

func (handler *StatsServerHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	queues, err := handler.redisConnection.GetOpenQueues()
	if err != nil {
		writeFailure(writer, err)
		return
	}

	stats, err := handler.redisConnection.CollectStats(queues)
	if err != nil {
		writeFailure(writer, err)
		return
	}

	fmt.Fprint(writer, stats.GetHtml(request.FormValue("layout"), request.FormValue("refresh")))
}

func writeFailure(writer http.ResponseWriter, err error) {
	writer.WriteHeader(http.StatusInternalServerError)
	fmt.Fprint(writer, err)
}

// HealthHandler pings whichever backing stores this process has connected
type HealthHandler struct {
}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

func (handler *HealthHandler) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	if redis_client.Client != nil {
		if err := redis_client.Client.Ping(request.Context()).Err(); err != nil {
			writeFailure(writer, err)
			return
		}
	}

	if database.MongoGlobalInstance != nil {
		if err := database.MongoGlobalInstance.Client.Ping(request.Context(), nil); err != nil {
			writeFailure(writer, err)
			return
		}
	}

	writer.WriteHeader(http.StatusOK)
	fmt.Fprint(writer, "OK")
}
