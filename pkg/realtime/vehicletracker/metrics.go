package vehicletracker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	locationUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_location_updates_total",
			Help: "Location updates received by result",
		},
		[]string{"result"},
	)

	heartbeatsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tracker_heartbeats_total",
			Help: "Heartbeats accepted",
		},
	)

	alertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_alerts_total",
			Help: "Alerts raised by type and severity",
		},
		[]string{"type", "severity"},
	)

	liveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tracker_live_sessions",
			Help: "Sessions that have not been stopped or completed",
		},
	)

	sweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tracker_connectivity_sweep_duration_seconds",
			Help:    "Time taken by a connectivity sweep",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		},
	)

	offlineSessionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tracker_sessions_offline_total",
			Help: "Sessions declared offline by the connectivity sweep",
		},
	)

	eventsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_events_dispatched_total",
			Help: "Events delivered to sinks by type",
		},
		[]string{"type"},
	)

	eventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tracker_events_dropped_total",
			Help: "Events dropped because the dispatch buffer was full",
		},
	)

	persistWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_persist_writes_total",
			Help: "Session documents written to the database by change reason",
		},
		[]string{"reason"},
	)
)
