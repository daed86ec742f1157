package vehicletracker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
	"github.com/travigo/fleettracker/pkg/ctdf"
)

// IsCurrentlyOnline is a read only check against the short online window. It deliberately
// does not consult the flag maintained by the sweep.
func (t *Tracker) IsCurrentlyOnline(session *ctdf.TrackingSession, now time.Time) bool {
	return now.Sub(session.Connectivity.LastHeartbeat) <= t.config.OnlineWindow
}

// RunConnectivityMonitor sweeps every session on the configured interval until the context is done
func (t *Tracker) RunConnectivityMonitor(ctx context.Context) {
	ticker := time.NewTicker(t.config.SweepInterval)
	defer ticker.Stop()

	log.Info().Str("interval", t.config.SweepInterval.String()).Msg("Starting connectivity monitor")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Sweep()
		}
	}
}

// Sweep marks sessions that have not been heard from within the offline threshold as offline.
// Sessions are locked one at a time and a failure on one never stops the others.
func (t *Tracker) Sweep() int {
	startTime := time.Now()
	now := t.now()

	var offline atomic.Int64

	p := pool.New().WithMaxGoroutines(t.config.SweepConcurrency)

	for _, entry := range t.store.Entries() {
		if entry.terminal.Load() {
			continue
		}

		entry := entry
		p.Go(func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error().Str("error", fmt.Sprint(r)).Msg("Connectivity check failed for session")
				}
			}()

			if t.checkConnectivity(entry, now) {
				offline.Add(1)
			}
		})
	}

	p.Wait()

	sweepDuration.Observe(time.Since(startTime).Seconds())

	count := int(offline.Load())
	if count > 0 {
		offlineSessionsTotal.Add(float64(count))
		log.Info().Int("offline", count).Str("duration", time.Since(startTime).String()).Msg("Connectivity sweep")
	}

	return count
}

// checkConnectivity only writes the connectivity record and the alert list
func (t *Tracker) checkConnectivity(entry *sessionEntry, now time.Time) bool {
	var events eventBatch
	wentOffline := false

	entry.mu.Lock()
	func() {
		defer entry.mu.Unlock()

		session := entry.session
		if session.Status.IsTerminal() || !session.Connectivity.Online {
			return
		}

		if now.Sub(session.Connectivity.LastHeartbeat) <= t.config.OfflineThreshold {
			return
		}

		session.Connectivity.Online = false
		session.Connectivity.OfflineSince = now
		wentOffline = true

		if !session.Connectivity.OfflineAlerted {
			session.Connectivity.OfflineAlerted = true

			var location *ctdf.Location
			if session.CurrentState != nil {
				location = session.CurrentState.Location.Clone()
			}

			t.addAlert(session, AlertData{
				Type:     ctdf.AlertTypeCommunicationLoss,
				Severity: ctdf.AlertSeverityHigh,
				Message:  fmt.Sprintf("No communication for %s", now.Sub(session.Connectivity.LastHeartbeat).Round(time.Second)),
				Location: location,
				Metadata: map[string]string{
					"lastHeartbeat": session.Connectivity.LastHeartbeat.Format(time.RFC3339),
				},
			}, now, &events)

			events.add(session, ctdf.EventTypeTrackingSessionOffline, now, nil)
		}

		entry.dirty.Store(true)

		log.Warn().
			Str("session", session.PrimaryIdentifier).
			Str("bus", session.BusRef).
			Time("lastHeartbeat", session.Connectivity.LastHeartbeat).
			Msg("Session went offline")
	}()

	if len(events) > 0 {
		t.dispatcher.Dispatch(events...)
	}

	return wentOffline
}
