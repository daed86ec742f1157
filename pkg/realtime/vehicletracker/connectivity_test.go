package vehicletracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/fleettracker/pkg/ctdf"
)

func TestOfflineDetection(t *testing.T) {
	tracker, clock, dispatcher := newTestTracker(t)
	session := startTestSession(t, tracker, StartSessionRequest{})

	require.NoError(t, tracker.Heartbeat(session.PrimaryIdentifier, ctdf.Heartbeat{}))

	clock.Advance(9 * time.Minute)
	assert.Equal(t, 0, tracker.Sweep())

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 1, tracker.Sweep())

	stored, err := tracker.Session(session.PrimaryIdentifier)
	require.NoError(t, err)
	assert.False(t, stored.Connectivity.Online)
	assert.Equal(t, baseTime.Add(11*time.Minute), stored.Connectivity.OfflineSince)
	assert.Equal(t, 1, countAlerts(stored, ctdf.AlertTypeCommunicationLoss))
	assert.Equal(t, ctdf.AlertSeverityHigh, stored.Alerts[0].Severity)
	assert.Equal(t, ctdf.TrackingSessionStatusActive, stored.Status)

	clock.Advance(9 * time.Minute)
	assert.Equal(t, 0, tracker.Sweep())

	stored, err = tracker.Session(session.PrimaryIdentifier)
	require.NoError(t, err)
	assert.Equal(t, 1, countAlerts(stored, ctdf.AlertTypeCommunicationLoss))

	assert.Contains(t, dispatcher.Types(), ctdf.EventTypeTrackingSessionOffline)
}

func TestOfflineSweepLeavesTrackingStateAlone(t *testing.T) {
	tracker, clock, _ := newTestTracker(t)
	session := startTestSession(t, tracker, StartSessionRequest{
		Geofences: []GeofenceDefinition{
			{Name: "Stop", Type: ctdf.GeofenceTypeStop, Latitude: londonLatitude, Longitude: londonLongitude, RadiusMeters: 50},
		},
	})

	_, err := tracker.ApplyLocationUpdate(session.PrimaryIdentifier, update(londonLatitude, londonLongitude, 30))
	require.NoError(t, err)

	before, err := tracker.Session(session.PrimaryIdentifier)
	require.NoError(t, err)

	clock.Advance(15 * time.Minute)
	require.Equal(t, 1, tracker.Sweep())

	after, err := tracker.Session(session.PrimaryIdentifier)
	require.NoError(t, err)

	assert.Equal(t, before.History, after.History)
	assert.Equal(t, before.Performance, after.Performance)
	assert.Equal(t, before.Geofences, after.Geofences)
	assert.Equal(t, before.CurrentState, after.CurrentState)
	assert.Equal(t, before.Status, after.Status)
	assert.Equal(t, before.ModificationDateTime, after.ModificationDateTime)
}

func TestOfflineAlertRearmsAfterRecovery(t *testing.T) {
	tracker, clock, _ := newTestTracker(t)
	session := startTestSession(t, tracker, StartSessionRequest{})

	clock.Advance(11 * time.Minute)
	require.Equal(t, 1, tracker.Sweep())

	updated, err := tracker.ApplyLocationUpdate(session.PrimaryIdentifier, update(londonLatitude, londonLongitude, 10))
	require.NoError(t, err)
	assert.True(t, updated.Connectivity.Online)
	assert.True(t, updated.Connectivity.OfflineSince.IsZero())

	clock.Advance(11 * time.Minute)
	require.Equal(t, 1, tracker.Sweep())

	stored, err := tracker.Session(session.PrimaryIdentifier)
	require.NoError(t, err)
	assert.Equal(t, 2, countAlerts(stored, ctdf.AlertTypeCommunicationLoss))
}

func TestSweepSkipsEndedSessions(t *testing.T) {
	tracker, clock, _ := newTestTracker(t)
	session := startTestSession(t, tracker, StartSessionRequest{})

	_, err := tracker.StopSession(session.PrimaryIdentifier, StopRequest{})
	require.NoError(t, err)

	clock.Advance(time.Hour)
	assert.Equal(t, 0, tracker.Sweep())

	stored, err := tracker.Session(session.PrimaryIdentifier)
	require.NoError(t, err)
	assert.True(t, stored.Connectivity.Online)
	assert.Empty(t, stored.Alerts)
}

func TestSweepManySessions(t *testing.T) {
	tracker, clock, _ := newTestTracker(t, func(c *Config) {
		c.SweepConcurrency = 4
	})

	var quiet []string
	for i := 0; i < 30; i++ {
		session := startTestSession(t, tracker, StartSessionRequest{
			TripRef: "trip-" + string(rune('a'+i)),
			BusRef:  "bus-" + string(rune('a'+i)),
		})
		if i%3 == 0 {
			quiet = append(quiet, session.PrimaryIdentifier)
		}
	}

	clock.Advance(8 * time.Minute)
	for _, entry := range tracker.store.Entries() {
		identifier := entry.session.PrimaryIdentifier
		isQuiet := false
		for _, q := range quiet {
			if q == identifier {
				isQuiet = true
			}
		}
		if !isQuiet {
			require.NoError(t, tracker.Heartbeat(identifier, ctdf.Heartbeat{}))
		}
	}

	clock.Advance(3 * time.Minute)
	assert.Equal(t, len(quiet), tracker.Sweep())
}

func TestIsCurrentlyOnline(t *testing.T) {
	tracker, _, _ := newTestTracker(t)

	session := &ctdf.TrackingSession{
		Connectivity: ctdf.Connectivity{LastHeartbeat: baseTime},
	}

	assert.True(t, tracker.IsCurrentlyOnline(session, baseTime.Add(4*time.Minute)))
	assert.True(t, tracker.IsCurrentlyOnline(session, baseTime.Add(5*time.Minute)))
	assert.False(t, tracker.IsCurrentlyOnline(session, baseTime.Add(5*time.Minute+time.Second)))
}
