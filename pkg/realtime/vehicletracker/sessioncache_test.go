package vehicletracker

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/fleettracker/pkg/ctdf"
)

func newTestSessionStateCache(t *testing.T) (*SessionStateCache, *miniredis.Miniredis) {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewSessionStateCache(client), server
}

func TestSessionStateCache(t *testing.T) {
	cache, server := newTestSessionStateCache(t)
	ctx := context.Background()

	state, err := cache.Get(ctx, "TRACKING:1")
	require.NoError(t, err)
	assert.Nil(t, state)

	session := &ctdf.TrackingSession{
		PrimaryIdentifier: "TRACKING:1",
		Status:            ctdf.TrackingSessionStatusActive,
		Alerts:            []*ctdf.Alert{{PrimaryIdentifier: "a"}},
		Connectivity:      ctdf.Connectivity{Online: true},
		CurrentState:      &ctdf.CurrentState{Location: ctdf.NewLocation(londonLatitude, londonLongitude)},
	}
	require.NoError(t, cache.Set(ctx, newCachedSessionState(session, baseTime)))

	assert.True(t, server.Exists("tracking_session_state:TRACKING:1"))

	state, err = cache.Get(ctx, "TRACKING:1")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, ctdf.TrackingSessionStatusActive, state.Status)
	assert.Equal(t, 1, state.AlertCount)
	assert.True(t, state.Online)
	assert.True(t, state.LastDBWrite.Equal(baseTime))
	assert.InDelta(t, londonLatitude, state.LastLocation.Latitude(), 1e-9)

	require.NoError(t, cache.Delete(ctx, "TRACKING:1"))
	state, err = cache.Get(ctx, "TRACKING:1")
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestShouldPersist(t *testing.T) {
	config := defaultChangeConfig

	session := &ctdf.TrackingSession{
		PrimaryIdentifier: "TRACKING:1",
		Status:            ctdf.TrackingSessionStatusActive,
		Connectivity:      ctdf.Connectivity{Online: true},
		CurrentState:      &ctdf.CurrentState{Location: ctdf.NewLocation(londonLatitude, londonLongitude)},
	}
	cached := newCachedSessionState(session, baseTime)

	var nilState *CachedSessionState
	persist, reason := nilState.ShouldPersist(session, baseTime, config)
	assert.True(t, persist)
	assert.Equal(t, "new_session", reason)

	persist, reason = cached.ShouldPersist(session, baseTime.Add(5*time.Second), config)
	assert.False(t, persist)
	assert.Equal(t, "too_soon", reason)

	persist, reason = cached.ShouldPersist(session, baseTime.Add(time.Minute), config)
	assert.False(t, persist)
	assert.Equal(t, "no_significant_changes", reason)

	persist, reason = cached.ShouldPersist(session, baseTime.Add(6*time.Minute), config)
	assert.True(t, persist)
	assert.Equal(t, "max_time_exceeded", reason)

	moved := session.Clone()
	moved.CurrentState.Location = ctdf.NewLocation(londonLatitude+0.001, londonLongitude)
	persist, reason = cached.ShouldPersist(moved, baseTime.Add(time.Minute), config)
	assert.True(t, persist)
	assert.Equal(t, "location_changed", reason)

	// significant changes skip the minimum interval
	alerted := session.Clone()
	alerted.Alerts = []*ctdf.Alert{{PrimaryIdentifier: "a"}}
	persist, reason = cached.ShouldPersist(alerted, baseTime.Add(time.Second), config)
	assert.True(t, persist)
	assert.Equal(t, "alerts_changed", reason)

	stopped := session.Clone()
	stopped.Status = ctdf.TrackingSessionStatusStopped
	persist, reason = cached.ShouldPersist(stopped, baseTime.Add(time.Second), config)
	assert.True(t, persist)
	assert.Equal(t, "status_changed", reason)

	offline := session.Clone()
	offline.Connectivity.Online = false
	persist, reason = cached.ShouldPersist(offline, baseTime.Add(time.Second), config)
	assert.True(t, persist)
	assert.Equal(t, "connectivity_changed", reason)
}

func TestShouldPersistAlertAndEmergencyChanges(t *testing.T) {
	config := defaultChangeConfig

	session := &ctdf.TrackingSession{
		PrimaryIdentifier: "TRACKING:1",
		Status:            ctdf.TrackingSessionStatusEmergency,
		Alerts:            []*ctdf.Alert{{PrimaryIdentifier: "a"}},
		Connectivity:      ctdf.Connectivity{Online: true},
		Emergency: ctdf.EmergencyState{
			PanicActive: true,
			Active:      &ctdf.Emergency{PrimaryIdentifier: "EMERGENCY:1", Status: ctdf.EmergencyStatusActive},
		},
	}
	cached := newCachedSessionState(session, baseTime)

	persist, _ := cached.ShouldPersist(session, baseTime.Add(time.Second), config)
	assert.False(t, persist)

	acknowledged := session.Clone()
	acknowledged.Alerts[0].Acknowledged = true
	persist, reason := cached.ShouldPersist(acknowledged, baseTime.Add(time.Second), config)
	assert.True(t, persist)
	assert.Equal(t, "alerts_changed", reason)

	resolved := session.Clone()
	resolved.Alerts[0].Resolved = true
	persist, reason = cached.ShouldPersist(resolved, baseTime.Add(time.Second), config)
	assert.True(t, persist)
	assert.Equal(t, "alerts_changed", reason)

	escalated := session.Clone()
	escalated.Emergency.Active.Status = ctdf.EmergencyStatusEscalated
	persist, reason = cached.ShouldPersist(escalated, baseTime.Add(time.Second), config)
	assert.True(t, persist)
	assert.Equal(t, "emergency_changed", reason)

	described := session.Clone()
	described.Emergency.Active.Description = "Driver reports smoke"
	persist, reason = cached.ShouldPersist(described, baseTime.Add(time.Second), config)
	assert.True(t, persist)
	assert.Equal(t, "emergency_changed", reason)
}

func TestSessionStateCacheReturnsRedisErrors(t *testing.T) {
	cache, server := newTestSessionStateCache(t)

	server.Close()

	state, err := cache.Get(context.Background(), "TRACKING:1")
	assert.Error(t, err)
	assert.Nil(t, state)
}
