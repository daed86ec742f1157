package vehicletracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/fleettracker/pkg/ctdf"
)

func TestSessionStoreCreate(t *testing.T) {
	store := NewSessionStore()

	entry, err := store.Create(&ctdf.TrackingSession{PrimaryIdentifier: "TRACKING:1", TripRef: "trip-1", BusRef: "bus-1", Status: ctdf.TrackingSessionStatusActive}, nil)
	require.NoError(t, err)
	assert.True(t, entry.dirty.Load())
	assert.False(t, entry.terminal.Load())

	var conflictError *ConflictError

	_, err = store.Create(&ctdf.TrackingSession{PrimaryIdentifier: "TRACKING:1", TripRef: "trip-2"}, nil)
	assert.ErrorAs(t, err, &conflictError)

	_, err = store.Create(&ctdf.TrackingSession{PrimaryIdentifier: "TRACKING:2", TripRef: "trip-1"}, nil)
	assert.ErrorAs(t, err, &conflictError)

	assert.Equal(t, 1, store.Len())

	identifier, found := store.FindLiveByBus("bus-1")
	assert.True(t, found)
	assert.Equal(t, "TRACKING:1", identifier)

	_, found = store.FindLiveByBus("bus-2")
	assert.False(t, found)
}

func TestSessionStoreWithSession(t *testing.T) {
	store := NewSessionStore()

	_, err := store.Create(&ctdf.TrackingSession{PrimaryIdentifier: "TRACKING:1", TripRef: "trip-1"}, nil)
	require.NoError(t, err)

	err = store.WithSession("TRACKING:1", func(entry *sessionEntry) error {
		entry.session.TotalUpdates = 7
		return nil
	})
	require.NoError(t, err)

	err = store.WithSession("TRACKING:1", func(entry *sessionEntry) error {
		assert.Equal(t, 7, entry.session.TotalUpdates)
		return nil
	})
	require.NoError(t, err)

	err = store.WithSession("TRACKING:missing", func(entry *sessionEntry) error {
		t.Fatal("should not be called")
		return nil
	})
	var notFoundError *NotFoundError
	assert.ErrorAs(t, err, &notFoundError)
}

func TestSessionStoreEvictTerminal(t *testing.T) {
	store := NewSessionStore()

	live, err := store.Create(&ctdf.TrackingSession{PrimaryIdentifier: "TRACKING:live", TripRef: "trip-1", BusRef: "bus-1"}, nil)
	require.NoError(t, err)
	live.dirty.Store(false)

	old, err := store.Create(&ctdf.TrackingSession{PrimaryIdentifier: "TRACKING:old", TripRef: "trip-2", BusRef: "bus-2"}, nil)
	require.NoError(t, err)
	old.markTerminal(baseTime)
	old.dirty.Store(false)

	unwritten, err := store.Create(&ctdf.TrackingSession{PrimaryIdentifier: "TRACKING:unwritten", TripRef: "trip-3", BusRef: "bus-3"}, nil)
	require.NoError(t, err)
	unwritten.markTerminal(baseTime)

	recent, err := store.Create(&ctdf.TrackingSession{PrimaryIdentifier: "TRACKING:recent", TripRef: "trip-4", BusRef: "bus-4"}, nil)
	require.NoError(t, err)
	recent.markTerminal(baseTime.Add(2 * time.Hour))
	recent.dirty.Store(false)

	assert.Equal(t, 1, store.EvictTerminal(baseTime.Add(time.Hour), true))
	assert.Equal(t, 3, store.Len())

	_, exists := store.get("TRACKING:old")
	assert.False(t, exists)

	assert.Equal(t, 1, store.EvictTerminal(baseTime.Add(time.Hour), false))
	assert.Equal(t, 2, store.Len())

	// the trip index is released so the trip can be tracked again
	_, err = store.Create(&ctdf.TrackingSession{PrimaryIdentifier: "TRACKING:again", TripRef: "trip-2"}, nil)
	assert.NoError(t, err)
}

func TestSessionStoreRestoresTerminalSessions(t *testing.T) {
	store := NewSessionStore()

	entry, err := store.Create(&ctdf.TrackingSession{
		PrimaryIdentifier: "TRACKING:done",
		TripRef:           "trip-1",
		BusRef:            "bus-1",
		Status:            ctdf.TrackingSessionStatusCompleted,
		EndDateTime:       baseTime,
	}, nil)
	require.NoError(t, err)

	assert.True(t, entry.terminal.Load())

	_, found := store.FindLiveByBus("bus-1")
	assert.False(t, found)

	_, err = store.Create(&ctdf.TrackingSession{PrimaryIdentifier: "TRACKING:next", TripRef: "trip-1"}, nil)
	assert.NoError(t, err)
}
