package vehicletracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	redisstore "github.com/eko/gocache/store/redis/v4"
	"github.com/redis/go-redis/v9"
	"github.com/travigo/fleettracker/pkg/ctdf"
)

// CachedSessionState is what was last written to the database for a session
type CachedSessionState struct {
	PrimaryIdentifier string                     `json:"primary_identifier"`
	Status            ctdf.TrackingSessionStatus `json:"status"`
	AlertCount        int                        `json:"alert_count"`
	AcknowledgedCount int                        `json:"acknowledged_count"`
	ResolvedCount     int                        `json:"resolved_count"`
	EmergencyRef      string                     `json:"emergency_ref,omitempty"`
	EmergencyStatus   ctdf.EmergencyStatus       `json:"emergency_status,omitempty"`
	EmergencyDetail   string                     `json:"emergency_detail,omitempty"`
	Online            bool                       `json:"online"`
	LastLocation      ctdf.Location              `json:"last_location"`
	LastDBWrite       time.Time                  `json:"last_db_write"`
	LastUpdate        time.Time                  `json:"last_update"`
}

// ChangeDetectionConfig holds thresholds for determining if changes are significant
type ChangeDetectionConfig struct {
	// Minimum distance in meters before writing location update
	MinLocationChangeMeters float64 `yaml:"min_location_change_meters"`
	// Force DB write after this duration even if no changes
	MaxTimeBetweenWrites time.Duration `yaml:"max_time_between_writes"`
	// Minimum time between any updates
	MinTimeBetweenUpdates time.Duration `yaml:"min_time_between_updates"`
}

var defaultChangeConfig = ChangeDetectionConfig{
	MinLocationChangeMeters: 25.0,
	MaxTimeBetweenWrites:    5 * time.Minute,
	MinTimeBetweenUpdates:   10 * time.Second,
}

// SessionStateCache remembers the last persisted state of each session in Redis
type SessionStateCache struct {
	cache *cache.Cache[string]
}

func NewSessionStateCache(client *redis.Client) *SessionStateCache {
	redisStore := redisstore.NewRedis(client, store.WithExpiration(30*time.Minute))

	return &SessionStateCache{
		cache: cache.New[string](redisStore),
	}
}

func sessionStateKey(identifier string) string {
	return fmt.Sprintf("tracking_session_state:%s", identifier)
}

// Get returns nil without an error when nothing is cached for the session
func (c *SessionStateCache) Get(ctx context.Context, identifier string) (*CachedSessionState, error) {
	value, err := c.cache.Get(ctx, sessionStateKey(identifier))
	if errors.Is(err, store.NotFound{}) || (err == nil && value == "") {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var state CachedSessionState
	if err := json.Unmarshal([]byte(value), &state); err != nil {
		return nil, err
	}

	return &state, nil
}

func (c *SessionStateCache) Set(ctx context.Context, state *CachedSessionState) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return err
	}

	return c.cache.Set(ctx, sessionStateKey(state.PrimaryIdentifier), string(stateJSON))
}

func (c *SessionStateCache) Delete(ctx context.Context, identifier string) error {
	return c.cache.Delete(ctx, sessionStateKey(identifier))
}

func newCachedSessionState(session *ctdf.TrackingSession, writtenAt time.Time) *CachedSessionState {
	state := &CachedSessionState{
		PrimaryIdentifier: session.PrimaryIdentifier,
		Status:            session.Status,
		AlertCount:        len(session.Alerts),
		Online:            session.Connectivity.Online,
		LastDBWrite:       writtenAt,
		LastUpdate:        session.ModificationDateTime,
	}
	state.AcknowledgedCount, state.ResolvedCount = alertFlagCounts(session.Alerts)
	if session.Emergency.Active != nil {
		state.EmergencyRef = session.Emergency.Active.PrimaryIdentifier
		state.EmergencyStatus = session.Emergency.Active.Status
		state.EmergencyDetail = session.Emergency.Active.Description
	}
	if session.CurrentState != nil {
		state.LastLocation = *session.CurrentState.Location.Clone()
	}

	return state
}

func alertFlagCounts(alerts []*ctdf.Alert) (acknowledged int, resolved int) {
	for _, alert := range alerts {
		if alert.Acknowledged {
			acknowledged++
		}
		if alert.Resolved {
			resolved++
		}
	}
	return acknowledged, resolved
}

// ShouldPersist determines if changes are significant enough to write to MongoDB
func (cached *CachedSessionState) ShouldPersist(session *ctdf.TrackingSession, currentTime time.Time, config ChangeDetectionConfig) (bool, string) {
	// Always write if this is a new session
	if cached == nil {
		return true, "new_session"
	}

	// Lifecycle, alert and connectivity changes are always significant
	if cached.Status != session.Status {
		return true, "status_changed"
	}
	if cached.AlertCount != len(session.Alerts) {
		return true, "alerts_changed"
	}
	if acknowledged, resolved := alertFlagCounts(session.Alerts); acknowledged != cached.AcknowledgedCount || resolved != cached.ResolvedCount {
		return true, "alerts_changed"
	}
	if cached.Online != session.Connectivity.Online {
		return true, "connectivity_changed"
	}
	if active := session.Emergency.Active; active != nil {
		if active.PrimaryIdentifier != cached.EmergencyRef || active.Status != cached.EmergencyStatus || active.Description != cached.EmergencyDetail {
			return true, "emergency_changed"
		}
	}

	if currentTime.Sub(cached.LastDBWrite) < config.MinTimeBetweenUpdates {
		return false, "too_soon"
	}

	if currentTime.Sub(cached.LastDBWrite) >= config.MaxTimeBetweenWrites {
		return true, "max_time_exceeded"
	}

	if session.CurrentState != nil {
		newLocation := session.CurrentState.Location

		if !cached.LastLocation.IsValid() {
			return true, "first_location"
		}

		distance := cached.LastLocation.Distance(&newLocation)
		if distance >= config.MinLocationChangeMeters {
			return true, "location_changed"
		}
	}

	return false, "no_significant_changes"
}
