package vehicletracker

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/rs/zerolog/log"
	iso8601 "github.com/senseyeio/duration"
	"github.com/travigo/fleettracker/pkg/ctdf"
)

// Tracker owns every tracking session and is the entry point for all session operations.
// It is safe for concurrent use, operations on one session are serialised by that
// session's lock and operations on different sessions never contend.
type Tracker struct {
	config     Config
	store      *SessionStore
	dispatcher EventDispatcher
	now        func() time.Time
}

type Option func(*Tracker)

// WithClock replaces the wall clock, used by tests to drive time explicitly
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

func WithDispatcher(dispatcher EventDispatcher) Option {
	return func(t *Tracker) {
		t.dispatcher = dispatcher
	}
}

func NewTracker(config Config, options ...Option) *Tracker {
	tracker := &Tracker{
		config:     config,
		store:      NewSessionStore(),
		dispatcher: discardDispatcher{},
		now:        time.Now,
	}

	for _, option := range options {
		option(tracker)
	}

	return tracker
}

func (t *Tracker) Config() Config {
	return t.config
}

// mutate runs fn under the session lock. Events raised by fn are only dispatched when it
// succeeds and only once the lock has been released.
func (t *Tracker) mutate(identifier string, fn func(entry *sessionEntry, now time.Time, events *eventBatch) error) error {
	var events eventBatch

	err := t.store.WithSession(identifier, func(entry *sessionEntry) error {
		now := t.now()

		if err := fn(entry, now, &events); err != nil {
			return err
		}

		entry.session.ModificationDateTime = now
		entry.dirty.Store(true)

		return nil
	})

	if err == nil && len(events) > 0 {
		t.dispatcher.Dispatch(events...)
	}

	return err
}

func requireLive(session *ctdf.TrackingSession) error {
	if session.Status.IsTerminal() {
		return newPreconditionError("session %s is %s", session.PrimaryIdentifier, session.Status)
	}
	return nil
}

// ParseISODuration converts an ISO-8601 duration such as PT30S into a time.Duration
// measured forward from now
func ParseISODuration(value string, now time.Time) (time.Duration, error) {
	parsed, err := iso8601.ParseISO8601(value)
	if err != nil {
		return 0, err
	}

	return parsed.Shift(now).Sub(now), nil
}

func (t *Tracker) StartSession(request StartSessionRequest) (*ctdf.TrackingSession, error) {
	if err := t.validateStartRequest(&request); err != nil {
		return nil, err
	}

	now := t.now()

	settings := request.Settings
	if settings.UpdateInterval == "" {
		settings.UpdateInterval = t.config.DefaultUpdateInterval
	}
	if interval, err := ParseISODuration(settings.UpdateInterval, now); err != nil || interval <= 0 {
		return nil, newValidationError("StartSessionRequest.Settings.UpdateInterval", "%q is not a positive ISO-8601 duration", settings.UpdateInterval)
	}

	switch settings.AccuracyMode {
	case "":
		settings.AccuracyMode = "balanced"
	case "high", "balanced", "low":
	default:
		return nil, newValidationError("StartSessionRequest.Settings.AccuracyMode", "unknown accuracy mode %q", settings.AccuracyMode)
	}

	rules, err := compileRules(settings.Rules)
	if err != nil {
		return nil, err
	}

	session := &ctdf.TrackingSession{
		PrimaryIdentifier: fmt.Sprintf(ctdf.TrackingSessionIDFormat, uuid.NewString()),

		TripRef:  request.TripRef,
		BusRef:   request.BusRef,
		RouteRef: request.RouteRef,

		Status: ctdf.TrackingSessionStatusActive,

		RouteProgress: ctdf.RouteProgress{
			RouteDistance:      request.RouteDistance,
			EstimatedRemaining: request.RouteDistance,
		},

		Alerts: []*ctdf.Alert{},

		Connectivity: ctdf.Connectivity{
			LastHeartbeat: now,
			Online:        true,
		},

		Settings: settings,

		StartDateTime:        now,
		CreationDateTime:     now,
		ModificationDateTime: now,

		DataSource: request.DataSource,
	}

	if request.Driver != nil {
		driver := *request.Driver
		session.Driver = &driver
	}

	for _, definition := range request.Geofences {
		geofenceType := definition.Type
		if geofenceType == "" {
			geofenceType = ctdf.GeofenceTypeCustom
		}

		session.Geofences = append(session.Geofences, ctdf.Geofence{
			Name:         definition.Name,
			Type:         geofenceType,
			Center:       ctdf.NewLocation(definition.Latitude, definition.Longitude),
			RadiusMeters: definition.RadiusMeters,
			AlertOnEntry: definition.AlertOnEntry,
			AlertOnExit:  definition.AlertOnExit,
		})
	}

	for _, point := range request.RoutePath {
		session.RoutePath = append(session.RoutePath, ctdf.NewLocation(point.Latitude, point.Longitude))
	}

	updateRouteProgress(session)

	snapshot := session.Clone()

	if _, err := t.store.Create(session, rules); err != nil {
		return nil, err
	}

	liveSessions.Inc()

	var events eventBatch
	events.add(snapshot, ctdf.EventTypeTrackingSessionStarted, now, nil)
	t.dispatcher.Dispatch(events...)

	log.Info().
		Str("session", snapshot.PrimaryIdentifier).
		Str("trip", snapshot.TripRef).
		Str("bus", snapshot.BusRef).
		Int("geofences", len(snapshot.Geofences)).
		Msg("Started tracking session")

	return snapshot, nil
}

// ApplyLocationUpdate ingests one sample and returns the session as it stands afterwards
func (t *Tracker) ApplyLocationUpdate(identifier string, update ctdf.LocationUpdate) (*ctdf.TrackingSession, error) {
	if err := t.validateLocationUpdate(&update); err != nil {
		locationUpdatesTotal.WithLabelValues("invalid").Inc()
		log.Debug().Err(err).Str("session", identifier).Msg("Rejected location update")
		return nil, err
	}

	var snapshot *ctdf.TrackingSession

	err := t.mutate(identifier, func(entry *sessionEntry, now time.Time, events *eventBatch) error {
		session := entry.session

		if err := requireLive(session); err != nil {
			return err
		}

		timestamp := update.Timestamp
		if timestamp.IsZero() {
			timestamp = now
		}

		location := update.Location()

		heading := update.HeadingValue()
		if update.Heading == nil && session.CurrentState != nil {
			previous := session.CurrentState.Location
			if previous.Distance(&location) > 0 {
				heading = ctdf.InitialBearing(previous.Latitude(), previous.Longitude(), location.Latitude(), location.Longitude())
			} else {
				heading = session.CurrentState.Heading
			}
		}

		historyEntry := appendHistory(session, &update, timestamp, now, t.config.HistoryCap)
		historyEntry.Heading = heading
		session.History[len(session.History)-1].Heading = heading

		aggregate(session, historyEntry)

		session.CurrentState = &ctdf.CurrentState{
			Location:  location,
			Speed:     historyEntry.Speed,
			Heading:   heading,
			Altitude:  historyEntry.Altitude,
			Accuracy:  historyEntry.Accuracy,
			Address:   update.Address,
			Timestamp: timestamp,
		}
		session.TotalUpdates++

		session.Connectivity.LastHeartbeat = now
		session.Connectivity.Online = true
		session.Connectivity.OfflineAlerted = false
		session.Connectivity.OfflineSince = time.Time{}
		session.Connectivity.Device.Merge(update.Device)

		var alerts []AlertData

		alerts = append(alerts, evaluateGeofences(session, &location, now)...)

		if alert := evaluateSpeed(historyEntry.Speed, &location, &t.config); alert != nil {
			alerts = append(alerts, *alert)
		}

		if alert := evaluateRouteDeviation(session, &location, &t.config); alert != nil {
			alerts = append(alerts, *alert)
		}

		updateRouteProgress(session)

		alerts = append(alerts, evaluateRules(session, entry.rules, newRuleEnv(session, historyEntry), &location)...)

		if alert := evaluateBattery(session, &t.config); alert != nil {
			alerts = append(alerts, *alert)
		}

		for _, alert := range alerts {
			t.addAlert(session, alert, now, events)
		}

		snapshot = session.Clone()

		return nil
	})

	if err != nil {
		locationUpdatesTotal.WithLabelValues("rejected").Inc()
		log.Debug().Err(err).Str("session", identifier).Msg("Rejected location update")
		return nil, err
	}

	locationUpdatesTotal.WithLabelValues("applied").Inc()

	return snapshot, nil
}

// Heartbeat refreshes connectivity without touching location state
func (t *Tracker) Heartbeat(identifier string, heartbeat ctdf.Heartbeat) error {
	if err := validateStruct(&heartbeat); err != nil {
		return err
	}

	err := t.mutate(identifier, func(entry *sessionEntry, now time.Time, events *eventBatch) error {
		session := entry.session

		if err := requireLive(session); err != nil {
			return err
		}

		session.Connectivity.LastHeartbeat = now
		session.Connectivity.Online = true
		session.Connectivity.OfflineAlerted = false
		session.Connectivity.OfflineSince = time.Time{}
		session.Connectivity.Device.Merge(heartbeat.Device)

		if alert := evaluateBattery(session, &t.config); alert != nil {
			t.addAlert(session, *alert, now, events)
		}

		return nil
	})

	if err == nil {
		heartbeatsTotal.Inc()
	}

	return err
}

// Session returns a deep copy of the full session
func (t *Tracker) Session(identifier string) (*ctdf.TrackingSession, error) {
	var snapshot *ctdf.TrackingSession

	err := t.store.WithSession(identifier, func(entry *sessionEntry) error {
		snapshot = entry.session.Clone()
		return nil
	})

	return snapshot, err
}

func (t *Tracker) Status(identifier string) (*ctdf.SessionStatus, error) {
	session, err := t.Session(identifier)
	if err != nil {
		return nil, err
	}

	status := &ctdf.SessionStatus{}
	if err := copier.Copy(status, session); err != nil {
		return nil, err
	}

	now := t.now()

	status.Online = session.Connectivity.Online
	status.CurrentlyOnline = t.IsCurrentlyOnline(session, now)
	status.LastHeartbeat = session.Connectivity.LastHeartbeat
	status.EmergencyActive = session.Emergency.IsActive()
	status.UnresolvedAlerts = session.UnresolvedAlertCount()

	// an active emergency stays visible while the vehicle is out of contact
	status.DisplayStatus = session.Status
	if session.IsLive() && !session.Connectivity.Online && !status.EmergencyActive {
		status.DisplayStatus = ctdf.TrackingSessionStatusOffline
	}

	return status, nil
}

// StopSession ends the session, freezing its aggregates
func (t *Tracker) StopSession(identifier string, request StopRequest) (*ctdf.SessionSummary, error) {
	if err := validateStruct(&request); err != nil {
		return nil, err
	}

	var summary *ctdf.SessionSummary

	err := t.mutate(identifier, func(entry *sessionEntry, now time.Time, events *eventBatch) error {
		session := entry.session

		if err := requireLive(session); err != nil {
			return err
		}
		if session.Emergency.IsActive() {
			return newPreconditionError("session %s has an active emergency which must be resolved first", session.PrimaryIdentifier)
		}

		if request.Completed {
			session.Status = ctdf.TrackingSessionStatusCompleted
		} else {
			session.Status = ctdf.TrackingSessionStatusStopped
		}
		session.EndDateTime = now
		session.EndReason = request.Reason

		entry.markTerminal(now)

		summary = buildSummary(session)

		events.add(session, ctdf.EventTypeTrackingSessionEnded, now, func(body *ctdf.TrackingEventBody) {
			body.Summary = buildSummary(session)
		})

		return nil
	})

	if err != nil {
		return nil, err
	}

	liveSessions.Dec()

	log.Info().
		Str("session", identifier).
		Str("status", string(summary.Status)).
		Float64("distance", summary.TotalDistance).
		Msg("Ended tracking session")

	return summary, nil
}

func buildSummary(session *ctdf.TrackingSession) *ctdf.SessionSummary {
	return &ctdf.SessionSummary{
		SessionRef: session.PrimaryIdentifier,
		TripRef:    session.TripRef,
		BusRef:     session.BusRef,
		Status:     session.Status,
		EndReason:  session.EndReason,

		StartDateTime:   session.StartDateTime,
		EndDateTime:     session.EndDateTime,
		DurationSeconds: session.EndDateTime.Sub(session.StartDateTime).Seconds(),

		TotalDistance:   session.Performance.TotalDistance,
		AverageSpeed:    session.Performance.AverageSpeed,
		MaxSpeed:        session.Performance.MaxSpeed,
		SpeedViolations: session.Performance.SpeedViolations,
		RouteDeviations: session.Performance.RouteDeviations,
		TotalUpdates:    session.TotalUpdates,

		Alerts: ctdf.CountAlerts(session.Alerts),
	}
}

func (t *Tracker) PauseSession(identifier string) error {
	return t.mutate(identifier, func(entry *sessionEntry, now time.Time, events *eventBatch) error {
		if entry.session.Status != ctdf.TrackingSessionStatusActive {
			return newPreconditionError("only active sessions can be paused, session is %s", entry.session.Status)
		}

		entry.session.Status = ctdf.TrackingSessionStatusPaused
		return nil
	})
}

func (t *Tracker) ResumeSession(identifier string) error {
	return t.mutate(identifier, func(entry *sessionEntry, now time.Time, events *eventBatch) error {
		if entry.session.Status != ctdf.TrackingSessionStatusPaused {
			return newPreconditionError("only paused sessions can be resumed, session is %s", entry.session.Status)
		}

		entry.session.Status = ctdf.TrackingSessionStatusActive
		return nil
	})
}

// TriggerEmergency puts the session into the emergency state, repeated calls are idempotent
func (t *Tracker) TriggerEmergency(identifier string, request EmergencyRequest) (*ctdf.Emergency, error) {
	if err := validateStruct(&request); err != nil {
		return nil, err
	}

	var emergency *ctdf.Emergency

	err := t.mutate(identifier, func(entry *sessionEntry, now time.Time, events *eventBatch) error {
		if err := requireLive(entry.session); err != nil {
			return err
		}

		emergency = t.triggerEmergency(entry.session, request, now, events)
		return nil
	})

	return emergency, err
}

func (t *Tracker) ResolveEmergency(identifier string, request ResolveEmergencyRequest) (*ctdf.Emergency, error) {
	if err := validateStruct(&request); err != nil {
		return nil, err
	}

	var emergency *ctdf.Emergency

	err := t.mutate(identifier, func(entry *sessionEntry, now time.Time, events *eventBatch) error {
		if err := requireLive(entry.session); err != nil {
			return err
		}

		var err error
		emergency, err = t.resolveEmergency(entry.session, request, now, events)
		return err
	})

	return emergency, err
}

// AddAlert raises an externally reported alert. Emergency alerts go through the emergency overlay.
func (t *Tracker) AddAlert(identifier string, data AlertData) (*ctdf.Alert, error) {
	if err := validateAlertData(&data); err != nil {
		return nil, err
	}

	var alert *ctdf.Alert

	err := t.mutate(identifier, func(entry *sessionEntry, now time.Time, events *eventBatch) error {
		session := entry.session

		if err := requireLive(session); err != nil {
			return err
		}

		if data.Type == ctdf.AlertTypeEmergency {
			existing := findEmergencyAlert(session)
			if session.Emergency.IsActive() && existing == "" {
				return newPreconditionError("session %s has an active emergency without an emergency alert", session.PrimaryIdentifier)
			}

			var location *Coordinate
			if data.Location != nil && data.Location.IsValid() {
				location = &Coordinate{Latitude: data.Location.Latitude(), Longitude: data.Location.Longitude()}
			}

			before := len(session.Alerts)
			t.triggerEmergency(session, EmergencyRequest{Description: data.Message, Location: location}, now, events)

			if len(session.Alerts) > before {
				alert = session.Alerts[len(session.Alerts)-1].Clone()
			} else {
				// emergency was already active, no new alert is raised
				alert = session.GetAlert(existing).Clone()
			}
			return nil
		}

		alert = t.addAlert(session, data, now, events).Clone()
		return nil
	})

	return alert, err
}

func findEmergencyAlert(session *ctdf.TrackingSession) string {
	for i := len(session.Alerts) - 1; i >= 0; i-- {
		if session.Alerts[i].Type == ctdf.AlertTypeEmergency {
			return session.Alerts[i].PrimaryIdentifier
		}
	}
	return ""
}

func (t *Tracker) AcknowledgeAlert(identifier string, alertIdentifier string, by string) (*ctdf.Alert, error) {
	var alert *ctdf.Alert

	err := t.mutate(identifier, func(entry *sessionEntry, now time.Time, events *eventBatch) error {
		if err := requireLive(entry.session); err != nil {
			return err
		}

		var err error
		alert, err = acknowledgeAlert(entry.session, alertIdentifier, by, now)
		return err
	})

	return alert, err
}

func (t *Tracker) ResolveAlert(identifier string, alertIdentifier string) (*ctdf.Alert, error) {
	var alert *ctdf.Alert

	err := t.mutate(identifier, func(entry *sessionEntry, now time.Time, events *eventBatch) error {
		if err := requireLive(entry.session); err != nil {
			return err
		}

		var err error
		alert, err = resolveAlert(entry.session, alertIdentifier, now)
		return err
	})

	return alert, err
}

// LocationHistory returns the samples recorded within maxAge of now, zero returns everything retained
func (t *Tracker) LocationHistory(identifier string, maxAge time.Duration) ([]ctdf.LocationHistoryEntry, error) {
	var entries []ctdf.LocationHistoryEntry

	err := t.store.WithSession(identifier, func(entry *sessionEntry) error {
		if maxAge <= 0 {
			entries = append([]ctdf.LocationHistoryEntry{}, entry.session.History...)
			return nil
		}

		entries = historySince(entry.session.History, t.now().Add(-maxAge))
		return nil
	})

	return entries, err
}

// FindLiveSessionByBus resolves a vehicle reference to the session currently tracking it
func (t *Tracker) FindLiveSessionByBus(busRef string) (string, error) {
	identifier, found := t.store.FindLiveByBus(busRef)
	if !found {
		return "", newNotFoundError("live session for bus", busRef)
	}
	return identifier, nil
}

// Restore loads previously persisted sessions back into the store
func (t *Tracker) Restore(sessions []*ctdf.TrackingSession) int {
	restored := 0

	for _, session := range sessions {
		rules, err := compileRules(session.Settings.Rules)
		if err != nil {
			log.Error().Err(err).Str("session", session.PrimaryIdentifier).Msg("Failed to compile rules for restored session")
			continue
		}

		entry, err := t.store.Create(session, rules)
		if err != nil {
			log.Error().Err(err).Str("session", session.PrimaryIdentifier).Msg("Failed to restore session")
			continue
		}
		entry.dirty.Store(false)

		if session.IsLive() {
			liveSessions.Inc()
		}
		restored++
	}

	return restored
}
