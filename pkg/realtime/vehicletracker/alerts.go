package vehicletracker

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/travigo/fleettracker/pkg/ctdf"
)

// addAlert is the only place alerts are created. It must be called with the session lock held.
func (t *Tracker) addAlert(session *ctdf.TrackingSession, data AlertData, now time.Time, events *eventBatch) *ctdf.Alert {
	timestamp := data.Timestamp
	if timestamp.IsZero() {
		timestamp = now
	}

	alert := &ctdf.Alert{
		PrimaryIdentifier: uuid.NewString(),
		Type:              data.Type,
		Severity:          data.Severity,
		Message:           data.Message,
		Location:          data.Location.Clone(),
		Timestamp:         timestamp,
	}
	if len(data.Metadata) > 0 {
		alert.Metadata = make(map[string]string, len(data.Metadata))
		for k, v := range data.Metadata {
			alert.Metadata[k] = v
		}
	}

	session.Alerts = append(session.Alerts, alert)

	switch alert.Type {
	case ctdf.AlertTypeSpeedViolation:
		session.Performance.SpeedViolations++
	case ctdf.AlertTypeRouteDeviation:
		session.Performance.RouteDeviations++
	}

	alertsTotal.WithLabelValues(string(alert.Type), string(alert.Severity)).Inc()

	if alert.Severity == ctdf.AlertSeverityCritical {
		log.Warn().
			Str("session", session.PrimaryIdentifier).
			Str("bus", session.BusRef).
			Str("type", string(alert.Type)).
			Msg(alert.Message)
	} else {
		log.Debug().
			Str("session", session.PrimaryIdentifier).
			Str("type", string(alert.Type)).
			Str("severity", string(alert.Severity)).
			Msg(alert.Message)
	}

	events.add(session, ctdf.EventTypeTrackingAlertCreated, now, func(body *ctdf.TrackingEventBody) {
		body.Alert = alert.Clone()
	})

	return alert
}

// triggerEmergency installs or refreshes the emergency overlay. Repeated triggers only update
// the description of the active emergency.
func (t *Tracker) triggerEmergency(session *ctdf.TrackingSession, request EmergencyRequest, now time.Time, events *eventBatch) *ctdf.Emergency {
	var location *ctdf.Location
	if request.Location != nil {
		l := ctdf.NewLocation(request.Location.Latitude, request.Location.Longitude)
		location = &l
	} else if session.CurrentState != nil {
		location = session.CurrentState.Location.Clone()
	}

	session.Emergency.PanicActive = true
	session.Emergency.LastPanicAt = now
	session.Status = ctdf.TrackingSessionStatusEmergency

	if active := session.Emergency.Active; active != nil && active.Status == ctdf.EmergencyStatusActive {
		if request.Description != "" {
			active.Description = request.Description
		}
		return active.Clone()
	}

	emergencyType := request.Type
	if emergencyType == "" {
		emergencyType = ctdf.EmergencyTypePanic
	}

	emergency := &ctdf.Emergency{
		PrimaryIdentifier: uuid.NewString(),
		Type:              emergencyType,
		Status:            ctdf.EmergencyStatusActive,
		Description:       request.Description,
		Location:          location,
		TriggeredBy:       request.TriggeredBy,
		TriggeredAt:       now,
	}
	session.Emergency.Active = emergency

	message := request.Description
	if message == "" {
		message = "Emergency triggered"
	}
	t.addAlert(session, AlertData{
		Type:     ctdf.AlertTypeEmergency,
		Severity: ctdf.AlertSeverityCritical,
		Message:  message,
		Location: location,
		Metadata: map[string]string{
			"emergency":     emergency.PrimaryIdentifier,
			"emergencyType": string(emergency.Type),
		},
	}, now, events)

	events.add(session, ctdf.EventTypeEmergencyTriggered, now, func(body *ctdf.TrackingEventBody) {
		body.Emergency = emergency.Clone()
	})

	log.Warn().
		Str("session", session.PrimaryIdentifier).
		Str("bus", session.BusRef).
		Str("emergency", emergency.PrimaryIdentifier).
		Msg("Emergency triggered")

	return emergency.Clone()
}

func (t *Tracker) resolveEmergency(session *ctdf.TrackingSession, request ResolveEmergencyRequest, now time.Time, events *eventBatch) (*ctdf.Emergency, error) {
	active := session.Emergency.Active
	if active == nil || active.Status != ctdf.EmergencyStatusActive {
		return nil, newPreconditionError("session %s has no active emergency", session.PrimaryIdentifier)
	}

	session.Emergency.PanicActive = false

	active.Status = ctdf.EmergencyStatusResolved
	active.Resolution = request.Resolution
	active.ResolvedBy = request.ResolvedBy
	active.ResolvedAt = now

	session.Status = ctdf.TrackingSessionStatusActive

	events.add(session, ctdf.EventTypeEmergencyResolved, now, func(body *ctdf.TrackingEventBody) {
		body.Emergency = active.Clone()
	})

	log.Info().
		Str("session", session.PrimaryIdentifier).
		Str("emergency", active.PrimaryIdentifier).
		Msg("Emergency resolved")

	return active.Clone(), nil
}

func acknowledgeAlert(session *ctdf.TrackingSession, alertIdentifier string, by string, now time.Time) (*ctdf.Alert, error) {
	alert := session.GetAlert(alertIdentifier)
	if alert == nil {
		return nil, newNotFoundError("alert", alertIdentifier)
	}

	if !alert.Acknowledged {
		alert.Acknowledged = true
		alert.AcknowledgedBy = by
		alert.AcknowledgedAt = now
	}

	return alert.Clone(), nil
}

func resolveAlert(session *ctdf.TrackingSession, alertIdentifier string, now time.Time) (*ctdf.Alert, error) {
	alert := session.GetAlert(alertIdentifier)
	if alert == nil {
		return nil, newNotFoundError("alert", alertIdentifier)
	}

	if !alert.Resolved {
		alert.Resolved = true
		alert.ResolvedAt = now
	}

	return alert.Clone(), nil
}
