package vehicletracker

import (
	"fmt"
	"time"

	"github.com/travigo/fleettracker/pkg/ctdf"
)

// evaluateGeofences updates the inside/outside state of every geofence and returns the
// alerts for the transitions that asked for one
func evaluateGeofences(session *ctdf.TrackingSession, location *ctdf.Location, now time.Time) []AlertData {
	var alerts []AlertData

	for i := range session.Geofences {
		geofence := &session.Geofences[i]

		inside, distance := geofence.Contains(location)

		switch {
		case inside && !geofence.Entered:
			geofence.Entered = true
			geofence.EnteredAt = now

			if geofence.Type == ctdf.GeofenceTypeDestination {
				session.RouteProgress.CompletionPercentage = 100
				session.RouteProgress.EstimatedRemaining = 0
			}

			if geofence.AlertOnEntry {
				alerts = append(alerts, AlertData{
					Type:     ctdf.AlertTypeGeofenceEntry,
					Severity: ctdf.AlertSeverityLow,
					Message:  fmt.Sprintf("Entered %s %s", geofence.Type, geofence.Name),
					Location: location.Clone(),
					Metadata: map[string]string{
						"geofence": geofence.Name,
						"distance": fmt.Sprintf("%.0f", distance),
					},
				})
			}
		case !inside && geofence.Entered:
			geofence.Entered = false
			geofence.ExitedAt = now

			if geofence.AlertOnExit {
				alerts = append(alerts, AlertData{
					Type:     ctdf.AlertTypeGeofenceExit,
					Severity: ctdf.AlertSeverityLow,
					Message:  fmt.Sprintf("Exited %s %s", geofence.Type, geofence.Name),
					Location: location.Clone(),
					Metadata: map[string]string{
						"geofence": geofence.Name,
						"distance": fmt.Sprintf("%.0f", distance),
					},
				})
			}
		}
	}

	return alerts
}

// evaluateSpeed raises a violation for every sample above the limit
func evaluateSpeed(speed float64, location *ctdf.Location, config *Config) *AlertData {
	if speed <= config.SpeedLimit {
		return nil
	}

	severity := ctdf.AlertSeverityHigh
	if speed > config.CriticalSpeed {
		severity = ctdf.AlertSeverityCritical
	}

	return &AlertData{
		Type:     ctdf.AlertTypeSpeedViolation,
		Severity: severity,
		Message:  fmt.Sprintf("Speed %.1f km/h exceeds limit of %.0f km/h", speed, config.SpeedLimit),
		Location: location.Clone(),
		Metadata: map[string]string{
			"speed": fmt.Sprintf("%.1f", speed),
			"limit": fmt.Sprintf("%.0f", config.SpeedLimit),
		},
	}
}

// evaluateRouteDeviation alerts once when the vehicle leaves the planned path and re-arms when it returns
func evaluateRouteDeviation(session *ctdf.TrackingSession, location *ctdf.Location, config *Config) *AlertData {
	if len(session.RoutePath) == 0 {
		return nil
	}

	distance := location.DistanceFromPath(session.RoutePath)
	offRoute := distance > config.RouteDeviationMeters

	wasOffRoute := session.RouteProgress.OffRoute
	session.RouteProgress.OffRoute = offRoute

	if !offRoute || wasOffRoute {
		return nil
	}

	return &AlertData{
		Type:     ctdf.AlertTypeRouteDeviation,
		Severity: ctdf.AlertSeverityMedium,
		Message:  fmt.Sprintf("Vehicle is %.0fm from the planned route", distance),
		Location: location.Clone(),
		Metadata: map[string]string{
			"distance": fmt.Sprintf("%.0f", distance),
		},
	}
}

// evaluateBattery alerts once when the device battery drops below the threshold
func evaluateBattery(session *ctdf.TrackingSession, config *Config) *AlertData {
	battery := session.Connectivity.Device.BatteryLevel
	if battery == nil {
		return nil
	}

	low := *battery < config.LowBatteryPercent
	if !low {
		session.Connectivity.LowBatteryAlerted = false
		return nil
	}
	if session.Connectivity.LowBatteryAlerted {
		return nil
	}

	session.Connectivity.LowBatteryAlerted = true

	var location *ctdf.Location
	if session.CurrentState != nil {
		location = session.CurrentState.Location.Clone()
	}

	return &AlertData{
		Type:     ctdf.AlertTypeLowBattery,
		Severity: ctdf.AlertSeverityMedium,
		Message:  fmt.Sprintf("Device battery at %.0f%%", *battery),
		Location: location,
	}
}
