package ctdf

import "time"

type Alert struct {
	PrimaryIdentifier string `groups:"basic"`

	Type     AlertType     `groups:"basic"`
	Severity AlertSeverity `groups:"basic"`
	Message  string        `groups:"basic"`

	Location  *Location `groups:"basic"`
	Timestamp time.Time `groups:"basic"`

	Acknowledged   bool      `groups:"basic"`
	AcknowledgedBy string    `groups:"detailed"`
	AcknowledgedAt time.Time `groups:"detailed"`

	Resolved   bool      `groups:"basic"`
	ResolvedAt time.Time `groups:"detailed"`

	Metadata map[string]string `groups:"detailed"`
}

type AlertType string

const (
	AlertTypeGeofenceEntry     AlertType = "geofence_entry"
	AlertTypeGeofenceExit      AlertType = "geofence_exit"
	AlertTypeSpeedViolation    AlertType = "speed_violation"
	AlertTypeRouteDeviation    AlertType = "route_deviation"
	AlertTypeCommunicationLoss AlertType = "communication_loss"
	AlertTypeEmergency         AlertType = "emergency"
	AlertTypeRuleViolation     AlertType = "rule_violation"
	AlertTypeLowBattery        AlertType = "low_battery"
	AlertTypeMaintenance       AlertType = "maintenance"
	AlertTypeOther             AlertType = "other"
)

var AlertTypes = []AlertType{
	AlertTypeGeofenceEntry,
	AlertTypeGeofenceExit,
	AlertTypeSpeedViolation,
	AlertTypeRouteDeviation,
	AlertTypeCommunicationLoss,
	AlertTypeEmergency,
	AlertTypeRuleViolation,
	AlertTypeLowBattery,
	AlertTypeMaintenance,
	AlertTypeOther,
}

type AlertSeverity string

const (
	AlertSeverityLow      AlertSeverity = "low"
	AlertSeverityMedium   AlertSeverity = "medium"
	AlertSeverityHigh     AlertSeverity = "high"
	AlertSeverityCritical AlertSeverity = "critical"
)

var AlertSeverities = []AlertSeverity{
	AlertSeverityLow,
	AlertSeverityMedium,
	AlertSeverityHigh,
	AlertSeverityCritical,
}

// IsUrgent reports whether the severity should reach a person straight away
func (s AlertSeverity) IsUrgent() bool {
	return s == AlertSeverityHigh || s == AlertSeverityCritical
}

func (a *Alert) Clone() *Alert {
	if a == nil {
		return nil
	}

	c := *a
	c.Location = a.Location.Clone()

	if a.Metadata != nil {
		c.Metadata = make(map[string]string, len(a.Metadata))
		for k, v := range a.Metadata {
			c.Metadata[k] = v
		}
	}

	return &c
}
