package ctdf

import "time"

// SessionSummary is the frozen record returned once a session stops
type SessionSummary struct {
	SessionRef string                `groups:"basic"`
	TripRef    string                `groups:"basic"`
	BusRef     string                `groups:"basic"`
	Status     TrackingSessionStatus `groups:"basic"`
	EndReason  string                `groups:"basic"`

	StartDateTime   time.Time `groups:"basic"`
	EndDateTime     time.Time `groups:"basic"`
	DurationSeconds float64   `groups:"basic"`

	TotalDistance   float64 `groups:"basic"`
	AverageSpeed    float64 `groups:"basic"`
	MaxSpeed        float64 `groups:"basic"`
	SpeedViolations int     `groups:"basic"`
	RouteDeviations int     `groups:"basic"`
	TotalUpdates    int     `groups:"basic"`

	Alerts AlertCounts `groups:"basic"`
}

type AlertCounts struct {
	Total      int                   `groups:"basic"`
	Unresolved int                   `groups:"basic"`
	BySeverity map[AlertSeverity]int `groups:"basic"`
	ByType     map[AlertType]int     `groups:"basic"`
}

func CountAlerts(alerts []*Alert) AlertCounts {
	counts := AlertCounts{
		BySeverity: map[AlertSeverity]int{},
		ByType:     map[AlertType]int{},
	}

	for _, alert := range alerts {
		counts.Total++
		if !alert.Resolved {
			counts.Unresolved++
		}
		counts.BySeverity[alert.Severity]++
		counts.ByType[alert.Type]++
	}

	return counts
}

// SessionStatus is the read projection of a live session
type SessionStatus struct {
	PrimaryIdentifier string `groups:"basic"`
	TripRef           string `groups:"basic"`
	BusRef            string `groups:"basic"`
	RouteRef          string `groups:"basic"`

	Status        TrackingSessionStatus `groups:"basic"`
	DisplayStatus TrackingSessionStatus `groups:"basic"`

	CurrentState  *CurrentState `groups:"basic"`
	Performance   Performance   `groups:"basic"`
	RouteProgress RouteProgress `groups:"basic"`

	Online           bool      `groups:"basic"`
	CurrentlyOnline  bool      `groups:"basic"`
	LastHeartbeat    time.Time `groups:"basic"`
	EmergencyActive  bool      `groups:"basic"`
	UnresolvedAlerts int       `groups:"basic"`

	TotalUpdates  int       `groups:"basic"`
	StartDateTime time.Time `groups:"basic"`
}
