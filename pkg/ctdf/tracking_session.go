package ctdf

import (
	"time"

	"golang.org/x/exp/slices"
)

var TrackingSessionIDFormat = "TRACKING:%s"

type TrackingSession struct {
	PrimaryIdentifier string `groups:"basic"`

	TripRef  string      `groups:"basic"`
	BusRef   string      `groups:"basic"`
	RouteRef string      `groups:"basic"`
	Driver   *DriverInfo `groups:"detailed"`

	Status TrackingSessionStatus `groups:"basic"`

	CurrentState  *CurrentState `groups:"basic"`
	RouteProgress RouteProgress `groups:"basic"`
	Performance   Performance   `groups:"basic"`

	Geofences []Geofence `groups:"detailed"`
	RoutePath []Location `groups:"internal"`

	History []LocationHistoryEntry `groups:"internal"`

	Alerts []*Alert `groups:"detailed"`

	Emergency    EmergencyState `groups:"basic"`
	Connectivity Connectivity   `groups:"basic"`

	Settings   SessionSettings `groups:"detailed"`
	RuleStates map[string]bool `groups:"internal"`

	TotalUpdates int `groups:"detailed"`

	StartDateTime time.Time `groups:"basic"`
	EndDateTime   time.Time `groups:"basic"`
	EndReason     string    `groups:"detailed"`

	CreationDateTime     time.Time `groups:"detailed"`
	ModificationDateTime time.Time `groups:"detailed"`

	DataSource *DataSource `groups:"internal"`
}

type TrackingSessionStatus string

const (
	TrackingSessionStatusActive    TrackingSessionStatus = "active"
	TrackingSessionStatusPaused    TrackingSessionStatus = "paused"
	TrackingSessionStatusStopped   TrackingSessionStatus = "stopped"
	TrackingSessionStatusCompleted TrackingSessionStatus = "completed"
	TrackingSessionStatusEmergency TrackingSessionStatus = "emergency"
	TrackingSessionStatusOffline   TrackingSessionStatus = "offline"
)

func (s TrackingSessionStatus) IsTerminal() bool {
	return s == TrackingSessionStatusStopped || s == TrackingSessionStatusCompleted
}

type DriverInfo struct {
	PrimaryIdentifier string `groups:"basic"`
	Name              string `groups:"basic"`
	Phone             string `groups:"detailed"`
}

type CurrentState struct {
	Location  Location  `groups:"basic"`
	Speed     float64   `groups:"basic"`
	Heading   float64   `groups:"basic"`
	Altitude  float64   `groups:"detailed"`
	Accuracy  float64   `groups:"detailed"`
	Address   string    `groups:"basic"`
	Timestamp time.Time `groups:"basic"`
}

type RouteProgress struct {
	RouteDistance        float64 `groups:"basic"` // km, supplied when the session starts
	DistanceFromOrigin   float64 `groups:"basic"`
	EstimatedRemaining   float64 `groups:"basic"`
	CompletionPercentage float64 `groups:"basic"`
	NextWaypoint         string  `groups:"basic"`
	OffRoute             bool    `groups:"basic"`
}

type Performance struct {
	AverageSpeed    float64 `groups:"basic"`
	MaxSpeed        float64 `groups:"basic"`
	TotalDistance   float64 `groups:"basic"` // km
	SpeedViolations int     `groups:"basic"`
	RouteDeviations int     `groups:"basic"`
}

type Connectivity struct {
	LastHeartbeat time.Time  `groups:"basic"`
	Online        bool       `groups:"basic"`
	OfflineSince  time.Time  `groups:"detailed"`
	Device        DeviceInfo `groups:"detailed"`

	OfflineAlerted    bool `groups:"internal"`
	LowBatteryAlerted bool `groups:"internal"`
}

type DeviceInfo struct {
	DeviceID       string   `groups:"detailed"`
	BatteryLevel   *float64 `groups:"detailed" validate:"omitempty,gte=0,lte=100"`
	SignalStrength *float64 `groups:"detailed"`
	NetworkType    string   `groups:"detailed"`
	AppVersion     string   `groups:"detailed"`
}

func (d DeviceInfo) clone() DeviceInfo {
	if d.BatteryLevel != nil {
		battery := *d.BatteryLevel
		d.BatteryLevel = &battery
	}
	if d.SignalStrength != nil {
		signal := *d.SignalStrength
		d.SignalStrength = &signal
	}
	return d
}

// Merge overwrites the fields present in other
func (d *DeviceInfo) Merge(other *DeviceInfo) {
	if other == nil {
		return
	}
	o := other.clone()

	if o.DeviceID != "" {
		d.DeviceID = o.DeviceID
	}
	if o.BatteryLevel != nil {
		d.BatteryLevel = o.BatteryLevel
	}
	if o.SignalStrength != nil {
		d.SignalStrength = o.SignalStrength
	}
	if o.NetworkType != "" {
		d.NetworkType = o.NetworkType
	}
	if o.AppVersion != "" {
		d.AppVersion = o.AppVersion
	}
}

type SessionSettings struct {
	UpdateInterval string      `groups:"detailed"` // ISO-8601 duration
	AccuracyMode   string      `groups:"detailed"`
	Rules          []AlertRule `groups:"detailed"`
}

// AlertRule is a boolean expression evaluated against every location update
type AlertRule struct {
	Name       string        `groups:"detailed"`
	Expression string        `groups:"detailed"`
	Severity   AlertSeverity `groups:"detailed"`
	Message    string        `groups:"detailed"`
}

func (s *TrackingSession) IsLive() bool {
	return !s.Status.IsTerminal()
}

func (s *TrackingSession) GetAlert(identifier string) *Alert {
	index := slices.IndexFunc(s.Alerts, func(a *Alert) bool {
		return a.PrimaryIdentifier == identifier
	})
	if index == -1 {
		return nil
	}
	return s.Alerts[index]
}

func (s *TrackingSession) UnresolvedAlertCount() int {
	count := 0
	for _, alert := range s.Alerts {
		if !alert.Resolved {
			count++
		}
	}
	return count
}

// Clone returns a deep copy sharing no mutable memory with the original
func (s *TrackingSession) Clone() *TrackingSession {
	if s == nil {
		return nil
	}

	c := *s

	if s.Driver != nil {
		driver := *s.Driver
		c.Driver = &driver
	}
	if s.CurrentState != nil {
		state := *s.CurrentState
		state.Location = *s.CurrentState.Location.Clone()
		c.CurrentState = &state
	}
	if s.DataSource != nil {
		dataSource := *s.DataSource
		c.DataSource = &dataSource
	}

	if s.Geofences != nil {
		c.Geofences = make([]Geofence, len(s.Geofences))
		for i, geofence := range s.Geofences {
			geofence.Center = *geofence.Center.Clone()
			c.Geofences[i] = geofence
		}
	}

	if s.RoutePath != nil {
		c.RoutePath = make([]Location, len(s.RoutePath))
		for i := range s.RoutePath {
			c.RoutePath[i] = *s.RoutePath[i].Clone()
		}
	}

	if s.History != nil {
		c.History = append(make([]LocationHistoryEntry, 0, len(s.History)), s.History...)
	}

	if s.Alerts != nil {
		c.Alerts = make([]*Alert, len(s.Alerts))
		for i, alert := range s.Alerts {
			c.Alerts[i] = alert.Clone()
		}
	}

	c.Emergency.Active = s.Emergency.Active.Clone()
	c.Connectivity.Device = s.Connectivity.Device.clone()

	if s.Settings.Rules != nil {
		c.Settings.Rules = append(make([]AlertRule, 0, len(s.Settings.Rules)), s.Settings.Rules...)
	}

	if s.RuleStates != nil {
		c.RuleStates = make(map[string]bool, len(s.RuleStates))
		for k, v := range s.RuleStates {
			c.RuleStates[k] = v
		}
	}

	return &c
}
