package vehicletracker

import (
	"time"

	"github.com/travigo/fleettracker/pkg/ctdf"
)

type StartSessionRequest struct {
	TripRef  string `validate:"required,max=256"`
	BusRef   string `validate:"required,max=256"`
	RouteRef string `validate:"max=256"`

	Driver *ctdf.DriverInfo

	Geofences []GeofenceDefinition `validate:"dive"`

	// Optional polyline of the planned route used for deviation detection
	RoutePath []Coordinate `validate:"dive"`
	// Planned route length in km
	RouteDistance float64 `validate:"gte=0"`

	Settings ctdf.SessionSettings

	DataSource *ctdf.DataSource
}

type GeofenceDefinition struct {
	Name         string            `validate:"required,max=256"`
	Type         ctdf.GeofenceType `validate:"omitempty,oneof=origin destination waypoint stop depot restricted custom"`
	Latitude     float64           `validate:"latitude"`
	Longitude    float64           `validate:"longitude"`
	RadiusMeters float64           `validate:"gt=0"`
	AlertOnEntry bool
	AlertOnExit  bool
}

type Coordinate struct {
	Latitude  float64 `validate:"latitude"`
	Longitude float64 `validate:"longitude"`
}

type StopRequest struct {
	Reason    string `validate:"max=1024"`
	Completed bool
}

type EmergencyRequest struct {
	Type        ctdf.EmergencyType `validate:"omitempty,oneof=panic accident medical breakdown security other"`
	Description string             `validate:"max=1024"`
	TriggeredBy string             `validate:"max=256"`
	Location    *Coordinate        `validate:"omitempty"`
}

type ResolveEmergencyRequest struct {
	Resolution string `validate:"max=1024"`
	ResolvedBy string `validate:"max=256"`
}

// AlertData is everything needed to raise an alert, the identifier is always generated
type AlertData struct {
	Type     ctdf.AlertType     `validate:"required"`
	Severity ctdf.AlertSeverity `validate:"required"`
	Message  string             `validate:"required,max=1024"`

	Location  *ctdf.Location
	Timestamp time.Time

	Metadata map[string]string
}
