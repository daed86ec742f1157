package ctdf

import "time"

type Geofence struct {
	Name string       `groups:"basic"`
	Type GeofenceType `groups:"basic"`

	Center       Location `groups:"basic"`
	RadiusMeters float64  `groups:"basic"`

	AlertOnEntry bool `groups:"detailed"`
	AlertOnExit  bool `groups:"detailed"`

	Entered   bool      `groups:"basic"`
	EnteredAt time.Time `groups:"detailed"`
	ExitedAt  time.Time `groups:"detailed"`
}

type GeofenceType string

const (
	GeofenceTypeOrigin      GeofenceType = "origin"
	GeofenceTypeDestination GeofenceType = "destination"
	GeofenceTypeWaypoint    GeofenceType = "waypoint"
	GeofenceTypeStop        GeofenceType = "stop"
	GeofenceTypeDepot       GeofenceType = "depot"
	GeofenceTypeRestricted  GeofenceType = "restricted"
	GeofenceTypeCustom      GeofenceType = "custom"
)

// IsWaypoint reports whether the geofence marks a point the vehicle is expected to pass
func (t GeofenceType) IsWaypoint() bool {
	return t == GeofenceTypeWaypoint || t == GeofenceTypeStop || t == GeofenceTypeDestination
}

func (g *Geofence) Contains(location *Location) (bool, float64) {
	distance := g.Center.Distance(location)

	return distance <= g.RadiusMeters, distance
}
