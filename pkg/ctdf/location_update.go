package ctdf

import "time"

// LocationUpdate is a single position sample reported by a vehicle
type LocationUpdate struct {
	Latitude  float64  `validate:"latitude"`
	Longitude float64  `validate:"longitude"`
	Speed     *float64 `validate:"omitempty,gte=0"` // km/h
	Heading   *float64 `validate:"omitempty,gte=0,lte=359"`
	Altitude  *float64
	Accuracy  *float64 `validate:"omitempty,gte=0"`
	Address   string   `validate:"max=512"`
	Timestamp time.Time

	Device *DeviceInfo `validate:"omitempty"`
}

func (u *LocationUpdate) Location() Location {
	return NewLocation(u.Latitude, u.Longitude)
}

func (u *LocationUpdate) SpeedValue() float64 {
	return valueOrZero(u.Speed)
}

func (u *LocationUpdate) HeadingValue() float64 {
	return valueOrZero(u.Heading)
}

func (u *LocationUpdate) AltitudeValue() float64 {
	return valueOrZero(u.Altitude)
}

func (u *LocationUpdate) AccuracyValue() float64 {
	return valueOrZero(u.Accuracy)
}

// Heartbeat is a liveness ping from the on board device
type Heartbeat struct {
	Timestamp time.Time
	Device    *DeviceInfo `validate:"omitempty"`
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
