package ctdf

import "time"

// LocationHistoryEntry is one accepted sample, flat so it can be exported as CSV
type LocationHistoryEntry struct {
	Latitude  float64   `csv:"latitude" groups:"basic"`
	Longitude float64   `csv:"longitude" groups:"basic"`
	Speed     float64   `csv:"speed" groups:"basic"`
	Heading   float64   `csv:"heading" groups:"basic"`
	Altitude  float64   `csv:"altitude" groups:"basic"`
	Accuracy  float64   `csv:"accuracy" groups:"basic"`
	Address   string    `csv:"address" groups:"basic"`
	Timestamp time.Time `csv:"timestamp" groups:"basic"`

	DistanceFromPrevious float64 `csv:"distance_from_previous_m" groups:"basic"`
	TimeSinceLastUpdate  float64 `csv:"time_since_last_update_s" groups:"basic"`
	OutOfOrder           bool    `csv:"out_of_order" groups:"basic"`

	ReceivedAt time.Time `csv:"received_at" groups:"detailed"`
}

func (e *LocationHistoryEntry) Location() Location {
	return NewLocation(e.Latitude, e.Longitude)
}
