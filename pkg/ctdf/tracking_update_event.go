package ctdf

import "time"

// TrackingUpdateEvent is the payload carried on the tracking ingest queue
type TrackingUpdateEvent struct {
	MessageType TrackingUpdateMessageType

	// Either the session or the vehicle must be given
	SessionRef string
	BusRef     string

	SourceType string
	RecordedAt time.Time

	DataSource *DataSource

	Location  *LocationUpdate
	Heartbeat *Heartbeat
}

type TrackingUpdateMessageType string

const (
	TrackingUpdateMessageTypeLocation  TrackingUpdateMessageType = "Location"
	TrackingUpdateMessageTypeHeartbeat TrackingUpdateMessageType = "Heartbeat"
)
