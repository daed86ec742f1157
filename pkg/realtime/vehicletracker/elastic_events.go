package vehicletracker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/travigo/fleettracker/pkg/ctdf"
	"github.com/travigo/fleettracker/pkg/elastic_client"
)

// TrackingElasticEvent is the flattened form of a tracking event used for analytics
type TrackingElasticEvent struct {
	Timestamp time.Time
	Type      ctdf.EventType

	SessionRef string
	TripRef    string
	BusRef     string
	DriverRef  string

	AlertType     ctdf.AlertType     `json:",omitempty"`
	AlertSeverity ctdf.AlertSeverity `json:",omitempty"`
	Message       string             `json:",omitempty"`

	EmergencyType ctdf.EmergencyType `json:",omitempty"`

	Location *ctdf.Location `json:",omitempty"`
}

func newTrackingElasticEvent(event ctdf.Event) (*TrackingElasticEvent, bool) {
	body, ok := event.Body.(ctdf.TrackingEventBody)
	if !ok {
		return nil, false
	}

	elasticEvent := &TrackingElasticEvent{
		Timestamp:  event.Timestamp,
		Type:       event.Type,
		SessionRef: body.SessionRef,
		TripRef:    body.TripRef,
		BusRef:     body.BusRef,
		DriverRef:  body.DriverRef,
	}

	if body.Alert != nil {
		elasticEvent.AlertType = body.Alert.Type
		elasticEvent.AlertSeverity = body.Alert.Severity
		elasticEvent.Message = body.Alert.Message
		elasticEvent.Location = body.Alert.Location
	}
	if body.Emergency != nil {
		elasticEvent.EmergencyType = body.Emergency.Type
		if elasticEvent.Location == nil {
			elasticEvent.Location = body.Emergency.Location
		}
	}

	return elasticEvent, true
}

func trackingEventsIndexName(timestamp time.Time) string {
	yearNumber, weekNumber := timestamp.ISOWeek()
	return fmt.Sprintf("tracking-events-%d-%d", yearNumber, weekNumber)
}

// ElasticSink indexes every event for analytics
type ElasticSink struct {
	index func(indexName string, document io.ReadSeeker)
}

func NewElasticSink() *ElasticSink {
	return &ElasticSink{index: elastic_client.IndexRequest}
}

func (s *ElasticSink) Name() string {
	return "elasticsearch"
}

func (s *ElasticSink) Send(event ctdf.Event) error {
	elasticEvent, ok := newTrackingElasticEvent(event)
	if !ok {
		return nil
	}

	document, err := json.Marshal(elasticEvent)
	if err != nil {
		return err
	}

	s.index(trackingEventsIndexName(event.Timestamp), bytes.NewReader(document))

	return nil
}
