package ctdf

import (
	"fmt"
	"time"
)

type Event struct {
	Type      EventType
	Timestamp time.Time
	Body      interface{}
}

type EventType string

const (
	EventTypeTrackingSessionStarted EventType = "TrackingSessionStarted"
	EventTypeTrackingSessionEnded   EventType = "TrackingSessionEnded"
	EventTypeTrackingSessionOffline EventType = "TrackingSessionOffline"
	EventTypeTrackingAlertCreated   EventType = "TrackingAlertCreated"
	EventTypeEmergencyTriggered     EventType = "EmergencyTriggered"
	EventTypeEmergencyResolved      EventType = "EmergencyResolved"
)

// TrackingEventBody is the body of every event raised by the vehicle tracker
type TrackingEventBody struct {
	SessionRef string
	TripRef    string
	BusRef     string
	DriverRef  string

	Alert     *Alert          `json:",omitempty"`
	Emergency *Emergency      `json:",omitempty"`
	Summary   *SessionSummary `json:",omitempty"`
}

// TrackingEvent is an Event whose body has been decoded into its concrete type
type TrackingEvent struct {
	Type      EventType
	Timestamp time.Time
	Body      TrackingEventBody
}

// ShouldNotify reports whether the event warrants telling a person about it
func (e *TrackingEvent) ShouldNotify() bool {
	switch e.Type {
	case EventTypeTrackingAlertCreated:
		return e.Body.Alert != nil && e.Body.Alert.Severity.IsUrgent()
	case EventTypeEmergencyTriggered, EventTypeEmergencyResolved, EventTypeTrackingSessionOffline:
		return true
	}

	return false
}

func (e *TrackingEvent) GetNotificationData() EventNotificationData {
	eventNotificationData := EventNotificationData{}

	vehicle := e.Body.BusRef
	if vehicle == "" {
		vehicle = e.Body.SessionRef
	}

	switch e.Type {
	case EventTypeTrackingAlertCreated:
		if e.Body.Alert == nil {
			break
		}
		eventNotificationData.Title = fmt.Sprintf("%s alert on %s", e.Body.Alert.Severity, vehicle)
		eventNotificationData.Message = e.Body.Alert.Message
	case EventTypeEmergencyTriggered:
		eventNotificationData.Title = fmt.Sprintf("Emergency on %s", vehicle)
		eventNotificationData.Message = "An emergency has been raised"

		if e.Body.Emergency != nil && e.Body.Emergency.Description != "" {
			eventNotificationData.Message = e.Body.Emergency.Description
		}
	case EventTypeEmergencyResolved:
		eventNotificationData.Title = fmt.Sprintf("Emergency resolved on %s", vehicle)
		eventNotificationData.Message = "The emergency has been resolved"

		if e.Body.Emergency != nil && e.Body.Emergency.Resolution != "" {
			eventNotificationData.Message = e.Body.Emergency.Resolution
		}
	case EventTypeTrackingSessionOffline:
		eventNotificationData.Title = fmt.Sprintf("%s is offline", vehicle)
		eventNotificationData.Message = "No communication has been received from the vehicle"
	}

	return eventNotificationData
}

type EventNotificationData struct {
	Title   string
	Message string
}
