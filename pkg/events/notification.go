package events

import (
	"github.com/travigo/fleettracker/pkg/ctdf"
	"github.com/travigo/fleettracker/pkg/util"
)

// Longer push bodies are cut off by most devices anyway
const maxNotificationMessageLength = 240

// NewNotification turns a tracking event into the push notification sent to the operations topic
func NewNotification(event *ctdf.TrackingEvent) ctdf.Notification {
	notificationData := event.GetNotificationData()

	return ctdf.Notification{
		TargetTopic: ctdf.NotificationTopicOperations,
		Type:        ctdf.NotificationTypePush,
		Title:       notificationData.Title,
		Message:     util.TrimString(notificationData.Message, maxNotificationMessageLength),
		Data:        notificationPayload(event),
	}
}

// notificationPayload carries the references a device needs to open the right screen
func notificationPayload(event *ctdf.TrackingEvent) map[string]string {
	data := map[string]string{
		"event": string(event.Type),
	}

	if event.Body.SessionRef != "" {
		data["session"] = event.Body.SessionRef
	}
	if event.Body.BusRef != "" {
		data["bus"] = event.Body.BusRef
	}
	if event.Body.Alert != nil && event.Body.Alert.PrimaryIdentifier != "" {
		data["alert"] = event.Body.Alert.PrimaryIdentifier
	}
	if event.Body.Emergency != nil && event.Body.Emergency.PrimaryIdentifier != "" {
		data["emergency"] = event.Body.Emergency.PrimaryIdentifier
	}

	return data
}
