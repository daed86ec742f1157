package ctdf

// Notification is queued on the notify queue and delivered by the notify consumers.
// Exactly one of TargetUser or TargetTopic is expected to be set.
type Notification struct {
	TargetUser  string `json:",omitempty"`
	TargetTopic string `json:",omitempty"`
	Type        NotificationType

	Title   string
	Message string

	// Passed through to the device as key/value data
	Data map[string]string `json:",omitempty"`
}

type NotificationType string

const (
	NotificationTypePush NotificationType = "Push"
	// Email delivery is not wired up, the notify consumer acks and skips these
	NotificationTypeEmail NotificationType = "Email"
)

// NotificationTopicOperations is the push topic every fleet operator device subscribes to
const NotificationTopicOperations = "fleet-operations"

type UserPushNotificationTarget struct {
	UserID                string
	PushNotificationToken string
}
