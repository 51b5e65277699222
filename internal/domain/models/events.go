package models

// Role values mirror the identity service's role vocabulary.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleBasicUser  Role = "basic_user"
	RoleSubscriber Role = "subscriber"
)

// NotificationTopic groups notifications by the entity they concern.
type NotificationTopic string

const (
	TopicSubscription NotificationTopic = "subscription"
	TopicCard         NotificationTopic = "card"
	TopicTransaction  NotificationTopic = "transaction"
)

// AuthEvent asks the auth sidecar to set a user's role.
type AuthEvent struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
}

// NotificationData is the topic/status pair delivered to the user.
type NotificationData struct {
	Topic  NotificationTopic `json:"topic"`
	Status string            `json:"status"`
}

// NotificationEvent asks the notification sidecar to notify a user
// about a status change.
type NotificationEvent struct {
	UserID           string           `json:"user_id"`
	NotificationData NotificationData `json:"notification_data"`
}
