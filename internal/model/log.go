package model

import "time"

// NotificationLog is one fired notification as stored in the history log.
type NotificationLog struct {
	NotificationID string           `json:"notification_id" bson:"notification_id"`
	ActivityID     string           `json:"activity_id" bson:"activity_id"`
	ActivityName   string           `json:"activity_name" bson:"activity_name"`
	Type           NotificationType `json:"type" bson:"type"`
	Message        string           `json:"message" bson:"message"`
	Value          *int64           `json:"value,omitempty" bson:"value,omitempty"`
	FiredAt        time.Time        `json:"fired_at" bson:"fired_at"`
	CreatedAt      time.Time        `json:"created_at" bson:"created_at"`
}
