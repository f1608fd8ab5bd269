package model

import "time"

// NotificationType is the kind of event a PendingNotification reports.
type NotificationType string

const (
	NotificationCooldown     NotificationType = "cooldown"
	NotificationResupply     NotificationType = "resupply"
	NotificationSafe         NotificationType = "safe"
	NotificationPassiveReady NotificationType = "passive-ready"
)

// PendingNotification is held by the scheduler until dismissed. ID is the
// dedup key of the event that produced it.
type PendingNotification struct {
	ID           string           `json:"id"`
	ActivityID   string           `json:"activity_id"`
	ActivityName string           `json:"activity_name"`
	Type         NotificationType `json:"type"`
	Timestamp    time.Time        `json:"timestamp"`
	Value        *int64           `json:"value,omitempty"`
}

// DedupKey builds the stable "{type}-{activityId}" key.
func DedupKey(t NotificationType, activityID string) string {
	return string(t) + "-" + activityID
}
