package notify

import (
	"fmt"
	"math"

	"gta-grind-tracker/internal/model"
)

// Title is the title of every platform notification.
const Title = "GTA Grinding Manager"

// Message renders the human-readable text of a notification.
func Message(n model.PendingNotification) string {
	name := n.ActivityName
	if name == "" {
		name = n.ActivityID
	}

	switch n.Type {
	case model.NotificationCooldown:
		return fmt.Sprintf("%s is ready", name)
	case model.NotificationResupply:
		return fmt.Sprintf("%s needs resupply", name)
	case model.NotificationSafe:
		return fmt.Sprintf("%s is full (%s)", name, thousands(n.Value, "collect"))
	case model.NotificationPassiveReady:
		return fmt.Sprintf("%s is ready to sell (%s)", name, thousands(n.Value, "available"))
	default:
		return name
	}
}

// Tag is the platform dedup tag, "{type}-{activityId}".
func Tag(n model.PendingNotification) string {
	return model.DedupKey(n.Type, n.ActivityID)
}

func thousands(v *int64, fallback string) string {
	if v == nil || *v == 0 {
		return fallback
	}
	return fmt.Sprintf("$%.0fk", math.Round(float64(*v)/1000))
}
