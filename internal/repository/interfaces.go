package repository

import (
	"context"
	"errors"
	"time"

	"gta-grind-tracker/internal/model"
)

var (
	// ErrNotFound is returned when the addressed record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyActive is returned when starting a session or sell session
	// for an activity that already has one open.
	ErrAlreadyActive = errors.New("record already active")
)

// RecordStore persists the activity catalog and every timed record.
// Instants are stored as unix milliseconds in every dialect.
type RecordStore interface {
	// Snapshot reads everything the resolver and the scheduler consume in
	// one consistent read.
	Snapshot(ctx context.Context, now time.Time) (*model.Snapshot, error)

	ListActivities(ctx context.Context) ([]model.Activity, error)
	GetActivity(ctx context.Context, id string) (*model.Activity, error)
	UpsertActivities(ctx context.Context, activities []model.Activity) error
	DeleteActivity(ctx context.Context, id string) error

	ListActiveSessions(ctx context.Context) ([]model.Session, error)
	ListRecentSessions(ctx context.Context, limit int) ([]model.Session, error)
	StartSession(ctx context.Context, activityID string, start time.Time) (*model.Session, error)
	// StopSession closes the open session and rolls its money and
	// duration into the activity stats in one transaction.
	StopSession(ctx context.Context, activityID string, end time.Time, money int64) (*model.Session, error)
	BulkCreateSessions(ctx context.Context, sessions []model.Session) ([]model.Session, error)

	ListCooldowns(ctx context.Context) ([]model.Cooldown, error)
	StartCooldown(ctx context.Context, activityID string, end time.Time) error
	ClearCooldown(ctx context.Context, activityID string) error
	PruneCooldowns(ctx context.Context, now time.Time) (int, error)

	ListResupplies(ctx context.Context) ([]model.Resupply, error)
	StartResupply(ctx context.Context, activityID string, end time.Time) error
	ClearResupply(ctx context.Context, activityID string) error
	// CompleteResupplies deletes every resupply with end <= now and adds
	// exactly one unit of stock per deleted row, capped at the activity's
	// capacity, in one transaction. It returns the completed activity ids.
	CompleteResupplies(ctx context.Context, now time.Time) ([]string, error)

	ListProduction(ctx context.Context) ([]model.ProductionState, error)
	GetProduction(ctx context.Context, activityID string) (*model.ProductionState, error)
	IncrementStock(ctx context.Context, activityID string, capacity int, at time.Time) (int, error)
	SetProduction(ctx context.Context, activityID string, stock int, at *time.Time) error
	ClearProduction(ctx context.Context, activityID string) error

	ListActiveSellSessions(ctx context.Context) ([]model.SellSession, error)
	ListLastSellSessions(ctx context.Context) ([]model.SellSession, error)
	StartSellSession(ctx context.Context, activityID string, start time.Time) (*model.SellSession, error)
	// StopSellSession closes the open sell session, rolls it into stats
	// and empties the production stock in one transaction.
	StopSellSession(ctx context.Context, activityID string, end time.Time, money int64, activeMinutes float64) (*model.SellSession, error)

	ListLastSafeCollections(ctx context.Context) ([]model.SafeCollection, error)
	CollectSafe(ctx context.Context, activityID string, at time.Time, money int64) (*model.SafeCollection, error)

	ListStats(ctx context.Context) ([]model.ActivityStats, error)
	GetStats(ctx context.Context, activityID string) (*model.ActivityStats, error)

	// ResetActivity removes every record and the stats of one activity.
	ResetActivity(ctx context.Context, activityID string) error
	// ResetAll removes every record and all stats. The catalog stays.
	ResetAll(ctx context.Context) error

	Ping(ctx context.Context) error
	Close() error
}

// NotificationLogRepository stores the history of fired notifications.
type NotificationLogRepository interface {
	InsertNotificationLog(ctx context.Context, entry *model.NotificationLog) error
	GetNotificationLogs(ctx context.Context, limit, offset int) ([]model.NotificationLog, int64, error)
	Close() error
}
