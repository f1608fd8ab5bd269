package model

import "time"

// Session is one timed run of an active activity. EndTime is nil while
// the session is open.
type Session struct {
	ID              int64      `json:"id"`
	ActivityID      string     `json:"activity_id"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	MoneyEarned     *int64     `json:"money_earned,omitempty"`
	DurationMinutes *float64   `json:"duration_minutes,omitempty"`
}

// IsActive reports whether the session has not been closed yet.
func (s Session) IsActive() bool {
	return s.EndTime == nil
}

// Cooldown exists while an activity cannot be restarted.
type Cooldown struct {
	ActivityID string    `json:"activity_id"`
	EndTime    time.Time `json:"end_time"`
}

// Resupply exists while a resupply cycle is running.
type Resupply struct {
	ActivityID string    `json:"activity_id"`
	EndTime    time.Time `json:"end_time"`
}

// ProductionState is the accumulated stock of a passive business.
type ProductionState struct {
	ActivityID       string     `json:"activity_id"`
	CurrentStock     int        `json:"current_stock"`
	LastResupplyTime *time.Time `json:"last_resupply_time,omitempty"`
}

// SellSession is the timed act of liquidating stock.
type SellSession struct {
	ID            int64      `json:"id"`
	ActivityID    string     `json:"activity_id"`
	StartTime     time.Time  `json:"start_time"`
	EndTime       *time.Time `json:"end_time,omitempty"`
	MoneyEarned   *int64     `json:"money_earned,omitempty"`
	ActiveMinutes *float64   `json:"active_minutes,omitempty"`
}

// IsActive reports whether the sell session has not been closed yet.
func (s SellSession) IsActive() bool {
	return s.EndTime == nil
}

// SafeCollection is one historical safe collection.
type SafeCollection struct {
	ActivityID     string    `json:"activity_id"`
	CollectedAt    time.Time `json:"collected_at"`
	MoneyCollected int64     `json:"money_collected"`
}

// DurationMinutes returns (end-start) in fractional minutes, never negative.
func DurationMinutes(start, end time.Time) float64 {
	d := end.Sub(start)
	if d < 0 {
		return 0
	}
	return float64(d) / float64(time.Minute)
}

// MinutesToDuration converts a catalog minute count to a time.Duration.
func MinutesToDuration(minutes float64) time.Duration {
	return time.Duration(minutes * float64(time.Minute))
}
