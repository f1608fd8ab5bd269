package lifecycle

import (
	"errors"
	"time"
)

// Kind tags the variant of a ResolvedState.
type Kind string

const (
	KindAwaitingSessionConfirmation Kind = "awaiting_session_confirmation"
	KindSessionActive               Kind = "session_active"
	KindCooldownWaiting             Kind = "cooldown_waiting"
	KindResupplyWaiting             Kind = "resupply_waiting"
	KindSafeFilling                 Kind = "safe_filling"
	KindSafeReady                   Kind = "safe_ready"
	KindSellReady                   Kind = "sell_ready"
	KindSellAwaitingConfirmation    Kind = "sell_awaiting_confirmation"
	KindSellActive                  Kind = "sell_active"
	KindStockFull                   Kind = "stock_full"
	KindResupplying                 Kind = "resupplying"
	KindIdle                        Kind = "idle"
)

// Action is the command the user is offered in a given state.
type Action string

const (
	ActionNone           Action = "none"
	ActionConfirmSession Action = "confirm-session"
	ActionStopSession    Action = "stop-session"
	ActionCollectSafe    Action = "collect-safe"
	ActionStartSell      Action = "start-sell"
	ActionConfirmSell    Action = "confirm-sell"
	ActionStopSell       Action = "stop-sell"
	ActionStartResupply  Action = "start-resupply"
	ActionStartSession   Action = "start-session"
)

// PendingConfirmation is a stopped run whose payout has not been entered.
type PendingConfirmation struct {
	RecordID       int64     `json:"record_id"`
	PausedAt       time.Time `json:"paused_at"`
	ElapsedMinutes float64   `json:"elapsed_minutes"`
}

// Pending is the local confirmation state of one activity.
type Pending struct {
	Session *PendingConfirmation `json:"session,omitempty"`
	Sell    *PendingConfirmation `json:"sell,omitempty"`
}

// ResolvedState is the single state an activity is in at a given instant.
// Only the fields relevant to Kind are set.
type ResolvedState struct {
	Kind        Kind
	Action      Action
	Elapsed     time.Duration
	Remaining   time.Duration
	ShowElapsed bool
	Payout      int64
	Stock       int
	Capacity    int
	RecordID    int64
}

// ErrAmountRequired rejects a confirmation without a payout.
var ErrAmountRequired = errors.New("money earned is required to confirm")

// ValidateConfirmation accepts only strictly positive amounts. A zero
// amount means the value has not been entered yet.
func ValidateConfirmation(amount int64) error {
	if amount <= 0 {
		return ErrAmountRequired
	}
	return nil
}
