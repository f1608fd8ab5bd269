package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"gta-grind-tracker/internal/clock"
	"gta-grind-tracker/internal/lifecycle"
	"gta-grind-tracker/internal/model"
	"gta-grind-tracker/internal/repository"
	"gta-grind-tracker/pkg/apierror"
)

// ResetToken must accompany a reset of all records.
const ResetToken = "RESET"

// RecentSessionsLimit is the size of the recent sessions list.
const RecentSessionsLimit = 50

// BoardEntry is one activity with its resolved state.
type BoardEntry struct {
	Activity         model.Activity   `json:"activity"`
	State            lifecycle.Kind   `json:"state"`
	Action           lifecycle.Action `json:"action"`
	ElapsedSeconds   int64            `json:"elapsed_seconds,omitempty"`
	RemainingSeconds int64            `json:"remaining_seconds,omitempty"`
	ShowElapsed      bool             `json:"show_elapsed"`
	Display          string           `json:"display,omitempty"`
	Payout           int64            `json:"payout,omitempty"`
	Stock            *int             `json:"stock,omitempty"`
	Capacity         int              `json:"capacity,omitempty"`
	RecordID         int64            `json:"record_id,omitempty"`
}

// TrackerService runs the user's commands against the record store and
// holds the confirmations awaiting a payout. Every write is followed by
// a refresh pass so the board and the scheduler see it immediately.
type TrackerService struct {
	store     repository.RecordStore
	catalog   *CatalogService
	refresher *Refresher
	clock     clock.Clock

	mu      sync.Mutex
	pending map[string]lifecycle.Pending
}

// NewTrackerService creates a tracker.
func NewTrackerService(store repository.RecordStore, catalog *CatalogService, refresher *Refresher, clk clock.Clock) *TrackerService {
	return &TrackerService{
		store:     store,
		catalog:   catalog,
		refresher: refresher,
		clock:     clk,
		pending:   make(map[string]lifecycle.Pending),
	}
}

// ---------------------------------------------------------------------------
// Board

// Board resolves every activity at the current instant.
func (s *TrackerService) Board(ctx context.Context) ([]BoardEntry, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	entries := make([]BoardEntry, 0, len(snap.Activities))
	for _, a := range snap.Activities {
		entries = append(entries, s.resolve(a, now, snap))
	}
	return entries, nil
}

// BoardEntry resolves one activity.
func (s *TrackerService) BoardEntry(ctx context.Context, activityID string) (*BoardEntry, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	a, ok := snap.Activity(activityID)
	if !ok {
		return nil, apierror.NotFound(fmt.Sprintf("activity %q not found", activityID))
	}
	entry := s.resolve(a, s.clock.Now(), snap)
	return &entry, nil
}

func (s *TrackerService) snapshot(ctx context.Context) (*model.Snapshot, error) {
	if snap := s.refresher.Snapshot(); snap != nil {
		return snap, nil
	}
	snap, err := s.refresher.Refresh(ctx)
	if snap == nil && err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *TrackerService) resolve(a model.Activity, now time.Time, snap *model.Snapshot) BoardEntry {
	s.mu.Lock()
	pending := s.pending[a.ID]
	s.mu.Unlock()

	st := lifecycle.Resolve(a, now, snap, pending)
	entry := BoardEntry{
		Activity:         a,
		State:            st.Kind,
		Action:           st.Action,
		ElapsedSeconds:   int64(st.Elapsed / time.Second),
		RemainingSeconds: int64(st.Remaining / time.Second),
		ShowElapsed:      st.ShowElapsed,
		Payout:           st.Payout,
		Capacity:         st.Capacity,
		RecordID:         st.RecordID,
	}
	if st.Capacity > 0 {
		stock := st.Stock
		entry.Stock = &stock
	}

	switch {
	case st.Remaining > 0:
		entry.Display = lifecycle.FormatDuration(st.Remaining)
	case st.ShowElapsed, st.Kind == lifecycle.KindAwaitingSessionConfirmation, st.Kind == lifecycle.KindSellAwaitingConfirmation:
		entry.Display = lifecycle.FormatDuration(st.Elapsed)
	}
	return entry
}

// PendingConfirmations returns the confirmations awaiting a payout.
func (s *TrackerService) PendingConfirmations() map[string]lifecycle.Pending {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]lifecycle.Pending, len(s.pending))
	for id, p := range s.pending {
		out[id] = p
	}
	return out
}

// ---------------------------------------------------------------------------
// Sessions

// StartSession opens a session for an activity.
func (s *TrackerService) StartSession(ctx context.Context, activityID string) (*model.Session, error) {
	a, err := s.catalog.Get(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if a.Passive {
		return nil, apierror.BadRequest(fmt.Sprintf("%s is passive and has no sessions", a.DisplayName()))
	}
	if p := s.getPending(activityID); p.Session != nil {
		return nil, apierror.Conflict("the previous session is awaiting confirmation")
	}
	if err := s.requireAction(ctx, *a, lifecycle.ActionStartSession); err != nil {
		return nil, err
	}

	session, err := s.store.StartSession(ctx, activityID, s.clock.Now())
	if err != nil {
		return nil, storeError(err, "session")
	}
	s.refresh(ctx)
	return session, nil
}

// StopSession pauses the open session and waits for its payout.
func (s *TrackerService) StopSession(ctx context.Context, activityID string) (*lifecycle.PendingConfirmation, error) {
	if p := s.getPending(activityID); p.Session != nil {
		return p.Session, nil
	}

	sessions, err := s.store.ListActiveSessions(ctx)
	if err != nil {
		return nil, err
	}
	for _, ss := range sessions {
		if ss.ActivityID != activityID {
			continue
		}
		now := s.clock.Now()
		pc := &lifecycle.PendingConfirmation{
			RecordID:       ss.ID,
			PausedAt:       now,
			ElapsedMinutes: model.DurationMinutes(ss.StartTime, now),
		}
		s.updatePending(activityID, func(p *lifecycle.Pending) { p.Session = pc })
		return pc, nil
	}
	return nil, apierror.NotFound(fmt.Sprintf("no active session for %q", activityID))
}

// ConfirmSession closes the paused session with its payout and starts the
// activity's cooldown. A zero amount keeps the confirmation pending.
func (s *TrackerService) ConfirmSession(ctx context.Context, activityID string, money int64) (*model.Session, error) {
	pc := s.getPending(activityID).Session
	if pc == nil {
		return nil, apierror.NotFound(fmt.Sprintf("no session awaiting confirmation for %q", activityID))
	}
	if err := lifecycle.ValidateConfirmation(money); err != nil {
		return nil, amountError(err)
	}

	a, err := s.catalog.Get(ctx, activityID)
	if err != nil {
		return nil, err
	}

	session, err := s.store.StopSession(ctx, activityID, pc.PausedAt, money)
	if errors.Is(err, repository.ErrNotFound) {
		s.updatePending(activityID, func(p *lifecycle.Pending) { p.Session = nil })
		return nil, apierror.NotFound(fmt.Sprintf("no active session for %q", activityID))
	}
	if err != nil {
		return nil, err
	}
	s.updatePending(activityID, func(p *lifecycle.Pending) { p.Session = nil })

	if a.MinCooldown > 0 {
		end := pc.PausedAt.Add(time.Duration(a.MinCooldown) * time.Minute)
		if err := s.store.StartCooldown(ctx, activityID, end); err != nil {
			log.Printf("[TrackerService] Session %d closed but cooldown failed: %v", session.ID, err)
			s.refresh(ctx)
			return nil, err
		}
	}

	s.refresh(ctx)
	return session, nil
}

// RecentSessions returns the newest sessions first.
func (s *TrackerService) RecentSessions(ctx context.Context) ([]model.Session, error) {
	return s.store.ListRecentSessions(ctx, RecentSessionsLimit)
}

// BulkCreateSessions imports historical sessions.
func (s *TrackerService) BulkCreateSessions(ctx context.Context, sessions []model.Session) ([]model.Session, error) {
	if len(sessions) == 0 {
		return nil, apierror.ValidationError("at least one session is required")
	}
	for i, ss := range sessions {
		if ss.ActivityID == "" || ss.StartTime.IsZero() {
			return nil, apierror.ValidationError(fmt.Sprintf("session %d needs activity_id and start_time", i))
		}
		if ss.EndTime != nil && ss.EndTime.Before(ss.StartTime) {
			return nil, apierror.ValidationError(fmt.Sprintf("session %d ends before it starts", i))
		}
	}

	created, err := s.store.BulkCreateSessions(ctx, sessions)
	if err != nil {
		return nil, err
	}
	s.refresh(ctx)
	return created, nil
}

// ---------------------------------------------------------------------------
// Cooldowns

// ActiveCooldowns returns cooldowns that have not expired yet.
func (s *TrackerService) ActiveCooldowns(ctx context.Context) ([]model.Cooldown, error) {
	cooldowns, err := s.store.ListCooldowns(ctx)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	active := cooldowns[:0]
	for _, c := range cooldowns {
		if c.EndTime.After(now) {
			active = append(active, c)
		}
	}
	return active, nil
}

// StartCooldown sets a cooldown of minutes, or of the activity's minimum
// cooldown when minutes is 0.
func (s *TrackerService) StartCooldown(ctx context.Context, activityID string, minutes float64) (*model.Cooldown, error) {
	a, err := s.catalog.Get(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if minutes == 0 {
		minutes = float64(a.MinCooldown)
	}
	if minutes <= 0 {
		return nil, minutesError("cooldown minutes must be positive")
	}

	c := model.Cooldown{ActivityID: activityID, EndTime: s.clock.Now().Add(model.MinutesToDuration(minutes))}
	if err := s.store.StartCooldown(ctx, activityID, c.EndTime); err != nil {
		return nil, err
	}
	s.refresh(ctx)
	return &c, nil
}

// ClearCooldown ends a cooldown early.
func (s *TrackerService) ClearCooldown(ctx context.Context, activityID string) error {
	if err := s.store.ClearCooldown(ctx, activityID); err != nil {
		return err
	}
	s.refresh(ctx)
	return nil
}

// ---------------------------------------------------------------------------
// Resupply and production

// Resupplies returns every resupply row.
func (s *TrackerService) Resupplies(ctx context.Context) ([]model.Resupply, error) {
	return s.store.ListResupplies(ctx)
}

// StartResupply starts a resupply cycle of minutes, or of the activity's
// resupply time when minutes is 0.
func (s *TrackerService) StartResupply(ctx context.Context, activityID string, minutes float64) (*model.Resupply, error) {
	a, err := s.catalog.Get(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if !a.HasResupplyCycle() {
		return nil, apierror.BadRequest(fmt.Sprintf("%s has no resupply cycle", a.DisplayName()))
	}
	if minutes == 0 {
		minutes = float64(a.ResupplyMin)
	}
	if minutes <= 0 {
		return nil, minutesError("resupply minutes must be positive")
	}
	if err := s.requireAction(ctx, *a, lifecycle.ActionStartResupply); err != nil {
		return nil, err
	}

	r := model.Resupply{ActivityID: activityID, EndTime: s.clock.Now().Add(model.MinutesToDuration(minutes))}
	if err := s.store.StartResupply(ctx, activityID, r.EndTime); err != nil {
		return nil, err
	}
	s.refresh(ctx)
	return &r, nil
}

// ClearResupply cancels a resupply cycle without adding stock.
func (s *TrackerService) ClearResupply(ctx context.Context, activityID string) error {
	if err := s.store.ClearResupply(ctx, activityID); err != nil {
		return err
	}
	s.refresh(ctx)
	return nil
}

// Production returns the stock of every passive business.
func (s *TrackerService) Production(ctx context.Context) ([]model.ProductionState, error) {
	return s.store.ListProduction(ctx)
}

// ProductionOf returns the stock of one activity, zero when untracked.
func (s *TrackerService) ProductionOf(ctx context.Context, activityID string) (*model.ProductionState, error) {
	if _, err := s.catalog.Get(ctx, activityID); err != nil {
		return nil, err
	}
	p, err := s.store.GetProduction(ctx, activityID)
	if errors.Is(err, repository.ErrNotFound) {
		return &model.ProductionState{ActivityID: activityID}, nil
	}
	return p, err
}

// SetProduction overwrites the stock of a passive business.
func (s *TrackerService) SetProduction(ctx context.Context, activityID string, stock int) (*model.ProductionState, error) {
	a, err := s.catalog.Get(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if !a.HasResupplyCycle() {
		return nil, apierror.BadRequest(fmt.Sprintf("%s has no production", a.DisplayName()))
	}
	if stock < 0 || stock > a.StockCapacity() {
		return nil, apierror.ValidationError("invalid stock",
			apierror.FieldError{Field: "current_stock", Message: fmt.Sprintf("must be between 0 and %d", a.StockCapacity())})
	}

	if err := s.store.SetProduction(ctx, activityID, stock, nil); err != nil {
		return nil, err
	}
	s.refresh(ctx)
	return &model.ProductionState{ActivityID: activityID, CurrentStock: stock}, nil
}

// ClearProduction empties the stock of an activity.
func (s *TrackerService) ClearProduction(ctx context.Context, activityID string) error {
	if err := s.store.ClearProduction(ctx, activityID); err != nil {
		return err
	}
	s.refresh(ctx)
	return nil
}

// ---------------------------------------------------------------------------
// Sell sessions

// ActiveSellSessions returns every open sell session.
func (s *TrackerService) ActiveSellSessions(ctx context.Context) ([]model.SellSession, error) {
	return s.store.ListActiveSellSessions(ctx)
}

// StartSell opens a sell session for a passive activity.
func (s *TrackerService) StartSell(ctx context.Context, activityID string) (*model.SellSession, error) {
	a, err := s.catalog.Get(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if !a.Passive {
		return nil, apierror.BadRequest(fmt.Sprintf("%s has nothing to sell", a.DisplayName()))
	}
	if p := s.getPending(activityID); p.Sell != nil {
		return nil, apierror.Conflict("the previous sell is awaiting confirmation")
	}
	if err := s.requireAction(ctx, *a, lifecycle.ActionStartSell); err != nil {
		return nil, err
	}

	ss, err := s.store.StartSellSession(ctx, activityID, s.clock.Now())
	if err != nil {
		return nil, storeError(err, "sell session")
	}
	s.refresh(ctx)
	return ss, nil
}

// StopSell pauses the open sell session and waits for its payout.
func (s *TrackerService) StopSell(ctx context.Context, activityID string) (*lifecycle.PendingConfirmation, error) {
	if p := s.getPending(activityID); p.Sell != nil {
		return p.Sell, nil
	}

	sessions, err := s.store.ListActiveSellSessions(ctx)
	if err != nil {
		return nil, err
	}
	for _, ss := range sessions {
		if ss.ActivityID != activityID {
			continue
		}
		now := s.clock.Now()
		pc := &lifecycle.PendingConfirmation{
			RecordID:       ss.ID,
			PausedAt:       now,
			ElapsedMinutes: model.DurationMinutes(ss.StartTime, now),
		}
		s.updatePending(activityID, func(p *lifecycle.Pending) { p.Sell = pc })
		return pc, nil
	}
	return nil, apierror.NotFound(fmt.Sprintf("no active sell session for %q", activityID))
}

// ConfirmSell closes the paused sell session with its payout and empties
// the stock. Active minutes are the elapsed time rounded to whole minutes.
func (s *TrackerService) ConfirmSell(ctx context.Context, activityID string, money int64) (*model.SellSession, error) {
	pc := s.getPending(activityID).Sell
	if pc == nil {
		return nil, apierror.NotFound(fmt.Sprintf("no sell awaiting confirmation for %q", activityID))
	}
	if err := lifecycle.ValidateConfirmation(money); err != nil {
		return nil, amountError(err)
	}

	activeMinutes := math.Round(pc.ElapsedMinutes)
	ss, err := s.store.StopSellSession(ctx, activityID, pc.PausedAt, money, activeMinutes)
	if errors.Is(err, repository.ErrNotFound) {
		s.updatePending(activityID, func(p *lifecycle.Pending) { p.Sell = nil })
		return nil, apierror.NotFound(fmt.Sprintf("no active sell session for %q", activityID))
	}
	if err != nil {
		return nil, err
	}

	s.updatePending(activityID, func(p *lifecycle.Pending) { p.Sell = nil })
	s.refresh(ctx)
	return ss, nil
}

// ---------------------------------------------------------------------------
// Safes

// CollectSafe records a safe collection. A zero amount collects the
// activity's average payout.
func (s *TrackerService) CollectSafe(ctx context.Context, activityID string, money int64) (*model.SafeCollection, error) {
	a, err := s.catalog.Get(ctx, activityID)
	if err != nil {
		return nil, err
	}
	if !lifecycle.IsSafe(*a) {
		return nil, apierror.BadRequest(fmt.Sprintf("%s is not a safe", a.DisplayName()))
	}
	if money < 0 {
		return nil, apierror.ValidationError("invalid amount",
			apierror.FieldError{Field: "money_collected", Message: "must not be negative"})
	}
	if money == 0 {
		money = a.AvgPayout
	}

	c, err := s.store.CollectSafe(ctx, activityID, s.clock.Now(), money)
	if err != nil {
		return nil, err
	}
	s.refresh(ctx)
	return c, nil
}

// SafeCollections returns the latest collection of every safe.
func (s *TrackerService) SafeCollections(ctx context.Context) ([]model.SafeCollection, error) {
	return s.store.ListLastSafeCollections(ctx)
}

// ---------------------------------------------------------------------------
// Stats and reset

// Stats returns the rollup of every activity with recorded runs.
func (s *TrackerService) Stats(ctx context.Context) ([]model.ActivityStats, error) {
	return s.store.ListStats(ctx)
}

// StatsOf returns the rollup of one activity, empty when it never ran.
func (s *TrackerService) StatsOf(ctx context.Context, activityID string) (*model.ActivityStats, error) {
	if _, err := s.catalog.Get(ctx, activityID); err != nil {
		return nil, err
	}
	st, err := s.store.GetStats(ctx, activityID)
	if errors.Is(err, repository.ErrNotFound) {
		return &model.ActivityStats{ActivityID: activityID}, nil
	}
	return st, err
}

// ResetActivity deletes every record of one activity.
func (s *TrackerService) ResetActivity(ctx context.Context, activityID string) error {
	if _, err := s.catalog.Get(ctx, activityID); err != nil {
		return err
	}
	if err := s.store.ResetActivity(ctx, activityID); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.pending, activityID)
	s.mu.Unlock()

	log.Printf("[TrackerService] Reset %s", activityID)
	s.refresh(ctx)
	return nil
}

// ResetAll deletes every record. confirm must equal ResetToken.
func (s *TrackerService) ResetAll(ctx context.Context, confirm string) error {
	if confirm != ResetToken {
		return apierror.ValidationError("reset requires confirmation",
			apierror.FieldError{Field: "confirm", Message: "must be " + ResetToken})
	}
	if err := s.store.ResetAll(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.pending = make(map[string]lifecycle.Pending)
	s.mu.Unlock()

	s.refresh(ctx)
	return nil
}

// ---------------------------------------------------------------------------
// helpers

// requireAction rejects a command the activity does not offer in its
// current state, as shown on the board.
func (s *TrackerService) requireAction(ctx context.Context, a model.Activity, want lifecycle.Action) error {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return err
	}
	entry := s.resolve(a, s.clock.Now(), snap)
	if entry.Action != want {
		return apierror.Conflict(fmt.Sprintf("%s is %s; %s is not available", a.DisplayName(), entry.State, want))
	}
	return nil
}

func (s *TrackerService) refresh(ctx context.Context) {
	if _, err := s.refresher.Refresh(ctx); err != nil {
		log.Printf("[TrackerService] Refresh after write failed: %v", err)
	}
}

func (s *TrackerService) getPending(activityID string) lifecycle.Pending {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending[activityID]
}

func (s *TrackerService) updatePending(activityID string, fn func(p *lifecycle.Pending)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.pending[activityID]
	fn(&p)
	if p.Session == nil && p.Sell == nil {
		delete(s.pending, activityID)
		return
	}
	s.pending[activityID] = p
}

func storeError(err error, what string) error {
	if errors.Is(err, repository.ErrAlreadyActive) {
		return apierror.Conflict(fmt.Sprintf("a %s is already active", what))
	}
	if errors.Is(err, repository.ErrNotFound) {
		return apierror.NotFound(fmt.Sprintf("%s not found", what))
	}
	return err
}

func amountError(err error) error {
	return apierror.ValidationError(err.Error(),
		apierror.FieldError{Field: "money_earned", Message: "must be greater than 0"})
}

func minutesError(msg string) error {
	return apierror.ValidationError(msg, apierror.FieldError{Field: "minutes", Message: "must be greater than 0"})
}
