package service

import (
	"context"
	"log"
	"sync"
	"time"

	"gta-grind-tracker/internal/clock"
	"gta-grind-tracker/internal/eventbus"
	"gta-grind-tracker/internal/model"
	"gta-grind-tracker/internal/notify"
	"gta-grind-tracker/internal/observability"
	"gta-grind-tracker/internal/repository"
)

// EventBoardRefreshed is published on the hub after every successful pass.
const EventBoardRefreshed = "board.refreshed"

// Reconciler consumes snapshots. *notify.Scheduler implements it.
type Reconciler interface {
	Reconcile(ctx context.Context, snap *model.Snapshot)
}

// RefreshConfig holds configuration for the refresh loop.
type RefreshConfig struct {
	// Interval between periodic passes. Default: 5 seconds
	Interval time.Duration

	// Grace added to the earliest expiry when arming an opportunistic pass.
	Grace time.Duration

	// Timeout bounds one pass.
	Timeout time.Duration
}

// DefaultRefreshConfig returns default refresh configuration.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Interval: 5 * time.Second,
		Grace:    notify.DefaultGrace,
		Timeout:  30 * time.Second,
	}
}

// RefreshStatus describes the most recent pass.
type RefreshStatus struct {
	Running   bool      `json:"running"`
	Passes    int64     `json:"passes"`
	LastRun   time.Time `json:"last_run"`
	LastError string    `json:"last_error,omitempty"`
}

// Refresher periodically reads a snapshot, reconciles the scheduler and
// prunes expired records. Passes never overlap.
type Refresher struct {
	store      repository.RecordStore
	reconciler Reconciler
	clock      clock.Clock
	hub        *eventbus.Hub
	config     RefreshConfig

	passMu sync.Mutex

	mu            sync.Mutex
	isRunning     bool
	stopped       bool
	tick          clock.Handle
	opportunistic clock.Handle
	last          *model.Snapshot
	status        RefreshStatus
}

// NewRefresher creates a refresh loop. A nil reconciler only prunes.
func NewRefresher(store repository.RecordStore, reconciler Reconciler, clk clock.Clock, hub *eventbus.Hub, config RefreshConfig) *Refresher {
	def := DefaultRefreshConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.Grace < 0 {
		config.Grace = def.Grace
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}

	return &Refresher{
		store:      store,
		reconciler: reconciler,
		clock:      clk,
		hub:        hub,
		config:     config,
	}
}

// Start runs a first pass and then one every Interval.
func (r *Refresher) Start() {
	r.mu.Lock()
	if r.isRunning || r.stopped {
		r.mu.Unlock()
		return
	}
	r.isRunning = true
	r.status.Running = true
	r.mu.Unlock()

	log.Printf("[Refresher] Started - Interval: %v, Grace: %v", r.config.Interval, r.config.Grace)

	r.RunNow()
	r.scheduleTick()
}

func (r *Refresher) scheduleTick() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return
	}
	r.tick = r.clock.Schedule(r.config.Interval, func() {
		r.RunNow()
		r.scheduleTick()
	})
}

// Stop cancels the periodic and opportunistic passes.
func (r *Refresher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return
	}
	r.stopped = true
	r.isRunning = false
	r.status.Running = false
	r.clock.Cancel(r.tick)
	r.clock.Cancel(r.opportunistic)
	log.Printf("[Refresher] Stopped")
}

// RunNow performs one pass with the configured timeout.
func (r *Refresher) RunNow() (*model.Snapshot, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.Timeout)
	defer cancel()
	return r.Refresh(ctx)
}

// Refresh performs one pass: read, reconcile, complete resupplies, prune
// cooldowns, and re-read and reconcile when anything was pruned. On
// failure the last good snapshot is kept and returned with the error.
func (r *Refresher) Refresh(ctx context.Context) (*model.Snapshot, error) {
	r.passMu.Lock()
	defer r.passMu.Unlock()

	started := time.Now()
	snap, err := r.pass(ctx)
	observability.ObserveRefresh(time.Since(started), err)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.status.Passes++
	r.status.LastRun = r.clock.Now()
	if err != nil {
		r.status.LastError = err.Error()
		log.Printf("[Refresher] Refresh failed, keeping last snapshot: %v", err)
		return r.last, err
	}

	r.status.LastError = ""
	r.last = snap
	r.armOpportunistic(snap)

	r.hub.Publish(eventbus.Event{
		Type:      EventBoardRefreshed,
		Timestamp: snap.TakenAt.UnixMilli(),
	})
	return snap, nil
}

func (r *Refresher) pass(ctx context.Context) (*model.Snapshot, error) {
	now := r.clock.Now()

	snap, err := r.store.Snapshot(ctx, now)
	if err != nil {
		return nil, err
	}
	r.reconcile(ctx, snap)

	completed, err := r.store.CompleteResupplies(ctx, now)
	if err != nil {
		return nil, err
	}
	pruned, err := r.store.PruneCooldowns(ctx, now)
	if err != nil {
		return nil, err
	}

	observability.RecordPruned("resupply", len(completed))
	observability.RecordPruned("cooldown", pruned)
	if len(completed) == 0 && pruned == 0 {
		return snap, nil
	}
	if len(completed) > 0 {
		log.Printf("[Refresher] Completed resupplies: %v", completed)
	}

	snap, err = r.store.Snapshot(ctx, now)
	if err != nil {
		return nil, err
	}
	r.reconcile(ctx, snap)
	return snap, nil
}

func (r *Refresher) reconcile(ctx context.Context, snap *model.Snapshot) {
	if r.reconciler != nil {
		r.reconciler.Reconcile(ctx, snap)
	}
}

// armOpportunistic schedules a pass at the earliest future expiry when it
// falls before the next periodic pass. Caller holds mu.
func (r *Refresher) armOpportunistic(snap *model.Snapshot) {
	r.clock.Cancel(r.opportunistic)
	r.opportunistic = 0
	if r.stopped || !r.isRunning {
		return
	}

	next, ok := earliestExpiry(snap, snap.TakenAt)
	if !ok {
		return
	}
	delay := next.Sub(snap.TakenAt) + r.config.Grace
	if delay >= r.config.Interval {
		return
	}
	r.opportunistic = r.clock.Schedule(delay, func() { r.RunNow() })
}

// Snapshot returns the last good snapshot, or nil before the first pass.
func (r *Refresher) Snapshot() *model.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Status returns the state of the loop.
func (r *Refresher) Status() RefreshStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func earliestExpiry(snap *model.Snapshot, now time.Time) (time.Time, bool) {
	var earliest time.Time
	found := false
	consider := func(t time.Time) {
		if t.After(now) && (!found || t.Before(earliest)) {
			earliest = t
			found = true
		}
	}
	for _, c := range snap.Cooldowns {
		consider(c.EndTime)
	}
	for _, rs := range snap.Resupplies {
		consider(rs.EndTime)
	}
	return earliest, found
}
