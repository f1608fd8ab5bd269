package service

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gta-grind-tracker/internal/cache"
	"gta-grind-tracker/internal/clock"
	"gta-grind-tracker/internal/lifecycle"
	"gta-grind-tracker/internal/model"
	"gta-grind-tracker/internal/notify"
	"gta-grind-tracker/internal/repository"
	"gta-grind-tracker/pkg/apierror"
)

var t0 = time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)

type fixture struct {
	clk       *clock.Fake
	store     repository.RecordStore
	scheduler *notify.Scheduler
	refresher *Refresher
	catalog   *CatalogService
	tracker   *TrackerService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithStore(t, nil)
}

func newFixtureWithStore(t *testing.T, wrap func(repository.RecordStore) repository.RecordStore) *fixture {
	t.Helper()

	sqlStore, err := repository.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { sqlStore.Close() })

	var store repository.RecordStore = sqlStore
	if wrap != nil {
		store = wrap(store)
	}

	clk := clock.NewFake(t0)
	scheduler := notify.NewScheduler(clk, notify.WithLogger(log.New(io.Discard, "", 0)))
	catalog := NewCatalogService(store, cache.NewMemoryCacheWithClock(clk.Now), time.Minute)
	_, err = catalog.Seed(context.Background(), false)
	require.NoError(t, err)

	refresher := NewRefresher(store, scheduler, clk, nil, RefreshConfig{Interval: 5 * time.Second, Grace: notify.DefaultGrace})
	t.Cleanup(refresher.Stop)

	return &fixture{
		clk:       clk,
		store:     store,
		scheduler: scheduler,
		refresher: refresher,
		catalog:   catalog,
		tracker:   NewTrackerService(store, catalog, refresher, clk),
	}
}

func (f *fixture) entry(t *testing.T, id string) *BoardEntry {
	t.Helper()
	e, err := f.tracker.BoardEntry(context.Background(), id)
	require.NoError(t, err)
	return e
}

func requireAPICode(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *apierror.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, code, apiErr.Code)
}

func TestTracker_ProductionCycleToStockFullAndSell(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		r, err := f.tracker.StartResupply(ctx, "mc-coke", 0)
		require.NoError(t, err)
		assert.Equal(t, f.clk.Now().Add(150*time.Minute), r.EndTime)
		assert.Equal(t, lifecycle.KindResupplyWaiting, f.entry(t, "mc-coke").State)

		f.clk.Advance(150 * time.Minute)
		_, err = f.refresher.Refresh(ctx)
		require.NoError(t, err)
	}

	e := f.entry(t, "mc-coke")
	assert.Equal(t, lifecycle.KindStockFull, e.State)
	assert.Equal(t, lifecycle.ActionStartSell, e.Action)
	require.NotNil(t, e.Stock)
	assert.Equal(t, 5, *e.Stock)

	pending := f.scheduler.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "resupply-mc-coke", pending[0].ID)

	_, err := f.tracker.StartSell(ctx, "mc-coke")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.KindSellActive, f.entry(t, "mc-coke").State)

	f.clk.Advance(14*time.Minute + 40*time.Second)
	_, err = f.tracker.StopSell(ctx, "mc-coke")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.KindSellAwaitingConfirmation, f.entry(t, "mc-coke").State)

	_, err = f.tracker.ConfirmSell(ctx, "mc-coke", 0)
	requireAPICode(t, err, "VALIDATION_ERROR")
	assert.Equal(t, lifecycle.KindSellAwaitingConfirmation, f.entry(t, "mc-coke").State)

	ss, err := f.tracker.ConfirmSell(ctx, "mc-coke", 420000)
	require.NoError(t, err)
	assert.Equal(t, 15.0, *ss.ActiveMinutes)

	e = f.entry(t, "mc-coke")
	assert.Equal(t, lifecycle.KindResupplying, e.State)
	assert.Equal(t, 0, *e.Stock)

	stats, err := f.tracker.StatsOf(ctx, "mc-coke")
	require.NoError(t, err)
	assert.Equal(t, int64(420000), stats.TotalMoney)
}

func TestTracker_SessionWithoutCooldown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tracker.StartSession(ctx, "fleeca-job")
	require.NoError(t, err)

	e := f.entry(t, "fleeca-job")
	assert.Equal(t, lifecycle.KindSessionActive, e.State)
	assert.False(t, e.ShowElapsed)

	_, err = f.tracker.StartSession(ctx, "fleeca-job")
	requireAPICode(t, err, "CONFLICT")

	f.clk.Advance(12*time.Minute + 30*time.Second)
	pc, err := f.tracker.StopSession(ctx, "fleeca-job")
	require.NoError(t, err)
	assert.InDelta(t, 12.5, pc.ElapsedMinutes, 1e-9)
	assert.Equal(t, lifecycle.KindAwaitingSessionConfirmation, f.entry(t, "fleeca-job").State)

	// the pause time is the end time, however late the payout is entered
	f.clk.Advance(time.Minute)
	session, err := f.tracker.ConfirmSession(ctx, "fleeca-job", 150000)
	require.NoError(t, err)
	assert.InDelta(t, 12.5, *session.DurationMinutes, 1e-9)

	cooldowns, err := f.tracker.ActiveCooldowns(ctx)
	require.NoError(t, err)
	assert.Empty(t, cooldowns)
	assert.Equal(t, lifecycle.KindIdle, f.entry(t, "fleeca-job").State)

	_, err = f.tracker.ConfirmSession(ctx, "fleeca-job", 150000)
	requireAPICode(t, err, "NOT_FOUND")
}

func TestTracker_ConfirmZeroKeepsPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tracker.StartSession(ctx, "vip-work")
	require.NoError(t, err)
	_, err = f.tracker.StopSession(ctx, "vip-work")
	require.NoError(t, err)

	_, err = f.tracker.ConfirmSession(ctx, "vip-work", 0)
	requireAPICode(t, err, "VALIDATION_ERROR")
	assert.Contains(t, f.tracker.PendingConfirmations(), "vip-work")

	_, err = f.tracker.StartSession(ctx, "vip-work")
	requireAPICode(t, err, "CONFLICT")
}

func TestTracker_CooldownBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.catalog.Create(ctx, model.Activity{ID: "agency-contract", Name: "Agency Contract", Category: model.CategoryContract, MinCooldown: 60})
	require.NoError(t, err)

	_, err = f.tracker.StartSession(ctx, "agency-contract")
	require.NoError(t, err)
	f.clk.Advance(20 * time.Minute)
	_, err = f.tracker.StopSession(ctx, "agency-contract")
	require.NoError(t, err)
	_, err = f.tracker.ConfirmSession(ctx, "agency-contract", 300000)
	require.NoError(t, err)

	cooldowns, err := f.tracker.ActiveCooldowns(ctx)
	require.NoError(t, err)
	require.Len(t, cooldowns, 1)
	end := cooldowns[0].EndTime
	assert.Equal(t, t0.Add(80*time.Minute), end)

	f.clk.Set(end.Add(-time.Second))
	e := f.entry(t, "agency-contract")
	assert.Equal(t, lifecycle.KindCooldownWaiting, e.State)
	assert.Equal(t, int64(1), e.RemainingSeconds)
	assert.Equal(t, "1s", e.Display)

	f.clk.Set(end.Add(time.Millisecond))
	assert.Equal(t, lifecycle.KindIdle, f.entry(t, "agency-contract").State)
}

func TestTracker_PollingNotifiesOnceAtExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// cooldown expiring 12s from now
	c, err := f.tracker.StartCooldown(ctx, "vip-work", 0.2)
	require.NoError(t, err)
	end := c.EndTime
	require.Equal(t, t0.Add(12*time.Second), end)

	f.refresher.Start()
	f.clk.Advance(30 * time.Second)

	pending := f.scheduler.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "cooldown-vip-work", pending[0].ID)
	assert.False(t, pending[0].Timestamp.Before(end))
	assert.False(t, pending[0].Timestamp.After(end.Add(notify.DefaultGrace+10*time.Millisecond)))

	cooldowns, err := f.store.ListCooldowns(ctx)
	require.NoError(t, err)
	assert.Empty(t, cooldowns)
	assert.False(t, f.scheduler.IsNotified("cooldown-vip-work"))
	assert.GreaterOrEqual(t, f.refresher.Status().Passes, int64(7))
}

func TestTracker_PassiveReadyAfterSell(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.Equal(t, lifecycle.KindSellReady, f.entry(t, "nightclub").State)

	_, err := f.tracker.StartSell(ctx, "nightclub")
	require.NoError(t, err)
	f.clk.Advance(3 * time.Minute)
	_, err = f.tracker.StopSell(ctx, "nightclub")
	require.NoError(t, err)
	_, err = f.tracker.ConfirmSell(ctx, "nightclub", 900000)
	require.NoError(t, err)
	assert.Empty(t, f.scheduler.Pending())

	f.clk.Advance(5 * time.Minute)
	_, err = f.refresher.Refresh(ctx)
	require.NoError(t, err)

	pending := f.scheduler.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "passive-ready-nightclub", pending[0].ID)
}

func TestTracker_CollectSafe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.Equal(t, lifecycle.KindSafeReady, f.entry(t, "nightclub-safe").State)

	c, err := f.tracker.CollectSafe(ctx, "nightclub-safe", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(250000), c.MoneyCollected)

	e := f.entry(t, "nightclub-safe")
	assert.Equal(t, lifecycle.KindSafeFilling, e.State)
	assert.Equal(t, int64(48*60), e.RemainingSeconds)

	_, err = f.tracker.CollectSafe(ctx, "vip-work", 0)
	requireAPICode(t, err, "BAD_REQUEST")
}

func TestTracker_StartRequiresOfferedAction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tracker.StartCooldown(ctx, "vip-work", 10)
	require.NoError(t, err)
	require.Equal(t, lifecycle.KindCooldownWaiting, f.entry(t, "vip-work").State)

	_, err = f.tracker.StartSession(ctx, "vip-work")
	requireAPICode(t, err, "CONFLICT")
	assert.Equal(t, lifecycle.KindCooldownWaiting, f.entry(t, "vip-work").State)

	f.clk.Advance(10*time.Minute + time.Second)
	_, err = f.tracker.StartSession(ctx, "vip-work")
	require.NoError(t, err)

	_, err = f.tracker.StartSession(ctx, "mc-coke")
	requireAPICode(t, err, "BAD_REQUEST")

	// selling needs full stock
	_, err = f.tracker.StartSell(ctx, "mc-coke")
	requireAPICode(t, err, "CONFLICT")

	// a safe is collected, not sold
	_, err = f.tracker.StartSell(ctx, "nightclub-safe")
	requireAPICode(t, err, "CONFLICT")

	_, err = f.tracker.StartResupply(ctx, "mc-coke", 0)
	require.NoError(t, err)
	_, err = f.tracker.StartResupply(ctx, "mc-coke", 0)
	requireAPICode(t, err, "CONFLICT")
	assert.Equal(t, lifecycle.KindResupplyWaiting, f.entry(t, "mc-coke").State)
}

func TestTracker_ResupplyValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tracker.StartResupply(ctx, "vip-work", 0)
	requireAPICode(t, err, "BAD_REQUEST")

	_, err = f.tracker.StartResupply(ctx, "mc-coke", -5)
	requireAPICode(t, err, "VALIDATION_ERROR")

	_, err = f.tracker.StartResupply(ctx, "missing", 10)
	requireAPICode(t, err, "NOT_FOUND")

	_, err = f.tracker.SetProduction(ctx, "mc-coke", 6)
	requireAPICode(t, err, "VALIDATION_ERROR")
}

func TestTracker_Reset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tracker.StartSession(ctx, "vip-work")
	require.NoError(t, err)
	_, err = f.tracker.StopSession(ctx, "vip-work")
	require.NoError(t, err)

	requireAPICode(t, f.tracker.ResetAll(ctx, "reset"), "VALIDATION_ERROR")

	require.NoError(t, f.tracker.ResetActivity(ctx, "vip-work"))
	assert.Empty(t, f.tracker.PendingConfirmations())
	assert.Equal(t, lifecycle.KindIdle, f.entry(t, "vip-work").State)

	require.NoError(t, f.tracker.ResetAll(ctx, ResetToken))
}

type flakyStore struct {
	repository.RecordStore
	fail bool
}

func (s *flakyStore) Snapshot(ctx context.Context, now time.Time) (*model.Snapshot, error) {
	if s.fail {
		return nil, errors.New("database is locked")
	}
	return s.RecordStore.Snapshot(ctx, now)
}

func TestRefresher_KeepsLastSnapshotOnFailure(t *testing.T) {
	var flaky *flakyStore
	f := newFixtureWithStore(t, func(s repository.RecordStore) repository.RecordStore {
		flaky = &flakyStore{RecordStore: s}
		return flaky
	})
	ctx := context.Background()

	good, err := f.refresher.Refresh(ctx)
	require.NoError(t, err)

	flaky.fail = true
	got, err := f.refresher.Refresh(ctx)
	require.Error(t, err)
	assert.Same(t, good, got)
	assert.Same(t, good, f.refresher.Snapshot())
	assert.Equal(t, "database is locked", f.refresher.Status().LastError)

	board, err := f.tracker.Board(ctx)
	require.NoError(t, err)
	assert.Len(t, board, len(model.DefaultCatalog()))
}
