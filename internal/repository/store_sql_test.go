package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gta-grind-tracker/internal/model"
)

var t0 = time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.UpsertActivities(context.Background(), model.DefaultCatalog()))
	return store
}

func TestDialect_Rebind(t *testing.T) {
	q := `SELECT * FROM sessions WHERE activity_id = ? AND start_time > ?`
	assert.Equal(t, q, sqliteDialect.rebind(q))
	assert.Equal(t, `SELECT * FROM sessions WHERE activity_id = $1 AND start_time > $2`, postgresDialect.rebind(q))
}

func TestDialect_Upsert(t *testing.T) {
	assert.Equal(t, " ON CONFLICT (activity_id) DO UPDATE SET end_time = excluded.end_time",
		sqliteDialect.upsert("activity_id", "end_time"))
	assert.Equal(t, " ON DUPLICATE KEY UPDATE end_time = VALUES(end_time)",
		mysqlDialect.upsert("activity_id", "end_time"))
	assert.Len(t, mysqlDialect.schema(), 8)
	assert.Len(t, sqliteDialect.schema(), 11)
}

func TestActivities_UpsertKeepsOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	activities, err := store.ListActivities(ctx)
	require.NoError(t, err)
	require.Len(t, activities, len(model.DefaultCatalog()))
	assert.Equal(t, model.DefaultCatalog()[0].ID, activities[0].ID)

	coke, err := store.GetActivity(ctx, "mc-coke")
	require.NoError(t, err)
	assert.True(t, coke.Passive)
	assert.Equal(t, 150, coke.ResupplyMin)

	safe, err := store.GetActivity(ctx, "nightclub-safe")
	require.NoError(t, err)
	assert.Equal(t, []string{"safe"}, safe.Tags)

	coke.AvgPayout = 500000
	require.NoError(t, store.UpsertActivities(ctx, []model.Activity{*coke, {ID: "acid-lab", Name: "Acid Lab", Category: model.CategoryPassiveBusiness}}))

	activities, err = store.ListActivities(ctx)
	require.NoError(t, err)
	assert.Equal(t, "acid-lab", activities[len(activities)-1].ID)

	coke, err = store.GetActivity(ctx, "mc-coke")
	require.NoError(t, err)
	assert.Equal(t, int64(500000), coke.AvgPayout)

	_, err = store.GetActivity(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.DeleteActivity(ctx, "missing"), ErrNotFound)
}

func TestSessions_StartStopRollsStats(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	started, err := store.StartSession(ctx, "fleeca-job", t0)
	require.NoError(t, err)
	assert.NotZero(t, started.ID)

	_, err = store.StartSession(ctx, "fleeca-job", t0.Add(time.Minute))
	assert.ErrorIs(t, err, ErrAlreadyActive)

	active, err := store.ListActiveSessions(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, t0, active[0].StartTime)

	closed, err := store.StopSession(ctx, "fleeca-job", t0.Add(12*time.Minute+30*time.Second), 115000)
	require.NoError(t, err)
	require.NotNil(t, closed.DurationMinutes)
	assert.InDelta(t, 12.5, *closed.DurationMinutes, 1e-9)

	_, err = store.StopSession(ctx, "fleeca-job", t0, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	stats, err := store.GetStats(ctx, "fleeca-job")
	require.NoError(t, err)
	assert.Equal(t, int64(115000), stats.TotalMoney)
	assert.Equal(t, 1, stats.SessionCount)
	assert.InDelta(t, 9200, stats.AvgDPM, 1e-6)

	recent, err := store.ListRecentSessions(ctx, 50)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.False(t, recent[0].IsActive())
}

func TestCompleteResupplies_AddsOneUnitCapped(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetProduction(ctx, "mc-coke", 4, nil))
	require.NoError(t, store.StartResupply(ctx, "mc-coke", t0))
	require.NoError(t, store.StartResupply(ctx, "bunker", t0.Add(time.Hour)))

	done, err := store.CompleteResupplies(ctx, t0)
	require.NoError(t, err)
	assert.Equal(t, []string{"mc-coke"}, done)

	p, err := store.GetProduction(ctx, "mc-coke")
	require.NoError(t, err)
	assert.Equal(t, 5, p.CurrentStock)
	require.NotNil(t, p.LastResupplyTime)
	assert.Equal(t, t0, *p.LastResupplyTime)

	// second completion of the same row is a no-op
	done, err = store.CompleteResupplies(ctx, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Empty(t, done)

	require.NoError(t, store.StartResupply(ctx, "mc-coke", t0.Add(2*time.Minute)))
	_, err = store.CompleteResupplies(ctx, t0.Add(3*time.Minute))
	require.NoError(t, err)

	p, err = store.GetProduction(ctx, "mc-coke")
	require.NoError(t, err)
	assert.Equal(t, 5, p.CurrentStock)

	resupplies, err := store.ListResupplies(ctx)
	require.NoError(t, err)
	require.Len(t, resupplies, 1)
	assert.Equal(t, "bunker", resupplies[0].ActivityID)
}

func TestPruneCooldowns(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.StartCooldown(ctx, "vip-work", t0))
	require.NoError(t, store.StartCooldown(ctx, "import-export", t0.Add(time.Minute)))
	require.NoError(t, store.StartCooldown(ctx, "vip-work", t0.Add(-time.Second)))

	n, err := store.PruneCooldowns(ctx, t0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	cooldowns, err := store.ListCooldowns(ctx)
	require.NoError(t, err)
	require.Len(t, cooldowns, 1)
	assert.Equal(t, "import-export", cooldowns[0].ActivityID)
}

func TestSellSessions_StopClearsProduction(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetProduction(ctx, "mc-coke", 5, nil))
	_, err := store.StartSellSession(ctx, "mc-coke", t0)
	require.NoError(t, err)
	_, err = store.StartSellSession(ctx, "mc-coke", t0)
	assert.ErrorIs(t, err, ErrAlreadyActive)

	closed, err := store.StopSellSession(ctx, "mc-coke", t0.Add(14*time.Minute), 420000, 14)
	require.NoError(t, err)
	assert.Equal(t, int64(420000), *closed.MoneyEarned)

	p, err := store.GetProduction(ctx, "mc-coke")
	require.NoError(t, err)
	assert.Zero(t, p.CurrentStock)

	_, err = store.StartSellSession(ctx, "mc-coke", t0.Add(time.Hour))
	require.NoError(t, err)
	_, err = store.StopSellSession(ctx, "mc-coke", t0.Add(time.Hour+10*time.Minute), 100000, 10)
	require.NoError(t, err)

	last, err := store.ListLastSellSessions(ctx)
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, t0.Add(time.Hour+10*time.Minute), *last[0].EndTime)

	stats, err := store.GetStats(ctx, "mc-coke")
	require.NoError(t, err)
	assert.Equal(t, int64(520000), stats.TotalMoney)
	assert.Equal(t, 2, stats.SessionCount)
}

func TestCollectSafe(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.CollectSafe(ctx, "nightclub-safe", t0, 200000)
	require.NoError(t, err)
	_, err = store.CollectSafe(ctx, "nightclub-safe", t0.Add(time.Hour), 250000)
	require.NoError(t, err)

	last, err := store.ListLastSafeCollections(ctx)
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, int64(250000), last[0].MoneyCollected)

	stats, err := store.GetStats(ctx, "nightclub-safe")
	require.NoError(t, err)
	assert.InDelta(t, 2*model.SafeCollectMinutes, stats.TotalTime, 1e-9)
}

func TestSnapshotAndReset(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.StartSession(ctx, "vip-work", t0)
	require.NoError(t, err)
	require.NoError(t, store.StartCooldown(ctx, "fleeca-job", t0.Add(time.Minute)))
	require.NoError(t, store.StartResupply(ctx, "bunker", t0.Add(time.Hour)))
	require.NoError(t, store.SetProduction(ctx, "bunker", 2, nil))
	_, err = store.CollectSafe(ctx, "nightclub-safe", t0, 1)
	require.NoError(t, err)

	snap, err := store.Snapshot(ctx, t0)
	require.NoError(t, err)
	assert.Equal(t, t0, snap.TakenAt)
	assert.NotNil(t, snap.ActiveSession("vip-work"))
	assert.NotNil(t, snap.Cooldown("fleeca-job"))
	assert.NotNil(t, snap.Resupply("bunker"))
	assert.Equal(t, 2, snap.Stock("bunker"))
	assert.NotNil(t, snap.LastSafeCollection("nightclub-safe"))

	require.NoError(t, store.ResetActivity(ctx, "bunker"))
	snap, err = store.Snapshot(ctx, t0)
	require.NoError(t, err)
	assert.Nil(t, snap.Resupply("bunker"))
	assert.Zero(t, snap.Stock("bunker"))
	assert.NotNil(t, snap.ActiveSession("vip-work"))

	require.NoError(t, store.ResetAll(ctx))
	snap, err = store.Snapshot(ctx, t0)
	require.NoError(t, err)
	assert.Empty(t, snap.ActiveSessions)
	assert.Empty(t, snap.Cooldowns)
	assert.Empty(t, snap.LastSafeCollections)
	assert.Len(t, snap.Activities, len(model.DefaultCatalog()))
}

func TestBulkCreateSessions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	end := t0.Add(20 * time.Minute)
	money := int64(60000)

	created, err := store.BulkCreateSessions(ctx, []model.Session{
		{ActivityID: "contact-missions", StartTime: t0, EndTime: &end, MoneyEarned: &money},
	})
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.NotZero(t, created[0].ID)
	assert.InDelta(t, 20, *created[0].DurationMinutes, 1e-9)

	stats, err := store.GetStats(ctx, "contact-missions")
	require.NoError(t, err)
	assert.InDelta(t, 3000, stats.AvgDPM, 1e-6)
}
