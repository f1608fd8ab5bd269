package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gta-grind-tracker/internal/clock"
	"gta-grind-tracker/internal/repository"
)

var t0 = time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)

func testEnv(t *testing.T, clk clock.Clock) Env {
	t.Helper()
	path := filepath.Join(t.TempDir(), "grind.db")
	return Env{
		Clock: clk,
		Open: func() (repository.RecordStore, error) {
			return repository.NewSQLiteStore(path)
		},
	}
}

func run(t *testing.T, env Env, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRoot(env)
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSeedAndBoard(t *testing.T) {
	env := testEnv(t, clock.NewFake(t0))

	out, err := run(t, env, "seed")
	require.NoError(t, err)
	assert.Contains(t, out, "seeded 11 activities")

	out, err = run(t, env, "seed")
	require.NoError(t, err)
	assert.Contains(t, out, "seeded 0 activities")

	out, err = run(t, env, "board")
	require.NoError(t, err)
	assert.Contains(t, out, "STATE")
	assert.Contains(t, out, "mc-coke")
	assert.Contains(t, out, "0/5")
}

func TestPruneCompletesResupplies(t *testing.T) {
	clk := clock.NewFake(t0)
	env := testEnv(t, clk)

	_, err := run(t, env, "seed")
	require.NoError(t, err)

	store, err := env.Open()
	require.NoError(t, err)
	require.NoError(t, store.StartResupply(context.Background(), "bunker", t0.Add(-time.Minute)))
	require.NoError(t, store.StartCooldown(context.Background(), "vip-work", t0.Add(time.Hour)))
	require.NoError(t, store.Close())

	out, err := run(t, env, "prune")
	require.NoError(t, err)
	assert.Contains(t, out, "1 cooldowns, 0 resupplies remain")

	store, err = env.Open()
	require.NoError(t, err)
	defer store.Close()
	p, err := store.GetProduction(context.Background(), "bunker")
	require.NoError(t, err)
	assert.Equal(t, 1, p.CurrentStock)
}

func TestResetRequiresConfirm(t *testing.T) {
	env := testEnv(t, clock.NewFake(t0))

	_, err := run(t, env, "seed")
	require.NoError(t, err)

	_, err = run(t, env, "reset")
	assert.ErrorContains(t, err, "--confirm RESET")

	out, err := run(t, env, "reset", "vip-work", "--confirm", "RESET")
	require.NoError(t, err)
	assert.Contains(t, out, "reset vip-work")

	out, err = run(t, env, "reset", "--confirm", "RESET")
	require.NoError(t, err)
	assert.Contains(t, out, "reset all records")

	_, err = run(t, env, "reset", "missing", "--confirm", "RESET")
	assert.Error(t, err)
}
