package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gta-grind-tracker/internal/model"
)

func TestCatalog_SeedIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	n, err := f.catalog.Seed(ctx, false)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = f.catalog.Seed(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, len(model.DefaultCatalog()), n)
}

func TestCatalog_CreateInvalidatesCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	before, err := f.catalog.List(ctx)
	require.NoError(t, err)

	_, err = f.catalog.Create(ctx, model.Activity{ID: "acid-lab", Name: "Acid Lab", Category: model.CategoryPassiveBusiness,
		Passive: true, ResupplyMin: 60, MaxStock: 4, AvgPayout: 335000})
	require.NoError(t, err)

	after, err := f.catalog.List(ctx)
	require.NoError(t, err)
	assert.Len(t, after, len(before)+1)

	_, err = f.catalog.Create(ctx, model.Activity{ID: "acid-lab", Name: "Acid Lab", Category: model.CategoryPassiveBusiness})
	requireAPICode(t, err, "CONFLICT")
}

func TestCatalog_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.catalog.Create(ctx, model.Activity{ID: "broken", Name: "Broken", Category: model.CategoryMission, ResupplyMin: 30})
	requireAPICode(t, err, "VALIDATION_ERROR")

	_, err = f.catalog.Update(ctx, "vip-work", model.Activity{ID: "other", Name: "Other", Category: model.CategoryMission})
	requireAPICode(t, err, "VALIDATION_ERROR")

	_, err = f.catalog.Update(ctx, "missing", model.Activity{Name: "Missing", Category: model.CategoryMission})
	requireAPICode(t, err, "NOT_FOUND")

	_, err = f.catalog.BulkUpsert(ctx, nil)
	requireAPICode(t, err, "VALIDATION_ERROR")

	requireAPICode(t, f.catalog.Delete(ctx, "missing"), "NOT_FOUND")
}

func TestCatalog_UpdateAndBulkUpsert(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	vip, err := f.catalog.Get(ctx, "vip-work")
	require.NoError(t, err)
	vip.MinCooldown = 10
	vip.ID = ""
	updated, err := f.catalog.Update(ctx, "vip-work", *vip)
	require.NoError(t, err)
	assert.Equal(t, "vip-work", updated.ID)

	got, err := f.catalog.Get(ctx, "vip-work")
	require.NoError(t, err)
	assert.Equal(t, 10, got.MinCooldown)

	imported, err := f.catalog.BulkUpsert(ctx, []model.Activity{
		{ID: "hangar", Name: "Hangar", Category: model.CategoryBusiness, AvgPayout: 100000},
		{ID: "hangar", Name: "Hangar Cargo", Category: model.CategoryBusiness, AvgPayout: 120000},
	})
	require.NoError(t, err)
	require.Len(t, imported, 1)

	hangar, err := f.catalog.Get(ctx, "hangar")
	require.NoError(t, err)
	assert.Equal(t, "Hangar Cargo", hangar.Name)

	require.NoError(t, f.catalog.Delete(ctx, "hangar"))
	_, err = f.catalog.Get(ctx, "hangar")
	requireAPICode(t, err, "NOT_FOUND")
}
