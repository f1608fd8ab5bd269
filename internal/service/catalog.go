package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gta-grind-tracker/internal/cache"
	"gta-grind-tracker/internal/model"
	"gta-grind-tracker/internal/repository"
	"gta-grind-tracker/pkg/apierror"
)

const catalogCacheKey = "catalog:activities"

// CatalogService manages the activity catalog. The list is cached and
// invalidated on every write.
type CatalogService struct {
	store repository.RecordStore
	cache cache.Cache
	ttl   time.Duration
}

// NewCatalogService creates a catalog service. A nil cache disables caching.
func NewCatalogService(store repository.RecordStore, c cache.Cache, ttl time.Duration) *CatalogService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CatalogService{store: store, cache: c, ttl: ttl}
}

// List returns the catalog.
func (s *CatalogService) List(ctx context.Context) ([]model.Activity, error) {
	if s.cache != nil {
		var cached []model.Activity
		err := cache.GetJSON(ctx, s.cache, catalogCacheKey, &cached)
		if err == nil {
			return cached, nil
		}
		if !cache.IsMiss(err) {
			log.Printf("[CatalogService] Cache read failed: %v", err)
		}
	}

	activities, err := s.store.ListActivities(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := cache.SetJSON(ctx, s.cache, catalogCacheKey, activities, s.ttl); err != nil {
			log.Printf("[CatalogService] Cache write failed: %v", err)
		}
	}
	return activities, nil
}

// Get returns one activity or a NOT_FOUND error.
func (s *CatalogService) Get(ctx context.Context, id string) (*model.Activity, error) {
	activities, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range activities {
		if activities[i].ID == id {
			return &activities[i], nil
		}
	}
	return nil, apierror.NotFound(fmt.Sprintf("activity %q not found", id))
}

// Create adds a new activity. Existing ids are rejected.
func (s *CatalogService) Create(ctx context.Context, a model.Activity) (*model.Activity, error) {
	if err := validateActivity(a); err != nil {
		return nil, err
	}
	if _, err := s.store.GetActivity(ctx, a.ID); err == nil {
		return nil, apierror.Conflict(fmt.Sprintf("activity %q already exists", a.ID))
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	if err := s.write(ctx, []model.Activity{a}); err != nil {
		return nil, err
	}
	return &a, nil
}

// Update replaces an existing activity.
func (s *CatalogService) Update(ctx context.Context, id string, a model.Activity) (*model.Activity, error) {
	if a.ID == "" {
		a.ID = id
	}
	if a.ID != id {
		return nil, apierror.ValidationError("activity id cannot change",
			apierror.FieldError{Field: "id", Message: "must match the path"})
	}
	if err := validateActivity(a); err != nil {
		return nil, err
	}
	if _, err := s.store.GetActivity(ctx, id); errors.Is(err, repository.ErrNotFound) {
		return nil, apierror.NotFound(fmt.Sprintf("activity %q not found", id))
	} else if err != nil {
		return nil, err
	}

	if err := s.write(ctx, []model.Activity{a}); err != nil {
		return nil, err
	}
	return &a, nil
}

// BulkUpsert imports activities. Duplicate ids in the input collapse to
// the last occurrence.
func (s *CatalogService) BulkUpsert(ctx context.Context, activities []model.Activity) ([]model.Activity, error) {
	if len(activities) == 0 {
		return nil, apierror.ValidationError("at least one activity is required")
	}

	deduped := model.DedupeActivities(activities)
	for _, a := range deduped {
		if err := validateActivity(a); err != nil {
			return nil, err
		}
	}

	if err := s.write(ctx, deduped); err != nil {
		return nil, err
	}
	return deduped, nil
}

// Seed upserts the default catalog. Unless replace is set, activities
// already present are left untouched.
func (s *CatalogService) Seed(ctx context.Context, replace bool) (int, error) {
	defaults := model.DefaultCatalog()
	if !replace {
		existing, err := s.store.ListActivities(ctx)
		if err != nil {
			return 0, err
		}
		have := make(map[string]bool, len(existing))
		for _, a := range existing {
			have[a.ID] = true
		}

		missing := defaults[:0]
		for _, a := range defaults {
			if !have[a.ID] {
				missing = append(missing, a)
			}
		}
		defaults = missing
	}

	if len(defaults) == 0 {
		return 0, nil
	}
	if err := s.write(ctx, defaults); err != nil {
		return 0, err
	}
	log.Printf("[CatalogService] Seeded %d activities", len(defaults))
	return len(defaults), nil
}

// Delete removes an activity with all of its records.
func (s *CatalogService) Delete(ctx context.Context, id string) error {
	err := s.store.DeleteActivity(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return apierror.NotFound(fmt.Sprintf("activity %q not found", id))
	}
	if err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *CatalogService) write(ctx context.Context, activities []model.Activity) error {
	if err := s.store.UpsertActivities(ctx, activities); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *CatalogService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, catalogCacheKey); err != nil {
		log.Printf("[CatalogService] Cache invalidation failed: %v", err)
	}
}

func validateActivity(a model.Activity) error {
	if err := a.Validate(); err != nil {
		return apierror.ValidationError(err.Error())
	}
	return nil
}
