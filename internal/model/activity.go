package model

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultMaxStock is the stock capacity used when an activity with a
// resupply cycle does not declare one.
const DefaultMaxStock = 5

// Category classifies an activity in the catalog.
type Category string

const (
	CategoryMission         Category = "mission"
	CategoryHeist           Category = "heist"
	CategoryBusiness        Category = "business"
	CategoryPassiveBusiness Category = "passive-business"
	CategoryContract        Category = "contract"
	CategoryRobbery         Category = "robbery"
	CategoryMiniHeist       Category = "mini-heist"
	CategoryCovertOps       Category = "covert-ops"
	CategoryChallenge       Category = "challenge"
	CategoryPassive         Category = "passive"
	CategorySafe            Category = "safe"
)

// Activity is an immutable catalog entry.
type Activity struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Category    Category `json:"category"`
	Variant     string   `json:"variant,omitempty"`
	Release     int      `json:"release,omitempty"`
	MinCooldown int      `json:"min_cooldown"` // minutes, 0 = none
	ResupplyMin int      `json:"resupply_min"` // minutes, 0 = no resupply cycle
	MaxStock    int      `json:"max_stock,omitempty"`
	AvgPayout   int64    `json:"avg_payout"`
	AvgTimeMin  float64  `json:"avg_time_min"`
	Passive     bool     `json:"passive"`
	Solo        bool     `json:"solo"`
	Boostable   bool     `json:"boostable"`
	Tags        []string `json:"tags,omitempty"`
}

// HasResupplyCycle reports whether the activity produces stock through
// timed resupply cycles.
func (a Activity) HasResupplyCycle() bool {
	return a.Passive && a.ResupplyMin > 0
}

// StockCapacity returns MaxStock, or DefaultMaxStock when unset.
func (a Activity) StockCapacity() int {
	if a.MaxStock > 0 {
		return a.MaxStock
	}
	return DefaultMaxStock
}

// DisplayName falls back to the id for activities imported without a name.
func (a Activity) DisplayName() string {
	if strings.TrimSpace(a.Name) == "" {
		return a.ID
	}
	return a.Name
}

// ErrInvalidActivity is wrapped by every Validate failure.
var ErrInvalidActivity = errors.New("invalid activity")

// Validate checks the catalog invariants.
func (a Activity) Validate() error {
	switch {
	case strings.TrimSpace(a.ID) == "":
		return fmt.Errorf("%w: id is required", ErrInvalidActivity)
	case strings.TrimSpace(a.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidActivity)
	case a.Category == "":
		return fmt.Errorf("%w: category is required", ErrInvalidActivity)
	case a.MinCooldown < 0 || a.ResupplyMin < 0 || a.MaxStock < 0 || a.AvgTimeMin < 0:
		return fmt.Errorf("%w: %s has negative timing values", ErrInvalidActivity, a.ID)
	case a.ResupplyMin > 0 && !a.Passive:
		return fmt.Errorf("%w: %s has a resupply cycle but is not passive", ErrInvalidActivity, a.ID)
	}
	return nil
}
