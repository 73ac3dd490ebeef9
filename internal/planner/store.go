package planner

import (
	"context"
	"time"

	"meal-planner-api/internal/account"
)

// Store is the persistence capability the scheduler depends on. A user's
// active days may be spread across several stored plan windows (one per
// generator batch), so day-level queries must be user-scoped and
// document-agnostic. Store errors are infrastructure failures and must be
// propagated, never reported as empty results.
type Store interface {
	// Insert persists a full plan window and returns it with its record ID set.
	Insert(ctx context.Context, plan *MealPlan) (*MealPlan, error)

	// ListByUser returns all windows that still hold active days, oldest first.
	ListByUser(ctx context.Context, userID string) ([]MealPlan, error)

	// CountActiveDays returns the number of active day entries across all of
	// the user's windows.
	CountActiveDays(ctx context.Context, userID string) (int, error)

	// LatestActiveDate returns the maximum calendar date among the user's
	// active day entries, or nil when none exist.
	LatestActiveDate(ctx context.Context, userID string) (*time.Time, error)

	// RemoveDay deletes the day entry matching date from both the meal mapping
	// and the date mapping in one update. It reports whether an entry existed.
	RemoveDay(ctx context.Context, userID string, date time.Time) (bool, error)

	// DayOn returns the active day entry for an exact date, or nil.
	DayOn(ctx context.Context, userID string, date time.Time) (*DayEntry, error)

	// DaysBetween returns active day entries with from <= date <= to, in date
	// order.
	DaysBetween(ctx context.Context, userID string, from, to time.Time) ([]DayEntry, error)
}

// Generator is the opaque external plan provider. The returned map is keyed
// "Day1".."DayN" for a request of N days. Any failure (network, quota,
// malformed output) surfaces as a single error; the scheduler does not retry.
type Generator interface {
	GenerateDays(ctx context.Context, profile account.Profile, days int) (map[string]DayPlan, error)
}
