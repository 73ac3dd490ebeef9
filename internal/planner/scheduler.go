package planner

import (
	"context"
	"fmt"
	"log"
	"time"

	"meal-planner-api/internal/account"
)

const (
	// DefaultCapacity is the maximum number of active day entries per user.
	DefaultCapacity = 7
	// DefaultBatchDays caps the day count of a single generator call. Kept
	// below the provider's true limit as a safety margin against payload size.
	DefaultBatchDays = 3
)

// Scheduler manages a user's rolling plan window: it tracks which days are
// already planned, decides where new days begin, and batches generation
// requests to respect the generator's per-call size limit.
type Scheduler struct {
	store     Store
	generator Generator
	capacity  int
	batchDays int
	now       func() time.Time
}

// NewScheduler creates a Scheduler. Non-positive capacity or batch size fall
// back to the defaults.
func NewScheduler(store Store, generator Generator, capacity, batchDays int) *Scheduler {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if batchDays <= 0 {
		batchDays = DefaultBatchDays
	}
	return &Scheduler{
		store:     store,
		generator: generator,
		capacity:  capacity,
		batchDays: batchDays,
		now:       time.Now,
	}
}

// Capacity returns the window capacity the scheduler enforces.
func (s *Scheduler) Capacity() int { return s.capacity }

// GeneratePlan generates and persists up to days new day plans for the user.
//
// A user already at capacity gets ErrCapacityExceeded before any external
// call. A request that would push past capacity is clamped down to the free
// space, so partial fulfillment of an explicit day count is allowed. On
// generator failure nothing is persisted.
func (s *Scheduler) GeneratePlan(ctx context.Context, userID string, profile account.Profile, days int) (*MealPlan, error) {
	if days < 1 {
		return nil, fmt.Errorf("requested day count must be at least 1, got %d", days)
	}

	count, err := s.store.CountActiveDays(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count active days for user %s: %w", userID, err)
	}
	if count >= s.capacity {
		return nil, ErrCapacityExceeded
	}
	if count+days > s.capacity {
		days = s.capacity - count
	}

	start, err := s.continuationDate(ctx, userID)
	if err != nil {
		return nil, err
	}

	return s.generateBatch(ctx, userID, profile, days, start)
}

// AheadResult reports what an ahead-fill actually produced. Plan is the last
// persisted batch, nil when nothing was generated. RequestedDays == 0 means
// the window was already full. GeneratedDays < RequestedDays means a batch
// failed mid-loop and the earlier batches were kept.
type AheadResult struct {
	Plan          *MealPlan
	GeneratedDays int
	RequestedDays int
}

// GenerateAhead fills the user's window up to capacity, issuing generator
// calls of at most batchDays days each. Batches run in strict sequence: each
// one is persisted before the next start date is computed from it.
//
// A batch failure stops the loop but keeps everything already persisted; a
// transient failure on day 6 must not discard days 1-5. The failure is logged,
// not returned, and the result reports how far the fill got.
func (s *Scheduler) GenerateAhead(ctx context.Context, userID string, profile account.Profile) (AheadResult, error) {
	var res AheadResult

	count, err := s.store.CountActiveDays(ctx, userID)
	if err != nil {
		return res, fmt.Errorf("failed to count active days for user %s: %w", userID, err)
	}
	remaining := s.capacity - count
	if remaining <= 0 {
		return res, nil
	}
	res.RequestedDays = remaining

	start, err := s.continuationDate(ctx, userID)
	if err != nil {
		return res, err
	}

	for remaining > 0 {
		batch := min(s.batchDays, remaining)
		log.Printf("Generating meal plan batch of %d days for user %s starting %s", batch, userID, start.Format(DateFormat))

		plan, err := s.generateBatch(ctx, userID, profile, batch, start)
		if err != nil {
			log.Printf("Meal plan batch of %d days failed for user %s: %v", batch, userID, err)
			break
		}

		res.Plan = plan
		res.GeneratedDays += batch
		remaining -= batch
		start = start.AddDate(0, 0, batch)
	}

	return res, nil
}

// CompleteDay removes the active day entry matching date. Completion is a
// permanent transition: a second call for the same date finds nothing and
// returns ErrDayNotFound, never success.
func (s *Scheduler) CompleteDay(ctx context.Context, userID string, date time.Time) error {
	removed, err := s.store.RemoveDay(ctx, userID, date)
	if err != nil {
		return fmt.Errorf("failed to complete day %s for user %s: %w", date.Format(DateFormat), userID, err)
	}
	if !removed {
		return ErrDayNotFound
	}
	return nil
}

// CountActiveDays returns the user's current number of active day entries.
func (s *Scheduler) CountActiveDays(ctx context.Context, userID string) (int, error) {
	count, err := s.store.CountActiveDays(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to count active days for user %s: %w", userID, err)
	}
	return count, nil
}

// LatestActiveDate returns the user's maximum active date, or nil.
func (s *Scheduler) LatestActiveDate(ctx context.Context, userID string) (*time.Time, error) {
	latest, err := s.store.LatestActiveDate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read latest active date for user %s: %w", userID, err)
	}
	return latest, nil
}

// Plans returns all of the user's stored plan windows with active days.
func (s *Scheduler) Plans(ctx context.Context, userID string) ([]MealPlan, error) {
	plans, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list meal plans for user %s: %w", userID, err)
	}
	return plans, nil
}

// DayOn returns the user's active day entry for date, or nil.
func (s *Scheduler) DayOn(ctx context.Context, userID string, date time.Time) (*DayEntry, error) {
	entry, err := s.store.DayOn(ctx, userID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to read day %s for user %s: %w", date.Format(DateFormat), userID, err)
	}
	return entry, nil
}

// DaysBetween returns the user's active day entries within [from, to].
func (s *Scheduler) DaysBetween(ctx context.Context, userID string, from, to time.Time) ([]DayEntry, error) {
	entries, err := s.store.DaysBetween(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to read days %s..%s for user %s: %w",
			from.Format(DateFormat), to.Format(DateFormat), userID, err)
	}
	return entries, nil
}

// continuationDate reads the latest active date and applies the continuation
// policy against today.
func (s *Scheduler) continuationDate(ctx context.Context, userID string) (time.Time, error) {
	latest, err := s.store.LatestActiveDate(ctx, userID)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read latest active date for user %s: %w", userID, err)
	}
	return NextStartDate(latest, s.now()), nil
}

// generateBatch performs one generator call for days days starting at start
// and persists the result as a single plan window. The generator's day-indexed
// output is mapped onto consecutive calendar dates.
func (s *Scheduler) generateBatch(ctx context.Context, userID string, profile account.Profile, days int, start time.Time) (*MealPlan, error) {
	generated, err := s.generator.GenerateDays(ctx, profile, days)
	if err != nil {
		return nil, &GenerationError{Days: days, Err: err}
	}

	plan := &MealPlan{
		UserID:    userID,
		Days:      make(map[string]DayPlan, days),
		Dates:     make(map[string]string, days),
		CreatedAt: s.now(),
	}
	for i := 1; i <= days; i++ {
		label := DayLabel(i)
		day, ok := generated[label]
		if !ok {
			return nil, &GenerationError{Days: days, Err: fmt.Errorf("generator response is missing %q", label)}
		}
		plan.Days[label] = day
		plan.Dates[label] = start.AddDate(0, 0, i-1).Format(DateFormat)
	}

	stored, err := s.store.Insert(ctx, plan)
	if err != nil {
		return nil, fmt.Errorf("failed to persist %d-day plan for user %s: %w", days, userID, err)
	}
	return stored, nil
}
