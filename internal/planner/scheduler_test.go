package planner

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"meal-planner-api/internal/account"
)

// memStore is an in-memory Store used to test the scheduler in isolation.
type memStore struct {
	plans    []MealPlan
	nextID   int64
	countErr error
}

func newMemStore() *memStore { return &memStore{} }

func (m *memStore) Insert(_ context.Context, plan *MealPlan) (*MealPlan, error) {
	m.nextID++
	plan.ID = m.nextID
	stored := *plan
	stored.Days = make(map[string]DayPlan, len(plan.Days))
	stored.Dates = make(map[string]string, len(plan.Dates))
	for k, v := range plan.Days {
		stored.Days[k] = v
	}
	for k, v := range plan.Dates {
		stored.Dates[k] = v
	}
	m.plans = append(m.plans, stored)
	return plan, nil
}

func (m *memStore) ListByUser(_ context.Context, userID string) ([]MealPlan, error) {
	var out []MealPlan
	for _, p := range m.plans {
		if p.UserID == userID && len(p.Dates) > 0 {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) CountActiveDays(_ context.Context, userID string) (int, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	count := 0
	for _, p := range m.plans {
		if p.UserID == userID {
			count += len(p.Dates)
		}
	}
	return count, nil
}

func (m *memStore) LatestActiveDate(_ context.Context, userID string) (*time.Time, error) {
	var latest *time.Time
	for _, p := range m.plans {
		if p.UserID != userID {
			continue
		}
		for _, d := range p.Dates {
			parsed, err := time.ParseInLocation(DateFormat, d, time.UTC)
			if err != nil {
				return nil, err
			}
			if latest == nil || parsed.After(*latest) {
				latest = &parsed
			}
		}
	}
	return latest, nil
}

func (m *memStore) RemoveDay(_ context.Context, userID string, date time.Time) (bool, error) {
	target := Midnight(date).Format(DateFormat)
	for i := range m.plans {
		if m.plans[i].UserID != userID {
			continue
		}
		for label, d := range m.plans[i].Dates {
			if d == target {
				delete(m.plans[i].Dates, label)
				delete(m.plans[i].Days, label)
				return true, nil
			}
		}
	}
	return false, nil
}

func (m *memStore) DayOn(_ context.Context, userID string, date time.Time) (*DayEntry, error) {
	target := Midnight(date).Format(DateFormat)
	for _, p := range m.plans {
		if p.UserID != userID {
			continue
		}
		for label, d := range p.Dates {
			if d == target {
				return &DayEntry{PlanID: p.ID, Label: label, Date: Midnight(date), Meals: p.Days[label]}, nil
			}
		}
	}
	return nil, nil
}

func (m *memStore) DaysBetween(_ context.Context, userID string, from, to time.Time) ([]DayEntry, error) {
	var out []DayEntry
	for d := Midnight(from); !d.After(Midnight(to)); d = d.AddDate(0, 0, 1) {
		entry, _ := m.DayOn(context.Background(), userID, d)
		if entry != nil {
			out = append(out, *entry)
		}
	}
	return out, nil
}

// allDates returns every stored date for the user across all windows.
func (m *memStore) allDates(userID string) []string {
	var out []string
	for _, p := range m.plans {
		if p.UserID == userID {
			for _, d := range p.Dates {
				out = append(out, d)
			}
		}
	}
	return out
}

// stubGenerator counts calls and can be told to fail on a given call number.
type stubGenerator struct {
	calls      int
	failOnCall int
	batchSizes []int
}

func (g *stubGenerator) GenerateDays(_ context.Context, _ account.Profile, days int) (map[string]DayPlan, error) {
	g.calls++
	g.batchSizes = append(g.batchSizes, days)
	if g.failOnCall == g.calls {
		return nil, errors.New("provider unavailable")
	}
	out := make(map[string]DayPlan, days)
	for i := 1; i <= days; i++ {
		out[DayLabel(i)] = DayPlan{
			Breakfast: Meal{Name: fmt.Sprintf("Breakfast %d", i)},
			Lunch:     Meal{Name: fmt.Sprintf("Lunch %d", i)},
			Dinner:    Meal{Name: fmt.Sprintf("Dinner %d", i)},
		}
	}
	return out, nil
}

func newTestScheduler(store Store, gen Generator) *Scheduler {
	s := NewScheduler(store, gen, 7, 3)
	s.now = func() time.Time { return date(2025, time.March, 10) }
	return s
}

func seedDays(t *testing.T, store *memStore, userID string, dates ...string) {
	t.Helper()
	plan := &MealPlan{
		UserID: userID,
		Days:   map[string]DayPlan{},
		Dates:  map[string]string{},
	}
	for i, d := range dates {
		plan.Days[DayLabel(i+1)] = DayPlan{Breakfast: Meal{Name: "seeded"}}
		plan.Dates[DayLabel(i+1)] = d
	}
	if _, err := store.Insert(context.Background(), plan); err != nil {
		t.Fatalf("seed insert failed: %v", err)
	}
}

func TestGeneratePlanAtCapacityFails(t *testing.T) {
	store := newMemStore()
	gen := &stubGenerator{}
	seedDays(t, store, "u1",
		"2025-03-10", "2025-03-11", "2025-03-12", "2025-03-13",
		"2025-03-14", "2025-03-15", "2025-03-16")
	s := newTestScheduler(store, gen)

	_, err := s.GeneratePlan(context.Background(), "u1", account.Profile{}, 2)
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
	if gen.calls != 0 {
		t.Errorf("expected no generator calls, got %d", gen.calls)
	}
	if count, _ := store.CountActiveDays(context.Background(), "u1"); count != 7 {
		t.Errorf("expected count to stay 7, got %d", count)
	}
}

func TestGeneratePlanClampsToFreeSpace(t *testing.T) {
	store := newMemStore()
	gen := &stubGenerator{}
	seedDays(t, store, "u1", "2025-03-10", "2025-03-11", "2025-03-12", "2025-03-13", "2025-03-14")
	s := newTestScheduler(store, gen)

	plan, err := s.GeneratePlan(context.Background(), "u1", account.Profile{}, 7)
	if err != nil {
		t.Fatalf("GeneratePlan failed: %v", err)
	}
	if len(plan.Dates) != 2 {
		t.Errorf("expected 2 generated days, got %d", len(plan.Dates))
	}
	if count, _ := store.CountActiveDays(context.Background(), "u1"); count != 7 {
		t.Errorf("expected 7 active days after clamp, got %d", count)
	}
	// Continues after the latest active date.
	if got := plan.Dates["Day1"]; got != "2025-03-15" {
		t.Errorf("expected Day1 on 2025-03-15, got %s", got)
	}
	if got := plan.Dates["Day2"]; got != "2025-03-16" {
		t.Errorf("expected Day2 on 2025-03-16, got %s", got)
	}
}

func TestGeneratePlanStartsTodayWhenEmpty(t *testing.T) {
	store := newMemStore()
	gen := &stubGenerator{}
	s := newTestScheduler(store, gen)

	plan, err := s.GeneratePlan(context.Background(), "u1", account.Profile{}, 3)
	if err != nil {
		t.Fatalf("GeneratePlan failed: %v", err)
	}
	want := map[string]string{"Day1": "2025-03-10", "Day2": "2025-03-11", "Day3": "2025-03-12"}
	for label, wantDate := range want {
		if plan.Dates[label] != wantDate {
			t.Errorf("expected %s on %s, got %s", label, wantDate, plan.Dates[label])
		}
	}
}

func TestGeneratePlanResetsAfterStaleDates(t *testing.T) {
	store := newMemStore()
	gen := &stubGenerator{}
	seedDays(t, store, "u1", "2025-03-01", "2025-03-02")
	s := newTestScheduler(store, gen)

	plan, err := s.GeneratePlan(context.Background(), "u1", account.Profile{}, 1)
	if err != nil {
		t.Fatalf("GeneratePlan failed: %v", err)
	}
	if got := plan.Dates["Day1"]; got != "2025-03-10" {
		t.Errorf("expected stale window to restart today, got %s", got)
	}
}

func TestGeneratePlanDoesNotPersistOnGeneratorFailure(t *testing.T) {
	store := newMemStore()
	gen := &stubGenerator{failOnCall: 1}
	s := newTestScheduler(store, gen)

	_, err := s.GeneratePlan(context.Background(), "u1", account.Profile{}, 3)
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected GenerationError, got %v", err)
	}
	if genErr.Days != 3 {
		t.Errorf("expected failed batch of 3 days, got %d", genErr.Days)
	}
	if count, _ := store.CountActiveDays(context.Background(), "u1"); count != 0 {
		t.Errorf("expected nothing persisted, got %d days", count)
	}
}

func TestGeneratePlanRejectsMissingDayLabel(t *testing.T) {
	store := newMemStore()
	s := newTestScheduler(store, &missingLabelGenerator{})

	_, err := s.GeneratePlan(context.Background(), "u1", account.Profile{}, 2)
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected GenerationError, got %v", err)
	}
	if count, _ := store.CountActiveDays(context.Background(), "u1"); count != 0 {
		t.Errorf("expected nothing persisted, got %d days", count)
	}
}

type missingLabelGenerator struct{}

func (missingLabelGenerator) GenerateDays(_ context.Context, _ account.Profile, _ int) (map[string]DayPlan, error) {
	return map[string]DayPlan{"Day1": {}}, nil
}

func TestGeneratePlanPropagatesStoreFailure(t *testing.T) {
	store := newMemStore()
	store.countErr = errors.New("store unreachable")
	gen := &stubGenerator{}
	s := newTestScheduler(store, gen)

	_, err := s.GeneratePlan(context.Background(), "u1", account.Profile{}, 1)
	if err == nil || errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected infrastructure error, got %v", err)
	}
	if gen.calls != 0 {
		t.Errorf("expected no generator calls on store failure, got %d", gen.calls)
	}
}

func TestGenerateAheadAtCapacityDoesNothing(t *testing.T) {
	store := newMemStore()
	gen := &stubGenerator{}
	seedDays(t, store, "u1",
		"2025-03-10", "2025-03-11", "2025-03-12", "2025-03-13",
		"2025-03-14", "2025-03-15", "2025-03-16")
	s := newTestScheduler(store, gen)

	res, err := s.GenerateAhead(context.Background(), "u1", account.Profile{})
	if err != nil {
		t.Fatalf("GenerateAhead failed: %v", err)
	}
	if res.RequestedDays != 0 || res.GeneratedDays != 0 || res.Plan != nil {
		t.Errorf("expected empty result at capacity, got %+v", res)
	}
	if gen.calls != 0 {
		t.Errorf("expected no generator calls, got %d", gen.calls)
	}
}

func TestGenerateAheadFillsEmptyWindowInBatches(t *testing.T) {
	store := newMemStore()
	gen := &stubGenerator{}
	s := newTestScheduler(store, gen)

	res, err := s.GenerateAhead(context.Background(), "u1", account.Profile{})
	if err != nil {
		t.Fatalf("GenerateAhead failed: %v", err)
	}
	if res.RequestedDays != 7 || res.GeneratedDays != 7 {
		t.Fatalf("expected full 7-day fill, got %+v", res)
	}

	wantBatches := []int{3, 3, 1}
	if len(gen.batchSizes) != len(wantBatches) {
		t.Fatalf("expected batches %v, got %v", wantBatches, gen.batchSizes)
	}
	for i, want := range wantBatches {
		if gen.batchSizes[i] != want {
			t.Errorf("batch %d: expected %d days, got %d", i, want, gen.batchSizes[i])
		}
	}

	// Dates must be contiguous and collision-free across batches.
	seen := map[string]bool{}
	for _, d := range store.allDates("u1") {
		if seen[d] {
			t.Errorf("date %s planned twice", d)
		}
		seen[d] = true
	}
	for i := 0; i < 7; i++ {
		d := date(2025, time.March, 10+i).Format(DateFormat)
		if !seen[d] {
			t.Errorf("expected %s to be planned", d)
		}
	}

	// The result carries the last persisted batch.
	if res.Plan == nil || len(res.Plan.Dates) != 1 {
		t.Errorf("expected last batch of 1 day, got %+v", res.Plan)
	}
}

func TestGenerateAheadKeepsEarlierBatchesOnFailure(t *testing.T) {
	store := newMemStore()
	gen := &stubGenerator{failOnCall: 2}
	s := newTestScheduler(store, gen)

	res, err := s.GenerateAhead(context.Background(), "u1", account.Profile{})
	if err != nil {
		t.Fatalf("GenerateAhead returned error despite best-effort policy: %v", err)
	}
	if res.GeneratedDays != 3 || res.RequestedDays != 7 {
		t.Errorf("expected partial fill of 3/7, got %+v", res)
	}
	if count, _ := store.CountActiveDays(context.Background(), "u1"); count != 3 {
		t.Errorf("expected only the first batch persisted, got %d days", count)
	}
	if gen.calls != 2 {
		t.Errorf("expected loop to stop after failing call, got %d calls", gen.calls)
	}
	if res.Plan == nil || len(res.Plan.Dates) != 3 {
		t.Errorf("expected the first batch as last persisted plan, got %+v", res.Plan)
	}
}

func TestGenerateAheadNothingGeneratedOnFirstFailure(t *testing.T) {
	store := newMemStore()
	gen := &stubGenerator{failOnCall: 1}
	s := newTestScheduler(store, gen)

	res, err := s.GenerateAhead(context.Background(), "u1", account.Profile{})
	if err != nil {
		t.Fatalf("GenerateAhead failed: %v", err)
	}
	if res.Plan != nil || res.GeneratedDays != 0 || res.RequestedDays != 7 {
		t.Errorf("expected nothing generated, got %+v", res)
	}
	if count, _ := store.CountActiveDays(context.Background(), "u1"); count != 0 {
		t.Errorf("expected nothing persisted, got %d days", count)
	}
}

func TestGenerateAheadTopsUpPartialWindow(t *testing.T) {
	store := newMemStore()
	gen := &stubGenerator{}
	seedDays(t, store, "u1", "2025-03-10", "2025-03-11")
	s := newTestScheduler(store, gen)

	res, err := s.GenerateAhead(context.Background(), "u1", account.Profile{})
	if err != nil {
		t.Fatalf("GenerateAhead failed: %v", err)
	}
	if res.RequestedDays != 5 || res.GeneratedDays != 5 {
		t.Fatalf("expected 5-day top-up, got %+v", res)
	}
	wantBatches := []int{3, 2}
	for i, want := range wantBatches {
		if gen.batchSizes[i] != want {
			t.Errorf("batch %d: expected %d days, got %d", i, want, gen.batchSizes[i])
		}
	}
	if count, _ := store.CountActiveDays(context.Background(), "u1"); count != 7 {
		t.Errorf("expected full window, got %d days", count)
	}
}

func TestCompleteDayIsPermanent(t *testing.T) {
	store := newMemStore()
	seedDays(t, store, "u1", "2025-03-10", "2025-03-11")
	s := newTestScheduler(store, &stubGenerator{})

	target := date(2025, time.March, 10)
	if err := s.CompleteDay(context.Background(), "u1", target); err != nil {
		t.Fatalf("first CompleteDay failed: %v", err)
	}
	if count, _ := store.CountActiveDays(context.Background(), "u1"); count != 1 {
		t.Errorf("expected 1 remaining day, got %d", count)
	}

	// Completion is not re-enterable: the second call reports not-found.
	if err := s.CompleteDay(context.Background(), "u1", target); !errors.Is(err, ErrDayNotFound) {
		t.Errorf("expected ErrDayNotFound on repeat completion, got %v", err)
	}
}

func TestCompleteDayUnknownDateIsNotFound(t *testing.T) {
	store := newMemStore()
	seedDays(t, store, "u1", "2025-03-10")
	s := newTestScheduler(store, &stubGenerator{})

	err := s.CompleteDay(context.Background(), "u1", date(2025, time.April, 1))
	if !errors.Is(err, ErrDayNotFound) {
		t.Fatalf("expected ErrDayNotFound, got %v", err)
	}
	if count, _ := store.CountActiveDays(context.Background(), "u1"); count != 1 {
		t.Errorf("expected active entries untouched, got %d", count)
	}
}
