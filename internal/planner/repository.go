package planner

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Repository is the SQLite-backed Store. Windows are stored as a meal_plans
// row plus one meal_plan_days row per day label, so the domain's "set of day
// entries per user" and "document per batch" views are both cheap to serve.
// ISO dates sort lexicographically, which keeps the date comparisons plain
// string comparisons in SQL.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new Repository on an open database handle.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Insert persists the window and its day entries in one transaction.
func (r *Repository) Insert(ctx context.Context, plan *MealPlan) (*MealPlan, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO meal_plans (user_id, created_at) VALUES (?, ?)`,
		plan.UserID, plan.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert meal plan: %w", err)
	}
	planID, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read inserted plan id: %w", err)
	}

	for label, date := range plan.Dates {
		day, ok := plan.Days[label]
		if !ok {
			return nil, fmt.Errorf("plan has date for %q but no meals", label)
		}
		meals, err := json.Marshal(day)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal meals for %s: %w", label, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO meal_plan_days (plan_id, user_id, day_label, plan_date, meals)
			 VALUES (?, ?, ?, ?, ?)`,
			planID, plan.UserID, label, date, string(meals),
		); err != nil {
			return nil, fmt.Errorf("failed to insert day %s (%s): %w", label, date, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit meal plan: %w", err)
	}

	plan.ID = planID
	return plan, nil
}

// ListByUser reconstructs window documents from their day rows. Windows whose
// days were all completed have no rows left and drop out naturally.
func (r *Repository) ListByUser(ctx context.Context, userID string) ([]MealPlan, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT p.id, p.created_at, d.day_label, d.plan_date, d.meals
		 FROM meal_plans p
		 JOIN meal_plan_days d ON d.plan_id = p.id
		 WHERE p.user_id = ?
		 ORDER BY p.id, d.plan_date`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query meal plans for user %s: %w", userID, err)
	}
	defer rows.Close()

	var plans []MealPlan
	var current *MealPlan
	for rows.Next() {
		var (
			planID    int64
			createdAt time.Time
			label     string
			date      string
			meals     string
		)
		if err := rows.Scan(&planID, &createdAt, &label, &date, &meals); err != nil {
			return nil, fmt.Errorf("failed to scan meal plan row: %w", err)
		}

		if current == nil || current.ID != planID {
			plans = append(plans, MealPlan{
				ID:        planID,
				UserID:    userID,
				Days:      make(map[string]DayPlan),
				Dates:     make(map[string]string),
				CreatedAt: createdAt,
			})
			current = &plans[len(plans)-1]
		}

		var day DayPlan
		if err := json.Unmarshal([]byte(meals), &day); err != nil {
			return nil, fmt.Errorf("failed to unmarshal meals for plan %d %s: %w", planID, label, err)
		}
		current.Days[label] = day
		current.Dates[label] = date
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read meal plan rows: %w", err)
	}
	return plans, nil
}

// CountActiveDays counts remaining day rows across all of the user's windows.
func (r *Repository) CountActiveDays(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM meal_plan_days WHERE user_id = ?`, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count planned days for user %s: %w", userID, err)
	}
	return count, nil
}

// LatestActiveDate returns the maximum plan date across the user's windows.
func (r *Repository) LatestActiveDate(ctx context.Context, userID string) (*time.Time, error) {
	var latest sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT MAX(plan_date) FROM meal_plan_days WHERE user_id = ?`, userID,
	).Scan(&latest)
	if err != nil {
		return nil, fmt.Errorf("failed to read latest plan date for user %s: %w", userID, err)
	}
	if !latest.Valid {
		return nil, nil
	}
	date, err := time.ParseInLocation(DateFormat, latest.String, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("corrupt plan date %q for user %s: %w", latest.String, userID, err)
	}
	return &date, nil
}

// RemoveDay deletes the day row matching date. The row holds the label, date,
// and meals together, so one DELETE removes the day from both mappings.
func (r *Repository) RemoveDay(ctx context.Context, userID string, date time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM meal_plan_days WHERE user_id = ? AND plan_date = ?`,
		userID, Midnight(date).Format(DateFormat),
	)
	if err != nil {
		return false, fmt.Errorf("failed to remove day %s for user %s: %w", date.Format(DateFormat), userID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return affected > 0, nil
}

// DayOn returns the active day entry on an exact date, or nil.
func (r *Repository) DayOn(ctx context.Context, userID string, date time.Time) (*DayEntry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT plan_id, day_label, plan_date, meals
		 FROM meal_plan_days WHERE user_id = ? AND plan_date = ?`,
		userID, Midnight(date).Format(DateFormat),
	)
	entry, err := scanDayEntry(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read day %s for user %s: %w", date.Format(DateFormat), userID, err)
	}
	return entry, nil
}

// DaysBetween returns active day entries within [from, to] in date order.
func (r *Repository) DaysBetween(ctx context.Context, userID string, from, to time.Time) ([]DayEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT plan_id, day_label, plan_date, meals
		 FROM meal_plan_days
		 WHERE user_id = ? AND plan_date BETWEEN ? AND ?
		 ORDER BY plan_date`,
		userID, Midnight(from).Format(DateFormat), Midnight(to).Format(DateFormat),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query days for user %s: %w", userID, err)
	}
	defer rows.Close()

	var entries []DayEntry
	for rows.Next() {
		entry, err := scanDayEntry(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan day row: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read day rows: %w", err)
	}
	return entries, nil
}

func scanDayEntry(scan func(dest ...any) error) (*DayEntry, error) {
	var (
		entry DayEntry
		date  string
		meals string
	)
	if err := scan(&entry.PlanID, &entry.Label, &date, &meals); err != nil {
		return nil, err
	}
	parsed, err := time.ParseInLocation(DateFormat, date, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("corrupt plan date %q: %w", date, err)
	}
	entry.Date = parsed
	if err := json.Unmarshal([]byte(meals), &entry.Meals); err != nil {
		return nil, fmt.Errorf("corrupt meals JSON: %w", err)
	}
	return &entry, nil
}
