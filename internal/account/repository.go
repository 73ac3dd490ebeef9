package account

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Repository is a database-backed store for user accounts and profiles.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new Repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new user. A zero Profile is replaced with the default.
func (r *Repository) Create(ctx context.Context, user User) (*User, error) {
	if user.Profile.TargetMacrosPct == nil {
		user.Profile = DefaultProfile()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	profileJSON, err := json.Marshal(user.Profile)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal profile: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, first_name, last_name, profile, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.FirstName, user.LastName, string(profileJSON), user.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user %s: %w", user.ID, err)
	}
	return &user, nil
}

// Get retrieves a user by ID.
func (r *Repository) Get(ctx context.Context, id string) (*User, error) {
	var (
		user        User
		profileJSON string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, first_name, last_name, profile, created_at FROM users WHERE id = ?`,
		id,
	).Scan(&user.ID, &user.Email, &user.FirstName, &user.LastName, &profileJSON, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", id, err)
	}

	if err := json.Unmarshal([]byte(profileJSON), &user.Profile); err != nil {
		return nil, fmt.Errorf("corrupt profile JSON for user %s: %w", id, err)
	}
	return &user, nil
}

// GetProfile returns just the user's profile.
func (r *Repository) GetProfile(ctx context.Context, id string) (Profile, error) {
	user, err := r.Get(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	return user.Profile, nil
}

// UpdateProfile applies a partial profile update.
func (r *Repository) UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (Profile, error) {
	profile, err := r.GetProfile(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	update.Apply(&profile)

	profileJSON, err := json.Marshal(profile)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to marshal profile: %w", err)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET profile = ? WHERE id = ?`, string(profileJSON), id,
	)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to update profile for user %s: %w", id, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return Profile{}, ErrUserNotFound
	}
	return profile, nil
}

// EnsureUser returns the user with the given ID, creating it with a default
// profile on first contact. Used by transports whose identity comes from the
// channel itself (e.g. a Telegram chat).
func (r *Repository) EnsureUser(ctx context.Context, id, firstName string) (*User, error) {
	user, err := r.Get(ctx, id)
	if err == nil {
		return user, nil
	}
	if err != ErrUserNotFound {
		return nil, err
	}
	return r.Create(ctx, User{ID: id, FirstName: firstName, Profile: DefaultProfile()})
}
