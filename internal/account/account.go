package account

import (
	"errors"
	"time"
)

// ErrUserNotFound is returned when no account exists for the requested ID.
var ErrUserNotFound = errors.New("user not found")

// Profile holds the dietary preferences and goals the plan generator
// personalizes against.
type Profile struct {
	DietaryRestrictions []string       `json:"dietary_restrictions"`
	Allergies           []string       `json:"allergies"`
	DislikedIngredients []string       `json:"disliked_ingredients"`
	PreferredCuisines   []string       `json:"preferred_cuisines"`
	TargetDailyCalories int            `json:"target_daily_calories"`
	TargetMacrosPct     map[string]int `json:"target_macros_pct"`
}

// DefaultProfile returns the profile assigned to new users.
func DefaultProfile() Profile {
	return Profile{
		DietaryRestrictions: []string{},
		Allergies:           []string{},
		DislikedIngredients: []string{},
		PreferredCuisines:   []string{},
		TargetDailyCalories: 2000,
		TargetMacrosPct:     map[string]int{"protein": 30, "carbs": 40, "fat": 30},
	}
}

// ProfileUpdate carries a partial profile change; nil fields are left as-is.
type ProfileUpdate struct {
	DietaryRestrictions *[]string       `json:"dietary_restrictions"`
	Allergies           *[]string       `json:"allergies"`
	DislikedIngredients *[]string       `json:"disliked_ingredients"`
	PreferredCuisines   *[]string       `json:"preferred_cuisines"`
	TargetDailyCalories *int            `json:"target_daily_calories"`
	TargetMacrosPct     *map[string]int `json:"target_macros_pct"`
}

// Apply merges the non-nil fields of the update into p.
func (u ProfileUpdate) Apply(p *Profile) {
	if u.DietaryRestrictions != nil {
		p.DietaryRestrictions = *u.DietaryRestrictions
	}
	if u.Allergies != nil {
		p.Allergies = *u.Allergies
	}
	if u.DislikedIngredients != nil {
		p.DislikedIngredients = *u.DislikedIngredients
	}
	if u.PreferredCuisines != nil {
		p.PreferredCuisines = *u.PreferredCuisines
	}
	if u.TargetDailyCalories != nil {
		p.TargetDailyCalories = *u.TargetDailyCalories
	}
	if u.TargetMacrosPct != nil {
		p.TargetMacrosPct = *u.TargetMacrosPct
	}
}

// User is an account record. Authentication happens upstream; this store only
// holds identity and preferences.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email,omitempty"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	Profile   Profile   `json:"profile"`
	CreatedAt time.Time `json:"created_at"`
}
