package planner

import "time"

// Ingredient is a single line item in a recipe's ingredient list.
// Quantity is a string so the generator can answer "1/2" or "to taste".
type Ingredient struct {
	Item     string `json:"item"`
	Quantity string `json:"quantity"`
	Unit     string `json:"unit"`
	Notes    string `json:"notes,omitempty"`
}

// Recipe holds the full cooking instructions for one meal.
type Recipe struct {
	Description  string       `json:"description"`
	PrepTimeMins int          `json:"prepTimeMins"`
	CookTimeMins int          `json:"cookTimeMins"`
	Ingredients  []Ingredient `json:"ingredients"`
	Instructions []string     `json:"instructions"`
}

// Meal is one named dish filling a meal slot.
type Meal struct {
	Name   string `json:"name"`
	Recipe Recipe `json:"recipe"`
}

// DayPlan holds the three meal slots for a single day.
type DayPlan struct {
	Breakfast Meal `json:"Breakfast"`
	Lunch     Meal `json:"Lunch"`
	Dinner    Meal `json:"Dinner"`
}

// MealPlan is one stored plan window: the batch of days produced by a single
// generator call. Days and Dates share day labels ("Day1", "Day2", ...);
// completing a day removes its label from both maps, so a window shrinks over
// its lifetime and is never edited in place.
type MealPlan struct {
	ID        int64              `json:"id,omitempty"`
	UserID    string             `json:"user_id"`
	Days      map[string]DayPlan `json:"days"`
	Dates     map[string]string  `json:"dates"`
	CreatedAt time.Time          `json:"created_at"`
}

// DayEntry is the flattened view of one active day. A user's active days may
// be spread across several stored windows; day-level reads use this view
// instead of assuming one document per user.
type DayEntry struct {
	PlanID int64
	Label  string
	Date   time.Time
	Meals  DayPlan
}
