package planner

import (
	"errors"
	"fmt"
)

// ErrCapacityExceeded is returned when a user already has a full plan window.
// The user can recover by marking days as complete.
var ErrCapacityExceeded = errors.New("maximum meal plan capacity reached: mark some days as complete before generating more")

// ErrDayNotFound is returned when completion is requested for a date with no
// matching active day entry.
var ErrDayNotFound = errors.New("no planned day found for the specified date")

// GenerationError reports a failed or unparsable Plan Generator call.
// Callers inspect it with errors.As; the underlying cause is preserved.
type GenerationError struct {
	Days int
	Err  error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("failed to generate %d-day meal plan: %v", e.Days, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
