package model

import "time"

// HabitKind distinguishes habits to build from habits to break. Completing a
// "bad" habit means the user avoided it today.
type HabitKind string

const (
	HabitGood HabitKind = "good"
	HabitBad  HabitKind = "bad"
)

type Habit struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Kind        HabitKind `json:"kind"`
	XPValue     int       `json:"xp_value"`
	Popular     bool      `json:"popular"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HabitCompletion records one completion of a habit on a calendar day.
// CompletedOn is a date in YYYY-MM-DD form; at most one completion exists
// per (habit, user, day).
type HabitCompletion struct {
	ID          int64     `json:"id"`
	HabitID     int64     `json:"habit_id"`
	UserID      int64     `json:"user_id"`
	CompletedOn string    `json:"completed_on"`
	CompletedAt time.Time `json:"completed_at"`
}

// HabitWithStatus is a habit annotated with its completion state for a day.
type HabitWithStatus struct {
	Habit
	CompletedToday bool `json:"completed_today"`
}
