package model

import "time"

// Streak is the single mutable per-user record behind the daily streak.
// Dates are YYYY-MM-DD strings; the empty string means "never".
// TasksCompletedToday is meaningful only relative to LastActivityDate: once
// the calendar moves past it, the field holds the prior day's final count
// until the next update rolls the record forward.
//
// Version guards concurrent read-modify-write cycles: every update is
// conditioned on the version it read, and bumps it.
type Streak struct {
	ID                  int64     `json:"id"`
	UserID              int64     `json:"user_id"`
	CurrentStreak       int       `json:"current_streak"`
	LongestStreak       int       `json:"longest_streak"`
	TasksCompletedToday int       `json:"tasks_completed_today"`
	LastActivityDate    string    `json:"last_activity_date"`
	FreezeTokens        int       `json:"freeze_tokens"`
	FreezeUsedDate      string    `json:"freeze_used_date,omitempty"`
	Version             int64     `json:"-"`
	UpdatedAt           time.Time `json:"updated_at"`
}
