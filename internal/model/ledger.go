package model

import "time"

// XPEvent is one entry in the append-only experience ledger. Amount is signed:
// habit completions append positive events, purchases and reversals append
// negative ones. Events are never updated or deleted; a cancelled completion
// is balanced by a compensating negative event.
type XPEvent struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	HabitID    *int64    `json:"habit_id"`
	Amount     int       `json:"amount"`
	Note       string    `json:"note"`
	OccurredAt time.Time `json:"occurred_at"`
}

// XPBalance summarizes a user's ledger.
type XPBalance struct {
	UserID  int64 `json:"user_id"`
	TotalXP int   `json:"total_xp"`
	TodayXP int   `json:"today_xp"`
}

// DailyXP is one day's ledger sum, used by the weekly stats view.
type DailyXP struct {
	Day    string `json:"day"`
	Amount int    `json:"amount"`
}

// CategoryXP is the ledger sum for one habit category.
type CategoryXP struct {
	Category string `json:"category"`
	Amount   int    `json:"amount"`
}

// HourlyCompletions counts completions logged during one hour of the day.
type HourlyCompletions struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}
