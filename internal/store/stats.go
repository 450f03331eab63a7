package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/emberday/internal/model"
	"github.com/dukerupert/emberday/internal/streak"
)

// StatsStore serves the aggregate read views (weekly, category, hourly).
// Buckets are computed in Go so day and hour boundaries follow the caller's
// timezone, not the UTC storage form.
type StatsStore struct {
	db *sql.DB
}

func NewStatsStore(db *sql.DB) *StatsStore {
	return &StatsStore{db: db}
}

// WeeklyXP returns one entry per day for the 7 days ending today, oldest
// first. Days without events appear with a zero amount.
func (s *StatsStore) WeeklyXP(userID int64, now time.Time) ([]model.DailyXP, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	weekStart := dayStart.AddDate(0, 0, -6)

	rows, err := s.db.Query(
		`SELECT amount, occurred_at FROM xp_events WHERE user_id = ? AND occurred_at >= ? AND occurred_at < ?`,
		userID, weekStart.UTC(), dayStart.Add(24*time.Hour).UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("query weekly xp: %w", err)
	}
	defer rows.Close()

	sums := make(map[string]int)
	for rows.Next() {
		var amount int
		var occurredAt time.Time
		if err := rows.Scan(&amount, &occurredAt); err != nil {
			return nil, fmt.Errorf("scan weekly xp: %w", err)
		}
		sums[streak.DayOf(occurredAt, now.Location())] += amount
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate weekly xp: %w", err)
	}

	week := make([]model.DailyXP, 0, 7)
	for d := weekStart; !d.After(dayStart); d = d.AddDate(0, 0, 1) {
		day := d.Format(streak.DayFormat)
		week = append(week, model.DailyXP{Day: day, Amount: sums[day]})
	}
	return week, nil
}

// CategoryXP sums positive ledger events per habit category. Purchases and
// reversals carry no habit reference and fall outside every category.
func (s *StatsStore) CategoryXP(userID int64) ([]model.CategoryXP, error) {
	rows, err := s.db.Query(
		`SELECT h.category, COALESCE(SUM(e.amount), 0)
		 FROM xp_events e
		 JOIN habits h ON h.id = e.habit_id
		 WHERE e.user_id = ?
		 GROUP BY h.category
		 ORDER BY h.category ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query category xp: %w", err)
	}
	defer rows.Close()

	var stats []model.CategoryXP
	for rows.Next() {
		var c model.CategoryXP
		if err := rows.Scan(&c.Category, &c.Amount); err != nil {
			return nil, fmt.Errorf("scan category xp: %w", err)
		}
		stats = append(stats, c)
	}
	return stats, rows.Err()
}

// HourlyCompletions buckets the user's completions by hour of day across
// their full history. Hours without completions are omitted.
func (s *StatsStore) HourlyCompletions(userID int64, loc *time.Location) ([]model.HourlyCompletions, error) {
	rows, err := s.db.Query(
		`SELECT completed_at FROM habit_completions WHERE user_id = ?`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query hourly completions: %w", err)
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var completedAt time.Time
		if err := rows.Scan(&completedAt); err != nil {
			return nil, fmt.Errorf("scan completion time: %w", err)
		}
		counts[completedAt.In(loc).Hour()]++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate completions: %w", err)
	}

	var stats []model.HourlyCompletions
	for hour := 0; hour < 24; hour++ {
		if counts[hour] > 0 {
			stats = append(stats, model.HourlyCompletions{Hour: hour, Count: counts[hour]})
		}
	}
	return stats, nil
}
