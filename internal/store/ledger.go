package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/emberday/internal/model"
)

// LedgerStore reads the append-only XP ledger. Writes happen only inside
// ProgressStore transactions, alongside the state changes that justify them.
type LedgerStore struct {
	db *sql.DB
}

func NewLedgerStore(db *sql.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

func scanEvent(scanner interface{ Scan(...any) error }) (*model.XPEvent, error) {
	var e model.XPEvent
	var habitID sql.NullInt64

	err := scanner.Scan(&e.ID, &e.UserID, &habitID, &e.Amount, &e.Note, &e.OccurredAt)
	if err != nil {
		return nil, err
	}

	if habitID.Valid {
		e.HabitID = &habitID.Int64
	}
	return &e, nil
}

const eventCols = `id, user_id, habit_id, amount, note, occurred_at`

// TotalXP is the sum of every ledger event the user owns. This is the
// authoritative balance; nothing caches it on the write path.
func (s *LedgerStore) TotalXP(userID int64) (int, error) {
	var total sql.NullInt64
	err := s.db.QueryRow(
		`SELECT COALESCE(SUM(amount), 0) FROM xp_events WHERE user_id = ?`,
		userID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum xp: %w", err)
	}
	return int(total.Int64), nil
}

// SumRange sums ledger events in [start, end).
func (s *LedgerStore) SumRange(userID int64, start, end time.Time) (int, error) {
	var total sql.NullInt64
	err := s.db.QueryRow(
		`SELECT COALESCE(SUM(amount), 0) FROM xp_events WHERE user_id = ? AND occurred_at >= ? AND occurred_at < ?`,
		userID, start.UTC(), end.UTC(),
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum xp range: %w", err)
	}
	return int(total.Int64), nil
}

// Balance returns total and today's XP in one struct for the balance view.
func (s *LedgerStore) Balance(userID int64, now time.Time) (*model.XPBalance, error) {
	total, err := s.TotalXP(userID)
	if err != nil {
		return nil, err
	}

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	today, err := s.SumRange(userID, dayStart, dayStart.Add(24*time.Hour))
	if err != nil {
		return nil, err
	}

	return &model.XPBalance{UserID: userID, TotalXP: total, TodayXP: today}, nil
}

// ListByUser returns the user's most recent events, newest first.
func (s *LedgerStore) ListByUser(userID int64, limit int) ([]model.XPEvent, error) {
	rows, err := s.db.Query(
		`SELECT `+eventCols+` FROM xp_events WHERE user_id = ? ORDER BY occurred_at DESC, id DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list xp events: %w", err)
	}
	defer rows.Close()

	var events []model.XPEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan xp event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// ListRange returns events in [start, end), oldest first, for stat bucketing.
func (s *LedgerStore) ListRange(userID int64, start, end time.Time) ([]model.XPEvent, error) {
	rows, err := s.db.Query(
		`SELECT `+eventCols+` FROM xp_events WHERE user_id = ? AND occurred_at >= ? AND occurred_at < ? ORDER BY occurred_at ASC`,
		userID, start.UTC(), end.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("list xp range: %w", err)
	}
	defer rows.Close()

	var events []model.XPEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan xp event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}
