package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/emberday/internal/model"
)

type StreakStore struct {
	db *sql.DB
}

func NewStreakStore(db *sql.DB) *StreakStore {
	return &StreakStore{db: db}
}

func scanStreak(scanner interface{ Scan(...any) error }) (*model.Streak, error) {
	var r model.Streak
	err := scanner.Scan(
		&r.ID, &r.UserID, &r.CurrentStreak, &r.LongestStreak,
		&r.TasksCompletedToday, &r.LastActivityDate,
		&r.FreezeTokens, &r.FreezeUsedDate, &r.Version, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

const streakCols = `id, user_id, current_streak, longest_streak, tasks_completed_today, last_activity_date, freeze_tokens, freeze_used_date, version, updated_at`

func (s *StreakStore) GetByUser(userID int64) (*model.Streak, error) {
	row := s.db.QueryRow(`SELECT `+streakCols+` FROM streaks WHERE user_id = ?`, userID)
	r, err := scanStreak(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get streak: %w", err)
	}
	return r, nil
}

// ListAll returns every streak record. Used by the reminder scheduler.
func (s *StreakStore) ListAll() ([]model.Streak, error) {
	rows, err := s.db.Query(`SELECT ` + streakCols + ` FROM streaks`)
	if err != nil {
		return nil, fmt.Errorf("list streaks: %w", err)
	}
	defer rows.Close()

	var streaks []model.Streak
	for rows.Next() {
		r, err := scanStreak(rows)
		if err != nil {
			return nil, fmt.Errorf("scan streak: %w", err)
		}
		streaks = append(streaks, *r)
	}
	return streaks, rows.Err()
}

// querier lets the helpers below run against either *sql.DB or *sql.Tx.
type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
}

// getStreakForUpdate fetches the user's record inside q, lazily creating a
// zeroed one on first use. The zero record has an empty last_activity_date,
// which the transition function treats as "never active".
func getStreakForUpdate(q querier, userID int64) (*model.Streak, error) {
	row := q.QueryRow(`SELECT `+streakCols+` FROM streaks WHERE user_id = ?`, userID)
	r, err := scanStreak(row)
	if err == nil {
		return r, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("get streak: %w", err)
	}

	if _, err := q.Exec(`INSERT INTO streaks (user_id) VALUES (?)`, userID); err != nil {
		return nil, fmt.Errorf("create streak: %w", err)
	}
	row = q.QueryRow(`SELECT `+streakCols+` FROM streaks WHERE user_id = ?`, userID)
	r, err = scanStreak(row)
	if err != nil {
		return nil, fmt.Errorf("reread streak: %w", err)
	}
	return r, nil
}

// updateStreakGuarded writes rec conditioned on the version it was read at.
// A concurrent writer bumps the version first, the update matches zero rows,
// and the caller retries its whole read-modify-write.
func updateStreakGuarded(q querier, rec *model.Streak) error {
	result, err := q.Exec(
		`UPDATE streaks
		 SET current_streak = ?, longest_streak = ?, tasks_completed_today = ?,
		     last_activity_date = ?, freeze_tokens = ?, freeze_used_date = ?,
		     version = version + 1, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND version = ?`,
		rec.CurrentStreak, rec.LongestStreak, rec.TasksCompletedToday,
		rec.LastActivityDate, rec.FreezeTokens, rec.FreezeUsedDate,
		rec.ID, rec.Version,
	)
	if err != nil {
		return fmt.Errorf("update streak: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrVersionConflict
	}
	rec.Version++
	return nil
}

// addFreezeToken grants one freeze token, creating the record if needed.
// A plain increment needs no version guard.
func addFreezeToken(q querier, userID int64) error {
	if _, err := getStreakForUpdate(q, userID); err != nil {
		return err
	}
	_, err := q.Exec(
		`UPDATE streaks SET freeze_tokens = freeze_tokens + 1, version = version + 1, updated_at = CURRENT_TIMESTAMP WHERE user_id = ?`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("grant freeze token: %w", err)
	}
	return nil
}
