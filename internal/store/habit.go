package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/emberday/internal/model"
)

type HabitStore struct {
	db *sql.DB
}

func NewHabitStore(db *sql.DB) *HabitStore {
	return &HabitStore{db: db}
}

func scanHabit(scanner interface{ Scan(...any) error }) (*model.Habit, error) {
	var h model.Habit
	var kind string
	var popular int

	err := scanner.Scan(
		&h.ID, &h.UserID, &h.Title, &h.Description, &h.Category,
		&kind, &h.XPValue, &popular, &h.CreatedAt, &h.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	h.Kind = model.HabitKind(kind)
	h.Popular = popular != 0
	return &h, nil
}

const habitCols = `id, user_id, title, description, category, kind, xp_value, popular, created_at, updated_at`

func (s *HabitStore) Create(userID int64, title, description, category string, kind model.HabitKind, xpValue int) (*model.Habit, error) {
	result, err := s.db.Exec(
		`INSERT INTO habits (user_id, title, description, category, kind, xp_value) VALUES (?, ?, ?, ?, ?, ?)`,
		userID, title, description, category, string(kind), xpValue,
	)
	if err != nil {
		return nil, fmt.Errorf("insert habit: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *HabitStore) GetByID(id int64) (*model.Habit, error) {
	row := s.db.QueryRow(`SELECT `+habitCols+` FROM habits WHERE id = ?`, id)
	h, err := scanHabit(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get habit: %w", err)
	}
	return h, nil
}

// ListByUser returns the user's own habits plus any marked popular (shared
// starter habits), categories grouped together.
func (s *HabitStore) ListByUser(userID int64) ([]model.Habit, error) {
	rows, err := s.db.Query(
		`SELECT `+habitCols+` FROM habits WHERE user_id = ? OR popular = 1 ORDER BY category ASC, title ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}
	defer rows.Close()

	var habits []model.Habit
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan habit: %w", err)
		}
		habits = append(habits, *h)
	}
	return habits, rows.Err()
}

// ListWithStatus annotates the user's habits with whether each was completed
// on the given day.
func (s *HabitStore) ListWithStatus(userID int64, day string) ([]model.HabitWithStatus, error) {
	rows, err := s.db.Query(
		`SELECT h.id, h.user_id, h.title, h.description, h.category, h.kind, h.xp_value, h.popular, h.created_at, h.updated_at,
		        CASE WHEN c.id IS NULL THEN 0 ELSE 1 END
		 FROM habits h
		 LEFT JOIN habit_completions c
		   ON c.habit_id = h.id AND c.user_id = ? AND c.completed_on = ?
		 WHERE h.user_id = ? OR h.popular = 1
		 ORDER BY h.category ASC, h.title ASC`,
		userID, day, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list habits with status: %w", err)
	}
	defer rows.Close()

	var habits []model.HabitWithStatus
	for rows.Next() {
		var h model.HabitWithStatus
		var kind string
		var popular, completed int
		err := rows.Scan(
			&h.ID, &h.UserID, &h.Title, &h.Description, &h.Category,
			&kind, &h.XPValue, &popular, &h.CreatedAt, &h.UpdatedAt,
			&completed,
		)
		if err != nil {
			return nil, fmt.Errorf("scan habit with status: %w", err)
		}
		h.Kind = model.HabitKind(kind)
		h.Popular = popular != 0
		h.CompletedToday = completed != 0
		habits = append(habits, h)
	}
	return habits, rows.Err()
}

func (s *HabitStore) Update(id int64, title, description, category string, kind model.HabitKind, xpValue int) (*model.Habit, error) {
	_, err := s.db.Exec(
		`UPDATE habits SET title = ?, description = ?, category = ?, kind = ?, xp_value = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		title, description, category, string(kind), xpValue, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update habit: %w", err)
	}
	return s.GetByID(id)
}

// Delete removes the habit definition. Ledger events referencing it keep a
// null back-reference; completions cascade away.
func (s *HabitStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM habits WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete habit: %w", err)
	}
	return nil
}

// --- Completion reads ---

func scanCompletion(scanner interface{ Scan(...any) error }) (*model.HabitCompletion, error) {
	var c model.HabitCompletion
	err := scanner.Scan(&c.ID, &c.HabitID, &c.UserID, &c.CompletedOn, &c.CompletedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

const completionCols = `id, habit_id, user_id, completed_on, completed_at`

// CompletionForDay returns the completion of a habit on a day, or nil.
func (s *HabitStore) CompletionForDay(habitID, userID int64, day string) (*model.HabitCompletion, error) {
	row := s.db.QueryRow(
		`SELECT `+completionCols+` FROM habit_completions WHERE habit_id = ? AND user_id = ? AND completed_on = ?`,
		habitID, userID, day,
	)
	c, err := scanCompletion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get completion: %w", err)
	}
	return c, nil
}

// CountForDay returns how many completions the user logged on a day.
func (s *HabitStore) CountForDay(userID int64, day string) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM habit_completions WHERE user_id = ? AND completed_on = ?`,
		userID, day,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count completions: %w", err)
	}
	return count, nil
}

// ListCompletionsForDay returns all of the user's completions on a day.
func (s *HabitStore) ListCompletionsForDay(userID int64, day string) ([]model.HabitCompletion, error) {
	rows, err := s.db.Query(
		`SELECT `+completionCols+` FROM habit_completions WHERE user_id = ? AND completed_on = ? ORDER BY completed_at ASC`,
		userID, day,
	)
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	defer rows.Close()

	var completions []model.HabitCompletion
	for rows.Next() {
		c, err := scanCompletion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		completions = append(completions, *c)
	}
	return completions, rows.Err()
}
