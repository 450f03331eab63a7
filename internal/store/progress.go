package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dukerupert/emberday/internal/model"
	"github.com/dukerupert/emberday/internal/streak"
)

// ProgressStore runs the multi-step flows: habit completion, cancellation,
// reward purchase, and freeze consumption. Each flow is one transaction, so
// the ledger and the streak record move together or not at all. Streak
// writes are version-guarded; on conflict the whole read-modify-write is
// retried.
type ProgressStore struct {
	db *sql.DB

	// PenalizeBadHabits flips the ledger sign for bad-habit completions.
	// Default false: marking a bad habit done means "avoided it today" and
	// earns XP like a good habit.
	PenalizeBadHabits bool
}

func NewProgressStore(db *sql.DB) *ProgressStore {
	return &ProgressStore{db: db}
}

// CompletionResult is everything a completion changed.
type CompletionResult struct {
	Completion *model.HabitCompletion `json:"completion"`
	Event      *model.XPEvent         `json:"event"`
	Streak     *model.Streak          `json:"streak"`
	TodayCount int                    `json:"today_count"`
}

// CancellationResult mirrors CompletionResult for the undo path.
type CancellationResult struct {
	Reversal   *model.XPEvent `json:"reversal"`
	Streak     *model.Streak  `json:"streak"`
	TodayCount int            `json:"today_count"`
}

// PurchaseResult is everything a reward purchase changed.
type PurchaseResult struct {
	Ownership *model.RewardOwnership `json:"ownership"`
	Event     *model.XPEvent         `json:"event"`
	TotalXP   int                    `json:"total_xp"`
}

func conflictBackoff() retry.Backoff {
	return retry.WithMaxRetries(3, retry.NewConstant(25*time.Millisecond))
}

// CompleteHabit logs a completion for today, appends the XP event, and rolls
// the streak forward, atomically.
func (s *ProgressStore) CompleteHabit(ctx context.Context, userID, habitID int64, now time.Time) (*CompletionResult, error) {
	var res *CompletionResult
	err := retry.Do(ctx, conflictBackoff(), func(ctx context.Context) error {
		r, err := s.completeHabit(ctx, userID, habitID, now)
		if errors.Is(err, ErrVersionConflict) {
			return retry.RetryableError(err)
		}
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	return res, err
}

func (s *ProgressStore) completeHabit(ctx context.Context, userID, habitID int64, now time.Time) (*CompletionResult, error) {
	day := now.Format(streak.DayFormat)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	habit, err := habitForUser(tx, habitID, userID)
	if err != nil {
		return nil, err
	}

	var existing int
	err = tx.QueryRow(
		`SELECT COUNT(*) FROM habit_completions WHERE habit_id = ? AND user_id = ? AND completed_on = ?`,
		habitID, userID, day,
	).Scan(&existing)
	if err != nil {
		return nil, fmt.Errorf("check completion: %w", err)
	}
	if existing > 0 {
		return nil, ErrAlreadyCompleted
	}

	rec, err := getStreakForUpdate(tx, userID)
	if err != nil {
		return nil, err
	}

	result, err := tx.Exec(
		`INSERT INTO habit_completions (habit_id, user_id, completed_on, completed_at) VALUES (?, ?, ?, ?)`,
		habitID, userID, day, now.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert completion: %w", err)
	}
	completionID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	count, err := countForDay(tx, userID, day)
	if err != nil {
		return nil, err
	}

	// The count comes from the rows just written, never from the caller.
	if !streak.Frozen(*rec, day) {
		next := streak.ApplyDailyCount(*rec, day, count)
		next.ID = rec.ID
		next.Version = rec.Version
		if err := updateStreakGuarded(tx, &next); err != nil {
			return nil, err
		}
		rec = &next
	}

	amount := habit.XPValue
	if habit.Kind == model.HabitBad && s.PenalizeBadHabits {
		amount = -habit.XPValue
	}
	event, err := appendEvent(tx, userID, &habitID, amount, "completed: "+habit.Title, now)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return &CompletionResult{
		Completion: &model.HabitCompletion{
			ID:          completionID,
			HabitID:     habitID,
			UserID:      userID,
			CompletedOn: day,
			CompletedAt: now.UTC(),
		},
		Event:      event,
		Streak:     rec,
		TodayCount: count,
	}, nil
}

// CancelCompletion undoes today's completion of a habit: the completion row
// goes away, the streak rolls back through the same transition function, and
// a compensating negative event balances the ledger. Blocked while a freeze
// is the only reason today counts.
func (s *ProgressStore) CancelCompletion(ctx context.Context, userID, habitID int64, now time.Time) (*CancellationResult, error) {
	var res *CancellationResult
	err := retry.Do(ctx, conflictBackoff(), func(ctx context.Context) error {
		r, err := s.cancelCompletion(ctx, userID, habitID, now)
		if errors.Is(err, ErrVersionConflict) {
			return retry.RetryableError(err)
		}
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	return res, err
}

func (s *ProgressStore) cancelCompletion(ctx context.Context, userID, habitID int64, now time.Time) (*CancellationResult, error) {
	day := now.Format(streak.DayFormat)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var completionID int64
	err = tx.QueryRow(
		`SELECT id FROM habit_completions WHERE habit_id = ? AND user_id = ? AND completed_on = ?`,
		habitID, userID, day,
	).Scan(&completionID)
	if err == sql.ErrNoRows {
		return nil, ErrNotCompletedToday
	}
	if err != nil {
		return nil, fmt.Errorf("find completion: %w", err)
	}

	rec, err := getStreakForUpdate(tx, userID)
	if err != nil {
		return nil, err
	}

	frozen := streak.Frozen(*rec, day)
	if frozen && rec.TasksCompletedToday <= streak.DailyGoal {
		return nil, ErrFrozenDay
	}

	if _, err := tx.Exec(`DELETE FROM habit_completions WHERE id = ?`, completionID); err != nil {
		return nil, fmt.Errorf("delete completion: %w", err)
	}

	count, err := countForDay(tx, userID, day)
	if err != nil {
		return nil, err
	}

	if !frozen {
		next := streak.ApplyDailyCount(*rec, day, count)
		next.ID = rec.ID
		next.Version = rec.Version
		if err := updateStreakGuarded(tx, &next); err != nil {
			return nil, err
		}
		rec = &next
	}

	// Balance today's ledger entries for this habit with one reversal
	// instead of deleting them; the ledger stays append-only. The window
	// ends at the next local midnight, not dayStart+24h, so DST transition
	// days keep their full 23 or 25 hours.
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
	var earned sql.NullInt64
	err = tx.QueryRow(
		`SELECT COALESCE(SUM(amount), 0) FROM xp_events WHERE user_id = ? AND habit_id = ? AND occurred_at >= ? AND occurred_at < ?`,
		userID, habitID, dayStart.UTC(), dayEnd.UTC(),
	).Scan(&earned)
	if err != nil {
		return nil, fmt.Errorf("sum habit events: %w", err)
	}

	var reversal *model.XPEvent
	if earned.Int64 != 0 {
		reversal, err = appendEvent(tx, userID, &habitID, -int(earned.Int64), "cancelled completion", now)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return &CancellationResult{
		Reversal:   reversal,
		Streak:     rec,
		TodayCount: count,
	}, nil
}

// PurchaseReward spends XP on a reward: ownership row, negative ledger
// event, and (for freeze-token rewards) the token grant land in one
// transaction. The balance is recomputed from the ledger inside the
// transaction; an insufficient balance rejects before any write.
func (s *ProgressStore) PurchaseReward(ctx context.Context, userID, rewardID int64, now time.Time) (*PurchaseResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var reward model.Reward
	var kind string
	var active int
	err = tx.QueryRow(
		`SELECT id, title, description, cost, kind, active, created_at FROM rewards WHERE id = ?`,
		rewardID,
	).Scan(&reward.ID, &reward.Title, &reward.Description, &reward.Cost, &kind, &active, &reward.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reward: %w", err)
	}
	reward.Kind = model.RewardKind(kind)
	if active == 0 {
		return nil, ErrRewardInactive
	}

	var owned int
	err = tx.QueryRow(
		`SELECT COUNT(*) FROM reward_ownerships WHERE reward_id = ? AND user_id = ?`,
		rewardID, userID,
	).Scan(&owned)
	if err != nil {
		return nil, fmt.Errorf("check ownership: %w", err)
	}
	if owned > 0 {
		return nil, ErrAlreadyOwned
	}

	var total sql.NullInt64
	err = tx.QueryRow(
		`SELECT COALESCE(SUM(amount), 0) FROM xp_events WHERE user_id = ?`,
		userID,
	).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("sum xp: %w", err)
	}
	if int(total.Int64) < reward.Cost {
		return nil, ErrInsufficientXP
	}

	event, err := appendEvent(tx, userID, nil, -reward.Cost, "purchased: "+reward.Title, now)
	if err != nil {
		return nil, err
	}

	result, err := tx.Exec(
		`INSERT INTO reward_ownerships (reward_id, user_id, xp_event_id) VALUES (?, ?, ?)`,
		rewardID, userID, event.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert ownership: %w", err)
	}
	ownershipID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	if reward.Kind == model.RewardFreezeToken {
		if err := addFreezeToken(tx, userID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return &PurchaseResult{
		Ownership: &model.RewardOwnership{
			ID:        ownershipID,
			RewardID:  rewardID,
			UserID:    userID,
			XPEventID: event.ID,
		},
		Event:   event,
		TotalXP: int(total.Int64) - reward.Cost,
	}, nil
}

// UseFreeze consumes a freeze token to mark today as satisfied. Rejected if
// no tokens remain, today is already frozen, or today already earned the
// goal through real completions.
func (s *ProgressStore) UseFreeze(ctx context.Context, userID int64, now time.Time) (*model.Streak, error) {
	var res *model.Streak
	err := retry.Do(ctx, conflictBackoff(), func(ctx context.Context) error {
		r, err := s.useFreeze(ctx, userID, now)
		if errors.Is(err, ErrVersionConflict) {
			return retry.RetryableError(err)
		}
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	return res, err
}

func (s *ProgressStore) useFreeze(ctx context.Context, userID int64, now time.Time) (*model.Streak, error) {
	day := now.Format(streak.DayFormat)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	rec, err := getStreakForUpdate(tx, userID)
	if err != nil {
		return nil, err
	}

	if rec.FreezeTokens <= 0 {
		return nil, ErrNoFreezeTokens
	}
	if streak.Frozen(*rec, day) {
		return nil, ErrAlreadyFrozen
	}
	if rec.LastActivityDate == day && rec.TasksCompletedToday >= streak.DailyGoal {
		return nil, ErrDayAlreadySatisfied
	}

	next := streak.ApplyFreeze(*rec, day)
	next.ID = rec.ID
	next.Version = rec.Version
	if err := updateStreakGuarded(tx, &next); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &next, nil
}

// --- tx helpers ---

func habitForUser(q querier, habitID, userID int64) (*model.Habit, error) {
	row := q.QueryRow(`SELECT `+habitCols+` FROM habits WHERE id = ?`, habitID)
	h, err := scanHabit(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get habit: %w", err)
	}
	if h.UserID != userID && !h.Popular {
		// Someone else's habit is indistinguishable from a missing one.
		return nil, ErrNotFound
	}
	return h, nil
}

func countForDay(q querier, userID int64, day string) (int, error) {
	var count int
	err := q.QueryRow(
		`SELECT COUNT(*) FROM habit_completions WHERE user_id = ? AND completed_on = ?`,
		userID, day,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count completions: %w", err)
	}
	return count, nil
}

func appendEvent(q querier, userID int64, habitID *int64, amount int, note string, now time.Time) (*model.XPEvent, error) {
	var hID sql.NullInt64
	if habitID != nil {
		hID = sql.NullInt64{Int64: *habitID, Valid: true}
	}

	result, err := q.Exec(
		`INSERT INTO xp_events (user_id, habit_id, amount, note, occurred_at) VALUES (?, ?, ?, ?, ?)`,
		userID, hID, amount, note, now.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert xp event: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return &model.XPEvent{
		ID:         id,
		UserID:     userID,
		HabitID:    habitID,
		Amount:     amount,
		Note:       note,
		OccurredAt: now.UTC(),
	}, nil
}
