package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/dukerupert/emberday/internal/database"
	"github.com/dukerupert/emberday/internal/model"
	"github.com/dukerupert/emberday/internal/streak"
)

var (
	day1 = time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	day2 = time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
)

type fixture struct {
	db       *sql.DB
	progress *ProgressStore
	habits   *HabitStore
	ledger   *LedgerStore
	streaks  *StreakStore
	rewards  *RewardStore
	user     *model.User
}

func setupProgress(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	user, err := NewUserStore(db).Create("alice@example.com", "Alice", "x")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	return &fixture{
		db:       db,
		progress: NewProgressStore(db),
		habits:   NewHabitStore(db),
		ledger:   NewLedgerStore(db),
		streaks:  NewStreakStore(db),
		rewards:  NewRewardStore(db),
		user:     user,
	}
}

func (f *fixture) habit(t *testing.T, title string, xp int) *model.Habit {
	t.Helper()
	h, err := f.habits.Create(f.user.ID, title, "", "health", model.HabitGood, xp)
	if err != nil {
		t.Fatalf("create habit %q: %v", title, err)
	}
	return h
}

// completeN logs n distinct habit completions at the given time and returns
// the last result.
func (f *fixture) completeN(t *testing.T, n int, now time.Time) *CompletionResult {
	t.Helper()
	var res *CompletionResult
	for i := 0; i < n; i++ {
		h := f.habit(t, now.Format("20060102")+"-habit-"+string(rune('a'+i)), 10)
		var err error
		res, err = f.progress.CompleteHabit(context.Background(), f.user.ID, h.ID, now)
		if err != nil {
			t.Fatalf("complete habit %d: %v", i+1, err)
		}
	}
	return res
}

func seedStreak(t *testing.T, f *fixture, current, longest, tasks int, lastDate string) {
	t.Helper()
	_, err := f.db.Exec(
		`INSERT INTO streaks (user_id, current_streak, longest_streak, tasks_completed_today, last_activity_date)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET current_streak = excluded.current_streak,
		   longest_streak = excluded.longest_streak,
		   tasks_completed_today = excluded.tasks_completed_today,
		   last_activity_date = excluded.last_activity_date,
		   version = version + 1`,
		f.user.ID, current, longest, tasks, lastDate,
	)
	if err != nil {
		t.Fatalf("seed streak: %v", err)
	}
}

func TestCompleteHabitFirstEver(t *testing.T) {
	f := setupProgress(t)
	h := f.habit(t, "Drink water", 10)

	res, err := f.progress.CompleteHabit(context.Background(), f.user.ID, h.ID, day1)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if res.TodayCount != 1 {
		t.Errorf("today_count = %d, want 1", res.TodayCount)
	}
	if res.Streak.CurrentStreak != 0 {
		t.Errorf("current_streak = %d, want 0 (below daily goal)", res.Streak.CurrentStreak)
	}
	if res.Event.Amount != 10 {
		t.Errorf("event amount = %d, want 10", res.Event.Amount)
	}

	total, err := f.ledger.TotalXP(f.user.ID)
	if err != nil {
		t.Fatalf("total xp: %v", err)
	}
	if total != 10 {
		t.Errorf("total xp = %d, want 10", total)
	}
}

func TestCompleteThirdHabitExtendsStreak(t *testing.T) {
	f := setupProgress(t)
	// Streak 2, longest 5, yesterday satisfied; three
	// completions today push the streak to 3.
	seedStreak(t, f, 2, 5, 3, day1.Format(streak.DayFormat))

	res := f.completeN(t, 3, day2)
	if res.Streak.CurrentStreak != 3 {
		t.Errorf("current_streak = %d, want 3", res.Streak.CurrentStreak)
	}
	if res.Streak.LongestStreak != 5 {
		t.Errorf("longest_streak = %d, want 5", res.Streak.LongestStreak)
	}
	if res.Streak.TasksCompletedToday != 3 {
		t.Errorf("tasks_completed_today = %d, want 3", res.Streak.TasksCompletedToday)
	}
	if res.Streak.LastActivityDate != day2.Format(streak.DayFormat) {
		t.Errorf("last_activity_date = %q", res.Streak.LastActivityDate)
	}
}

func TestCompleteAfterUnmetDayResets(t *testing.T) {
	f := setupProgress(t)
	// Previous day unmet, only two completions today.
	seedStreak(t, f, 2, 5, 0, day1.Format(streak.DayFormat))

	res := f.completeN(t, 2, day2)
	if res.Streak.CurrentStreak != 0 {
		t.Errorf("current_streak = %d, want 0", res.Streak.CurrentStreak)
	}
	if res.Streak.TasksCompletedToday != 2 {
		t.Errorf("tasks_completed_today = %d, want 2", res.Streak.TasksCompletedToday)
	}
}

func TestCompleteTwiceSameDayRejected(t *testing.T) {
	f := setupProgress(t)
	h := f.habit(t, "Read", 10)

	if _, err := f.progress.CompleteHabit(context.Background(), f.user.ID, h.ID, day1); err != nil {
		t.Fatalf("first complete: %v", err)
	}
	_, err := f.progress.CompleteHabit(context.Background(), f.user.ID, h.ID, day1)
	if !errors.Is(err, ErrAlreadyCompleted) {
		t.Fatalf("err = %v, want ErrAlreadyCompleted", err)
	}

	// Still exactly one ledger event.
	events, err := f.ledger.ListByUser(f.user.ID, 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("expected 1 event, got %d", len(events))
	}
}

func TestCompleteSomeoneElsesHabit(t *testing.T) {
	f := setupProgress(t)
	other, err := NewUserStore(f.db).Create("bob@example.com", "Bob", "x")
	if err != nil {
		t.Fatalf("create bob: %v", err)
	}
	h, err := f.habits.Create(other.ID, "Bob's habit", "", "", model.HabitGood, 10)
	if err != nil {
		t.Fatalf("create habit: %v", err)
	}

	_, err = f.progress.CompleteHabit(context.Background(), f.user.ID, h.ID, day1)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCancelDecrementsStreakAndBalancesLedger(t *testing.T) {
	f := setupProgress(t)

	res := f.completeN(t, 3, day1)
	if res.Streak.CurrentStreak != 1 {
		t.Fatalf("current_streak = %d, want 1", res.Streak.CurrentStreak)
	}

	// Cancelling one of three drops the count below the goal
	// and takes the day's increment back.
	cancelled, err := f.progress.CancelCompletion(context.Background(), f.user.ID, *res.Event.HabitID, day1)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.TodayCount != 2 {
		t.Errorf("today_count = %d, want 2", cancelled.TodayCount)
	}
	if cancelled.Streak.CurrentStreak != 0 {
		t.Errorf("current_streak = %d, want 0", cancelled.Streak.CurrentStreak)
	}
	if cancelled.Reversal == nil || cancelled.Reversal.Amount != -10 {
		t.Errorf("reversal = %+v, want amount -10", cancelled.Reversal)
	}

	// Ledger is append-only: 3 completions + 1 reversal, summing to 20.
	events, err := f.ledger.ListByUser(f.user.ID, 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 4 {
		t.Errorf("expected 4 events, got %d", len(events))
	}
	total, _ := f.ledger.TotalXP(f.user.ID)
	if total != 20 {
		t.Errorf("total xp = %d, want 20", total)
	}
}

func TestCancelReversalCoversFallBackDay(t *testing.T) {
	f := setupProgress(t)
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	// Clocks fall back on 2026-11-01, so the local day runs 25 hours. A
	// completion in the repeated last hour must still fall inside the
	// reversal window.
	late := time.Date(2026, 11, 1, 23, 30, 0, 0, loc)

	h := f.habit(t, "Evening walk", 10)
	if _, err := f.progress.CompleteHabit(context.Background(), f.user.ID, h.ID, late); err != nil {
		t.Fatalf("complete: %v", err)
	}

	cancelled, err := f.progress.CancelCompletion(context.Background(), f.user.ID, h.ID, late)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Reversal == nil || cancelled.Reversal.Amount != -10 {
		t.Errorf("reversal = %+v, want amount -10", cancelled.Reversal)
	}
	total, err := f.ledger.TotalXP(f.user.ID)
	if err != nil {
		t.Fatalf("total xp: %v", err)
	}
	if total != 0 {
		t.Errorf("total xp = %d, want 0", total)
	}
}

func TestCancelWithoutCompletion(t *testing.T) {
	f := setupProgress(t)
	h := f.habit(t, "Meditate", 10)

	_, err := f.progress.CancelCompletion(context.Background(), f.user.ID, h.ID, day1)
	if !errors.Is(err, ErrNotCompletedToday) {
		t.Fatalf("err = %v, want ErrNotCompletedToday", err)
	}
}

func TestTasksCompletedTodayTracksRows(t *testing.T) {
	f := setupProgress(t)

	// Interleaved completions and cancellations: the stored count always
	// equals the surviving completion rows for the day.
	h1 := f.habit(t, "One", 5)
	h2 := f.habit(t, "Two", 5)
	h3 := f.habit(t, "Three", 5)
	ctx := context.Background()

	for _, h := range []*model.Habit{h1, h2, h3} {
		if _, err := f.progress.CompleteHabit(ctx, f.user.ID, h.ID, day1); err != nil {
			t.Fatalf("complete: %v", err)
		}
	}
	if _, err := f.progress.CancelCompletion(ctx, f.user.ID, h2.ID, day1); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := f.progress.CompleteHabit(ctx, f.user.ID, h2.ID, day1); err != nil {
		t.Fatalf("re-complete: %v", err)
	}

	rec, err := f.streaks.GetByUser(f.user.ID)
	if err != nil {
		t.Fatalf("get streak: %v", err)
	}
	rows, err := f.habits.CountForDay(f.user.ID, day1.Format(streak.DayFormat))
	if err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if rec.TasksCompletedToday != rows {
		t.Errorf("tasks_completed_today = %d, rows = %d", rec.TasksCompletedToday, rows)
	}
	if rows != 3 {
		t.Errorf("rows = %d, want 3", rows)
	}
}

func TestPurchaseRewardExactBalance(t *testing.T) {
	f := setupProgress(t)
	ctx := context.Background()

	// Earn exactly 100 XP.
	for i := 0; i < 10; i++ {
		h := f.habit(t, "Habit "+string(rune('a'+i)), 10)
		d := day1.AddDate(0, 0, i)
		if _, err := f.progress.CompleteHabit(ctx, f.user.ID, h.ID, d); err != nil {
			t.Fatalf("complete: %v", err)
		}
	}

	reward, err := f.rewards.Create("Dark Theme", "", 100, model.RewardTheme, true)
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}

	res, err := f.progress.PurchaseReward(ctx, f.user.ID, reward.ID, day2)
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if res.TotalXP != 0 {
		t.Errorf("total xp after purchase = %d, want 0", res.TotalXP)
	}
	if res.Event.Amount != -100 {
		t.Errorf("event amount = %d, want -100", res.Event.Amount)
	}

	owned, err := f.rewards.Owned(reward.ID, f.user.ID)
	if err != nil {
		t.Fatalf("owned: %v", err)
	}
	if !owned {
		t.Error("expected ownership recorded")
	}

	// Second purchase never succeeds and never double-deducts.
	_, err = f.progress.PurchaseReward(ctx, f.user.ID, reward.ID, day2)
	if !errors.Is(err, ErrAlreadyOwned) {
		t.Fatalf("err = %v, want ErrAlreadyOwned", err)
	}
	total, _ := f.ledger.TotalXP(f.user.ID)
	if total != 0 {
		t.Errorf("total xp = %d, want 0 (no double deduction)", total)
	}
}

func TestPurchaseInsufficientXP(t *testing.T) {
	f := setupProgress(t)
	reward, err := f.rewards.Create("Golden Skin", "", 500, model.RewardCosmetic, true)
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}

	_, err = f.progress.PurchaseReward(context.Background(), f.user.ID, reward.ID, day1)
	if !errors.Is(err, ErrInsufficientXP) {
		t.Fatalf("err = %v, want ErrInsufficientXP", err)
	}

	// Nothing was written.
	owned, _ := f.rewards.Owned(reward.ID, f.user.ID)
	if owned {
		t.Error("ownership must not be recorded on rejection")
	}
	events, _ := f.ledger.ListByUser(f.user.ID, 10)
	if len(events) != 0 {
		t.Errorf("expected 0 events, got %d", len(events))
	}
}

func TestPurchaseInactiveReward(t *testing.T) {
	f := setupProgress(t)
	reward, _ := f.rewards.Create("Retired", "", 10, model.RewardCosmetic, false)

	_, err := f.progress.PurchaseReward(context.Background(), f.user.ID, reward.ID, day1)
	if !errors.Is(err, ErrRewardInactive) {
		t.Fatalf("err = %v, want ErrRewardInactive", err)
	}
}

func TestFreezeTokenPurchaseGrantsToken(t *testing.T) {
	f := setupProgress(t)
	ctx := context.Background()

	f.completeN(t, 3, day1) // 30 XP
	reward, _ := f.rewards.Create("Streak Freeze", "", 30, model.RewardFreezeToken, true)

	if _, err := f.progress.PurchaseReward(ctx, f.user.ID, reward.ID, day1); err != nil {
		t.Fatalf("purchase: %v", err)
	}

	rec, err := f.streaks.GetByUser(f.user.ID)
	if err != nil {
		t.Fatalf("get streak: %v", err)
	}
	if rec.FreezeTokens != 1 {
		t.Errorf("freeze_tokens = %d, want 1", rec.FreezeTokens)
	}
}

func TestUseFreeze(t *testing.T) {
	f := setupProgress(t)
	ctx := context.Background()

	// One token, one completion today.
	f.completeN(t, 1, day2)
	seedStreak(t, f, 4, 4, 1, day2.Format(streak.DayFormat))
	if _, err := f.db.Exec(`UPDATE streaks SET freeze_tokens = 1 WHERE user_id = ?`, f.user.ID); err != nil {
		t.Fatalf("grant token: %v", err)
	}

	rec, err := f.progress.UseFreeze(ctx, f.user.ID, day2)
	if err != nil {
		t.Fatalf("use freeze: %v", err)
	}
	if rec.FreezeTokens != 0 {
		t.Errorf("freeze_tokens = %d, want 0", rec.FreezeTokens)
	}
	if rec.FreezeUsedDate != day2.Format(streak.DayFormat) {
		t.Errorf("freeze_used_date = %q", rec.FreezeUsedDate)
	}
	if rec.CurrentStreak != 5 {
		t.Errorf("current_streak = %d, want 5", rec.CurrentStreak)
	}
	if rec.TasksCompletedToday != streak.DailyGoal {
		t.Errorf("tasks_completed_today = %d, want %d", rec.TasksCompletedToday, streak.DailyGoal)
	}
}

func TestUseFreezeRejections(t *testing.T) {
	f := setupProgress(t)
	ctx := context.Background()

	// No tokens at all.
	_, err := f.progress.UseFreeze(ctx, f.user.ID, day2)
	if !errors.Is(err, ErrNoFreezeTokens) {
		t.Fatalf("err = %v, want ErrNoFreezeTokens", err)
	}

	// Day already satisfied by real completions.
	seedStreak(t, f, 1, 1, 3, day2.Format(streak.DayFormat))
	f.db.Exec(`UPDATE streaks SET freeze_tokens = 2 WHERE user_id = ?`, f.user.ID)
	_, err = f.progress.UseFreeze(ctx, f.user.ID, day2)
	if !errors.Is(err, ErrDayAlreadySatisfied) {
		t.Fatalf("err = %v, want ErrDayAlreadySatisfied", err)
	}

	// Already frozen.
	seedStreak(t, f, 1, 1, 1, day2.Format(streak.DayFormat))
	f.db.Exec(`UPDATE streaks SET freeze_used_date = ? WHERE user_id = ?`, day2.Format(streak.DayFormat), f.user.ID)
	_, err = f.progress.UseFreeze(ctx, f.user.ID, day2)
	if !errors.Is(err, ErrAlreadyFrozen) {
		t.Fatalf("err = %v, want ErrAlreadyFrozen", err)
	}
}

func TestCancelBlockedWhileFrozen(t *testing.T) {
	f := setupProgress(t)
	ctx := context.Background()

	// One real completion, then a freeze covering today.
	res := f.completeN(t, 1, day2)
	f.db.Exec(`UPDATE streaks SET freeze_tokens = 1 WHERE user_id = ?`, f.user.ID)
	if _, err := f.progress.UseFreeze(ctx, f.user.ID, day2); err != nil {
		t.Fatalf("use freeze: %v", err)
	}

	// tasks_completed_today is forced to 3; cancelling would undermine the
	// freeze, so it is rejected.
	_, err := f.progress.CancelCompletion(ctx, f.user.ID, *res.Event.HabitID, day2)
	if !errors.Is(err, ErrFrozenDay) {
		t.Fatalf("err = %v, want ErrFrozenDay", err)
	}
}

func TestCompletionSkipsStreakWhileFrozen(t *testing.T) {
	f := setupProgress(t)
	ctx := context.Background()

	seedStreak(t, f, 2, 2, 0, day1.Format(streak.DayFormat))
	f.db.Exec(`UPDATE streaks SET freeze_tokens = 1 WHERE user_id = ?`, f.user.ID)
	if _, err := f.progress.UseFreeze(ctx, f.user.ID, day2); err != nil {
		t.Fatalf("use freeze: %v", err)
	}
	frozen, _ := f.streaks.GetByUser(f.user.ID)

	// Completions on a frozen day still earn XP but leave the streak alone.
	res := f.completeN(t, 1, day2)
	if res.Streak.CurrentStreak != frozen.CurrentStreak {
		t.Errorf("current_streak = %d, want %d (freeze pre-empts accounting)", res.Streak.CurrentStreak, frozen.CurrentStreak)
	}
	total, _ := f.ledger.TotalXP(f.user.ID)
	if total != 10 {
		t.Errorf("total xp = %d, want 10", total)
	}
}

func TestBadHabitXPModes(t *testing.T) {
	f := setupProgress(t)
	ctx := context.Background()

	bad, err := f.habits.Create(f.user.ID, "Doomscrolling", "", "focus", model.HabitBad, 15)
	if err != nil {
		t.Fatalf("create habit: %v", err)
	}

	// Default: avoiding a bad habit earns XP, same as the reference.
	res, err := f.progress.CompleteHabit(ctx, f.user.ID, bad.ID, day1)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if res.Event.Amount != 15 {
		t.Errorf("amount = %d, want 15", res.Event.Amount)
	}

	// Penalize mode flips the sign.
	f.progress.PenalizeBadHabits = true
	res, err = f.progress.CompleteHabit(ctx, f.user.ID, bad.ID, day2)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if res.Event.Amount != -15 {
		t.Errorf("amount = %d, want -15", res.Event.Amount)
	}
}

func TestStreakVersionBumpsOnWrite(t *testing.T) {
	f := setupProgress(t)
	h := f.habit(t, "Stretch", 10)

	seedStreak(t, f, 1, 1, 3, day1.Format(streak.DayFormat))
	if _, err := f.progress.CompleteHabit(context.Background(), f.user.ID, h.ID, day2); err != nil {
		t.Fatalf("complete: %v", err)
	}

	rec, err := f.streaks.GetByUser(f.user.ID)
	if err != nil {
		t.Fatalf("get streak: %v", err)
	}
	if rec.Version < 2 {
		t.Errorf("version = %d, want bumped", rec.Version)
	}
}
