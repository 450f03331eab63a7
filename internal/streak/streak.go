package streak

import (
	"time"

	"github.com/dukerupert/emberday/internal/model"
)

// DailyGoal is the number of habit completions that makes a day count
// toward the streak.
const DailyGoal = 3

// DayFormat is the calendar-date form used everywhere a date is stored or
// compared (no time component).
const DayFormat = "2006-01-02"

// DayOf returns t's calendar date in the given location as YYYY-MM-DD.
func DayOf(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DayFormat)
}

// NewRecord builds the lazily-created streak record for a user whose first
// streak-affecting action happened today with the given completion count.
func NewRecord(userID int64, today string, count int) model.Streak {
	streak := 0
	if count >= DailyGoal {
		streak = 1
	}
	return model.Streak{
		UserID:              userID,
		CurrentStreak:       streak,
		LongestStreak:       streak,
		TasksCompletedToday: count,
		LastActivityDate:    today,
	}
}

// Frozen reports whether a freeze token covers today. A frozen day counts
// toward the streak regardless of the real completion count, so callers must
// skip ApplyDailyCount while a freeze is active.
func Frozen(rec model.Streak, today string) bool {
	return rec.FreezeUsedDate == today
}

// ApplyDailyCount rolls the streak record forward given the authoritative
// count of completions for today. It is called after every completion and
// every cancellation.
//
// On the first update of a new day: if the last recorded day met the goal,
// meeting it again today extends the streak; missing it leaves the counter
// alone (the reset lands on the next evaluation, which will find the prior
// day unsatisfied). If the last recorded day missed the goal, the streak
// restarts at 1 when today meets it, else drops to 0.
//
// Within the same day only threshold crossings matter: crossing upward
// extends the streak, and an undo that drops the count back below the goal
// takes the increment back (floored at 0). LongestStreak never decreases.
func ApplyDailyCount(rec model.Streak, today string, count int) model.Streak {
	if rec.LastActivityDate != today {
		prevMet := rec.TasksCompletedToday >= DailyGoal && rec.LastActivityDate != ""
		met := count >= DailyGoal
		switch {
		case prevMet && met:
			rec.CurrentStreak++
		case prevMet && !met:
			// Not reset here; today has simply not qualified yet.
		case met:
			rec.CurrentStreak = 1
		default:
			rec.CurrentStreak = 0
		}
		rec.LastActivityDate = today
		rec.TasksCompletedToday = count
	} else {
		wasMet := rec.TasksCompletedToday >= DailyGoal
		nowMet := count >= DailyGoal
		switch {
		case !wasMet && nowMet:
			rec.CurrentStreak++
		case wasMet && !nowMet:
			if rec.CurrentStreak > 0 {
				rec.CurrentStreak--
			}
		}
		rec.TasksCompletedToday = count
	}

	if rec.CurrentStreak > rec.LongestStreak {
		rec.LongestStreak = rec.CurrentStreak
	}
	return rec
}

// ApplyFreeze consumes one freeze token to mark today as satisfied. The
// count is forced to the goal so later same-day comparisons see the day as
// met, and the activity date moves to today to anchor that count. Callers
// must have verified FreezeTokens > 0 and that today is not already
// satisfied or frozen.
func ApplyFreeze(rec model.Streak, today string) model.Streak {
	rec.FreezeTokens--
	rec.FreezeUsedDate = today
	rec.CurrentStreak++
	if rec.CurrentStreak > rec.LongestStreak {
		rec.LongestStreak = rec.CurrentStreak
	}
	rec.TasksCompletedToday = DailyGoal
	rec.LastActivityDate = today
	return rec
}
