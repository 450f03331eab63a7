// Package views declares the named read views the API serves and, for each
// mutating operation, the set of views it invalidates. Clients subscribe to
// the WebSocket feed and refetch a view when its name appears in an
// invalidation message. Keeping the mapping in one table (instead of literals
// scattered through handlers) is what makes it auditable.
package views

// View names a cacheable read view.
type View string

const (
	TotalXP       View = "total_xp"
	TodayXP       View = "today_xp"
	Streak        View = "streak"
	WeeklyStats   View = "weekly_stats"
	CategoryStats View = "category_stats"
	HourlyStats   View = "hourly_stats"
	HabitList     View = "habit_list"
	RewardList    View = "reward_list"
	OwnedRewards  View = "owned_rewards"
)

// Operation names a mutating flow.
type Operation string

const (
	OpHabitCompleted  Operation = "habit_completed"
	OpHabitCancelled  Operation = "habit_cancelled"
	OpHabitMutated    Operation = "habit_mutated"
	OpRewardPurchased Operation = "reward_purchased"
	OpRewardMutated   Operation = "reward_mutated"
	OpFreezeUsed      Operation = "freeze_used"
)

var affected = map[Operation][]View{
	OpHabitCompleted:  {TotalXP, TodayXP, Streak, WeeklyStats, CategoryStats, HourlyStats, HabitList},
	OpHabitCancelled:  {TotalXP, TodayXP, Streak, WeeklyStats, CategoryStats, HourlyStats, HabitList},
	OpHabitMutated:    {HabitList, CategoryStats},
	OpRewardPurchased: {TotalXP, TodayXP, RewardList, OwnedRewards, Streak},
	OpRewardMutated:   {RewardList},
	OpFreezeUsed:      {Streak},
}

// Affected returns the views invalidated by op. The returned slice must not
// be mutated.
func Affected(op Operation) []View {
	return affected[op]
}

// Names converts a view list to plain strings for wire encoding.
func Names(vs []View) []string {
	names := make([]string, len(vs))
	for i, v := range vs {
		names[i] = string(v)
	}
	return names
}
