package model

import "time"

// RewardKind tells the purchase flow whether buying the reward has a side
// effect beyond ownership. Freeze tokens grant a streak freeze on purchase.
type RewardKind string

const (
	RewardCosmetic    RewardKind = "cosmetic"
	RewardTheme       RewardKind = "theme"
	RewardFreezeToken RewardKind = "freeze_token"
)

type Reward struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Cost        int        `json:"cost"`
	Kind        RewardKind `json:"kind"`
	Active      bool       `json:"active"`
	CreatedAt   time.Time  `json:"created_at"`
}

// RewardOwnership links a user to a reward they bought. At most one row
// exists per (reward, user); XPEventID points at the ledger entry that paid
// for it.
type RewardOwnership struct {
	ID         int64     `json:"id"`
	RewardID   int64     `json:"reward_id"`
	UserID     int64     `json:"user_id"`
	XPEventID  int64     `json:"xp_event_id"`
	AcquiredAt time.Time `json:"acquired_at"`
}
