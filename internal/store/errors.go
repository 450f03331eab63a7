package store

import "errors"

// Sentinel errors surfaced to handlers. Everything else coming out of a
// store is a persistence failure.
var (
	ErrNotFound            = errors.New("not found")
	ErrAlreadyCompleted    = errors.New("habit already completed today")
	ErrNotCompletedToday   = errors.New("habit not completed today")
	ErrFrozenDay           = errors.New("cannot cancel while a freeze covers today")
	ErrInsufficientXP      = errors.New("insufficient points")
	ErrAlreadyOwned        = errors.New("reward already owned")
	ErrRewardInactive      = errors.New("reward is not active")
	ErrNoFreezeTokens      = errors.New("no freeze tokens")
	ErrAlreadyFrozen       = errors.New("a freeze already covers today")
	ErrDayAlreadySatisfied = errors.New("today already counts toward the streak")
	ErrVersionConflict     = errors.New("streak record changed concurrently")
)
