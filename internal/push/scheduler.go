package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/dukerupert/emberday/internal/store"
	"github.com/dukerupert/emberday/internal/streak"
)

// ReminderHour is the local hour after which streak-risk reminders go out.
const ReminderHour = 18

// Scheduler watches for streaks at risk and nudges their owners in the
// evening. A streak is at risk when the user has an active run, today's
// completion count is still below the goal, and no freeze covers the day.
type Scheduler struct {
	mu       sync.RWMutex
	service  *Service
	push     *store.PushStore
	streaks  *store.StreakStore
	habits   *store.HabitStore
	logger   *slog.Logger
	loc      *time.Location
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}

	// reminded tracks which users were nudged on which day, so each user
	// gets at most one reminder per day. In-memory only; a restart may
	// re-send, which is harmless.
	reminded map[string]bool
}

// NewScheduler creates a streak reminder scheduler.
func NewScheduler(svc *Service, pushStore *store.PushStore, streakStore *store.StreakStore, habitStore *store.HabitStore, logger *slog.Logger, loc *time.Location) *Scheduler {
	return &Scheduler{
		service:  svc,
		push:     pushStore,
		streaks:  streakStore,
		habits:   habitStore,
		logger:   logger.With("component", "push"),
		loc:      loc,
		interval: 15 * time.Minute,
		reminded: make(map[string]bool),
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.tick(time.Now()); err != nil {
					s.logger.Error("reminder tick", "error", err)
				}
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// tick scans every streak once and sends the due reminders. Send failures
// are collected so one bad subscription never hides the rest.
func (s *Scheduler) tick(now time.Time) error {
	local := now.In(s.loc)
	if local.Hour() < ReminderHour {
		return nil
	}
	day := local.Format(streak.DayFormat)

	records, err := s.streaks.ListAll()
	if err != nil {
		return fmt.Errorf("list streaks: %w", err)
	}

	var errs error
	for _, rec := range records {
		if rec.CurrentStreak == 0 || streak.Frozen(rec, day) {
			continue
		}
		key := fmt.Sprintf("%d:%s", rec.UserID, day)
		s.mu.RLock()
		sent := s.reminded[key]
		s.mu.RUnlock()
		if sent {
			continue
		}

		count, err := s.habits.CountForDay(rec.UserID, day)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("count for user %d: %w", rec.UserID, err))
			continue
		}
		if count >= streak.DailyGoal {
			continue
		}

		errs = multierr.Append(errs, s.remind(rec.UserID, rec.CurrentStreak, streak.DailyGoal-count))

		s.mu.Lock()
		s.reminded[key] = true
		s.mu.Unlock()
	}

	s.pruneReminded(day)
	return errs
}

func (s *Scheduler) remind(userID int64, current, remaining int) error {
	subs, err := s.push.ListByUser(userID)
	if err != nil {
		return fmt.Errorf("list subscriptions for user %d: %w", userID, err)
	}

	body := fmt.Sprintf("Complete %d more habits today to keep your %d-day streak alive.", remaining, current)
	if remaining == 1 {
		body = fmt.Sprintf("One more habit keeps your %d-day streak alive.", current)
	}
	payload := Payload{
		Title: "Streak at risk",
		Body:  body,
		URL:   "/today",
		Tag:   "streak-risk",
	}

	var errs error
	for i := range subs {
		if err := s.service.Send(&subs[i], payload); err != nil {
			if errors.Is(err, ErrExpired) {
				if derr := s.push.DeleteByEndpoint(subs[i].Endpoint); derr != nil {
					errs = multierr.Append(errs, derr)
				}
				continue
			}
			errs = multierr.Append(errs, fmt.Errorf("send to user %d: %w", userID, err))
		}
	}
	return errs
}

// pruneReminded drops entries from previous days.
func (s *Scheduler) pruneReminded(day string) {
	suffix := ":" + day
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.reminded {
		if len(key) < len(suffix) || key[len(key)-len(suffix):] != suffix {
			delete(s.reminded, key)
		}
	}
}
