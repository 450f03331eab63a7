package store

import (
	"errors"
	"testing"
)

func TestStreakGetByUserMissing(t *testing.T) {
	db := setupDB(t)
	user := createUser(t, db, "nostreak@example.com")

	rec, err := NewStreakStore(db).GetByUser(user.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec != nil {
		t.Errorf("expected nil for user with no record, got %+v", rec)
	}
}

func TestStreakLazyCreate(t *testing.T) {
	db := setupDB(t)
	user := createUser(t, db, "lazy@example.com")

	rec, err := getStreakForUpdate(db, user.ID)
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if rec.CurrentStreak != 0 || rec.LastActivityDate != "" || rec.Version != 1 {
		t.Errorf("unexpected zero record: %+v", rec)
	}

	again, err := getStreakForUpdate(db, user.ID)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if again.ID != rec.ID {
		t.Errorf("second fetch created a new record: %d vs %d", again.ID, rec.ID)
	}
}

func TestStreakGuardedUpdateConflict(t *testing.T) {
	db := setupDB(t)
	user := createUser(t, db, "guard@example.com")

	rec, err := getStreakForUpdate(db, user.ID)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	// A concurrent writer lands first.
	other := *rec
	other.CurrentStreak = 1
	if err := updateStreakGuarded(db, &other); err != nil {
		t.Fatalf("first write: %v", err)
	}

	// The stale record's write must be rejected, not silently applied.
	rec.CurrentStreak = 9
	err = updateStreakGuarded(db, rec)
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("err = %v, want ErrVersionConflict", err)
	}

	got, err := NewStreakStore(db).GetByUser(user.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.CurrentStreak != 1 {
		t.Errorf("current_streak = %d, want 1 (first writer wins)", got.CurrentStreak)
	}
	if got.Version != other.Version {
		t.Errorf("version = %d, want %d", got.Version, other.Version)
	}
}

func TestAddFreezeToken(t *testing.T) {
	db := setupDB(t)
	user := createUser(t, db, "token@example.com")

	// Works even before any streak record exists.
	if err := addFreezeToken(db, user.ID); err != nil {
		t.Fatalf("first grant: %v", err)
	}
	if err := addFreezeToken(db, user.ID); err != nil {
		t.Fatalf("second grant: %v", err)
	}

	rec, err := NewStreakStore(db).GetByUser(user.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.FreezeTokens != 2 {
		t.Errorf("freeze_tokens = %d, want 2", rec.FreezeTokens)
	}
}
