package handler

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/dukerupert/emberday/internal/store"
)

func TestWriteStoreErrorStatuses(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{store.ErrNotFound, 404},
		{store.ErrAlreadyCompleted, 409},
		{store.ErrNotCompletedToday, 409},
		{store.ErrFrozenDay, 409},
		{store.ErrInsufficientXP, 400},
		{store.ErrAlreadyOwned, 409},
		{store.ErrRewardInactive, 409},
		{store.ErrNoFreezeTokens, 400},
		{store.ErrAlreadyFrozen, 409},
		{store.ErrDayAlreadySatisfied, 409},
		{errors.New("disk on fire"), 500},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		writeStoreError(rec, tc.err)
		if rec.Code != tc.status {
			t.Errorf("writeStoreError(%v) = %d, want %d", tc.err, rec.Code, tc.status)
		}
	}
}

func TestIsClientError(t *testing.T) {
	if !isClientError(store.ErrAlreadyCompleted) {
		t.Error("sentinel must be a client error")
	}
	if isClientError(errors.New("db closed")) {
		t.Error("unknown errors are server faults")
	}
}
