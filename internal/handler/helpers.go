package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/dukerupert/emberday/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func parseIDParam(r *http.Request) (int64, error) {
	idStr := r.PathValue("id")
	return strconv.ParseInt(idStr, 10, 64)
}

// isClientError reports whether err is one of the store's sentinel errors,
// i.e. a rejected request rather than a server fault.
func isClientError(err error) bool {
	for _, sentinel := range []error{
		store.ErrNotFound, store.ErrAlreadyCompleted, store.ErrNotCompletedToday,
		store.ErrFrozenDay, store.ErrInsufficientXP, store.ErrAlreadyOwned,
		store.ErrRewardInactive, store.ErrNoFreezeTokens, store.ErrAlreadyFrozen,
		store.ErrDayAlreadySatisfied,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// writeStoreError maps the store's sentinel errors onto HTTP statuses.
// Unknown errors become opaque 500s; the caller logs the detail.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrAlreadyCompleted):
		writeError(w, http.StatusConflict, "habit already completed today")
	case errors.Is(err, store.ErrNotCompletedToday):
		writeError(w, http.StatusConflict, "habit not completed today")
	case errors.Is(err, store.ErrFrozenDay):
		writeError(w, http.StatusConflict, "today is covered by a streak freeze")
	case errors.Is(err, store.ErrInsufficientXP):
		writeError(w, http.StatusBadRequest, "not enough XP")
	case errors.Is(err, store.ErrAlreadyOwned):
		writeError(w, http.StatusConflict, "reward already owned")
	case errors.Is(err, store.ErrRewardInactive):
		writeError(w, http.StatusConflict, "reward is not available")
	case errors.Is(err, store.ErrNoFreezeTokens):
		writeError(w, http.StatusBadRequest, "no freeze tokens")
	case errors.Is(err, store.ErrAlreadyFrozen):
		writeError(w, http.StatusConflict, "today is already frozen")
	case errors.Is(err, store.ErrDayAlreadySatisfied):
		writeError(w, http.StatusConflict, "daily goal already met")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
