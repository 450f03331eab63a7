package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/emberday/internal/auth"
	"github.com/dukerupert/emberday/internal/store"
	"github.com/dukerupert/emberday/internal/streak"
	"github.com/dukerupert/emberday/internal/views"
	"github.com/dukerupert/emberday/internal/websocket"
)

type StreakHandler struct {
	streakStore *store.StreakStore
	progress    *store.ProgressStore
	hub         *websocket.Hub
	logger      *slog.Logger
	loc         *time.Location
}

func NewStreakHandler(ss *store.StreakStore, ps *store.ProgressStore, hub *websocket.Hub, logger *slog.Logger, loc *time.Location) *StreakHandler {
	return &StreakHandler{
		streakStore: ss,
		progress:    ps,
		hub:         hub,
		logger:      logger.With("component", "streak"),
		loc:         loc,
	}
}

// Get returns the caller's streak record. Users who have never completed a
// habit get a zero record rather than a 404.
func (h *StreakHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	rec, err := h.streakStore.GetByUser(userID)
	if err != nil {
		h.logger.Error("get streak", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get streak")
		return
	}
	if rec == nil {
		zero := streak.NewRecord(userID, "", 0)
		writeJSON(w, http.StatusOK, &zero)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Freeze spends a freeze token to mark today as satisfied.
func (h *StreakHandler) Freeze(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	rec, err := h.progress.UseFreeze(r.Context(), userID, time.Now().In(h.loc))
	if err != nil {
		if !isClientError(err) {
			h.logger.Error("use freeze", "error", err)
		}
		writeStoreError(w, err)
		return
	}

	if h.hub != nil {
		op := views.OpFreezeUsed
		h.hub.Notify(userID, websocket.NewInvalidation(string(op), views.Names(views.Affected(op))))
	}
	writeJSON(w, http.StatusOK, rec)
}
