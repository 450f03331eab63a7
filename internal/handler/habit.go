package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/emberday/internal/auth"
	"github.com/dukerupert/emberday/internal/model"
	"github.com/dukerupert/emberday/internal/store"
	"github.com/dukerupert/emberday/internal/streak"
	"github.com/dukerupert/emberday/internal/views"
	"github.com/dukerupert/emberday/internal/websocket"
)

type HabitHandler struct {
	habitStore *store.HabitStore
	progress   *store.ProgressStore
	hub        *websocket.Hub
	logger     *slog.Logger
	loc        *time.Location
}

func NewHabitHandler(hs *store.HabitStore, ps *store.ProgressStore, hub *websocket.Hub, logger *slog.Logger, loc *time.Location) *HabitHandler {
	return &HabitHandler{
		habitStore: hs,
		progress:   ps,
		hub:        hub,
		logger:     logger.With("component", "habit"),
		loc:        loc,
	}
}

func (h *HabitHandler) notify(userID int64, op views.Operation) {
	if h.hub != nil {
		h.hub.Notify(userID, websocket.NewInvalidation(string(op), views.Names(views.Affected(op))))
	}
}

type habitRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Kind        string `json:"kind"`
	XPValue     int    `json:"xp_value"`
}

func (r *habitRequest) validate() string {
	r.Title = strings.TrimSpace(r.Title)
	r.Category = strings.TrimSpace(r.Category)
	if r.Title == "" {
		return "title is required"
	}
	if r.Kind == "" {
		r.Kind = string(model.HabitGood)
	}
	if r.Kind != string(model.HabitGood) && r.Kind != string(model.HabitBad) {
		return "kind must be good or bad"
	}
	if r.XPValue <= 0 {
		return "xp_value must be positive"
	}
	return ""
}

func (h *HabitHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req habitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	habit, err := h.habitStore.Create(userID, req.Title, req.Description, req.Category, model.HabitKind(req.Kind), req.XPValue)
	if err != nil {
		h.logger.Error("create habit", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create habit")
		return
	}

	h.notify(userID, views.OpHabitMutated)
	writeJSON(w, http.StatusCreated, habit)
}

func (h *HabitHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	habits, err := h.habitStore.ListByUser(userID)
	if err != nil {
		h.logger.Error("list habits", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list habits")
		return
	}
	if habits == nil {
		habits = []model.Habit{}
	}
	writeJSON(w, http.StatusOK, habits)
}

// Today lists the user's habits annotated with today's completion status.
func (h *HabitHandler) Today(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	day := streak.DayOf(time.Now(), h.loc)

	habits, err := h.habitStore.ListWithStatus(userID, day)
	if err != nil {
		h.logger.Error("list today", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list habits")
		return
	}
	if habits == nil {
		habits = []model.HabitWithStatus{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"day":    day,
		"habits": habits,
	})
}

// getOwned fetches a habit and enforces that the caller owns it. Popular
// habits are completable by anyone but editable only by their owner.
func (h *HabitHandler) getOwned(w http.ResponseWriter, r *http.Request) *model.Habit {
	userID := auth.UserID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return nil
	}

	habit, err := h.habitStore.GetByID(id)
	if err != nil {
		h.logger.Error("get habit", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get habit")
		return nil
	}
	if habit == nil || habit.UserID != userID {
		writeError(w, http.StatusNotFound, "habit not found")
		return nil
	}
	return habit
}

func (h *HabitHandler) Update(w http.ResponseWriter, r *http.Request) {
	existing := h.getOwned(w, r)
	if existing == nil {
		return
	}

	var req habitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	habit, err := h.habitStore.Update(existing.ID, req.Title, req.Description, req.Category, model.HabitKind(req.Kind), req.XPValue)
	if err != nil {
		h.logger.Error("update habit", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update habit")
		return
	}

	h.notify(existing.UserID, views.OpHabitMutated)
	writeJSON(w, http.StatusOK, habit)
}

func (h *HabitHandler) Delete(w http.ResponseWriter, r *http.Request) {
	existing := h.getOwned(w, r)
	if existing == nil {
		return
	}

	if err := h.habitStore.Delete(existing.ID); err != nil {
		h.logger.Error("delete habit", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete habit")
		return
	}

	h.notify(existing.UserID, views.OpHabitMutated)
	w.WriteHeader(http.StatusNoContent)
}

// Complete marks a habit done for today. The store handles the XP event,
// the streak transition, and the double-submit guard in one transaction.
func (h *HabitHandler) Complete(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	res, err := h.progress.CompleteHabit(r.Context(), userID, id, time.Now().In(h.loc))
	if err != nil {
		if !isClientError(err) {
			h.logger.Error("complete habit", "error", err, "habit_id", id)
		}
		writeStoreError(w, err)
		return
	}

	h.notify(userID, views.OpHabitCompleted)
	writeJSON(w, http.StatusCreated, res)
}

// Cancel undoes today's completion of a habit.
func (h *HabitHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	res, err := h.progress.CancelCompletion(r.Context(), userID, id, time.Now().In(h.loc))
	if err != nil {
		if !isClientError(err) {
			h.logger.Error("cancel completion", "error", err, "habit_id", id)
		}
		writeStoreError(w, err)
		return
	}

	h.notify(userID, views.OpHabitCancelled)
	writeJSON(w, http.StatusOK, res)
}
