package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dukerupert/emberday/internal/auth"
	"github.com/dukerupert/emberday/internal/model"
	"github.com/dukerupert/emberday/internal/store"
)

const defaultEventLimit = 50

type StatsHandler struct {
	ledger *store.LedgerStore
	stats  *store.StatsStore
	logger *slog.Logger
	loc    *time.Location
}

func NewStatsHandler(ls *store.LedgerStore, ss *store.StatsStore, logger *slog.Logger, loc *time.Location) *StatsHandler {
	return &StatsHandler{
		ledger: ls,
		stats:  ss,
		logger: logger.With("component", "stats"),
		loc:    loc,
	}
}

// Balance returns the caller's total and today's XP.
func (h *StatsHandler) Balance(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	bal, err := h.ledger.Balance(userID, time.Now().In(h.loc))
	if err != nil {
		h.logger.Error("get balance", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get balance")
		return
	}
	writeJSON(w, http.StatusOK, bal)
}

// Events returns the caller's recent ledger entries, newest first.
func (h *StatsHandler) Events(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	limit := defaultEventLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > 500 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	events, err := h.ledger.ListByUser(userID, limit)
	if err != nil {
		h.logger.Error("list events", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	if events == nil {
		events = []model.XPEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

// Weekly returns XP per day for the trailing 7 days.
func (h *StatsHandler) Weekly(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	week, err := h.stats.WeeklyXP(userID, time.Now().In(h.loc))
	if err != nil {
		h.logger.Error("weekly stats", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get weekly stats")
		return
	}
	writeJSON(w, http.StatusOK, week)
}

// Categories returns XP summed per habit category.
func (h *StatsHandler) Categories(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	stats, err := h.stats.CategoryXP(userID)
	if err != nil {
		h.logger.Error("category stats", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get category stats")
		return
	}
	if stats == nil {
		stats = []model.CategoryXP{}
	}
	writeJSON(w, http.StatusOK, stats)
}

// Hourly returns completion counts bucketed by hour of day.
func (h *StatsHandler) Hourly(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	stats, err := h.stats.HourlyCompletions(userID, h.loc)
	if err != nil {
		h.logger.Error("hourly stats", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get hourly stats")
		return
	}
	if stats == nil {
		stats = []model.HourlyCompletions{}
	}
	writeJSON(w, http.StatusOK, stats)
}
