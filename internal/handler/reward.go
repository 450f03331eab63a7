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
	"github.com/dukerupert/emberday/internal/views"
	"github.com/dukerupert/emberday/internal/websocket"
)

type RewardHandler struct {
	rewardStore *store.RewardStore
	progress    *store.ProgressStore
	hub         *websocket.Hub
	logger      *slog.Logger
}

func NewRewardHandler(rs *store.RewardStore, ps *store.ProgressStore, hub *websocket.Hub, logger *slog.Logger) *RewardHandler {
	return &RewardHandler{
		rewardStore: rs,
		progress:    ps,
		hub:         hub,
		logger:      logger.With("component", "reward"),
	}
}

func (h *RewardHandler) notify(userID int64, op views.Operation) {
	if h.hub != nil {
		h.hub.Notify(userID, websocket.NewInvalidation(string(op), views.Names(views.Affected(op))))
	}
}

type rewardRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Cost        int    `json:"cost"`
	Kind        string `json:"kind"`
	Active      *bool  `json:"active"`
}

func (r *rewardRequest) validate() string {
	r.Title = strings.TrimSpace(r.Title)
	if r.Title == "" {
		return "title is required"
	}
	if r.Cost <= 0 {
		return "cost must be positive"
	}
	switch model.RewardKind(r.Kind) {
	case model.RewardCosmetic, model.RewardTheme, model.RewardFreezeToken:
		return ""
	default:
		return "kind must be cosmetic, theme, or freeze_token"
	}
}

func (h *RewardHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req rewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}

	reward, err := h.rewardStore.Create(req.Title, req.Description, req.Cost, model.RewardKind(req.Kind), active)
	if err != nil {
		h.logger.Error("create reward", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create reward")
		return
	}

	h.notify(userID, views.OpRewardMutated)
	writeJSON(w, http.StatusCreated, reward)
}

func (h *RewardHandler) List(w http.ResponseWriter, r *http.Request) {
	rewards, err := h.rewardStore.List()
	if err != nil {
		h.logger.Error("list rewards", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list rewards")
		return
	}
	if rewards == nil {
		rewards = []model.Reward{}
	}
	writeJSON(w, http.StatusOK, rewards)
}

func (h *RewardHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	existing, err := h.rewardStore.GetByID(id)
	if err != nil {
		h.logger.Error("get reward", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get reward")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "reward not found")
		return
	}

	var req rewardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	active := existing.Active
	if req.Active != nil {
		active = *req.Active
	}

	reward, err := h.rewardStore.Update(id, req.Title, req.Description, req.Cost, model.RewardKind(req.Kind), active)
	if err != nil {
		h.logger.Error("update reward", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update reward")
		return
	}

	h.notify(userID, views.OpRewardMutated)
	writeJSON(w, http.StatusOK, reward)
}

func (h *RewardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	existing, err := h.rewardStore.GetByID(id)
	if err != nil {
		h.logger.Error("get reward", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get reward")
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "reward not found")
		return
	}

	if err := h.rewardStore.Delete(id); err != nil {
		h.logger.Error("delete reward", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete reward")
		return
	}

	h.notify(userID, views.OpRewardMutated)
	w.WriteHeader(http.StatusNoContent)
}

// Purchase spends XP on a reward. Ownership, the ledger debit, and any
// freeze-token grant land atomically in the store.
func (h *RewardHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	res, err := h.progress.PurchaseReward(r.Context(), userID, id, time.Now())
	if err != nil {
		if !isClientError(err) {
			h.logger.Error("purchase reward", "error", err, "reward_id", id)
		}
		writeStoreError(w, err)
		return
	}

	h.notify(userID, views.OpRewardPurchased)
	writeJSON(w, http.StatusCreated, res)
}

// Owned lists the rewards the caller has purchased.
func (h *RewardHandler) Owned(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	rewards, err := h.rewardStore.ListOwnedByUser(userID)
	if err != nil {
		h.logger.Error("list owned rewards", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list owned rewards")
		return
	}
	if rewards == nil {
		rewards = []model.Reward{}
	}
	writeJSON(w, http.StatusOK, rewards)
}
