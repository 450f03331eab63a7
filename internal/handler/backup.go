package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/emberday/internal/backup"
)

type BackupHandler struct {
	manager *backup.Manager
	logger  *slog.Logger
}

func NewBackupHandler(m *backup.Manager, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{manager: m, logger: logger.With("component", "backup")}
}

func (h *BackupHandler) Status(w http.ResponseWriter, r *http.Request) {
	if h.manager == nil || !h.manager.Enabled() {
		writeJSON(w, http.StatusOK, backup.Status{State: backup.StateDisabled})
		return
	}
	writeJSON(w, http.StatusOK, h.manager.Status())
}

// Run triggers an immediate backup.
func (h *BackupHandler) Run(w http.ResponseWriter, r *http.Request) {
	if h.manager == nil || !h.manager.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "backups not configured")
		return
	}

	key, err := h.manager.Run(r.Context())
	if err != nil {
		h.logger.Error("manual backup", "error", err)
		writeError(w, http.StatusInternalServerError, "backup failed")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"key": key})
}
