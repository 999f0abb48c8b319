package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/ender-local/internal/models"
	"github.com/isdelr/ender-local/internal/services"
	"github.com/rs/zerolog/log"
)

// BackupHandler handles HTTP requests related to backups.
type BackupHandler struct {
	service services.BackupServiceProvider
}

// NewBackupHandler creates a new BackupHandler.
func NewBackupHandler(service services.BackupServiceProvider) *BackupHandler {
	return &BackupHandler{service: service}
}

// CreateBackupPayload is the expected JSON body for creating a backup. An
// empty name is replaced by a timestamped one.
type CreateBackupPayload struct {
	Name string `json:"name"`
}

// GetAllForServer handles the request to get all backups for a server.
func (h *BackupHandler) GetAllForServer(w http.ResponseWriter, r *http.Request) {
	backups, err := h.service.GetBackupsForServer(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err, "Failed to retrieve backups")
		return
	}
	writeJSON(w, http.StatusOK, backups)
}

// Create handles the request to create a new backup.
func (h *BackupHandler) Create(w http.ResponseWriter, r *http.Request) {
	serverID := chi.URLParam(r, "id")
	var payload CreateBackupPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	backup, err := h.service.CreateBackup(serverID, payload.Name)
	if err != nil {
		writeError(w, err, "Failed to create backup")
		return
	}
	writeJSON(w, http.StatusCreated, backup)
}

// lookup fetches the backup named in the URL and checks that it belongs to
// the server in the URL.
func (h *BackupHandler) lookup(w http.ResponseWriter, r *http.Request) (models.Backup, bool) {
	backup, err := h.service.GetBackupByID(chi.URLParam(r, "backupId"))
	if err != nil {
		writeError(w, err, "Failed to retrieve backup")
		return models.Backup{}, false
	}
	if backup.ServerID != chi.URLParam(r, "id") {
		http.Error(w, "Backup not found", http.StatusNotFound)
		return models.Backup{}, false
	}
	return backup, true
}

// Delete handles the request to delete a backup.
func (h *BackupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	backup, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteBackup(backup.ID); err != nil {
		writeError(w, err, "Failed to delete backup")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Restore handles the request to restore a backup into its stopped server.
func (h *BackupHandler) Restore(w http.ResponseWriter, r *http.Request) {
	backup, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if err := h.service.RestoreBackup(backup.ID); err != nil {
		writeError(w, err, "Failed to restore backup")
		return
	}
	log.Info().Str("backup_id", backup.ID).Str("server_id", backup.ServerID).Msg("Backup restored via API")
	w.WriteHeader(http.StatusNoContent)
}
