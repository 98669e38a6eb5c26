package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"doseclock/internal/httputil"
	"doseclock/internal/model"
	"doseclock/internal/service"
	"doseclock/internal/transport/http/middleware"
)

type BackupHandler struct {
	backupService *service.BackupService
}

func NewBackupHandler(backupService *service.BackupService) *BackupHandler {
	return &BackupHandler{backupService: backupService}
}

// Create handles POST /backups
func (h *BackupHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	info, err := h.backupService.Create(r.Context())
	if err != nil {
		log.Printf("[ERROR] Create backup handler: user=%d err=%v", userID, err)
		httputil.WriteInternalError(w, "Failed to create backup")
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, info)
}

// List handles GET /backups
func (h *BackupHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	backups, err := h.backupService.List(r.Context())
	if err != nil {
		log.Printf("[ERROR] List backups handler: user=%d err=%v", userID, err)
		httputil.WriteInternalError(w, "Failed to list backups")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, backups)
}

// Restore handles POST /backups/restore
// The whole dataset is replaced; the request names the backup file.
func (h *BackupHandler) Restore(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req struct {
		Filename string `json:"filename"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Filename == "" {
		httputil.WriteBadRequest(w, "filename is required")
		return
	}

	result, err := h.backupService.Restore(r.Context(), req.Filename)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrBackupNotFound):
			httputil.WriteNotFound(w, "Backup file not found")
		case errors.Is(err, model.ErrBackupInvalid):
			httputil.WriteBadRequest(w, "Backup file is not a valid backup document")
		default:
			log.Printf("[ERROR] Restore backup handler: user=%d file=%s err=%v", userID, req.Filename, err)
			httputil.WriteInternalError(w, "Failed to restore backup")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}

// Download handles GET /backups/{filename}
// Serves the raw document so the user can keep an offline copy.
func (h *BackupHandler) Download(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	filename := chi.URLParam(r, "filename")
	raw, err := h.backupService.ReadFile(filename)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrBackupNotFound):
			httputil.WriteNotFound(w, "Backup file not found")
		case errors.Is(err, model.ErrBackupInvalid):
			httputil.WriteBadRequest(w, "Invalid backup filename")
		default:
			log.Printf("[ERROR] Download backup handler: user=%d file=%s err=%v", userID, filename, err)
			httputil.WriteInternalError(w, "Failed to read backup")
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(raw)
}

// Delete handles DELETE /backups/{filename}
func (h *BackupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	filename := chi.URLParam(r, "filename")
	if filename == "" {
		httputil.WriteBadRequest(w, "filename is required")
		return
	}

	if err := h.backupService.Delete(r.Context(), filename); err != nil {
		switch {
		case errors.Is(err, model.ErrBackupNotFound):
			httputil.WriteNotFound(w, "Backup file not found")
		case errors.Is(err, model.ErrBackupInvalid):
			httputil.WriteBadRequest(w, "Invalid backup filename")
		default:
			log.Printf("[ERROR] Delete backup handler: user=%d file=%s err=%v", userID, filename, err)
			httputil.WriteInternalError(w, "Failed to delete backup")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
