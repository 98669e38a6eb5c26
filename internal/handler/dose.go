package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"doseclock/internal/httputil"
	"doseclock/internal/model"
	"doseclock/internal/service"
	"doseclock/internal/transport/http/middleware"
)

type DoseHandler struct {
	doseService *service.DoseService
}

func NewDoseHandler(doseService *service.DoseService) *DoseHandler {
	return &DoseHandler{doseService: doseService}
}

// Confirm handles POST /doses/{id}/confirm
func (h *DoseHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	id, err := idParam(r)
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid dose ID")
		return
	}

	result, err := h.doseService.Confirm(r.Context(), userID, id)
	if err != nil {
		if errors.Is(err, model.ErrDoseNotFound) {
			httputil.WriteNotFound(w, "Dose not found")
			return
		}
		log.Printf("[ERROR] Confirm dose handler: user=%d dose=%s err=%v", userID, id, err)
		httputil.WriteInternalError(w, "Failed to confirm dose")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}

// GetByID handles GET /doses/{id}
func (h *DoseHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	id, err := idParam(r)
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid dose ID")
		return
	}

	dose, err := h.doseService.GetByID(r.Context(), userID, id)
	if err != nil {
		if errors.Is(err, model.ErrDoseNotFound) {
			httputil.WriteNotFound(w, "Dose not found")
			return
		}
		log.Printf("[ERROR] Get dose handler: user=%d dose=%s err=%v", userID, id, err)
		httputil.WriteInternalError(w, "Failed to get dose")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, dose)
}

// Window handles GET /doses/{id}/window
func (h *DoseHandler) Window(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	id, err := idParam(r)
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid dose ID")
		return
	}

	status, err := h.doseService.Window(r.Context(), userID, id)
	if err != nil {
		if errors.Is(err, model.ErrDoseNotFound) {
			httputil.WriteNotFound(w, "Dose not found")
			return
		}
		log.Printf("[ERROR] Dose window handler: user=%d dose=%s err=%v", userID, id, err)
		httputil.WriteInternalError(w, "Failed to evaluate dose window")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, status)
}

// History handles GET /doses?status=confirmed&medication_id=<uuid>&limit=50
func (h *DoseHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	q := r.URL.Query()
	status := q.Get("status")

	var medicationID *uuid.UUID
	if raw := q.Get("medication_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httputil.WriteBadRequest(w, "Invalid medication_id filter")
			return
		}
		medicationID = &id
	}

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			httputil.WriteBadRequest(w, "Invalid limit")
			return
		}
		limit = n
	}

	doses, err := h.doseService.History(r.Context(), userID, status, medicationID, limit)
	if err != nil {
		if errors.Is(err, model.ErrValidationFailed) {
			httputil.WriteBadRequest(w, err.Error())
			return
		}
		log.Printf("[ERROR] Dose history handler: user=%d err=%v", userID, err)
		httputil.WriteInternalError(w, "Failed to list dose history")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, doses)
}
