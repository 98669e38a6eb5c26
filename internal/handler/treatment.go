package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"

	"doseclock/internal/httputil"
	"doseclock/internal/model"
	"doseclock/internal/service"
	"doseclock/internal/transport/http/middleware"
)

type TreatmentHandler struct {
	treatmentService *service.TreatmentService
}

func NewTreatmentHandler(treatmentService *service.TreatmentService) *TreatmentHandler {
	return &TreatmentHandler{treatmentService: treatmentService}
}

// Create handles POST /treatments
func (h *TreatmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req model.CreateTreatmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	treatment, err := h.treatmentService.Create(r.Context(), userID, req)
	if err != nil {
		var ve *service.ValidationError
		switch {
		case errors.As(err, &ve):
			httputil.WriteValidationFailure(w, ve.Result)
		case errors.Is(err, model.ErrValidationFailed):
			httputil.WriteBadRequest(w, err.Error())
		default:
			log.Printf("[ERROR] Create treatment handler: user=%d err=%v", userID, err)
			httputil.WriteInternalError(w, "Failed to create treatment")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, treatment)
}

// Validate handles POST /treatments/validate
// Runs the full validation pass without persisting anything.
func (h *TreatmentHandler) Validate(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req model.CreateTreatmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	result := h.treatmentService.Validate(r.Context(), userID, req)
	httputil.WriteJSON(w, http.StatusOK, result)
}

// List handles GET /treatments?status=active
func (h *TreatmentHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	status := r.URL.Query().Get("status")
	treatments, err := h.treatmentService.List(r.Context(), userID, status)
	if err != nil {
		if errors.Is(err, model.ErrValidationFailed) {
			httputil.WriteBadRequest(w, err.Error())
			return
		}
		log.Printf("[ERROR] List treatments handler: user=%d err=%v", userID, err)
		httputil.WriteInternalError(w, "Failed to list treatments")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, treatments)
}

// GetByID handles GET /treatments/{id}
func (h *TreatmentHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	id, err := idParam(r)
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid treatment ID")
		return
	}

	treatment, err := h.treatmentService.GetByID(r.Context(), userID, id)
	if err != nil {
		if errors.Is(err, model.ErrTreatmentNotFound) {
			httputil.WriteNotFound(w, "Treatment not found")
			return
		}
		log.Printf("[ERROR] Get treatment handler: user=%d treatment=%s err=%v", userID, id, err)
		httputil.WriteInternalError(w, "Failed to get treatment")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, treatment)
}

// Update handles PUT /treatments/{id}
func (h *TreatmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	id, err := idParam(r)
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid treatment ID")
		return
	}

	var req model.UpdateTreatmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	treatment, err := h.treatmentService.Update(r.Context(), userID, id, req)
	if err != nil {
		var ve *service.ValidationError
		switch {
		case errors.Is(err, model.ErrTreatmentNotFound):
			httputil.WriteNotFound(w, "Treatment not found")
		case errors.As(err, &ve):
			httputil.WriteValidationFailure(w, ve.Result)
		case errors.Is(err, model.ErrValidationFailed):
			httputil.WriteBadRequest(w, err.Error())
		default:
			log.Printf("[ERROR] Update treatment handler: user=%d treatment=%s err=%v", userID, id, err)
			httputil.WriteInternalError(w, "Failed to update treatment")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, treatment)
}

// Pause handles POST /treatments/{id}/pause
func (h *TreatmentHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "pause", model.TreatmentPaused, h.treatmentService.Pause)
}

// Resume handles POST /treatments/{id}/resume
func (h *TreatmentHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "resume", model.TreatmentActive, h.treatmentService.Resume)
}

// End handles POST /treatments/{id}/end
func (h *TreatmentHandler) End(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "end", model.TreatmentEnded, h.treatmentService.End)
}

func (h *TreatmentHandler) transition(w http.ResponseWriter, r *http.Request, action, resultStatus string, fn func(ctx context.Context, userID int64, id uuid.UUID) error) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	id, err := idParam(r)
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid treatment ID")
		return
	}

	if err := fn(r.Context(), userID, id); err != nil {
		switch {
		case errors.Is(err, model.ErrTreatmentNotFound):
			httputil.WriteNotFound(w, "Treatment not found")
		case errors.Is(err, model.ErrTreatmentNotActive):
			httputil.WriteConflict(w, "Treatment is not in a state that allows this action")
		default:
			log.Printf("[ERROR] %s treatment handler: user=%d treatment=%s err=%v", action, userID, id, err)
			httputil.WriteInternalError(w, "Failed to update treatment status")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": resultStatus})
}

// Delete handles DELETE /treatments/{id}
func (h *TreatmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	id, err := idParam(r)
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid treatment ID")
		return
	}

	if err := h.treatmentService.Delete(r.Context(), userID, id); err != nil {
		if errors.Is(err, model.ErrTreatmentNotFound) {
			httputil.WriteNotFound(w, "Treatment not found")
			return
		}
		log.Printf("[ERROR] Delete treatment handler: user=%d treatment=%s err=%v", userID, id, err)
		httputil.WriteInternalError(w, "Failed to delete treatment")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Adherence handles GET /treatments/{id}/adherence
func (h *TreatmentHandler) Adherence(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	id, err := idParam(r)
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid treatment ID")
		return
	}

	adherence, err := h.treatmentService.Adherence(r.Context(), userID, id)
	if err != nil {
		if errors.Is(err, model.ErrTreatmentNotFound) {
			httputil.WriteNotFound(w, "Treatment not found")
			return
		}
		log.Printf("[ERROR] Adherence handler: user=%d treatment=%s err=%v", userID, id, err)
		httputil.WriteInternalError(w, "Failed to compute adherence")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, adherence)
}
