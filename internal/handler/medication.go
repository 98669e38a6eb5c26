package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"doseclock/internal/httputil"
	"doseclock/internal/model"
	"doseclock/internal/service"
	"doseclock/internal/transport/http/middleware"
)

type MedicationHandler struct {
	medicationService *service.MedicationService
}

func NewMedicationHandler(medicationService *service.MedicationService) *MedicationHandler {
	return &MedicationHandler{medicationService: medicationService}
}

// idParam parses the {id} URL parameter as a UUID.
func idParam(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "id"))
}

// Create handles POST /medications
func (h *MedicationHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req model.CreateMedicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	medication, err := h.medicationService.Create(r.Context(), userID, req)
	if err != nil {
		if errors.Is(err, model.ErrValidationFailed) {
			httputil.WriteBadRequest(w, err.Error())
			return
		}
		log.Printf("[ERROR] Create medication handler: user=%d err=%v", userID, err)
		httputil.WriteInternalError(w, "Failed to create medication")
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, medication)
}

// List handles GET /medications?active=true
func (h *MedicationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	activeOnly := r.URL.Query().Get("active") == "true"
	medications, err := h.medicationService.List(r.Context(), userID, activeOnly)
	if err != nil {
		log.Printf("[ERROR] List medications handler: user=%d err=%v", userID, err)
		httputil.WriteInternalError(w, "Failed to list medications")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, medications)
}

// GetByID handles GET /medications/{id}
func (h *MedicationHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	id, err := idParam(r)
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid medication ID")
		return
	}

	medication, err := h.medicationService.GetByID(r.Context(), userID, id)
	if err != nil {
		if errors.Is(err, model.ErrMedicationNotFound) {
			httputil.WriteNotFound(w, "Medication not found")
			return
		}
		log.Printf("[ERROR] Get medication handler: user=%d med=%s err=%v", userID, id, err)
		httputil.WriteInternalError(w, "Failed to get medication")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, medication)
}

// Update handles PUT /medications/{id}
func (h *MedicationHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	id, err := idParam(r)
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid medication ID")
		return
	}

	var req model.UpdateMedicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	medication, err := h.medicationService.Update(r.Context(), userID, id, req)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrMedicationNotFound):
			httputil.WriteNotFound(w, "Medication not found")
		case errors.Is(err, model.ErrValidationFailed):
			httputil.WriteBadRequest(w, err.Error())
		default:
			log.Printf("[ERROR] Update medication handler: user=%d med=%s err=%v", userID, id, err)
			httputil.WriteInternalError(w, "Failed to update medication")
		}
		return
	}

	httputil.WriteJSON(w, http.StatusOK, medication)
}

// SetActive handles PATCH /medications/{id}/active
func (h *MedicationHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	id, err := idParam(r)
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid medication ID")
		return
	}

	var req struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteBadRequest(w, "Invalid request body")
		return
	}

	medication, err := h.medicationService.SetActive(r.Context(), userID, id, req.Active)
	if err != nil {
		if errors.Is(err, model.ErrMedicationNotFound) {
			httputil.WriteNotFound(w, "Medication not found")
			return
		}
		log.Printf("[ERROR] SetActive medication handler: user=%d med=%s err=%v", userID, id, err)
		httputil.WriteInternalError(w, "Failed to update medication")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, medication)
}

// Delete handles DELETE /medications/{id}
func (h *MedicationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	id, err := idParam(r)
	if err != nil {
		httputil.WriteBadRequest(w, "Invalid medication ID")
		return
	}

	if err := h.medicationService.Delete(r.Context(), userID, id); err != nil {
		if errors.Is(err, model.ErrMedicationNotFound) {
			httputil.WriteNotFound(w, "Medication not found")
			return
		}
		log.Printf("[ERROR] Delete medication handler: user=%d med=%s err=%v", userID, id, err)
		httputil.WriteInternalError(w, "Failed to delete medication")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
