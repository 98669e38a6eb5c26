package handler

import (
	"errors"
	"log"
	"net/http"
	"time"

	"doseclock/internal/httputil"
	"doseclock/internal/model"
	"doseclock/internal/service"
	"doseclock/internal/transport/http/middleware"
)

// ScheduleHandler serves the read-side schedule views: the dashboard,
// the next-dose lookup and the day calendar.
type ScheduleHandler struct {
	doseService      *service.DoseService
	treatmentService *service.TreatmentService
}

func NewScheduleHandler(doseService *service.DoseService, treatmentService *service.TreatmentService) *ScheduleHandler {
	return &ScheduleHandler{
		doseService:      doseService,
		treatmentService: treatmentService,
	}
}

// Dashboard handles GET /schedule/dashboard
func (h *ScheduleHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	dashboard, err := h.doseService.GetDashboard(r.Context(), userID)
	if err != nil {
		log.Printf("[ERROR] Dashboard handler: user=%d err=%v", userID, err)
		httputil.WriteInternalError(w, "Failed to build dashboard")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, dashboard)
}

// NextDose handles GET /schedule/next
func (h *ScheduleHandler) NextDose(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	item, err := h.doseService.NextDose(r.Context(), userID)
	if err != nil {
		if errors.Is(err, model.ErrDoseNotFound) {
			httputil.WriteNotFound(w, "No upcoming dose")
			return
		}
		log.Printf("[ERROR] NextDose handler: user=%d err=%v", userID, err)
		httputil.WriteInternalError(w, "Failed to find next dose")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, item)
}

// Day handles GET /schedule/day?date=2006-01-02
// Defaults to today (UTC) when no date is given.
func (h *ScheduleHandler) Day(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	day := time.Now().UTC()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httputil.WriteBadRequest(w, "Invalid date, expected YYYY-MM-DD")
			return
		}
		day = parsed
	}

	entries, err := h.treatmentService.DaySchedule(r.Context(), userID, day)
	if err != nil {
		log.Printf("[ERROR] Day schedule handler: user=%d err=%v", userID, err)
		httputil.WriteInternalError(w, "Failed to build day schedule")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"date":    day.Format("2006-01-02"),
		"entries": entries,
	})
}
