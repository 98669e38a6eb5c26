package handler

import (
	"log"
	"net/http"
	"time"

	"doseclock/internal/httputil"
	"doseclock/internal/repository"
	"doseclock/internal/schedule"
	"doseclock/internal/transport/http/middleware"
)

// NotificationHandler exposes the pending reminder queue for the current user.
type NotificationHandler struct {
	notificationRepo repository.NotificationRepository
	clock            schedule.Clock
	lookaheadHours   int
}

func NewNotificationHandler(notificationRepo repository.NotificationRepository, clock schedule.Clock, lookaheadHours int) *NotificationHandler {
	return &NotificationHandler{
		notificationRepo: notificationRepo,
		clock:            clock,
		lookaheadHours:   lookaheadHours,
	}
}

// Upcoming handles GET /notifications/upcoming
func (h *NotificationHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return
	}

	now := h.clock.Now()
	to := now.Add(time.Duration(h.lookaheadHours) * time.Hour)

	notifications, err := h.notificationRepo.ListUpcomingForUser(r.Context(), userID, now, to)
	if err != nil {
		log.Printf("[ERROR] Upcoming notifications handler: user=%d err=%v", userID, err)
		httputil.WriteInternalError(w, "Failed to list upcoming notifications")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, notifications)
}
