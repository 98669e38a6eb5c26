package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"doseclock/internal/cache"
	"doseclock/internal/model"
	"doseclock/internal/queue"
)

// DoseMaterializer creates the next pending dose row for a treatment.
// Abstracts the service layer so workers don't depend on it directly.
type DoseMaterializer interface {
	// MaterializeNext computes and persists the next scheduled dose for the
	// treatment. Returns nil without error when the treatment window is over
	// or the treatment is no longer active.
	MaterializeNext(ctx context.Context, userID int64, treatmentID uuid.UUID) (*model.Dose, error)
}

// UpcomingProvider builds the cache entries for a user's upcoming doses.
type UpcomingProvider interface {
	// UpcomingEntries returns the user's pending dose instants within the
	// lookahead horizon as cache entries.
	UpcomingEntries(ctx context.Context, userID int64) ([]cache.DoseEntry, error)
}

// Handler processes schedule events from the queue.
type Handler struct {
	scheduleCache cache.ScheduleCache
	materializer  DoseMaterializer
	upcoming      UpcomingProvider
}

// NewHandler creates a new event handler.
func NewHandler(scheduleCache cache.ScheduleCache, materializer DoseMaterializer, upcoming UpcomingProvider) *Handler {
	return &Handler{
		scheduleCache: scheduleCache,
		materializer:  materializer,
		upcoming:      upcoming,
	}
}

// HandleEvent routes an event to the appropriate handler based on type.
func (h *Handler) HandleEvent(ctx context.Context, event queue.ScheduleEvent) error {
	startTime := time.Now()
	var err error

	switch event.Type {
	case queue.EventDoseConfirmed:
		err = h.handleDoseConfirmed(ctx, event)
	case queue.EventTreatmentChanged:
		err = h.handleTreatmentChanged(ctx, event)
	case queue.EventTreatmentDeleted:
		err = h.handleTreatmentDeleted(ctx, event)
	default:
		log.Printf("[Worker] Unknown event type: %s", event.Type)
		return fmt.Errorf("unknown event type: %s", event.Type)
	}

	if err != nil {
		log.Printf("[Worker] HandleEvent FAILED: type=%s duration=%v err=%v",
			event.Type, time.Since(startTime), err)
		return err
	}

	log.Printf("[Worker] HandleEvent OK: type=%s duration=%v", event.Type, time.Since(startTime))
	return nil
}

// handleDoseConfirmed materializes the next dose after a confirmation and
// updates the user's schedule cache. Under from_confirmation mode the next
// instant shifts with the confirmation time, so this must run after every
// confirm.
func (h *Handler) handleDoseConfirmed(ctx context.Context, event queue.ScheduleEvent) error {
	log.Printf("[Worker] DoseConfirmed: user=%d treatment=%s dose=%s",
		event.UserID, event.TreatmentID, event.DoseID)

	next, err := h.materializer.MaterializeNext(ctx, event.UserID, event.TreatmentID)
	if err != nil {
		return fmt.Errorf("materialize next dose: %w", err)
	}

	// Confirmed dose is no longer upcoming
	if err := h.scheduleCache.RemoveDose(ctx, event.UserID, event.DoseID); err != nil {
		log.Printf("[Worker] DoseConfirmed: failed to evict confirmed dose from cache: %v", err)
	}

	if next == nil {
		log.Printf("[Worker] DoseConfirmed DONE: treatment=%s window over, no next dose", event.TreatmentID)
		return nil
	}

	if err := h.scheduleCache.AddDose(ctx, event.UserID, next.ID, next.ScheduledTime.Unix()); err != nil {
		log.Printf("[Worker] DoseConfirmed: failed to cache next dose=%s err=%v", next.ID, err)
	}

	log.Printf("[Worker] DoseConfirmed DONE: treatment=%s next=%s at %s",
		event.TreatmentID, next.ID, next.ScheduledTime.Format(time.RFC3339))
	return nil
}

// handleTreatmentChanged rebuilds the user's schedule cache from the database.
// Frequency or mode changes shift every upcoming instant, so a full rebuild is
// simpler and safer than patching entries.
func (h *Handler) handleTreatmentChanged(ctx context.Context, event queue.ScheduleEvent) error {
	log.Printf("[Worker] TreatmentChanged: user=%d treatment=%s", event.UserID, event.TreatmentID)
	return h.rebuildUserCache(ctx, event.UserID)
}

// handleTreatmentDeleted rebuilds the user's schedule cache so the deleted
// treatment's instants disappear.
func (h *Handler) handleTreatmentDeleted(ctx context.Context, event queue.ScheduleEvent) error {
	log.Printf("[Worker] TreatmentDeleted: user=%d treatment=%s", event.UserID, event.TreatmentID)
	return h.rebuildUserCache(ctx, event.UserID)
}

func (h *Handler) rebuildUserCache(ctx context.Context, userID int64) error {
	entries, err := h.upcoming.UpcomingEntries(ctx, userID)
	if err != nil {
		return fmt.Errorf("load upcoming doses: %w", err)
	}

	if err := h.scheduleCache.Rebuild(ctx, userID, entries); err != nil {
		return fmt.Errorf("rebuild schedule cache: %w", err)
	}

	log.Printf("[Worker] Cache rebuilt: user=%d entries=%d", userID, len(entries))
	return nil
}
