package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"doseclock/internal/cache"
	"doseclock/internal/config"
	"doseclock/internal/model"
	"doseclock/internal/queue"
	"doseclock/internal/repository"
	"doseclock/internal/schedule"
)

// DefaultHistoryLimit bounds dose history queries without an explicit limit.
const DefaultHistoryLimit = 50

// DoseService manages dose materialization, confirmation and the missed-dose
// sweep.
type DoseService struct {
	doseRepo      repository.DoseRepository
	treatmentRepo repository.TreatmentRepository
	scheduleCache cache.ScheduleCache
	publisher     queue.Publisher
	config        *config.Config
	clock         schedule.Clock
}

func NewDoseService(
	doseRepo repository.DoseRepository,
	treatmentRepo repository.TreatmentRepository,
	scheduleCache cache.ScheduleCache,
	publisher queue.Publisher,
	cfg *config.Config,
	clock schedule.Clock,
) *DoseService {
	return &DoseService{
		doseRepo:      doseRepo,
		treatmentRepo: treatmentRepo,
		scheduleCache: scheduleCache,
		publisher:     publisher,
		config:        cfg,
		clock:         clock,
	}
}

// MaterializeNext computes and persists the next due dose for a treatment.
// Returns nil without error when the treatment is not active or its window is
// over. Idempotent: an already-materialized instant is returned, not
// duplicated.
func (s *DoseService) MaterializeNext(ctx context.Context, userID int64, treatmentID uuid.UUID) (*model.Dose, error) {
	treatment, err := s.treatmentRepo.GetByID(ctx, userID, treatmentID)
	if err != nil {
		return nil, err
	}
	if treatment.Status != model.TreatmentActive {
		return nil, nil
	}

	lastDose, err := s.doseRepo.LatestByTreatment(ctx, treatment.ID)
	if err != nil && !errors.Is(err, model.ErrDoseNotFound) {
		return nil, err
	}

	now := s.clock.Now()
	upcoming := schedule.FutureDoses(treatment, lastDose, now, 1)
	if len(upcoming) == 0 {
		log.Printf("[DoseService] MaterializeNext: treatment=%s window over", treatment.ID)
		return nil, nil
	}
	scheduled := upcoming[0]

	existing, err := s.doseRepo.GetByTreatmentAndTime(ctx, treatment.ID, scheduled)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, model.ErrDoseNotFound) {
		return nil, err
	}

	dose := &model.Dose{
		TreatmentID:   &treatment.ID,
		ScheduledTime: scheduled,
		Status:        model.DosePending,
	}
	if err := s.doseRepo.Create(ctx, dose); err != nil {
		return nil, fmt.Errorf("insert next dose: %w", err)
	}

	log.Printf("[DoseService] Materialized dose=%s treatment=%s at %s",
		dose.ID, treatment.ID, scheduled.Format(time.RFC3339))
	return dose, nil
}

// Confirm records an intake. The status is recomputed from the grace deadline:
// within grace yields confirmed, after it yields late. Late and even missed
// doses are always accepted. Re-confirming is a no-op returning the recorded
// state.
func (s *DoseService) Confirm(ctx context.Context, userID int64, doseID uuid.UUID) (*model.ConfirmDoseResult, error) {
	dose, err := s.doseRepo.GetByID(ctx, userID, doseID)
	if err != nil {
		return nil, err
	}

	if dose.ConfirmedTime != nil {
		return &model.ConfirmDoseResult{
			DoseID:           dose.ID,
			Status:           dose.Status,
			ConfirmationTime: *dose.ConfirmedTime,
			WasOnTime:        dose.Status == model.DoseConfirmed,
		}, nil
	}

	now := s.clock.Now()
	status := schedule.DetermineStatus(dose.ScheduledTime, &now, s.config.GraceMinutes, now)

	if err := s.doseRepo.Confirm(ctx, dose.ID, now, status); err != nil {
		return nil, err
	}

	// Kick the worker to materialize the next dose. Under from_confirmation
	// the next instant depends on this confirmation time.
	if dose.TreatmentID != nil {
		if _, err := s.publisher.Publish(ctx, queue.StreamSchedule,
			queue.NewDoseConfirmedEvent(userID, *dose.TreatmentID, dose.ID)); err != nil {
			log.Printf("[DoseService] Failed to publish DoseConfirmed: dose=%s err=%v", dose.ID, err)
		}
	}

	log.Printf("[DoseService] Confirmed dose=%s user=%d status=%s", dose.ID, userID, status)
	return &model.ConfirmDoseResult{
		DoseID:           dose.ID,
		Status:           status,
		ConfirmationTime: now,
		WasOnTime:        status == model.DoseConfirmed,
	}, nil
}

// SweepOverdue transitions the user's pending doses past the grace deadline to
// missed and returns them. Each dose comes back from exactly one sweep, so the
// caller can alert on it without extra bookkeeping. Idempotent; safe to run
// every tick.
func (s *DoseService) SweepOverdue(ctx context.Context, userID int64) ([]model.Dose, error) {
	cutoff := s.clock.Now().Add(-time.Duration(s.config.GraceMinutes) * time.Minute)
	missed, err := s.doseRepo.MarkOverdueMissed(ctx, userID, cutoff)
	if err != nil {
		return nil, err
	}
	if len(missed) > 0 {
		log.Printf("[DoseService] Sweep: user=%d marked %d doses missed", userID, len(missed))
	}
	return missed, nil
}

// History returns past doses, newest first, optionally filtered by status and
// medication.
func (s *DoseService) History(ctx context.Context, userID int64, status string, medicationID *uuid.UUID, limit int) ([]model.Dose, error) {
	if limit <= 0 || limit > 500 {
		limit = DefaultHistoryLimit
	}
	return s.doseRepo.ListByUser(ctx, userID, status, medicationID, limit)
}

// GetByID returns one dose owned by the user.
func (s *DoseService) GetByID(ctx context.Context, userID int64, doseID uuid.UUID) (*model.Dose, error) {
	return s.doseRepo.GetByID(ctx, userID, doseID)
}

// Window classifies where now sits relative to a dose's confirmation window.
func (s *DoseService) Window(ctx context.Context, userID int64, doseID uuid.UUID) (*schedule.WindowStatus, error) {
	dose, err := s.doseRepo.GetByID(ctx, userID, doseID)
	if err != nil {
		return nil, err
	}

	status := schedule.CheckWindow(dose.ScheduledTime,
		s.config.ConfirmWindowMinutes, s.config.GraceMinutes, s.clock.Now())
	return &status, nil
}

// UpcomingEntries builds the schedule cache entries for a user: every pending
// dose from the start of the grace window through the lookahead horizon.
func (s *DoseService) UpcomingEntries(ctx context.Context, userID int64) ([]cache.DoseEntry, error) {
	now := s.clock.Now()
	from := now.Add(-time.Duration(s.config.GraceMinutes) * time.Minute)
	to := now.Add(time.Duration(s.config.LookaheadHours) * time.Hour)

	doses, err := s.doseRepo.ListPendingInRange(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}

	entries := make([]cache.DoseEntry, len(doses))
	for i, d := range doses {
		entries[i] = cache.DoseEntry{DoseID: d.ID, Timestamp: d.ScheduledTime.Unix()}
	}
	return entries, nil
}

// DashboardItem pairs an upcoming dose with its countdown and window status.
type DashboardItem struct {
	Dose          *model.Dose           `json:"dose"`
	Countdown     schedule.Countdown    `json:"countdown"`
	CountdownText string                `json:"countdown_text"`
	Window        schedule.WindowStatus `json:"window"`
}

// Dashboard summarizes the user's schedule: every pending dose from the grace
// window through the lookahead horizon, with live countdowns.
type Dashboard struct {
	Items       []DashboardItem `json:"items"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// GetDashboard builds the dashboard view from the pending doses in range.
func (s *DoseService) GetDashboard(ctx context.Context, userID int64) (*Dashboard, error) {
	now := s.clock.Now()
	from := now.Add(-time.Duration(s.config.GraceMinutes) * time.Minute)
	to := now.Add(time.Duration(s.config.LookaheadHours) * time.Hour)

	doses, err := s.doseRepo.ListPendingInRange(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}

	items := make([]DashboardItem, len(doses))
	for i := range doses {
		d := &doses[i]
		countdown := schedule.TimeUntilDose(now, d.ScheduledTime)
		items[i] = DashboardItem{
			Dose:          d,
			Countdown:     countdown,
			CountdownText: schedule.FormatCountdown(countdown.TotalSeconds),
			Window: schedule.CheckWindow(d.ScheduledTime,
				s.config.ConfirmWindowMinutes, s.config.GraceMinutes, now),
		}
	}

	return &Dashboard{Items: items, GeneratedAt: now}, nil
}

// NextDose returns the user's single nearest upcoming dose. Served from the
// schedule cache when warm; a cold cache is rebuilt from the database first.
func (s *DoseService) NextDose(ctx context.Context, userID int64) (*DashboardItem, error) {
	now := s.clock.Now()

	warm, err := s.scheduleCache.Exists(ctx, userID)
	if err != nil {
		log.Printf("[DoseService] NextDose: cache check failed, falling back to DB: %v", err)
		warm = false
	}

	if !warm {
		entries, err := s.UpcomingEntries(ctx, userID)
		if err != nil {
			return nil, err
		}
		if err := s.scheduleCache.Rebuild(ctx, userID, entries); err != nil {
			log.Printf("[DoseService] NextDose: cache rebuild failed: %v", err)
		}
	}

	from := now.Add(-time.Duration(s.config.GraceMinutes) * time.Minute)
	doseIDs, _, err := s.scheduleCache.Upcoming(ctx, userID, from, 1)
	if err != nil || len(doseIDs) == 0 {
		// Cache unavailable or empty: answer from the database
		doses, dbErr := s.doseRepo.ListPendingInRange(ctx, userID, from,
			now.Add(time.Duration(s.config.LookaheadHours)*time.Hour))
		if dbErr != nil {
			return nil, dbErr
		}
		if len(doses) == 0 {
			return nil, model.ErrDoseNotFound
		}
		return s.buildItem(&doses[0], now), nil
	}

	dose, err := s.doseRepo.GetByID(ctx, userID, doseIDs[0])
	if err != nil {
		return nil, err
	}
	return s.buildItem(dose, now), nil
}

func (s *DoseService) buildItem(d *model.Dose, now time.Time) *DashboardItem {
	countdown := schedule.TimeUntilDose(now, d.ScheduledTime)
	return &DashboardItem{
		Dose:          d,
		Countdown:     countdown,
		CountdownText: schedule.FormatCountdown(countdown.TotalSeconds),
		Window: schedule.CheckWindow(d.ScheduledTime,
			s.config.ConfirmWindowMinutes, s.config.GraceMinutes, now),
	}
}
