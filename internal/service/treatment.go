package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"doseclock/internal/model"
	"doseclock/internal/queue"
	"doseclock/internal/repository"
	"doseclock/internal/schedule"
)

// MaxTreatmentDurationDays caps finite treatments at five years.
const MaxTreatmentDurationDays = 1825

// MaxStartTimeAge is how far in the past a last-taken anchor may lie.
const MaxStartTimeAge = 365 * 24 * time.Hour

// ValidationError carries a structured ValidationResult alongside the failure.
// Unwraps to model.ErrValidationFailed so errors.Is works at the transport
// layer.
type ValidationError struct {
	Result model.ValidationResult
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Result.Errors, "; ")
}

func (e *ValidationError) Unwrap() error {
	return model.ErrValidationFailed
}

// TreatmentService manages dosing plans and their lifecycle.
type TreatmentService struct {
	treatmentRepo  repository.TreatmentRepository
	medicationRepo repository.MedicationRepository
	doseRepo       repository.DoseRepository
	publisher      queue.Publisher
	clock          schedule.Clock
}

func NewTreatmentService(
	treatmentRepo repository.TreatmentRepository,
	medicationRepo repository.MedicationRepository,
	doseRepo repository.DoseRepository,
	publisher queue.Publisher,
	clock schedule.Clock,
) *TreatmentService {
	return &TreatmentService{
		treatmentRepo:  treatmentRepo,
		medicationRepo: medicationRepo,
		doseRepo:       doseRepo,
		publisher:      publisher,
		clock:          clock,
	}
}

// Validate checks a create request without persisting anything. Failures are
// collected, not short-circuited, so the caller sees every problem at once.
func (s *TreatmentService) Validate(ctx context.Context, userID int64, req model.CreateTreatmentRequest) model.ValidationResult {
	now := s.clock.Now()
	var errs []string

	if req.MedicationID == uuid.Nil {
		errs = append(errs, "medication_id is required")
	} else if _, err := s.medicationRepo.GetByID(ctx, userID, req.MedicationID); err != nil {
		errs = append(errs, "medication not found")
	}

	if req.FrequencyHours < model.MinFrequencyHours || req.FrequencyHours > model.MaxFrequencyHours {
		errs = append(errs, fmt.Sprintf("frequency must be between %.1f and %d hours",
			model.MinFrequencyHours, int(model.MaxFrequencyHours)))
	}

	if !req.IsIndefinite {
		if req.DurationDays == nil {
			errs = append(errs, "duration_days is required unless the treatment is indefinite")
		} else if *req.DurationDays < 1 || *req.DurationDays > MaxTreatmentDurationDays {
			errs = append(errs, fmt.Sprintf("duration must be between 1 and %d days", MaxTreatmentDurationDays))
		}
	}

	switch req.CalculationMode {
	case model.CalculationFromScheduled, model.CalculationFromConfirmation:
	default:
		errs = append(errs, "calculation_mode must be from_scheduled or from_confirmation")
	}

	if !req.StartNow {
		if req.LastTakenAt == nil {
			errs = append(errs, "either start_now or last_taken_at is required")
		} else {
			if req.LastTakenAt.After(now) {
				errs = append(errs, "last_taken_at cannot be in the future")
			}
			if now.Sub(*req.LastTakenAt) > MaxStartTimeAge {
				errs = append(errs, "last_taken_at cannot be more than a year ago")
			}
		}
	}

	return model.ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// Create validates and persists a treatment, materializes its first due dose,
// and publishes a change event for the schedule cache.
//
// StartNow anchors the schedule at the current instant and the first dose is
// due immediately. A last_taken_at anchor means that intake happened outside
// the system, so the first materialized dose is the next one after now.
func (s *TreatmentService) Create(ctx context.Context, userID int64, req model.CreateTreatmentRequest) (*model.Treatment, error) {
	if result := s.Validate(ctx, userID, req); !result.Valid {
		return nil, &ValidationError{Result: result}
	}

	now := s.clock.Now()
	startTime := now
	if !req.StartNow {
		startTime = req.LastTakenAt.UTC()
	}

	medicationID := req.MedicationID
	treatment := &model.Treatment{
		UserID:          userID,
		MedicationID:    &medicationID,
		StartTime:       startTime,
		DurationDays:    req.DurationDays,
		IsIndefinite:    req.IsIndefinite,
		FrequencyHours:  req.FrequencyHours,
		CalculationMode: req.CalculationMode,
		Status:          model.TreatmentActive,
		Notes:           req.Notes,
	}
	if treatment.IsIndefinite {
		treatment.DurationDays = nil
	}

	if err := s.treatmentRepo.Create(ctx, treatment); err != nil {
		return nil, fmt.Errorf("create treatment: %w", err)
	}

	if err := s.materializeFirstDose(ctx, treatment, req.StartNow, now); err != nil {
		log.Printf("[TreatmentService] First dose materialization failed: treatment=%s err=%v", treatment.ID, err)
	}

	s.publishChanged(ctx, userID, treatment.ID)
	return treatment, nil
}

func (s *TreatmentService) materializeFirstDose(ctx context.Context, t *model.Treatment, startNow bool, now time.Time) error {
	var scheduled time.Time
	if startNow {
		scheduled = t.StartTime
	} else {
		upcoming := schedule.FutureDoses(t, nil, now, 1)
		if len(upcoming) == 0 {
			return nil // window already over
		}
		scheduled = upcoming[0]
	}

	dose := &model.Dose{
		TreatmentID:   &t.ID,
		ScheduledTime: scheduled,
		Status:        model.DosePending,
	}
	if err := s.doseRepo.Create(ctx, dose); err != nil {
		return fmt.Errorf("insert first dose: %w", err)
	}

	log.Printf("[TreatmentService] First dose materialized: treatment=%s dose=%s at %s",
		t.ID, dose.ID, scheduled.Format(time.RFC3339))
	return nil
}

// GetByID returns one treatment with its medication joined.
func (s *TreatmentService) GetByID(ctx context.Context, userID int64, id uuid.UUID) (*model.Treatment, error) {
	return s.treatmentRepo.GetByID(ctx, userID, id)
}

// List returns the user's treatments, optionally filtered by status.
func (s *TreatmentService) List(ctx context.Context, userID int64, status string) ([]model.Treatment, error) {
	return s.treatmentRepo.ListByUser(ctx, userID, status)
}

// Update modifies the schedule settings of an existing treatment. Start time
// and medication are immutable; delete and recreate to change those.
func (s *TreatmentService) Update(ctx context.Context, userID int64, id uuid.UUID, req model.UpdateTreatmentRequest) (*model.Treatment, error) {
	treatment, err := s.treatmentRepo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	var errs []string
	if req.FrequencyHours < model.MinFrequencyHours || req.FrequencyHours > model.MaxFrequencyHours {
		errs = append(errs, fmt.Sprintf("frequency must be between %.1f and %d hours",
			model.MinFrequencyHours, int(model.MaxFrequencyHours)))
	}
	if !req.IsIndefinite {
		if req.DurationDays == nil {
			errs = append(errs, "duration_days is required unless the treatment is indefinite")
		} else if *req.DurationDays < 1 || *req.DurationDays > MaxTreatmentDurationDays {
			errs = append(errs, fmt.Sprintf("duration must be between 1 and %d days", MaxTreatmentDurationDays))
		}
	}
	switch req.CalculationMode {
	case model.CalculationFromScheduled, model.CalculationFromConfirmation:
	default:
		errs = append(errs, "calculation_mode must be from_scheduled or from_confirmation")
	}
	if len(errs) > 0 {
		return nil, &ValidationError{Result: model.ValidationResult{Errors: errs}}
	}

	treatment.DurationDays = req.DurationDays
	treatment.IsIndefinite = req.IsIndefinite
	if treatment.IsIndefinite {
		treatment.DurationDays = nil
	}
	treatment.FrequencyHours = req.FrequencyHours
	treatment.CalculationMode = req.CalculationMode
	treatment.Notes = req.Notes

	if err := s.treatmentRepo.Update(ctx, treatment); err != nil {
		return nil, err
	}

	s.publishChanged(ctx, userID, treatment.ID)
	return treatment, nil
}

// Pause suspends dosing. Paused treatments produce no doses and no reminders.
func (s *TreatmentService) Pause(ctx context.Context, userID int64, id uuid.UUID) error {
	return s.transition(ctx, userID, id, model.TreatmentActive, model.TreatmentPaused)
}

// Resume reactivates a paused treatment.
func (s *TreatmentService) Resume(ctx context.Context, userID int64, id uuid.UUID) error {
	return s.transition(ctx, userID, id, model.TreatmentPaused, model.TreatmentActive)
}

// End closes a treatment permanently. History is kept.
func (s *TreatmentService) End(ctx context.Context, userID int64, id uuid.UUID) error {
	treatment, err := s.treatmentRepo.GetByID(ctx, userID, id)
	if err != nil {
		return err
	}
	if treatment.Status == model.TreatmentEnded {
		return nil // already ended, idempotent
	}

	if err := s.treatmentRepo.UpdateStatus(ctx, userID, id, model.TreatmentEnded); err != nil {
		return err
	}

	s.publishChanged(ctx, userID, id)
	return nil
}

func (s *TreatmentService) transition(ctx context.Context, userID int64, id uuid.UUID, from, to string) error {
	treatment, err := s.treatmentRepo.GetByID(ctx, userID, id)
	if err != nil {
		return err
	}
	if treatment.Status != from {
		return model.ErrTreatmentNotActive
	}

	if err := s.treatmentRepo.UpdateStatus(ctx, userID, id, to); err != nil {
		return err
	}

	s.publishChanged(ctx, userID, id)
	return nil
}

// Delete removes a treatment. Display data is frozen onto its doses first so
// dose history survives with a readable medication name and frequency.
func (s *TreatmentService) Delete(ctx context.Context, userID int64, id uuid.UUID) error {
	treatment, err := s.treatmentRepo.GetByID(ctx, userID, id)
	if err != nil {
		return err
	}

	if err := s.doseRepo.DetachTreatment(ctx, treatment.ID,
		treatment.MedicationDisplayName(), treatment.FrequencyHours); err != nil {
		return fmt.Errorf("snapshot treatment onto doses: %w", err)
	}

	if err := s.treatmentRepo.Delete(ctx, userID, id); err != nil {
		return err
	}

	if _, err := s.publisher.Publish(ctx, queue.StreamSchedule,
		queue.NewTreatmentDeletedEvent(userID, id)); err != nil {
		log.Printf("[TreatmentService] Failed to publish TreatmentDeleted: treatment=%s err=%v", id, err)
	}

	log.Printf("[TreatmentService] Deleted treatment=%s user=%d (snapshots frozen onto doses)", id, userID)
	return nil
}

// TreatmentAdherence pairs a treatment with its adherence summary.
type TreatmentAdherence struct {
	TreatmentID    uuid.UUID                 `json:"treatment_id"`
	MedicationName string                    `json:"medication_name"`
	Summary        schedule.AdherenceSummary `json:"summary"`
}

// Adherence computes the adherence statistics for one treatment.
func (s *TreatmentService) Adherence(ctx context.Context, userID int64, id uuid.UUID) (*TreatmentAdherence, error) {
	treatment, err := s.treatmentRepo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	counts, err := s.doseRepo.CountByStatus(ctx, treatment.ID)
	if err != nil {
		return nil, err
	}

	return &TreatmentAdherence{
		TreatmentID:    treatment.ID,
		MedicationName: treatment.MedicationDisplayName(),
		Summary:        schedule.SummarizeAdherence(counts),
	}, nil
}

// DayScheduleEntry is one treatment's dose instants for a calendar day.
type DayScheduleEntry struct {
	TreatmentID    uuid.UUID   `json:"treatment_id"`
	MedicationName string      `json:"medication_name"`
	FrequencyHours float64     `json:"frequency_hours"`
	DoseTimes      []time.Time `json:"dose_times"`
}

// DaySchedule computes the theoretical dose instants for every active
// treatment on the given day. Calendar view; nothing is materialized.
func (s *TreatmentService) DaySchedule(ctx context.Context, userID int64, day time.Time) ([]DayScheduleEntry, error) {
	treatments, err := s.treatmentRepo.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	entries := make([]DayScheduleEntry, 0, len(treatments))
	for i := range treatments {
		t := &treatments[i]
		times := schedule.DosesForDay(t, day)
		if len(times) == 0 {
			continue
		}
		entries = append(entries, DayScheduleEntry{
			TreatmentID:    t.ID,
			MedicationName: t.MedicationDisplayName(),
			FrequencyHours: t.FrequencyHours,
			DoseTimes:      times,
		})
	}
	return entries, nil
}

func (s *TreatmentService) publishChanged(ctx context.Context, userID int64, treatmentID uuid.UUID) {
	if _, err := s.publisher.Publish(ctx, queue.StreamSchedule,
		queue.NewTreatmentChangedEvent(userID, treatmentID)); err != nil {
		// Log but don't fail - the periodic sweep reconciles the cache
		log.Printf("[TreatmentService] Failed to publish TreatmentChanged: treatment=%s err=%v", treatmentID, err)
	}
}

// IsNotFound reports whether the error is any of the domain not-found errors.
func IsNotFound(err error) bool {
	return errors.Is(err, model.ErrTreatmentNotFound) ||
		errors.Is(err, model.ErrMedicationNotFound) ||
		errors.Is(err, model.ErrDoseNotFound)
}
