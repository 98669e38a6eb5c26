package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Calculation modes: how the next dose time is anchored.
const (
	// CalculationFromScheduled anchors the next dose to the previous dose's
	// scheduled time. Confirmation delays never shift the schedule.
	CalculationFromScheduled = "from_scheduled"

	// CalculationFromConfirmation anchors the next dose to the previous dose's
	// confirmed time (falling back to scheduled when unconfirmed), so delays
	// propagate forward.
	CalculationFromConfirmation = "from_confirmation"
)

// Treatment statuses
const (
	TreatmentActive = "active"
	TreatmentPaused = "paused"
	TreatmentEnded  = "ended"
)

// Frequency bounds in hours, enforced by validation (not by the scheduler).
const (
	MinFrequencyHours = 0.5
	MaxFrequencyHours = 168 // one week
)

// Treatment is a recurring dosing plan for a medication.
type Treatment struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	UserID       int64      `db:"user_id" json:"-"`
	MedicationID *uuid.UUID `db:"medication_id" json:"medication_id,omitempty"`

	// MedicationNameSnapshot preserves the medication name after the
	// medication row is deleted. Populated synchronously at delete time.
	MedicationNameSnapshot *string `db:"medication_name_snapshot" json:"medication_name_snapshot,omitempty"`

	StartTime       time.Time `db:"start_time" json:"start_time"`
	DurationDays    *int      `db:"duration_days" json:"duration_days,omitempty"`
	IsIndefinite    bool      `db:"is_indefinite" json:"is_indefinite"`
	FrequencyHours  float64   `db:"frequency_hours" json:"frequency_hours"`
	CalculationMode string    `db:"calculation_mode" json:"calculation_mode"`
	Status          string    `db:"status" json:"status"`
	Notes           *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`

	// Joined field for display; nil when the medication was deleted.
	Medication *Medication `json:"medication,omitempty"`
}

// MedicationDisplayName returns the live medication name when the reference is
// intact, otherwise the snapshot taken at delete time.
func (t *Treatment) MedicationDisplayName() string {
	if t.Medication != nil {
		return t.Medication.Name
	}
	if t.MedicationNameSnapshot != nil && *t.MedicationNameSnapshot != "" {
		return *t.MedicationNameSnapshot
	}
	return "Deleted medication"
}

// EndTime returns the end of the treatment window, or nil for indefinite
// treatments and treatments without a duration.
func (t *Treatment) EndTime() *time.Time {
	if t.IsIndefinite || t.DurationDays == nil {
		return nil
	}
	end := t.StartTime.Add(time.Duration(*t.DurationDays) * 24 * time.Hour)
	return &end
}

// CreateTreatmentRequest is the request body for creating a treatment.
// Either StartNow is true, or LastTakenAt provides the time of the most recent
// intake, which becomes the treatment start time.
type CreateTreatmentRequest struct {
	MedicationID    uuid.UUID  `json:"medication_id"`
	StartNow        bool       `json:"start_now"`
	LastTakenAt     *time.Time `json:"last_taken_at,omitempty"`
	DurationDays    *int       `json:"duration_days,omitempty"`
	IsIndefinite    bool       `json:"is_indefinite"`
	FrequencyHours  float64    `json:"frequency_hours"`
	CalculationMode string     `json:"calculation_mode"`
	Notes           *string    `json:"notes,omitempty"`
}

// UpdateTreatmentRequest is the request body for updating treatment settings.
type UpdateTreatmentRequest struct {
	DurationDays    *int    `json:"duration_days,omitempty"`
	IsIndefinite    bool    `json:"is_indefinite"`
	FrequencyHours  float64 `json:"frequency_hours"`
	CalculationMode string  `json:"calculation_mode"`
	Notes           *string `json:"notes,omitempty"`
}

var (
	// ErrTreatmentNotFound is returned when a treatment cannot be found for the user.
	ErrTreatmentNotFound = errors.New("treatment not found")

	// ErrTreatmentNotActive is returned for operations that require an active treatment.
	ErrTreatmentNotActive = errors.New("treatment is not active")
)

// ValidationResult is the structured outcome of input validation.
// Validation failures are reported to the caller, never raised as aborts.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// ErrValidationFailed signals that a ValidationResult with details accompanies
// the failure.
var ErrValidationFailed = errors.New("validation failed")
