package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Dose statuses. A pending dose moves to confirmed or late on confirmation,
// or to missed when the sweep runs past the grace deadline. A missed dose may
// still be confirmed afterwards; lateness is recorded, never rejected.
const (
	DosePending   = "pending"
	DoseConfirmed = "confirmed"
	DoseLate      = "late"
	DoseMissed    = "missed"
)

// Dose is one concrete scheduled intake derived from a treatment.
// Doses are materialized lazily: one "next due" row per treatment at a time,
// never a precomputed schedule.
type Dose struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	TreatmentID *uuid.UUID `db:"treatment_id" json:"treatment_id,omitempty"`

	// Snapshot fields preserve display data after the treatment is deleted.
	MedicationNameSnapshot *string  `db:"medication_name_snapshot" json:"medication_name_snapshot,omitempty"`
	FrequencySnapshot      *float64 `db:"frequency_snapshot" json:"frequency_snapshot,omitempty"`

	ScheduledTime time.Time  `db:"scheduled_time" json:"scheduled_time"`
	ConfirmedTime *time.Time `db:"confirmed_time" json:"confirmed_time,omitempty"`
	Status        string     `db:"status" json:"status"`
	Notes         *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`

	// Joined field for display; nil when the treatment was deleted.
	Treatment *Treatment `json:"treatment,omitempty"`
}

// MedicationDisplayName resolves the medication name through the live
// treatment when possible, otherwise through the snapshots.
func (d *Dose) MedicationDisplayName() string {
	if d.Treatment != nil {
		return d.Treatment.MedicationDisplayName()
	}
	if d.MedicationNameSnapshot != nil && *d.MedicationNameSnapshot != "" {
		return *d.MedicationNameSnapshot
	}
	return "Deleted medication"
}

// ConfirmDoseResult is returned after confirming a dose.
type ConfirmDoseResult struct {
	DoseID           uuid.UUID `json:"dose_id"`
	Status           string    `json:"status"`
	ConfirmationTime time.Time `json:"confirmation_time"`
	WasOnTime        bool      `json:"was_on_time"`
}

// DoseStatusCounts holds per-status dose counts for a treatment.
type DoseStatusCounts struct {
	Confirmed int `db:"confirmed"`
	Late      int `db:"late"`
	Missed    int `db:"missed"`
	Pending   int `db:"pending"`
}

// Total returns the overall number of doses counted.
func (c DoseStatusCounts) Total() int {
	return c.Confirmed + c.Late + c.Missed + c.Pending
}

var (
	// ErrDoseNotFound is returned when a dose cannot be found for the user.
	ErrDoseNotFound = errors.New("dose not found")
)
