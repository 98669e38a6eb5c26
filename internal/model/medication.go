package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Medication represents a medicine owned by a user.
// Deleting a medication snapshots its name onto dependent treatments and doses,
// so historical records keep a readable name after the row is gone.
type Medication struct {
	ID        uuid.UUID `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"-"`
	Name      string    `db:"name" json:"name"`
	Color     *string   `db:"color" json:"color,omitempty"` // hex, e.g. #FF5733
	Icon      *string   `db:"icon" json:"icon,omitempty"`
	Notes     *string   `db:"notes" json:"notes,omitempty"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// CreateMedicationRequest is the request body for creating a medication.
type CreateMedicationRequest struct {
	Name  string  `json:"name"`
	Color *string `json:"color,omitempty"`
	Icon  *string `json:"icon,omitempty"`
	Notes *string `json:"notes,omitempty"`
}

// UpdateMedicationRequest is the request body for updating a medication.
type UpdateMedicationRequest struct {
	Name  string  `json:"name"`
	Color *string `json:"color,omitempty"`
	Icon  *string `json:"icon,omitempty"`
	Notes *string `json:"notes,omitempty"`
}

var (
	// ErrMedicationNotFound is returned when a medication cannot be found for the user.
	ErrMedicationNotFound = errors.New("medication not found")
)
