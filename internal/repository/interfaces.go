package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"doseclock/internal/model"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	// ListIDsWithActiveTreatments returns the users the periodic tick must
	// sweep: everyone owning at least one active treatment.
	ListIDsWithActiveTreatments(ctx context.Context) ([]int64, error)
}

type MedicationRepository interface {
	Create(ctx context.Context, medication *model.Medication) error
	GetByID(ctx context.Context, userID int64, id uuid.UUID) (*model.Medication, error)
	ListByUser(ctx context.Context, userID int64, activeOnly bool) ([]model.Medication, error)
	Update(ctx context.Context, medication *model.Medication) error
	// Delete removes the row. Callers snapshot the name onto dependent
	// treatments first (TreatmentRepository.DetachMedication).
	Delete(ctx context.Context, userID int64, id uuid.UUID) error

	// Backup support
	ListAll(ctx context.Context) ([]model.Medication, error)
	DeleteAll(ctx context.Context) error
	Restore(ctx context.Context, medication *model.Medication) error
}

type TreatmentRepository interface {
	Create(ctx context.Context, treatment *model.Treatment) error
	GetByID(ctx context.Context, userID int64, id uuid.UUID) (*model.Treatment, error)
	ListByUser(ctx context.Context, userID int64, status string) ([]model.Treatment, error)
	ListActiveByUser(ctx context.Context, userID int64) ([]model.Treatment, error)
	Update(ctx context.Context, treatment *model.Treatment) error
	UpdateStatus(ctx context.Context, userID int64, id uuid.UUID, status string) error
	// Delete removes the row. Callers snapshot display data onto dependent
	// doses first (DoseRepository.DetachTreatment).
	Delete(ctx context.Context, userID int64, id uuid.UUID) error
	// DetachMedication nulls the medication reference on every treatment of
	// the medication and freezes the name snapshot. Runs synchronously at
	// medication delete time.
	DetachMedication(ctx context.Context, medicationID uuid.UUID, nameSnapshot string) error

	// Backup support
	ListAll(ctx context.Context) ([]model.Treatment, error)
	DeleteAll(ctx context.Context) error
	Restore(ctx context.Context, treatment *model.Treatment) error
}

type DoseRepository interface {
	Create(ctx context.Context, dose *model.Dose) error
	GetByID(ctx context.Context, userID int64, id uuid.UUID) (*model.Dose, error)
	// GetByTreatmentAndTime finds an already-materialized dose row for an
	// exact scheduled instant. Returns ErrDoseNotFound when absent.
	GetByTreatmentAndTime(ctx context.Context, treatmentID uuid.UUID, scheduled time.Time) (*model.Dose, error)
	// LatestByTreatment returns the most recent dose by scheduled time, or
	// ErrDoseNotFound for a treatment with no history.
	LatestByTreatment(ctx context.Context, treatmentID uuid.UUID) (*model.Dose, error)
	ListByTreatment(ctx context.Context, treatmentID uuid.UUID) ([]model.Dose, error)
	ListByUser(ctx context.Context, userID int64, status string, medicationID *uuid.UUID, limit int) ([]model.Dose, error)
	// ListPendingInRange returns pending doses with scheduled_time in [from, to]
	// for one user, joined with their treatment for display. Backed by the
	// scheduled_time index.
	ListPendingInRange(ctx context.Context, userID int64, from, to time.Time) ([]model.Dose, error)
	// Confirm records the confirmation time and the recomputed status.
	Confirm(ctx context.Context, id uuid.UUID, confirmedTime time.Time, status string) error
	// MarkOverdueMissed bulk-transitions the user's pending doses scheduled
	// before cutoff to missed. Never touches confirmed doses (the pending
	// filter excludes them). Idempotent; returns the doses it transitioned,
	// joined with their treatments, so a missed dose is reported exactly once.
	MarkOverdueMissed(ctx context.Context, userID int64, cutoff time.Time) ([]model.Dose, error)
	CountByStatus(ctx context.Context, treatmentID uuid.UUID) (model.DoseStatusCounts, error)
	// DetachTreatment freezes display snapshots onto every dose of the
	// treatment and nulls the reference. Runs synchronously at treatment
	// delete time.
	DetachTreatment(ctx context.Context, treatmentID uuid.UUID, nameSnapshot string, frequencySnapshot float64) error

	// Backup support
	ListAll(ctx context.Context) ([]model.Dose, error)
	DeleteAll(ctx context.Context) error
	Restore(ctx context.Context, dose *model.Dose) error
}

type NotificationRepository interface {
	// Create inserts a notification record. For sent=true rows the partial
	// unique index on (dose_id, kind) makes the check-then-insert atomic;
	// a duplicate returns ErrNotificationAlreadySent.
	Create(ctx context.Context, notification *model.Notification) error
	// SentExists reports whether a sent=true record exists for the dose and
	// kind. This is the dedup check the dispatcher runs before delivery.
	SentExists(ctx context.Context, doseID uuid.UUID, kind string) (bool, error)
	// ListUpcomingForUser returns unsent notifications scheduled inside
	// [from, to] for the user's active treatments, ordered by scheduled time.
	ListUpcomingForUser(ctx context.Context, userID int64, from, to time.Time) ([]model.Notification, error)

	// Backup support
	ListAll(ctx context.Context) ([]model.Notification, error)
	DeleteAll(ctx context.Context) error
	Restore(ctx context.Context, notification *model.Notification) error
}

type UserConfigRepository interface {
	GetByUserID(ctx context.Context, userID int64) (*model.UserConfig, error)
	Create(ctx context.Context, config *model.UserConfig) error
	Update(ctx context.Context, config *model.UserConfig) error
	UpdateLastBackup(ctx context.Context, userID int64, backupTime time.Time) error
	// ListTelegramEnabled returns every config with Telegram delivery active
	// and a chat ID present. The dispatcher iterates these per tick.
	ListTelegramEnabled(ctx context.Context) ([]model.UserConfig, error)
	// ListAutoBackupEnabled returns configs with auto-backup switched on.
	ListAutoBackupEnabled(ctx context.Context) ([]model.UserConfig, error)

	// Backup support
	ListAll(ctx context.Context) ([]model.UserConfig, error)
	DeleteAll(ctx context.Context) error
	Restore(ctx context.Context, config *model.UserConfig) error
}
