package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Notification kinds
const (
	// NotificationMain is the reminder at the exact dose time.
	NotificationMain = "main"

	// NotificationAdvance is the reminder sent a few minutes ahead.
	NotificationAdvance = "advance"

	// NotificationMissed is the alert sent when a dose crosses the grace
	// deadline unconfirmed.
	NotificationMissed = "missed"
)

// AdvanceReminderMinutes is how far ahead of the dose the advance reminder is
// nominally scheduled.
const AdvanceReminderMinutes = 5

// Notification records a reminder dispatch for a dose. At most one sent=true
// row may exist per (dose, kind); that row is the dedup key that prevents
// repeat sends across ticks. Notifications cascade with their dose.
type Notification struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	DoseID        uuid.UUID  `db:"dose_id" json:"dose_id"`
	Kind          string     `db:"kind" json:"kind"`
	ScheduledTime time.Time  `db:"scheduled_time" json:"scheduled_time"`
	Sent          bool       `db:"sent" json:"sent"`
	SentAt        *time.Time `db:"sent_at" json:"sent_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

var (
	// ErrNotificationNotFound is returned when a notification cannot be found.
	ErrNotificationNotFound = errors.New("notification not found")

	// ErrNotificationAlreadySent is returned when the dedup constraint rejects
	// a second sent record for the same dose and kind.
	ErrNotificationAlreadySent = errors.New("notification already sent for dose and kind")
)
