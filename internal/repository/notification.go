package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"doseclock/internal/model"
)

type notificationRepository struct {
	db *sqlx.DB
}

func NewNotificationRepository(db *sqlx.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

// Create inserts a notification record. A partial unique index
// (dose_id, kind) WHERE sent makes the dispatcher's check-then-insert atomic
// across concurrent ticks: the second insert fails instead of double-sending.
func (r *notificationRepository) Create(ctx context.Context, n *model.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	query := `
		INSERT INTO notifications (id, dose_id, kind, scheduled_time, sent, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		n.ID, n.DoseID, n.Kind, n.ScheduledTime, n.Sent, n.SentAt).
		Scan(&n.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" { // unique_violation
			return model.ErrNotificationAlreadySent
		}
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (r *notificationRepository) SentExists(ctx context.Context, doseID uuid.UUID, kind string) (bool, error) {
	var exists bool
	query := `
		SELECT EXISTS(
			SELECT 1 FROM notifications
			WHERE dose_id = $1 AND kind = $2 AND sent = true
		)
	`
	if err := r.db.GetContext(ctx, &exists, query, doseID, kind); err != nil {
		return false, fmt.Errorf("check sent notification: %w", err)
	}
	return exists, nil
}

func (r *notificationRepository) ListUpcomingForUser(ctx context.Context, userID int64, from, to time.Time) ([]model.Notification, error) {
	query := `
		SELECT n.id, n.dose_id, n.kind, n.scheduled_time, n.sent, n.sent_at, n.created_at
		FROM notifications n
		JOIN doses d ON d.id = n.dose_id
		JOIN treatments t ON t.id = d.treatment_id
		WHERE t.user_id = $1
		  AND t.status = 'active'
		  AND n.sent = false
		  AND n.scheduled_time >= $2
		  AND n.scheduled_time <= $3
		ORDER BY n.scheduled_time
	`
	notifications := []model.Notification{}
	if err := r.db.SelectContext(ctx, &notifications, query, userID, from, to); err != nil {
		return nil, fmt.Errorf("list upcoming notifications: %w", err)
	}
	return notifications, nil
}

func (r *notificationRepository) ListAll(ctx context.Context) ([]model.Notification, error) {
	notifications := []model.Notification{}
	if err := r.db.SelectContext(ctx, &notifications,
		`SELECT * FROM notifications ORDER BY scheduled_time`); err != nil {
		return nil, fmt.Errorf("list all notifications: %w", err)
	}
	return notifications, nil
}

func (r *notificationRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM notifications`); err != nil {
		return fmt.Errorf("delete all notifications: %w", err)
	}
	return nil
}

func (r *notificationRepository) Restore(ctx context.Context, n *model.Notification) error {
	query := `
		INSERT INTO notifications (id, dose_id, kind, scheduled_time, sent, sent_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		n.ID, n.DoseID, n.Kind, n.ScheduledTime, n.Sent, n.SentAt, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("restore notification: %w", err)
	}
	return nil
}
