package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"doseclock/internal/model"
)

type medicationRepository struct {
	db *sqlx.DB
}

func NewMedicationRepository(db *sqlx.DB) MedicationRepository {
	return &medicationRepository{db: db}
}

func (r *medicationRepository) Create(ctx context.Context, m *model.Medication) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	query := `
		INSERT INTO medications (id, user_id, name, color, icon, notes, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		m.ID, m.UserID, m.Name, m.Color, m.Icon, m.Notes, m.Active).
		Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert medication: %w", err)
	}
	return nil
}

func (r *medicationRepository) GetByID(ctx context.Context, userID int64, id uuid.UUID) (*model.Medication, error) {
	var m model.Medication
	err := r.db.GetContext(ctx, &m,
		`SELECT * FROM medications WHERE id = $1 AND user_id = $2`, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrMedicationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get medication: %w", err)
	}
	return &m, nil
}

func (r *medicationRepository) ListByUser(ctx context.Context, userID int64, activeOnly bool) ([]model.Medication, error) {
	query := `SELECT * FROM medications WHERE user_id = $1`
	if activeOnly {
		query += ` AND active = true`
	}
	query += ` ORDER BY name`

	medications := []model.Medication{}
	if err := r.db.SelectContext(ctx, &medications, query, userID); err != nil {
		return nil, fmt.Errorf("list medications: %w", err)
	}
	return medications, nil
}

func (r *medicationRepository) Update(ctx context.Context, m *model.Medication) error {
	query := `
		UPDATE medications
		SET name = $1, color = $2, icon = $3, notes = $4, active = $5, updated_at = now()
		WHERE id = $6 AND user_id = $7
	`
	res, err := r.db.ExecContext(ctx, query,
		m.Name, m.Color, m.Icon, m.Notes, m.Active, m.ID, m.UserID)
	if err != nil {
		return fmt.Errorf("update medication: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrMedicationNotFound
	}
	return nil
}

func (r *medicationRepository) Delete(ctx context.Context, userID int64, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM medications WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete medication: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrMedicationNotFound
	}
	return nil
}

func (r *medicationRepository) ListAll(ctx context.Context) ([]model.Medication, error) {
	medications := []model.Medication{}
	if err := r.db.SelectContext(ctx, &medications, `SELECT * FROM medications ORDER BY created_at`); err != nil {
		return nil, fmt.Errorf("list all medications: %w", err)
	}
	return medications, nil
}

func (r *medicationRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM medications`); err != nil {
		return fmt.Errorf("delete all medications: %w", err)
	}
	return nil
}

// Restore inserts a medication preserving its original id and timestamps.
func (r *medicationRepository) Restore(ctx context.Context, m *model.Medication) error {
	query := `
		INSERT INTO medications (id, user_id, name, color, icon, notes, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		m.ID, m.UserID, m.Name, m.Color, m.Icon, m.Notes, m.Active, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("restore medication: %w", err)
	}
	return nil
}
