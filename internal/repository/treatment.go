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

type treatmentRepository struct {
	db *sqlx.DB
}

func NewTreatmentRepository(db *sqlx.DB) TreatmentRepository {
	return &treatmentRepository{db: db}
}

// treatmentRow flattens the treatment + optionally joined medication columns.
type treatmentRow struct {
	model.Treatment
	MedID     *uuid.UUID `db:"med.id"`
	MedName   *string    `db:"med.name"`
	MedColor  *string    `db:"med.color"`
	MedIcon   *string    `db:"med.icon"`
	MedActive *bool      `db:"med.active"`
}

const treatmentSelect = `
	SELECT t.id, t.user_id, t.medication_id, t.medication_name_snapshot,
	       t.start_time, t.duration_days, t.is_indefinite, t.frequency_hours,
	       t.calculation_mode, t.status, t.notes, t.created_at, t.updated_at,
	       m.id as "med.id", m.name as "med.name", m.color as "med.color",
	       m.icon as "med.icon", m.active as "med.active"
	FROM treatments t
	LEFT JOIN medications m ON m.id = t.medication_id
`

func (row *treatmentRow) toTreatment() model.Treatment {
	t := row.Treatment
	if row.MedID != nil {
		t.Medication = &model.Medication{
			ID:     *row.MedID,
			UserID: t.UserID,
			Name:   derefString(row.MedName),
			Color:  row.MedColor,
			Icon:   row.MedIcon,
			Active: row.MedActive != nil && *row.MedActive,
		}
	}
	return t
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (r *treatmentRepository) Create(ctx context.Context, t *model.Treatment) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	query := `
		INSERT INTO treatments
			(id, user_id, medication_id, start_time, duration_days, is_indefinite,
			 frequency_hours, calculation_mode, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		t.ID, t.UserID, t.MedicationID, t.StartTime, t.DurationDays, t.IsIndefinite,
		t.FrequencyHours, t.CalculationMode, t.Status, t.Notes).
		Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert treatment: %w", err)
	}
	return nil
}

func (r *treatmentRepository) GetByID(ctx context.Context, userID int64, id uuid.UUID) (*model.Treatment, error) {
	var row treatmentRow
	err := r.db.GetContext(ctx, &row, treatmentSelect+` WHERE t.id = $1 AND t.user_id = $2`, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrTreatmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get treatment: %w", err)
	}
	t := row.toTreatment()
	return &t, nil
}

func (r *treatmentRepository) ListByUser(ctx context.Context, userID int64, status string) ([]model.Treatment, error) {
	query := treatmentSelect + ` WHERE t.user_id = $1`
	args := []interface{}{userID}
	if status != "" {
		query += ` AND t.status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY t.created_at DESC`

	var rows []treatmentRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list treatments: %w", err)
	}

	treatments := make([]model.Treatment, len(rows))
	for i := range rows {
		treatments[i] = rows[i].toTreatment()
	}
	return treatments, nil
}

func (r *treatmentRepository) ListActiveByUser(ctx context.Context, userID int64) ([]model.Treatment, error) {
	return r.ListByUser(ctx, userID, model.TreatmentActive)
}

func (r *treatmentRepository) Update(ctx context.Context, t *model.Treatment) error {
	query := `
		UPDATE treatments
		SET duration_days = $1, is_indefinite = $2, frequency_hours = $3,
		    calculation_mode = $4, notes = $5, updated_at = now()
		WHERE id = $6 AND user_id = $7
	`
	res, err := r.db.ExecContext(ctx, query,
		t.DurationDays, t.IsIndefinite, t.FrequencyHours,
		t.CalculationMode, t.Notes, t.ID, t.UserID)
	if err != nil {
		return fmt.Errorf("update treatment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrTreatmentNotFound
	}
	return nil
}

func (r *treatmentRepository) UpdateStatus(ctx context.Context, userID int64, id uuid.UUID, status string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE treatments SET status = $1, updated_at = now() WHERE id = $2 AND user_id = $3`,
		status, id, userID)
	if err != nil {
		return fmt.Errorf("update treatment status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrTreatmentNotFound
	}
	return nil
}

func (r *treatmentRepository) Delete(ctx context.Context, userID int64, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM treatments WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete treatment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrTreatmentNotFound
	}
	return nil
}

// DetachMedication freezes the medication name on dependent treatments before
// the medication row is removed. Synchronous snapshot, not a lazy join
// fallback.
func (r *treatmentRepository) DetachMedication(ctx context.Context, medicationID uuid.UUID, nameSnapshot string) error {
	query := `
		UPDATE treatments
		SET medication_id = NULL, medication_name_snapshot = $1, updated_at = now()
		WHERE medication_id = $2
	`
	if _, err := r.db.ExecContext(ctx, query, nameSnapshot, medicationID); err != nil {
		return fmt.Errorf("detach medication from treatments: %w", err)
	}
	return nil
}

func (r *treatmentRepository) ListAll(ctx context.Context) ([]model.Treatment, error) {
	treatments := []model.Treatment{}
	query := `
		SELECT id, user_id, medication_id, medication_name_snapshot, start_time,
		       duration_days, is_indefinite, frequency_hours, calculation_mode,
		       status, notes, created_at, updated_at
		FROM treatments ORDER BY created_at
	`
	if err := r.db.SelectContext(ctx, &treatments, query); err != nil {
		return nil, fmt.Errorf("list all treatments: %w", err)
	}
	return treatments, nil
}

func (r *treatmentRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM treatments`); err != nil {
		return fmt.Errorf("delete all treatments: %w", err)
	}
	return nil
}

func (r *treatmentRepository) Restore(ctx context.Context, t *model.Treatment) error {
	query := `
		INSERT INTO treatments
			(id, user_id, medication_id, medication_name_snapshot, start_time,
			 duration_days, is_indefinite, frequency_hours, calculation_mode,
			 status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := r.db.ExecContext(ctx, query,
		t.ID, t.UserID, t.MedicationID, t.MedicationNameSnapshot, t.StartTime,
		t.DurationDays, t.IsIndefinite, t.FrequencyHours, t.CalculationMode,
		t.Status, t.Notes, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("restore treatment: %w", err)
	}
	return nil
}
