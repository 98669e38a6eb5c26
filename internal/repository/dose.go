package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"doseclock/internal/model"
)

type doseRepository struct {
	db *sqlx.DB
}

func NewDoseRepository(db *sqlx.DB) DoseRepository {
	return &doseRepository{db: db}
}

// doseRow flattens the dose + optionally joined treatment columns.
type doseRow struct {
	model.Dose
	TrID       *uuid.UUID `db:"tr.id"`
	TrUserID   *int64     `db:"tr.user_id"`
	TrMedID    *uuid.UUID `db:"tr.medication_id"`
	TrMedSnap  *string    `db:"tr.medication_name_snapshot"`
	TrFreq     *float64   `db:"tr.frequency_hours"`
	TrMode     *string    `db:"tr.calculation_mode"`
	TrStatus   *string    `db:"tr.status"`
	TrMedName  *string    `db:"tr.med_name"`
	TrStart    *time.Time `db:"tr.start_time"`
}

const doseSelect = `
	SELECT d.id, d.treatment_id, d.medication_name_snapshot, d.frequency_snapshot,
	       d.scheduled_time, d.confirmed_time, d.status, d.notes,
	       d.created_at, d.updated_at,
	       t.id as "tr.id", t.user_id as "tr.user_id",
	       t.medication_id as "tr.medication_id",
	       t.medication_name_snapshot as "tr.medication_name_snapshot",
	       t.frequency_hours as "tr.frequency_hours",
	       t.calculation_mode as "tr.calculation_mode",
	       t.status as "tr.status", t.start_time as "tr.start_time",
	       m.name as "tr.med_name"
	FROM doses d
	LEFT JOIN treatments t ON t.id = d.treatment_id
	LEFT JOIN medications m ON m.id = t.medication_id
`

func (row *doseRow) toDose() model.Dose {
	d := row.Dose
	if row.TrID != nil {
		t := &model.Treatment{
			ID:                     *row.TrID,
			MedicationID:           row.TrMedID,
			MedicationNameSnapshot: row.TrMedSnap,
		}
		if row.TrUserID != nil {
			t.UserID = *row.TrUserID
		}
		if row.TrFreq != nil {
			t.FrequencyHours = *row.TrFreq
		}
		if row.TrMode != nil {
			t.CalculationMode = *row.TrMode
		}
		if row.TrStatus != nil {
			t.Status = *row.TrStatus
		}
		if row.TrStart != nil {
			t.StartTime = *row.TrStart
		}
		if row.TrMedID != nil && row.TrMedName != nil {
			t.Medication = &model.Medication{ID: *row.TrMedID, Name: *row.TrMedName}
		}
		d.Treatment = t
	}
	return d
}

func (r *doseRepository) Create(ctx context.Context, d *model.Dose) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	query := `
		INSERT INTO doses (id, treatment_id, scheduled_time, confirmed_time, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		d.ID, d.TreatmentID, d.ScheduledTime, d.ConfirmedTime, d.Status, d.Notes).
		Scan(&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert dose: %w", err)
	}
	return nil
}

func (r *doseRepository) GetByID(ctx context.Context, userID int64, id uuid.UUID) (*model.Dose, error) {
	var row doseRow
	err := r.db.GetContext(ctx, &row,
		doseSelect+` WHERE d.id = $1 AND t.user_id = $2`, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrDoseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get dose: %w", err)
	}
	d := row.toDose()
	return &d, nil
}

func (r *doseRepository) GetByTreatmentAndTime(ctx context.Context, treatmentID uuid.UUID, scheduled time.Time) (*model.Dose, error) {
	var row doseRow
	err := r.db.GetContext(ctx, &row,
		doseSelect+` WHERE d.treatment_id = $1 AND d.scheduled_time = $2`, treatmentID, scheduled)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrDoseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get dose by treatment and time: %w", err)
	}
	d := row.toDose()
	return &d, nil
}

func (r *doseRepository) LatestByTreatment(ctx context.Context, treatmentID uuid.UUID) (*model.Dose, error) {
	var row doseRow
	err := r.db.GetContext(ctx, &row,
		doseSelect+` WHERE d.treatment_id = $1 ORDER BY d.scheduled_time DESC LIMIT 1`, treatmentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrDoseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get latest dose: %w", err)
	}
	d := row.toDose()
	return &d, nil
}

func (r *doseRepository) ListByTreatment(ctx context.Context, treatmentID uuid.UUID) ([]model.Dose, error) {
	var rows []doseRow
	err := r.db.SelectContext(ctx, &rows,
		doseSelect+` WHERE d.treatment_id = $1 ORDER BY d.scheduled_time DESC`, treatmentID)
	if err != nil {
		return nil, fmt.Errorf("list doses by treatment: %w", err)
	}
	return rowsToDoses(rows), nil
}

func (r *doseRepository) ListByUser(ctx context.Context, userID int64, status string, medicationID *uuid.UUID, limit int) ([]model.Dose, error) {
	query := doseSelect + ` WHERE t.user_id = $1`
	args := []interface{}{userID}

	if status != "" {
		args = append(args, status)
		query += fmt.Sprintf(` AND d.status = $%d`, len(args))
	}
	if medicationID != nil {
		args = append(args, *medicationID)
		query += fmt.Sprintf(` AND t.medication_id = $%d`, len(args))
	}

	args = append(args, limit)
	query += fmt.Sprintf(` ORDER BY d.scheduled_time DESC LIMIT $%d`, len(args))

	var rows []doseRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list doses: %w", err)
	}
	return rowsToDoses(rows), nil
}

func (r *doseRepository) ListPendingInRange(ctx context.Context, userID int64, from, to time.Time) ([]model.Dose, error) {
	query := doseSelect + `
		WHERE t.user_id = $1
		  AND t.status = 'active'
		  AND d.status = 'pending'
		  AND d.scheduled_time >= $2
		  AND d.scheduled_time <= $3
		ORDER BY d.scheduled_time
	`
	var rows []doseRow
	if err := r.db.SelectContext(ctx, &rows, query, userID, from, to); err != nil {
		return nil, fmt.Errorf("list pending doses in range: %w", err)
	}
	return rowsToDoses(rows), nil
}

func (r *doseRepository) Confirm(ctx context.Context, id uuid.UUID, confirmedTime time.Time, status string) error {
	query := `
		UPDATE doses
		SET confirmed_time = $1, status = $2, updated_at = now()
		WHERE id = $3
	`
	res, err := r.db.ExecContext(ctx, query, confirmedTime, status, id)
	if err != nil {
		return fmt.Errorf("confirm dose: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrDoseNotFound
	}
	return nil
}

func (r *doseRepository) MarkOverdueMissed(ctx context.Context, userID int64, cutoff time.Time) ([]model.Dose, error) {
	query := `
		WITH marked AS (
			UPDATE doses d
			SET status = 'missed', updated_at = now()
			FROM treatments t
			WHERE d.treatment_id = t.id
			  AND t.user_id = $1
			  AND d.status = 'pending'
			  AND d.scheduled_time < $2
			RETURNING d.id
		)
	` + doseSelect + `
		WHERE d.id IN (SELECT id FROM marked)
		ORDER BY d.scheduled_time
	`
	var rows []doseRow
	if err := r.db.SelectContext(ctx, &rows, query, userID, cutoff); err != nil {
		return nil, fmt.Errorf("mark overdue doses missed: %w", err)
	}

	// The outer select reads the pre-update snapshot of the table
	doses := rowsToDoses(rows)
	for i := range doses {
		doses[i].Status = model.DoseMissed
	}
	return doses, nil
}

func (r *doseRepository) CountByStatus(ctx context.Context, treatmentID uuid.UUID) (model.DoseStatusCounts, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'confirmed') AS confirmed,
			COUNT(*) FILTER (WHERE status = 'late')      AS late,
			COUNT(*) FILTER (WHERE status = 'missed')    AS missed,
			COUNT(*) FILTER (WHERE status = 'pending')   AS pending
		FROM doses
		WHERE treatment_id = $1
	`
	var counts model.DoseStatusCounts
	if err := r.db.GetContext(ctx, &counts, query, treatmentID); err != nil {
		return model.DoseStatusCounts{}, fmt.Errorf("count doses by status: %w", err)
	}
	return counts, nil
}

// DetachTreatment freezes display snapshots onto dependent doses before the
// treatment row is removed. Doses survive treatment deletion to preserve the
// audit history.
func (r *doseRepository) DetachTreatment(ctx context.Context, treatmentID uuid.UUID, nameSnapshot string, frequencySnapshot float64) error {
	query := `
		UPDATE doses
		SET treatment_id = NULL,
		    medication_name_snapshot = $1,
		    frequency_snapshot = $2,
		    updated_at = now()
		WHERE treatment_id = $3
	`
	if _, err := r.db.ExecContext(ctx, query, nameSnapshot, frequencySnapshot, treatmentID); err != nil {
		return fmt.Errorf("detach treatment from doses: %w", err)
	}
	return nil
}

func (r *doseRepository) ListAll(ctx context.Context) ([]model.Dose, error) {
	doses := []model.Dose{}
	query := `
		SELECT id, treatment_id, medication_name_snapshot, frequency_snapshot,
		       scheduled_time, confirmed_time, status, notes, created_at, updated_at
		FROM doses ORDER BY scheduled_time
	`
	if err := r.db.SelectContext(ctx, &doses, query); err != nil {
		return nil, fmt.Errorf("list all doses: %w", err)
	}
	return doses, nil
}

func (r *doseRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM doses`); err != nil {
		return fmt.Errorf("delete all doses: %w", err)
	}
	return nil
}

func (r *doseRepository) Restore(ctx context.Context, d *model.Dose) error {
	query := `
		INSERT INTO doses
			(id, treatment_id, medication_name_snapshot, frequency_snapshot,
			 scheduled_time, confirmed_time, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		d.ID, d.TreatmentID, d.MedicationNameSnapshot, d.FrequencySnapshot,
		d.ScheduledTime, d.ConfirmedTime, d.Status, d.Notes, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("restore dose: %w", err)
	}
	return nil
}

func rowsToDoses(rows []doseRow) []model.Dose {
	doses := make([]model.Dose, len(rows))
	for i := range rows {
		doses[i] = rows[i].toDose()
	}
	return doses
}
