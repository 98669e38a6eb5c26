package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"doseclock/internal/model"
	"doseclock/internal/repository"
)

// MedicationService handles the medication catalog.
type MedicationService struct {
	medicationRepo repository.MedicationRepository
	treatmentRepo  repository.TreatmentRepository
}

func NewMedicationService(
	medicationRepo repository.MedicationRepository,
	treatmentRepo repository.TreatmentRepository,
) *MedicationService {
	return &MedicationService{
		medicationRepo: medicationRepo,
		treatmentRepo:  treatmentRepo,
	}
}

// Create adds a medication to the user's catalog.
func (s *MedicationService) Create(ctx context.Context, userID int64, req model.CreateMedicationRequest) (*model.Medication, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: medication name is required", model.ErrValidationFailed)
	}

	medication := &model.Medication{
		UserID: userID,
		Name:   name,
		Color:  req.Color,
		Icon:   req.Icon,
		Notes:  req.Notes,
		Active: true,
	}

	if err := s.medicationRepo.Create(ctx, medication); err != nil {
		return nil, fmt.Errorf("create medication: %w", err)
	}
	return medication, nil
}

// GetByID returns one medication owned by the user.
func (s *MedicationService) GetByID(ctx context.Context, userID int64, id uuid.UUID) (*model.Medication, error) {
	return s.medicationRepo.GetByID(ctx, userID, id)
}

// List returns the user's medications, optionally active only.
func (s *MedicationService) List(ctx context.Context, userID int64, activeOnly bool) ([]model.Medication, error) {
	return s.medicationRepo.ListByUser(ctx, userID, activeOnly)
}

// Update modifies a medication's display fields.
func (s *MedicationService) Update(ctx context.Context, userID int64, id uuid.UUID, req model.UpdateMedicationRequest) (*model.Medication, error) {
	medication, err := s.medicationRepo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: medication name is required", model.ErrValidationFailed)
	}

	medication.Name = name
	medication.Color = req.Color
	medication.Icon = req.Icon
	medication.Notes = req.Notes

	if err := s.medicationRepo.Update(ctx, medication); err != nil {
		return nil, err
	}
	return medication, nil
}

// SetActive archives or reactivates a medication without touching history.
func (s *MedicationService) SetActive(ctx context.Context, userID int64, id uuid.UUID, active bool) (*model.Medication, error) {
	medication, err := s.medicationRepo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	medication.Active = active
	if err := s.medicationRepo.Update(ctx, medication); err != nil {
		return nil, err
	}
	return medication, nil
}

// Delete removes a medication. Before the row goes, its name is frozen onto
// every dependent treatment so history stays readable.
func (s *MedicationService) Delete(ctx context.Context, userID int64, id uuid.UUID) error {
	medication, err := s.medicationRepo.GetByID(ctx, userID, id)
	if err != nil {
		return err
	}

	if err := s.treatmentRepo.DetachMedication(ctx, medication.ID, medication.Name); err != nil {
		return fmt.Errorf("snapshot medication name: %w", err)
	}

	if err := s.medicationRepo.Delete(ctx, userID, id); err != nil {
		return err
	}

	log.Printf("[MedicationService] Deleted medication=%s user=%d (name snapshotted to treatments)", id, userID)
	return nil
}
