package model

import (
	"errors"
	"time"
)

// BackupVersion is the format version written into backup documents.
const BackupVersion = "1.0"

// BackupDocument is the format-stable JSON backup envelope. The four top-level
// keys (version, created_at, data, stats) are all required; restore validates
// them before any destructive action.
type BackupDocument struct {
	Version   string      `json:"version"`
	CreatedAt time.Time   `json:"created_at"`
	Data      BackupData  `json:"data"`
	Stats     BackupStats `json:"stats"`
}

// BackupData holds every entity, restored in dependency order:
// medications -> treatments -> doses -> notifications -> configs.
type BackupData struct {
	Medications   []Medication   `json:"medications"`
	Treatments    []Treatment    `json:"treatments"`
	Doses         []Dose         `json:"doses"`
	Notifications []Notification `json:"notifications"`
	Configs       []UserConfig   `json:"configs"`
}

// BackupStats summarizes a backup document.
type BackupStats struct {
	MedicationCount int `json:"medication_count"`
	TreatmentCount  int `json:"treatment_count"`
	DoseCount       int `json:"dose_count"`
}

// BackupInfo describes one stored backup file.
type BackupInfo struct {
	Filename   string      `json:"filename"`
	SizeBytes  int64       `json:"size_bytes"`
	ModifiedAt time.Time   `json:"modified_at"`
	Valid      bool        `json:"valid"`
	CreatedAt  *time.Time  `json:"created_at,omitempty"`
	Stats      BackupStats `json:"stats"`
}

// RestoreResult reports what a restore loaded.
type RestoreResult struct {
	Restored   map[string]int `json:"restored"`
	BackupDate time.Time      `json:"backup_date"`
}

var (
	// ErrBackupNotFound is returned when the named backup file does not exist.
	ErrBackupNotFound = errors.New("backup file not found")

	// ErrBackupInvalid is returned when a backup document fails validation.
	ErrBackupInvalid = errors.New("invalid backup file")
)
