package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"doseclock/internal/config"
	"doseclock/internal/model"
	"doseclock/internal/repository"
	"doseclock/internal/schedule"
)

// requiredBackupKeys are the top-level keys a document must carry before a
// restore will touch the database.
var requiredBackupKeys = []string{"version", "created_at", "data", "stats"}

// BackupStorage uploads backup documents to S3-compatible object storage.
type BackupStorage struct {
	s3Client *s3.Client
	bucket   string
}

// NewBackupStorage constructs an S3-compatible client for off-site backup
// copies (Cloudflare R2 endpoint layout).
func NewBackupStorage(ctx context.Context, cfg *config.Config) (*BackupStorage, error) {
	if !cfg.S3Configured() {
		return nil, fmt.Errorf("missing object storage configuration")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.S3AccountID)
	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	return &BackupStorage{s3Client: s3Client, bucket: cfg.S3BucketName}, nil
}

// Upload puts a backup document into the bucket under backups/<filename>.
func (st *BackupStorage) Upload(ctx context.Context, filename string, body []byte) error {
	key := "backups/" + filename
	_, err := st.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(st.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload backup: %w", err)
	}
	return nil
}

// BackupService exports and restores the full dataset as JSON documents.
type BackupService struct {
	medicationRepo   repository.MedicationRepository
	treatmentRepo    repository.TreatmentRepository
	doseRepo         repository.DoseRepository
	notificationRepo repository.NotificationRepository
	configRepo       repository.UserConfigRepository
	storage          *BackupStorage // nil when object storage is not configured
	backupDir        string
	clock            schedule.Clock
}

func NewBackupService(
	medicationRepo repository.MedicationRepository,
	treatmentRepo repository.TreatmentRepository,
	doseRepo repository.DoseRepository,
	notificationRepo repository.NotificationRepository,
	configRepo repository.UserConfigRepository,
	storage *BackupStorage,
	backupDir string,
	clock schedule.Clock,
) *BackupService {
	return &BackupService{
		medicationRepo:   medicationRepo,
		treatmentRepo:    treatmentRepo,
		doseRepo:         doseRepo,
		notificationRepo: notificationRepo,
		configRepo:       configRepo,
		storage:          storage,
		backupDir:        backupDir,
		clock:            clock,
	}
}

// Create exports everything to a timestamped JSON file in the backup
// directory, plus an off-site copy when object storage is configured.
func (s *BackupService) Create(ctx context.Context) (*model.BackupInfo, error) {
	doc, err := s.buildDocument(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal backup: %w", err)
	}

	if err := os.MkdirAll(s.backupDir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}

	filename := "backup_" + doc.CreatedAt.Format("20060102_150405") + ".json"
	path := filepath.Join(s.backupDir, filename)
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return nil, fmt.Errorf("write backup file: %w", err)
	}

	if s.storage != nil {
		if err := s.storage.Upload(ctx, filename, payload); err != nil {
			// Local copy exists; the off-site copy is best effort
			log.Printf("[BackupService] Off-site upload failed: file=%s err=%v", filename, err)
		} else {
			log.Printf("[BackupService] Off-site copy uploaded: file=%s", filename)
		}
	}

	log.Printf("[BackupService] Backup created: file=%s medications=%d treatments=%d doses=%d",
		filename, doc.Stats.MedicationCount, doc.Stats.TreatmentCount, doc.Stats.DoseCount)

	createdAt := doc.CreatedAt
	return &model.BackupInfo{
		Filename:   filename,
		SizeBytes:  int64(len(payload)),
		ModifiedAt: doc.CreatedAt,
		Valid:      true,
		CreatedAt:  &createdAt,
		Stats:      doc.Stats,
	}, nil
}

func (s *BackupService) buildDocument(ctx context.Context) (*model.BackupDocument, error) {
	medications, err := s.medicationRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("export medications: %w", err)
	}
	treatments, err := s.treatmentRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("export treatments: %w", err)
	}
	doses, err := s.doseRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("export doses: %w", err)
	}
	notifications, err := s.notificationRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("export notifications: %w", err)
	}
	configs, err := s.configRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("export configs: %w", err)
	}

	return &model.BackupDocument{
		Version:   model.BackupVersion,
		CreatedAt: s.clock.Now(),
		Data: model.BackupData{
			Medications:   medications,
			Treatments:    treatments,
			Doses:         doses,
			Notifications: notifications,
			Configs:       configs,
		},
		Stats: model.BackupStats{
			MedicationCount: len(medications),
			TreatmentCount:  len(treatments),
			DoseCount:       len(doses),
		},
	}, nil
}

// List returns the stored backup files, newest first, with validity checked
// per file.
func (s *BackupService) List(ctx context.Context) ([]model.BackupInfo, error) {
	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []model.BackupInfo{}, nil
		}
		return nil, fmt.Errorf("read backup dir: %w", err)
	}

	infos := make([]model.BackupInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		fileInfo, err := entry.Info()
		if err != nil {
			continue
		}

		info := model.BackupInfo{
			Filename:   entry.Name(),
			SizeBytes:  fileInfo.Size(),
			ModifiedAt: fileInfo.ModTime().UTC(),
		}

		if doc, err := s.readDocument(entry.Name()); err == nil {
			info.Valid = true
			createdAt := doc.CreatedAt
			info.CreatedAt = &createdAt
			info.Stats = doc.Stats
		}

		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].ModifiedAt.After(infos[j].ModifiedAt)
	})
	return infos, nil
}

// Restore wipes the dataset and reloads it from the named backup. The
// document is fully validated before any destructive step. The reload itself
// is sequential, not transactional; a failure mid-restore leaves a partial
// dataset, recoverable by restoring again.
func (s *BackupService) Restore(ctx context.Context, filename string) (*model.RestoreResult, error) {
	doc, err := s.readDocument(filename)
	if err != nil {
		return nil, err
	}

	// Clear children before parents
	if err := s.notificationRepo.DeleteAll(ctx); err != nil {
		return nil, fmt.Errorf("clear notifications: %w", err)
	}
	if err := s.doseRepo.DeleteAll(ctx); err != nil {
		return nil, fmt.Errorf("clear doses: %w", err)
	}
	if err := s.treatmentRepo.DeleteAll(ctx); err != nil {
		return nil, fmt.Errorf("clear treatments: %w", err)
	}
	if err := s.medicationRepo.DeleteAll(ctx); err != nil {
		return nil, fmt.Errorf("clear medications: %w", err)
	}
	if err := s.configRepo.DeleteAll(ctx); err != nil {
		return nil, fmt.Errorf("clear configs: %w", err)
	}

	// Reload parents before children
	for i := range doc.Data.Medications {
		if err := s.medicationRepo.Restore(ctx, &doc.Data.Medications[i]); err != nil {
			return nil, fmt.Errorf("restore medication %s: %w", doc.Data.Medications[i].ID, err)
		}
	}
	for i := range doc.Data.Treatments {
		if err := s.treatmentRepo.Restore(ctx, &doc.Data.Treatments[i]); err != nil {
			return nil, fmt.Errorf("restore treatment %s: %w", doc.Data.Treatments[i].ID, err)
		}
	}
	for i := range doc.Data.Doses {
		if err := s.doseRepo.Restore(ctx, &doc.Data.Doses[i]); err != nil {
			return nil, fmt.Errorf("restore dose %s: %w", doc.Data.Doses[i].ID, err)
		}
	}
	for i := range doc.Data.Notifications {
		if err := s.notificationRepo.Restore(ctx, &doc.Data.Notifications[i]); err != nil {
			return nil, fmt.Errorf("restore notification %s: %w", doc.Data.Notifications[i].ID, err)
		}
	}
	for i := range doc.Data.Configs {
		if err := s.configRepo.Restore(ctx, &doc.Data.Configs[i]); err != nil {
			return nil, fmt.Errorf("restore config %s: %w", doc.Data.Configs[i].ID, err)
		}
	}

	log.Printf("[BackupService] Restore complete: file=%s", filename)
	return &model.RestoreResult{
		Restored: map[string]int{
			"medications":   len(doc.Data.Medications),
			"treatments":    len(doc.Data.Treatments),
			"doses":         len(doc.Data.Doses),
			"notifications": len(doc.Data.Notifications),
			"configs":       len(doc.Data.Configs),
		},
		BackupDate: doc.CreatedAt,
	}, nil
}

// ReadFile returns the raw bytes of a stored backup document, for download.
// The filename goes through the same traversal checks as every other lookup.
func (s *BackupService) ReadFile(filename string) ([]byte, error) {
	path, err := s.backupPath(filename)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, model.ErrBackupNotFound
		}
		return nil, fmt.Errorf("read backup file: %w", err)
	}
	return raw, nil
}

// Delete removes a stored backup file.
func (s *BackupService) Delete(ctx context.Context, filename string) error {
	path, err := s.backupPath(filename)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return model.ErrBackupNotFound
		}
		return fmt.Errorf("delete backup file: %w", err)
	}
	return nil
}

// readDocument loads and validates a backup file. The four top-level keys
// must all be present and the version recognized.
func (s *BackupService) readDocument(filename string) (*model.BackupDocument, error) {
	path, err := s.backupPath(filename)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, model.ErrBackupNotFound
		}
		return nil, fmt.Errorf("read backup file: %w", err)
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil {
		return nil, fmt.Errorf("%w: not a JSON object", model.ErrBackupInvalid)
	}
	for _, key := range requiredBackupKeys {
		if _, ok := keys[key]; !ok {
			return nil, fmt.Errorf("%w: missing key %q", model.ErrBackupInvalid, key)
		}
	}

	var doc model.BackupDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrBackupInvalid, err)
	}
	if doc.Version != model.BackupVersion {
		return nil, fmt.Errorf("%w: unsupported version %q", model.ErrBackupInvalid, doc.Version)
	}

	return &doc, nil
}

// backupPath resolves a filename inside the backup directory, rejecting path
// traversal.
func (s *BackupService) backupPath(filename string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) || !strings.HasSuffix(filename, ".json") {
		return "", fmt.Errorf("%w: bad filename", model.ErrBackupInvalid)
	}
	return filepath.Join(s.backupDir, filename), nil
}

// RunAutoBackups creates one backup when any user's auto-backup cadence is
// due, then advances the due users' last-backup markers. Called from the
// reminder daemon tick.
func (s *BackupService) RunAutoBackups(ctx context.Context) error {
	configs, err := s.configRepo.ListAutoBackupEnabled(ctx)
	if err != nil {
		return fmt.Errorf("list auto-backup configs: %w", err)
	}

	now := s.clock.Now()
	var due []int64
	for _, cfg := range configs {
		interval := time.Duration(cfg.BackupFrequencyDays) * 24 * time.Hour
		if cfg.LastBackupAt == nil || now.Sub(*cfg.LastBackupAt) >= interval {
			due = append(due, cfg.UserID)
		}
	}

	if len(due) == 0 {
		return nil
	}

	// One dataset, one backup; every due user shares it
	if _, err := s.Create(ctx); err != nil {
		return fmt.Errorf("auto backup: %w", err)
	}

	for _, userID := range due {
		if err := s.configRepo.UpdateLastBackup(ctx, userID, now); err != nil {
			log.Printf("[BackupService] Failed to advance last-backup marker: user=%d err=%v", userID, err)
		}
	}

	log.Printf("[BackupService] Auto backup complete: users=%d", len(due))
	return nil
}
