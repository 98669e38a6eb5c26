package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"doseclock/internal/model"
	"doseclock/internal/repository"
	"doseclock/internal/schedule"
)

// Default preferences for a freshly created config row.
const (
	DefaultBackupFrequencyDays = 7
)

// TelegramSender is the delivery surface the services and the reminder
// dispatcher need. *TelegramClient implements it; tests substitute mocks.
type TelegramSender interface {
	SendDoseReminder(chatID, medicationName string, scheduledTime time.Time, doseID uuid.UUID) error
	SendAdvanceReminder(chatID, medicationName string, scheduledTime time.Time) error
	SendMissedAlert(chatID, medicationName string, scheduledTime time.Time) error
	SendWelcome(chatID string) error
	SendTestMessage(chatID string) error
	Configured() bool
}

// UserConfigService manages per-user preferences and the Telegram link.
type UserConfigService struct {
	configRepo repository.UserConfigRepository
	telegram   TelegramSender
	clock      schedule.Clock
}

func NewUserConfigService(
	configRepo repository.UserConfigRepository,
	telegram TelegramSender,
	clock schedule.Clock,
) *UserConfigService {
	return &UserConfigService{
		configRepo: configRepo,
		telegram:   telegram,
		clock:      clock,
	}
}

// GetOrCreate returns the user's config, creating the default row on first
// access.
func (s *UserConfigService) GetOrCreate(ctx context.Context, userID int64) (*model.UserConfig, error) {
	cfg, err := s.configRepo.GetByUserID(ctx, userID)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, model.ErrConfigNotFound) {
		return nil, err
	}

	cfg = &model.UserConfig{
		UserID:               userID,
		AdvanceReminder:      true,
		NotificationsEnabled: true,
		AutoBackup:           false,
		BackupFrequencyDays:  DefaultBackupFrequencyDays,
	}
	if err := s.configRepo.Create(ctx, cfg); err != nil {
		return nil, fmt.Errorf("create default config: %w", err)
	}

	log.Printf("[ConfigService] Created default config: user=%d", userID)
	return cfg, nil
}

// Update applies preference changes.
func (s *UserConfigService) Update(ctx context.Context, userID int64, req model.UpdateConfigRequest) (*model.UserConfig, error) {
	cfg, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.BackupFrequencyDays < 1 || req.BackupFrequencyDays > 90 {
		return nil, fmt.Errorf("%w: backup frequency must be between 1 and 90 days", model.ErrValidationFailed)
	}

	cfg.AdvanceReminder = req.AdvanceReminder
	cfg.NotificationsEnabled = req.NotificationsEnabled
	cfg.AutoBackup = req.AutoBackup
	cfg.BackupFrequencyDays = req.BackupFrequencyDays

	if err := s.configRepo.Update(ctx, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LinkTelegram stores the chat ID and verifies it by sending a welcome
// message. A failed welcome aborts the link so a typo'd chat ID never
// silently swallows reminders.
func (s *UserConfigService) LinkTelegram(ctx context.Context, userID int64, req model.LinkTelegramRequest) (*model.UserConfig, error) {
	chatID := strings.TrimSpace(req.ChatID)
	if chatID == "" {
		return nil, fmt.Errorf("%w: chat_id is required", model.ErrValidationFailed)
	}

	if err := s.telegram.SendWelcome(chatID); err != nil {
		return nil, fmt.Errorf("verify telegram chat: %w", err)
	}

	cfg, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	cfg.TelegramChatID = &chatID
	cfg.TelegramEnabled = true
	cfg.TelegramLinkedAt = &now

	if err := s.configRepo.Update(ctx, cfg); err != nil {
		return nil, err
	}

	log.Printf("[ConfigService] Telegram linked: user=%d", userID)
	return cfg, nil
}

// UnlinkTelegram disables delivery and clears the chat reference.
func (s *UserConfigService) UnlinkTelegram(ctx context.Context, userID int64) (*model.UserConfig, error) {
	cfg, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	cfg.TelegramChatID = nil
	cfg.TelegramEnabled = false
	cfg.TelegramLinkedAt = nil

	if err := s.configRepo.Update(ctx, cfg); err != nil {
		return nil, err
	}

	log.Printf("[ConfigService] Telegram unlinked: user=%d", userID)
	return cfg, nil
}

// SendTest delivers a test message to the linked chat.
func (s *UserConfigService) SendTest(ctx context.Context, userID int64) error {
	cfg, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return err
	}
	if !cfg.TelegramReady() {
		return model.ErrTelegramNotLinked
	}

	return s.telegram.SendTestMessage(*cfg.TelegramChatID)
}
