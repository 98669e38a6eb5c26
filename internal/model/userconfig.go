package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// UserConfig holds per-user reminder and backup preferences. One row per user,
// created on first access if absent.
type UserConfig struct {
	ID     uuid.UUID `db:"id" json:"id"`
	UserID int64     `db:"user_id" json:"-"`

	// AdvanceReminder enables the reminder a few minutes before each dose.
	AdvanceReminder      bool `db:"advance_reminder" json:"advance_reminder"`
	NotificationsEnabled bool `db:"notifications_enabled" json:"notifications_enabled"`

	AutoBackup           bool       `db:"auto_backup" json:"auto_backup"`
	BackupFrequencyDays  int        `db:"backup_frequency_days" json:"backup_frequency_days"`
	LastBackupAt         *time.Time `db:"last_backup_at" json:"last_backup_at,omitempty"`

	TelegramChatID   *string    `db:"telegram_chat_id" json:"telegram_chat_id,omitempty"`
	TelegramEnabled  bool       `db:"telegram_enabled" json:"telegram_enabled"`
	TelegramLinkedAt *time.Time `db:"telegram_linked_at" json:"telegram_linked_at,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TelegramReady reports whether reminders can be delivered to this user.
func (c *UserConfig) TelegramReady() bool {
	return c.TelegramEnabled && c.TelegramChatID != nil && *c.TelegramChatID != ""
}

// UpdateConfigRequest is the request body for updating preferences.
type UpdateConfigRequest struct {
	AdvanceReminder      bool `json:"advance_reminder"`
	NotificationsEnabled bool `json:"notifications_enabled"`
	AutoBackup           bool `json:"auto_backup"`
	BackupFrequencyDays  int  `json:"backup_frequency_days"`
}

// LinkTelegramRequest is the request body for linking a Telegram chat.
type LinkTelegramRequest struct {
	ChatID string `json:"chat_id"`
}

var (
	// ErrConfigNotFound is returned when a user config row is missing.
	ErrConfigNotFound = errors.New("user config not found")

	// ErrTelegramNotLinked is returned for Telegram operations without a linked chat.
	ErrTelegramNotLinked = errors.New("telegram chat not linked")
)
