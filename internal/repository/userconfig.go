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

type userConfigRepository struct {
	db *sqlx.DB
}

func NewUserConfigRepository(db *sqlx.DB) UserConfigRepository {
	return &userConfigRepository{db: db}
}

func (r *userConfigRepository) GetByUserID(ctx context.Context, userID int64) (*model.UserConfig, error) {
	var cfg model.UserConfig
	err := r.db.GetContext(ctx, &cfg, `SELECT * FROM user_configs WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrConfigNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user config: %w", err)
	}
	return &cfg, nil
}

func (r *userConfigRepository) Create(ctx context.Context, cfg *model.UserConfig) error {
	if cfg.ID == uuid.Nil {
		cfg.ID = uuid.New()
	}
	query := `
		INSERT INTO user_configs
			(id, user_id, advance_reminder, notifications_enabled, auto_backup,
			 backup_frequency_days, last_backup_at, telegram_chat_id,
			 telegram_enabled, telegram_linked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		cfg.ID, cfg.UserID, cfg.AdvanceReminder, cfg.NotificationsEnabled,
		cfg.AutoBackup, cfg.BackupFrequencyDays, cfg.LastBackupAt,
		cfg.TelegramChatID, cfg.TelegramEnabled, cfg.TelegramLinkedAt).
		Scan(&cfg.CreatedAt, &cfg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert user config: %w", err)
	}
	return nil
}

func (r *userConfigRepository) Update(ctx context.Context, cfg *model.UserConfig) error {
	query := `
		UPDATE user_configs
		SET advance_reminder = $1, notifications_enabled = $2, auto_backup = $3,
		    backup_frequency_days = $4, telegram_chat_id = $5,
		    telegram_enabled = $6, telegram_linked_at = $7, updated_at = now()
		WHERE user_id = $8
	`
	res, err := r.db.ExecContext(ctx, query,
		cfg.AdvanceReminder, cfg.NotificationsEnabled, cfg.AutoBackup,
		cfg.BackupFrequencyDays, cfg.TelegramChatID,
		cfg.TelegramEnabled, cfg.TelegramLinkedAt, cfg.UserID)
	if err != nil {
		return fmt.Errorf("update user config: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrConfigNotFound
	}
	return nil
}

func (r *userConfigRepository) UpdateLastBackup(ctx context.Context, userID int64, backupTime time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE user_configs SET last_backup_at = $1, updated_at = now() WHERE user_id = $2`,
		backupTime, userID)
	if err != nil {
		return fmt.Errorf("update last backup time: %w", err)
	}
	return nil
}

func (r *userConfigRepository) ListTelegramEnabled(ctx context.Context) ([]model.UserConfig, error) {
	configs := []model.UserConfig{}
	query := `
		SELECT * FROM user_configs
		WHERE telegram_enabled = true
		  AND telegram_chat_id IS NOT NULL
		  AND telegram_chat_id <> ''
		ORDER BY user_id
	`
	if err := r.db.SelectContext(ctx, &configs, query); err != nil {
		return nil, fmt.Errorf("list telegram-enabled configs: %w", err)
	}
	return configs, nil
}

func (r *userConfigRepository) ListAutoBackupEnabled(ctx context.Context) ([]model.UserConfig, error) {
	configs := []model.UserConfig{}
	query := `SELECT * FROM user_configs WHERE auto_backup = true ORDER BY user_id`
	if err := r.db.SelectContext(ctx, &configs, query); err != nil {
		return nil, fmt.Errorf("list auto-backup configs: %w", err)
	}
	return configs, nil
}

func (r *userConfigRepository) ListAll(ctx context.Context) ([]model.UserConfig, error) {
	configs := []model.UserConfig{}
	if err := r.db.SelectContext(ctx, &configs, `SELECT * FROM user_configs ORDER BY user_id`); err != nil {
		return nil, fmt.Errorf("list all user configs: %w", err)
	}
	return configs, nil
}

func (r *userConfigRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM user_configs`); err != nil {
		return fmt.Errorf("delete all user configs: %w", err)
	}
	return nil
}

func (r *userConfigRepository) Restore(ctx context.Context, cfg *model.UserConfig) error {
	query := `
		INSERT INTO user_configs
			(id, user_id, advance_reminder, notifications_enabled, auto_backup,
			 backup_frequency_days, last_backup_at, telegram_chat_id,
			 telegram_enabled, telegram_linked_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.ExecContext(ctx, query,
		cfg.ID, cfg.UserID, cfg.AdvanceReminder, cfg.NotificationsEnabled,
		cfg.AutoBackup, cfg.BackupFrequencyDays, cfg.LastBackupAt,
		cfg.TelegramChatID, cfg.TelegramEnabled, cfg.TelegramLinkedAt,
		cfg.CreatedAt, cfg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("restore user config: %w", err)
	}
	return nil
}
