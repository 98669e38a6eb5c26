package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	ServerPort string

	JWTSecret         string
	AccessTokenMaxAge int // seconds

	RedisURL string

	TelegramBotToken string

	// Reminder engine settings
	GraceMinutes         int // minutes after the dose before pending -> missed
	ConfirmWindowMinutes int // minutes before the dose when confirmation opens
	LookaheadHours       int // how far ahead the dispatcher scans pending doses
	TickIntervalSeconds  int // reminder daemon interval

	// Backup storage
	BackupDir         string
	S3AccountID       string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3BucketName      string
}

// S3Configured reports whether backup uploads to object storage are enabled.
func (c *Config) S3Configured() bool {
	return c.S3AccountID != "" && c.S3AccessKeyID != "" && c.S3SecretAccessKey != "" && c.S3BucketName != ""
}

func LoadConfig() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found or error loading it, relying on environment variables")
	}

	serverPort := os.Getenv("SERVER_PORT")
	if serverPort == "" {
		serverPort = "8080"
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}

	backupDir := os.Getenv("BACKUP_DIR")
	if backupDir == "" {
		backupDir = "backups"
	}

	return &Config{
		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     os.Getenv("DB_PORT"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),

		ServerPort: serverPort,

		JWTSecret:         os.Getenv("JWT_SECRET"),
		AccessTokenMaxAge: intFromEnv("ACCESS_TOKEN_MAX_AGE", 900),

		RedisURL: redisURL,

		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),

		GraceMinutes:         intFromEnv("GRACE_MINUTES", 20),
		ConfirmWindowMinutes: intFromEnv("CONFIRM_WINDOW_MINUTES", 5),
		LookaheadHours:       intFromEnv("REMINDER_LOOKAHEAD_HOURS", 24),
		TickIntervalSeconds:  intFromEnv("TICK_INTERVAL_SECONDS", 60),

		BackupDir:         backupDir,
		S3AccountID:       os.Getenv("S3_ACCOUNT_ID"),
		S3AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
		S3SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		S3BucketName:      os.Getenv("S3_BUCKET_NAME"),
	}, nil
}

func intFromEnv(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
