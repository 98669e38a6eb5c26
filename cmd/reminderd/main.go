// reminderd is the reminder daemon: every tick it sweeps overdue doses,
// dispatches Telegram reminders and runs due auto-backups.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"doseclock/internal/cache"
	"doseclock/internal/config"
	"doseclock/internal/database"
	"doseclock/internal/queue"
	"doseclock/internal/redis"
	"doseclock/internal/reminder"
	"doseclock/internal/repository"
	"doseclock/internal/schedule"
	"doseclock/internal/service"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "log deliveries without sending or recording")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer db.Close()

	rdb, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("connect redis: %v", err)
	}
	defer rdb.Close()
	if err := rdb.Ping(ctx); err != nil {
		log.Fatalf("ping redis: %v", err)
	}

	clock := schedule.SystemClock{}

	userRepo := repository.NewUserRepository(db)
	medicationRepo := repository.NewMedicationRepository(db)
	treatmentRepo := repository.NewTreatmentRepository(db)
	doseRepo := repository.NewDoseRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	configRepo := repository.NewUserConfigRepository(db)

	scheduleCache := cache.NewScheduleCache(rdb.Client)
	publisher := queue.NewPublisher(rdb.Client)

	telegram := service.NewTelegramClient(cfg.TelegramBotToken)
	if telegram.Configured() {
		if err := telegram.VerifyToken(); err != nil {
			log.Printf("[WARN] Telegram token verification failed: %v", err)
		} else {
			log.Println("Telegram bot token verified")
		}
	} else {
		log.Println("No Telegram bot token configured, reminders will fail to send")
	}

	doseService := service.NewDoseService(doseRepo, treatmentRepo, scheduleCache, publisher, cfg, clock)

	var storage *service.BackupStorage
	if cfg.S3Configured() {
		storage, err = service.NewBackupStorage(ctx, cfg)
		if err != nil {
			log.Fatalf("init backup storage: %v", err)
		}
	}
	backupService := service.NewBackupService(
		medicationRepo, treatmentRepo, doseRepo, notificationRepo, configRepo,
		storage, cfg.BackupDir, clock,
	)

	dispatcher := reminder.NewDispatcher(
		userRepo, doseService, doseRepo, notificationRepo, configRepo,
		telegram, clock, cfg.LookaheadHours, *dryRun,
	)

	if *dryRun {
		log.Println("Running in dry-run mode: nothing will be sent or recorded")
	}

	ticker := reminder.NewTicker(dispatcher, backupService, cfg.TickIntervalSeconds)
	ticker.Run(ctx)

	log.Println("Reminder daemon stopped")
}
