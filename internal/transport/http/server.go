package http

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"doseclock/internal/cache"
	"doseclock/internal/config"
	"doseclock/internal/database"
	"doseclock/internal/handler"
	"doseclock/internal/queue"
	"doseclock/internal/redis"
	"doseclock/internal/repository"
	"doseclock/internal/schedule"
	"doseclock/internal/service"
	"doseclock/internal/worker"
)

const shutdownTimeout = 10 * time.Second

// Run wires the whole API server together and blocks until shutdown.
func Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	rdb, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		return err
	}
	defer rdb.Close()
	if err := rdb.Ping(ctx); err != nil {
		return err
	}
	log.Println("Connected to Redis successfully")

	clock := schedule.SystemClock{}

	// Repositories
	userRepo := repository.NewUserRepository(db)
	medicationRepo := repository.NewMedicationRepository(db)
	treatmentRepo := repository.NewTreatmentRepository(db)
	doseRepo := repository.NewDoseRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	configRepo := repository.NewUserConfigRepository(db)

	// Redis-backed infrastructure
	scheduleCache := cache.NewScheduleCache(rdb.Client)
	publisher := queue.NewPublisher(rdb.Client)
	consumer := queue.NewConsumer(rdb.Client)

	// Services
	telegram := service.NewTelegramClient(cfg.TelegramBotToken)
	userService := service.NewUserService(userRepo, cfg)
	medicationService := service.NewMedicationService(medicationRepo, treatmentRepo)
	treatmentService := service.NewTreatmentService(treatmentRepo, medicationRepo, doseRepo, publisher, clock)
	doseService := service.NewDoseService(doseRepo, treatmentRepo, scheduleCache, publisher, cfg, clock)
	configService := service.NewUserConfigService(configRepo, telegram, clock)

	var storage *service.BackupStorage
	if cfg.S3Configured() {
		storage, err = service.NewBackupStorage(ctx, cfg)
		if err != nil {
			return err
		}
		log.Println("Backup uploads to object storage enabled")
	} else {
		log.Println("Object storage not configured, backups stay local")
	}
	backupService := service.NewBackupService(
		medicationRepo, treatmentRepo, doseRepo, notificationRepo, configRepo,
		storage, cfg.BackupDir, clock,
	)

	// Schedule workers consume dose/treatment events and keep the per-user
	// schedule caches current.
	workerHandler := worker.NewHandler(scheduleCache, doseService, doseService)
	manager := worker.NewManager(consumer, workerHandler, worker.ManagerConfig{})
	if err := manager.Start(ctx); err != nil {
		return err
	}
	defer manager.Stop()

	handlers := Handlers{
		Auth:         handler.NewAuthHandler(userService),
		Medication:   handler.NewMedicationHandler(medicationService),
		Treatment:    handler.NewTreatmentHandler(treatmentService),
		Dose:         handler.NewDoseHandler(doseService),
		Schedule:     handler.NewScheduleHandler(doseService, treatmentService),
		Config:       handler.NewConfigHandler(configService),
		Backup:       handler.NewBackupHandler(backupService),
		Notification: handler.NewNotificationHandler(notificationRepo, clock, cfg.LookaheadHours),
	}

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      NewRouter(handlers, cfg.JWTSecret),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server listening on :%s", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Println("Server stopped")
	return nil
}
