package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"doseclock/internal/handler"
	authmw "doseclock/internal/transport/http/middleware"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Auth         *handler.AuthHandler
	Medication   *handler.MedicationHandler
	Treatment    *handler.TreatmentHandler
	Dose         *handler.DoseHandler
	Schedule     *handler.ScheduleHandler
	Config       *handler.ConfigHandler
	Backup       *handler.BackupHandler
	Notification *handler.NotificationHandler
}

// NewRouter builds the chi router with all application routes.
func NewRouter(h Handlers, jwtSecret string) chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Public routes
	r.Post("/auth/register", h.Auth.Register)
	r.Post("/auth/login", h.Auth.Login)

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(authmw.AuthMiddleware(jwtSecret))

		r.Get("/me", h.Auth.Me)

		r.Route("/medications", func(r chi.Router) {
			r.Post("/", h.Medication.Create)
			r.Get("/", h.Medication.List)
			r.Get("/{id}", h.Medication.GetByID)
			r.Put("/{id}", h.Medication.Update)
			r.Patch("/{id}/active", h.Medication.SetActive)
			r.Delete("/{id}", h.Medication.Delete)
		})

		r.Route("/treatments", func(r chi.Router) {
			r.Post("/", h.Treatment.Create)
			r.Post("/validate", h.Treatment.Validate)
			r.Get("/", h.Treatment.List)
			r.Get("/{id}", h.Treatment.GetByID)
			r.Put("/{id}", h.Treatment.Update)
			r.Post("/{id}/pause", h.Treatment.Pause)
			r.Post("/{id}/resume", h.Treatment.Resume)
			r.Post("/{id}/end", h.Treatment.End)
			r.Get("/{id}/adherence", h.Treatment.Adherence)
			r.Delete("/{id}", h.Treatment.Delete)
		})

		r.Route("/doses", func(r chi.Router) {
			r.Get("/", h.Dose.History)
			r.Get("/{id}", h.Dose.GetByID)
			r.Post("/{id}/confirm", h.Dose.Confirm)
			r.Get("/{id}/window", h.Dose.Window)
		})

		r.Route("/schedule", func(r chi.Router) {
			r.Get("/dashboard", h.Schedule.Dashboard)
			r.Get("/next", h.Schedule.NextDose)
			r.Get("/day", h.Schedule.Day)
		})

		r.Route("/config", func(r chi.Router) {
			r.Get("/", h.Config.Get)
			r.Put("/", h.Config.Update)
			r.Post("/telegram/link", h.Config.LinkTelegram)
			r.Post("/telegram/unlink", h.Config.UnlinkTelegram)
			r.Post("/telegram/test", h.Config.SendTest)
		})

		r.Route("/backups", func(r chi.Router) {
			r.Post("/", h.Backup.Create)
			r.Get("/", h.Backup.List)
			r.Post("/restore", h.Backup.Restore)
			r.Get("/{filename}", h.Backup.Download)
			r.Delete("/{filename}", h.Backup.Delete)
		})

		r.Get("/notifications/upcoming", h.Notification.Upcoming)
	})

	return r
}
