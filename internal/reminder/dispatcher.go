package reminder

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"doseclock/internal/model"
	"doseclock/internal/schedule"
	"doseclock/internal/service"
)

// Delivery windows, in minutes relative to the dose instant. The advance
// reminder nominally fires 5 minutes ahead; the windows absorb tick jitter
// either side.
const (
	AdvanceWindowMin = 4 // earliest: 6 minutes before  -> minutes-until <= 6
	AdvanceWindowMax = 6 // latest: 4 minutes before    -> minutes-until >= 4
	MainWindowSlack  = 2 // main fires within +/- 2 minutes of the dose
)

// UserLister enumerates the users the sweep must visit.
type UserLister interface {
	ListIDsWithActiveTreatments(ctx context.Context) ([]int64, error)
}

// DoseSweeper runs the pending -> missed transition for one user and reports
// which doses it transitioned.
type DoseSweeper interface {
	SweepOverdue(ctx context.Context, userID int64) ([]model.Dose, error)
}

// PendingLister loads the pending doses in a time range for one user.
type PendingLister interface {
	ListPendingInRange(ctx context.Context, userID int64, from, to time.Time) ([]model.Dose, error)
}

// NotificationRecorder checks and persists delivery records.
type NotificationRecorder interface {
	SentExists(ctx context.Context, doseID uuid.UUID, kind string) (bool, error)
	Create(ctx context.Context, notification *model.Notification) error
}

// ConfigLister enumerates the users with Telegram delivery configured.
type ConfigLister interface {
	ListTelegramEnabled(ctx context.Context) ([]model.UserConfig, error)
}

// TickSummary reports what one dispatcher pass did.
type TickSummary struct {
	StartedAt    time.Time `json:"started_at"`
	Duration     string    `json:"duration"`
	UsersSwept   int       `json:"users_swept"`
	MarkedMissed int64     `json:"marked_missed"`
	AdvanceSent  int       `json:"advance_sent"`
	MainSent     int       `json:"main_sent"`
	MissedSent   int       `json:"missed_sent"`
	Deduped      int       `json:"deduped"`
	Errors       []string  `json:"errors,omitempty"`
}

// Dispatcher runs one reminder pass: sweep overdue doses for every user with
// an active treatment, then deliver due reminders to every Telegram-linked
// user. Each pass is idempotent; the sent-notification records make repeat
// deliveries impossible across overlapping or re-run ticks.
type Dispatcher struct {
	users         UserLister
	sweeper       DoseSweeper
	doses         PendingLister
	notifications NotificationRecorder
	configs       ConfigLister
	sender        service.TelegramSender
	clock         schedule.Clock

	lookahead time.Duration
	dryRun    bool
}

func NewDispatcher(
	users UserLister,
	sweeper DoseSweeper,
	doses PendingLister,
	notifications NotificationRecorder,
	configs ConfigLister,
	sender service.TelegramSender,
	clock schedule.Clock,
	lookaheadHours int,
	dryRun bool,
) *Dispatcher {
	return &Dispatcher{
		users:         users,
		sweeper:       sweeper,
		doses:         doses,
		notifications: notifications,
		configs:       configs,
		sender:        sender,
		clock:         clock,
		lookahead:     time.Duration(lookaheadHours) * time.Hour,
		dryRun:        dryRun,
	}
}

// Tick runs one full pass. Per-item failures are collected into the summary,
// never aborting the pass: one user's broken chat must not starve the rest.
func (d *Dispatcher) Tick(ctx context.Context) *TickSummary {
	started := d.clock.Now()
	summary := &TickSummary{StartedAt: started}

	missedByUser := d.sweep(ctx, summary)
	d.dispatch(ctx, missedByUser, summary)

	summary.Duration = time.Since(started).String()
	log.Printf("[Dispatcher] Tick done: swept=%d marked=%d advance=%d main=%d missed=%d deduped=%d errors=%d",
		summary.UsersSwept, summary.MarkedMissed, summary.AdvanceSent, summary.MainSent,
		summary.MissedSent, summary.Deduped, len(summary.Errors))
	return summary
}

// sweep marks overdue pending doses missed for every user with an active
// treatment. Sweeping runs before dispatch so a dose never gets a reminder
// after it crossed the missed deadline; the doses it transitions feed the
// missed alerts in the same pass.
func (d *Dispatcher) sweep(ctx context.Context, summary *TickSummary) map[int64][]model.Dose {
	missedByUser := make(map[int64][]model.Dose)

	userIDs, err := d.users.ListIDsWithActiveTreatments(ctx)
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("list users: %v", err))
		return missedByUser
	}

	for _, userID := range userIDs {
		missed, err := d.sweeper.SweepOverdue(ctx, userID)
		if err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("sweep user=%d: %v", userID, err))
			continue
		}
		summary.UsersSwept++
		summary.MarkedMissed += int64(len(missed))
		if len(missed) > 0 {
			missedByUser[userID] = missed
		}
	}
	return missedByUser
}

// dispatch delivers due reminders and missed alerts to every Telegram-linked
// user.
func (d *Dispatcher) dispatch(ctx context.Context, missedByUser map[int64][]model.Dose, summary *TickSummary) {
	configs, err := d.configs.ListTelegramEnabled(ctx)
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("list telegram configs: %v", err))
		return
	}

	now := d.clock.Now()
	from := now.Add(-MainWindowSlack * time.Minute)
	to := now.Add(d.lookahead)

	for _, cfg := range configs {
		if !cfg.NotificationsEnabled || !cfg.TelegramReady() {
			continue
		}

		doses, err := d.doses.ListPendingInRange(ctx, cfg.UserID, from, to)
		if err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("list doses user=%d: %v", cfg.UserID, err))
			continue
		}

		for i := range doses {
			d.dispatchDose(ctx, &cfg, &doses[i], now, summary)
		}

		missed := missedByUser[cfg.UserID]
		for i := range missed {
			d.deliver(ctx, &cfg, &missed[i], model.NotificationMissed, summary)
		}
	}
}

func (d *Dispatcher) dispatchDose(ctx context.Context, cfg *model.UserConfig, dose *model.Dose, now time.Time, summary *TickSummary) {
	minutesUntil := dose.ScheduledTime.Sub(now).Minutes()

	if cfg.AdvanceReminder && minutesUntil >= AdvanceWindowMin && minutesUntil <= AdvanceWindowMax {
		d.deliver(ctx, cfg, dose, model.NotificationAdvance, summary)
	}

	if minutesUntil >= -MainWindowSlack && minutesUntil <= MainWindowSlack {
		d.deliver(ctx, cfg, dose, model.NotificationMain, summary)
	}
}

// deliver sends one reminder, guarded twice against duplicates: a SentExists
// read before sending, and the unique sent-record insert after. The record is
// written only on delivery success so a failed send retries next tick.
func (d *Dispatcher) deliver(ctx context.Context, cfg *model.UserConfig, dose *model.Dose, kind string, summary *TickSummary) {
	sent, err := d.notifications.SentExists(ctx, dose.ID, kind)
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("dedup check dose=%s kind=%s: %v", dose.ID, kind, err))
		return
	}
	if sent {
		summary.Deduped++
		return
	}

	medicationName := dose.MedicationDisplayName()

	if d.dryRun {
		log.Printf("[Dispatcher] DRY RUN: would send kind=%s dose=%s user=%d med=%s",
			kind, dose.ID, cfg.UserID, medicationName)
		d.count(kind, summary)
		return
	}

	chatID := *cfg.TelegramChatID
	switch kind {
	case model.NotificationAdvance:
		err = d.sender.SendAdvanceReminder(chatID, medicationName, dose.ScheduledTime)
	case model.NotificationMissed:
		err = d.sender.SendMissedAlert(chatID, medicationName, dose.ScheduledTime)
	default:
		err = d.sender.SendDoseReminder(chatID, medicationName, dose.ScheduledTime, dose.ID)
	}
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("send kind=%s dose=%s: %v", kind, dose.ID, err))
		return
	}

	// The record carries the instant the reminder was due, not the dose
	// instant: the advance kind is due AdvanceReminderMinutes ahead.
	recordTime := dose.ScheduledTime
	if kind == model.NotificationAdvance {
		recordTime = recordTime.Add(-model.AdvanceReminderMinutes * time.Minute)
	}

	now := d.clock.Now()
	record := &model.Notification{
		DoseID:        dose.ID,
		Kind:          kind,
		ScheduledTime: recordTime,
		Sent:          true,
		SentAt:        &now,
	}
	if err := d.notifications.Create(ctx, record); err != nil {
		if errors.Is(err, model.ErrNotificationAlreadySent) {
			// A concurrent tick won the race; the user got one message
			summary.Deduped++
			return
		}
		summary.Errors = append(summary.Errors, fmt.Sprintf("record kind=%s dose=%s: %v", kind, dose.ID, err))
		return
	}

	d.count(kind, summary)
	log.Printf("[Dispatcher] Sent kind=%s dose=%s user=%d", kind, dose.ID, cfg.UserID)
}

func (d *Dispatcher) count(kind string, summary *TickSummary) {
	switch kind {
	case model.NotificationAdvance:
		summary.AdvanceSent++
	case model.NotificationMissed:
		summary.MissedSent++
	default:
		summary.MainSent++
	}
}
