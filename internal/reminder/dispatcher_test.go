package reminder_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"doseclock/internal/model"
	"doseclock/internal/reminder"
	"doseclock/internal/schedule"
)

var tickNow = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

// =============================================================================
// Mock Implementations
// =============================================================================

type MockUserLister struct {
	ids []int64
}

func (m *MockUserLister) ListIDsWithActiveTreatments(ctx context.Context) ([]int64, error) {
	return m.ids, nil
}

type MockSweeper struct {
	marked map[int64][]model.Dose
	calls  []int64
}

func (m *MockSweeper) SweepOverdue(ctx context.Context, userID int64) ([]model.Dose, error) {
	m.calls = append(m.calls, userID)
	return m.marked[userID], nil
}

type MockPendingLister struct {
	doses map[int64][]model.Dose
}

func (m *MockPendingLister) ListPendingInRange(ctx context.Context, userID int64, from, to time.Time) ([]model.Dose, error) {
	var out []model.Dose
	for _, d := range m.doses[userID] {
		if !d.ScheduledTime.Before(from) && !d.ScheduledTime.After(to) {
			out = append(out, d)
		}
	}
	return out, nil
}

type MockNotificationRecorder struct {
	sent    map[string]bool
	records map[string]model.Notification
}

func NewMockNotificationRecorder() *MockNotificationRecorder {
	return &MockNotificationRecorder{
		sent:    make(map[string]bool),
		records: make(map[string]model.Notification),
	}
}

func recordKey(doseID uuid.UUID, kind string) string {
	return doseID.String() + ":" + kind
}

func (m *MockNotificationRecorder) SentExists(ctx context.Context, doseID uuid.UUID, kind string) (bool, error) {
	return m.sent[recordKey(doseID, kind)], nil
}

func (m *MockNotificationRecorder) Create(ctx context.Context, n *model.Notification) error {
	key := recordKey(n.DoseID, n.Kind)
	if n.Sent && m.sent[key] {
		return model.ErrNotificationAlreadySent
	}
	if n.Sent {
		m.sent[key] = true
	}
	m.records[key] = *n
	return nil
}

type MockConfigLister struct {
	configs []model.UserConfig
}

func (m *MockConfigLister) ListTelegramEnabled(ctx context.Context) ([]model.UserConfig, error) {
	return m.configs, nil
}

type MockSender struct {
	mainCalls    int
	advanceCalls int
	missedCalls  int
	failSends    bool
}

func (m *MockSender) SendDoseReminder(chatID, medicationName string, scheduledTime time.Time, doseID uuid.UUID) error {
	if m.failSends {
		return fmt.Errorf("telegram unreachable")
	}
	m.mainCalls++
	return nil
}

func (m *MockSender) SendAdvanceReminder(chatID, medicationName string, scheduledTime time.Time) error {
	if m.failSends {
		return fmt.Errorf("telegram unreachable")
	}
	m.advanceCalls++
	return nil
}

func (m *MockSender) SendMissedAlert(chatID, medicationName string, scheduledTime time.Time) error {
	if m.failSends {
		return fmt.Errorf("telegram unreachable")
	}
	m.missedCalls++
	return nil
}

func (m *MockSender) SendWelcome(chatID string) error     { return nil }
func (m *MockSender) SendTestMessage(chatID string) error { return nil }
func (m *MockSender) Configured() bool                    { return true }

// =============================================================================
// Test Helpers
// =============================================================================

func telegramConfig(userID int64, advance bool) model.UserConfig {
	chatID := fmt.Sprintf("chat-%d", userID)
	return model.UserConfig{
		UserID:               userID,
		AdvanceReminder:      advance,
		NotificationsEnabled: true,
		TelegramChatID:       &chatID,
		TelegramEnabled:      true,
	}
}

func pendingDose(scheduled time.Time) model.Dose {
	name := "Amoxicillin"
	return model.Dose{
		ID:                     uuid.New(),
		ScheduledTime:          scheduled,
		Status:                 model.DosePending,
		MedicationNameSnapshot: &name,
	}
}

type fixture struct {
	users    *MockUserLister
	sweeper  *MockSweeper
	pending  *MockPendingLister
	records  *MockNotificationRecorder
	configs  *MockConfigLister
	sender   *MockSender
	dispatch *reminder.Dispatcher
}

func newFixture(dryRun bool) *fixture {
	f := &fixture{
		users:   &MockUserLister{},
		sweeper: &MockSweeper{marked: make(map[int64][]model.Dose)},
		pending: &MockPendingLister{doses: make(map[int64][]model.Dose)},
		records: NewMockNotificationRecorder(),
		configs: &MockConfigLister{},
		sender:  &MockSender{},
	}
	f.dispatch = reminder.NewDispatcher(
		f.users, f.sweeper, f.pending, f.records, f.configs, f.sender,
		schedule.FixedClock{T: tickNow}, 24, dryRun,
	)
	return f
}

// =============================================================================
// Tests
// =============================================================================

// TestMainReminderSentInWindow verifies a dose due within two minutes gets the
// main reminder, recorded for dedup.
func TestMainReminderSentInWindow(t *testing.T) {
	// ARRANGE
	f := newFixture(false)
	dose := pendingDose(tickNow.Add(1 * time.Minute))
	f.configs.configs = []model.UserConfig{telegramConfig(1, false)}
	f.pending.doses[1] = []model.Dose{dose}

	// ACT
	summary := f.dispatch.Tick(context.Background())

	// ASSERT
	if f.sender.mainCalls != 1 {
		t.Errorf("main sends = %d, want 1", f.sender.mainCalls)
	}
	if summary.MainSent != 1 {
		t.Errorf("summary.MainSent = %d, want 1", summary.MainSent)
	}
	if !f.records.sent[recordKey(dose.ID, model.NotificationMain)] {
		t.Error("sent record should exist after delivery")
	}
}

// TestAdvanceReminderRespectsPreference verifies the advance reminder fires
// only for users with the preference enabled.
func TestAdvanceReminderRespectsPreference(t *testing.T) {
	// ARRANGE: two users, same dose offset (5 minutes ahead, inside 4-6 window)
	f := newFixture(false)
	f.configs.configs = []model.UserConfig{
		telegramConfig(1, true),
		telegramConfig(2, false),
	}
	f.pending.doses[1] = []model.Dose{pendingDose(tickNow.Add(5 * time.Minute))}
	f.pending.doses[2] = []model.Dose{pendingDose(tickNow.Add(5 * time.Minute))}

	// ACT
	summary := f.dispatch.Tick(context.Background())

	// ASSERT
	if f.sender.advanceCalls != 1 {
		t.Errorf("advance sends = %d, want 1", f.sender.advanceCalls)
	}
	if f.sender.mainCalls != 0 {
		t.Errorf("main sends = %d, want 0 (dose not due yet)", f.sender.mainCalls)
	}
	if summary.AdvanceSent != 1 {
		t.Errorf("summary.AdvanceSent = %d, want 1", summary.AdvanceSent)
	}
}

// TestRecordsCarryDueInstant verifies the persisted record holds the instant
// the reminder was due: the dose time for the main kind, five minutes earlier
// for the advance kind.
func TestRecordsCarryDueInstant(t *testing.T) {
	// ARRANGE: one dose in the advance window, one due now
	f := newFixture(false)
	advance := pendingDose(tickNow.Add(5 * time.Minute))
	main := pendingDose(tickNow.Add(1 * time.Minute))
	f.configs.configs = []model.UserConfig{telegramConfig(1, true)}
	f.pending.doses[1] = []model.Dose{advance, main}

	// ACT
	f.dispatch.Tick(context.Background())

	// ASSERT
	advRecord, ok := f.records.records[recordKey(advance.ID, model.NotificationAdvance)]
	if !ok {
		t.Fatal("advance record missing")
	}
	wantAdv := advance.ScheduledTime.Add(-model.AdvanceReminderMinutes * time.Minute)
	if !advRecord.ScheduledTime.Equal(wantAdv) {
		t.Errorf("advance record ScheduledTime = %v, want %v (dose - %dmin)",
			advRecord.ScheduledTime, wantAdv, model.AdvanceReminderMinutes)
	}

	mainRecord, ok := f.records.records[recordKey(main.ID, model.NotificationMain)]
	if !ok {
		t.Fatal("main record missing")
	}
	if !mainRecord.ScheduledTime.Equal(main.ScheduledTime) {
		t.Errorf("main record ScheduledTime = %v, want the dose instant %v",
			mainRecord.ScheduledTime, main.ScheduledTime)
	}
}

// TestDedupAcrossTicks verifies that re-running a tick over the same state
// sends nothing twice.
func TestDedupAcrossTicks(t *testing.T) {
	// ARRANGE
	f := newFixture(false)
	f.configs.configs = []model.UserConfig{telegramConfig(1, true)}
	f.pending.doses[1] = []model.Dose{pendingDose(tickNow.Add(1 * time.Minute))}

	// ACT: same tick twice
	f.dispatch.Tick(context.Background())
	second := f.dispatch.Tick(context.Background())

	// ASSERT
	if f.sender.mainCalls != 1 {
		t.Errorf("main sends after two ticks = %d, want exactly 1", f.sender.mainCalls)
	}
	if second.MainSent != 0 {
		t.Errorf("second tick MainSent = %d, want 0", second.MainSent)
	}
	if second.Deduped != 1 {
		t.Errorf("second tick Deduped = %d, want 1", second.Deduped)
	}
}

// TestSendFailureRetriesNextTick verifies that a failed delivery leaves no
// sent record, so the next tick retries.
func TestSendFailureRetriesNextTick(t *testing.T) {
	// ARRANGE
	f := newFixture(false)
	dose := pendingDose(tickNow.Add(1 * time.Minute))
	f.configs.configs = []model.UserConfig{telegramConfig(1, false)}
	f.pending.doses[1] = []model.Dose{dose}
	f.sender.failSends = true

	// ACT: failing tick first
	first := f.dispatch.Tick(context.Background())

	// ASSERT: failure reported, nothing recorded
	if len(first.Errors) == 0 {
		t.Error("first tick should report the send failure")
	}
	if first.MainSent != 0 {
		t.Errorf("first tick MainSent = %d, want 0", first.MainSent)
	}
	if f.records.sent[recordKey(dose.ID, model.NotificationMain)] {
		t.Error("failed send must not be recorded")
	}

	// ACT: healthy retry
	f.sender.failSends = false
	second := f.dispatch.Tick(context.Background())

	// ASSERT: delivered exactly once
	if second.MainSent != 1 {
		t.Errorf("retry tick MainSent = %d, want 1", second.MainSent)
	}
}

// TestSweepCoversAllActiveUsers verifies every user with an active treatment
// is swept, Telegram-linked or not.
func TestSweepCoversAllActiveUsers(t *testing.T) {
	// ARRANGE
	f := newFixture(false)
	f.users.ids = []int64{1, 2, 3}
	f.sweeper.marked[2] = []model.Dose{
		pendingDose(tickNow.Add(-40 * time.Minute)),
		pendingDose(tickNow.Add(-30 * time.Minute)),
		pendingDose(tickNow.Add(-25 * time.Minute)),
		pendingDose(tickNow.Add(-22 * time.Minute)),
	}

	// ACT
	summary := f.dispatch.Tick(context.Background())

	// ASSERT
	if len(f.sweeper.calls) != 3 {
		t.Errorf("sweep calls = %d, want 3", len(f.sweeper.calls))
	}
	if summary.UsersSwept != 3 {
		t.Errorf("summary.UsersSwept = %d, want 3", summary.UsersSwept)
	}
	if summary.MarkedMissed != 4 {
		t.Errorf("summary.MarkedMissed = %d, want 4", summary.MarkedMissed)
	}
}

// TestMissedAlertSentForSweptDoses verifies a dose the sweep transitions gets
// a missed alert when the user is Telegram-linked, and that the alert is
// deduped like any other notification.
func TestMissedAlertSentForSweptDoses(t *testing.T) {
	// ARRANGE
	f := newFixture(false)
	dose := pendingDose(tickNow.Add(-30 * time.Minute))
	f.users.ids = []int64{1}
	f.sweeper.marked[1] = []model.Dose{dose}
	f.configs.configs = []model.UserConfig{telegramConfig(1, false)}

	// ACT
	summary := f.dispatch.Tick(context.Background())

	// ASSERT
	if f.sender.missedCalls != 1 {
		t.Errorf("missed alerts = %d, want 1", f.sender.missedCalls)
	}
	if summary.MissedSent != 1 {
		t.Errorf("summary.MissedSent = %d, want 1", summary.MissedSent)
	}
	if !f.records.sent[recordKey(dose.ID, model.NotificationMissed)] {
		t.Error("missed alert should be recorded for dedup")
	}

	// A re-run over the same sweep output sends nothing twice
	second := f.dispatch.Tick(context.Background())
	if f.sender.missedCalls != 1 {
		t.Errorf("missed alerts after two ticks = %d, want exactly 1", f.sender.missedCalls)
	}
	if second.Deduped != 1 {
		t.Errorf("second tick Deduped = %d, want 1", second.Deduped)
	}
}

// TestMissedAlertSkippedWithoutTelegram verifies the sweep still counts missed
// doses for users with no Telegram link, sending nothing.
func TestMissedAlertSkippedWithoutTelegram(t *testing.T) {
	// ARRANGE: user 1 swept but not linked
	f := newFixture(false)
	f.users.ids = []int64{1}
	f.sweeper.marked[1] = []model.Dose{pendingDose(tickNow.Add(-30 * time.Minute))}

	// ACT
	summary := f.dispatch.Tick(context.Background())

	// ASSERT
	if summary.MarkedMissed != 1 {
		t.Errorf("summary.MarkedMissed = %d, want 1", summary.MarkedMissed)
	}
	if f.sender.missedCalls != 0 {
		t.Errorf("missed alerts = %d, want 0", f.sender.missedCalls)
	}
}

// TestNotificationsDisabledSkipsDelivery verifies a user who turned
// notifications off receives nothing even with a due dose.
func TestNotificationsDisabledSkipsDelivery(t *testing.T) {
	// ARRANGE
	f := newFixture(false)
	cfg := telegramConfig(1, true)
	cfg.NotificationsEnabled = false
	f.configs.configs = []model.UserConfig{cfg}
	f.pending.doses[1] = []model.Dose{pendingDose(tickNow.Add(1 * time.Minute))}

	// ACT
	summary := f.dispatch.Tick(context.Background())

	// ASSERT
	if f.sender.mainCalls != 0 {
		t.Errorf("main sends = %d, want 0", f.sender.mainCalls)
	}
	if summary.MainSent != 0 {
		t.Errorf("summary.MainSent = %d, want 0", summary.MainSent)
	}
}

// TestDryRunSendsNothing verifies dry-run counts deliveries without sending
// or recording.
func TestDryRunSendsNothing(t *testing.T) {
	// ARRANGE
	f := newFixture(true)
	dose := pendingDose(tickNow.Add(1 * time.Minute))
	f.configs.configs = []model.UserConfig{telegramConfig(1, false)}
	f.pending.doses[1] = []model.Dose{dose}

	// ACT
	summary := f.dispatch.Tick(context.Background())

	// ASSERT
	if f.sender.mainCalls != 0 {
		t.Errorf("dry run must not send, got %d sends", f.sender.mainCalls)
	}
	if summary.MainSent != 1 {
		t.Errorf("summary.MainSent = %d, want 1 (reported, not sent)", summary.MainSent)
	}
	if f.records.sent[recordKey(dose.ID, model.NotificationMain)] {
		t.Error("dry run must not write sent records")
	}
}
