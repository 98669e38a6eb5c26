package service_test

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"doseclock/internal/cache"
	"doseclock/internal/model"
	"doseclock/internal/queue"
)

// =============================================================================
// Mock Repositories
// =============================================================================

type MockMedicationRepo struct {
	meds       map[uuid.UUID]*model.Medication
	deletedAll bool
	restored   []model.Medication
}

func NewMockMedicationRepo() *MockMedicationRepo {
	return &MockMedicationRepo{meds: make(map[uuid.UUID]*model.Medication)}
}

func (m *MockMedicationRepo) Create(ctx context.Context, med *model.Medication) error {
	if med.ID == uuid.Nil {
		med.ID = uuid.New()
	}
	m.meds[med.ID] = med
	return nil
}

func (m *MockMedicationRepo) GetByID(ctx context.Context, userID int64, id uuid.UUID) (*model.Medication, error) {
	med, ok := m.meds[id]
	if !ok || med.UserID != userID {
		return nil, model.ErrMedicationNotFound
	}
	return med, nil
}

func (m *MockMedicationRepo) ListByUser(ctx context.Context, userID int64, activeOnly bool) ([]model.Medication, error) {
	var out []model.Medication
	for _, med := range m.meds {
		if med.UserID != userID || (activeOnly && !med.Active) {
			continue
		}
		out = append(out, *med)
	}
	return out, nil
}

func (m *MockMedicationRepo) Update(ctx context.Context, med *model.Medication) error {
	if _, ok := m.meds[med.ID]; !ok {
		return model.ErrMedicationNotFound
	}
	m.meds[med.ID] = med
	return nil
}

func (m *MockMedicationRepo) Delete(ctx context.Context, userID int64, id uuid.UUID) error {
	med, ok := m.meds[id]
	if !ok || med.UserID != userID {
		return model.ErrMedicationNotFound
	}
	delete(m.meds, id)
	return nil
}

func (m *MockMedicationRepo) ListAll(ctx context.Context) ([]model.Medication, error) {
	out := make([]model.Medication, 0, len(m.meds))
	for _, med := range m.meds {
		out = append(out, *med)
	}
	return out, nil
}

func (m *MockMedicationRepo) DeleteAll(ctx context.Context) error {
	m.meds = make(map[uuid.UUID]*model.Medication)
	m.deletedAll = true
	return nil
}

func (m *MockMedicationRepo) Restore(ctx context.Context, med *model.Medication) error {
	m.restored = append(m.restored, *med)
	m.meds[med.ID] = med
	return nil
}

type detachMedicationCall struct {
	medicationID uuid.UUID
	nameSnapshot string
}

type MockTreatmentRepo struct {
	treatments  map[uuid.UUID]*model.Treatment
	medications *MockMedicationRepo
	detachCalls []detachMedicationCall
	deletedAll  bool
	restored    []model.Treatment
}

// resolveMedication mirrors the real repository's LEFT JOIN by populating the
// Medication field from the linked medication, when a medication repo is wired.
func (m *MockTreatmentRepo) resolveMedication(t *model.Treatment) {
	if m.medications == nil || t.MedicationID == nil {
		return
	}
	if med, ok := m.medications.meds[*t.MedicationID]; ok {
		copied := *med
		t.Medication = &copied
	}
}

func NewMockTreatmentRepo() *MockTreatmentRepo {
	return &MockTreatmentRepo{treatments: make(map[uuid.UUID]*model.Treatment)}
}

func (m *MockTreatmentRepo) Create(ctx context.Context, t *model.Treatment) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	m.treatments[t.ID] = t
	return nil
}

func (m *MockTreatmentRepo) GetByID(ctx context.Context, userID int64, id uuid.UUID) (*model.Treatment, error) {
	t, ok := m.treatments[id]
	if !ok || t.UserID != userID {
		return nil, model.ErrTreatmentNotFound
	}
	copied := *t
	m.resolveMedication(&copied)
	return &copied, nil
}

func (m *MockTreatmentRepo) ListByUser(ctx context.Context, userID int64, status string) ([]model.Treatment, error) {
	var out []model.Treatment
	for _, t := range m.treatments {
		if t.UserID != userID || (status != "" && t.Status != status) {
			continue
		}
		copied := *t
		m.resolveMedication(&copied)
		out = append(out, copied)
	}
	return out, nil
}

func (m *MockTreatmentRepo) ListActiveByUser(ctx context.Context, userID int64) ([]model.Treatment, error) {
	return m.ListByUser(ctx, userID, model.TreatmentActive)
}

func (m *MockTreatmentRepo) Update(ctx context.Context, t *model.Treatment) error {
	if _, ok := m.treatments[t.ID]; !ok {
		return model.ErrTreatmentNotFound
	}
	m.treatments[t.ID] = t
	return nil
}

func (m *MockTreatmentRepo) UpdateStatus(ctx context.Context, userID int64, id uuid.UUID, status string) error {
	t, ok := m.treatments[id]
	if !ok || t.UserID != userID {
		return model.ErrTreatmentNotFound
	}
	t.Status = status
	return nil
}

func (m *MockTreatmentRepo) Delete(ctx context.Context, userID int64, id uuid.UUID) error {
	t, ok := m.treatments[id]
	if !ok || t.UserID != userID {
		return model.ErrTreatmentNotFound
	}
	delete(m.treatments, id)
	return nil
}

func (m *MockTreatmentRepo) DetachMedication(ctx context.Context, medicationID uuid.UUID, nameSnapshot string) error {
	m.detachCalls = append(m.detachCalls, detachMedicationCall{medicationID, nameSnapshot})
	for _, t := range m.treatments {
		if t.MedicationID != nil && *t.MedicationID == medicationID {
			t.MedicationID = nil
			snap := nameSnapshot
			t.MedicationNameSnapshot = &snap
		}
	}
	return nil
}

func (m *MockTreatmentRepo) ListAll(ctx context.Context) ([]model.Treatment, error) {
	out := make([]model.Treatment, 0, len(m.treatments))
	for _, t := range m.treatments {
		out = append(out, *t)
	}
	return out, nil
}

func (m *MockTreatmentRepo) DeleteAll(ctx context.Context) error {
	m.treatments = make(map[uuid.UUID]*model.Treatment)
	m.deletedAll = true
	return nil
}

func (m *MockTreatmentRepo) Restore(ctx context.Context, t *model.Treatment) error {
	m.restored = append(m.restored, *t)
	m.treatments[t.ID] = t
	return nil
}

type detachTreatmentCall struct {
	treatmentID       uuid.UUID
	nameSnapshot      string
	frequencySnapshot float64
}

type MockDoseRepo struct {
	doses       map[uuid.UUID]*model.Dose
	userID      int64 // owner assumed for GetByID checks
	detachCalls []detachTreatmentCall
	deletedAll  bool
	restored    []model.Dose
}

func NewMockDoseRepo(userID int64) *MockDoseRepo {
	return &MockDoseRepo{doses: make(map[uuid.UUID]*model.Dose), userID: userID}
}

func (m *MockDoseRepo) Create(ctx context.Context, d *model.Dose) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	m.doses[d.ID] = d
	return nil
}

func (m *MockDoseRepo) GetByID(ctx context.Context, userID int64, id uuid.UUID) (*model.Dose, error) {
	d, ok := m.doses[id]
	if !ok || userID != m.userID {
		return nil, model.ErrDoseNotFound
	}
	copied := *d
	return &copied, nil
}

func (m *MockDoseRepo) GetByTreatmentAndTime(ctx context.Context, treatmentID uuid.UUID, scheduled time.Time) (*model.Dose, error) {
	for _, d := range m.doses {
		if d.TreatmentID != nil && *d.TreatmentID == treatmentID && d.ScheduledTime.Equal(scheduled) {
			copied := *d
			return &copied, nil
		}
	}
	return nil, model.ErrDoseNotFound
}

func (m *MockDoseRepo) LatestByTreatment(ctx context.Context, treatmentID uuid.UUID) (*model.Dose, error) {
	var latest *model.Dose
	for _, d := range m.doses {
		if d.TreatmentID == nil || *d.TreatmentID != treatmentID {
			continue
		}
		if latest == nil || d.ScheduledTime.After(latest.ScheduledTime) {
			latest = d
		}
	}
	if latest == nil {
		return nil, model.ErrDoseNotFound
	}
	copied := *latest
	return &copied, nil
}

func (m *MockDoseRepo) ListByTreatment(ctx context.Context, treatmentID uuid.UUID) ([]model.Dose, error) {
	var out []model.Dose
	for _, d := range m.doses {
		if d.TreatmentID != nil && *d.TreatmentID == treatmentID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (m *MockDoseRepo) ListByUser(ctx context.Context, userID int64, status string, medicationID *uuid.UUID, limit int) ([]model.Dose, error) {
	var out []model.Dose
	for _, d := range m.doses {
		if status != "" && d.Status != status {
			continue
		}
		out = append(out, *d)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockDoseRepo) ListPendingInRange(ctx context.Context, userID int64, from, to time.Time) ([]model.Dose, error) {
	var out []model.Dose
	for _, d := range m.doses {
		if d.Status != model.DosePending {
			continue
		}
		if d.ScheduledTime.Before(from) || d.ScheduledTime.After(to) {
			continue
		}
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledTime.Before(out[j].ScheduledTime) })
	return out, nil
}

func (m *MockDoseRepo) Confirm(ctx context.Context, id uuid.UUID, confirmedTime time.Time, status string) error {
	d, ok := m.doses[id]
	if !ok {
		return model.ErrDoseNotFound
	}
	t := confirmedTime
	d.ConfirmedTime = &t
	d.Status = status
	return nil
}

func (m *MockDoseRepo) MarkOverdueMissed(ctx context.Context, userID int64, cutoff time.Time) ([]model.Dose, error) {
	var missed []model.Dose
	for _, d := range m.doses {
		if d.Status == model.DosePending && d.ScheduledTime.Before(cutoff) {
			d.Status = model.DoseMissed
			missed = append(missed, *d)
		}
	}
	sort.Slice(missed, func(i, j int) bool { return missed[i].ScheduledTime.Before(missed[j].ScheduledTime) })
	return missed, nil
}

func (m *MockDoseRepo) CountByStatus(ctx context.Context, treatmentID uuid.UUID) (model.DoseStatusCounts, error) {
	var counts model.DoseStatusCounts
	for _, d := range m.doses {
		if d.TreatmentID == nil || *d.TreatmentID != treatmentID {
			continue
		}
		switch d.Status {
		case model.DoseConfirmed:
			counts.Confirmed++
		case model.DoseLate:
			counts.Late++
		case model.DoseMissed:
			counts.Missed++
		case model.DosePending:
			counts.Pending++
		}
	}
	return counts, nil
}

func (m *MockDoseRepo) DetachTreatment(ctx context.Context, treatmentID uuid.UUID, nameSnapshot string, frequencySnapshot float64) error {
	m.detachCalls = append(m.detachCalls, detachTreatmentCall{treatmentID, nameSnapshot, frequencySnapshot})
	for _, d := range m.doses {
		if d.TreatmentID != nil && *d.TreatmentID == treatmentID {
			d.TreatmentID = nil
			name := nameSnapshot
			freq := frequencySnapshot
			d.MedicationNameSnapshot = &name
			d.FrequencySnapshot = &freq
		}
	}
	return nil
}

func (m *MockDoseRepo) ListAll(ctx context.Context) ([]model.Dose, error) {
	out := make([]model.Dose, 0, len(m.doses))
	for _, d := range m.doses {
		out = append(out, *d)
	}
	return out, nil
}

func (m *MockDoseRepo) DeleteAll(ctx context.Context) error {
	m.doses = make(map[uuid.UUID]*model.Dose)
	m.deletedAll = true
	return nil
}

func (m *MockDoseRepo) Restore(ctx context.Context, d *model.Dose) error {
	m.restored = append(m.restored, *d)
	m.doses[d.ID] = d
	return nil
}

type MockNotificationRepo struct {
	notifications map[uuid.UUID]*model.Notification
	deletedAll    bool
	restored      []model.Notification
}

func NewMockNotificationRepo() *MockNotificationRepo {
	return &MockNotificationRepo{notifications: make(map[uuid.UUID]*model.Notification)}
}

func (m *MockNotificationRepo) Create(ctx context.Context, n *model.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	m.notifications[n.ID] = n
	return nil
}

func (m *MockNotificationRepo) SentExists(ctx context.Context, doseID uuid.UUID, kind string) (bool, error) {
	for _, n := range m.notifications {
		if n.DoseID == doseID && n.Kind == kind && n.Sent {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockNotificationRepo) ListUpcomingForUser(ctx context.Context, userID int64, from, to time.Time) ([]model.Notification, error) {
	return nil, nil
}

func (m *MockNotificationRepo) ListAll(ctx context.Context) ([]model.Notification, error) {
	out := make([]model.Notification, 0, len(m.notifications))
	for _, n := range m.notifications {
		out = append(out, *n)
	}
	return out, nil
}

func (m *MockNotificationRepo) DeleteAll(ctx context.Context) error {
	m.notifications = make(map[uuid.UUID]*model.Notification)
	m.deletedAll = true
	return nil
}

func (m *MockNotificationRepo) Restore(ctx context.Context, n *model.Notification) error {
	m.restored = append(m.restored, *n)
	m.notifications[n.ID] = n
	return nil
}

type MockUserConfigRepo struct {
	configs     map[int64]*model.UserConfig
	lastBackups map[int64]time.Time
	deletedAll  bool
	restored    []model.UserConfig
}

func NewMockUserConfigRepo() *MockUserConfigRepo {
	return &MockUserConfigRepo{
		configs:     make(map[int64]*model.UserConfig),
		lastBackups: make(map[int64]time.Time),
	}
}

func (m *MockUserConfigRepo) GetByUserID(ctx context.Context, userID int64) (*model.UserConfig, error) {
	cfg, ok := m.configs[userID]
	if !ok {
		return nil, model.ErrConfigNotFound
	}
	copied := *cfg
	return &copied, nil
}

func (m *MockUserConfigRepo) Create(ctx context.Context, cfg *model.UserConfig) error {
	if cfg.ID == uuid.Nil {
		cfg.ID = uuid.New()
	}
	m.configs[cfg.UserID] = cfg
	return nil
}

func (m *MockUserConfigRepo) Update(ctx context.Context, cfg *model.UserConfig) error {
	if _, ok := m.configs[cfg.UserID]; !ok {
		return model.ErrConfigNotFound
	}
	m.configs[cfg.UserID] = cfg
	return nil
}

func (m *MockUserConfigRepo) UpdateLastBackup(ctx context.Context, userID int64, backupTime time.Time) error {
	m.lastBackups[userID] = backupTime
	if cfg, ok := m.configs[userID]; ok {
		t := backupTime
		cfg.LastBackupAt = &t
	}
	return nil
}

func (m *MockUserConfigRepo) ListTelegramEnabled(ctx context.Context) ([]model.UserConfig, error) {
	var out []model.UserConfig
	for _, cfg := range m.configs {
		if cfg.TelegramReady() {
			out = append(out, *cfg)
		}
	}
	return out, nil
}

func (m *MockUserConfigRepo) ListAutoBackupEnabled(ctx context.Context) ([]model.UserConfig, error) {
	var out []model.UserConfig
	for _, cfg := range m.configs {
		if cfg.AutoBackup {
			out = append(out, *cfg)
		}
	}
	return out, nil
}

func (m *MockUserConfigRepo) ListAll(ctx context.Context) ([]model.UserConfig, error) {
	out := make([]model.UserConfig, 0, len(m.configs))
	for _, cfg := range m.configs {
		out = append(out, *cfg)
	}
	return out, nil
}

func (m *MockUserConfigRepo) DeleteAll(ctx context.Context) error {
	m.configs = make(map[int64]*model.UserConfig)
	m.deletedAll = true
	return nil
}

func (m *MockUserConfigRepo) Restore(ctx context.Context, cfg *model.UserConfig) error {
	m.restored = append(m.restored, *cfg)
	m.configs[cfg.UserID] = cfg
	return nil
}

// =============================================================================
// Mock Publisher and Schedule Cache
// =============================================================================

type MockPublisher struct {
	events []queue.ScheduleEvent
}

func (m *MockPublisher) Publish(ctx context.Context, stream string, event queue.ScheduleEvent) (string, error) {
	m.events = append(m.events, event)
	return "0-1", nil
}

func (m *MockPublisher) eventsOfType(eventType string) []queue.ScheduleEvent {
	var out []queue.ScheduleEvent
	for _, e := range m.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type MockCache struct {
	entries  map[int64]map[uuid.UUID]int64
	rebuilds int
}

func NewMockCache() *MockCache {
	return &MockCache{entries: make(map[int64]map[uuid.UUID]int64)}
}

func (m *MockCache) AddDose(ctx context.Context, userID int64, doseID uuid.UUID, timestamp int64) error {
	if m.entries[userID] == nil {
		m.entries[userID] = make(map[uuid.UUID]int64)
	}
	m.entries[userID][doseID] = timestamp
	return nil
}

func (m *MockCache) RemoveDose(ctx context.Context, userID int64, doseID uuid.UUID) error {
	delete(m.entries[userID], doseID)
	return nil
}

func (m *MockCache) Upcoming(ctx context.Context, userID int64, from time.Time, limit int) ([]uuid.UUID, []float64, error) {
	type pair struct {
		id uuid.UUID
		ts int64
	}
	var pairs []pair
	for id, ts := range m.entries[userID] {
		if ts >= from.Unix() {
			pairs = append(pairs, pair{id, ts})
		}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].ts < pairs[j].ts })
	if limit > 0 && len(pairs) > limit {
		pairs = pairs[:limit]
	}
	ids := make([]uuid.UUID, len(pairs))
	scores := make([]float64, len(pairs))
	for i, p := range pairs {
		ids[i] = p.id
		scores[i] = float64(p.ts)
	}
	return ids, scores, nil
}

func (m *MockCache) Rebuild(ctx context.Context, userID int64, entries []cache.DoseEntry) error {
	m.rebuilds++
	m.entries[userID] = make(map[uuid.UUID]int64)
	for _, e := range entries {
		m.entries[userID][e.DoseID] = e.Timestamp
	}
	return nil
}

func (m *MockCache) Clear(ctx context.Context, userID int64) error {
	delete(m.entries, userID)
	return nil
}

func (m *MockCache) Size(ctx context.Context, userID int64) (int64, error) {
	return int64(len(m.entries[userID])), nil
}

func (m *MockCache) Exists(ctx context.Context, userID int64) (bool, error) {
	return len(m.entries[userID]) > 0, nil
}
