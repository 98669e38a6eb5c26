package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event types for the schedule stream
const (
	EventDoseConfirmed    = "dose_confirmed"
	EventTreatmentChanged = "treatment_changed"
	EventTreatmentDeleted = "treatment_deleted"
)

// Stream names
const (
	StreamSchedule = "stream:schedule"
)

// Consumer group name for schedule workers
const (
	ConsumerGroupSchedule = "schedule_workers"
)

// ScheduleEvent represents an event published to the schedule stream.
// All schedule-related events share this structure.
type ScheduleEvent struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"` // Unix timestamp when event occurred

	UserID      int64     `json:"user_id"`
	TreatmentID uuid.UUID `json:"treatment_id"`

	// Dose event (DoseConfirmed)
	DoseID uuid.UUID `json:"dose_id,omitempty"`
}

// NewDoseConfirmedEvent creates an event for a dose confirmation.
// The worker materializes the next dose and refreshes the schedule cache.
// Under from_confirmation mode the next instant depends on this confirmation,
// so the event must carry the confirmed dose.
func NewDoseConfirmedEvent(userID int64, treatmentID, doseID uuid.UUID) ScheduleEvent {
	return ScheduleEvent{
		Type:        EventDoseConfirmed,
		Timestamp:   time.Now().Unix(),
		UserID:      userID,
		TreatmentID: treatmentID,
		DoseID:      doseID,
	}
}

// NewTreatmentChangedEvent creates an event for a treatment create, update,
// pause or resume. The worker rebuilds the user's schedule cache.
func NewTreatmentChangedEvent(userID int64, treatmentID uuid.UUID) ScheduleEvent {
	return ScheduleEvent{
		Type:        EventTreatmentChanged,
		Timestamp:   time.Now().Unix(),
		UserID:      userID,
		TreatmentID: treatmentID,
	}
}

// NewTreatmentDeletedEvent creates an event for a treatment deletion.
// The worker rebuilds the user's schedule cache without the deleted
// treatment's doses.
func NewTreatmentDeletedEvent(userID int64, treatmentID uuid.UUID) ScheduleEvent {
	return ScheduleEvent{
		Type:        EventTreatmentDeleted,
		Timestamp:   time.Now().Unix(),
		UserID:      userID,
		TreatmentID: treatmentID,
	}
}

// ToMap converts the event to a map for Redis XADD.
// Redis Streams store field-value pairs, so we serialize to JSON in a "data" field.
func (e ScheduleEvent) ToMap() (map[string]interface{}, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return map[string]interface{}{
		"type": e.Type,
		"data": string(data),
	}, nil
}

// ParseScheduleEvent parses a ScheduleEvent from Redis stream message values.
func ParseScheduleEvent(values map[string]interface{}) (ScheduleEvent, error) {
	data, ok := values["data"].(string)
	if !ok {
		return ScheduleEvent{}, fmt.Errorf("missing or invalid 'data' field")
	}

	var event ScheduleEvent
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return ScheduleEvent{}, fmt.Errorf("unmarshal event: %w", err)
	}
	return event, nil
}
