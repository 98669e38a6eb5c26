package schedule

import (
	"fmt"
	"strings"
	"time"

	"doseclock/internal/model"
)

// frequencyDuration converts a treatment's frequency to a duration.
// Fractional hours are permitted down to 30-minute granularity; the bound is
// enforced by validation, not here.
func frequencyDuration(frequencyHours float64) time.Duration {
	return time.Duration(frequencyHours * float64(time.Hour))
}

// baseInstant returns the anchor for the next dose computation: the last
// dose's scheduled time in from_scheduled mode, its confirmed time (falling
// back to scheduled while unconfirmed) in from_confirmation mode, or the
// treatment start when no dose exists yet.
func baseInstant(t *model.Treatment, lastDose *model.Dose) time.Time {
	if lastDose == nil {
		return t.StartTime
	}
	if t.CalculationMode == model.CalculationFromConfirmation && lastDose.ConfirmedTime != nil {
		return *lastDose.ConfirmedTime
	}
	return lastDose.ScheduledTime
}

// NextDoseTime computes the next scheduled dose instant. The first dose of a
// treatment is due exactly at the treatment start time.
func NextDoseTime(t *model.Treatment, lastDose *model.Dose) time.Time {
	if lastDose == nil {
		return t.StartTime
	}
	return baseInstant(t, lastDose).Add(frequencyDuration(t.FrequencyHours))
}

// FutureDoses computes up to count future dose instants, strictly after now.
// lastDose is the most recent persisted dose by scheduled time, or nil.
// The sequence stops early the first time an instant falls outside the
// treatment window. Pure function of its inputs; safe to re-run.
func FutureDoses(t *model.Treatment, lastDose *model.Dose, now time.Time, count int) []time.Time {
	step := frequencyDuration(t.FrequencyHours)
	if step <= 0 || count <= 0 {
		return nil
	}

	next := baseInstant(t, lastDose)
	for !next.After(now) {
		next = next.Add(step)
	}

	doses := make([]time.Time, 0, count)
	for i := 0; i < count; i++ {
		if !WithinTreatmentWindow(t, next) {
			break
		}
		doses = append(doses, next)
		next = next.Add(step)
	}
	return doses
}

// WithinTreatmentWindow reports whether an instant falls inside the treatment
// duration. The end boundary start+duration is inclusive.
func WithinTreatmentWindow(t *model.Treatment, instant time.Time) bool {
	if t.IsIndefinite || t.DurationDays == nil {
		return true
	}
	end := t.StartTime.Add(time.Duration(*t.DurationDays) * 24 * time.Hour)
	return !instant.After(end)
}

// DosesForDay walks the schedule from the treatment start and collects every
// instant inside [dayStart, dayEnd] that is still within the treatment window.
// Day boundaries use the location of dayStart; the system runs a single fixed
// zone (UTC).
func DosesForDay(t *model.Treatment, day time.Time) []time.Time {
	step := frequencyDuration(t.FrequencyHours)
	if step <= 0 {
		return nil
	}

	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.Add(24*time.Hour - time.Nanosecond)

	current := t.StartTime
	for current.Before(dayStart) {
		current = current.Add(step)
	}

	var doses []time.Time
	for !current.After(dayEnd) {
		if WithinTreatmentWindow(t, current) {
			doses = append(doses, current)
		}
		current = current.Add(step)
	}
	return doses
}

// Countdown describes the time remaining until a scheduled dose.
type Countdown struct {
	Hours        int  `json:"hours"`
	Minutes      int  `json:"minutes"`
	Seconds      int  `json:"seconds"`
	TotalSeconds int  `json:"total_seconds"`
	IsPast       bool `json:"is_past"`
}

// TimeUntilDose computes the countdown from now to the dose instant. A dose in
// the past yields a zero countdown with IsPast set.
func TimeUntilDose(now, doseTime time.Time) Countdown {
	delta := doseTime.Sub(now)
	if delta < 0 {
		return Countdown{IsPast: true}
	}

	total := int(delta / time.Second)
	return Countdown{
		Hours:        total / 3600,
		Minutes:      (total % 3600) / 60,
		Seconds:      total % 60,
		TotalSeconds: total,
	}
}

// FormatCountdown renders a countdown as "2h 30m 15s". Zero or negative
// remainders render as "now".
func FormatCountdown(totalSeconds int) string {
	if totalSeconds <= 0 {
		return "now"
	}

	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	var parts []string
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%ds", seconds))
	}
	return strings.Join(parts, " ")
}
