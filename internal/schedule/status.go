package schedule

import (
	"time"

	"doseclock/internal/model"
)

// DetermineStatus computes a dose's lifecycle state from its scheduled and
// confirmed times. Idempotent: the same inputs always yield the same status.
//
//	unconfirmed, inside grace  -> pending
//	unconfirmed, past grace    -> missed
//	confirmed within grace     -> confirmed
//	confirmed after grace      -> late
func DetermineStatus(scheduled time.Time, confirmed *time.Time, graceMinutes int, now time.Time) string {
	deadline := scheduled.Add(time.Duration(graceMinutes) * time.Minute)

	if confirmed == nil {
		if now.After(deadline) {
			return model.DoseMissed
		}
		return model.DosePending
	}

	if !confirmed.After(deadline) {
		return model.DoseConfirmed
	}
	return model.DoseLate
}

// ShouldAutoMarkMissed reports whether an unconfirmed dose is past its grace
// deadline and due for the pending -> missed sweep.
func ShouldAutoMarkMissed(scheduled time.Time, graceMinutes int, now time.Time) bool {
	deadline := scheduled.Add(time.Duration(graceMinutes) * time.Minute)
	return now.After(deadline)
}
