package schedule

import (
	"fmt"
	"time"
)

// Confirmation window classifications.
const (
	WindowTooEarly    = "too_early"
	WindowInWindow    = "in_window"
	WindowGracePeriod = "grace_period"
	WindowLate        = "late"
)

// WindowStatus classifies where "now" sits relative to a dose's confirmation
// window. Only too_early blocks confirmation, and only at the UI level; late
// confirmations are always accepted and recorded as late.
type WindowStatus struct {
	CanConfirm         bool   `json:"can_confirm"`
	Reason             string `json:"reason"`
	IsOnTime           bool   `json:"is_on_time"`
	MinutesUntilWindow int    `json:"minutes_until_window,omitempty"`
	MinutesLate        int    `json:"minutes_late,omitempty"`
	Message            string `json:"message"`
}

// CheckWindow evaluates the confirmation window for a dose scheduled at the
// given instant. windowMinutes opens the window ahead of the dose;
// graceMinutes extends it after.
func CheckWindow(scheduled time.Time, windowMinutes, graceMinutes int, now time.Time) WindowStatus {
	windowStart := scheduled.Add(-time.Duration(windowMinutes) * time.Minute)
	graceEnd := scheduled.Add(time.Duration(graceMinutes) * time.Minute)

	if now.Before(windowStart) {
		minutesUntil := int(windowStart.Sub(now).Minutes())
		return WindowStatus{
			CanConfirm:         false,
			Reason:             WindowTooEarly,
			MinutesUntilWindow: minutesUntil,
			Message:            fmt.Sprintf("You can confirm in %d minutes", minutesUntil),
		}
	}

	if !now.After(graceEnd) {
		if !now.After(scheduled) {
			return WindowStatus{
				CanConfirm: true,
				Reason:     WindowInWindow,
				IsOnTime:   true,
				Message:    "You can confirm this dose now",
			}
		}
		minutesLate := int(now.Sub(scheduled).Minutes())
		return WindowStatus{
			CanConfirm:  true,
			Reason:      WindowGracePeriod,
			MinutesLate: minutesLate,
			Message:     fmt.Sprintf("You are %d minutes late, but can still confirm", minutesLate),
		}
	}

	return WindowStatus{
		CanConfirm:  true,
		Reason:      WindowLate,
		MinutesLate: int(now.Sub(scheduled).Minutes()),
		Message:     "Late confirmation - this dose will be recorded as late",
	}
}
