package schedule

import (
	"testing"
	"time"
)

func TestCheckWindow_TooEarly(t *testing.T) {
	// 12 minutes before the dose, window opens at -5m.
	now := t0.Add(-12 * time.Minute)

	status := CheckWindow(t0, 5, 20, now)

	if status.CanConfirm {
		t.Error("confirmation should be blocked before the window opens")
	}
	if status.Reason != WindowTooEarly {
		t.Errorf("reason = %q, want %q", status.Reason, WindowTooEarly)
	}
	if status.MinutesUntilWindow != 7 {
		t.Errorf("minutes until window = %d, want 7", status.MinutesUntilWindow)
	}
}

func TestCheckWindow_InWindow(t *testing.T) {
	cases := []time.Time{
		t0.Add(-5 * time.Minute), // window opens
		t0.Add(-time.Minute),
		t0, // exactly on time
	}

	for _, now := range cases {
		status := CheckWindow(t0, 5, 20, now)
		if !status.CanConfirm || status.Reason != WindowInWindow || !status.IsOnTime {
			t.Errorf("at %v: status = %+v, want on-time in_window", now, status)
		}
	}
}

func TestCheckWindow_GracePeriod(t *testing.T) {
	now := t0.Add(8 * time.Minute)

	status := CheckWindow(t0, 5, 20, now)

	if !status.CanConfirm {
		t.Error("grace period should allow confirmation")
	}
	if status.Reason != WindowGracePeriod {
		t.Errorf("reason = %q, want %q", status.Reason, WindowGracePeriod)
	}
	if status.IsOnTime {
		t.Error("grace period confirmation is not on time")
	}
	if status.MinutesLate != 8 {
		t.Errorf("minutes late = %d, want 8", status.MinutesLate)
	}
}

func TestCheckWindow_Late(t *testing.T) {
	now := t0.Add(90 * time.Minute)

	status := CheckWindow(t0, 5, 20, now)

	// Past the grace period confirmation stays permitted; it only changes the
	// recorded status, never blocks the action.
	if !status.CanConfirm {
		t.Error("late confirmation must still be permitted")
	}
	if status.Reason != WindowLate {
		t.Errorf("reason = %q, want %q", status.Reason, WindowLate)
	}
	if status.MinutesLate != 90 {
		t.Errorf("minutes late = %d, want 90", status.MinutesLate)
	}
}
