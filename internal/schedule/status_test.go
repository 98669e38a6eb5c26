package schedule

import (
	"testing"
	"time"

	"doseclock/internal/model"
)

func TestDetermineStatus_Unconfirmed(t *testing.T) {
	scheduled := t0
	grace := 20

	cases := []struct {
		name string
		now  time.Time
		want string
	}{
		{"before scheduled", t0.Add(-time.Hour), model.DosePending},
		{"inside grace", t0.Add(10 * time.Minute), model.DosePending},
		{"grace boundary holds", t0.Add(20 * time.Minute), model.DosePending},
		{"past grace", t0.Add(21 * time.Minute), model.DoseMissed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DetermineStatus(scheduled, nil, grace, tc.now); got != tc.want {
				t.Errorf("status = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestDetermineStatus_Confirmed(t *testing.T) {
	scheduled := t0
	grace := 20
	now := t0.Add(2 * time.Hour) // now is irrelevant once confirmed

	onTime := t0.Add(5 * time.Minute)
	if got := DetermineStatus(scheduled, &onTime, grace, now); got != model.DoseConfirmed {
		t.Errorf("confirmation at +5m = %q, want confirmed", got)
	}

	boundary := t0.Add(20 * time.Minute)
	if got := DetermineStatus(scheduled, &boundary, grace, now); got != model.DoseConfirmed {
		t.Errorf("confirmation at grace boundary = %q, want confirmed", got)
	}

	late := t0.Add(45 * time.Minute)
	if got := DetermineStatus(scheduled, &late, grace, now); got != model.DoseLate {
		t.Errorf("confirmation at +45m = %q, want late", got)
	}
}

func TestDetermineStatus_Idempotent(t *testing.T) {
	confirmed := t0.Add(30 * time.Minute)
	now := t0.Add(time.Hour)

	first := DetermineStatus(t0, &confirmed, 20, now)
	second := DetermineStatus(t0, &confirmed, 20, now)

	if first != second {
		t.Errorf("repeated evaluation differs: %q then %q", first, second)
	}
}

func TestShouldAutoMarkMissed(t *testing.T) {
	grace := 20

	if ShouldAutoMarkMissed(t0, grace, t0.Add(20*time.Minute)) {
		t.Error("dose at grace boundary should not be auto-missed")
	}
	if !ShouldAutoMarkMissed(t0, grace, t0.Add(21*time.Minute)) {
		t.Error("dose past grace should be auto-missed")
	}
}
