package schedule

import (
	"testing"
	"time"

	"doseclock/internal/model"
)

var t0 = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

func makeTreatment(frequencyHours float64, mode string) *model.Treatment {
	return &model.Treatment{
		StartTime:       t0,
		FrequencyHours:  frequencyHours,
		CalculationMode: mode,
		IsIndefinite:    true,
		Status:          model.TreatmentActive,
	}
}

func makeDose(scheduled time.Time, confirmed *time.Time) *model.Dose {
	return &model.Dose{
		ScheduledTime: scheduled,
		ConfirmedTime: confirmed,
		Status:        model.DosePending,
	}
}

func TestNextDoseTime_FirstDoseIsStartTime(t *testing.T) {
	tr := makeTreatment(8, model.CalculationFromScheduled)

	got := NextDoseTime(tr, nil)

	if !got.Equal(t0) {
		t.Errorf("next dose = %v, want start time %v", got, t0)
	}
}

func TestNextDoseTime_FromScheduled_IgnoresConfirmationDelay(t *testing.T) {
	tr := makeTreatment(8, model.CalculationFromScheduled)

	// Confirmed 47 minutes late; schedule must not shift.
	confirmed := t0.Add(47 * time.Minute)
	last := makeDose(t0, &confirmed)

	got := NextDoseTime(tr, last)
	want := t0.Add(8 * time.Hour)

	if !got.Equal(want) {
		t.Errorf("next dose = %v, want %v", got, want)
	}
}

func TestNextDoseTime_FromScheduled_AccumulatesExactly(t *testing.T) {
	// After N doses the schedule is start + N*frequency, regardless of when
	// each dose was actually confirmed.
	tr := makeTreatment(8, model.CalculationFromScheduled)

	last := (*model.Dose)(nil)
	for n := 1; n <= 10; n++ {
		next := NextDoseTime(tr, last)
		want := t0.Add(time.Duration(n-1) * 8 * time.Hour)
		if !next.Equal(want) {
			t.Fatalf("dose %d = %v, want %v", n, next, want)
		}
		confirmed := next.Add(13 * time.Minute)
		last = makeDose(next, &confirmed)
	}
}

func TestNextDoseTime_FromConfirmation_DelayPropagates(t *testing.T) {
	tr := makeTreatment(8, model.CalculationFromConfirmation)

	delta := 35 * time.Minute
	confirmed := t0.Add(delta)
	last := makeDose(t0, &confirmed)

	got := NextDoseTime(tr, last)
	want := confirmed.Add(8 * time.Hour)

	if !got.Equal(want) {
		t.Errorf("next dose = %v, want confirmed+8h %v", got, want)
	}
}

func TestNextDoseTime_FromConfirmation_FallsBackToScheduled(t *testing.T) {
	tr := makeTreatment(12, model.CalculationFromConfirmation)
	last := makeDose(t0, nil) // not yet confirmed

	got := NextDoseTime(tr, last)
	want := t0.Add(12 * time.Hour)

	if !got.Equal(want) {
		t.Errorf("next dose = %v, want %v", got, want)
	}
}

func TestNextDoseTime_FractionalFrequency(t *testing.T) {
	tr := makeTreatment(1.5, model.CalculationFromScheduled)
	last := makeDose(t0, nil)

	got := NextDoseTime(tr, last)
	want := t0.Add(90 * time.Minute)

	if !got.Equal(want) {
		t.Errorf("next dose = %v, want %v", got, want)
	}
}

func TestFutureDoses_SkipsPastInstants(t *testing.T) {
	tr := makeTreatment(8, model.CalculationFromScheduled)

	// Now is 20h after start: doses at +0h, +8h, +16h are in the past.
	now := t0.Add(20 * time.Hour)
	doses := FutureDoses(tr, nil, now, 3)

	if len(doses) != 3 {
		t.Fatalf("got %d doses, want 3", len(doses))
	}
	want := t0.Add(24 * time.Hour)
	for i, d := range doses {
		if !d.Equal(want) {
			t.Errorf("dose[%d] = %v, want %v", i, d, want)
		}
		want = want.Add(8 * time.Hour)
	}
}

func TestFutureDoses_BoundaryInstantIsSkipped(t *testing.T) {
	tr := makeTreatment(8, model.CalculationFromScheduled)

	// now exactly on a scheduled instant: that instant is not actionable.
	now := t0.Add(8 * time.Hour)
	doses := FutureDoses(tr, nil, now, 1)

	if len(doses) != 1 {
		t.Fatalf("got %d doses, want 1", len(doses))
	}
	if want := t0.Add(16 * time.Hour); !doses[0].Equal(want) {
		t.Errorf("dose = %v, want %v", doses[0], want)
	}
}

func TestFutureDoses_StopsAtTreatmentEnd(t *testing.T) {
	days := 1
	tr := &model.Treatment{
		StartTime:       t0,
		FrequencyHours:  8,
		CalculationMode: model.CalculationFromScheduled,
		DurationDays:    &days,
	}

	doses := FutureDoses(tr, nil, t0, 10)

	// Window is [t0, t0+24h] inclusive: doses at +8h, +16h, +24h.
	if len(doses) != 3 {
		t.Fatalf("got %d doses, want 3", len(doses))
	}
	if last := t0.Add(24 * time.Hour); !doses[2].Equal(last) {
		t.Errorf("last dose = %v, want inclusive boundary %v", doses[2], last)
	}
}

func TestFutureDoses_Deterministic(t *testing.T) {
	tr := makeTreatment(6, model.CalculationFromConfirmation)
	confirmed := t0.Add(10 * time.Minute)
	last := makeDose(t0, &confirmed)
	now := t0.Add(time.Hour)

	first := FutureDoses(tr, last, now, 5)
	second := FutureDoses(tr, last, now, 5)

	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if !first[i].Equal(second[i]) {
			t.Errorf("dose[%d] differs: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestWithinTreatmentWindow(t *testing.T) {
	days := 1
	bounded := &model.Treatment{StartTime: t0, DurationDays: &days, FrequencyHours: 8}

	cases := []struct {
		name    string
		tr      *model.Treatment
		instant time.Time
		want    bool
	}{
		{"indefinite always inside", makeTreatment(8, model.CalculationFromScheduled), t0.Add(999 * time.Hour), true},
		{"nil duration always inside", &model.Treatment{StartTime: t0, FrequencyHours: 8}, t0.Add(999 * time.Hour), true},
		{"inside one-day window", bounded, t0.Add(23 * time.Hour), true},
		{"boundary is inclusive", bounded, t0.Add(24 * time.Hour), true},
		{"past the window", bounded, t0.Add(25 * time.Hour), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := WithinTreatmentWindow(tc.tr, tc.instant); got != tc.want {
				t.Errorf("WithinTreatmentWindow(%v) = %t, want %t", tc.instant, got, tc.want)
			}
		})
	}
}

func TestDosesForDay(t *testing.T) {
	// Treatment starts 08:00 March 10, every 8h: 08:00, 16:00, 00:00, ...
	tr := makeTreatment(8, model.CalculationFromScheduled)

	day := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
	doses := DosesForDay(tr, day)

	want := []time.Time{
		time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 11, 8, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 11, 16, 0, 0, 0, time.UTC),
	}
	if len(doses) != len(want) {
		t.Fatalf("got %d doses, want %d", len(doses), len(want))
	}
	for i := range want {
		if !doses[i].Equal(want[i]) {
			t.Errorf("dose[%d] = %v, want %v", i, doses[i], want[i])
		}
	}
}

func TestDosesForDay_RespectsTreatmentWindow(t *testing.T) {
	days := 1
	tr := &model.Treatment{StartTime: t0, DurationDays: &days, FrequencyHours: 8}

	// March 11: schedule would hit 00:00, 08:00 (= t0+24h, inclusive), 16:00 (outside).
	day := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)
	doses := DosesForDay(tr, day)

	if len(doses) != 2 {
		t.Fatalf("got %d doses, want 2", len(doses))
	}
}

func TestTimeUntilDose(t *testing.T) {
	now := t0
	dose := t0.Add(2*time.Hour + 30*time.Minute + 15*time.Second)

	cd := TimeUntilDose(now, dose)

	if cd.IsPast {
		t.Error("future dose reported as past")
	}
	if cd.Hours != 2 || cd.Minutes != 30 || cd.Seconds != 15 {
		t.Errorf("countdown = %dh %dm %ds, want 2h 30m 15s", cd.Hours, cd.Minutes, cd.Seconds)
	}

	past := TimeUntilDose(now, t0.Add(-time.Minute))
	if !past.IsPast || past.TotalSeconds != 0 {
		t.Errorf("past dose countdown = %+v, want zero with IsPast", past)
	}
}

func TestFormatCountdown(t *testing.T) {
	cases := []struct {
		seconds int
		want    string
	}{
		{9015, "2h 30m 15s"},
		{3600, "1h"},
		{75, "1m 15s"},
		{5, "5s"},
		{0, "now"},
		{-10, "now"},
	}
	for _, tc := range cases {
		if got := FormatCountdown(tc.seconds); got != tc.want {
			t.Errorf("FormatCountdown(%d) = %q, want %q", tc.seconds, got, tc.want)
		}
	}
}
