package schedule

import (
	"testing"

	"doseclock/internal/model"
)

func TestSummarizeAdherence_NoDoses(t *testing.T) {
	summary := SummarizeAdherence(model.DoseStatusCounts{})

	if summary.TotalDoses != 0 {
		t.Errorf("total = %d, want 0", summary.TotalDoses)
	}
	if summary.AdherenceRate != 100.0 {
		t.Errorf("rate = %.1f, want 100.0 for empty history", summary.AdherenceRate)
	}
}

func TestSummarizeAdherence_OnlyPending(t *testing.T) {
	summary := SummarizeAdherence(model.DoseStatusCounts{Pending: 3})

	// No completed doses yet: rate stays 100.
	if summary.AdherenceRate != 100.0 {
		t.Errorf("rate = %.1f, want 100.0 with only pending doses", summary.AdherenceRate)
	}
	if summary.Pending != 3 {
		t.Errorf("pending = %d, want 3", summary.Pending)
	}
}

func TestSummarizeAdherence_Mixed(t *testing.T) {
	// 4 confirmed + 1 late + 2 missed completed, 1 pending excluded.
	summary := SummarizeAdherence(model.DoseStatusCounts{
		Confirmed: 4,
		Late:      1,
		Missed:    2,
		Pending:   1,
	})

	if summary.TotalDoses != 8 {
		t.Errorf("total = %d, want 8", summary.TotalDoses)
	}
	// (4+1)/7 * 100 = 71.428... -> 71.4
	if summary.AdherenceRate != 71.4 {
		t.Errorf("rate = %.1f, want 71.4", summary.AdherenceRate)
	}
}

func TestSummarizeAdherence_LateCountsAsTaken(t *testing.T) {
	summary := SummarizeAdherence(model.DoseStatusCounts{Late: 2})

	if summary.AdherenceRate != 100.0 {
		t.Errorf("rate = %.1f, want 100.0 when every dose was taken (late)", summary.AdherenceRate)
	}
}
