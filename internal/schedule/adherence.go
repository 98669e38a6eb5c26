package schedule

import (
	"math"

	"doseclock/internal/model"
)

// AdherenceSummary aggregates a treatment's dose history.
type AdherenceSummary struct {
	TotalDoses      int     `json:"total_doses"`
	ConfirmedOnTime int     `json:"confirmed_on_time"`
	ConfirmedLate   int     `json:"confirmed_late"`
	Missed          int     `json:"missed"`
	Pending         int     `json:"pending"`
	AdherenceRate   float64 `json:"adherence_rate"`
}

// SummarizeAdherence computes adherence from per-status counts. Confirmed and
// late doses both count as taken; pending doses are excluded from the
// denominator. With no completed doses the rate is 100.0. Rounded to one
// decimal.
func SummarizeAdherence(counts model.DoseStatusCounts) AdherenceSummary {
	total := counts.Total()
	summary := AdherenceSummary{
		TotalDoses:      total,
		ConfirmedOnTime: counts.Confirmed,
		ConfirmedLate:   counts.Late,
		Missed:          counts.Missed,
		Pending:         counts.Pending,
		AdherenceRate:   100.0,
	}

	completed := total - counts.Pending
	if completed > 0 {
		rate := float64(counts.Confirmed+counts.Late) / float64(completed) * 100
		summary.AdherenceRate = math.Round(rate*10) / 10
	}
	return summary
}
