package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// ComparisonWindowDays is the length of each window compared by a
// performance report.
const ComparisonWindowDays = 30

// PercentChange is (current - previous) / max(previous, 1) * 100. A zero
// previous value yields a large finite percentage instead of failing.
func PercentChange(current, previous int) float64 {
	return float64(current-previous) / float64(max(previous, 1)) * 100
}

// RoundTenth rounds to one decimal place for presentation.
func RoundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}

// AxisComparison compares one counter across the current and previous window.
type AxisComparison struct {
	Current       int
	Previous      int
	ChangePercent float64
}

// Compare builds a comparison of two values.
func Compare(current, previous int) AxisComparison {
	return AxisComparison{
		Current:       current,
		Previous:      previous,
		ChangePercent: PercentChange(current, previous),
	}
}

// Windows are the date bounds of a comparison. Current covers
// [CurrentStart, today]; previous covers [PreviousStart, CurrentStart).
type Windows struct {
	PreviousStart time.Time
	CurrentStart  time.Time
	Today         time.Time
}

// ComparisonWindows derives the two back-to-back windows ending today.
func ComparisonWindows(now time.Time) Windows {
	today := Day(now)
	return Windows{
		PreviousStart: today.AddDate(0, 0, -2*ComparisonWindowDays),
		CurrentStart:  today.AddDate(0, 0, -ComparisonWindowDays),
		Today:         today,
	}
}

// PerformanceReport compares a business's current month with the month before.
type PerformanceReport struct {
	BusinessID        uuid.UUID
	Windows           Windows
	Current           Totals
	Previous          Totals
	ProfileViews      AxisComparison
	SearchAppearances AxisComparison
	// Ranking is set by callers that know the business's category peers.
	Ranking  *CategoryRanking
	Insights []Insight
}

// NewPerformanceReport compares the two windows' totals.
func NewPerformanceReport(businessID uuid.UUID, w Windows, current, previous Totals) *PerformanceReport {
	return &PerformanceReport{
		BusinessID:        businessID,
		Windows:           w,
		Current:           current,
		Previous:          previous,
		ProfileViews:      Compare(current.ProfileViews, previous.ProfileViews),
		SearchAppearances: Compare(current.SearchAppearances, previous.SearchAppearances),
	}
}
