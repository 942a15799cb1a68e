package domain

import (
	"time"

	"github.com/google/uuid"
)

// Day truncates t to midnight UTC. Metric rows are keyed by this value.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// WindowStart is the first day included in a window of windowDays ending today.
func WindowStart(now time.Time, windowDays int) time.Time {
	return Day(now).AddDate(0, 0, -windowDays)
}

// DailyBusinessMetrics aggregates one business's activity on one calendar day.
type DailyBusinessMetrics struct {
	BusinessID uuid.UUID
	Date       time.Time

	ProfileViews      int
	UniqueVisitors    int
	SearchAppearances int

	PhoneClicks       int
	WebsiteClicks     int
	DirectionRequests int
	FavoritesAdded    int

	ReviewsReceived int
	AverageRating   float64

	SearchRankingAvg float64
	CategoryRanking  int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Score is the engagement score used for category ranking.
func (m *DailyBusinessMetrics) Score() int {
	return m.ProfileViews + m.SearchAppearances
}

// Totals sums the counters of a set of daily rows.
type Totals struct {
	ProfileViews      int
	UniqueVisitors    int
	SearchAppearances int
	PhoneClicks       int
	WebsiteClicks     int
	DirectionRequests int
	FavoritesAdded    int
	ReviewsReceived   int
}

// Add accumulates one daily row.
func (t *Totals) Add(m *DailyBusinessMetrics) {
	t.ProfileViews += m.ProfileViews
	t.UniqueVisitors += m.UniqueVisitors
	t.SearchAppearances += m.SearchAppearances
	t.PhoneClicks += m.PhoneClicks
	t.WebsiteClicks += m.WebsiteClicks
	t.DirectionRequests += m.DirectionRequests
	t.FavoritesAdded += m.FavoritesAdded
	t.ReviewsReceived += m.ReviewsReceived
}

// SumRows totals rows.
func SumRows(rows []*DailyBusinessMetrics) Totals {
	var t Totals
	for _, r := range rows {
		t.Add(r)
	}
	return t
}

// Summary is the result of summarizing a window.
type Summary struct {
	BusinessID uuid.UUID
	WindowDays int
	StartDate  time.Time
	EndDate    time.Time
	Totals     Totals
	// Days are the raw rows, newest first.
	Days []*DailyBusinessMetrics
}
