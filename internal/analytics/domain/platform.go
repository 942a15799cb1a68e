package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PlatformMetrics is the platform-wide rollup of one day.
type PlatformMetrics struct {
	Date              time.Time
	ActiveUsers       int
	PremiumUsers      int
	TotalBusinesses   int
	NewBusinesses     int
	PremiumBusinesses int
	TotalSearches     int
	TotalViews        int
	TotalReviews      int
	// SubscriptionRevenue sums succeeded payments made that day.
	SubscriptionRevenue decimal.Decimal
	UpdatedAt           time.Time
}

// PlatformOverview summarizes the platform for an admin.
type PlatformOverview struct {
	WindowDays          int
	TotalBusinesses     int
	ActiveSubscriptions int
	RecentSearches      int
	RecentViews         int
	// Daily are stored rollups within the window, newest first.
	Daily []*PlatformMetrics
}
