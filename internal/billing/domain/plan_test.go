package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntervalLength(t *testing.T) {
	assert.Equal(t, 30*24*time.Hour, IntervalMonth.Length())
	assert.Equal(t, 365*24*time.Hour, IntervalYear.Length())
	assert.Zero(t, Interval("week").Length())
	assert.False(t, Interval("week").IsValid())
}

func TestFamilyOf(t *testing.T) {
	assert.Equal(t, FamilyBusiness, FamilyOf("business_basic"))
	assert.Equal(t, FamilyBusiness, FamilyOf("business_custom"))
	assert.Equal(t, FamilyUser, FamilyOf("user_premium"))
}

func TestFamilyFeatures(t *testing.T) {
	tests := []struct {
		planID string
		want   []Feature
	}{
		{PlanUserPremium, []Feature{FeatureUnlimitedSearch, FeatureAdvancedFilters, FeatureAdFree, FeatureExclusiveDeals}},
		{PlanBusinessBasic, []Feature{FeatureBusinessAnalytics, FeatureEnhancedListing, FeatureCustomerReviews}},
		{PlanBusinessPremium, []Feature{FeatureBusinessAnalytics, FeatureEnhancedListing, FeatureCustomerReviews, FeaturePriorityPlacement, FeaturePromotionalTools}},
		{PlanBusinessEnterprise, []Feature{
			FeatureBusinessAnalytics, FeatureEnhancedListing, FeatureCustomerReviews,
			FeaturePriorityPlacement, FeaturePromotionalTools,
			FeatureMultiLocation, FeatureCustomBranding, FeatureDedicatedSupport,
		}},
		{"business_legacy", []Feature{FeatureBusinessAnalytics, FeatureEnhancedListing, FeatureCustomerReviews}},
		{"user_free", nil},
	}

	for _, tc := range tests {
		t.Run(tc.planID, func(t *testing.T) {
			assert.Equal(t, tc.want, FamilyFeatures(tc.planID))
		})
	}
}

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()

	plans := c.Plans()
	require.Len(t, plans, 4)
	assert.Equal(t, PlanUserPremium, plans[0].ID)
	assert.Equal(t, PlanBusinessEnterprise, plans[3].ID)

	premium, ok := c.Lookup(PlanUserPremium)
	require.True(t, ok)
	assert.True(t, premium.Price.Equal(decimal.RequireFromString("7.99")))
	assert.Equal(t, "usd", premium.Currency)
	assert.Zero(t, premium.TrialDays)

	basic, ok := c.Lookup(PlanBusinessBasic)
	require.True(t, ok)
	assert.Equal(t, BusinessTrialDays, basic.TrialDays)
	assert.True(t, basic.HasFeature(FeatureCustomerReviews))
	assert.False(t, basic.HasFeature(FeaturePriorityPlacement))

	_, ok = c.Lookup("gold")
	assert.False(t, ok)
}

func TestCatalog_LookupReturnsCopy(t *testing.T) {
	c := DefaultCatalog()

	p, _ := c.Lookup(PlanBusinessBasic)
	p.Features[0] = "tampered"
	p.Highlights = nil

	again, _ := c.Lookup(PlanBusinessBasic)
	assert.Equal(t, FeatureBusinessAnalytics, again.Features[0])
	assert.NotEmpty(t, again.Highlights)
}

func TestNewCatalog_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		plans []Plan
	}{
		{"missing id", []Plan{{Interval: IntervalMonth}}},
		{"duplicate", []Plan{{ID: "a", Interval: IntervalMonth}, {ID: "a", Interval: IntervalMonth}}},
		{"bad interval", []Plan{{ID: "a", Interval: "week"}}},
		{"negative price", []Plan{{ID: "a", Interval: IntervalMonth, Price: decimal.NewFromInt(-1)}}},
		{"user trial", []Plan{{ID: "user_plus", Interval: IntervalMonth, TrialDays: 3}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewCatalog(tc.plans...)
			assert.Error(t, err)
		})
	}
}

func TestCatalog_FeaturesForUnknownPlanUsesFamilyRule(t *testing.T) {
	c, err := NewCatalog(Plan{ID: PlanUserPremium, Interval: IntervalYear, Currency: "EUR"})
	require.NoError(t, err)

	p, _ := c.Lookup(PlanUserPremium)
	assert.Equal(t, "eur", p.Currency)
	assert.Empty(t, c.FeaturesFor(PlanUserPremium))
	assert.Equal(t, FamilyFeatures(PlanBusinessBasic), c.FeaturesFor(PlanBusinessBasic))
}

func TestPaymentProof_Covers(t *testing.T) {
	price := decimal.RequireFromString("29.99")
	paid := PaymentProof{Reference: "pi", Status: PaymentSucceeded, AmountCents: 2999, Currency: "USD"}

	assert.True(t, paid.Covers(price, "usd"))
	assert.False(t, paid.Covers(decimal.RequireFromString("99.99"), "usd"))
	assert.False(t, paid.Covers(price, "eur"))
	assert.False(t, PaymentProof{Reference: "pi", Status: PaymentSucceeded}.Covers(price, "usd"))
}
