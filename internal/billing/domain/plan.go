package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Interval is a fixed-length billing period. Lengths are not calendar aware.
type Interval string

const (
	IntervalMonth Interval = "month"
	IntervalYear  Interval = "year"
)

const day = 24 * time.Hour

// Length returns the fixed duration of one billing period.
func (i Interval) Length() time.Duration {
	switch i {
	case IntervalYear:
		return 365 * day
	case IntervalMonth:
		return 30 * day
	default:
		return 0
	}
}

// IsValid reports whether the interval is known.
func (i Interval) IsValid() bool {
	return i == IntervalMonth || i == IntervalYear
}

// Feature is a flag unlocked by an active subscription.
type Feature string

const (
	FeatureUnlimitedSearch   Feature = "unlimited_search"
	FeatureAdvancedFilters   Feature = "advanced_filters"
	FeatureAdFree            Feature = "ad_free"
	FeatureExclusiveDeals    Feature = "exclusive_deals"
	FeatureBusinessAnalytics Feature = "business_analytics"
	FeatureEnhancedListing   Feature = "enhanced_listing"
	FeatureCustomerReviews   Feature = "customer_reviews"
	FeaturePriorityPlacement Feature = "priority_placement"
	FeaturePromotionalTools  Feature = "promotional_tools"
	FeatureMultiLocation     Feature = "multi_location"
	FeatureCustomBranding    Feature = "custom_branding"
	FeatureDedicatedSupport  Feature = "dedicated_support"
)

// Plan identifiers offered by the default catalog.
const (
	PlanUserPremium        = "user_premium"
	PlanBusinessBasic      = "business_basic"
	PlanBusinessPremium    = "business_premium"
	PlanBusinessEnterprise = "business_enterprise"
)

// PlanFamily groups plans by who buys them.
type PlanFamily string

const (
	FamilyUser     PlanFamily = "user"
	FamilyBusiness PlanFamily = "business"
)

// FamilyOf derives the family from the plan id prefix.
func FamilyOf(planID string) PlanFamily {
	if strings.HasPrefix(planID, string(FamilyBusiness)) {
		return FamilyBusiness
	}
	return FamilyUser
}

// BusinessTrialDays is the trial granted to every business-family plan.
const BusinessTrialDays = 7

// FamilyFeatures returns the feature flags a plan id unlocks by family rule.
func FamilyFeatures(planID string) []Feature {
	if planID == PlanUserPremium {
		return []Feature{FeatureUnlimitedSearch, FeatureAdvancedFilters, FeatureAdFree, FeatureExclusiveDeals}
	}
	if FamilyOf(planID) != FamilyBusiness {
		return nil
	}

	features := []Feature{FeatureBusinessAnalytics, FeatureEnhancedListing, FeatureCustomerReviews}
	if planID == PlanBusinessPremium || planID == PlanBusinessEnterprise {
		features = append(features, FeaturePriorityPlacement, FeaturePromotionalTools)
	}
	if planID == PlanBusinessEnterprise {
		features = append(features, FeatureMultiLocation, FeatureCustomBranding, FeatureDedicatedSupport)
	}
	return features
}

// Plan is a named subscription tier.
type Plan struct {
	ID         string
	Name       string
	Price      decimal.Decimal
	Currency   string
	Interval   Interval
	TrialDays  int
	Features   []Feature
	Highlights []string
}

// Family returns the plan family.
func (p Plan) Family() PlanFamily {
	return FamilyOf(p.ID)
}

// HasFeature reports whether the plan unlocks f.
func (p Plan) HasFeature(f Feature) bool {
	for _, have := range p.Features {
		if have == f {
			return true
		}
	}
	return false
}

func (p Plan) clone() Plan {
	p.Features = append([]Feature(nil), p.Features...)
	p.Highlights = append([]string(nil), p.Highlights...)
	return p
}

// Catalog is the immutable plan table. Build it once and inject it.
type Catalog struct {
	plans map[string]Plan
	order []string
}

// NewCatalog validates and freezes the given plans.
func NewCatalog(plans ...Plan) (*Catalog, error) {
	c := &Catalog{plans: make(map[string]Plan, len(plans))}
	for _, p := range plans {
		if p.ID == "" {
			return nil, fmt.Errorf("plan id is required")
		}
		if _, dup := c.plans[p.ID]; dup {
			return nil, fmt.Errorf("plan %q declared twice", p.ID)
		}
		if !p.Interval.IsValid() {
			return nil, fmt.Errorf("plan %q: unknown interval %q", p.ID, p.Interval)
		}
		if p.Price.IsNegative() {
			return nil, fmt.Errorf("plan %q: negative price", p.ID)
		}
		if p.TrialDays < 0 || (p.Family() == FamilyUser && p.TrialDays > 0) {
			return nil, fmt.Errorf("plan %q: invalid trial of %d days", p.ID, p.TrialDays)
		}
		if p.Currency == "" {
			p.Currency = "usd"
		}
		p.Currency = strings.ToLower(p.Currency)
		c.plans[p.ID] = p.clone()
		c.order = append(c.order, p.ID)
	}
	return c, nil
}

// DefaultCatalog returns the four plans the directory sells.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(
		Plan{
			ID:         PlanUserPremium,
			Name:       "Premium User",
			Price:      decimal.RequireFromString("7.99"),
			Interval:   IntervalMonth,
			Features:   FamilyFeatures(PlanUserPremium),
			Highlights: []string{"Unlimited searches", "Advanced filters", "Ad-free experience", "Exclusive deals"},
		},
		Plan{
			ID:         PlanBusinessBasic,
			Name:       "Business Basic",
			Price:      decimal.RequireFromString("29.00"),
			Interval:   IntervalMonth,
			TrialDays:  BusinessTrialDays,
			Features:   FamilyFeatures(PlanBusinessBasic),
			Highlights: []string{"Basic analytics", "Enhanced listing", "Customer reviews management"},
		},
		Plan{
			ID:         PlanBusinessPremium,
			Name:       "Business Premium",
			Price:      decimal.RequireFromString("59.00"),
			Interval:   IntervalMonth,
			TrialDays:  BusinessTrialDays,
			Features:   FamilyFeatures(PlanBusinessPremium),
			Highlights: []string{"Advanced analytics", "Priority placement", "Promotional tools", "Customer insights"},
		},
		Plan{
			ID:         PlanBusinessEnterprise,
			Name:       "Business Enterprise",
			Price:      decimal.RequireFromString("99.00"),
			Interval:   IntervalMonth,
			TrialDays:  BusinessTrialDays,
			Features:   FamilyFeatures(PlanBusinessEnterprise),
			Highlights: []string{"Full analytics suite", "Multi-location management", "Custom branding", "Dedicated support"},
		},
	)
	if err != nil {
		panic(err)
	}
	return c
}

// Lookup returns a copy of the plan with the given id.
func (c *Catalog) Lookup(id string) (Plan, bool) {
	p, ok := c.plans[id]
	if !ok {
		return Plan{}, false
	}
	return p.clone(), true
}

// Plans lists every plan in declaration order.
func (c *Catalog) Plans() []Plan {
	out := make([]Plan, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.plans[id].clone())
	}
	return out
}

// FeaturesFor returns the features of a catalog plan, or the family rule
// for plan ids the catalog no longer lists (subscriptions outlive plans).
func (c *Catalog) FeaturesFor(planID string) []Feature {
	if p, ok := c.plans[planID]; ok {
		return append([]Feature(nil), p.Features...)
	}
	return FamilyFeatures(planID)
}
