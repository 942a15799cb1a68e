package domain

import (
	"sort"
	"time"
)

// FeatureSet is an unordered set of feature flags.
type FeatureSet map[Feature]struct{}

// Has reports whether f is in the set.
func (s FeatureSet) Has(f Feature) bool {
	_, ok := s[f]
	return ok
}

// Contains reports whether every flag of other is also in s.
func (s FeatureSet) Contains(other FeatureSet) bool {
	for f := range other {
		if !s.Has(f) {
			return false
		}
	}
	return true
}

// Sorted returns the flags in lexical order.
func (s FeatureSet) Sorted() []Feature {
	out := make([]Feature, 0, len(s))
	for f := range s {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// FeatureResolver computes entitlements from subscriptions.
type FeatureResolver struct {
	catalog *Catalog
}

// NewFeatureResolver creates a resolver over the given catalog.
func NewFeatureResolver(catalog *Catalog) *FeatureResolver {
	return &FeatureResolver{catalog: catalog}
}

// Resolve returns the union of features unlocked by the subscriptions that
// are active at now. Inactive subscriptions contribute nothing.
func (r *FeatureResolver) Resolve(subs []*Subscription, now time.Time) FeatureSet {
	set := FeatureSet{}
	for _, sub := range subs {
		if sub == nil || !sub.IsActive(now) {
			continue
		}
		for _, f := range r.catalog.FeaturesFor(sub.PlanID) {
			set[f] = struct{}{}
		}
	}
	return set
}
