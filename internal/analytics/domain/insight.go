package domain

import "fmt"

// InsightType is the tone of an insight.
type InsightType string

const (
	InsightPositive   InsightType = "positive"
	InsightSuggestion InsightType = "suggestion"
)

const (
	growthFactor  = 1.2
	declineFactor = 0.8
)

// Insight is a short, human-readable observation about a business.
type Insight struct {
	Type    InsightType
	Axis    string
	Title   string
	Message string
}

// InsightRule watches one counter. Growth beyond 20% produces the positive
// insight, a drop beyond 20% the suggestion, anything else nothing.
type InsightRule struct {
	Axis  string
	Value func(Totals) int

	PositiveTitle string
	// PositiveFormat receives the percent change as its only argument.
	PositiveFormat string

	SuggestionTitle   string
	SuggestionMessage string
}

// Evaluate applies the rule to two windows.
func (r InsightRule) Evaluate(current, previous Totals) (Insight, bool) {
	cur, prev := r.Value(current), r.Value(previous)
	switch {
	case float64(cur) > float64(prev)*growthFactor:
		return Insight{
			Type:    InsightPositive,
			Axis:    r.Axis,
			Title:   r.PositiveTitle,
			Message: fmt.Sprintf(r.PositiveFormat, PercentChange(cur, prev)),
		}, true
	case float64(cur) < float64(prev)*declineFactor:
		return Insight{
			Type:    InsightSuggestion,
			Axis:    r.Axis,
			Title:   r.SuggestionTitle,
			Message: r.SuggestionMessage,
		}, true
	}
	return Insight{}, false
}

// ProfileViewsRule is the profile views axis.
var ProfileViewsRule = InsightRule{
	Axis:              string(CounterProfileViews),
	Value:             func(t Totals) int { return t.ProfileViews },
	PositiveTitle:     "Growing Visibility",
	PositiveFormat:    "Your profile views increased by %.1f%% this month!",
	SuggestionTitle:   "Boost Your Visibility",
	SuggestionMessage: "Consider updating your business photos or adding special offers to increase engagement.",
}

// SearchAppearancesRule is the search appearances axis.
var SearchAppearancesRule = InsightRule{
	Axis:              string(CounterSearchAppearances),
	Value:             func(t Totals) int { return t.SearchAppearances },
	PositiveTitle:     "Showing Up in More Searches",
	PositiveFormat:    "Your business appeared in %.1f%% more searches this month!",
	SuggestionTitle:   "Improve Your Search Reach",
	SuggestionMessage: "Add a detailed description and keep your category and hours current so more searches find you.",
}

// DefaultInsightRules is the rule list used by the aggregator.
func DefaultInsightRules() []InsightRule {
	return []InsightRule{ProfileViewsRule, SearchAppearancesRule}
}

// GenerateInsights evaluates rules in order.
func GenerateInsights(current, previous Totals, rules []InsightRule) []Insight {
	insights := []Insight{}
	for _, rule := range rules {
		if in, ok := rule.Evaluate(current, previous); ok {
			insights = append(insights, in)
		}
	}
	return insights
}
