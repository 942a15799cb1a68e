package domain

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterFor(t *testing.T) {
	tests := []struct {
		kind    ActivityKind
		counter Counter
		ok      bool
	}{
		{KindViewBusiness, CounterProfileViews, true},
		{KindPhoneClick, CounterPhoneClicks, true},
		{KindWebsiteClick, CounterWebsiteClicks, true},
		{KindDirectionRequest, CounterDirectionRequests, true},
		{KindFavorite, CounterFavoritesAdded, true},
		{KindSearch, "", false},
		{KindReview, "", false},
		{ActivityKind("share_business"), "", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			c, ok := CounterFor(tt.kind)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.counter, c)
			assert.Equal(t, tt.ok, tt.kind.Aggregates())
		})
	}
}

func TestNewActivityEvent_DefaultsSession(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.FixedZone("EST", -5*3600))
	ev := NewActivityEvent(KindLogin, "", at)
	assert.Equal(t, AnonymousSession, ev.SessionID)
	assert.Equal(t, time.UTC, ev.OccurredAt.Location())

	ev = NewActivityEvent(KindLogin, "s-1", at)
	assert.Equal(t, "s-1", ev.SessionID)
}

func TestNewSearchEvent_Filters(t *testing.T) {
	ev, err := NewSearchEvent("soul food", "", nil, time.Now())
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(ev.Filters))
	assert.Equal(t, AnonymousSession, ev.SessionID)

	ev, err = NewSearchEvent("soul food", "s", map[string]any{"city": "Atlanta"}, time.Now())
	require.NoError(t, err)
	assert.JSONEq(t, `{"city":"Atlanta"}`, string(ev.Filters))
}

func TestDayAndWindowStart(t *testing.T) {
	now := time.Date(2026, 3, 31, 23, 30, 0, 0, time.FixedZone("PDT", -7*3600))
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), Day(now))
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), WindowStart(now, 30))
}

func TestPercentChange(t *testing.T) {
	assert.Equal(t, 500.0, PercentChange(5, 0))
	assert.Equal(t, 0.0, PercentChange(0, 0))
	assert.Equal(t, -50.0, PercentChange(5, 10))
	assert.InDelta(t, 33.333, PercentChange(4, 3), 0.001)
	assert.Equal(t, 33.3, RoundTenth(PercentChange(4, 3)))
}

func TestGenerateInsights(t *testing.T) {
	tests := []struct {
		name     string
		current  Totals
		previous Totals
		want     []Insight
	}{
		{
			name:     "growth on views",
			current:  Totals{ProfileViews: 130},
			previous: Totals{ProfileViews: 100},
			want: []Insight{{
				Type:    InsightPositive,
				Axis:    "profile_views",
				Title:   "Growing Visibility",
				Message: "Your profile views increased by 30.0% this month!",
			}},
		},
		{
			name:     "decline on views",
			current:  Totals{ProfileViews: 70},
			previous: Totals{ProfileViews: 100},
			want: []Insight{{
				Type:    InsightSuggestion,
				Axis:    "profile_views",
				Title:   "Boost Your Visibility",
				Message: "Consider updating your business photos or adding special offers to increase engagement.",
			}},
		},
		{
			name:     "within band",
			current:  Totals{ProfileViews: 110, SearchAppearances: 90},
			previous: Totals{ProfileViews: 100, SearchAppearances: 100},
			want:     []Insight{},
		},
		{
			name:     "exactly twenty percent is not growth",
			current:  Totals{ProfileViews: 120},
			previous: Totals{ProfileViews: 100},
			want:     []Insight{},
		},
		{
			name:     "first month of views",
			current:  Totals{ProfileViews: 5},
			previous: Totals{},
			want: []Insight{{
				Type:    InsightPositive,
				Axis:    "profile_views",
				Title:   "Growing Visibility",
				Message: "Your profile views increased by 500.0% this month!",
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GenerateInsights(tt.current, tt.previous, []InsightRule{ProfileViewsRule})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGenerateInsights_SearchAxis(t *testing.T) {
	got := GenerateInsights(
		Totals{ProfileViews: 100, SearchAppearances: 10},
		Totals{ProfileViews: 100, SearchAppearances: 40},
		DefaultInsightRules(),
	)
	require.Len(t, got, 1)
	assert.Equal(t, "search_appearances", got[0].Axis)
	assert.Equal(t, InsightSuggestion, got[0].Type)
}

func TestRankPeers_StableOnTies(t *testing.T) {
	a, b, c, d := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	peers := []uuid.UUID{a, b, c, d}
	scores := map[uuid.UUID]int{a: 5, b: 9, c: 5}

	ranked := RankPeers(peers, scores)
	require.Len(t, ranked, 4)
	assert.Equal(t, []PeerScore{{b, 9}, {a, 5}, {c, 5}, {d, 0}}, ranked)

	for i := 0; i < 10; i++ {
		assert.Equal(t, 2, RankOf(RankPeers(peers, scores), a))
		assert.Equal(t, 3, RankOf(RankPeers(peers, scores), c))
	}
}

func TestRankOf_AbsentTarget(t *testing.T) {
	ranked := RankPeers([]uuid.UUID{uuid.New(), uuid.New()}, nil)
	assert.Equal(t, 3, RankOf(ranked, uuid.New()))
	assert.Equal(t, 1, RankOf(nil, uuid.New()))
}

func TestNewPerformanceReport(t *testing.T) {
	w := ComparisonWindows(time.Date(2026, 6, 30, 12, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 5, 31, 0, 0, 0, 0, time.UTC), w.CurrentStart)
	assert.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), w.PreviousStart)

	r := NewPerformanceReport(uuid.New(), w, Totals{ProfileViews: 5, SearchAppearances: 2}, Totals{SearchAppearances: 4})
	assert.Equal(t, AxisComparison{Current: 5, Previous: 0, ChangePercent: 500}, r.ProfileViews)
	assert.Equal(t, -50.0, r.SearchAppearances.ChangePercent)
}

func TestRankingKey(t *testing.T) {
	key := RankingKey{Category: "Restaurant", WindowDays: 30, Date: time.Date(2026, 2, 3, 15, 0, 0, 0, time.UTC)}
	assert.Equal(t, "mosaic:ranking:restaurant:30:2026-02-03", key.String())
}

func TestSamePeers(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	ranked := []PeerScore{{BusinessID: b, Score: 3}, {BusinessID: a}}
	assert.True(t, SamePeers(ranked, []uuid.UUID{a, b}))
	assert.False(t, SamePeers(ranked, []uuid.UUID{a}))
	assert.False(t, SamePeers(ranked, []uuid.UUID{a, uuid.New()}))
}

func TestActivityEvent_Normalize(t *testing.T) {
	tests := []struct {
		name   string
		ip     string
		device string
		wantIP string
	}{
		{"plain v4", "10.0.0.1", "mobile", "10.0.0.1"},
		{"v4 with port", "10.0.0.1:5555", "desktop", "10.0.0.1"},
		{"v6 with port", "[2001:db8::1]:443", "tablet", "2001:db8::1"},
		{"proxy placeholder", "unknown", "smartwatch", ""},
		{"empty", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := NewActivityEvent(KindViewBusiness, "s1", time.Now())
			ev.IPAddress = tt.ip
			ev.DeviceType = tt.device
			ev.Normalize()
			assert.Equal(t, tt.wantIP, ev.IPAddress)
			assert.Equal(t, tt.device, ev.DeviceType, "device types outside the usual three are kept")
		})
	}

	t.Run("long fields are cut to width", func(t *testing.T) {
		negative := -4
		ev := NewActivityEvent(KindSearch, strings.Repeat("s", 150), time.Now())
		ev.SearchQuery = strings.Repeat("ü", 250)
		ev.UserAgent = strings.Repeat("a", 400)
		ev.DeviceType = "an-extremely-long-device-name"
		ev.Duration = &negative
		ev.Normalize()

		assert.Len(t, ev.SessionID, 100)
		assert.Equal(t, 200, utf8.RuneCountInString(ev.SearchQuery))
		assert.Len(t, ev.UserAgent, 300)
		assert.Equal(t, "an-extremely-long-de", ev.DeviceType)
		assert.Nil(t, ev.Duration)
	})
}
