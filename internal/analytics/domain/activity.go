// Package domain holds the analytics model: raw activity and search events,
// per-business daily counters, window comparisons, insight rules and
// category ranking.
package domain

import (
	"net"
	"net/netip"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// AnonymousSession marks events recorded without a session identifier.
const AnonymousSession = "anonymous"

// ActivityKind classifies a user activity.
type ActivityKind string

const (
	KindViewBusiness     ActivityKind = "view_business"
	KindPhoneClick       ActivityKind = "phone_click"
	KindWebsiteClick     ActivityKind = "website_click"
	KindDirectionRequest ActivityKind = "direction_request"
	KindFavorite         ActivityKind = "favorite"
	KindSearch           ActivityKind = "search"
	KindReview           ActivityKind = "review"
	KindSignup           ActivityKind = "signup"
	KindLogin            ActivityKind = "login"
)

// Counter names a column of the daily business metrics row.
type Counter string

const (
	CounterProfileViews      Counter = "profile_views"
	CounterUniqueVisitors    Counter = "unique_visitors"
	CounterSearchAppearances Counter = "search_appearances"
	CounterPhoneClicks       Counter = "phone_clicks"
	CounterWebsiteClicks     Counter = "website_clicks"
	CounterDirectionRequests Counter = "direction_requests"
	CounterFavoritesAdded    Counter = "favorites_added"
	CounterReviewsReceived   Counter = "reviews_received"
)

var kindCounters = map[ActivityKind]Counter{
	KindViewBusiness:     CounterProfileViews,
	KindPhoneClick:       CounterPhoneClicks,
	KindWebsiteClick:     CounterWebsiteClicks,
	KindDirectionRequest: CounterDirectionRequests,
	KindFavorite:         CounterFavoritesAdded,
}

// CounterFor maps an aggregating kind to the counter it increments.
// Other kinds report false.
func CounterFor(kind ActivityKind) (Counter, bool) {
	c, ok := kindCounters[kind]
	return c, ok
}

// Aggregates reports whether events of this kind feed daily metrics.
func (k ActivityKind) Aggregates() bool {
	_, ok := kindCounters[k]
	return ok
}

// IsValid reports whether c is a known counter column.
func (c Counter) IsValid() bool {
	switch c {
	case CounterProfileViews, CounterUniqueVisitors, CounterSearchAppearances,
		CounterPhoneClicks, CounterWebsiteClicks, CounterDirectionRequests,
		CounterFavoritesAdded, CounterReviewsReceived:
		return true
	}
	return false
}

// ActivityEvent is one recorded user action. Events are append-only.
type ActivityEvent struct {
	ID         uuid.UUID
	UserID     *uuid.UUID
	SessionID  string
	Kind       ActivityKind
	BusinessID *uuid.UUID

	SearchQuery string
	Category    string
	Location    string
	PageURL     string
	Referrer    string

	UserAgent  string
	IPAddress  string
	DeviceType string
	// Duration is the time spent in seconds, when the client reports it.
	Duration *int

	OccurredAt time.Time
}

// Stored widths of the free-text activity fields, in runes.
const (
	maxSessionLen   = 100
	maxKindLen      = 50
	maxQueryLen     = 200
	maxCategoryLen  = 50
	maxLocationLen  = 100
	maxURLLen       = 200
	maxUserAgentLen = 300
	maxIPLen        = 45
	maxDeviceLen    = 20
)

// Normalize fits client-supplied fields to their stored widths. Events are
// never dropped for bad metadata: long text is cut, an address with a port
// keeps its host, an unparseable address is blanked and a negative duration
// is discarded.
func (e *ActivityEvent) Normalize() {
	e.SessionID = truncate(e.SessionID, maxSessionLen)
	e.Kind = ActivityKind(truncate(string(e.Kind), maxKindLen))
	e.SearchQuery = truncate(e.SearchQuery, maxQueryLen)
	e.Category = truncate(e.Category, maxCategoryLen)
	e.Location = truncate(e.Location, maxLocationLen)
	e.PageURL = truncate(e.PageURL, maxURLLen)
	e.Referrer = truncate(e.Referrer, maxURLLen)
	e.UserAgent = truncate(e.UserAgent, maxUserAgentLen)
	e.IPAddress = truncate(normalizeIP(e.IPAddress), maxIPLen)
	e.DeviceType = truncate(e.DeviceType, maxDeviceLen)
	if e.Duration != nil && *e.Duration < 0 {
		e.Duration = nil
	}
}

func normalizeIP(raw string) string {
	if raw == "" {
		return ""
	}
	if addr, err := netip.ParseAddr(raw); err == nil {
		return addr.String()
	}
	if host, _, err := net.SplitHostPort(raw); err == nil {
		if addr, err := netip.ParseAddr(host); err == nil {
			return addr.String()
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// NewActivityEvent creates an event. An empty session becomes AnonymousSession.
func NewActivityEvent(kind ActivityKind, sessionID string, at time.Time) *ActivityEvent {
	if sessionID == "" {
		sessionID = AnonymousSession
	}
	return &ActivityEvent{
		ID:         uuid.New(),
		SessionID:  sessionID,
		Kind:       kind,
		OccurredAt: at.UTC(),
	}
}

// KindCount is the number of events of one kind.
type KindCount struct {
	Kind  ActivityKind
	Count int
}
