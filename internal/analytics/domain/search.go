package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SearchEvent records a directory search and, optionally, the result the
// user clicked.
type SearchEvent struct {
	ID        uuid.UUID
	UserID    *uuid.UUID
	SessionID string
	Query     string
	Category  string
	Location  string
	// Filters is the JSON object of filters the user applied.
	Filters      json.RawMessage
	ResultsCount int

	ClickedBusinessID *uuid.UUID
	ClickPosition     *int

	SearchedAt time.Time
}

// NewSearchEvent creates a search event. Nil filters are stored as "{}".
func NewSearchEvent(query, sessionID string, filters map[string]any, at time.Time) (*SearchEvent, error) {
	if sessionID == "" {
		sessionID = AnonymousSession
	}
	if filters == nil {
		filters = map[string]any{}
	}
	raw, err := json.Marshal(filters)
	if err != nil {
		return nil, err
	}
	return &SearchEvent{
		ID:         uuid.New(),
		SessionID:  sessionID,
		Query:      query,
		Filters:    raw,
		SearchedAt: at.UTC(),
	}, nil
}

// QueryCount is how often a query led to a click on a business.
type QueryCount struct {
	Query string
	Count int
}
