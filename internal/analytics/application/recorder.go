package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/mosaic/internal/analytics/domain"
	sharedApplication "github.com/felixgeelhaar/mosaic/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/mosaic/internal/shared/domain"
	"github.com/felixgeelhaar/mosaic/pkg/observability"
)

// RecorderDeps are the collaborators of the recorder.
type RecorderDeps struct {
	Activities domain.ActivityRepository
	Searches   domain.SearchRepository
	Aggregator *Aggregator
	UnitOfWork sharedApplication.UnitOfWork
	Metrics    observability.Metrics
	Logger     *slog.Logger
	Clock      func() time.Time
}

// Recorder appends activity and search events and feeds the aggregator.
type Recorder struct {
	activities domain.ActivityRepository
	searches   domain.SearchRepository
	aggregator *Aggregator
	uow        sharedApplication.UnitOfWork
	metrics    observability.Metrics
	logger     *slog.Logger
	now        func() time.Time
}

// NewRecorder creates a recorder.
func NewRecorder(deps RecorderDeps) *Recorder {
	r := &Recorder{
		activities: deps.Activities,
		searches:   deps.Searches,
		aggregator: deps.Aggregator,
		uow:        deps.UnitOfWork,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		now:        deps.Clock,
	}
	if r.uow == nil {
		r.uow = sharedApplication.NopUnitOfWork{}
	}
	if r.metrics == nil {
		r.metrics = observability.NoopMetrics{}
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// ActivityInput describes one user action. Only Kind is required; the
// client-supplied metadata is fitted to its stored width rather than
// rejected.
type ActivityInput struct {
	UserID      *uuid.UUID
	SessionID   string
	Kind        domain.ActivityKind `validate:"required"`
	BusinessID  *uuid.UUID
	SearchQuery string
	Category    string
	Location    string
	PageURL     string
	Referrer    string
	UserAgent   string
	IPAddress   string
	DeviceType  string
	Duration    *int
	// AverageRating is the business's rating after a review event. When set
	// on a review, it is snapshotted on the day's metrics row.
	AverageRating *float64
}

// Record appends the event. Aggregating kinds that name a business also
// update today's metrics row in the same transaction; a business view from
// a session not seen on that business today also counts a unique visitor.
// The clock is read once, so the event and its counters share a day.
func (r *Recorder) Record(ctx context.Context, in ActivityInput) (event *domain.ActivityEvent, err error) {
	const op = "analytics.record"
	finish := observability.Track(ctx, op, r.logger, r.metrics)
	defer func() { finish(err) }()

	if err := sharedDomain.Validate(op, in); err != nil {
		return nil, err
	}

	now := r.now()
	event = domain.NewActivityEvent(in.Kind, in.SessionID, now)
	event.UserID = in.UserID
	event.BusinessID = in.BusinessID
	event.SearchQuery = in.SearchQuery
	event.Category = in.Category
	event.Location = in.Location
	event.PageURL = in.PageURL
	event.Referrer = in.Referrer
	event.UserAgent = in.UserAgent
	event.IPAddress = in.IPAddress
	event.DeviceType = in.DeviceType
	event.Duration = in.Duration
	event.Normalize()

	err = sharedApplication.WithUnitOfWork(ctx, r.uow, func(txCtx context.Context) error {
		firstVisit := false
		if event.Kind == domain.KindViewBusiness && event.BusinessID != nil {
			day := domain.Day(now)
			seen, err := r.activities.SessionViewed(txCtx, event.SessionID, *event.BusinessID, day, day.AddDate(0, 0, 1))
			if err != nil {
				return err
			}
			firstVisit = !seen
		}

		if err := r.activities.Append(txCtx, event); err != nil {
			return err
		}
		if event.BusinessID == nil {
			return nil
		}
		businessID := *event.BusinessID

		if event.Kind == domain.KindReview && in.AverageRating != nil {
			return r.aggregator.recordReview(txCtx, businessID, *in.AverageRating, now)
		}
		if counter, ok := domain.CounterFor(event.Kind); ok {
			if err := r.aggregator.increment(txCtx, businessID, counter, 1, now); err != nil {
				return err
			}
		}
		if firstVisit {
			return r.aggregator.increment(txCtx, businessID, domain.CounterUniqueVisitors, 1, now)
		}
		return nil
	})
	if err != nil {
		return nil, sharedDomain.Storage(err, op)
	}

	r.metrics.Counter(observability.MetricActivityEvents, 1, observability.T("kind", string(event.Kind)))
	return event, nil
}

// SearchInput describes one directory search.
type SearchInput struct {
	UserID    *uuid.UUID
	SessionID string `validate:"max=100"`
	Query     string `validate:"max=200"`
	Category  string `validate:"max=50"`
	Location  string `validate:"max=100"`
	Filters   map[string]any
	// ResultsCount defaults to len(ShownBusinessIDs).
	ResultsCount int `validate:"gte=0"`
	// ShownBusinessIDs are the businesses on the results page; each gets a
	// search appearance.
	ShownBusinessIDs  []uuid.UUID
	ClickedBusinessID *uuid.UUID
	ClickPosition     *int `validate:"omitempty,gte=1"`
}

// RecordSearch appends a search event and counts a search appearance for
// every business shown.
func (r *Recorder) RecordSearch(ctx context.Context, in SearchInput) (event *domain.SearchEvent, err error) {
	const op = "analytics.record_search"
	finish := observability.Track(ctx, op, r.logger, r.metrics)
	defer func() { finish(err) }()

	if err := sharedDomain.Validate(op, in); err != nil {
		return nil, err
	}

	now := r.now()
	event, err = domain.NewSearchEvent(in.Query, in.SessionID, in.Filters, now)
	if err != nil {
		return nil, sharedDomain.Wrap(err, sharedDomain.EINVALID, op, "filters are not serializable")
	}
	event.UserID = in.UserID
	event.Category = in.Category
	event.Location = in.Location
	event.ResultsCount = in.ResultsCount
	if event.ResultsCount == 0 {
		event.ResultsCount = len(in.ShownBusinessIDs)
	}
	event.ClickedBusinessID = in.ClickedBusinessID
	event.ClickPosition = in.ClickPosition

	err = sharedApplication.WithUnitOfWork(ctx, r.uow, func(txCtx context.Context) error {
		if err := r.searches.Append(txCtx, event); err != nil {
			return err
		}
		seen := make(map[uuid.UUID]struct{}, len(in.ShownBusinessIDs))
		for _, id := range in.ShownBusinessIDs {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			if err := r.aggregator.increment(txCtx, id, domain.CounterSearchAppearances, 1, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, sharedDomain.Storage(err, op)
	}

	r.metrics.Counter(observability.MetricSearchEvents, 1)
	return event, nil
}
