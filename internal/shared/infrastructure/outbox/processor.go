package outbox

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/felixgeelhaar/mosaic/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/mosaic/pkg/observability"
)

// ProcessorConfig tunes the relay loop.
type ProcessorConfig struct {
	PollInterval time.Duration
	BatchSize    int
	// MaxRetries is the number of failed attempts after which a message is
	// dead-lettered. Zero dead-letters on the first failure.
	MaxRetries       int
	RetryBackoffBase time.Duration
	RetryBackoffMax  time.Duration
}

// DefaultProcessorConfig returns the worker defaults.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		PollInterval:     time.Second,
		BatchSize:        100,
		MaxRetries:       5,
		RetryBackoffBase: time.Second,
		RetryBackoffMax:  time.Minute,
	}
}

func (c ProcessorConfig) withDefaults() ProcessorConfig {
	def := DefaultProcessorConfig()
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = def.BatchSize
	}
	if c.RetryBackoffBase <= 0 {
		c.RetryBackoffBase = def.RetryBackoffBase
	}
	if c.RetryBackoffMax <= 0 {
		c.RetryBackoffMax = def.RetryBackoffMax
	}
	return c
}

// Processor relays pending outbox messages to the broker. Delivery is at
// least once: a message whose publish succeeded but whose row could not be
// marked is sent again on the next poll.
type Processor struct {
	repo      Repository
	publisher eventbus.Publisher
	config    ProcessorConfig
	logger    *slog.Logger
	metrics   observability.Metrics
	now       func() time.Time

	lifecycle sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}

	published, failed, dead atomic.Uint64

	statusMu sync.Mutex
	status   status
}

// status is the part of Stats that changes per batch.
type status struct {
	lastError       string
	lastErrorAt     *time.Time
	lastProcessedAt *time.Time
	oldest          *time.Time
	lag             time.Duration
}

// NewProcessor creates a relay. Nil metrics and logger fall back to no-op
// metrics and slog.Default.
func NewProcessor(repo Repository, publisher eventbus.Publisher, config ProcessorConfig, metrics observability.Metrics, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &Processor{
		repo:      repo,
		publisher: publisher,
		config:    config.withDefaults(),
		logger:    logger.With("component", "outbox"),
		metrics:   metrics,
		now:       time.Now,
	}
}

// WithClock replaces the processor clock.
func (p *Processor) WithClock(now func() time.Time) *Processor {
	p.now = now
	return p
}

// Start runs the poll loop until ctx ends or Stop is called. Calling it on
// a running processor does nothing.
func (p *Processor) Start(ctx context.Context) {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()
	if p.cancel != nil {
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	go p.loop(ctx, p.done)

	p.logger.Info("outbox processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize,
	)
}

// Stop ends the loop and waits for the batch in flight.
func (p *Processor) Stop() {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
	p.cancel, p.done = nil, nil
	p.logger.Info("outbox processor stopped")
}

// IsRunning reports whether Start was called without a matching Stop.
func (p *Processor) IsRunning() bool {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()
	return p.cancel != nil
}

func (p *Processor) loop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := p.ProcessOnce(ctx); err != nil {
				p.logger.ErrorContext(ctx, "outbox batch failed", "error", err)
			}
		}
	}
}

// ProcessOnce relays one batch and returns how many messages were published.
func (p *Processor) ProcessOnce(ctx context.Context) (int, error) {
	now := p.now()
	batch, err := p.repo.GetUnpublished(ctx, p.config.BatchSize, now)
	if err != nil {
		p.setError(err, now)
		return 0, fmt.Errorf("load outbox batch: %w", err)
	}
	p.observeBatch(batch, now)

	sent := 0
	for _, msg := range batch {
		if p.relay(ctx, msg, now) {
			sent++
		}
	}

	if pending, err := p.repo.CountPending(ctx); err == nil {
		p.metrics.Gauge(observability.MetricOutboxPending, float64(pending))
	}
	return sent, nil
}

// relay publishes one message and records the outcome on its row.
func (p *Processor) relay(ctx context.Context, msg *Message, now time.Time) bool {
	route := observability.T("routing_key", msg.RoutingKey)

	pubErr := p.publisher.Publish(ctx, msg.RoutingKey, msg.Payload)
	if pubErr == nil {
		if err := p.repo.MarkPublished(ctx, msg.ID, now); err != nil {
			p.logger.ErrorContext(ctx, "mark published", "id", msg.ID, "event_id", msg.EventID, "error", err)
			return false
		}
		p.published.Add(1)
		p.metrics.Counter(observability.MetricOutboxPublished, 1, route)
		return true
	}

	meta := msg.metadata()
	p.logger.WarnContext(ctx, "publish failed",
		"id", msg.ID,
		"routing_key", msg.RoutingKey,
		"event_id", msg.EventID,
		observability.CorrelationIDKey, meta.CorrelationID,
		observability.UserIDKey, meta.UserID,
		"attempt", msg.RetryCount+1,
		"error", pubErr,
	)
	p.metrics.Counter(observability.MetricOutboxFailed, 1, route)
	p.setError(pubErr, now)

	var markErr error
	if attempt := msg.RetryCount + 1; attempt >= p.config.MaxRetries {
		p.dead.Add(1)
		markErr = p.repo.MarkDead(ctx, msg.ID, pubErr.Error(), now)
	} else {
		p.failed.Add(1)
		markErr = p.repo.MarkFailed(ctx, msg.ID, pubErr.Error(), now.Add(p.retryBackoff(attempt)))
	}
	if markErr != nil {
		p.logger.ErrorContext(ctx, "record publish failure", "id", msg.ID, "error", markErr)
	}
	return false
}

// retryBackoff is base * 2^(attempt-1), capped at the configured maximum.
func (p *Processor) retryBackoff(attempt int) time.Duration {
	wait, limit := p.config.RetryBackoffBase, p.config.RetryBackoffMax
	for ; attempt > 1 && wait < limit; attempt-- {
		wait *= 2
	}
	return min(wait, limit)
}

// Stats is a snapshot of the relay.
type Stats struct {
	IsRunning       bool
	PublishedCount  uint64
	FailedCount     uint64
	DeadCount       uint64
	LagSeconds      float64
	LastError       string
	LastErrorAt     *time.Time
	LastProcessedAt *time.Time
	OldestMessageAt *time.Time
}

func (p *Processor) GetStats() Stats {
	stats := Stats{
		IsRunning:      p.IsRunning(),
		PublishedCount: p.published.Load(),
		FailedCount:    p.failed.Load(),
		DeadCount:      p.dead.Load(),
	}

	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	stats.LagSeconds = p.status.lag.Seconds()
	stats.LastError = p.status.lastError
	stats.LastErrorAt = p.status.lastErrorAt
	stats.LastProcessedAt = p.status.lastProcessedAt
	stats.OldestMessageAt = p.status.oldest
	return stats
}

// Check returns a health probe that fails with a *LagError once the oldest
// pending message seen by the last batch is older than maxLag.
func (p *Processor) Check(maxLag time.Duration) func(context.Context) error {
	return func(context.Context) error {
		p.statusMu.Lock()
		lag := p.status.lag
		p.statusMu.Unlock()
		if maxLag > 0 && lag > maxLag {
			return &LagError{Lag: lag}
		}
		return nil
	}
}

// LagError is returned by Check when the outbox falls behind.
type LagError struct {
	Lag time.Duration
}

func (e *LagError) Error() string {
	return fmt.Sprintf("outbox lag %s", e.Lag.Round(time.Second))
}

func (p *Processor) setError(err error, at time.Time) {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	p.status.lastError = err.Error()
	p.status.lastErrorAt = &at
}

func (p *Processor) observeBatch(batch []*Message, at time.Time) {
	var oldest *time.Time
	for _, msg := range batch {
		if oldest == nil || msg.CreatedAt.Before(*oldest) {
			created := msg.CreatedAt
			oldest = &created
		}
	}

	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	p.status.lastProcessedAt = &at
	p.status.oldest = oldest
	p.status.lag = 0
	if oldest != nil {
		p.status.lag = at.Sub(*oldest)
	}
}
