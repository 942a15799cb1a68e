package observability

import (
	"context"
	"log/slog"
	"time"

	sharedDomain "github.com/felixgeelhaar/mosaic/internal/shared/domain"
)

// Track starts timing op and returns the function that ends it. The
// returned function logs the outcome with ctx, so correlation and session
// ids end up on the record, and feeds the operation metrics. A nil logger
// or metrics skips that half. Extra tags label the metrics only.
//
// Only storage and upstream failures log at Error. Rejections of the
// caller's input, such as a duplicate subscription, log at Warn.
//
//	finish := observability.Track(ctx, "billing.renew", s.logger, s.metrics)
//	defer func() { finish(err) }()
func Track(ctx context.Context, op string, logger *slog.Logger, metrics Metrics, tags ...Tag) func(error) time.Duration {
	started := time.Now()
	labels := make([]Tag, 0, len(tags)+1)
	labels = append(labels, tags...)
	labels = append(labels, T(OperationKey, op))

	return func(err error) time.Duration {
		elapsed := time.Since(started)
		record(ctx, logger, op, elapsed, err)
		if metrics != nil {
			metrics.Timing(MetricOperationDuration, elapsed, labels...)
			metrics.Counter(MetricOperationTotal, 1, labels...)
			if err != nil {
				metrics.Counter(MetricOperationErrors, 1, labels...)
			}
		}
		return elapsed
	}
}

func record(ctx context.Context, logger *slog.Logger, op string, elapsed time.Duration, err error) {
	if logger == nil {
		return
	}
	attrs := []slog.Attr{
		slog.String(OperationKey, op),
		slog.Int64(DurationKey, elapsed.Milliseconds()),
	}
	if err != nil {
		code := sharedDomain.ErrorCode(err)
		attrs = append(attrs, slog.String(ErrorKey, err.Error()), slog.String(ErrorCodeKey, code))
		logger.LogAttrs(ctx, levelFor(code), "operation failed", attrs...)
		return
	}
	logger.LogAttrs(ctx, slog.LevelDebug, "operation completed", attrs...)
}

func levelFor(code string) slog.Level {
	switch code {
	case sharedDomain.ESTORAGE, sharedDomain.EUNAVAILABLE:
		return slog.LevelError
	}
	return slog.LevelWarn
}
