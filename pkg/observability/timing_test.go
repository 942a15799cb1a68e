package observability

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	sharedDomain "github.com/felixgeelhaar/mosaic/internal/shared/domain"
)

func TestTrack(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: LogLevelDebug, Format: LogFormatText, Output: &buf})
	metrics := NewInMemoryMetrics()
	ctx := WithCorrelationID(context.Background(), "corr-42")

	Track(ctx, "billing.subscribe", logger, metrics)(nil)
	Track(ctx, "billing.subscribe", logger, metrics)(errors.New("card declined"))

	op := T(OperationKey, "billing.subscribe")
	assert.Equal(t, int64(2), metrics.GetCounter(MetricOperationTotal, op))
	assert.Equal(t, int64(1), metrics.GetCounter(MetricOperationErrors, op))
	assert.Len(t, metrics.GetTimings(MetricOperationDuration, op), 2)

	out := buf.String()
	assert.Contains(t, out, "operation completed")
	assert.Contains(t, out, "operation failed")
	assert.Contains(t, out, "card declined")
	assert.Contains(t, out, "correlation_id=corr-42")
}

func TestTrack_LevelFollowsErrorCode(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		level string
	}{
		{"duplicate subscription", sharedDomain.ErrDuplicateActiveSubscription, "level=WARN"},
		{"payment required", sharedDomain.Errorf(sharedDomain.EPAYMENT, "billing.subscribe", "payment %q already used", "pi_1"), "level=WARN"},
		{"not found", sharedDomain.NotFound("billing.get", "subscription", "42"), "level=WARN"},
		{"storage", sharedDomain.Storage(errors.New("disk full"), "billing.subscribe"), "level=ERROR"},
		{"unavailable", sharedDomain.ErrUnavailable, "level=ERROR"},
		{"uncoded", errors.New("boom"), "level=ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(LogConfig{Level: LogLevelDebug, Format: LogFormatText, Output: &buf})

			Track(context.Background(), "billing.subscribe", logger, nil)(tt.err)

			assert.Contains(t, buf.String(), tt.level)
			assert.Contains(t, buf.String(), "error_code="+sharedDomain.ErrorCode(tt.err))
		})
	}
}

func TestTrack_ExtraTags(t *testing.T) {
	metrics := NewInMemoryMetrics()
	finish := Track(context.Background(), "analytics.rank", nil, metrics, T("category", "food"))

	finish(nil)
	finish(nil)

	assert.Equal(t, int64(2), metrics.GetCounter(MetricOperationTotal, T("category", "food"), T(OperationKey, "analytics.rank")))
}

func TestTrack_NilCollaborators(t *testing.T) {
	assert.NotPanics(t, func() {
		Track(context.Background(), "directory.search", nil, nil)(errors.New("boom"))
	})
}
