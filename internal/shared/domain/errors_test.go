package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/felixgeelhaar/mosaic/internal/shared/domain"
	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	err := domain.Errorf(domain.EINVALIDPLAN, "billing.subscribe", "plan %q is not offered", "gold")
	assert.Equal(t, `billing.subscribe: plan "gold" is not offered`, err.Error())

	noOp := &domain.Error{Code: domain.EINVALID, Message: "bad input"}
	assert.Equal(t, "bad input", noOp.Error())
}

func TestError_IsMatchesByCode(t *testing.T) {
	err := domain.NotFound("directory.get_business", "business", "42")
	wrapped := fmt.Errorf("loading: %w", err)

	assert.True(t, errors.Is(wrapped, domain.ErrNotFound))
	assert.False(t, errors.Is(wrapped, domain.ErrInvalidRating))
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "", domain.ErrorCode(nil))
	assert.Equal(t, domain.EDUPLICATEREVIEW, domain.ErrorCode(domain.ErrDuplicateReview))
	assert.Equal(t, domain.ESTORAGE, domain.ErrorCode(errors.New("boom")))
}

func TestErrorMessage_HidesStorageDetail(t *testing.T) {
	err := domain.Storage(errors.New("pq: connection refused"), "billing.subscribe")
	assert.Equal(t, "A storage error occurred. Please try again later.", domain.ErrorMessage(err))
	assert.Equal(t, "rating must be between 1 and 5", domain.ErrorMessage(domain.ErrInvalidRating))
}

func TestStorage(t *testing.T) {
	assert.NoError(t, domain.Storage(nil, "op"))

	raw := errors.New("disk full")
	err := domain.Storage(raw, "analytics.apply_event")
	assert.True(t, errors.Is(err, domain.ErrStorageFailure))
	assert.True(t, errors.Is(err, raw))

	notFound := domain.NotFound("op", "subscription", "x")
	assert.Same(t, notFound, domain.Storage(notFound, "other"))
}

func TestWrap(t *testing.T) {
	cause := errors.New("card declined")
	err := domain.Wrap(cause, domain.EPAYMENT, "billing.subscribe", "payment not completed")

	assert.True(t, errors.Is(err, domain.ErrPaymentRequired))
	assert.ErrorIs(t, err, cause)
}
