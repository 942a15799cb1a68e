package domain

import (
	"errors"
	"fmt"
)

// Error codes shared by every bounded context.
const (
	EINVALIDPLAN     = "invalid_plan"                  // Plan id not in the catalog
	EDUPLICATESUB    = "duplicate_active_subscription" // Entitlement already held
	ENOTFOUND        = "not_found"                     // Referenced record absent
	EINVALIDRATING   = "invalid_rating"                // Rating outside 1..5
	EDUPLICATEREVIEW = "duplicate_review"              // Second review by the same user
	ESTORAGE         = "storage_failure"               // Persistence failure
	EINVALID         = "invalid"                       // Invalid input or state transition
	EPAYMENT         = "payment_required"              // Payment proof missing or not succeeded
	ECONFLICT        = "conflict"                      // Concurrent modification
	EUNAVAILABLE     = "unavailable"                   // Upstream collaborator unavailable
)

// Error is a structured failure carrying a kind and a human-readable message.
type Error struct {
	Code    string // Machine-readable error code
	Op      string // Operation that failed (e.g., "billing.subscribe")
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code, so the
// sentinels below work with errors.Is regardless of Op and Message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

// Sentinels for errors.Is checks.
var (
	ErrInvalidPlan                 = &Error{Code: EINVALIDPLAN, Message: "unknown plan"}
	ErrDuplicateActiveSubscription = &Error{Code: EDUPLICATESUB, Message: "subscription already active"}
	ErrNotFound                    = &Error{Code: ENOTFOUND, Message: "not found"}
	ErrInvalidRating               = &Error{Code: EINVALIDRATING, Message: "rating must be between 1 and 5"}
	ErrDuplicateReview             = &Error{Code: EDUPLICATEREVIEW, Message: "business already reviewed by user"}
	ErrStorageFailure              = &Error{Code: ESTORAGE, Message: "storage failure"}
	ErrInvalid                     = &Error{Code: EINVALID, Message: "invalid"}
	ErrPaymentRequired             = &Error{Code: EPAYMENT, Message: "payment required"}
	ErrUnavailable                 = &Error{Code: EUNAVAILABLE, Message: "unavailable"}
)

// Errorf creates a new Error with the given code, operation, and formatted message.
func Errorf(code, op, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with additional context.
func Wrap(err error, code, op, message string) *Error {
	return &Error{
		Code:    code,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// ErrorCode returns the code of the root error, or ESTORAGE if none.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ESTORAGE
}

// ErrorMessage returns the human-readable message of the error.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Code == ESTORAGE {
			return "A storage error occurred. Please try again later."
		}
		return e.Message
	}
	return "A storage error occurred. Please try again later."
}

// NotFound creates a not found error.
func NotFound(op, resource, id string) *Error {
	return &Error{
		Code:    ENOTFOUND,
		Op:      op,
		Message: fmt.Sprintf("%s %q not found", resource, id),
	}
}

// Invalid creates a validation error.
func Invalid(op, message string) *Error {
	return &Error{
		Code:    EINVALID,
		Op:      op,
		Message: message,
	}
}

// Storage wraps a persistence failure. Errors that already carry a code
// pass through untouched so not-found and conflict kinds survive.
func Storage(err error, op string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{
		Code:    ESTORAGE,
		Op:      op,
		Message: "storage failure",
		Err:     err,
	}
}
