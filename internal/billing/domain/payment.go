package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus is the outcome of one payment attempt.
type PaymentStatus string

const (
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
	PaymentPending   PaymentStatus = "pending"
	PaymentRefunded  PaymentStatus = "refunded"
)

// IsValid reports whether the status is known.
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentSucceeded, PaymentFailed, PaymentPending, PaymentRefunded:
		return true
	}
	return false
}

// PaymentRecord is one row of the append-only payment ledger.
type PaymentRecord struct {
	ID                uuid.UUID
	SubscriptionID    uuid.UUID
	UserID            uuid.UUID
	ExternalReference string
	Amount            decimal.Decimal
	Currency          string
	Status            PaymentStatus
	Description       string
	PaidAt            time.Time
}

// NewPaymentRecord creates a ledger entry for a subscription charge.
func NewPaymentRecord(sub *Subscription, reference string, status PaymentStatus, description string, at time.Time) *PaymentRecord {
	return &PaymentRecord{
		ID:                uuid.New(),
		SubscriptionID:    sub.ID,
		UserID:            sub.UserID,
		ExternalReference: reference,
		Amount:            sub.Amount,
		Currency:          sub.Currency,
		Status:            status,
		Description:       description,
		PaidAt:            at.UTC(),
	}
}

// PaymentProof is the evidence, obtained from the payment processor, that a
// charge went through. Subscriptions are only issued against a succeeded proof.
type PaymentProof struct {
	Reference              string
	Status                 PaymentStatus
	AmountCents            int64
	Currency               string
	CustomerID             string
	ExternalSubscriptionID string
}

// Covers reports whether the proof paid exactly amount in currency.
func (p PaymentProof) Covers(amount decimal.Decimal, currency string) bool {
	return p.AmountCents == ToMinorUnits(amount) && strings.EqualFold(p.Currency, currency)
}

// Succeeded reports whether the proof can back a new subscription.
func (p PaymentProof) Succeeded() bool {
	return p.Reference != "" && p.Status == PaymentSucceeded
}

// ToMinorUnits converts an amount to cents, rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// FromMinorUnits converts cents back to a decimal amount.
func FromMinorUnits(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
