package persistence

import (
	"context"
	"time"

	"github.com/felixgeelhaar/mosaic/internal/billing/domain"
	sharedDomain "github.com/felixgeelhaar/mosaic/internal/shared/domain"
	"github.com/felixgeelhaar/mosaic/internal/shared/infrastructure/database"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const paymentColumns = `id, subscription_id, user_id, external_reference, amount, currency, status, description, paid_at`

// PaymentRepository implements domain.PaymentRepository.
type PaymentRepository struct {
	conn database.Connection
}

// NewPaymentRepository creates a new payment ledger repository.
func NewPaymentRepository(conn database.Connection) *PaymentRepository {
	return &PaymentRepository{conn: conn}
}

// Append adds a ledger row. A reference already on the ledger is rejected
// with payment_required since one charge backs at most one row.
func (r *PaymentRepository) Append(ctx context.Context, p *domain.PaymentRecord) error {
	const op = "payments.append"
	query := database.Rebind(r.conn.Driver(), `
		INSERT INTO payment_records (`+paymentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	exec := database.ExecutorFromContext(ctx, r.conn)
	_, err := exec.Exec(ctx, query,
		p.ID,
		p.SubscriptionID,
		p.UserID,
		p.ExternalReference,
		p.Amount.StringFixed(2),
		p.Currency,
		string(p.Status),
		p.Description,
		p.PaidAt.UTC(),
	)
	if database.IsUniqueViolation(err) {
		return sharedDomain.Wrap(err, sharedDomain.EPAYMENT, op, "payment reference already used")
	}
	return sharedDomain.Storage(err, op)
}

// ExistsByReference reports whether a ledger row carries the reference.
func (r *PaymentRepository) ExistsByReference(ctx context.Context, reference string) (bool, error) {
	query := database.Rebind(r.conn.Driver(), `SELECT COUNT(*) FROM payment_records WHERE external_reference = ?`)

	var n int
	exec := database.ExecutorFromContext(ctx, r.conn)
	if err := exec.QueryRow(ctx, query, reference).Scan(&n); err != nil {
		return false, sharedDomain.Storage(err, "payments.exists_by_reference")
	}
	return n > 0, nil
}

// UpdateStatus changes the status of every row carrying the reference.
func (r *PaymentRepository) UpdateStatus(ctx context.Context, reference string, status domain.PaymentStatus) (int, error) {
	if !status.IsValid() {
		return 0, sharedDomain.Errorf(sharedDomain.EINVALID, "payments.update_status", "unknown payment status %q", status)
	}
	query := database.Rebind(r.conn.Driver(), `UPDATE payment_records SET status = ? WHERE external_reference = ?`)

	exec := database.ExecutorFromContext(ctx, r.conn)
	res, err := exec.Exec(ctx, query, string(status), reference)
	if err != nil {
		return 0, sharedDomain.Storage(err, "payments.update_status")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, sharedDomain.Storage(err, "payments.update_status")
	}
	return int(n), nil
}

// FindByUser lists a user's payments, newest first.
func (r *PaymentRepository) FindByUser(ctx context.Context, userID uuid.UUID) ([]*domain.PaymentRecord, error) {
	query := database.Rebind(r.conn.Driver(), `
		SELECT `+paymentColumns+` FROM payment_records
		WHERE user_id = ?
		ORDER BY paid_at DESC, id
	`)
	return r.list(ctx, "payments.find_by_user", query, userID)
}

// FindBySubscription lists a subscription's payments, newest first.
func (r *PaymentRepository) FindBySubscription(ctx context.Context, subscriptionID uuid.UUID) ([]*domain.PaymentRecord, error) {
	query := database.Rebind(r.conn.Driver(), `
		SELECT `+paymentColumns+` FROM payment_records
		WHERE subscription_id = ?
		ORDER BY paid_at DESC, id
	`)
	return r.list(ctx, "payments.find_by_subscription", query, subscriptionID)
}

// Revenue sums succeeded payments made in [from, to). Amounts are summed in
// Go so SQLite's TEXT amounts never pass through floating point.
func (r *PaymentRepository) Revenue(ctx context.Context, from, to time.Time) (decimal.Decimal, error) {
	const op = "payments.revenue"
	query := database.Rebind(r.conn.Driver(), `
		SELECT amount FROM payment_records
		WHERE status = 'succeeded' AND paid_at >= ? AND paid_at < ?
	`)

	exec := database.ExecutorFromContext(ctx, r.conn)
	rows, err := exec.Query(ctx, query, from.UTC(), to.UTC())
	if err != nil {
		return decimal.Zero, sharedDomain.Storage(err, op)
	}
	defer func() { _ = rows.Close() }()

	total := decimal.Zero
	for rows.Next() {
		var amount decimal.Decimal
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, sharedDomain.Storage(err, op)
		}
		total = total.Add(amount)
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, sharedDomain.Storage(err, op)
	}
	return total, nil
}

func (r *PaymentRepository) list(ctx context.Context, op, query string, args ...any) ([]*domain.PaymentRecord, error) {
	exec := database.ExecutorFromContext(ctx, r.conn)
	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, sharedDomain.Storage(err, op)
	}
	defer func() { _ = rows.Close() }()

	var payments []*domain.PaymentRecord
	for rows.Next() {
		var (
			p      domain.PaymentRecord
			status string
		)
		if err := rows.Scan(
			&p.ID,
			&p.SubscriptionID,
			&p.UserID,
			&p.ExternalReference,
			&p.Amount,
			&p.Currency,
			&status,
			&p.Description,
			&p.PaidAt,
		); err != nil {
			return nil, sharedDomain.Storage(err, op)
		}
		p.Status = domain.PaymentStatus(status)
		p.PaidAt = p.PaidAt.UTC()
		payments = append(payments, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, sharedDomain.Storage(err, op)
	}
	return payments, nil
}
