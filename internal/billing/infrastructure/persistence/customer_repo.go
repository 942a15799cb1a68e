package persistence

import (
	"context"
	"time"

	sharedDomain "github.com/felixgeelhaar/mosaic/internal/shared/domain"
	"github.com/felixgeelhaar/mosaic/internal/shared/infrastructure/database"
	"github.com/google/uuid"
)

// CustomerRepository maps users to payment processor customers.
type CustomerRepository struct {
	conn database.Connection
}

// NewCustomerRepository creates a new customer repository.
func NewCustomerRepository(conn database.Connection) *CustomerRepository {
	return &CustomerRepository{conn: conn}
}

// FindByUser returns the processor customer id, or "" when none exists.
func (r *CustomerRepository) FindByUser(ctx context.Context, userID uuid.UUID) (string, error) {
	query := database.Rebind(r.conn.Driver(), `SELECT external_customer_id FROM billing_customers WHERE user_id = ?`)

	var customerID string
	exec := database.ExecutorFromContext(ctx, r.conn)
	err := exec.QueryRow(ctx, query, userID).Scan(&customerID)
	if err != nil {
		if database.IsNoRows(err) {
			return "", nil
		}
		return "", sharedDomain.Storage(err, "customers.find")
	}
	return customerID, nil
}

// Save stores the mapping, replacing any previous customer id.
func (r *CustomerRepository) Save(ctx context.Context, userID uuid.UUID, customerID string) error {
	query := database.Rebind(r.conn.Driver(), `
		INSERT INTO billing_customers (user_id, external_customer_id, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET external_customer_id = excluded.external_customer_id
	`)

	exec := database.ExecutorFromContext(ctx, r.conn)
	_, err := exec.Exec(ctx, query, userID, customerID, time.Now().UTC())
	return sharedDomain.Storage(err, "customers.save")
}
