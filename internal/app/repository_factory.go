package app

import (
	analyticsPersistence "github.com/felixgeelhaar/mosaic/internal/analytics/infrastructure/persistence"
	billingPersistence "github.com/felixgeelhaar/mosaic/internal/billing/infrastructure/persistence"
	directoryPersistence "github.com/felixgeelhaar/mosaic/internal/directory/infrastructure/persistence"
	"github.com/felixgeelhaar/mosaic/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/mosaic/internal/shared/infrastructure/outbox"
)

// Repositories holds every SQL repository over one connection. The
// repositories rebind their queries per driver, so the same set serves
// Postgres and SQLite.
type Repositories struct {
	Subscriptions *billingPersistence.SubscriptionRepository
	Payments      *billingPersistence.PaymentRepository
	Customers     *billingPersistence.CustomerRepository

	Businesses *directoryPersistence.BusinessRepository
	Reviews    *directoryPersistence.ReviewRepository

	Activities *analyticsPersistence.ActivityRepository
	Searches   *analyticsPersistence.SearchRepository
	Metrics    *analyticsPersistence.MetricsRepository
	Platform   *analyticsPersistence.PlatformRepository
	Source     *analyticsPersistence.PlatformSource

	Outbox *outbox.SQLRepository
}

// NewRepositories creates the repositories for conn.
func NewRepositories(conn database.Connection) *Repositories {
	return &Repositories{
		Subscriptions: billingPersistence.NewSubscriptionRepository(conn),
		Payments:      billingPersistence.NewPaymentRepository(conn),
		Customers:     billingPersistence.NewCustomerRepository(conn),

		Businesses: directoryPersistence.NewBusinessRepository(conn),
		Reviews:    directoryPersistence.NewReviewRepository(conn),

		Activities: analyticsPersistence.NewActivityRepository(conn),
		Searches:   analyticsPersistence.NewSearchRepository(conn),
		Metrics:    analyticsPersistence.NewMetricsRepository(conn),
		Platform:   analyticsPersistence.NewPlatformRepository(conn),
		Source:     analyticsPersistence.NewPlatformSource(conn),

		Outbox: outbox.NewSQLRepository(conn),
	}
}
