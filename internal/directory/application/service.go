// Package application runs the directory use cases: listing management,
// search and reviews.
package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/mosaic/internal/directory/domain"
	sharedApplication "github.com/felixgeelhaar/mosaic/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/mosaic/internal/shared/domain"
	"github.com/felixgeelhaar/mosaic/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/mosaic/pkg/observability"
)

// EventDispatcher delivers a committed event to in-process observers.
type EventDispatcher interface {
	PublishDomainEvent(ctx context.Context, event sharedDomain.DomainEvent) error
}

// Deps are the collaborators of the directory service.
type Deps struct {
	Businesses domain.BusinessRepository
	Reviews    domain.ReviewRepository
	Events     outbox.EventWriter
	Dispatcher EventDispatcher
	UnitOfWork sharedApplication.UnitOfWork
	Metrics    observability.Metrics
	Logger     *slog.Logger
	Clock      func() time.Time
}

// Service provides directory use cases.
type Service struct {
	businesses domain.BusinessRepository
	reviews    domain.ReviewRepository
	events     outbox.EventWriter
	dispatcher EventDispatcher
	uow        sharedApplication.UnitOfWork
	metrics    observability.Metrics
	logger     *slog.Logger
	now        func() time.Time
}

// NewService creates a new directory service.
func NewService(deps Deps) *Service {
	s := &Service{
		businesses: deps.Businesses,
		reviews:    deps.Reviews,
		events:     deps.Events,
		dispatcher: deps.Dispatcher,
		uow:        deps.UnitOfWork,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		now:        deps.Clock,
	}
	if s.uow == nil {
		s.uow = sharedApplication.NopUnitOfWork{}
	}
	if s.metrics == nil {
		s.metrics = observability.NoopMetrics{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// CreateBusiness validates and stores a new listing.
func (s *Service) CreateBusiness(ctx context.Context, in domain.BusinessInput) (*domain.Business, error) {
	const op = "directory.create_business"
	b, err := domain.NewBusiness(in, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.businesses.Save(ctx, b); err != nil {
		return nil, sharedDomain.Storage(err, op)
	}
	s.logger.InfoContext(ctx, "business created", "business_id", b.ID, "category", b.Category, "city", b.City)
	return b, nil
}

// GetBusiness returns a listing with its rating summary.
func (s *Service) GetBusiness(ctx context.Context, id uuid.UUID) (*domain.Listing, error) {
	const op = "directory.get_business"
	b, err := s.businesses.FindByID(ctx, id)
	if err != nil {
		return nil, sharedDomain.Storage(err, op)
	}
	summary, err := s.reviews.Summary(ctx, id)
	if err != nil {
		return nil, sharedDomain.Storage(err, op)
	}
	return &domain.Listing{Business: b, Rating: summary}, nil
}

// BusinessPatch lists the fields to change; nil fields are kept.
type BusinessPatch struct {
	Name          *string
	Description   *string
	Address       *string
	City          *string
	State         *string
	ZipCode       *string
	Phone         *string
	Website       *string
	Category      *string
	MinorityType  *string
	GooglePlaceID *string
	Latitude      *float64
	Longitude     *float64
	ImageURL      *string
	Hours         *string
	Verified      *bool
}

func (p BusinessPatch) apply(in *domain.BusinessInput) {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&in.Name, p.Name)
	set(&in.Description, p.Description)
	set(&in.Address, p.Address)
	set(&in.City, p.City)
	set(&in.State, p.State)
	set(&in.ZipCode, p.ZipCode)
	set(&in.Phone, p.Phone)
	set(&in.Website, p.Website)
	set(&in.Category, p.Category)
	set(&in.MinorityType, p.MinorityType)
	set(&in.GooglePlaceID, p.GooglePlaceID)
	set(&in.ImageURL, p.ImageURL)
	set(&in.Hours, p.Hours)
	if p.Latitude != nil {
		in.Latitude = p.Latitude
	}
	if p.Longitude != nil {
		in.Longitude = p.Longitude
	}
}

// UpdateBusiness applies patch to a listing.
func (s *Service) UpdateBusiness(ctx context.Context, id uuid.UUID, patch BusinessPatch) (*domain.Business, error) {
	const op = "directory.update_business"
	var updated *domain.Business
	err := sharedApplication.WithUnitOfWork(ctx, s.uow, func(txCtx context.Context) error {
		b, err := s.businesses.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		in := b.Input()
		patch.apply(&in)
		if err := b.Update(in, s.now()); err != nil {
			return err
		}
		if patch.Verified != nil {
			b.Verified = *patch.Verified
		}
		if err := s.businesses.Save(txCtx, b); err != nil {
			return err
		}
		updated = b
		return nil
	})
	if err != nil {
		return nil, sharedDomain.Storage(err, op)
	}
	return updated, nil
}

// DeleteBusiness removes a listing together with its reviews.
func (s *Service) DeleteBusiness(ctx context.Context, id uuid.UUID) error {
	const op = "directory.delete_business"
	err := sharedApplication.WithUnitOfWork(ctx, s.uow, func(txCtx context.Context) error {
		return s.businesses.Delete(txCtx, id)
	})
	if err != nil {
		return sharedDomain.Storage(err, op)
	}
	s.logger.InfoContext(ctx, "business deleted", "business_id", id)
	return nil
}

// Search returns one page of listings matching filter.
func (s *Service) Search(ctx context.Context, filter domain.SearchFilter) (*domain.Page[*domain.Listing], error) {
	const op = "directory.search"
	if err := sharedDomain.Validate(op, filter); err != nil {
		return nil, err
	}
	filter = filter.Normalize()
	items, total, err := s.businesses.Search(ctx, filter)
	if err != nil {
		return nil, sharedDomain.Storage(err, op)
	}
	return &domain.Page[*domain.Listing]{Items: items, Total: total, Page: filter.Page, PerPage: filter.PerPage}, nil
}

// Categories lists the categories in use.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	categories, err := s.businesses.Categories(ctx)
	return categories, sharedDomain.Storage(err, "directory.categories")
}

// Cities lists the locations with listings.
func (s *Service) Cities(ctx context.Context) ([]domain.CityState, error) {
	cities, err := s.businesses.Cities(ctx)
	return cities, sharedDomain.Storage(err, "directory.cities")
}

// Peers lists the businesses sharing a category, oldest first.
func (s *Service) Peers(ctx context.Context, category string) ([]uuid.UUID, error) {
	peers, err := s.businesses.Peers(ctx, category)
	return peers, sharedDomain.Storage(err, "directory.peers")
}
