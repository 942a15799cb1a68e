// Package domain holds the directory model: listed businesses, their reviews
// and the rating summary derived from them.
package domain

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	sharedDomain "github.com/felixgeelhaar/mosaic/internal/shared/domain"
)

// Business is a listed minority-owned business.
type Business struct {
	ID            uuid.UUID
	Name          string
	Description   string
	Address       string
	City          string
	State         string
	ZipCode       string
	Phone         string
	Website       string
	Category      string
	MinorityType  string
	Verified      bool
	GooglePlaceID string
	Latitude      *float64
	Longitude     *float64
	ImageURL      string
	Hours         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// BusinessInput carries the editable fields of a listing.
type BusinessInput struct {
	Name          string   `validate:"required,max=200"`
	Description   string   `validate:"max=2000"`
	Address       string   `validate:"required,max=300"`
	City          string   `validate:"required,max=100"`
	State         string   `validate:"required,max=50"`
	ZipCode       string   `validate:"max=20"`
	Phone         string   `validate:"max=20"`
	Website       string   `validate:"omitempty,url,max=200"`
	Category      string   `validate:"required,max=100"`
	MinorityType  string   `validate:"required,max=100"`
	GooglePlaceID string   `validate:"max=200"`
	Latitude      *float64 `validate:"omitempty,gte=-90,lte=90"`
	Longitude     *float64 `validate:"omitempty,gte=-180,lte=180"`
	ImageURL      string   `validate:"omitempty,url,max=500"`
	Hours         string   `validate:"max=200"`
}

func (in *BusinessInput) trim() {
	for _, f := range []*string{
		&in.Name, &in.Description, &in.Address, &in.City, &in.State, &in.ZipCode,
		&in.Phone, &in.Website, &in.Category, &in.MinorityType, &in.GooglePlaceID,
		&in.ImageURL, &in.Hours,
	} {
		*f = strings.TrimSpace(*f)
	}
}

// NewBusiness validates in and creates a listing.
func NewBusiness(in BusinessInput, now time.Time) (*Business, error) {
	in.trim()
	if err := sharedDomain.Validate("directory.new_business", in); err != nil {
		return nil, err
	}
	now = now.UTC()
	b := &Business{ID: uuid.New(), CreatedAt: now}
	b.apply(in, now)
	return b, nil
}

// Update replaces the editable fields. Verification and creation time are
// kept.
func (b *Business) Update(in BusinessInput, now time.Time) error {
	in.trim()
	if err := sharedDomain.Validate("directory.update_business", in); err != nil {
		return err
	}
	b.apply(in, now.UTC())
	return nil
}

func (b *Business) apply(in BusinessInput, now time.Time) {
	b.Name = in.Name
	b.Description = in.Description
	b.Address = in.Address
	b.City = in.City
	b.State = in.State
	b.ZipCode = in.ZipCode
	b.Phone = in.Phone
	b.Website = in.Website
	b.Category = in.Category
	b.MinorityType = in.MinorityType
	b.GooglePlaceID = in.GooglePlaceID
	b.Latitude = in.Latitude
	b.Longitude = in.Longitude
	b.ImageURL = in.ImageURL
	b.Hours = in.Hours
	b.UpdatedAt = now
}

// Input returns the editable fields, for read-modify-write updates.
func (b *Business) Input() BusinessInput {
	return BusinessInput{
		Name:          b.Name,
		Description:   b.Description,
		Address:       b.Address,
		City:          b.City,
		State:         b.State,
		ZipCode:       b.ZipCode,
		Phone:         b.Phone,
		Website:       b.Website,
		Category:      b.Category,
		MinorityType:  b.MinorityType,
		GooglePlaceID: b.GooglePlaceID,
		Latitude:      b.Latitude,
		Longitude:     b.Longitude,
		ImageURL:      b.ImageURL,
		Hours:         b.Hours,
	}
}

// RatingSummary is derived from a business's reviews on read. Average is 0
// when there are no reviews and is never rounded internally.
type RatingSummary struct {
	Average float64
	Count   int
}

// Rounded returns the average rounded to one decimal place for display.
func (r RatingSummary) Rounded() float64 {
	return math.Round(r.Average*10) / 10
}

// Listing is a business together with its rating summary.
type Listing struct {
	*Business
	Rating RatingSummary
}
