package repository

import (
	"context"
	"time"

	"ridelink/internal/domain"
)

// DriverRepository defines the persistence operations for drivers.
type DriverRepository interface {
	// Create adds a new driver.
	Create(ctx context.Context, driver *domain.Driver) error

	// GetByID retrieves a driver by ID.
	GetByID(ctx context.Context, id string) (*domain.Driver, error)

	// GetByPhone retrieves a driver by phone number.
	GetByPhone(ctx context.Context, phone string) (*domain.Driver, error)

	// GetAvailable retrieves all drivers with is_available = true.
	GetAvailable(ctx context.Context) ([]*domain.Driver, error)

	// GetByIDForUpdate retrieves a driver by ID with a row lock, for use
	// inside a transaction during the match+book step.
	GetByIDForUpdate(ctx context.Context, id string) (*domain.Driver, error)

	// UpdatePosition overwrites the driver's coordinates and position
	// timestamp.
	UpdatePosition(ctx context.Context, id string, lat, lng float64, at time.Time) error

	// MarkUnavailable flips is_available from true to false. Returns
	// false (and no error) if the driver was already unavailable.
	MarkUnavailable(ctx context.Context, id string) (bool, error)

	// Release flips is_available from false to true. Returns false if
	// the driver was already available, which makes release idempotent.
	Release(ctx context.Context, id string) (bool, error)
}
