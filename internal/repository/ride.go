package repository

import (
	"context"
	"time"

	"ridelink/internal/domain"
)

// RideRepository defines the persistence operations for rides.
type RideRepository interface {
	// Create persists a new ride.
	Create(ctx context.Context, ride *domain.Ride) error

	// GetByID retrieves a ride by ID.
	GetByID(ctx context.Context, id string) (*domain.Ride, error)

	// UpdateStatus moves a ride from the expected status to the target
	// status, stamping completedAt when non-zero. Returns false (and no
	// error) when the ride was not in the expected status, so callers
	// can compare-and-set without lost updates.
	UpdateStatus(ctx context.Context, id string, from, to domain.RideStatus, completedAt time.Time, reason string) (bool, error)

	// GetActiveByDriverID retrieves the ride a driver currently holds in
	// ACCEPTED or IN_PROGRESS, or nil if none.
	GetActiveByDriverID(ctx context.Context, driverID string) (*domain.Ride, error)

	// ListByPassenger retrieves a passenger's rides with their payments,
	// newest first.
	ListByPassenger(ctx context.Context, passengerID string, limit int) ([]*domain.RideHistoryEntry, error)

	// ListInProgress retrieves all rides currently in IN_PROGRESS.
	ListInProgress(ctx context.Context) ([]*domain.Ride, error)

	// CountByPassenger returns the passenger's total ride count and how
	// many of those rides are COMPLETED.
	CountByPassenger(ctx context.Context, passengerID string) (total, completed int, err error)

	// ListRequestedBefore retrieves rides still REQUESTED that were
	// created before the cutoff, for the expiry sweep.
	ListRequestedBefore(ctx context.Context, cutoff time.Time) ([]*domain.Ride, error)
}
