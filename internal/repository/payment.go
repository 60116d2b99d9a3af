package repository

import (
	"context"
	"time"

	"ridelink/internal/domain"
)

// PaymentRepository defines the persistence operations for payments.
// Amount and ride reference are write-once: there is no update path for
// either.
type PaymentRepository interface {
	// Create persists a new payment.
	Create(ctx context.Context, payment *domain.Payment) error

	// GetByID retrieves a payment by ID.
	GetByID(ctx context.Context, id string) (*domain.Payment, error)

	// GetByRideID retrieves the payment owned by a ride.
	GetByRideID(ctx context.Context, rideID string) (*domain.Payment, error)

	// GetByChargeIntentID retrieves a payment by its gateway charge
	// intent id.
	GetByChargeIntentID(ctx context.Context, intentID string) (*domain.Payment, error)

	// SettleIfPending moves a payment from PENDING to the given terminal
	// status, stamping completedAt. Returns false (and no error) when
	// the payment was not pending, which makes gateway confirmation
	// idempotent.
	SettleIfPending(ctx context.Context, id string, status domain.PaymentStatus, completedAt time.Time) (bool, error)

	// SumCompletedByDriver returns the total of completed payment
	// amounts for rides assigned to the driver since the given time.
	SumCompletedByDriver(ctx context.Context, driverID string, since time.Time) (float64, error)

	// SumCompletedByPassenger returns the total of completed payment
	// amounts for the passenger across all rides.
	SumCompletedByPassenger(ctx context.Context, passengerID string) (float64, error)
}
