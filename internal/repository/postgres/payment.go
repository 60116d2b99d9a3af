package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ridelink/internal/domain"
	"ridelink/internal/repository"
)

// PaymentRepository is a PostgreSQL implementation of repository.PaymentRepository.
type PaymentRepository struct {
	q Querier
}

// NewPaymentRepository creates a new PostgreSQL payment repository.
func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{q: db}
}

// NewPaymentRepositoryWithTx creates a payment repository using a transaction.
func NewPaymentRepositoryWithTx(tx *sql.Tx) *PaymentRepository {
	return &PaymentRepository{q: tx}
}

const paymentColumns = `id, ride_id, passenger_id, amount, charge_intent_id, status, created_at, completed_at`

// Create persists a new payment.
func (r *PaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	query := `
		INSERT INTO payments (id, ride_id, passenger_id, amount, charge_intent_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	var intentID sql.NullString
	if payment.ChargeIntentID != "" {
		intentID = sql.NullString{String: payment.ChargeIntentID, Valid: true}
	}

	_, err := r.q.ExecContext(ctx, query,
		payment.ID,
		payment.RideID,
		payment.PassengerID,
		payment.Amount,
		intentID,
		payment.Status,
		payment.CreatedAt,
	)
	return err
}

// GetByID retrieves a payment by ID.
func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetByRideID retrieves the payment owned by a ride.
func (r *PaymentRepository) GetByRideID(ctx context.Context, rideID string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE ride_id = $1`
	return r.getOne(ctx, query, rideID)
}

// GetByChargeIntentID retrieves a payment by its gateway charge intent id.
func (r *PaymentRepository) GetByChargeIntentID(ctx context.Context, intentID string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE charge_intent_id = $1`
	return r.getOne(ctx, query, intentID)
}

// SettleIfPending compare-and-sets the payment status from PENDING.
// Amount and ride_id are never touched here; they are write-once.
func (r *PaymentRepository) SettleIfPending(ctx context.Context, id string, status domain.PaymentStatus, completedAt time.Time) (bool, error) {
	query := `UPDATE payments SET status = $1, completed_at = $2 WHERE id = $3 AND status = $4`

	result, err := r.q.ExecContext(ctx, query, status, completedAt, id, domain.PaymentStatusPending)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected > 0, nil
}

// SumCompletedByDriver returns the total of completed payment amounts
// for rides assigned to the driver since the given time.
func (r *PaymentRepository) SumCompletedByDriver(ctx context.Context, driverID string, since time.Time) (float64, error) {
	query := `
		SELECT COALESCE(SUM(p.amount), 0)
		FROM payments p
		JOIN rides r ON r.id = p.ride_id
		WHERE r.driver_id = $1 AND p.status = $2 AND p.created_at >= $3
	`

	var total float64
	err := r.q.QueryRowContext(ctx, query, driverID, domain.PaymentStatusCompleted, since).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total, nil
}

// SumCompletedByPassenger returns the total of completed payment
// amounts for the passenger across all rides.
func (r *PaymentRepository) SumCompletedByPassenger(ctx context.Context, passengerID string) (float64, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM payments
		WHERE passenger_id = $1 AND status = $2
	`

	var total float64
	err := r.q.QueryRowContext(ctx, query, passengerID, domain.PaymentStatusCompleted).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (r *PaymentRepository) getOne(ctx context.Context, query string, arg any) (*domain.Payment, error) {
	var payment domain.Payment
	var intentID sql.NullString
	var completedAt sql.NullTime

	err := r.q.QueryRowContext(ctx, query, arg).Scan(
		&payment.ID,
		&payment.RideID,
		&payment.PassengerID,
		&payment.Amount,
		&intentID,
		&payment.Status,
		&payment.CreatedAt,
		&completedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	if intentID.Valid {
		payment.ChargeIntentID = intentID.String
	}
	if completedAt.Valid {
		payment.CompletedAt = completedAt.Time
	}

	return &payment, nil
}
