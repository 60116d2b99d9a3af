package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ridelink/internal/domain"
	"ridelink/internal/repository"
)

// RideRepository is a PostgreSQL implementation of repository.RideRepository.
type RideRepository struct {
	q Querier
}

// NewRideRepository creates a new PostgreSQL ride repository.
func NewRideRepository(db *sql.DB) *RideRepository {
	return &RideRepository{q: db}
}

// NewRideRepositoryWithTx creates a ride repository using a transaction.
func NewRideRepositoryWithTx(tx *sql.Tx) *RideRepository {
	return &RideRepository{q: tx}
}

const rideColumns = `id, passenger_id, driver_id, pickup_lat, pickup_lng, dropoff_lat, dropoff_lng, fare, status, created_at, completed_at, cancel_reason`

// Create persists a new ride.
func (r *RideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	query := `
		INSERT INTO rides (id, passenger_id, driver_id, pickup_lat, pickup_lng, dropoff_lat, dropoff_lng, fare, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	var driverID sql.NullString
	if ride.DriverID != "" {
		driverID = sql.NullString{String: ride.DriverID, Valid: true}
	}

	_, err := r.q.ExecContext(ctx, query,
		ride.ID,
		ride.PassengerID,
		driverID,
		ride.PickupLat,
		ride.PickupLng,
		ride.DropoffLat,
		ride.DropoffLng,
		ride.Fare,
		ride.Status,
		ride.CreatedAt,
	)
	return err
}

// GetByID retrieves a ride by ID.
func (r *RideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE id = $1`

	ride, err := scanRide(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return ride, nil
}

// UpdateStatus compare-and-sets the ride status. The WHERE predicate on
// the prior status is what prevents lost updates under concurrent
// transitions.
func (r *RideRepository) UpdateStatus(ctx context.Context, id string, from, to domain.RideStatus, completedAt time.Time, reason string) (bool, error) {
	query := `UPDATE rides SET status = $1, completed_at = $2, cancel_reason = $3 WHERE id = $4 AND status = $5`

	var completed sql.NullTime
	if !completedAt.IsZero() {
		completed = sql.NullTime{Time: completedAt, Valid: true}
	}

	var cancelReason sql.NullString
	if reason != "" {
		cancelReason = sql.NullString{String: reason, Valid: true}
	}

	result, err := r.q.ExecContext(ctx, query, to, completed, cancelReason, id, from)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected > 0, nil
}

// GetActiveByDriverID retrieves the ride a driver currently holds in
// ACCEPTED or IN_PROGRESS. Returns nil if none.
func (r *RideRepository) GetActiveByDriverID(ctx context.Context, driverID string) (*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE driver_id = $1 AND status IN ($2, $3) LIMIT 1`

	ride, err := scanRide(r.q.QueryRowContext(ctx, query, driverID, domain.RideStatusAccepted, domain.RideStatusInProgress))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return ride, nil
}

// ListByPassenger retrieves a passenger's rides with their payments, newest first.
func (r *RideRepository) ListByPassenger(ctx context.Context, passengerID string, limit int) ([]*domain.RideHistoryEntry, error) {
	query := `
		SELECT r.id, r.passenger_id, r.driver_id, r.pickup_lat, r.pickup_lng, r.dropoff_lat, r.dropoff_lng, r.fare, r.status, r.created_at, r.completed_at, r.cancel_reason,
		       p.id, p.amount, p.charge_intent_id, p.status, p.created_at, p.completed_at
		FROM rides r
		LEFT JOIN payments p ON p.ride_id = r.id
		WHERE r.passenger_id = $1
		ORDER BY r.created_at DESC
		LIMIT $2
	`

	rows, err := r.q.QueryContext(ctx, query, passengerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.RideHistoryEntry
	for rows.Next() {
		var ride domain.Ride
		var driverID, cancelReason sql.NullString
		var completedAt sql.NullTime
		var pID, pIntentID, pStatus sql.NullString
		var pAmount sql.NullFloat64
		var pCreatedAt, pCompletedAt sql.NullTime

		if err := rows.Scan(
			&ride.ID,
			&ride.PassengerID,
			&driverID,
			&ride.PickupLat,
			&ride.PickupLng,
			&ride.DropoffLat,
			&ride.DropoffLng,
			&ride.Fare,
			&ride.Status,
			&ride.CreatedAt,
			&completedAt,
			&cancelReason,
			&pID,
			&pAmount,
			&pIntentID,
			&pStatus,
			&pCreatedAt,
			&pCompletedAt,
		); err != nil {
			return nil, err
		}

		if driverID.Valid {
			ride.DriverID = driverID.String
		}
		if completedAt.Valid {
			ride.CompletedAt = completedAt.Time
		}
		if cancelReason.Valid {
			ride.CancelReason = cancelReason.String
		}

		entry := &domain.RideHistoryEntry{Ride: &ride}
		if pID.Valid {
			payment := &domain.Payment{
				ID:          pID.String,
				RideID:      ride.ID,
				PassengerID: ride.PassengerID,
				Amount:      pAmount.Float64,
				Status:      domain.PaymentStatus(pStatus.String),
				CreatedAt:   pCreatedAt.Time,
			}
			if pIntentID.Valid {
				payment.ChargeIntentID = pIntentID.String
			}
			if pCompletedAt.Valid {
				payment.CompletedAt = pCompletedAt.Time
			}
			entry.Payment = payment
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// ListInProgress retrieves all rides currently in IN_PROGRESS.
func (r *RideRepository) ListInProgress(ctx context.Context) ([]*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE status = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, domain.RideStatusInProgress)
}

// CountByPassenger returns the passenger's total ride count and how
// many of those rides are COMPLETED.
func (r *RideRepository) CountByPassenger(ctx context.Context, passengerID string) (int, int, error) {
	query := `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE status = $2)
		FROM rides
		WHERE passenger_id = $1
	`

	var total, completed int
	err := r.q.QueryRowContext(ctx, query, passengerID, domain.RideStatusCompleted).Scan(&total, &completed)
	if err != nil {
		return 0, 0, err
	}
	return total, completed, nil
}

// ListRequestedBefore retrieves rides still REQUESTED created before the cutoff.
func (r *RideRepository) ListRequestedBefore(ctx context.Context, cutoff time.Time) ([]*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE status = $1 AND created_at < $2 ORDER BY created_at`
	return r.list(ctx, query, domain.RideStatusRequested, cutoff)
}

func (r *RideRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Ride, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rides []*domain.Ride
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		rides = append(rides, ride)
	}
	return rides, rows.Err()
}

func scanRide(row rowScanner) (*domain.Ride, error) {
	var ride domain.Ride
	var driverID, cancelReason sql.NullString
	var completedAt sql.NullTime

	if err := row.Scan(
		&ride.ID,
		&ride.PassengerID,
		&driverID,
		&ride.PickupLat,
		&ride.PickupLng,
		&ride.DropoffLat,
		&ride.DropoffLng,
		&ride.Fare,
		&ride.Status,
		&ride.CreatedAt,
		&completedAt,
		&cancelReason,
	); err != nil {
		return nil, err
	}

	if driverID.Valid {
		ride.DriverID = driverID.String
	}
	if completedAt.Valid {
		ride.CompletedAt = completedAt.Time
	}
	if cancelReason.Valid {
		ride.CancelReason = cancelReason.String
	}

	return &ride, nil
}
