package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ridelink/internal/domain"
	"ridelink/internal/repository"
)

// DriverRepository is a PostgreSQL implementation of repository.DriverRepository.
type DriverRepository struct {
	q Querier
}

// NewDriverRepository creates a new PostgreSQL driver repository.
func NewDriverRepository(db *sql.DB) *DriverRepository {
	return &DriverRepository{q: db}
}

// NewDriverRepositoryWithTx creates a driver repository using a transaction.
func NewDriverRepositoryWithTx(tx *sql.Tx) *DriverRepository {
	return &DriverRepository{q: tx}
}

const driverColumns = `id, name, phone, current_lat, current_lng, is_available, location_updated_at, created_at`

// Create adds a new driver.
func (r *DriverRepository) Create(ctx context.Context, driver *domain.Driver) error {
	query := `
		INSERT INTO drivers (id, name, phone, is_available, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.q.ExecContext(ctx, query, driver.ID, driver.Name, driver.Phone, driver.IsAvailable, driver.CreatedAt)
	return err
}

// GetByID retrieves a driver by ID.
func (r *DriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	query := `SELECT ` + driverColumns + ` FROM drivers WHERE id = $1`
	return r.scanOne(r.q.QueryRowContext(ctx, query, id))
}

// GetByPhone retrieves a driver by phone number.
func (r *DriverRepository) GetByPhone(ctx context.Context, phone string) (*domain.Driver, error) {
	query := `SELECT ` + driverColumns + ` FROM drivers WHERE phone = $1`
	return r.scanOne(r.q.QueryRowContext(ctx, query, phone))
}

// GetByIDForUpdate retrieves a driver by ID with a row lock. Only
// meaningful inside a transaction; the lock serializes concurrent
// match+book attempts on the same driver.
func (r *DriverRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Driver, error) {
	query := `SELECT ` + driverColumns + ` FROM drivers WHERE id = $1 FOR UPDATE`
	return r.scanOne(r.q.QueryRowContext(ctx, query, id))
}

// GetAvailable retrieves all available drivers ordered by id.
func (r *DriverRepository) GetAvailable(ctx context.Context) ([]*domain.Driver, error) {
	query := `SELECT ` + driverColumns + ` FROM drivers WHERE is_available = TRUE ORDER BY id`

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drivers []*domain.Driver
	for rows.Next() {
		driver, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		drivers = append(drivers, driver)
	}
	return drivers, rows.Err()
}

// UpdatePosition overwrites the driver's coordinates and position timestamp.
func (r *DriverRepository) UpdatePosition(ctx context.Context, id string, lat, lng float64, at time.Time) error {
	query := `UPDATE drivers SET current_lat = $1, current_lng = $2, location_updated_at = $3 WHERE id = $4`

	result, err := r.q.ExecContext(ctx, query, lat, lng, at, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// MarkUnavailable flips is_available true -> false.
func (r *DriverRepository) MarkUnavailable(ctx context.Context, id string) (bool, error) {
	return r.setAvailability(ctx, id, false)
}

// Release flips is_available false -> true. The predicate on the prior
// value makes repeated release calls a no-op after the first.
func (r *DriverRepository) Release(ctx context.Context, id string) (bool, error) {
	return r.setAvailability(ctx, id, true)
}

func (r *DriverRepository) setAvailability(ctx context.Context, id string, available bool) (bool, error) {
	query := `UPDATE drivers SET is_available = $1 WHERE id = $2 AND is_available = $3`

	result, err := r.q.ExecContext(ctx, query, available, id, !available)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *DriverRepository) scanOne(row *sql.Row) (*domain.Driver, error) {
	driver, err := r.scanRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return driver, nil
}

func (r *DriverRepository) scanRow(row rowScanner) (*domain.Driver, error) {
	var driver domain.Driver
	var lat, lng sql.NullFloat64
	var locationUpdatedAt sql.NullTime

	if err := row.Scan(
		&driver.ID,
		&driver.Name,
		&driver.Phone,
		&lat,
		&lng,
		&driver.IsAvailable,
		&locationUpdatedAt,
		&driver.CreatedAt,
	); err != nil {
		return nil, err
	}

	if lat.Valid {
		driver.Lat = lat.Float64
	}
	if lng.Valid {
		driver.Lng = lng.Float64
	}
	if locationUpdatedAt.Valid {
		driver.LocationUpdatedAt = locationUpdatedAt.Time
	}

	return &driver, nil
}
