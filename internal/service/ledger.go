package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ridelink/internal/domain"
	"ridelink/internal/geo"
	"ridelink/internal/repository"
	"ridelink/internal/repository/postgres"
)

// legalEdges is the ride state table. CANCELLED is reachable from
// REQUESTED and ACCEPTED only; COMPLETED only from IN_PROGRESS.
var legalEdges = map[domain.RideStatus][]domain.RideStatus{
	domain.RideStatusRequested:  {domain.RideStatusAccepted, domain.RideStatusCancelled},
	domain.RideStatusAccepted:   {domain.RideStatusInProgress, domain.RideStatusCancelled},
	domain.RideStatusInProgress: {domain.RideStatusCompleted},
}

func edgeAllowed(from, to domain.RideStatus) bool {
	for _, next := range legalEdges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ChargeIntentFunc creates a charge intent for a ride and returns the
// intent id. It runs inside the booking transaction: an error rolls the
// whole booking back, leaving no ride, no payment, and the driver
// available.
type ChargeIntentFunc func(ctx context.Context, ride *domain.Ride) (string, error)

// RideLedger owns the Ride and Payment entities and enforces the state
// machine and its invariants. All persistence operations are short,
// bounded transactions or single compare-and-set statements.
type RideLedger struct {
	db          *sql.DB
	rideRepo    repository.RideRepository
	driverRepo  repository.DriverRepository
	paymentRepo repository.PaymentRepository
}

// NewRideLedger creates a new RideLedger.
func NewRideLedger(
	db *sql.DB,
	rideRepo repository.RideRepository,
	driverRepo repository.DriverRepository,
	paymentRepo repository.PaymentRepository,
) *RideLedger {
	return &RideLedger{
		db:          db,
		rideRepo:    rideRepo,
		driverRepo:  driverRepo,
		paymentRepo: paymentRepo,
	}
}

// CreateRideParams contains the parameters for booking a ride.
type CreateRideParams struct {
	PassengerID string
	DriverID    string
	Pickup      geo.Point
	Dropoff     geo.Point
	Fare        float64
}

// CreateRide books a driver in a single transaction: a row lock on the
// driver record serializes concurrent bookings, the ride is created in
// REQUESTED with its payment in PENDING, and the driver is marked
// unavailable. Either everything persists or nothing does.
func (l *RideLedger) CreateRide(ctx context.Context, params CreateRideParams, intent ChargeIntentFunc) (*domain.Ride, *domain.Payment, error) {
	if params.PassengerID == "" {
		return nil, nil, ErrInvalidPassengerID
	}
	if params.DriverID == "" {
		return nil, nil, ErrInvalidDriverID
	}
	// A zero fare is legitimate when the base fare is configured zero
	// and pickup equals dropoff; only negative amounts are rejected.
	if params.Fare < 0 {
		return nil, nil, ErrInvalidFareAmount
	}
	if !params.Pickup.Valid() || !params.Dropoff.Valid() {
		return nil, nil, ErrInvalidCoordinates
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	txDriverRepo := postgres.NewDriverRepositoryWithTx(tx)
	txRideRepo := postgres.NewRideRepositoryWithTx(tx)
	txPaymentRepo := postgres.NewPaymentRepositoryWithTx(tx)

	// Lock the driver row for the duration of the booking.
	driver, err := txDriverRepo.GetByIDForUpdate(ctx, params.DriverID)
	if err != nil {
		return nil, nil, err
	}

	if !driver.IsAvailable {
		err = ErrDriverUnavailable
		return nil, nil, err
	}

	active, err := txRideRepo.GetActiveByDriverID(ctx, params.DriverID)
	if err != nil {
		return nil, nil, err
	}
	if active != nil {
		err = ErrDriverUnavailable
		return nil, nil, err
	}

	now := time.Now()
	ride := &domain.Ride{
		ID:          uuid.New().String(),
		PassengerID: params.PassengerID,
		DriverID:    params.DriverID,
		PickupLat:   params.Pickup.Lat,
		PickupLng:   params.Pickup.Lng,
		DropoffLat:  params.Dropoff.Lat,
		DropoffLng:  params.Dropoff.Lng,
		Fare:        params.Fare,
		Status:      domain.RideStatusRequested,
		CreatedAt:   now,
	}

	if err = txRideRepo.Create(ctx, ride); err != nil {
		return nil, nil, err
	}

	var intentID string
	if intent != nil {
		intentID, err = intent(ctx, ride)
		if err != nil {
			return nil, nil, err
		}
	}

	payment := &domain.Payment{
		ID:             uuid.New().String(),
		RideID:         ride.ID,
		PassengerID:    params.PassengerID,
		Amount:         params.Fare,
		ChargeIntentID: intentID,
		Status:         domain.PaymentStatusPending,
		CreatedAt:      now,
	}

	if err = txPaymentRepo.Create(ctx, payment); err != nil {
		return nil, nil, err
	}

	var booked bool
	booked, err = txDriverRepo.MarkUnavailable(ctx, params.DriverID)
	if err != nil {
		return nil, nil, err
	}
	if !booked {
		err = ErrDriverUnavailable
		return nil, nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, nil, err
	}

	logrus.WithFields(logrus.Fields{
		"ride_id":   ride.ID,
		"driver_id": params.DriverID,
		"fare":      params.Fare,
	}).Info("ride booked")

	return ride, payment, nil
}

// Transition validates actor authorization and the legality of the edge,
// then compare-and-sets the ride status. Concurrent transitions on the
// same ride lose the CAS and observe ErrInvalidTransition.
func (l *RideLedger) Transition(ctx context.Context, rideID string, target domain.RideStatus, actorID string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}

	ride, err := l.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}

	if !edgeAllowed(ride.Status, target) {
		return nil, ErrInvalidTransition
	}

	if err := authorizeTransition(ride, target, actorID); err != nil {
		return nil, err
	}

	// The payment gate is evaluated at the moment of transition, never
	// cached, so a confirmation webhook racing this call is honored.
	if target == domain.RideStatusInProgress {
		payment, err := l.paymentRepo.GetByRideID(ctx, rideID)
		if err != nil {
			return nil, err
		}
		if payment.Status != domain.PaymentStatusCompleted {
			return nil, ErrPaymentNotConfirmed
		}
	}

	var completedAt time.Time
	if target.IsTerminal() {
		completedAt = time.Now()
	}

	reason := ""
	if target == domain.RideStatusCancelled {
		reason = cancelReason(ride, actorID)
	}

	ok, err := l.rideRepo.UpdateStatus(ctx, rideID, ride.Status, target, completedAt, reason)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidTransition
	}

	ride.Status = target
	ride.CompletedAt = completedAt
	ride.CancelReason = reason

	if target.IsTerminal() && ride.DriverID != "" {
		l.releaseDriver(ctx, ride)
	}

	logrus.WithFields(logrus.Fields{
		"ride_id": rideID,
		"status":  target,
		"actor":   actorID,
	}).Info("ride transitioned")

	return ride, nil
}

func authorizeTransition(ride *domain.Ride, target domain.RideStatus, actorID string) error {
	switch target {
	case domain.RideStatusAccepted, domain.RideStatusInProgress, domain.RideStatusCompleted:
		if actorID != ride.DriverID {
			return ErrForbidden
		}
	case domain.RideStatusCancelled:
		if actorID != ride.PassengerID && actorID != ride.DriverID {
			return ErrForbidden
		}
	default:
		return ErrInvalidTransition
	}
	return nil
}

func cancelReason(ride *domain.Ride, actorID string) string {
	if actorID == ride.PassengerID {
		return "cancelled by passenger"
	}
	return "cancelled by driver"
}

// releaseDriver returns the driver to the matching pool. The
// availability flip is a compare-and-set, so the release happens
// exactly once no matter how many observers trigger it.
func (l *RideLedger) releaseDriver(ctx context.Context, ride *domain.Ride) {
	released, err := l.driverRepo.Release(ctx, ride.DriverID)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"ride_id":   ride.ID,
			"driver_id": ride.DriverID,
		}).WithError(err).Error("driver release failed")
		return
	}
	if released {
		logrus.WithFields(logrus.Fields{
			"ride_id":   ride.ID,
			"driver_id": ride.DriverID,
		}).Info("driver released")
	}
}

// ConfirmPayment applies a gateway settlement result. Repeated
// confirmation of an already settled payment is a no-op success; the
// returned bool reports whether this call performed the settlement.
func (l *RideLedger) ConfirmPayment(ctx context.Context, chargeIntentID string, succeeded bool) (*domain.Payment, bool, error) {
	payment, err := l.paymentRepo.GetByChargeIntentID(ctx, chargeIntentID)
	if err != nil {
		return nil, false, err
	}

	if payment.Status != domain.PaymentStatusPending {
		return payment, false, nil
	}

	status := domain.PaymentStatusCompleted
	if !succeeded {
		status = domain.PaymentStatusFailed
	}

	now := time.Now()
	settled, err := l.paymentRepo.SettleIfPending(ctx, payment.ID, status, now)
	if err != nil {
		return nil, false, err
	}
	if !settled {
		// Lost the race against a concurrent webhook delivery.
		payment, err = l.paymentRepo.GetByChargeIntentID(ctx, chargeIntentID)
		if err != nil {
			return nil, false, err
		}
		return payment, false, nil
	}

	payment.Status = status
	payment.CompletedAt = now

	logrus.WithFields(logrus.Fields{
		"payment_id": payment.ID,
		"ride_id":    payment.RideID,
		"status":     status,
	}).Info("payment settled")

	return payment, true, nil
}

// ExpireRequested cancels rides left REQUESTED before the cutoff and
// releases their drivers. Uses the same CAS transition as any other
// cancellation, so a ride accepted concurrently is left alone.
func (l *RideLedger) ExpireRequested(ctx context.Context, cutoff time.Time) (int, error) {
	stale, err := l.rideRepo.ListRequestedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, ride := range stale {
		ok, err := l.rideRepo.UpdateStatus(ctx, ride.ID, domain.RideStatusRequested, domain.RideStatusCancelled, time.Now(), "request expired")
		if err != nil {
			return expired, err
		}
		if !ok {
			continue
		}
		expired++

		if ride.DriverID != "" {
			ride.Status = domain.RideStatusCancelled
			l.releaseDriver(ctx, ride)
		}
	}
	return expired, nil
}

// GetRide retrieves a ride by ID.
func (l *RideLedger) GetRide(ctx context.Context, rideID string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}
	return l.rideRepo.GetByID(ctx, rideID)
}

// GetPaymentByRide retrieves the payment owned by a ride.
func (l *RideLedger) GetPaymentByRide(ctx context.Context, rideID string) (*domain.Payment, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}
	return l.paymentRepo.GetByRideID(ctx, rideID)
}

// GetUserRideHistory retrieves a passenger's rides with payment
// information, newest first.
func (l *RideLedger) GetUserRideHistory(ctx context.Context, passengerID string, limit int) ([]*domain.RideHistoryEntry, error) {
	if passengerID == "" {
		return nil, ErrInvalidPassengerID
	}
	if limit <= 0 {
		limit = 10
	}
	return l.rideRepo.ListByPassenger(ctx, passengerID, limit)
}

// GetDriverEarnings returns the sum of completed payment amounts for a
// driver since the given time.
func (l *RideLedger) GetDriverEarnings(ctx context.Context, driverID string, since time.Time) (float64, error) {
	if driverID == "" {
		return 0, ErrInvalidDriverID
	}
	return l.paymentRepo.SumCompletedByDriver(ctx, driverID, since)
}

// ListActiveRides retrieves all rides currently in progress.
func (l *RideLedger) ListActiveRides(ctx context.Context) ([]*domain.Ride, error) {
	return l.rideRepo.ListInProgress(ctx)
}

// GetUserStats returns a passenger's ride counts and total spend.
// Cancelled rides count toward the total; only completed payments count
// toward the spend.
func (l *RideLedger) GetUserStats(ctx context.Context, passengerID string) (*domain.UserStats, error) {
	if passengerID == "" {
		return nil, ErrInvalidPassengerID
	}

	total, completed, err := l.rideRepo.CountByPassenger(ctx, passengerID)
	if err != nil {
		return nil, err
	}

	spent, err := l.paymentRepo.SumCompletedByPassenger(ctx, passengerID)
	if err != nil {
		return nil, err
	}

	return &domain.UserStats{
		TotalRides:     total,
		CompletedRides: completed,
		TotalSpent:     spent,
	}, nil
}
