package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"ridelink/internal/domain"
	"ridelink/internal/gateway"
	"ridelink/internal/geo"
	"ridelink/internal/redis"
	"ridelink/internal/repository"
)

const (
	driverLockTTL = 10 * time.Second

	// maxMatchAttempts bounds the re-match loop; the pool is regional
	// so this is never reached in practice.
	maxMatchAttempts = 25
)

// RideLedgerInterface defines the ledger contract consumed by the
// dispatcher. This interface allows for testing with mock implementations.
type RideLedgerInterface interface {
	CreateRide(ctx context.Context, params CreateRideParams, intent ChargeIntentFunc) (*domain.Ride, *domain.Payment, error)
	Transition(ctx context.Context, rideID string, target domain.RideStatus, actorID string) (*domain.Ride, error)
	ConfirmPayment(ctx context.Context, chargeIntentID string, succeeded bool) (*domain.Payment, bool, error)
	GetRide(ctx context.Context, rideID string) (*domain.Ride, error)
	GetPaymentByRide(ctx context.Context, rideID string) (*domain.Payment, error)
}

// Ensure RideLedger implements RideLedgerInterface.
var _ RideLedgerInterface = (*RideLedger)(nil)

// DispatchService orchestrates the request -> match -> price -> persist
// -> notify pipeline and routes lifecycle commands into the ledger.
type DispatchService struct {
	ledger         RideLedgerInterface
	geoIndex       geo.Index
	fare           *FareCalculator
	lockStore      redis.LockStoreInterface
	payments       gateway.PaymentGateway
	notifier       *Notifier
	userRepo       repository.UserRepository
	searchRadiusKm float64
}

// NewDispatchService creates a new DispatchService. lockStore may be
// nil; the booking transaction alone is sufficient for correctness, the
// lock only narrows the race window across instances.
func NewDispatchService(
	ledger RideLedgerInterface,
	geoIndex geo.Index,
	fare *FareCalculator,
	lockStore redis.LockStoreInterface,
	payments gateway.PaymentGateway,
	notifier *Notifier,
	userRepo repository.UserRepository,
	searchRadiusKm float64,
) *DispatchService {
	return &DispatchService{
		ledger:         ledger,
		geoIndex:       geoIndex,
		fare:           fare,
		lockStore:      lockStore,
		payments:       payments,
		notifier:       notifier,
		userRepo:       userRepo,
		searchRadiusKm: searchRadiusKm,
	}
}

// RequestRideParams contains the parameters for requesting a ride.
type RequestRideParams struct {
	PassengerID string
	Pickup      geo.Point
	Dropoff     geo.Point
}

// RequestRideResult contains the outcome of a successful ride request.
type RequestRideResult struct {
	Ride          *domain.Ride
	Payment       *domain.Payment
	Driver        *domain.Driver
	EstimatedFare float64
}

// RequestRide matches the nearest available driver, prices the trip,
// books driver+ride+payment atomically and notifies the driver. When
// two requests race for the same driver, the loser re-runs matching
// against the remaining pool.
func (s *DispatchService) RequestRide(ctx context.Context, params RequestRideParams) (*RequestRideResult, error) {
	if params.PassengerID == "" {
		return nil, ErrInvalidPassengerID
	}
	if !params.Pickup.Valid() || !params.Dropoff.Valid() {
		return nil, ErrInvalidCoordinates
	}

	fare, err := s.fare.ComputeFare(params.Pickup, params.Dropoff)
	if err != nil {
		return nil, err
	}

	passenger, err := s.userRepo.GetByID(ctx, params.PassengerID)
	if err != nil {
		return nil, err
	}

	var exclude []string
	for attempt := 0; attempt < maxMatchAttempts; attempt++ {
		driver, err := s.geoIndex.FindNearest(ctx, params.Pickup, s.searchRadiusKm, exclude)
		if err != nil {
			if errors.Is(err, geo.ErrNoDriverInRange) {
				return nil, ErrNoDriverAvailable
			}
			return nil, err
		}

		if s.lockStore != nil {
			locked, err := s.lockStore.AcquireDriverLock(ctx, driver.ID, driverLockTTL)
			if err != nil {
				return nil, err
			}
			if !locked {
				// Another dispatcher is booking this driver.
				exclude = append(exclude, driver.ID)
				continue
			}
		}

		intent := func(ctx context.Context, ride *domain.Ride) (string, error) {
			intentID, err := s.payments.CreateChargeIntent(ctx, passenger.CustomerRef, MinorUnits(fare), s.fare.Currency(), map[string]string{
				"ride_id": ride.ID,
			})
			if err != nil {
				return "", fmt.Errorf("%w: create charge intent: %v", ErrGatewayUnavailable, err)
			}
			return intentID, nil
		}

		ride, payment, err := s.ledger.CreateRide(ctx, CreateRideParams{
			PassengerID: params.PassengerID,
			DriverID:    driver.ID,
			Pickup:      params.Pickup,
			Dropoff:     params.Dropoff,
			Fare:        fare,
		}, intent)
		if err != nil {
			s.releaseDriverLock(ctx, driver.ID)

			if errors.Is(err, ErrDriverUnavailable) {
				// Lost the booking race; try the rest of the pool.
				exclude = append(exclude, driver.ID)
				continue
			}
			return nil, err
		}

		// The committed booking already holds the driver via the
		// availability flag, so the lock has done its job.
		s.releaseDriverLock(ctx, driver.ID)

		if s.notifier != nil {
			_ = s.notifier.DriverRideRequested(ctx, driver, ride)
		}

		return &RequestRideResult{
			Ride:          ride,
			Payment:       payment,
			Driver:        driver,
			EstimatedFare: fare,
		}, nil
	}

	return nil, ErrNoDriverAvailable
}

// AcceptRide moves a ride to ACCEPTED on behalf of its assigned driver
// and sends the passenger a payment authorization link.
func (s *DispatchService) AcceptRide(ctx context.Context, driverID, rideID string) (*domain.Ride, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	ride, err := s.ledger.Transition(ctx, rideID, domain.RideStatusAccepted, driverID)
	if err != nil {
		return nil, err
	}

	paymentLink := ""
	if payment, err := s.ledger.GetPaymentByRide(ctx, rideID); err == nil && payment.ChargeIntentID != "" {
		link, err := s.payments.CreatePaymentLink(ctx, payment.ChargeIntentID)
		if err != nil {
			logrus.WithField("ride_id", rideID).WithError(err).Warn("payment link creation failed")
		} else {
			paymentLink = link
		}
	}

	if s.notifier != nil {
		_ = s.notifier.PassengerRideAccepted(ctx, ride, paymentLink)
	}

	return ride, nil
}

// StartRide moves a ride to IN_PROGRESS. The ledger re-checks payment
// completion at the moment of transition.
func (s *DispatchService) StartRide(ctx context.Context, driverID, rideID string) (*domain.Ride, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	ride, err := s.ledger.Transition(ctx, rideID, domain.RideStatusInProgress, driverID)
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		_ = s.notifier.PassengerRideStarted(ctx, ride)
	}

	return ride, nil
}

// CompleteRide moves a ride to COMPLETED and notifies both parties. The
// ledger releases the driver back to the matching pool.
func (s *DispatchService) CompleteRide(ctx context.Context, driverID, rideID string) (*domain.Ride, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	ride, err := s.ledger.Transition(ctx, rideID, domain.RideStatusCompleted, driverID)
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		_ = s.notifier.RideCompleted(ctx, ride)
	}

	return ride, nil
}

// CancelRide cancels a ride on behalf of its passenger or driver.
func (s *DispatchService) CancelRide(ctx context.Context, actorID, rideID string) (*domain.Ride, error) {
	ride, err := s.ledger.Transition(ctx, rideID, domain.RideStatusCancelled, actorID)
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		_ = s.notifier.RideCancelled(ctx, ride, actorID)
	}

	return ride, nil
}

// ConfirmPayment applies a gateway webhook result and notifies both
// parties the first time a payment settles. Safe to call repeatedly and
// concurrently with ride transitions.
func (s *DispatchService) ConfirmPayment(ctx context.Context, chargeIntentID string, succeeded bool) (*domain.Payment, error) {
	payment, settledNow, err := s.ledger.ConfirmPayment(ctx, chargeIntentID, succeeded)
	if err != nil {
		return nil, err
	}

	// Notify only on the settling call so duplicate webhook deliveries
	// never produce duplicate messages.
	if settledNow && s.notifier != nil {
		if ride, err := s.ledger.GetRide(ctx, payment.RideID); err == nil {
			_ = s.notifier.PaymentSettled(ctx, ride, payment)
		}
	}

	return payment, nil
}

// GetRide fetches a single ride.
func (s *DispatchService) GetRide(ctx context.Context, rideID string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}
	return s.ledger.GetRide(ctx, rideID)
}

// UpdateDriverPosition records a driver's current coordinates.
func (s *DispatchService) UpdateDriverPosition(ctx context.Context, driverID string, p geo.Point) error {
	if driverID == "" {
		return ErrInvalidDriverID
	}
	if !p.Valid() {
		return ErrInvalidCoordinates
	}
	return s.geoIndex.UpdatePosition(ctx, driverID, p)
}

func (s *DispatchService) releaseDriverLock(ctx context.Context, driverID string) {
	if s.lockStore == nil {
		return
	}
	_ = s.lockStore.ReleaseDriverLock(ctx, driverID)
}
