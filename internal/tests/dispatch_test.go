package tests

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"ridelink/internal/domain"
	"ridelink/internal/geo"
	"ridelink/internal/service"
)

// memoryLedger implements service.RideLedgerInterface over the mock
// repositories. A single mutex stands in for the booking transaction:
// the check-and-book sequence runs atomically and nothing persists when
// the charge intent callback fails.
type memoryLedger struct {
	*service.RideLedger

	mu          sync.Mutex
	driverRepo  *MockDriverRepository
	rideRepo    *MockRideRepository
	paymentRepo *MockPaymentRepository
}

func newMemoryLedger(driverRepo *MockDriverRepository, rideRepo *MockRideRepository, paymentRepo *MockPaymentRepository) *memoryLedger {
	return &memoryLedger{
		RideLedger:  service.NewRideLedger(nil, rideRepo, driverRepo, paymentRepo),
		driverRepo:  driverRepo,
		rideRepo:    rideRepo,
		paymentRepo: paymentRepo,
	}
}

func (l *memoryLedger) CreateRide(ctx context.Context, params service.CreateRideParams, intent service.ChargeIntentFunc) (*domain.Ride, *domain.Payment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	driver, err := l.driverRepo.GetByID(ctx, params.DriverID)
	if err != nil {
		return nil, nil, err
	}
	if !driver.IsAvailable {
		return nil, nil, service.ErrDriverUnavailable
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

	var intentID string
	if intent != nil {
		intentID, err = intent(ctx, ride)
		if err != nil {
			// Nothing was persisted; the booking rolls back whole.
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

	if _, err := l.driverRepo.MarkUnavailable(ctx, params.DriverID); err != nil {
		return nil, nil, err
	}
	l.rideRepo.AddRide(ride)
	l.paymentRepo.AddPayment(payment)
	return ride, payment, nil
}

type dispatchFixture struct {
	dispatch    *service.DispatchService
	ledger      *memoryLedger
	driverRepo  *MockDriverRepository
	rideRepo    *MockRideRepository
	paymentRepo *MockPaymentRepository
	userRepo    *MockUserRepository
	payments    *MockPaymentGateway
	messages    *MockMessagingGateway
	lockStore   *MockLockStore
}

func newDispatchFixture() *dispatchFixture {
	driverRepo := NewMockDriverRepository()
	rideRepo := NewMockRideRepository()
	paymentRepo := NewMockPaymentRepository()
	userRepo := NewMockUserRepository()
	payments := NewMockPaymentGateway()
	messages := NewMockMessagingGateway()
	lockStore := NewMockLockStore()

	userRepo.AddUser(&domain.User{
		ID:          "passenger-1",
		Name:        "Pat",
		Phone:       "+15550001111",
		CustomerRef: "cus_test",
	})

	ledger := newMemoryLedger(driverRepo, rideRepo, paymentRepo)
	fare := service.NewFareCalculator(5.00, 1.50, "usd")
	notifier := service.NewNotifier(messages, userRepo, driverRepo)
	dispatch := service.NewDispatchService(ledger, geo.NewDriverIndex(driverRepo), fare, lockStore, payments, notifier, userRepo, 10)

	return &dispatchFixture{
		dispatch:    dispatch,
		ledger:      ledger,
		driverRepo:  driverRepo,
		rideRepo:    rideRepo,
		paymentRepo: paymentRepo,
		userRepo:    userRepo,
		payments:    payments,
		messages:    messages,
		lockStore:   lockStore,
	}
}

func availableDriver(id string, lat, lng float64) *domain.Driver {
	return &domain.Driver{
		ID:                id,
		Name:              "Driver " + id,
		Phone:             "+1555000" + id,
		Lat:               lat,
		Lng:               lng,
		IsAvailable:       true,
		LocationUpdatedAt: time.Now(),
	}
}

func TestRequestRide_BooksNearestDriver(t *testing.T) {
	ctx := context.Background()
	f := newDispatchFixture()

	// Near driver ~2km north of pickup, far driver ~8km.
	f.driverRepo.AddDriver(availableDriver("near", 40.7308, -74.0060))
	f.driverRepo.AddDriver(availableDriver("far", 40.7848, -74.0060))

	result, err := f.dispatch.RequestRide(ctx, service.RequestRideParams{
		PassengerID: "passenger-1",
		Pickup:      geo.Point{Lat: 40.7128, Lng: -74.0060},
		Dropoff:     geo.Point{Lat: 40.7589, Lng: -73.9851},
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	if result.Driver.ID != "near" {
		t.Errorf("expected nearest driver, got %s", result.Driver.ID)
	}
	if result.Ride.Status != domain.RideStatusRequested {
		t.Errorf("expected REQUESTED, got %s", result.Ride.Status)
	}
	if result.Payment.Status != domain.PaymentStatusPending {
		t.Errorf("expected PENDING payment, got %s", result.Payment.Status)
	}
	if result.Payment.Amount != result.Ride.Fare || result.Ride.Fare <= 5.00 {
		t.Errorf("fare mismatch: ride=%v payment=%v", result.Ride.Fare, result.Payment.Amount)
	}
	if d := f.driverRepo.GetDriver("near"); d.IsAvailable {
		t.Error("booked driver still available")
	}

	// The matched driver gets a notification with the ride id.
	msgs := f.messages.Messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(msgs))
	}
	if !strings.Contains(msgs[0].Body, result.Ride.ID) {
		t.Errorf("driver notification missing ride id: %q", msgs[0].Body)
	}
}

func TestRequestRide_NoDriverInRange(t *testing.T) {
	ctx := context.Background()
	f := newDispatchFixture()

	// Only driver is ~111km away, outside the 10km radius.
	f.driverRepo.AddDriver(availableDriver("remote", 41.7128, -74.0060))

	_, err := f.dispatch.RequestRide(ctx, service.RequestRideParams{
		PassengerID: "passenger-1",
		Pickup:      geo.Point{Lat: 40.7128, Lng: -74.0060},
		Dropoff:     geo.Point{Lat: 40.7589, Lng: -73.9851},
	})
	if !errors.Is(err, service.ErrNoDriverAvailable) {
		t.Fatalf("expected ErrNoDriverAvailable, got %v", err)
	}
	if f.rideRepo.CountRides() != 0 {
		t.Error("ride persisted despite no driver")
	}
}

func TestRequestRide_ConcurrentRequestsSingleDriver(t *testing.T) {
	ctx := context.Background()
	f := newDispatchFixture()

	f.userRepo.AddUser(&domain.User{ID: "passenger-2", Name: "Quinn", Phone: "+15550002222", CustomerRef: "cus_test2"})
	f.driverRepo.AddDriver(availableDriver("solo", 40.7158, -74.0060))

	params := func(passengerID string) service.RequestRideParams {
		return service.RequestRideParams{
			PassengerID: passengerID,
			Pickup:      geo.Point{Lat: 40.7128, Lng: -74.0060},
			Dropoff:     geo.Point{Lat: 40.7589, Lng: -73.9851},
		}
	}

	var successes, failures int32
	var wg sync.WaitGroup
	for _, passengerID := range []string{"passenger-1", "passenger-2"} {
		wg.Add(1)
		go func(pid string) {
			defer wg.Done()
			_, err := f.dispatch.RequestRide(ctx, params(pid))
			if err == nil {
				atomic.AddInt32(&successes, 1)
				return
			}
			if errors.Is(err, service.ErrNoDriverAvailable) {
				atomic.AddInt32(&failures, 1)
				return
			}
			t.Errorf("unexpected error: %v", err)
		}(passengerID)
	}
	wg.Wait()

	if successes != 1 || failures != 1 {
		t.Fatalf("expected exactly one booking, got %d successes / %d failures", successes, failures)
	}
	if f.rideRepo.CountRides() != 1 {
		t.Errorf("expected 1 ride, got %d", f.rideRepo.CountRides())
	}
	if d := f.driverRepo.GetDriver("solo"); d.IsAvailable {
		t.Error("driver still available after booking")
	}
}

func TestRequestRide_GatewayFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	f := newDispatchFixture()

	f.driverRepo.AddDriver(availableDriver("solo", 40.7158, -74.0060))
	f.payments.IntentError = errors.New("processor down")

	_, err := f.dispatch.RequestRide(ctx, service.RequestRideParams{
		PassengerID: "passenger-1",
		Pickup:      geo.Point{Lat: 40.7128, Lng: -74.0060},
		Dropoff:     geo.Point{Lat: 40.7589, Lng: -73.9851},
	})
	if !errors.Is(err, service.ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}

	// No ride, no payment, driver back in the pool.
	if f.rideRepo.CountRides() != 0 {
		t.Error("ride persisted despite gateway failure")
	}
	if d := f.driverRepo.GetDriver("solo"); !d.IsAvailable {
		t.Error("driver not available after failed booking")
	}
	if len(f.messages.Messages()) != 0 {
		t.Error("notification sent for failed booking")
	}
}

func TestAcceptRide_SendsPaymentLinkToPassenger(t *testing.T) {
	ctx := context.Background()
	f := newDispatchFixture()
	f.driverRepo.AddDriver(availableDriver("solo", 40.7158, -74.0060))

	result, err := f.dispatch.RequestRide(ctx, service.RequestRideParams{
		PassengerID: "passenger-1",
		Pickup:      geo.Point{Lat: 40.7128, Lng: -74.0060},
		Dropoff:     geo.Point{Lat: 40.7589, Lng: -73.9851},
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	ride, err := f.dispatch.AcceptRide(ctx, "solo", result.Ride.ID)
	if err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	if ride.Status != domain.RideStatusAccepted {
		t.Errorf("expected ACCEPTED, got %s", ride.Status)
	}

	msgs := f.messages.Messages()
	last := msgs[len(msgs)-1]
	if last.To != "+15550001111" {
		t.Errorf("acceptance notice sent to %s", last.To)
	}
	if !strings.Contains(last.Body, "https://pay.test/") {
		t.Errorf("acceptance notice missing payment link: %q", last.Body)
	}
}

func TestConfirmPayment_NotifiesBothPartiesOnce(t *testing.T) {
	ctx := context.Background()
	f := newDispatchFixture()
	f.driverRepo.AddDriver(availableDriver("solo", 40.7158, -74.0060))

	result, err := f.dispatch.RequestRide(ctx, service.RequestRideParams{
		PassengerID: "passenger-1",
		Pickup:      geo.Point{Lat: 40.7128, Lng: -74.0060},
		Dropoff:     geo.Point{Lat: 40.7589, Lng: -73.9851},
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	before := len(f.messages.Messages())
	if _, err := f.dispatch.ConfirmPayment(ctx, result.Payment.ChargeIntentID, true); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	afterFirst := len(f.messages.Messages())
	if afterFirst-before != 2 {
		t.Errorf("expected 2 settlement notices, got %d", afterFirst-before)
	}

	// Duplicate webhook: no further notifications.
	if _, err := f.dispatch.ConfirmPayment(ctx, result.Payment.ChargeIntentID, true); err != nil {
		t.Fatalf("duplicate confirm errored: %v", err)
	}
	if got := len(f.messages.Messages()); got != afterFirst {
		t.Errorf("duplicate webhook produced notifications: %d -> %d", afterFirst, got)
	}
}

func TestRideLifecycle_EndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newDispatchFixture()
	f.driverRepo.AddDriver(availableDriver("solo", 40.7158, -74.0060))

	result, err := f.dispatch.RequestRide(ctx, service.RequestRideParams{
		PassengerID: "passenger-1",
		Pickup:      geo.Point{Lat: 40.7128, Lng: -74.0060},
		Dropoff:     geo.Point{Lat: 40.7589, Lng: -73.9851},
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	rideID := result.Ride.ID

	if _, err := f.dispatch.AcceptRide(ctx, "solo", rideID); err != nil {
		t.Fatalf("accept failed: %v", err)
	}

	// Starting before payment confirmation must fail.
	if _, err := f.dispatch.StartRide(ctx, "solo", rideID); !errors.Is(err, service.ErrPaymentNotConfirmed) {
		t.Fatalf("expected ErrPaymentNotConfirmed, got %v", err)
	}

	if _, err := f.dispatch.ConfirmPayment(ctx, result.Payment.ChargeIntentID, true); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if _, err := f.dispatch.StartRide(ctx, "solo", rideID); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	ride, err := f.dispatch.CompleteRide(ctx, "solo", rideID)
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if ride.Status != domain.RideStatusCompleted {
		t.Errorf("expected COMPLETED, got %s", ride.Status)
	}
	if d := f.driverRepo.GetDriver("solo"); !d.IsAvailable {
		t.Error("driver not released after completion")
	}
}

func TestCancelRide_ByPassengerNotifiesDriver(t *testing.T) {
	ctx := context.Background()
	f := newDispatchFixture()
	f.driverRepo.AddDriver(availableDriver("solo", 40.7158, -74.0060))

	result, err := f.dispatch.RequestRide(ctx, service.RequestRideParams{
		PassengerID: "passenger-1",
		Pickup:      geo.Point{Lat: 40.7128, Lng: -74.0060},
		Dropoff:     geo.Point{Lat: 40.7589, Lng: -73.9851},
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	ride, err := f.dispatch.CancelRide(ctx, "passenger-1", result.Ride.ID)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if ride.Status != domain.RideStatusCancelled {
		t.Errorf("expected CANCELLED, got %s", ride.Status)
	}
	if d := f.driverRepo.GetDriver("solo"); !d.IsAvailable {
		t.Error("driver not released after cancellation")
	}

	msgs := f.messages.Messages()
	last := msgs[len(msgs)-1]
	if last.To != "+1555000solo" {
		t.Errorf("cancellation notice sent to %s", last.To)
	}
}

func TestRequestRide_ReleasesDriverLockAfterBooking(t *testing.T) {
	ctx := context.Background()
	f := newDispatchFixture()
	f.driverRepo.AddDriver(availableDriver("solo", 40.7158, -74.0060))

	_, err := f.dispatch.RequestRide(ctx, service.RequestRideParams{
		PassengerID: "passenger-1",
		Pickup:      geo.Point{Lat: 40.7128, Lng: -74.0060},
		Dropoff:     geo.Point{Lat: 40.7589, Lng: -73.9851},
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	// The committed booking holds the driver via availability; the
	// dispatch lock must not linger until its TTL.
	if f.lockStore.Held("solo") {
		t.Error("driver lock still held after successful booking")
	}
	if n := atomic.LoadInt32(&f.lockStore.ReleaseCallCount); n != 1 {
		t.Errorf("expected 1 lock release, got %d", n)
	}
}

func TestRequestRide_ZeroBaseFareSamePointBooks(t *testing.T) {
	ctx := context.Background()
	f := newDispatchFixture()
	f.driverRepo.AddDriver(availableDriver("solo", 40.7158, -74.0060))

	fare := service.NewFareCalculator(0, 1.50, "usd")
	dispatch := service.NewDispatchService(f.ledger, geo.NewDriverIndex(f.driverRepo), fare, f.lockStore, f.payments, nil, f.userRepo, 10)

	point := geo.Point{Lat: 40.7128, Lng: -74.0060}
	result, err := dispatch.RequestRide(ctx, service.RequestRideParams{
		PassengerID: "passenger-1",
		Pickup:      point,
		Dropoff:     point,
	})
	if err != nil {
		t.Fatalf("zero-fare request failed: %v", err)
	}
	if result.Ride.Fare != 0 || result.Payment.Amount != 0 {
		t.Errorf("expected zero fare, got ride=%v payment=%v", result.Ride.Fare, result.Payment.Amount)
	}
	if result.Ride.Status != domain.RideStatusRequested {
		t.Errorf("expected REQUESTED, got %s", result.Ride.Status)
	}
}
