package tests

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"ridelink/internal/domain"
	"ridelink/internal/repository"
)

// ──────────────────────────────────────────────
// MOCK DRIVER REPOSITORY
// ──────────────────────────────────────────────

// MockDriverRepository is a mock implementation of DriverRepository.
type MockDriverRepository struct {
	mu      sync.RWMutex
	drivers map[string]*domain.Driver

	// Counters for verification
	CreateCallCount          int32
	MarkUnavailableCallCount int32
	ReleaseCallCount         int32

	// Error injection
	CreateError          error
	MarkUnavailableError error
	ReleaseError         error
}

// NewMockDriverRepository creates a new mock driver repository.
func NewMockDriverRepository() *MockDriverRepository {
	return &MockDriverRepository{
		drivers: make(map[string]*domain.Driver),
	}
}

// AddDriver adds a driver to the mock repository.
func (m *MockDriverRepository) AddDriver(driver *domain.Driver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[driver.ID] = driver
}

func (m *MockDriverRepository) Create(ctx context.Context, driver *domain.Driver) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[driver.ID] = driver
	return nil
}

func (m *MockDriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	driver, ok := m.drivers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	// Return a copy to avoid mutation issues.
	copy := *driver
	return &copy, nil
}

func (m *MockDriverRepository) GetByPhone(ctx context.Context, phone string) (*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.drivers {
		if d.Phone == phone {
			copy := *d
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockDriverRepository) GetAvailable(ctx context.Context) ([]*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Driver, 0, len(m.drivers))
	for _, d := range m.drivers {
		if d.IsAvailable {
			copy := *d
			result = append(result, &copy)
		}
	}
	return result, nil
}

func (m *MockDriverRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.Driver, error) {
	return m.GetByID(ctx, id)
}

func (m *MockDriverRepository) UpdatePosition(ctx context.Context, id string, lat, lng float64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	driver, ok := m.drivers[id]
	if !ok {
		return repository.ErrNotFound
	}
	driver.Lat = lat
	driver.Lng = lng
	driver.LocationUpdatedAt = at
	return nil
}

func (m *MockDriverRepository) MarkUnavailable(ctx context.Context, id string) (bool, error) {
	atomic.AddInt32(&m.MarkUnavailableCallCount, 1)
	if m.MarkUnavailableError != nil {
		return false, m.MarkUnavailableError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	driver, ok := m.drivers[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	if !driver.IsAvailable {
		return false, nil
	}
	driver.IsAvailable = false
	return true, nil
}

func (m *MockDriverRepository) Release(ctx context.Context, id string) (bool, error) {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	if m.ReleaseError != nil {
		return false, m.ReleaseError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	driver, ok := m.drivers[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	if driver.IsAvailable {
		return false, nil
	}
	driver.IsAvailable = true
	return true, nil
}

// GetDriver returns driver for test assertions.
func (m *MockDriverRepository) GetDriver(id string) *domain.Driver {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.drivers[id]
}

// ──────────────────────────────────────────────
// MOCK RIDE REPOSITORY
// ──────────────────────────────────────────────

// MockRideRepository is a mock implementation of RideRepository.
type MockRideRepository struct {
	mu    sync.RWMutex
	rides map[string]*domain.Ride

	// Counters for verification
	CreateCallCount       int32
	UpdateStatusCallCount int32

	// Error injection
	CreateError       error
	UpdateStatusError error
}

// NewMockRideRepository creates a new mock ride repository.
func NewMockRideRepository() *MockRideRepository {
	return &MockRideRepository{
		rides: make(map[string]*domain.Ride),
	}
}

// AddRide adds a ride to the mock repository.
func (m *MockRideRepository) AddRide(ride *domain.Ride) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rides[ride.ID] = ride
}

func (m *MockRideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rides[ride.ID] = ride
	return nil
}

func (m *MockRideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ride, ok := m.rides[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	// Return a copy to avoid mutation issues.
	copy := *ride
	return &copy, nil
}

func (m *MockRideRepository) UpdateStatus(ctx context.Context, id string, from, to domain.RideStatus, completedAt time.Time, reason string) (bool, error) {
	atomic.AddInt32(&m.UpdateStatusCallCount, 1)
	if m.UpdateStatusError != nil {
		return false, m.UpdateStatusError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ride, ok := m.rides[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	if ride.Status != from {
		return false, nil
	}
	ride.Status = to
	if !completedAt.IsZero() {
		ride.CompletedAt = completedAt
	}
	if reason != "" {
		ride.CancelReason = reason
	}
	return true, nil
}

func (m *MockRideRepository) GetActiveByDriverID(ctx context.Context, driverID string) (*domain.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.rides {
		if r.DriverID == driverID && (r.Status == domain.RideStatusAccepted || r.Status == domain.RideStatusInProgress) {
			copy := *r
			return &copy, nil
		}
	}
	return nil, nil
}

func (m *MockRideRepository) ListByPassenger(ctx context.Context, passengerID string, limit int) ([]*domain.RideHistoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.RideHistoryEntry, 0)
	for _, r := range m.rides {
		if r.PassengerID != passengerID {
			continue
		}
		copy := *r
		result = append(result, &domain.RideHistoryEntry{Ride: &copy})
		if len(result) == limit {
			break
		}
	}
	return result, nil
}

func (m *MockRideRepository) ListInProgress(ctx context.Context) ([]*domain.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Ride, 0)
	for _, r := range m.rides {
		if r.Status == domain.RideStatusInProgress {
			copy := *r
			result = append(result, &copy)
		}
	}
	return result, nil
}

func (m *MockRideRepository) CountByPassenger(ctx context.Context, passengerID string) (int, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var total, completed int
	for _, r := range m.rides {
		if r.PassengerID != passengerID {
			continue
		}
		total++
		if r.Status == domain.RideStatusCompleted {
			completed++
		}
	}
	return total, completed, nil
}

func (m *MockRideRepository) ListRequestedBefore(ctx context.Context, cutoff time.Time) ([]*domain.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Ride, 0)
	for _, r := range m.rides {
		if r.Status == domain.RideStatusRequested && r.CreatedAt.Before(cutoff) {
			copy := *r
			result = append(result, &copy)
		}
	}
	return result, nil
}

// GetRide returns the ride by ID (for test assertions).
func (m *MockRideRepository) GetRide(id string) *domain.Ride {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rides[id]
}

// CountRides returns the number of rides.
func (m *MockRideRepository) CountRides() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rides)
}

// ──────────────────────────────────────────────
// MOCK PAYMENT REPOSITORY
// ──────────────────────────────────────────────

// MockPaymentRepository is a mock implementation of PaymentRepository.
type MockPaymentRepository struct {
	mu       sync.RWMutex
	payments map[string]*domain.Payment

	// RideDrivers maps ride id to driver id for earnings queries.
	RideDrivers map[string]string

	// Counters for verification
	CreateCallCount int32
	SettleCallCount int32

	// Error injection
	CreateError error
	SettleError error
}

// NewMockPaymentRepository creates a new mock payment repository.
func NewMockPaymentRepository() *MockPaymentRepository {
	return &MockPaymentRepository{
		payments: make(map[string]*domain.Payment),
	}
}

// AddPayment adds a payment to the mock repository.
func (m *MockPaymentRepository) AddPayment(payment *domain.Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[payment.ID] = payment
}

func (m *MockPaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[payment.ID] = payment
	return nil
}

func (m *MockPaymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	payment, ok := m.payments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *payment
	return &copy, nil
}

func (m *MockPaymentRepository) GetByRideID(ctx context.Context, rideID string) (*domain.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.payments {
		if p.RideID == rideID {
			copy := *p
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockPaymentRepository) GetByChargeIntentID(ctx context.Context, intentID string) (*domain.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.payments {
		if p.ChargeIntentID == intentID {
			copy := *p
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockPaymentRepository) SettleIfPending(ctx context.Context, id string, status domain.PaymentStatus, completedAt time.Time) (bool, error) {
	atomic.AddInt32(&m.SettleCallCount, 1)
	if m.SettleError != nil {
		return false, m.SettleError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	payment, ok := m.payments[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	if payment.Status != domain.PaymentStatusPending {
		return false, nil
	}
	payment.Status = status
	payment.CompletedAt = completedAt
	return true, nil
}

func (m *MockPaymentRepository) SumCompletedByDriver(ctx context.Context, driverID string, since time.Time) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var total float64
	for _, p := range m.payments {
		if p.Status != domain.PaymentStatusCompleted {
			continue
		}
		if m.RideDrivers != nil && m.RideDrivers[p.RideID] != driverID {
			continue
		}
		if p.CompletedAt.IsZero() || p.CompletedAt.Before(since) {
			continue
		}
		total += p.Amount
	}
	return total, nil
}

func (m *MockPaymentRepository) SumCompletedByPassenger(ctx context.Context, passengerID string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var total float64
	for _, p := range m.payments {
		if p.PassengerID == passengerID && p.Status == domain.PaymentStatusCompleted {
			total += p.Amount
		}
	}
	return total, nil
}

// GetPayment returns the payment by ID (for test assertions).
func (m *MockPaymentRepository) GetPayment(id string) *domain.Payment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.payments[id]
}

// ──────────────────────────────────────────────
// MOCK USER REPOSITORY
// ──────────────────────────────────────────────

// MockUserRepository is a mock implementation of UserRepository.
type MockUserRepository struct {
	mu    sync.RWMutex
	users map[string]*domain.User

	// Error injection
	CreateError error
}

// NewMockUserRepository creates a new mock user repository.
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		users: make(map[string]*domain.User),
	}
}

// AddUser adds a user to the mock repository.
func (m *MockUserRepository) AddUser(user *domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
	return nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *user
	return &copy, nil
}

func (m *MockUserRepository) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Phone == phone {
			copy := *u
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email == email {
			copy := *u
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

// ──────────────────────────────────────────────
// MOCK GATEWAYS
// ──────────────────────────────────────────────

// MockPaymentGateway is a mock payment processor.
type MockPaymentGateway struct {
	// Counters for verification
	CustomerCallCount int32
	IntentCallCount   int32
	LinkCallCount     int32

	// Error injection
	CustomerError error
	IntentError   error
	LinkError     error
}

// NewMockPaymentGateway creates a new mock payment gateway.
func NewMockPaymentGateway() *MockPaymentGateway {
	return &MockPaymentGateway{}
}

func (m *MockPaymentGateway) CreateCustomer(ctx context.Context, name, email, phone string) (string, error) {
	atomic.AddInt32(&m.CustomerCallCount, 1)
	if m.CustomerError != nil {
		return "", m.CustomerError
	}
	return "cus_test_" + phone, nil
}

func (m *MockPaymentGateway) CreateChargeIntent(ctx context.Context, customerRef string, amountMinorUnits int64, currency string, metadata map[string]string) (string, error) {
	n := atomic.AddInt32(&m.IntentCallCount, 1)
	if m.IntentError != nil {
		return "", m.IntentError
	}
	return "pi_test_" + strconv.Itoa(int(n)), nil
}

func (m *MockPaymentGateway) CreatePaymentLink(ctx context.Context, intentID string) (string, error) {
	atomic.AddInt32(&m.LinkCallCount, 1)
	if m.LinkError != nil {
		return "", m.LinkError
	}
	return "https://pay.test/" + intentID, nil
}

// MockMessagingGateway records outbound messages.
type MockMessagingGateway struct {
	mu       sync.Mutex
	messages []SentMessage

	// Error injection
	SendError error
}

// SentMessage is one recorded outbound message.
type SentMessage struct {
	To   string
	Body string
}

// NewMockMessagingGateway creates a new mock messaging gateway.
func NewMockMessagingGateway() *MockMessagingGateway {
	return &MockMessagingGateway{}
}

func (m *MockMessagingGateway) SendMessage(ctx context.Context, toPhone, body string) error {
	if m.SendError != nil {
		return m.SendError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, SentMessage{To: toPhone, Body: body})
	return nil
}

// Messages returns all recorded messages.
func (m *MockMessagingGateway) Messages() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentMessage, len(m.messages))
	copy(out, m.messages)
	return out
}

// ──────────────────────────────────────────────
// MOCK LOCK STORE
// ──────────────────────────────────────────────

// MockLockStore is an in-memory implementation of the dispatch lock.
type MockLockStore struct {
	mu    sync.Mutex
	locks map[string]bool

	// Counters for verification
	AcquireCallCount int32
	ReleaseCallCount int32
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{
		locks: make(map[string]bool),
	}
}

func (m *MockLockStore) AcquireDriverLock(ctx context.Context, driverID string, ttl time.Duration) (bool, error) {
	atomic.AddInt32(&m.AcquireCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[driverID] {
		return false, nil
	}
	m.locks[driverID] = true
	return true, nil
}

func (m *MockLockStore) ReleaseDriverLock(ctx context.Context, driverID string) error {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, driverID)
	return nil
}

// Held reports whether the driver lock is currently taken (for test
// assertions).
func (m *MockLockStore) Held(driverID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locks[driverID]
}
