package geo

import (
	"context"
	"errors"
	"testing"
	"time"

	"ridelink/internal/domain"
	"ridelink/internal/repository"
)

// fakeDriverRepo is a minimal in-memory DriverRepository for index tests.
type fakeDriverRepo struct {
	drivers []*domain.Driver
}

func (f *fakeDriverRepo) Create(ctx context.Context, driver *domain.Driver) error {
	f.drivers = append(f.drivers, driver)
	return nil
}

func (f *fakeDriverRepo) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	for _, d := range f.drivers {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeDriverRepo) GetByPhone(ctx context.Context, phone string) (*domain.Driver, error) {
	for _, d := range f.drivers {
		if d.Phone == phone {
			return d, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeDriverRepo) GetAvailable(ctx context.Context) ([]*domain.Driver, error) {
	out := make([]*domain.Driver, 0, len(f.drivers))
	for _, d := range f.drivers {
		if d.IsAvailable {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeDriverRepo) GetByIDForUpdate(ctx context.Context, id string) (*domain.Driver, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeDriverRepo) UpdatePosition(ctx context.Context, id string, lat, lng float64, at time.Time) error {
	d, err := f.GetByID(ctx, id)
	if err != nil {
		return err
	}
	d.Lat = lat
	d.Lng = lng
	d.LocationUpdatedAt = at
	return nil
}

func (f *fakeDriverRepo) MarkUnavailable(ctx context.Context, id string) (bool, error) {
	d, err := f.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if !d.IsAvailable {
		return false, nil
	}
	d.IsAvailable = false
	return true, nil
}

func (f *fakeDriverRepo) Release(ctx context.Context, id string) (bool, error) {
	d, err := f.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if d.IsAvailable {
		return false, nil
	}
	d.IsAvailable = true
	return true, nil
}

func driverAt(id string, lat, lng float64) *domain.Driver {
	return &domain.Driver{
		ID:                id,
		IsAvailable:       true,
		Lat:               lat,
		Lng:               lng,
		LocationUpdatedAt: time.Now(),
	}
}

func TestFindNearest_PicksCloserDriver(t *testing.T) {
	ctx := context.Background()
	pickup := Point{Lat: 40.7128, Lng: -74.0060}

	// ~2km north vs ~8km north of the pickup.
	repo := &fakeDriverRepo{drivers: []*domain.Driver{
		driverAt("far", 40.7848, -74.0060),
		driverAt("near", 40.7308, -74.0060),
	}}
	index := NewDriverIndex(repo)

	driver, err := index.FindNearest(ctx, pickup, 10, nil)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if driver.ID != "near" {
		t.Errorf("expected near, got %s", driver.ID)
	}
}

func TestFindNearest_RadiusCutoff(t *testing.T) {
	ctx := context.Background()
	pickup := Point{Lat: 40.7128, Lng: -74.0060}

	// ~8km away with a 5km radius.
	repo := &fakeDriverRepo{drivers: []*domain.Driver{
		driverAt("far", 40.7848, -74.0060),
	}}
	index := NewDriverIndex(repo)

	_, err := index.FindNearest(ctx, pickup, 5, nil)
	if !errors.Is(err, ErrNoDriverInRange) {
		t.Fatalf("expected ErrNoDriverInRange, got %v", err)
	}
}

func TestFindNearest_SkipsUnavailableAndPositionless(t *testing.T) {
	ctx := context.Background()
	pickup := Point{Lat: 40.7128, Lng: -74.0060}

	busy := driverAt("busy", 40.7138, -74.0060)
	busy.IsAvailable = false
	noPosition := &domain.Driver{ID: "silent", IsAvailable: true}

	repo := &fakeDriverRepo{drivers: []*domain.Driver{
		busy,
		noPosition,
		driverAt("ok", 40.7308, -74.0060),
	}}
	index := NewDriverIndex(repo)

	driver, err := index.FindNearest(ctx, pickup, 10, nil)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if driver.ID != "ok" {
		t.Errorf("expected ok, got %s", driver.ID)
	}
}

func TestFindNearest_TieBreaksByLowestID(t *testing.T) {
	ctx := context.Background()
	pickup := Point{Lat: 40.7128, Lng: -74.0060}

	// Two drivers at the identical position.
	repo := &fakeDriverRepo{drivers: []*domain.Driver{
		driverAt("driver-b", 40.7308, -74.0060),
		driverAt("driver-a", 40.7308, -74.0060),
	}}
	index := NewDriverIndex(repo)

	driver, err := index.FindNearest(ctx, pickup, 10, nil)
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if driver.ID != "driver-a" {
		t.Errorf("expected driver-a on tie, got %s", driver.ID)
	}
}

func TestFindNearest_HonorsExcludeList(t *testing.T) {
	ctx := context.Background()
	pickup := Point{Lat: 40.7128, Lng: -74.0060}

	repo := &fakeDriverRepo{drivers: []*domain.Driver{
		driverAt("near", 40.7308, -74.0060),
		driverAt("far", 40.7848, -74.0060),
	}}
	index := NewDriverIndex(repo)

	driver, err := index.FindNearest(ctx, pickup, 10, []string{"near"})
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if driver.ID != "far" {
		t.Errorf("expected far after exclusion, got %s", driver.ID)
	}

	if _, err := index.FindNearest(ctx, pickup, 10, []string{"near", "far"}); !errors.Is(err, ErrNoDriverInRange) {
		t.Errorf("expected ErrNoDriverInRange with full exclusion, got %v", err)
	}
}
