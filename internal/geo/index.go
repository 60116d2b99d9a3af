package geo

import (
	"context"
	"errors"
	"time"

	"ridelink/internal/domain"
	"ridelink/internal/repository"
)

// ErrNoDriverInRange is returned when no available driver qualifies
// within the search radius.
var ErrNoDriverInRange = errors.New("no driver within search radius")

// Index answers nearest-available-driver queries and records driver
// positions. Implementations may be swapped for a spatial index without
// touching the dispatch or ledger layers.
type Index interface {
	// FindNearest returns the available driver closest to p whose
	// distance is at most maxRadiusKm, skipping any ids in exclude.
	// Ties are broken by lowest driver id for determinism. Returns
	// ErrNoDriverInRange if no candidate qualifies.
	FindNearest(ctx context.Context, p Point, maxRadiusKm float64, exclude []string) (*domain.Driver, error)

	// UpdatePosition overwrites a driver's stored coordinates and
	// refreshes its position timestamp. Returns repository.ErrNotFound
	// for an unknown driver id.
	UpdatePosition(ctx context.Context, driverID string, p Point) error
}

// DriverIndex is a repository-backed Index that scans every available
// driver and computes great-circle distances. The linear scan is fine
// for a regional, bounded driver pool.
type DriverIndex struct {
	driverRepo repository.DriverRepository
}

// NewDriverIndex creates a new DriverIndex.
func NewDriverIndex(driverRepo repository.DriverRepository) *DriverIndex {
	return &DriverIndex{driverRepo: driverRepo}
}

var _ Index = (*DriverIndex)(nil)

// FindNearest scans available drivers and returns the closest within radius.
func (i *DriverIndex) FindNearest(ctx context.Context, p Point, maxRadiusKm float64, exclude []string) (*domain.Driver, error) {
	drivers, err := i.driverRepo.GetAvailable(ctx)
	if err != nil {
		return nil, err
	}

	excluded := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		excluded[id] = struct{}{}
	}

	var nearest *domain.Driver
	var nearestDist float64

	for _, d := range drivers {
		if _, skip := excluded[d.ID]; skip {
			continue
		}
		if !d.HasPosition() {
			continue
		}

		dist := HaversineKm(p, Point{Lat: d.Lat, Lng: d.Lng})
		if dist > maxRadiusKm {
			continue
		}

		if nearest == nil || dist < nearestDist || (dist == nearestDist && d.ID < nearest.ID) {
			nearest = d
			nearestDist = dist
		}
	}

	if nearest == nil {
		return nil, ErrNoDriverInRange
	}
	return nearest, nil
}

// UpdatePosition overwrites the driver's coordinates in the repository.
func (i *DriverIndex) UpdatePosition(ctx context.Context, driverID string, p Point) error {
	return i.driverRepo.UpdatePosition(ctx, driverID, p.Lat, p.Lng, time.Now())
}
