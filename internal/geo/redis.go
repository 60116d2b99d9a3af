package geo

import (
	"context"
	"time"

	"ridelink/internal/domain"
	internalredis "ridelink/internal/redis"
	"ridelink/internal/repository"
)

// RedisIndex is an Index that answers radius queries from a Redis GEO
// set while keeping the driver repository as the source of truth for
// availability. Positions are written to both stores so the index
// survives a Redis flush.
type RedisIndex struct {
	locations  *internalredis.LocationStore
	driverRepo repository.DriverRepository
}

// NewRedisIndex creates a new RedisIndex.
func NewRedisIndex(locations *internalredis.LocationStore, driverRepo repository.DriverRepository) *RedisIndex {
	return &RedisIndex{locations: locations, driverRepo: driverRepo}
}

var _ Index = (*RedisIndex)(nil)

// FindNearest queries the GEO set nearest-first and returns the first
// candidate that is still available in the repository.
func (i *RedisIndex) FindNearest(ctx context.Context, p Point, maxRadiusKm float64, exclude []string) (*domain.Driver, error) {
	nearby, err := i.locations.FindNearby(ctx, p.Lat, p.Lng, maxRadiusKm)
	if err != nil {
		return nil, err
	}

	excluded := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		excluded[id] = struct{}{}
	}

	for _, loc := range nearby {
		if _, skip := excluded[loc.DriverID]; skip {
			continue
		}

		driver, err := i.driverRepo.GetByID(ctx, loc.DriverID)
		if err != nil {
			if err == repository.ErrNotFound {
				continue
			}
			return nil, err
		}
		if !driver.IsAvailable {
			continue
		}
		return driver, nil
	}

	return nil, ErrNoDriverInRange
}

// UpdatePosition writes the position to the repository and mirrors it
// into the GEO set.
func (i *RedisIndex) UpdatePosition(ctx context.Context, driverID string, p Point) error {
	if err := i.driverRepo.UpdatePosition(ctx, driverID, p.Lat, p.Lng, time.Now()); err != nil {
		return err
	}
	return i.locations.UpdateLocation(ctx, driverID, p.Lat, p.Lng)
}
