package service

import (
	"math"

	"ridelink/internal/geo"
)

// FareCalculator prices a trip from its pickup and dropoff coordinates.
// Pure: same inputs always produce the same fare.
type FareCalculator struct {
	baseFare  float64
	ratePerKm float64
	currency  string
}

// NewFareCalculator creates a FareCalculator. baseFare and ratePerKm
// must be non-negative.
func NewFareCalculator(baseFare, ratePerKm float64, currency string) *FareCalculator {
	return &FareCalculator{
		baseFare:  baseFare,
		ratePerKm: ratePerKm,
		currency:  currency,
	}
}

// ComputeFare returns baseFare + distanceKm * ratePerKm, where
// distanceKm is the great-circle distance between pickup and dropoff.
func (f *FareCalculator) ComputeFare(pickup, dropoff geo.Point) (float64, error) {
	if !pickup.Valid() || !dropoff.Valid() {
		return 0, ErrInvalidCoordinates
	}

	distanceKm := geo.HaversineKm(pickup, dropoff)
	return f.baseFare + distanceKm*f.ratePerKm, nil
}

// Currency returns the ISO currency code fares are prices in.
func (f *FareCalculator) Currency() string {
	return f.currency
}

// MinorUnits converts a fare to currency minor units (cents) for the
// payment gateway.
func MinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
