package service

import (
	"errors"
	"math"
	"testing"

	"ridelink/internal/geo"
)

func TestComputeFare_SamePointIsBaseFare(t *testing.T) {
	fare := NewFareCalculator(5.00, 1.50, "usd")
	p := geo.Point{Lat: 40.7128, Lng: -74.0060}

	got, err := fare.ComputeFare(p, p)
	if err != nil {
		t.Fatalf("compute failed: %v", err)
	}
	if got != 5.00 {
		t.Errorf("expected base fare 5.00, got %v", got)
	}
}

func TestComputeFare_GrowsWithDistance(t *testing.T) {
	fare := NewFareCalculator(5.00, 1.50, "usd")
	pickup := geo.Point{Lat: 40.7128, Lng: -74.0060}
	near := geo.Point{Lat: 40.7228, Lng: -74.0060}
	far := geo.Point{Lat: 40.8128, Lng: -74.0060}

	shortFare, err := fare.ComputeFare(pickup, near)
	if err != nil {
		t.Fatalf("compute failed: %v", err)
	}
	longFare, err := fare.ComputeFare(pickup, far)
	if err != nil {
		t.Fatalf("compute failed: %v", err)
	}
	if shortFare <= 5.00 {
		t.Errorf("short trip fare should exceed base, got %v", shortFare)
	}
	if longFare <= shortFare {
		t.Errorf("longer trip should cost more: %v <= %v", longFare, shortFare)
	}
}

func TestComputeFare_ManhattanScenario(t *testing.T) {
	fare := NewFareCalculator(5.00, 1.50, "usd")
	// Lower Manhattan to Times Square is about 5.2 km.
	pickup := geo.Point{Lat: 40.7128, Lng: -74.0060}
	dropoff := geo.Point{Lat: 40.7580, Lng: -73.9855}

	got, err := fare.ComputeFare(pickup, dropoff)
	if err != nil {
		t.Fatalf("compute failed: %v", err)
	}

	dist := geo.HaversineKm(pickup, dropoff)
	want := 5.00 + dist*1.50
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("expected %v, got %v", want, got)
	}
	if got < 12 || got > 14 {
		t.Errorf("fare outside plausible range: %v", got)
	}
}

func TestComputeFare_RejectsInvalidCoordinates(t *testing.T) {
	fare := NewFareCalculator(5.00, 1.50, "usd")
	good := geo.Point{Lat: 40.7128, Lng: -74.0060}
	bad := geo.Point{Lat: 95, Lng: -74.0060}

	if _, err := fare.ComputeFare(bad, good); !errors.Is(err, ErrInvalidCoordinates) {
		t.Errorf("expected ErrInvalidCoordinates for pickup, got %v", err)
	}
	if _, err := fare.ComputeFare(good, bad); !errors.Is(err, ErrInvalidCoordinates) {
		t.Errorf("expected ErrInvalidCoordinates for dropoff, got %v", err)
	}
}

func TestMinorUnits(t *testing.T) {
	cases := []struct {
		amount float64
		want   int64
	}{
		{5.00, 500},
		{14.60, 1460},
		{0.01, 1},
		{19.999, 2000},
	}
	for _, tc := range cases {
		if got := MinorUnits(tc.amount); got != tc.want {
			t.Errorf("MinorUnits(%v) = %d, want %d", tc.amount, got, tc.want)
		}
	}
}
