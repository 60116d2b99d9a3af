package domain

import "time"

// RideStatus represents the current status of a ride.
type RideStatus string

const (
	RideStatusRequested  RideStatus = "REQUESTED"
	RideStatusAccepted   RideStatus = "ACCEPTED"
	RideStatusInProgress RideStatus = "IN_PROGRESS"
	RideStatusCompleted  RideStatus = "COMPLETED"
	RideStatusCancelled  RideStatus = "CANCELLED"
)

// IsTerminal reports whether no further transitions are permitted.
func (s RideStatus) IsTerminal() bool {
	return s == RideStatusCompleted || s == RideStatusCancelled
}

// Ride represents a ride in the system. A ride exclusively owns at most
// one payment, created alongside it at match time. Rides are never
// deleted; terminal rides are retained as history.
type Ride struct {
	ID           string
	PassengerID  string
	DriverID     string // empty until matched
	PickupLat    float64
	PickupLng    float64
	DropoffLat   float64
	DropoffLng   float64
	Fare         float64
	Status       RideStatus
	CreatedAt    time.Time
	CompletedAt  time.Time // zero until terminal
	CancelReason string
}

// RideHistoryEntry pairs a ride with its payment (if any) for history listings.
type RideHistoryEntry struct {
	Ride    *Ride
	Payment *Payment
}
