package domain

import "time"

// User represents a passenger in the system.
type User struct {
	ID           string
	Name         string
	Email        string
	Phone        string // E.164
	PasswordHash string
	CustomerRef  string // payment-gateway customer id
	CreatedAt    time.Time
}

// UserStats summarizes a passenger's ride activity. TotalSpent counts
// completed payments only.
type UserStats struct {
	TotalRides     int
	CompletedRides int
	TotalSpent     float64
}
