package domain

import "time"

// PaymentStatus represents the current status of a payment.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
)

// Payment represents the payment owned by a ride. Amount and RideID are
// immutable once the payment is created; only Status and CompletedAt
// change, and only via gateway confirmation.
type Payment struct {
	ID             string
	RideID         string
	PassengerID    string
	Amount         float64
	ChargeIntentID string
	Status         PaymentStatus
	CreatedAt      time.Time
	CompletedAt    time.Time // zero until confirmed or failed
}
