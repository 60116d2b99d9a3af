package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"ridelink/internal/domain"
	"ridelink/internal/gateway"
	"ridelink/internal/repository"
)

// Notifier turns ride lifecycle events into text messages to the
// affected parties. Delivery failures are logged, never propagated:
// notifications must not fail the operation that triggered them.
type Notifier struct {
	messages   gateway.MessagingGateway
	userRepo   repository.UserRepository
	driverRepo repository.DriverRepository
}

// NewNotifier creates a new Notifier.
func NewNotifier(
	messages gateway.MessagingGateway,
	userRepo repository.UserRepository,
	driverRepo repository.DriverRepository,
) *Notifier {
	return &Notifier{
		messages:   messages,
		userRepo:   userRepo,
		driverRepo: driverRepo,
	}
}

// DriverRideRequested tells the matched driver about a new ride and how
// to accept it.
func (n *Notifier) DriverRideRequested(ctx context.Context, driver *domain.Driver, ride *domain.Ride) error {
	body := fmt.Sprintf(
		"New ride request!\nPickup: %.4f, %.4f\nDestination: %.4f, %.4f\nFare: $%.2f\nReply 'accept %s' to accept this ride",
		ride.PickupLat, ride.PickupLng,
		ride.DropoffLat, ride.DropoffLng,
		ride.Fare, ride.ID,
	)
	return n.send(ctx, driver.Phone, body)
}

// PassengerRideAccepted tells the passenger the ride was accepted and
// where to authorize payment.
func (n *Notifier) PassengerRideAccepted(ctx context.Context, ride *domain.Ride, paymentLink string) error {
	phone, err := n.passengerPhone(ctx, ride)
	if err != nil {
		return err
	}

	body := "Your ride has been accepted!"
	if paymentLink != "" {
		body += " Please complete the payment: " + paymentLink
	}
	return n.send(ctx, phone, body)
}

// PassengerRideStarted tells the passenger the trip is underway.
func (n *Notifier) PassengerRideStarted(ctx context.Context, ride *domain.Ride) error {
	phone, err := n.passengerPhone(ctx, ride)
	if err != nil {
		return err
	}
	return n.send(ctx, phone, "Your trip has started. Enjoy your ride!")
}

// RideCompleted tells both parties the trip is finished.
func (n *Notifier) RideCompleted(ctx context.Context, ride *domain.Ride) error {
	n.toBoth(ctx, ride,
		fmt.Sprintf("Your trip is complete. Total fare: $%.2f. Thanks for riding with us!", ride.Fare),
		"Trip completed. You are back in the matching pool.",
	)
	return nil
}

// RideCancelled tells the party that did not cancel.
func (n *Notifier) RideCancelled(ctx context.Context, ride *domain.Ride, cancelledBy string) error {
	if cancelledBy == ride.PassengerID {
		if ride.DriverID == "" {
			return nil
		}
		phone, err := n.driverPhone(ctx, ride)
		if err != nil {
			return err
		}
		return n.send(ctx, phone, "The passenger has cancelled the ride.")
	}

	phone, err := n.passengerPhone(ctx, ride)
	if err != nil {
		return err
	}
	return n.send(ctx, phone, "The driver has cancelled the ride. Send another request to be rematched.")
}

// PaymentSettled tells both parties about a payment outcome.
func (n *Notifier) PaymentSettled(ctx context.Context, ride *domain.Ride, payment *domain.Payment) error {
	if payment.Status == domain.PaymentStatusCompleted {
		n.toBoth(ctx, ride,
			"Your payment has been processed successfully!",
			fmt.Sprintf("Payment of $%.2f has been received for the ride.", payment.Amount),
		)
		return nil
	}

	phone, err := n.passengerPhone(ctx, ride)
	if err != nil {
		return err
	}
	return n.send(ctx, phone, fmt.Sprintf("Payment of $%.2f failed. Please try again.", payment.Amount))
}

func (n *Notifier) toBoth(ctx context.Context, ride *domain.Ride, passengerBody, driverBody string) {
	if phone, err := n.passengerPhone(ctx, ride); err == nil {
		_ = n.send(ctx, phone, passengerBody)
	}
	if ride.DriverID != "" {
		if phone, err := n.driverPhone(ctx, ride); err == nil {
			_ = n.send(ctx, phone, driverBody)
		}
	}
}

func (n *Notifier) passengerPhone(ctx context.Context, ride *domain.Ride) (string, error) {
	user, err := n.userRepo.GetByID(ctx, ride.PassengerID)
	if err != nil {
		return "", err
	}
	return user.Phone, nil
}

func (n *Notifier) driverPhone(ctx context.Context, ride *domain.Ride) (string, error) {
	driver, err := n.driverRepo.GetByID(ctx, ride.DriverID)
	if err != nil {
		return "", err
	}
	return driver.Phone, nil
}

func (n *Notifier) send(ctx context.Context, phone, body string) error {
	if err := n.messages.SendMessage(ctx, phone, body); err != nil {
		logrus.WithField("to", phone).WithError(err).Warn("notification delivery failed")
		return err
	}
	return nil
}
