package service

import "errors"

var (
	// ErrInvalidTransition is returned when a ride transition does not
	// follow a legal edge of the state machine.
	ErrInvalidTransition = errors.New("invalid ride transition")

	// ErrForbidden is returned when the acting user is not authorized
	// for the requested transition.
	ErrForbidden = errors.New("actor not authorized for this action")

	// ErrDriverUnavailable is returned when booking a driver that
	// already holds an active ride or is marked unavailable.
	ErrDriverUnavailable = errors.New("driver unavailable")

	// ErrNoDriverAvailable is returned when no driver can be matched
	// within the search radius.
	ErrNoDriverAvailable = errors.New("no driver available")

	// ErrPaymentNotConfirmed is returned when a ride attempts to move to
	// IN_PROGRESS before its payment is completed.
	ErrPaymentNotConfirmed = errors.New("payment not confirmed")

	// ErrInvalidCoordinates is returned for out-of-range latitude or
	// longitude values.
	ErrInvalidCoordinates = errors.New("invalid coordinates")

	// ErrGatewayUnavailable wraps payment or messaging provider
	// failures. The core surfaces it without retrying; retry policy
	// belongs to the gateway adapter.
	ErrGatewayUnavailable = errors.New("gateway unavailable")

	// ErrInvalidPassengerID is returned when a passenger id is empty.
	ErrInvalidPassengerID = errors.New("invalid passenger id")

	// ErrInvalidDriverID is returned when a driver id is empty.
	ErrInvalidDriverID = errors.New("invalid driver id")

	// ErrInvalidRideID is returned when a ride id is empty.
	ErrInvalidRideID = errors.New("invalid ride id")

	// ErrInvalidFareAmount is returned when a computed or stored fare is
	// negative.
	ErrInvalidFareAmount = errors.New("invalid fare amount")

	// ErrInvalidCredentials is returned when login fails.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidPhoneNumber is returned for phone numbers not in E.164 form.
	ErrInvalidPhoneNumber = errors.New("invalid phone number")

	// ErrInvalidEmail is returned for malformed email addresses.
	ErrInvalidEmail = errors.New("invalid email address")

	// ErrWeakPassword is returned when a password fails the strength rules.
	ErrWeakPassword = errors.New("password does not meet strength requirements")

	// ErrAlreadyRegistered is returned when a phone or email is taken.
	ErrAlreadyRegistered = errors.New("phone or email already registered")
)
