package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ridelink/internal/geo"
	"ridelink/internal/repository"
	"ridelink/internal/service"
)

const whatsappHelpText = "Commands:\n" +
	"ride <lat>,<lng> to <lat>,<lng> - request a ride\n" +
	"accept <ride-id> - accept a ride (drivers)\n" +
	"start <ride-id> - start the trip (drivers)\n" +
	"complete <ride-id> - finish the trip (drivers)\n" +
	"cancel <ride-id> - cancel a ride\n" +
	"status <ride-id> - check a ride"

// WhatsAppHandler handles inbound WhatsApp messages relayed by Twilio.
type WhatsAppHandler struct {
	dispatch   *service.DispatchService
	identity   *service.IdentityService
	driverRepo repository.DriverRepository
}

// NewWhatsAppHandler creates a new WhatsAppHandler.
func NewWhatsAppHandler(
	dispatch *service.DispatchService,
	identity *service.IdentityService,
	driverRepo repository.DriverRepository,
) *WhatsAppHandler {
	return &WhatsAppHandler{
		dispatch:   dispatch,
		identity:   identity,
		driverRepo: driverRepo,
	}
}

type whatsAppCommand struct {
	Action  string
	RideID  string
	Pickup  geo.Point
	Dropoff geo.Point
}

var errUnknownCommand = fmt.Errorf("unknown command")

// parseWhatsAppCommand interprets a message body as a ride command.
// Supported forms: "ride <lat>,<lng> to <lat>,<lng>" and
// "<accept|start|complete|cancel|status> <ride-id>". The command token
// is case-insensitive; arguments are kept verbatim so ride ids survive
// untouched.
func parseWhatsAppCommand(body string) (whatsAppCommand, error) {
	fields := strings.Fields(strings.TrimSpace(body))
	if len(fields) == 0 {
		return whatsAppCommand{}, errUnknownCommand
	}

	switch strings.ToLower(fields[0]) {
	case "ride":
		// "ride lat,lng to lat,lng"
		if len(fields) != 4 || !strings.EqualFold(fields[2], "to") {
			return whatsAppCommand{}, fmt.Errorf("usage: ride <lat>,<lng> to <lat>,<lng>")
		}
		pickup, err := parseCoordinatePair(fields[1])
		if err != nil {
			return whatsAppCommand{}, fmt.Errorf("invalid pickup location")
		}
		dropoff, err := parseCoordinatePair(fields[3])
		if err != nil {
			return whatsAppCommand{}, fmt.Errorf("invalid destination")
		}
		return whatsAppCommand{Action: "ride", Pickup: pickup, Dropoff: dropoff}, nil

	case "accept", "start", "complete", "cancel", "status":
		action := strings.ToLower(fields[0])
		if len(fields) != 2 {
			return whatsAppCommand{}, fmt.Errorf("usage: %s <ride-id>", action)
		}
		return whatsAppCommand{Action: action, RideID: fields[1]}, nil
	}

	return whatsAppCommand{}, errUnknownCommand
}

func parseCoordinatePair(raw string) (geo.Point, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return geo.Point{}, fmt.Errorf("expected lat,lng")
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return geo.Point{}, err
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return geo.Point{}, err
	}
	p := geo.Point{Lat: lat, Lng: lng}
	if !p.Valid() {
		return geo.Point{}, fmt.Errorf("coordinates out of range")
	}
	return p, nil
}

// Inbound handles POST /webhook/whatsapp. Twilio posts form-encoded
// fields and expects a TwiML response.
func (h *WhatsAppHandler) Inbound(c *gin.Context) {
	from := strings.TrimPrefix(c.PostForm("From"), "whatsapp:")
	body := c.PostForm("Body")

	reply := h.handleMessage(c, from, body)
	c.Data(http.StatusOK, "application/xml", []byte(twiml(reply)))
}

func (h *WhatsAppHandler) handleMessage(c *gin.Context, from, body string) string {
	cmd, err := parseWhatsAppCommand(body)
	if err != nil {
		if err == errUnknownCommand {
			return whatsappHelpText
		}
		return err.Error()
	}

	ctx := c.Request.Context()

	switch cmd.Action {
	case "ride":
		user, err := h.identity.UserByPhone(ctx, from)
		if err != nil {
			return "This number is not registered. Sign up first to request rides."
		}
		result, err := h.dispatch.RequestRide(ctx, service.RequestRideParams{
			PassengerID: user.ID,
			Pickup:      cmd.Pickup,
			Dropoff:     cmd.Dropoff,
		})
		if err != nil {
			return rideErrorReply(err)
		}
		return fmt.Sprintf(
			"Ride requested! %s is on the way.\nFare: $%.2f\nRide id: %s",
			result.Driver.Name, result.EstimatedFare, result.Ride.ID,
		)

	case "accept":
		driverID, err := h.actorID(c, from)
		if err != nil {
			return "This number is not registered."
		}
		if _, err := h.dispatch.AcceptRide(ctx, driverID, cmd.RideID); err != nil {
			return rideErrorReply(err)
		}
		return "Ride accepted. Head to the pickup point."

	case "start":
		driverID, err := h.actorID(c, from)
		if err != nil {
			return "This number is not registered."
		}
		if _, err := h.dispatch.StartRide(ctx, driverID, cmd.RideID); err != nil {
			return rideErrorReply(err)
		}
		return "Trip started."

	case "complete":
		driverID, err := h.actorID(c, from)
		if err != nil {
			return "This number is not registered."
		}
		if _, err := h.dispatch.CompleteRide(ctx, driverID, cmd.RideID); err != nil {
			return rideErrorReply(err)
		}
		return "Trip completed. Thanks for driving with us!"

	case "cancel":
		actorID, err := h.actorID(c, from)
		if err != nil {
			return "This number is not registered."
		}
		if _, err := h.dispatch.CancelRide(ctx, actorID, cmd.RideID); err != nil {
			return rideErrorReply(err)
		}
		return "Ride cancelled."

	case "status":
		ride, err := h.dispatch.GetRide(ctx, cmd.RideID)
		if err != nil {
			return rideErrorReply(err)
		}
		return fmt.Sprintf("Ride %s: %s (fare $%.2f)", ride.ID, ride.Status, ride.Fare)
	}

	return whatsappHelpText
}

// actorID resolves the sender to a driver id when the phone belongs to
// a driver, otherwise to a passenger account id.
func (h *WhatsAppHandler) actorID(c *gin.Context, phone string) (string, error) {
	ctx := c.Request.Context()

	driver, err := h.driverRepo.GetByPhone(ctx, phone)
	if err == nil {
		return driver.ID, nil
	}
	if err != repository.ErrNotFound {
		return "", err
	}

	user, err := h.identity.UserByPhone(ctx, phone)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

func rideErrorReply(err error) string {
	switch {
	case err == service.ErrNoDriverAvailable || err == geo.ErrNoDriverInRange:
		return "Sorry, no drivers are available nearby right now. Please try again soon."
	case err == service.ErrInvalidTransition:
		return "That ride is not in a state where this action is allowed."
	case err == service.ErrForbidden:
		return "You are not a party to that ride."
	case err == service.ErrPaymentNotConfirmed:
		return "Payment has not been confirmed yet. The trip cannot start."
	case err == repository.ErrNotFound:
		return "Ride not found. Check the ride id."
	default:
		logrus.WithError(err).Warn("whatsapp command failed")
		return "Something went wrong handling that command. Please try again."
	}
}

func twiml(message string) string {
	escaped := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
	).Replace(message)
	return `<?xml version="1.0" encoding="UTF-8"?><Response><Message>` + escaped + `</Message></Response>`
}
