package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ridelink/internal/domain"
	"ridelink/internal/middleware"
	"ridelink/internal/repository"
	"ridelink/internal/service"
)

// RideHandler handles HTTP requests for rides.
type RideHandler struct {
	dispatch   *service.DispatchService
	ledger     *service.RideLedger
	identity   *service.IdentityService
	driverRepo repository.DriverRepository
}

// NewRideHandler creates a new RideHandler.
func NewRideHandler(
	dispatch *service.DispatchService,
	ledger *service.RideLedger,
	identity *service.IdentityService,
	driverRepo repository.DriverRepository,
) *RideHandler {
	return &RideHandler{
		dispatch:   dispatch,
		ledger:     ledger,
		identity:   identity,
		driverRepo: driverRepo,
	}
}

// resolveActor maps the authenticated account to a driver id when the
// account's phone belongs to a registered driver. Lifecycle transitions
// are authorized against the ride's driver id, so drivers acting over
// HTTP act under their driver identity.
func (h *RideHandler) resolveActor(c *gin.Context) string {
	userID := authedUserID(c)
	user, err := h.identity.UserByID(c.Request.Context(), userID)
	if err != nil {
		return userID
	}
	if driver, err := h.driverRepo.GetByPhone(c.Request.Context(), user.Phone); err == nil {
		return driver.ID
	}
	return userID
}

// RequestRideRequest is the HTTP request body for requesting a ride.
type RequestRideRequest struct {
	PickupLat  float64 `json:"pickup_lat"`
	PickupLng  float64 `json:"pickup_lng"`
	DropoffLat float64 `json:"dropoff_lat"`
	DropoffLng float64 `json:"dropoff_lng"`
}

// RideResponse is the HTTP representation of a ride.
type RideResponse struct {
	ID           string  `json:"id"`
	PassengerID  string  `json:"passenger_id"`
	DriverID     string  `json:"driver_id,omitempty"`
	PickupLat    float64 `json:"pickup_lat"`
	PickupLng    float64 `json:"pickup_lng"`
	DropoffLat   float64 `json:"dropoff_lat"`
	DropoffLng   float64 `json:"dropoff_lng"`
	Fare         float64 `json:"fare"`
	Status       string  `json:"status"`
	CreatedAt    string  `json:"created_at"`
	CompletedAt  string  `json:"completed_at,omitempty"`
	CancelReason string  `json:"cancel_reason,omitempty"`
}

// RequestRideResponse is the HTTP response for requesting a ride.
type RequestRideResponse struct {
	Ride          RideResponse `json:"ride"`
	DriverName    string       `json:"driver_name"`
	EstimatedFare float64      `json:"estimated_fare"`
	PaymentID     string       `json:"payment_id"`
}

func rideResponse(ride *domain.Ride) RideResponse {
	resp := RideResponse{
		ID:           ride.ID,
		PassengerID:  ride.PassengerID,
		DriverID:     ride.DriverID,
		PickupLat:    ride.PickupLat,
		PickupLng:    ride.PickupLng,
		DropoffLat:   ride.DropoffLat,
		DropoffLng:   ride.DropoffLng,
		Fare:         ride.Fare,
		Status:       string(ride.Status),
		CreatedAt:    ride.CreatedAt.Format(time.RFC3339),
		CancelReason: ride.CancelReason,
	}
	if !ride.CompletedAt.IsZero() {
		resp.CompletedAt = ride.CompletedAt.Format(time.RFC3339)
	}
	return resp
}

// authedUserID returns the user id stored by the auth middleware.
func authedUserID(c *gin.Context) string {
	return c.GetString(middleware.ContextUserIDKey)
}

// RequestRide handles POST /v1/rides
func (h *RideHandler) RequestRide(c *gin.Context) {
	var req RequestRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	result, err := h.dispatch.RequestRide(c.Request.Context(), service.RequestRideParams{
		PassengerID: authedUserID(c),
		Pickup:      geoPoint(req.PickupLat, req.PickupLng),
		Dropoff:     geoPoint(req.DropoffLat, req.DropoffLng),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, RequestRideResponse{
		Ride:          rideResponse(result.Ride),
		DriverName:    result.Driver.Name,
		EstimatedFare: result.EstimatedFare,
		PaymentID:     result.Payment.ID,
	})
}

// ListActive handles GET /v1/rides
func (h *RideHandler) ListActive(c *gin.Context) {
	rides, err := h.ledger.ListActiveRides(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]RideResponse, 0, len(rides))
	for _, ride := range rides {
		out = append(out, rideResponse(ride))
	}
	respondJSON(c, http.StatusOK, gin.H{"rides": out})
}

// GetRide handles GET /v1/rides/:id
func (h *RideHandler) GetRide(c *gin.Context) {
	ride, err := h.ledger.GetRide(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, rideResponse(ride))
}

// AcceptRide handles POST /v1/rides/:id/accept
func (h *RideHandler) AcceptRide(c *gin.Context) {
	ride, err := h.dispatch.AcceptRide(c.Request.Context(), h.resolveActor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, rideResponse(ride))
}

// StartRide handles POST /v1/rides/:id/start
func (h *RideHandler) StartRide(c *gin.Context) {
	ride, err := h.dispatch.StartRide(c.Request.Context(), h.resolveActor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, rideResponse(ride))
}

// CompleteRide handles POST /v1/rides/:id/complete
func (h *RideHandler) CompleteRide(c *gin.Context) {
	ride, err := h.dispatch.CompleteRide(c.Request.Context(), h.resolveActor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, rideResponse(ride))
}

// CancelRide handles POST /v1/rides/:id/cancel
func (h *RideHandler) CancelRide(c *gin.Context) {
	ride, err := h.dispatch.CancelRide(c.Request.Context(), h.resolveActor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, rideResponse(ride))
}
