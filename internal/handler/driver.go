package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ridelink/internal/domain"
	"ridelink/internal/geo"
	"ridelink/internal/repository"
	"ridelink/internal/service"
)

// DriverHandler handles HTTP requests for drivers.
type DriverHandler struct {
	dispatch   *service.DispatchService
	ledger     *service.RideLedger
	driverRepo repository.DriverRepository
}

// NewDriverHandler creates a new DriverHandler.
func NewDriverHandler(
	dispatch *service.DispatchService,
	ledger *service.RideLedger,
	driverRepo repository.DriverRepository,
) *DriverHandler {
	return &DriverHandler{
		dispatch:   dispatch,
		ledger:     ledger,
		driverRepo: driverRepo,
	}
}

// RegisterDriverRequest is the HTTP request body for registering a driver.
type RegisterDriverRequest struct {
	Name  string `json:"name" binding:"required"`
	Phone string `json:"phone" binding:"required"`
}

// UpdateLocationRequest is the HTTP request body for a position update.
type UpdateLocationRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// DriverResponse is the HTTP representation of a driver.
type DriverResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Phone       string  `json:"phone"`
	Lat         float64 `json:"lat,omitempty"`
	Lng         float64 `json:"lng,omitempty"`
	IsAvailable bool    `json:"is_available"`
}

// EarningsResponse is the HTTP response for an earnings query.
type EarningsResponse struct {
	DriverID string  `json:"driver_id"`
	Since    string  `json:"since"`
	Total    float64 `json:"total"`
}

// RegisterDriver handles POST /v1/drivers/register
func (h *DriverHandler) RegisterDriver(c *gin.Context) {
	var req RegisterDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	driver := &domain.Driver{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Phone:       req.Phone,
		IsAvailable: true,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.driverRepo.Create(c.Request.Context(), driver); err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, DriverResponse{
		ID:          driver.ID,
		Name:        driver.Name,
		Phone:       driver.Phone,
		IsAvailable: driver.IsAvailable,
	})
}

// GetDriver handles GET /v1/drivers/:id
func (h *DriverHandler) GetDriver(c *gin.Context) {
	driver, err := h.driverRepo.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, DriverResponse{
		ID:          driver.ID,
		Name:        driver.Name,
		Phone:       driver.Phone,
		Lat:         driver.Lat,
		Lng:         driver.Lng,
		IsAvailable: driver.IsAvailable,
	})
}

// UpdateLocation handles POST /v1/drivers/:id/location
func (h *DriverHandler) UpdateLocation(c *gin.Context) {
	var req UpdateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	err := h.dispatch.UpdateDriverPosition(c.Request.Context(), c.Param("id"), geo.Point{Lat: req.Lat, Lng: req.Lng})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"status": "ok"})
}

// Earnings handles GET /v1/drivers/:id/earnings
func (h *DriverHandler) Earnings(c *gin.Context) {
	driverID := c.Param("id")

	since := time.Time{}
	if raw := c.Query("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid since timestamp"})
			return
		}
		since = parsed
	}

	total, err := h.ledger.GetDriverEarnings(c.Request.Context(), driverID, since)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, EarningsResponse{
		DriverID: driverID,
		Since:    since.Format(time.RFC3339),
		Total:    total,
	})
}
