package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"ridelink/internal/service"
)

// UserHandler handles HTTP requests for accounts.
type UserHandler struct {
	identity *service.IdentityService
	ledger   *service.RideLedger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(identity *service.IdentityService, ledger *service.RideLedger) *UserHandler {
	return &UserHandler{
		identity: identity,
		ledger:   ledger,
	}
}

// RegisterRequest is the HTTP request body for registering an account.
type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Phone    string `json:"phone" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginRequest is the HTTP request body for logging in.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UserResponse is the HTTP representation of an account.
type UserResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	CreatedAt string `json:"created_at"`
}

// LoginResponse is the HTTP response for a successful login.
type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// RideHistoryEntryResponse pairs a past ride with its payment outcome.
type RideHistoryEntryResponse struct {
	Ride          RideResponse `json:"ride"`
	PaymentStatus string       `json:"payment_status,omitempty"`
	PaymentAmount float64      `json:"payment_amount,omitempty"`
}

// UserStatsResponse summarizes an account's ride activity.
type UserStatsResponse struct {
	TotalRides     int     `json:"total_rides"`
	CompletedRides int     `json:"completed_rides"`
	TotalSpent     float64 `json:"total_spent"`
}

// Register handles POST /v1/users/register
func (h *UserHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	user, err := h.identity.Register(c.Request.Context(), service.RegisterUserParams{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, UserResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Phone:     user.Phone,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
	})
}

// Login handles POST /v1/users/login
func (h *UserHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	token, user, err := h.identity.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, LoginResponse{
		Token: token,
		User: UserResponse{
			ID:        user.ID,
			Name:      user.Name,
			Email:     user.Email,
			Phone:     user.Phone,
			CreatedAt: user.CreatedAt.Format(time.RFC3339),
		},
	})
}

// Me handles GET /v1/users/me
func (h *UserHandler) Me(c *gin.Context) {
	user, err := h.identity.UserByID(c.Request.Context(), authedUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, UserResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Phone:     user.Phone,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
	})
}

// RideHistory handles GET /v1/users/me/rides
func (h *UserHandler) RideHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	entries, err := h.ledger.GetUserRideHistory(c.Request.Context(), authedUserID(c), limit)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]RideHistoryEntryResponse, 0, len(entries))
	for _, entry := range entries {
		item := RideHistoryEntryResponse{Ride: rideResponse(entry.Ride)}
		if entry.Payment != nil {
			item.PaymentStatus = string(entry.Payment.Status)
			item.PaymentAmount = entry.Payment.Amount
		}
		out = append(out, item)
	}

	respondJSON(c, http.StatusOK, gin.H{"rides": out})
}

// Stats handles GET /v1/users/me/stats
func (h *UserHandler) Stats(c *gin.Context) {
	stats, err := h.ledger.GetUserStats(c.Request.Context(), authedUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, UserStatsResponse{
		TotalRides:     stats.TotalRides,
		CompletedRides: stats.CompletedRides,
		TotalSpent:     stats.TotalSpent,
	})
}
