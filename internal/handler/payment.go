package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ridelink/internal/service"
)

// PaymentHandler handles payment webhooks and queries.
type PaymentHandler struct {
	dispatch      *service.DispatchService
	ledger        *service.RideLedger
	webhookSecret string
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(dispatch *service.DispatchService, ledger *service.RideLedger, webhookSecret string) *PaymentHandler {
	return &PaymentHandler{
		dispatch:      dispatch,
		ledger:        ledger,
		webhookSecret: webhookSecret,
	}
}

// PaymentResponse is the HTTP representation of a payment.
type PaymentResponse struct {
	ID             string  `json:"id"`
	RideID         string  `json:"ride_id"`
	Amount         float64 `json:"amount"`
	Status         string  `json:"status"`
	ChargeIntentID string  `json:"charge_intent_id,omitempty"`
}

type webhookEvent struct {
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID string `json:"id"`
		} `json:"object"`
	} `json:"data"`
}

// Webhook handles POST /webhook/payments
func (h *PaymentHandler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unreadable payload"})
		return
	}

	if h.webhookSecret != "" {
		if err := verifySignature(payload, c.GetHeader("Stripe-Signature"), h.webhookSecret); err != nil {
			logrus.WithError(err).Warn("payment webhook signature rejected")
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid signature"})
			return
		}
	}

	var event webhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid payload"})
		return
	}

	var succeeded bool
	switch event.Type {
	case "payment_intent.succeeded":
		succeeded = true
	case "payment_intent.payment_failed":
		succeeded = false
	default:
		// Events we do not consume are acknowledged so the processor
		// stops retrying them.
		respondJSON(c, http.StatusOK, gin.H{"received": true})
		return
	}

	if _, err := h.dispatch.ConfirmPayment(c.Request.Context(), event.Data.Object.ID, succeeded); err != nil {
		// Unknown intent ids are acknowledged too; retrying will not
		// make them resolvable.
		logrus.WithFields(logrus.Fields{
			"intent_id": event.Data.Object.ID,
			"type":      event.Type,
		}).WithError(err).Warn("payment webhook not applied")
	}

	respondJSON(c, http.StatusOK, gin.H{"received": true})
}

// GetByRide handles GET /v1/rides/:id/payment
func (h *PaymentHandler) GetByRide(c *gin.Context) {
	payment, err := h.ledger.GetPaymentByRide(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, PaymentResponse{
		ID:             payment.ID,
		RideID:         payment.RideID,
		Amount:         payment.Amount,
		Status:         string(payment.Status),
		ChargeIntentID: payment.ChargeIntentID,
	})
}

// verifySignature checks a Stripe-style signature header: a timestamp
// and one or more v1 HMAC-SHA256 digests of "<timestamp>.<payload>".
func verifySignature(payload []byte, header, secret string) error {
	if header == "" {
		return fmt.Errorf("missing signature header")
	}

	var timestamp string
	var candidates []string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			candidates = append(candidates, kv[1])
		}
	}
	if timestamp == "" || len(candidates) == 0 {
		return fmt.Errorf("malformed signature header")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, candidate := range candidates {
		if hmac.Equal([]byte(candidate), []byte(expected)) {
			return nil
		}
	}
	return fmt.Errorf("no matching signature")
}
