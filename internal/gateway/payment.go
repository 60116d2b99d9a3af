// Package gateway holds the narrow interfaces to external collaborators
// (payment processor, messaging provider) and their implementations.
// Retry policy lives here, never in the core services.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// PaymentGateway abstracts the external payment processor. A charge
// intent is a gateway-side object representing an authorized but not
// yet settled charge; settlement is reported back via webhook.
type PaymentGateway interface {
	// CreateCustomer registers a customer with the processor and returns
	// its reference id.
	CreateCustomer(ctx context.Context, name, email, phone string) (string, error)

	// CreateChargeIntent creates a charge intent for the given amount in
	// currency minor units and returns the intent id.
	CreateChargeIntent(ctx context.Context, customerRef string, amountMinorUnits int64, currency string, metadata map[string]string) (string, error)

	// CreatePaymentLink returns a URL the passenger can open to
	// authorize the charge intent.
	CreatePaymentLink(ctx context.Context, intentID string) (string, error)
}

// StripeGateway talks to the Stripe REST API over plain HTTP.
type StripeGateway struct {
	secretKey string
	baseURL   string
	client    *http.Client
}

// NewStripeGateway creates a Stripe-backed payment gateway.
func NewStripeGateway(secretKey string) *StripeGateway {
	return &StripeGateway{
		secretKey: secretKey,
		baseURL:   "https://api.stripe.com/v1",
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

var _ PaymentGateway = (*StripeGateway)(nil)

// CreateCustomer registers a customer with Stripe.
func (g *StripeGateway) CreateCustomer(ctx context.Context, name, email, phone string) (string, error) {
	form := url.Values{}
	form.Set("name", name)
	form.Set("email", email)
	form.Set("phone", phone)

	resp, err := g.post(ctx, "/customers", form)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

// CreateChargeIntent creates a payment intent.
func (g *StripeGateway) CreateChargeIntent(ctx context.Context, customerRef string, amountMinorUnits int64, currency string, metadata map[string]string) (string, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amountMinorUnits, 10))
	form.Set("currency", currency)
	if customerRef != "" {
		form.Set("customer", customerRef)
	}
	for k, v := range metadata {
		form.Set(fmt.Sprintf("metadata[%s]", k), v)
	}

	resp, err := g.post(ctx, "/payment_intents", form)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

// CreatePaymentLink creates a hosted payment page for the intent.
func (g *StripeGateway) CreatePaymentLink(ctx context.Context, intentID string) (string, error) {
	form := url.Values{}
	form.Set("payment_intent", intentID)

	resp, err := g.post(ctx, "/payment_links", form)
	if err != nil {
		return "", err
	}
	return resp.URL, nil
}

type stripeObject struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func (g *StripeGateway) post(ctx context.Context, path string, form url.Values) (*stripeObject, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+g.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	httpResp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	if httpResp.StatusCode >= 400 {
		return nil, fmt.Errorf("stripe %s: status %d: %s", path, httpResp.StatusCode, body)
	}

	var obj stripeObject
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, err
	}
	return &obj, nil
}

// StubPaymentGateway is a log-backed gateway used when no processor
// credentials are configured, and in tests. Intents always succeed.
type StubPaymentGateway struct{}

// NewStubPaymentGateway creates a stub payment gateway.
func NewStubPaymentGateway() *StubPaymentGateway {
	return &StubPaymentGateway{}
}

var _ PaymentGateway = (*StubPaymentGateway)(nil)

// CreateCustomer returns a generated customer reference.
func (g *StubPaymentGateway) CreateCustomer(ctx context.Context, name, email, phone string) (string, error) {
	ref := "cus_" + uuid.New().String()
	logrus.WithFields(logrus.Fields{"customer_ref": ref, "email": email}).Debug("stub gateway: customer created")
	return ref, nil
}

// CreateChargeIntent returns a generated intent id.
func (g *StubPaymentGateway) CreateChargeIntent(ctx context.Context, customerRef string, amountMinorUnits int64, currency string, metadata map[string]string) (string, error) {
	intentID := "pi_" + uuid.New().String()
	logrus.WithFields(logrus.Fields{
		"intent_id": intentID,
		"customer":  customerRef,
		"amount":    amountMinorUnits,
		"currency":  currency,
	}).Debug("stub gateway: charge intent created")
	return intentID, nil
}

// CreatePaymentLink returns a placeholder URL for the intent.
func (g *StubPaymentGateway) CreatePaymentLink(ctx context.Context, intentID string) (string, error) {
	return "https://pay.example.com/" + intentID, nil
}
