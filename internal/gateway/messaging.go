package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// MessagingGateway abstracts the text-message provider used to reach
// passengers and drivers.
type MessagingGateway interface {
	// SendMessage delivers body to the given E.164 phone number.
	SendMessage(ctx context.Context, toPhone, body string) error
}

// TwilioGateway sends WhatsApp messages through the Twilio REST API.
type TwilioGateway struct {
	accountSID string
	authToken  string
	fromNumber string // the WhatsApp sender, E.164
	baseURL    string
	client     *http.Client
}

// NewTwilioGateway creates a Twilio-backed messaging gateway.
func NewTwilioGateway(accountSID, authToken, fromNumber string) *TwilioGateway {
	return &TwilioGateway{
		accountSID: accountSID,
		authToken:  authToken,
		fromNumber: fromNumber,
		baseURL:    "https://api.twilio.com/2010-04-01",
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

var _ MessagingGateway = (*TwilioGateway)(nil)

// SendMessage posts a message to the Twilio Messages endpoint.
func (g *TwilioGateway) SendMessage(ctx context.Context, toPhone, body string) error {
	form := url.Values{}
	form.Set("From", "whatsapp:"+g.fromNumber)
	form.Set("To", "whatsapp:"+toPhone)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", g.baseURL, g.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth(g.accountSID, g.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("twilio send: status %d: %s", resp.StatusCode, msg)
	}
	return nil
}

// StubMessagingGateway logs messages instead of sending them. Used when
// no provider credentials are configured, and in tests.
type StubMessagingGateway struct{}

// NewStubMessagingGateway creates a stub messaging gateway.
func NewStubMessagingGateway() *StubMessagingGateway {
	return &StubMessagingGateway{}
}

var _ MessagingGateway = (*StubMessagingGateway)(nil)

// SendMessage logs the outbound message.
func (g *StubMessagingGateway) SendMessage(ctx context.Context, toPhone, body string) error {
	logrus.WithFields(logrus.Fields{"to": toPhone, "body": body}).Info("stub gateway: message")
	return nil
}
