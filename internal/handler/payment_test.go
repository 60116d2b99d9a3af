package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func signPayload(payload []byte, timestamp, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature_Valid(t *testing.T) {
	payload := []byte(`{"type":"payment_intent.succeeded"}`)
	sig := signPayload(payload, "1700000000", "whsec_test")
	header := "t=1700000000,v1=" + sig

	if err := verifySignature(payload, header, "whsec_test"); err != nil {
		t.Errorf("valid signature rejected: %v", err)
	}
}

func TestVerifySignature_MultipleCandidates(t *testing.T) {
	payload := []byte(`{}`)
	good := signPayload(payload, "1700000000", "whsec_test")
	header := "t=1700000000,v1=deadbeef,v1=" + good

	if err := verifySignature(payload, header, "whsec_test"); err != nil {
		t.Errorf("signature with stale candidate rejected: %v", err)
	}
}

func TestVerifySignature_Rejections(t *testing.T) {
	payload := []byte(`{}`)
	sig := signPayload(payload, "1700000000", "whsec_test")

	cases := []struct {
		name   string
		header string
		secret string
	}{
		{"missing header", "", "whsec_test"},
		{"no v1", "t=1700000000", "whsec_test"},
		{"no timestamp", "v1=" + sig, "whsec_test"},
		{"wrong secret", "t=1700000000,v1=" + sig, "whsec_other"},
		{"tampered payload timestamp", "t=1700000001,v1=" + sig, "whsec_test"},
	}
	for _, tc := range cases {
		if err := verifySignature(payload, tc.header, tc.secret); err == nil {
			t.Errorf("%s: expected rejection", tc.name)
		}
	}
}

func TestMapErrorToHTTPStatus_Defaults(t *testing.T) {
	if code := mapErrorToHTTPStatus(errDummy{}); code != 500 {
		t.Errorf("unknown error mapped to %d", code)
	}
}

type errDummy struct{}

func (errDummy) Error() string { return "boom" }
