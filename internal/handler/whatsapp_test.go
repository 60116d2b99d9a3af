package handler

import (
	"strings"
	"testing"
)

func TestParseWhatsAppCommand_RideRequest(t *testing.T) {
	cmd, err := parseWhatsAppCommand("ride 40.7128,-74.0060 to 40.7589,-73.9851")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if cmd.Action != "ride" {
		t.Errorf("expected ride action, got %s", cmd.Action)
	}
	if cmd.Pickup.Lat != 40.7128 || cmd.Pickup.Lng != -74.0060 {
		t.Errorf("wrong pickup: %+v", cmd.Pickup)
	}
	if cmd.Dropoff.Lat != 40.7589 || cmd.Dropoff.Lng != -73.9851 {
		t.Errorf("wrong dropoff: %+v", cmd.Dropoff)
	}
}

func TestParseWhatsAppCommand_RideRequestWithSpaces(t *testing.T) {
	cmd, err := parseWhatsAppCommand("  RIDE 40.7128,-74.0060 TO 40.7589,-73.9851  ")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if cmd.Action != "ride" {
		t.Errorf("expected ride action, got %s", cmd.Action)
	}
}

func TestParseWhatsAppCommand_LifecycleCommands(t *testing.T) {
	for _, action := range []string{"accept", "start", "complete", "cancel", "status"} {
		cmd, err := parseWhatsAppCommand(action + " ride-123")
		if err != nil {
			t.Fatalf("%s: parse failed: %v", action, err)
		}
		if cmd.Action != action {
			t.Errorf("expected %s, got %s", action, cmd.Action)
		}
		if cmd.RideID != "ride-123" {
			t.Errorf("%s: wrong ride id %s", action, cmd.RideID)
		}
	}
}

func TestParseWhatsAppCommand_ArgumentsKeepCase(t *testing.T) {
	cmd, err := parseWhatsAppCommand("ACCEPT Ride-ABC-123")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if cmd.Action != "accept" {
		t.Errorf("expected accept, got %s", cmd.Action)
	}
	if cmd.RideID != "Ride-ABC-123" {
		t.Errorf("ride id altered: %s", cmd.RideID)
	}
}

func TestParseWhatsAppCommand_Errors(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"empty", ""},
		{"gibberish", "hello there"},
		{"ride missing to", "ride 40.7,-74.0 40.8,-73.9"},
		{"ride malformed coords", "ride 40.7;-74.0 to 40.8,-73.9"},
		{"ride out of range", "ride 95.0,-74.0 to 40.8,-73.9"},
		{"accept without id", "accept"},
		{"accept extra words", "accept ride-1 please"},
	}
	for _, tc := range cases {
		if _, err := parseWhatsAppCommand(tc.body); err == nil {
			t.Errorf("%s: expected parse error", tc.name)
		}
	}
}

func TestParseCoordinatePair(t *testing.T) {
	p, err := parseCoordinatePair("40.7128, -74.0060")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if p.Lat != 40.7128 || p.Lng != -74.0060 {
		t.Errorf("wrong point: %+v", p)
	}

	if _, err := parseCoordinatePair("40.7128"); err == nil {
		t.Error("expected error for single value")
	}
	if _, err := parseCoordinatePair("91,0"); err == nil {
		t.Error("expected error for out-of-range latitude")
	}
}

func TestTwiml_EscapesMarkup(t *testing.T) {
	out := twiml(`reply with 'accept <id>' & enjoy`)
	if strings.Contains(out, "<id>") {
		t.Error("angle brackets not escaped")
	}
	if !strings.Contains(out, "&amp;") {
		t.Error("ampersand not escaped")
	}
	if !strings.HasPrefix(out, `<?xml version="1.0" encoding="UTF-8"?><Response><Message>`) {
		t.Errorf("unexpected envelope: %s", out)
	}
}
