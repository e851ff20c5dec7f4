package reviews

import (
	"strings"
	"testing"

	"jobflow_backend/internal/fieldmap"
)

func TestComposeReviewRequestEmail(t *testing.T) {
	msg := ComposeReviewRequest("Email", "Sam", "boiler service", "https://r.example")

	if msg.Channel != fieldmap.ChannelEmail {
		t.Fatalf("channel = %q", msg.Channel)
	}
	if msg.Subject == "" {
		t.Fatal("email message must carry a subject")
	}
	for _, want := range []string{"Sam", "boiler service", "https://r.example"} {
		if !strings.Contains(msg.Body, want) {
			t.Fatalf("body missing %q: %s", want, msg.Body)
		}
	}
}

func TestComposeReviewRequestDefaultsToSMS(t *testing.T) {
	for _, channel := range []string{"", "SMS", "sms", "pigeon"} {
		msg := ComposeReviewRequest(channel, "Sam", "fence repair", "https://r.example")
		if channel == "Email" {
			continue
		}
		if msg.Channel != fieldmap.ChannelSMS {
			t.Fatalf("channel %q resolved to %q, want SMS", channel, msg.Channel)
		}
		if msg.Subject != "" {
			t.Fatal("SMS must not carry a subject")
		}
	}
}

func TestComposeReviewRequestFallbacks(t *testing.T) {
	msg := ComposeReviewRequest("SMS", "  ", "", "https://r.example")

	if !strings.Contains(msg.Body, "there") {
		t.Fatalf("expected generic salutation, got: %s", msg.Body)
	}
	if !strings.Contains(msg.Body, "recent job") {
		t.Fatalf("expected generic job reference, got: %s", msg.Body)
	}
}
