package adapter

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/villa-stay/service-booking/internal/domain/booking"
	"github.com/villa-stay/service-booking/internal/platform/domain"
)

// WebhookVerifier checks the HMAC-SHA256 signature the provider puts on each delivery.
type WebhookVerifier struct {
	secret []byte
	skip   bool
}

// NewWebhookVerifier creates a verifier. skip disables verification and must
// only be set for local development.
func NewWebhookVerifier(secret string, skip bool) *WebhookVerifier {
	return &WebhookVerifier{secret: []byte(secret), skip: skip}
}

// Sign returns the hex signature for body.
func (v *WebhookVerifier) Sign(body []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares signature against the HMAC of the exact raw body in constant time.
func (v *WebhookVerifier) Verify(body []byte, signature string) error {
	if v.skip {
		return nil
	}
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return domain.NewUnauthorizedError("missing webhook signature")
	}
	given, err := hex.DecodeString(signature)
	if err != nil {
		return domain.NewUnauthorizedError("invalid webhook signature")
	}
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	if !hmac.Equal(given, mac.Sum(nil)) {
		return domain.NewUnauthorizedError("invalid webhook signature")
	}
	return nil
}

// WebhookEvent is the part of a provider event the reconciler acts on.
type WebhookEvent struct {
	ID        string
	Type      string
	BookingID string
	PaymentID string
}

type komojuEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		ID       string `json:"id"`
		Metadata struct {
			BookingID string `json:"booking_id"`
		} `json:"metadata"`
	} `json:"data"`
}

// ParseWebhookEvent decodes a provider event. A missing booking id is a bad request.
func ParseWebhookEvent(body []byte) (WebhookEvent, error) {
	var ev komojuEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return WebhookEvent{}, domain.NewBadRequestError("malformed webhook payload")
	}
	bookingID := strings.TrimSpace(ev.Data.Metadata.BookingID)
	if bookingID == "" {
		return WebhookEvent{}, domain.NewBadRequestError("booking_id missing from event metadata")
	}
	return WebhookEvent{
		ID:        ev.ID,
		Type:      ev.Type,
		BookingID: bookingID,
		PaymentID: ev.Data.ID,
	}, nil
}

// Trigger maps the event type to a lifecycle trigger. Types are accepted with
// or without the "payment." prefix; unknown types report false.
func (e WebhookEvent) Trigger() (booking.Trigger, bool) {
	switch strings.TrimPrefix(e.Type, "payment.") {
	case "authorized":
		return booking.TriggerAuthorized, true
	case "captured":
		return booking.TriggerCaptured, true
	case "expired":
		return booking.TriggerExpired, true
	default:
		return 0, false
	}
}
