package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/villa-stay/service-booking/internal/domain/booking"
	"github.com/villa-stay/service-booking/internal/platform/domain"
)

func TestKomojuClient_CreateSession(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "sk_test", user)
		assert.Equal(t, "", pass)

		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"sess_1","session_url":"https://komoju.test/sessions/sess_1"}`))
	}))
	defer srv.Close()

	client := NewKomojuClient(KomojuConfig{
		APIKey:               "sk_test",
		MerchantUUID:         "merchant-1",
		Endpoint:             srv.URL,
		BaseURL:              "https://villa.test",
		Locale:               "ja",
		DefaultPaymentMethod: "credit_card",
		Timeout:              5 * time.Second,
	}, zap.NewNop())

	sess, err := client.CreateSession(context.Background(), SessionRequest{
		BookingID: "b-1",
		Amount:    15000,
		Currency:  "JPY",
		Email:     "guest@example.com",
		Name:      "Yamada Taro",
	})
	require.NoError(t, err)
	assert.Equal(t, "sess_1", sess.ID)
	assert.Equal(t, "https://komoju.test/sessions/sess_1", sess.URL)

	assert.Equal(t, float64(15000), got["amount"])
	assert.Equal(t, "merchant-1", got["merchant_uuid"])
	assert.Equal(t, "https://villa.test/cancel", got["cancel_url"])
	assert.Equal(t, "credit_card", got["default_payment_method"])
	assert.Equal(t, map[string]interface{}{"booking_id": "b-1"}, got["metadata"])
}

func TestKomojuClient_ErrorStatus(t *testing.T) {
	status := http.StatusServiceUnavailable
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"error":"down"}`))
	}))
	defer srv.Close()

	client := NewKomojuClient(KomojuConfig{Endpoint: srv.URL, Timeout: time.Second}, zap.NewNop())

	_, err := client.CreateSession(context.Background(), SessionRequest{BookingID: "b-1", Amount: 1})
	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, http.StatusServiceUnavailable, pe.StatusCode)
	assert.True(t, IsTransient(err))

	status = http.StatusUnprocessableEntity
	_, err = client.CreateSession(context.Background(), SessionRequest{BookingID: "b-1", Amount: 1})
	assert.False(t, IsTransient(err))
}

func TestWebhookVerifier(t *testing.T) {
	v := NewWebhookVerifier("whsec", false)
	body := []byte(`{"type":"payment.captured","data":{"metadata":{"booking_id":"b-1"}}}`)
	sig := v.Sign(body)

	assert.NoError(t, v.Verify(body, sig))

	tampered := []byte(`{"type":"payment.captured","data":{"metadata":{"booking_id":"b-2"}}}`)
	err := v.Verify(tampered, sig)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
	assert.NoError(t, v.Verify(tampered, v.Sign(tampered)))

	assert.True(t, errors.Is(v.Verify(body, ""), domain.ErrUnauthorized))
	assert.True(t, errors.Is(v.Verify(body, "not-hex"), domain.ErrUnauthorized))

	assert.NoError(t, NewWebhookVerifier("whsec", true).Verify(tampered, ""))
}

func TestParseWebhookEvent(t *testing.T) {
	ev, err := ParseWebhookEvent([]byte(`{"id":"evt_1","type":"payment.authorized","data":{"id":"pay_1","metadata":{"booking_id":"b-1","nights":3}}}`))
	require.NoError(t, err)
	assert.Equal(t, "b-1", ev.BookingID)
	assert.Equal(t, "pay_1", ev.PaymentID)
	trigger, ok := ev.Trigger()
	assert.True(t, ok)
	assert.Equal(t, booking.TriggerAuthorized, trigger)

	_, err = ParseWebhookEvent([]byte(`{"type":"captured","data":{"metadata":{}}}`))
	assert.True(t, errors.Is(err, domain.ErrBadRequest))

	_, err = ParseWebhookEvent([]byte(`{not json`))
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestWebhookEvent_Trigger(t *testing.T) {
	cases := map[string]booking.Trigger{
		"authorized":       booking.TriggerAuthorized,
		"payment.captured": booking.TriggerCaptured,
		"captured":         booking.TriggerCaptured,
		"payment.expired":  booking.TriggerExpired,
	}
	for typ, want := range cases {
		got, ok := WebhookEvent{Type: typ}.Trigger()
		assert.True(t, ok, typ)
		assert.Equal(t, want, got, typ)
	}

	_, ok := WebhookEvent{Type: "payment.refunded"}.Trigger()
	assert.False(t, ok)
}

func TestMockProvider(t *testing.T) {
	p := NewMockProvider("http://localhost:3000", zap.NewNop())
	sess, err := p.CreateSession(context.Background(), SessionRequest{BookingID: "b-1", Amount: 100})
	require.NoError(t, err)
	assert.Contains(t, sess.URL, "booking_id=b-1")
	assert.NotEmpty(t, sess.ID)
}
