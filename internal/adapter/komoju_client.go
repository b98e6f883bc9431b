package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// KomojuConfig holds the credentials and request defaults for KOMOJU sessions.
type KomojuConfig struct {
	APIKey               string
	MerchantUUID         string
	Endpoint             string
	BaseURL              string
	Locale               string
	DefaultPaymentMethod string
	Timeout              time.Duration
}

// KomojuClient creates hosted payment sessions through the KOMOJU REST API.
type KomojuClient struct {
	cfg        KomojuConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewKomojuClient creates a client; each call is bounded by cfg.Timeout.
func NewKomojuClient(cfg KomojuConfig, logger *zap.Logger) *KomojuClient {
	return &KomojuClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

type komojuCustomer struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type komojuSessionRequest struct {
	Amount               int64             `json:"amount"`
	Currency             string            `json:"currency"`
	MerchantUUID         string            `json:"merchant_uuid"`
	ReturnURL            string            `json:"return_url,omitempty"`
	CancelURL            string            `json:"cancel_url"`
	Locale               string            `json:"locale"`
	DefaultPaymentMethod string            `json:"default_payment_method"`
	Email                string            `json:"email,omitempty"`
	Customer             komojuCustomer    `json:"customer"`
	Metadata             map[string]string `json:"metadata"`
}

type komojuSessionResponse struct {
	ID         string `json:"id"`
	SessionURL string `json:"session_url"`
}

// CreateSession posts a session request and returns the redirect URL.
func (c *KomojuClient) CreateSession(ctx context.Context, req SessionRequest) (Session, error) {
	returnURL := req.ReturnURL
	if returnURL == "" {
		returnURL = c.cfg.BaseURL + "/completed"
	}
	body, err := json.Marshal(komojuSessionRequest{
		Amount:               req.Amount,
		Currency:             req.Currency,
		MerchantUUID:         c.cfg.MerchantUUID,
		ReturnURL:            returnURL,
		CancelURL:            c.cfg.BaseURL + "/cancel",
		Locale:               c.cfg.Locale,
		DefaultPaymentMethod: c.cfg.DefaultPaymentMethod,
		Email:                req.Email,
		Customer:             komojuCustomer{Name: req.Name, Email: req.Email, Phone: req.Phone},
		Metadata:             map[string]string{"booking_id": req.BookingID},
	})
	if err != nil {
		return Session{}, fmt.Errorf("marshal session request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return Session{}, fmt.Errorf("build session request: %w", err)
	}
	httpReq.SetBasicAuth(c.cfg.APIKey, "")
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Session{}, fmt.Errorf("post session: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Session{}, fmt.Errorf("read session response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Session{}, &ProviderError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var out komojuSessionResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return Session{}, fmt.Errorf("decode session response: %w", err)
	}
	if out.SessionURL == "" {
		return Session{}, fmt.Errorf("session response has no session_url")
	}

	c.logger.Info("payment session created",
		zap.String("booking_id", req.BookingID),
		zap.String("session_id", out.ID),
		zap.Int64("amount", req.Amount),
		zap.String("currency", req.Currency),
	)
	return Session{ID: out.ID, URL: out.SessionURL}, nil
}
