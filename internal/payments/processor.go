package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"jobflow_backend/platform/config"
	"jobflow_backend/platform/logger"
)

// CheckoutSession is the processor's authoritative record of one checkout.
type CheckoutSession struct {
	ID            string         `json:"id"`
	PaymentStatus string         `json:"payment_status"`
	AmountTotal   int64          `json:"amount_total"`
	PaymentIntent *PaymentIntent `json:"payment_intent,omitempty"`
}

// PaymentIntent carries the expanded charge for receipt extraction.
type PaymentIntent struct {
	LatestCharge *Charge `json:"latest_charge,omitempty"`
}

// Charge is the processor's charge object.
type Charge struct {
	ReceiptURL string `json:"receipt_url,omitempty"`
}

// ReceiptURL digs the receipt link out of the expanded session, if present.
func (s CheckoutSession) ReceiptURL() string {
	if s.PaymentIntent == nil || s.PaymentIntent.LatestCharge == nil {
		return ""
	}
	return s.PaymentIntent.LatestCharge.ReceiptURL
}

// ProcessorClient retrieves checkout sessions directly from the payment
// processor. Calls authenticate with the tenant's own secret, never with
// anything taken from an inbound webhook body.
type ProcessorClient struct {
	baseURL string
	http    *http.Client
	log     *logger.Logger
}

// NewProcessorClient creates a processor client.
func NewProcessorClient(cfg config.PaymentsConfig, log *logger.Logger) *ProcessorClient {
	return &ProcessorClient{
		baseURL: strings.TrimRight(cfg.GetProcessorBaseURL(), "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		log:     log,
	}
}

// RetrieveCheckoutSession fetches the session with the payment intent and
// latest charge expanded.
func (c *ProcessorClient) RetrieveCheckoutSession(ctx context.Context, secret, sessionID string) (CheckoutSession, error) {
	q := url.Values{}
	q.Add("expand[]", "payment_intent.latest_charge")

	endpoint := fmt.Sprintf("%s/v1/checkout/sessions/%s?%s", c.baseURL, url.PathEscape(sessionID), q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return CheckoutSession{}, err
	}
	req.Header.Set("Authorization", "Bearer "+secret)

	resp, err := c.http.Do(req)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("processor request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= http.StatusBadRequest {
		return CheckoutSession{}, fmt.Errorf("processor returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var session CheckoutSession
	if err := json.Unmarshal(data, &session); err != nil {
		return CheckoutSession{}, fmt.Errorf("decode checkout session: %w", err)
	}
	return session, nil
}
