package abacatepay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zmurilzx/treon/internal/pkg/env"
)

const defaultAPIBaseURL = "https://api.abacatepay.com/v1"

// Client talks to the AbacatePay REST API. The webhook pipeline never uses
// it; only the checkout and subscription management flows do.
type Client struct {
	APIKey     string
	APIBaseURL string

	HTTPClient *http.Client
}

func NewClientFromEnv() *Client {
	return &Client{
		APIKey:     strings.TrimSpace(env.GetEnv("ABACATEPAY_API_KEY", "")),
		APIBaseURL: strings.TrimRight(env.GetEnv("ABACATEPAY_API_BASE_URL", defaultAPIBaseURL), "/"),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// CreateCheckout creates a one-off billing and returns the hosted payment URL.
func (c *Client) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResponse, error) {
	if req.Frequency == "" {
		req.Frequency = "ONE_TIME"
	}
	if len(req.Methods) == 0 {
		req.Methods = []string{"PIX"}
	}
	return c.post(ctx, "/billing/create", req)
}

// CreateSubscription creates a recurring billing for a plan.
func (c *Client) CreateSubscription(ctx context.Context, req CheckoutRequest) (*CheckoutResponse, error) {
	req.Frequency = "MULTIPLE_PAYMENTS"
	if len(req.Methods) == 0 {
		req.Methods = []string{"PIX"}
	}
	return c.post(ctx, "/billing/create", req)
}

// CancelSubscription cancels a recurring billing by its provider id.
func (c *Client) CancelSubscription(ctx context.Context, subscriptionID string) error {
	if strings.TrimSpace(subscriptionID) == "" {
		return errors.New("subscription id is required")
	}
	_, err := c.post(ctx, "/billing/"+subscriptionID+"/cancel", struct{}{})
	return err
}

func (c *Client) post(ctx context.Context, path string, body interface{}) (*CheckoutResponse, error) {
	if c.APIKey == "" {
		return nil, errors.New("ABACATEPAY_API_KEY is not configured")
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIBaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("abacatepay: %s returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	// The API wraps responses in {"data": ...}.
	var wrapped struct {
		Data CheckoutResponse `json:"data"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("abacatepay: invalid response: %w", err)
	}
	return &wrapped.Data, nil
}

// ParseEvent decodes a raw webhook body into an Event. The raw bytes must be
// verified before parsing; parsing performs no authentication.
func ParseEvent(raw []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("abacatepay: malformed event: %w", err)
	}
	if strings.TrimSpace(ev.Type) == "" {
		return nil, errors.New("abacatepay: event type is missing")
	}
	return &ev, nil
}
