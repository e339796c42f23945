package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrCheckoutNotFound is returned when the gateway does not know the checkout.
var ErrCheckoutNotFound = errors.New("checkout not found at payment gateway")

// CheckoutStatus is the gateway's current view of a checkout. Status carries
// the gateway's own vocabulary; classification into lifecycle states happens
// downstream.
type CheckoutStatus struct {
	CheckoutID string  `json:"checkout_id"`
	Status     string  `json:"status"`
	Amount     float64 `json:"amount,omitempty"`
	Currency   string  `json:"currency,omitempty"`
	Message    string  `json:"message,omitempty"`
}

// Client fetches the remote status of a checkout.
type Client interface {
	FetchStatus(ctx context.Context, checkoutID string) (*CheckoutStatus, error)
}

// HTTPClient talks to the payment gateway over HTTP. Every call is bounded
// by the configured timeout so a slow gateway cannot stall the poll loop.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) FetchStatus(ctx context.Context, checkoutID string) (*CheckoutStatus, error) {
	url := fmt.Sprintf("%s/checkouts/%s/status", c.baseURL, checkoutID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error building gateway request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error calling payment gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrCheckoutNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("payment gateway returned status %d", resp.StatusCode)
	}

	var status CheckoutStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("error decoding gateway response: %w", err)
	}
	if status.CheckoutID == "" {
		status.CheckoutID = checkoutID
	}

	return &status, nil
}
