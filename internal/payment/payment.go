// Package payment is the client side of the external payment collaborator.
// Initiation is only ever attempted once an order has reached completed; the
// gateway's internals are out of scope here.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Initiator starts payment for a completed order.
type Initiator interface {
	Initiate(ctx context.Context, orderID uuid.UUID, amount int64) (redirectURL string, err error)
}

type initiateRequest struct {
	OrderID string `json:"order_id"`
	Amount  int64  `json:"amount"`
}

type initiateResponse struct {
	RedirectURL string `json:"redirect_url"`
}

// HTTPClient posts initiation requests to a configured gateway endpoint.
type HTTPClient struct {
	url    string
	client *http.Client
}

func NewHTTPClient(url string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) Initiate(ctx context.Context, orderID uuid.UUID, amount int64) (string, error) {
	const op = "payment.HTTPClient.Initiate"

	body, _ := json.Marshal(initiateRequest{OrderID: orderID.String(), Amount: amount})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%s:%w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s:%w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%s: gateway status %d", op, resp.StatusCode)
	}

	var out initiateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%s:%w", op, err)
	}

	return out.RedirectURL, nil
}

// Noop is used when no gateway is configured (e.g. local development).
type Noop struct{}

func (Noop) Initiate(ctx context.Context, orderID uuid.UUID, amount int64) (string, error) {
	return "", nil
}
