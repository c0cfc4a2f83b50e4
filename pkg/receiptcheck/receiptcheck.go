// Package receiptcheck provides a client for an external payment receipt checker.
// Verdicts are advisory: the operator still decides the payment status.
package receiptcheck

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/abrezinsky/rafflebook/internal/logger"
)

// Request describes the payment a receipt is expected to prove
type Request struct {
	ImageRef       string          `json:"image_ref"`
	ExpectedAmount decimal.Decimal `json:"expected_amount"`
	Currency       string          `json:"currency"`
	PayerName      string          `json:"payer_name"`
	DrawName       string          `json:"draw_name"`
}

// Verdict is the checker's opinion of a receipt
type Verdict struct {
	Confirmed bool   `json:"confirmed"`
	Notes     string `json:"notes"`
}

// Client defines the interface for receipt verification
type Client interface {
	// Verify asks the checker whether the receipt matches the expected payment
	Verify(ctx context.Context, req Request) (*Verdict, error)
}

// HTTPClient implements Client against a JSON endpoint
type HTTPClient struct {
	endpoint   string
	httpClient *http.Client
	log        logger.Logger
}

// NewHTTPClient creates a new receipt checker client
func NewHTTPClient(endpoint string, log logger.Logger) *HTTPClient {
	return &HTTPClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log,
	}
}

// NewHTTPClientWithHTTPClient creates a new receipt checker client with a custom http.Client
func NewHTTPClientWithHTTPClient(endpoint string, httpClient *http.Client, log logger.Logger) *HTTPClient {
	return &HTTPClient{
		endpoint:   strings.TrimRight(endpoint, "/"),
		httpClient: httpClient,
		log:        log,
	}
}

// Endpoint returns the configured checker URL
func (c *HTTPClient) Endpoint() string {
	return c.endpoint
}

// Verify posts the request to the checker and decodes its verdict
func (c *HTTPClient) Verify(ctx context.Context, req Request) (*Verdict, error) {
	if strings.TrimSpace(req.ImageRef) == "" {
		return nil, fmt.Errorf("receipt image reference is required")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	apiURL := c.endpoint + "/verify"
	c.log.Debug("Receipt check request", "method", "POST", "url", apiURL, "draw", req.DrawName)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to receipt checker: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.log.Debug("Receipt check response", "status", resp.StatusCode, "body", string(respBody))

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("receipt checker returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var verdict Verdict
	if err := json.Unmarshal(respBody, &verdict); err != nil {
		return nil, fmt.Errorf("failed to parse verdict: %w", err)
	}
	return &verdict, nil
}
