package catalog

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

	"go.uber.org/zap"

	"github.com/syncbridge/backend/internal/domain/reconcile"
)

// maxResponseSize is the maximum allowed response size from the catalog (10MB)
const maxResponseSize = 10 * 1024 * 1024

var (
	ErrRequestFailed   = errors.New("catalog: request failed")
	ErrInvalidResponse = errors.New("catalog: invalid response")
)

// Config holds the catalog client configuration.
type Config struct {
	BaseURL        string
	APIKey         string
	TimeoutSeconds int
}

// Validate checks the configuration for required fields.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("catalog: base URL is required")
	}
	if c.APIKey == "" {
		return errors.New("catalog: API key is required")
	}
	return nil
}

// Client talks to the commerce catalog's REST API. Authentication is a
// static X-API-KEY header.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a catalog client from the given configuration.
func NewClient(cfg *Config, logger *zap.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("catalog"),
	}, nil
}

// ---------------------------------------------------------------------------
// Orders
// ---------------------------------------------------------------------------

// GetOrders returns the raw order list. Used by the passthrough endpoint, so
// the payload is not decoded into a domain shape.
func (c *Client) GetOrders(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/orders", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateOrUpdateOrder pushes a raw order document. Used by the passthrough
// endpoint.
func (c *Client) CreateOrUpdateOrder(ctx context.Context, order json.RawMessage) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/orders", order, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateOrderSellerRef records the CRM document id on the catalog order.
func (c *Client) UpdateOrderSellerRef(ctx context.Context, orderID string, sellerOrderID int64) error {
	body := map[string]any{
		"seller_order_id": sellerOrderID,
	}
	url := fmt.Sprintf("%s/orders/%s", c.baseURL, orderID)
	if err := c.do(ctx, http.MethodPut, url, body, nil); err != nil {
		return err
	}
	c.logger.Info("Seller order id written back to catalog",
		zap.String("order_id", orderID),
		zap.Int64("seller_order_id", sellerOrderID),
	)
	return nil
}

// ---------------------------------------------------------------------------
// Fulfillment
// ---------------------------------------------------------------------------

// CreateFulfillment creates the order's fulfillment record in the given
// status, carrying the carrier's tracking URL.
func (c *Client) CreateFulfillment(ctx context.Context, orderID, trackingURL string, status reconcile.FulfillmentStatus) error {
	body := map[string]any{
		"status":       status.String(),
		"tracking_url": trackingURL,
	}
	url := fmt.Sprintf("%s/orders/%s/fulfillments", c.baseURL, orderID)
	return c.do(ctx, http.MethodPost, url, body, nil)
}

// UpdateFulfillmentStatus moves the order's fulfillment to the given status.
// The tracking URL is re-sent so the catalog record stays current.
func (c *Client) UpdateFulfillmentStatus(ctx context.Context, orderID, trackingURL string, status reconcile.FulfillmentStatus) error {
	body := map[string]any{
		"status":       status.String(),
		"tracking_url": trackingURL,
	}
	url := fmt.Sprintf("%s/orders/%s/fulfillments", c.baseURL, orderID)
	return c.do(ctx, http.MethodPut, url, body, nil)
}

// ---------------------------------------------------------------------------
// Companies
// ---------------------------------------------------------------------------

// GetCompanies returns the raw company list.
func (c *Client) GetCompanies(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/companies", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateCompanyCode persists the CRM entity id as the catalog company's code.
// This write echoes back as a company.updated webhook, which the guard
// suppresses.
func (c *Client) UpdateCompanyCode(ctx context.Context, companyID, name, code string) error {
	body := map[string]any{
		"companies": []map[string]any{
			{"id": companyID, "name": name, "code": code},
		},
	}
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/companies", body, nil); err != nil {
		return err
	}
	c.logger.Info("Company code written back to catalog",
		zap.String("company_id", companyID),
		zap.String("code", code),
	)
	return nil
}

// ---------------------------------------------------------------------------
// Webhook registration
// ---------------------------------------------------------------------------

// RegisterOrderWebhook points the catalog's order webhook at the given URL.
func (c *Client) RegisterOrderWebhook(ctx context.Context, callbackURL, callbackKey string) error {
	body := map[string]any{
		"url":     callbackURL,
		"api_key": callbackKey,
	}
	return c.do(ctx, http.MethodPost, c.baseURL+"/orders/webhook", body, nil)
}

// RegisterCompanyWebhook points the catalog's company webhook at the given URL.
func (c *Client) RegisterCompanyWebhook(ctx context.Context, callbackURL, callbackKey string) error {
	body := map[string]any{
		"url":     callbackURL,
		"api_key": callbackKey,
	}
	return c.do(ctx, http.MethodPost, c.baseURL+"/companies/webhook", body, nil)
}

// ---------------------------------------------------------------------------
// Transport
// ---------------------------------------------------------------------------

func (c *Client) do(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("catalog: failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("catalog: failed to create request: %w", err)
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("catalog: failed to read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		c.logger.Error("Catalog request failed",
			zap.String("method", method),
			zap.String("url", url),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", respBody),
		)
		return fmt.Errorf("%w: HTTP %d", ErrRequestFailed, resp.StatusCode)
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
	}
	return nil
}
