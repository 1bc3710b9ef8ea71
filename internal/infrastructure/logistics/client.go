package logistics

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

// maxResponseSize is the maximum allowed response size from the provider (10MB)
const maxResponseSize = 10 * 1024 * 1024

var (
	ErrRequestFailed   = errors.New("logistics: request failed")
	ErrInvalidResponse = errors.New("logistics: invalid response")
)

// Config holds the logistics client configuration.
type Config struct {
	BaseURL        string
	MerchantNumber string
	APIKey         string
	TimeoutSeconds int
}

// Validate checks the configuration for required fields.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("logistics: base URL is required")
	}
	if c.MerchantNumber == "" || c.APIKey == "" {
		return errors.New("logistics: merchant credentials are required")
	}
	return nil
}

// Parcel is one shipment unit reported by the provider for an order. Field
// names follow the provider's French wire format.
type Parcel struct {
	NumeroColis  string `json:"numeroColis"`
	Statut       string `json:"statut"`
	URLSuivi     string `json:"urlSuivi"`
	Transporteur string `json:"transporteur"`
}

// Client talks to the fulfillment provider's REST API. Authentication is
// HTTP basic auth with the merchant number as user.
type Client struct {
	baseURL    string
	merchant   string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a logistics client from the given configuration.
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
		merchant:   cfg.MerchantNumber,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("logistics"),
	}, nil
}

// CreateOrder registers the order with the fulfillment provider.
func (c *Client) CreateOrder(ctx context.Context, payload reconcile.LogisticsOrderPayload) error {
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/commandes", payload, nil); err != nil {
		return err
	}
	c.logger.Info("Order created at logistics provider",
		zap.String("reference", payload.Reference),
	)
	return nil
}

// ListParcels returns the parcels known for an order reference. An order not
// yet picked returns an empty list, not an error.
func (c *Client) ListParcels(ctx context.Context, orderRef string) ([]Parcel, error) {
	var out struct {
		ListeColis []Parcel `json:"listeColis"`
	}
	url := fmt.Sprintf("%s/commandes/%s/colis", c.baseURL, orderRef)
	if err := c.do(ctx, http.MethodGet, url, nil, &out); err != nil {
		return nil, err
	}
	return out.ListeColis, nil
}

func (c *Client) do(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("logistics: failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("logistics: failed to create request: %w", err)
	}
	req.SetBasicAuth(c.merchant, c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("logistics: failed to read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		c.logger.Error("Logistics request failed",
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
