package crm

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

// maxResponseSize is the maximum allowed response size from the CRM (10MB)
const maxResponseSize = 10 * 1024 * 1024

var (
	ErrAuthFailed      = errors.New("crm: authentication failed")
	ErrRequestFailed   = errors.New("crm: request failed")
	ErrInvalidResponse = errors.New("crm: invalid response")
	ErrRPCFailed       = errors.New("crm: legacy rpc call failed")
)

// Config holds the CRM client configuration.
type Config struct {
	APIBaseURL     string
	RPCURL         string
	AuthURL        string
	ClientID       string
	ClientSecret   string
	TimeoutSeconds int
}

// Validate checks the configuration for required fields.
func (c *Config) Validate() error {
	if c.APIBaseURL == "" || c.RPCURL == "" || c.AuthURL == "" {
		return errors.New("crm: api, rpc and auth URLs are required")
	}
	if c.ClientID == "" || c.ClientSecret == "" {
		return errors.New("crm: client credentials are required")
	}
	return nil
}

// Client talks to the CRM over its v2 REST API and its legacy RPC interface.
// All calls share one process-wide token source.
type Client struct {
	baseURL    string
	rpcURL     string
	tokens     *TokenSource
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a CRM client from the given configuration.
func NewClient(cfg *Config, logger *zap.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}
	return &Client{
		baseURL:    strings.TrimRight(cfg.APIBaseURL, "/"),
		rpcURL:     cfg.RPCURL,
		tokens:     NewTokenSource(cfg.AuthURL, cfg.ClientID, cfg.ClientSecret, httpClient),
		httpClient: httpClient,
		logger:     logger.Named("crm"),
	}, nil
}

// ---------------------------------------------------------------------------
// Sales documents
// ---------------------------------------------------------------------------

// CreateOrder creates a CRM order document and returns its id.
func (c *Client) CreateOrder(ctx context.Context, payload reconcile.CRMOrderPayload) (int64, error) {
	var out struct {
		ID int64 `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/orders", payload, &out); err != nil {
		return 0, err
	}
	if out.ID == 0 {
		return 0, fmt.Errorf("%w: order creation returned no id", ErrInvalidResponse)
	}
	c.logger.Info("Order created in CRM", zap.Int64("crm_order_id", out.ID))
	return out.ID, nil
}

// CreateInvoice creates a CRM invoice document and returns its id.
func (c *Client) CreateInvoice(ctx context.Context, payload reconcile.CRMOrderPayload) (int64, error) {
	var out struct {
		ID int64 `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/invoices", payload, &out); err != nil {
		return 0, err
	}
	c.logger.Info("Invoice created in CRM", zap.Int64("crm_invoice_id", out.ID))
	return out.ID, nil
}

// UpdateDeliveryStep advances a document's delivery step via the legacy
// interface.
func (c *Client) UpdateDeliveryStep(ctx context.Context, docID int64, step reconcile.DeliveryStep) error {
	_, err := c.CallRPC(ctx, UpdateDeliveryStepCall(docID, step))
	if err != nil {
		return err
	}
	c.logger.Info("Delivery step updated in CRM",
		zap.Int64("doc_id", docID),
		zap.String("step", step.String()),
	)
	return nil
}

// ---------------------------------------------------------------------------
// Companies
// ---------------------------------------------------------------------------

// FindCompanyByName resolves a company by exact name. The first match wins;
// duplicate names are not disambiguated (the CRM is expected to keep names
// unique per business), so a multi-match is logged at warn level.
// A miss yields reconcile.ErrCompanyNotFound.
func (c *Client) FindCompanyByName(ctx context.Context, name string) (reconcile.CRMCompany, error) {
	body := map[string]any{
		"filters": map[string]any{"name": name},
	}
	var out struct {
		Data []struct {
			ID   int64  `json:"id"`
			Type string `json:"type"`
		} `json:"data"`
		Pagination struct {
			Total int `json:"total"`
		} `json:"pagination"`
	}
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/companies/search", body, &out); err != nil {
		return reconcile.CRMCompany{}, err
	}
	if out.Pagination.Total == 0 || len(out.Data) == 0 {
		return reconcile.CRMCompany{}, fmt.Errorf("%w: %q", reconcile.ErrCompanyNotFound, name)
	}
	if out.Pagination.Total > 1 {
		c.logger.Warn("Multiple CRM companies match name, using first",
			zap.String("name", name),
			zap.Int("matches", out.Pagination.Total),
		)
	}
	return reconcile.CRMCompany{
		ID:   out.Data[0].ID,
		Kind: reconcile.ParseCRMCompanyType(out.Data[0].Type),
	}, nil
}

// CreateEntity creates a prospect or client via the legacy interface and
// returns the new entity's id.
func (c *Client) CreateEntity(ctx context.Context, kind reconcile.CompanyKind, payload reconcile.CRMEntityPayload) (int64, error) {
	response, err := c.CallRPC(ctx, CreateEntityCall(kind, payload))
	if err != nil {
		return 0, err
	}
	id, err := parseEntityID(kind, response)
	if err != nil {
		return 0, err
	}
	c.logger.Info("Entity created in CRM",
		zap.String("kind", kind.String()),
		zap.Int64("entity_id", id),
	)
	return id, nil
}

// UpdateEntity updates an existing prospect or client's core fields.
func (c *Client) UpdateEntity(ctx context.Context, kind reconcile.CompanyKind, entityID int64, payload reconcile.CRMEntityPayload) error {
	_, err := c.CallRPC(ctx, UpdateEntityCall(kind, entityID, payload))
	return err
}

// TransformKind converts the entity to the target classification.
func (c *Client) TransformKind(ctx context.Context, entityID int64, to reconcile.CompanyKind) error {
	call := TransformToProspectCall(entityID)
	if to == reconcile.KindCustomer {
		call = TransformToCustomerCall(entityID)
	}
	if _, err := c.CallRPC(ctx, call); err != nil {
		return err
	}
	c.logger.Info("Entity classification transformed in CRM",
		zap.Int64("entity_id", entityID),
		zap.String("to", to.String()),
	)
	return nil
}

// ---------------------------------------------------------------------------
// Addresses
// ---------------------------------------------------------------------------

type crmAddressRecord struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	AddressLine1       string `json:"address_line_1"`
	AddressLine2       string `json:"address_line_2"`
	PostalCode         string `json:"postal_code"`
	City               string `json:"city"`
	CountryCode        string `json:"country_code"`
	IsInvoicingAddress bool   `json:"is_invoicing_address"`
	IsDeliveryAddress  bool   `json:"is_delivery_address"`
}

// ListAddresses fetches the company's existing addresses.
func (c *Client) ListAddresses(ctx context.Context, companyID int64) ([]reconcile.CRMAddress, error) {
	var out struct {
		Data []crmAddressRecord `json:"data"`
	}
	url := fmt.Sprintf("%s/companies/%d/addresses", c.baseURL, companyID)
	if err := c.do(ctx, http.MethodGet, url, nil, &out); err != nil {
		return nil, err
	}
	addresses := make([]reconcile.CRMAddress, 0, len(out.Data))
	for _, rec := range out.Data {
		addresses = append(addresses, reconcile.CRMAddress{
			ID: rec.ID,
			Address: reconcile.Address{
				Name:        rec.Name,
				Line1:       rec.AddressLine1,
				Line2:       rec.AddressLine2,
				PostalCode:  rec.PostalCode,
				City:        rec.City,
				CountryCode: rec.CountryCode,
			},
			IsInvoicing: rec.IsInvoicingAddress,
			IsDelivery:  rec.IsDeliveryAddress,
		})
	}
	return addresses, nil
}

// CreateAddress creates a company address in the given slot.
func (c *Client) CreateAddress(ctx context.Context, companyID int64, payload reconcile.CRMAddressPayload) error {
	url := fmt.Sprintf("%s/companies/%d/addresses", c.baseURL, companyID)
	return c.do(ctx, http.MethodPost, url, payload, nil)
}

// UpdateAddress replaces an existing company address.
func (c *Client) UpdateAddress(ctx context.Context, companyID, addressID int64, payload reconcile.CRMAddressPayload) error {
	url := fmt.Sprintf("%s/companies/%d/addresses/%d", c.baseURL, companyID, addressID)
	return c.do(ctx, http.MethodPut, url, payload, nil)
}

// DeleteAddress removes a company address.
func (c *Client) DeleteAddress(ctx context.Context, companyID, addressID int64) error {
	url := fmt.Sprintf("%s/companies/%d/addresses/%d", c.baseURL, companyID, addressID)
	return c.do(ctx, http.MethodDelete, url, nil, nil)
}

// ---------------------------------------------------------------------------
// Contacts
// ---------------------------------------------------------------------------

type crmContactRecord struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone_number"`
	Position  string `json:"position"`
}

// ListContacts fetches the company's existing contacts.
func (c *Client) ListContacts(ctx context.Context, companyID int64) ([]reconcile.CRMContact, error) {
	var out struct {
		Data []crmContactRecord `json:"data"`
	}
	url := fmt.Sprintf("%s/companies/%d/contacts", c.baseURL, companyID)
	if err := c.do(ctx, http.MethodGet, url, nil, &out); err != nil {
		return nil, err
	}
	contacts := make([]reconcile.CRMContact, 0, len(out.Data))
	for _, rec := range out.Data {
		contacts = append(contacts, reconcile.CRMContact{
			ID: rec.ID,
			Contact: reconcile.Contact{
				FirstName: rec.FirstName,
				LastName:  rec.LastName,
				Email:     rec.Email,
				Phone:     rec.Phone,
				Position:  rec.Position,
			},
		})
	}
	return contacts, nil
}

// AddContact attaches a new contact to the entity via the legacy interface.
func (c *Client) AddContact(ctx context.Context, kind reconcile.CompanyKind, entityID int64, contact reconcile.Contact) error {
	_, err := c.CallRPC(ctx, AddContactCall(kind, entityID, contact))
	return err
}

// UpdateContact updates an existing contact's fields.
func (c *Client) UpdateContact(ctx context.Context, contactID int64, contact reconcile.Contact) error {
	payload := map[string]any{
		"first_name": contact.FirstName,
		"last_name":  contact.LastName,
		"email":      contact.Email,
		"phone":      contact.Phone,
		"position":   contact.Position,
	}
	url := fmt.Sprintf("%s/contacts/%d", c.baseURL, contactID)
	return c.do(ctx, http.MethodPut, url, payload, nil)
}

// DeleteContact removes a contact.
func (c *Client) DeleteContact(ctx context.Context, contactID int64) error {
	url := fmt.Sprintf("%s/contacts/%d", c.baseURL, contactID)
	return c.do(ctx, http.MethodDelete, url, nil, nil)
}

// ---------------------------------------------------------------------------
// Transport
// ---------------------------------------------------------------------------

// do performs an authenticated REST call against the v2 API.
func (c *Client) do(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("crm: failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("crm: failed to create request: %w", err)
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("crm: failed to read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		c.logger.Error("CRM request failed",
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

// CallRPC performs one legacy-interface call and returns its raw response
// payload. The legacy endpoint reports failures in-band via a status field.
func (c *Client) CallRPC(ctx context.Context, call RPCCall) (json.RawMessage, error) {
	values, err := call.Encode()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, strings.NewReader(values.Encode()))
	if err != nil {
		return nil, fmt.Errorf("crm: failed to create rpc request: %w", err)
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("crm: failed to read rpc response: %w", err)
	}
	if resp.StatusCode >= 400 {
		c.logger.Error("CRM rpc request failed",
			zap.String("rpc_method", call.Method),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", respBody),
		)
		return nil, fmt.Errorf("%w: HTTP %d", ErrRequestFailed, resp.StatusCode)
	}

	var envelope struct {
		Status   string          `json:"status"`
		Response json.RawMessage `json:"response"`
		Error    json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if envelope.Status != "success" {
		c.logger.Error("CRM rpc call rejected",
			zap.String("rpc_method", call.Method),
			zap.ByteString("error", envelope.Error),
		)
		return nil, fmt.Errorf("%w: %s", ErrRPCFailed, call.Method)
	}
	return envelope.Response, nil
}
