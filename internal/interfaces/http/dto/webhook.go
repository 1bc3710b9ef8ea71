package dto

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/syncbridge/backend/internal/domain/reconcile"
)

// AddressPayload is an address as it arrives on catalog webhooks.
type AddressPayload struct {
	CompanyName string `json:"company_name"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Name        string `json:"name"`
	Line1       string `json:"address_line_1"`
	Line2       string `json:"address_line_2"`
	PostalCode  string `json:"postal_code"`
	City        string `json:"city"`
	CountryCode string `json:"country_code"`
	Phone       string `json:"phone"`
}

// ToDomain converts the payload into the domain address.
func (p AddressPayload) ToDomain() reconcile.Address {
	return reconcile.Address{
		CompanyName: p.CompanyName,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		Name:        p.Name,
		Line1:       p.Line1,
		Line2:       p.Line2,
		PostalCode:  p.PostalCode,
		City:        p.City,
		CountryCode: p.CountryCode,
		Phone:       p.Phone,
	}
}

// ---------------------------------------------------------------------------
// Order webhook
// ---------------------------------------------------------------------------

// OrderItemPayload is one order line on the webhook.
type OrderItemPayload struct {
	SKU       string          `json:"sku"`
	Title     string          `json:"title"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	TaxID     int64           `json:"tax_id"`
	LineID    string          `json:"line_id"`
}

// OrderWebhookPayload is the catalog's order webhook body. The catalog sends a
// flat document: the event name sits alongside the order fields at the root.
type OrderWebhookPayload struct {
	Event             string             `json:"event" binding:"required"`
	OrderID           string             `json:"order_id" binding:"required"`
	CompanyID         string             `json:"company_id"`
	CompanyName       string             `json:"company_name"`
	CompanyExternalID string             `json:"company_external_id"`
	SellerOrderID     int64              `json:"seller_order_id"`
	Items             []OrderItemPayload `json:"items"`
	BillingAddress    AddressPayload     `json:"billing_address"`
	ShippingAddress   AddressPayload     `json:"shipping_address"`
	CurrencyCode      string             `json:"currency_code" binding:"omitempty,currency_code"`
	CreationDate      string             `json:"creation_date"`
	DeliveryDate      string             `json:"delivery_date"`
	ShippingPrice     decimal.Decimal    `json:"shipping_price"`
	Email             string             `json:"email"`
}

// ToDomain converts the webhook body into the domain order. A missing item
// collection is carried through as nil so the mapper can fail it with its
// typed error rather than this layer inventing an empty one.
func (p OrderWebhookPayload) ToDomain() (reconcile.Order, error) {
	creation, err := parseWebhookDate(p.CreationDate)
	if err != nil {
		return reconcile.Order{}, fmt.Errorf("invalid creation_date: %w", err)
	}
	delivery, err := parseWebhookDate(p.DeliveryDate)
	if err != nil {
		return reconcile.Order{}, fmt.Errorf("invalid delivery_date: %w", err)
	}

	var items []reconcile.LineItem
	if p.Items != nil {
		items = make([]reconcile.LineItem, 0, len(p.Items))
		for _, item := range p.Items {
			items = append(items, reconcile.LineItem{
				SKU:       item.SKU,
				Title:     item.Title,
				Quantity:  item.Quantity,
				UnitPrice: item.UnitPrice,
				TaxID:     item.TaxID,
				LineID:    item.LineID,
			})
		}
	}

	return reconcile.Order{
		OrderID:           p.OrderID,
		CompanyID:         p.CompanyID,
		CompanyName:       p.CompanyName,
		CompanyExternalID: p.CompanyExternalID,
		SellerOrderID:     p.SellerOrderID,
		Items:             items,
		BillingAddress:    p.BillingAddress.ToDomain(),
		ShippingAddress:   p.ShippingAddress.ToDomain(),
		CurrencyCode:      p.CurrencyCode,
		CreationDate:      creation,
		DeliveryDate:      delivery,
		ShippingPrice:     p.ShippingPrice,
		Email:             p.Email,
	}, nil
}

// ---------------------------------------------------------------------------
// Company webhook
// ---------------------------------------------------------------------------

// ContactPayload is a company contact on the webhook.
type ContactPayload struct {
	LastName  string `json:"last_name"`
	FirstName string `json:"first_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Position  string `json:"position"`
}

// CompanyWebhookPayload is the catalog's company webhook body. Flat like the
// order webhook: the event name sits alongside the company fields.
type CompanyWebhookPayload struct {
	Event              string           `json:"event" binding:"required"`
	ID                 string           `json:"id" binding:"required"`
	Name               string           `json:"name" binding:"required"`
	Code               string           `json:"code"`
	RegistrationNumber string           `json:"registration_number"`
	VATNumber          string           `json:"vat_number"`
	Website            string           `json:"website"`
	Contacts           []ContactPayload `json:"contacts"`
	BillingAddress     *AddressPayload  `json:"billing_address"`
	ShippingAddresses  []AddressPayload `json:"shipping_addresses"`
	CatalogNames       []string         `json:"catalog_names"`
}

// ToDomain converts the webhook body into the domain company.
func (p CompanyWebhookPayload) ToDomain() reconcile.Company {
	contacts := make([]reconcile.Contact, 0, len(p.Contacts))
	for _, c := range p.Contacts {
		contacts = append(contacts, reconcile.Contact{
			LastName:  c.LastName,
			FirstName: c.FirstName,
			Email:     c.Email,
			Phone:     c.Phone,
			Position:  c.Position,
		})
	}

	var billing *reconcile.Address
	if p.BillingAddress != nil {
		addr := p.BillingAddress.ToDomain()
		billing = &addr
	}
	shipping := make([]reconcile.Address, 0, len(p.ShippingAddresses))
	for _, a := range p.ShippingAddresses {
		shipping = append(shipping, a.ToDomain())
	}

	return reconcile.Company{
		ID:                 p.ID,
		Name:               p.Name,
		Code:               p.Code,
		RegistrationNumber: p.RegistrationNumber,
		VATNumber:          p.VATNumber,
		Website:            p.Website,
		Contacts:           contacts,
		BillingAddress:     billing,
		ShippingAddresses:  shipping,
		CatalogNames:       p.CatalogNames,
	}
}

// parseWebhookDate accepts the catalog's RFC3339 timestamps and tolerates a
// missing date as the zero time.
func parseWebhookDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}
