package reconcile

import (
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// OrderEvent represents an inbound catalog order webhook event
// ---------------------------------------------------------------------------

// OrderEvent represents an inbound catalog order webhook event
type OrderEvent string

const (
	// OrderEventPlaced indicates the order was placed in the catalog
	OrderEventPlaced OrderEvent = "order.placed"
	// OrderEventCompleted indicates the order was validated
	OrderEventCompleted OrderEvent = "order.completed"
	// OrderEventShipmentCreated indicates a shipment was created for the order
	OrderEventShipmentCreated OrderEvent = "order.shipment_created"
	// OrderEventUnknown is any event name this engine does not react to
	OrderEventUnknown OrderEvent = ""
)

// ParseOrderEvent maps a webhook event name to a known event.
// Unrecognized names yield OrderEventUnknown; they are logged and ignored,
// never treated as errors.
func ParseOrderEvent(name string) OrderEvent {
	switch OrderEvent(name) {
	case OrderEventPlaced, OrderEventCompleted, OrderEventShipmentCreated:
		return OrderEvent(name)
	default:
		return OrderEventUnknown
	}
}

// String returns the string representation of OrderEvent
func (e OrderEvent) String() string {
	return string(e)
}

// ---------------------------------------------------------------------------
// DeliveryStep represents the CRM's named stage for a sales document
// ---------------------------------------------------------------------------

// DeliveryStep represents the CRM's named stage for a sales document
type DeliveryStep string

const (
	DeliveryStepWait    DeliveryStep = "wait"
	DeliveryStepPicking DeliveryStep = "picking"
	DeliveryStepSent    DeliveryStep = "sent"
)

// String returns the string representation of DeliveryStep
func (s DeliveryStep) String() string {
	return string(s)
}

// ---------------------------------------------------------------------------
// FulfillmentStatus represents the catalog-side fulfillment state
// ---------------------------------------------------------------------------

// FulfillmentStatus represents the catalog-side fulfillment state discovered
// by polling the logistics provider.
type FulfillmentStatus string

const (
	FulfillmentStatusPrepared FulfillmentStatus = "prepared"
	FulfillmentStatusShipped  FulfillmentStatus = "shipped"
)

// String returns the string representation of FulfillmentStatus
func (s FulfillmentStatus) String() string {
	return string(s)
}

// ---------------------------------------------------------------------------
// Order
// ---------------------------------------------------------------------------

// LineItem is a single order line as delivered by the catalog.
type LineItem struct {
	SKU       string
	Title     string
	Quantity  int
	UnitPrice decimal.Decimal
	TaxID     int64
	LineID    string
}

// Order is the catalog's order representation as carried by webhooks.
// SellerOrderID is zero until the order has been mirrored into the CRM.
type Order struct {
	OrderID           string
	CompanyID         string
	CompanyName       string
	CompanyExternalID string
	SellerOrderID     int64
	Items             []LineItem
	BillingAddress    Address
	ShippingAddress   Address
	CurrencyCode      string
	CreationDate      time.Time
	DeliveryDate      time.Time
	ShippingPrice     decimal.Decimal
	Email             string
}

// OrderTotal recomputes the order total as the sum of unit price times
// quantity over all items. Upstream totals are never trusted, to avoid drift.
func OrderTotal(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

// PendingOrder is a queue entry for an order awaiting a logistics
// confirmation. Entries live in volatile in-memory queues only.
type PendingOrder struct {
	OrderID       string
	SellerOrderID int64
	Items         []LineItem
}
