package reconcile

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/syncbridge/backend/internal/domain/reconcile"
)

// ErrNoSellerRef signals an order event that arrived before the order was
// ever mirrored into the CRM, so there is no document to act on.
var ErrNoSellerRef = errors.New("reconcile: order carries no CRM document reference")

// CRMOrderGateway is the CRM surface the order lifecycle needs.
type CRMOrderGateway interface {
	CreateOrder(ctx context.Context, payload reconcile.CRMOrderPayload) (int64, error)
	CreateInvoice(ctx context.Context, payload reconcile.CRMOrderPayload) (int64, error)
	UpdateDeliveryStep(ctx context.Context, docID int64, step reconcile.DeliveryStep) error
}

// CatalogOrderGateway is the catalog surface the order lifecycle needs.
type CatalogOrderGateway interface {
	UpdateOrderSellerRef(ctx context.Context, orderID string, sellerOrderID int64) error
}

// LogisticsGateway hands orders off to the fulfillment provider.
type LogisticsGateway interface {
	CreateOrder(ctx context.Context, payload reconcile.LogisticsOrderPayload) error
}

// FulfillmentQueue receives orders to be watched by the poller.
type FulfillmentQueue interface {
	EnqueuePrepared(entry reconcile.PendingOrder)
	EnqueueShipped(entry reconcile.PendingOrder)
}

// OrderService drives the order lifecycle across the three systems as the
// catalog's webhooks report state changes.
type OrderService struct {
	crm       CRMOrderGateway
	catalog   CatalogOrderGateway
	logistics LogisticsGateway
	queue     FulfillmentQueue
	guard     *Guard
	mapping   reconcile.MappingConfig
	logger    *zap.Logger
	now       func() time.Time
}

// NewOrderService creates a new OrderService.
func NewOrderService(
	crm CRMOrderGateway,
	catalog CatalogOrderGateway,
	logistics LogisticsGateway,
	queue FulfillmentQueue,
	guard *Guard,
	mapping reconcile.MappingConfig,
	logger *zap.Logger,
) *OrderService {
	return &OrderService{
		crm:       crm,
		catalog:   catalog,
		logistics: logistics,
		queue:     queue,
		guard:     guard,
		mapping:   mapping,
		logger:    logger.Named("order_service"),
		now:       time.Now,
	}
}

// HandleEvent dispatches one catalog order webhook event. Unknown events are
// logged and ignored; they never fail the webhook.
func (s *OrderService) HandleEvent(ctx context.Context, event reconcile.OrderEvent, order reconcile.Order) error {
	switch event {
	case reconcile.OrderEventPlaced:
		return s.handlePlaced(ctx, order)
	case reconcile.OrderEventCompleted:
		return s.handleCompleted(ctx, order)
	case reconcile.OrderEventShipmentCreated:
		return s.handleShipmentCreated(ctx, order)
	default:
		s.logger.Info("Ignoring unknown order event",
			zap.String("order_id", order.OrderID),
		)
		return nil
	}
}

// handlePlaced mirrors a freshly placed order into the CRM and the logistics
// provider. The write-back of the CRM document id to the catalog echoes as
// another order webhook, so the whole sequence runs under the order guard and
// an already-busy guard means this event is our own echo: drop it.
func (s *OrderService) handlePlaced(ctx context.Context, order reconcile.Order) error {
	release, ok := s.guard.TryAcquire(EntityOrder)
	if !ok {
		s.logger.Info("Order sync already in progress, dropping event",
			zap.String("order_id", order.OrderID),
		)
		return nil
	}
	defer release()

	payload, err := reconcile.MapOrderToCRMOrder(order, s.mapping)
	if err != nil {
		return err
	}

	crmOrderID, err := s.crm.CreateOrder(ctx, payload)
	if err != nil {
		return err
	}
	if err := s.crm.UpdateDeliveryStep(ctx, crmOrderID, reconcile.DeliveryStepWait); err != nil {
		return err
	}
	if err := s.catalog.UpdateOrderSellerRef(ctx, order.OrderID, crmOrderID); err != nil {
		return err
	}

	logisticsPayload, err := reconcile.MapOrderToLogisticsOrder(order)
	if err != nil {
		return err
	}
	if err := s.logistics.CreateOrder(ctx, logisticsPayload); err != nil {
		return err
	}

	s.queue.EnqueuePrepared(reconcile.PendingOrder{
		OrderID:       order.OrderID,
		SellerOrderID: crmOrderID,
		Items:         order.Items,
	})

	s.logger.Info("Order placed and mirrored",
		zap.String("order_id", order.OrderID),
		zap.Int64("crm_order_id", crmOrderID),
	)
	return nil
}

// handleCompleted moves the CRM document to picking. No document is created.
func (s *OrderService) handleCompleted(ctx context.Context, order reconcile.Order) error {
	if order.SellerOrderID == 0 {
		return ErrNoSellerRef
	}
	if err := s.crm.UpdateDeliveryStep(ctx, order.SellerOrderID, reconcile.DeliveryStepPicking); err != nil {
		return err
	}
	s.logger.Info("Order completed",
		zap.String("order_id", order.OrderID),
		zap.Int64("crm_order_id", order.SellerOrderID),
	)
	return nil
}

// handleShipmentCreated moves the CRM document to sent, raises the invoice
// against it, and queues the order for shipment confirmation.
func (s *OrderService) handleShipmentCreated(ctx context.Context, order reconcile.Order) error {
	if order.SellerOrderID == 0 {
		return ErrNoSellerRef
	}
	if err := s.crm.UpdateDeliveryStep(ctx, order.SellerOrderID, reconcile.DeliveryStepSent); err != nil {
		return err
	}

	payload, err := reconcile.MapOrderToCRMInvoice(order, s.mapping, order.SellerOrderID, s.now())
	if err != nil {
		return err
	}
	invoiceID, err := s.crm.CreateInvoice(ctx, payload)
	if err != nil {
		return err
	}

	s.queue.EnqueueShipped(reconcile.PendingOrder{
		OrderID:       order.OrderID,
		SellerOrderID: order.SellerOrderID,
		Items:         order.Items,
	})

	s.logger.Info("Shipment created, invoice raised",
		zap.String("order_id", order.OrderID),
		zap.Int64("crm_order_id", order.SellerOrderID),
		zap.Int64("crm_invoice_id", invoiceID),
	)
	return nil
}
