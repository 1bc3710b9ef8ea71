package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/syncbridge/backend/internal/domain/reconcile"
	"github.com/syncbridge/backend/internal/interfaces/http/dto"
)

// OrderEventHandler processes catalog order events.
type OrderEventHandler interface {
	HandleEvent(ctx context.Context, event reconcile.OrderEvent, order reconcile.Order) error
}

// CompanyEventHandler processes catalog company events.
type CompanyEventHandler interface {
	HandleEvent(ctx context.Context, event reconcile.CompanyEvent, company reconcile.Company) error
}

// WebhookHandler receives the catalog's order and company webhooks
type WebhookHandler struct {
	BaseHandler
	orders    OrderEventHandler
	companies CompanyEventHandler
	logger    *zap.Logger
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(orders OrderEventHandler, companies CompanyEventHandler, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		orders:    orders,
		companies: companies,
		logger:    logger.Named("webhook_handler"),
	}
}

// RegisterRoutes registers webhook routes
func (h *WebhookHandler) RegisterRoutes(rg *gin.RouterGroup) {
	webhooks := rg.Group("/webhooks")
	{
		webhooks.POST("/orders", h.HandleOrderWebhook)
		webhooks.POST("/companies", h.HandleCompanyWebhook)
	}
}

// HandleOrderWebhook processes one catalog order event. Processing runs
// synchronously: a 200 means the event was fully applied (or deliberately
// dropped), a 500 means the sender should redeliver.
func (h *WebhookHandler) HandleOrderWebhook(c *gin.Context) {
	var payload dto.OrderWebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	order, err := payload.ToDomain()
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	event := reconcile.ParseOrderEvent(payload.Event)
	h.logger.Info("Order webhook received",
		zap.String("event", payload.Event),
		zap.String("order_id", order.OrderID),
	)

	if err := h.orders.HandleEvent(c.Request.Context(), event, order); err != nil {
		h.logger.Error("Order event processing failed",
			zap.String("event", payload.Event),
			zap.String("order_id", order.OrderID),
			zap.Error(err),
		)
		h.InternalError(c, ErrCodeSyncFailed, err)
		return
	}
	h.Success(c, nil)
}

// HandleCompanyWebhook processes one catalog company event.
func (h *WebhookHandler) HandleCompanyWebhook(c *gin.Context) {
	var payload dto.CompanyWebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	company := payload.ToDomain()

	event := reconcile.ParseCompanyEvent(payload.Event)
	h.logger.Info("Company webhook received",
		zap.String("event", payload.Event),
		zap.String("company_id", company.ID),
	)

	if err := h.companies.HandleEvent(c.Request.Context(), event, company); err != nil {
		h.logger.Error("Company event processing failed",
			zap.String("event", payload.Event),
			zap.String("company_id", company.ID),
			zap.Error(err),
		)
		h.InternalError(c, ErrCodeSyncFailed, err)
		return
	}
	h.Success(c, nil)
}
