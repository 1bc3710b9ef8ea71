package handler

import (
	"context"
	"encoding/json"
	"io"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CatalogProxy is the catalog surface exposed by the passthrough endpoints.
type CatalogProxy interface {
	GetOrders(ctx context.Context) (json.RawMessage, error)
	CreateOrUpdateOrder(ctx context.Context, order json.RawMessage) (json.RawMessage, error)
}

// CatalogHandler exposes a thin passthrough to the catalog's order API, used
// by back-office tooling that should not hold catalog credentials itself.
type CatalogHandler struct {
	BaseHandler
	catalog CatalogProxy
	logger  *zap.Logger
}

// NewCatalogHandler creates a new CatalogHandler
func NewCatalogHandler(catalog CatalogProxy, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalog: catalog,
		logger:  logger.Named("catalog_handler"),
	}
}

// RegisterRoutes registers catalog passthrough routes
func (h *CatalogHandler) RegisterRoutes(rg *gin.RouterGroup) {
	catalog := rg.Group("/catalog")
	{
		catalog.GET("/orders", h.ListOrders)
		catalog.POST("/orders", h.UpsertOrder)
	}
}

// ListOrders relays the catalog's order list.
func (h *CatalogHandler) ListOrders(c *gin.Context) {
	orders, err := h.catalog.GetOrders(c.Request.Context())
	if err != nil {
		h.InternalError(c, ErrCodeUpstream, err)
		return
	}
	h.Success(c, orders)
}

// UpsertOrder relays an order document to the catalog untouched.
func (h *CatalogHandler) UpsertOrder(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	if !json.Valid(body) {
		h.BadRequest(c, "request body is not valid JSON")
		return
	}

	result, err := h.catalog.CreateOrUpdateOrder(c.Request.Context(), body)
	if err != nil {
		h.InternalError(c, ErrCodeUpstream, err)
		return
	}
	h.Success(c, result)
}
