package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCatalogProxy struct {
	orders    json.RawMessage
	upserted  json.RawMessage
	getErr    error
	upsertErr error
}

func (f *fakeCatalogProxy) GetOrders(context.Context) (json.RawMessage, error) {
	return f.orders, f.getErr
}

func (f *fakeCatalogProxy) CreateOrUpdateOrder(_ context.Context, order json.RawMessage) (json.RawMessage, error) {
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	f.upserted = order
	return json.RawMessage(`{"id":"ord-1"}`), nil
}

func newCatalogRouter(t *testing.T) (*gin.Engine, *fakeCatalogProxy) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	proxy := &fakeCatalogProxy{orders: json.RawMessage(`[{"id":"ord-1"}]`)}
	handler := NewCatalogHandler(proxy, zap.NewNop())

	engine := gin.New()
	handler.RegisterRoutes(engine.Group("/api/v1"))
	return engine, proxy
}

func TestCatalogListOrders(t *testing.T) {
	t.Run("relays the upstream list", func(t *testing.T) {
		engine, _ := newCatalogRouter(t)

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/catalog/orders", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"success": true, "data": [{"id": "ord-1"}]}`, w.Body.String())
	})

	t.Run("upstream failure is a 500", func(t *testing.T) {
		engine, proxy := newCatalogRouter(t)
		proxy.getErr = errors.New("catalog down")

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/catalog/orders", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), `"UPSTREAM_ERROR"`)
	})
}

func TestCatalogUpsertOrder(t *testing.T) {
	t.Run("relays the body untouched", func(t *testing.T) {
		engine, proxy := newCatalogRouter(t)

		body := `{"id": "ord-1", "items": []}`
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/catalog/orders", strings.NewReader(body)))

		assert.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, proxy.upserted)
		assert.JSONEq(t, body, string(proxy.upserted))
	})

	t.Run("invalid json is a 400", func(t *testing.T) {
		engine, proxy := newCatalogRouter(t)

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/catalog/orders", strings.NewReader(`{broken`)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Nil(t, proxy.upserted)
	})
}
