package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	reconcileapp "github.com/syncbridge/backend/internal/application/reconcile"
	"github.com/syncbridge/backend/internal/domain/reconcile"
	"github.com/syncbridge/backend/internal/infrastructure/catalog"
	"github.com/syncbridge/backend/internal/infrastructure/config"
	"github.com/syncbridge/backend/internal/infrastructure/crm"
	"github.com/syncbridge/backend/internal/infrastructure/logger"
	"github.com/syncbridge/backend/internal/infrastructure/logistics"
	"github.com/syncbridge/backend/internal/infrastructure/scheduler"
	"github.com/syncbridge/backend/internal/interfaces/http/dto"
	"github.com/syncbridge/backend/internal/interfaces/http/handler"
	"github.com/syncbridge/backend/internal/interfaces/http/middleware"
	"github.com/syncbridge/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting sync bridge",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// External clients
	catalogClient, err := catalog.NewClient(&catalog.Config{
		BaseURL:        cfg.Catalog.BaseURL,
		APIKey:         cfg.Catalog.APIKey,
		TimeoutSeconds: cfg.Catalog.TimeoutSeconds,
	}, log)
	if err != nil {
		log.Fatal("Failed to create catalog client", zap.Error(err))
	}

	crmClient, err := crm.NewClient(&crm.Config{
		APIBaseURL:     cfg.CRM.APIBaseURL,
		RPCURL:         cfg.CRM.RPCURL,
		AuthURL:        cfg.CRM.AuthURL,
		ClientID:       cfg.CRM.ClientID,
		ClientSecret:   cfg.CRM.ClientSecret,
		TimeoutSeconds: cfg.CRM.TimeoutSeconds,
	}, log)
	if err != nil {
		log.Fatal("Failed to create CRM client", zap.Error(err))
	}

	logisticsClient, err := logistics.NewClient(&logistics.Config{
		BaseURL:        cfg.Logistics.BaseURL,
		MerchantNumber: cfg.Logistics.MerchantNumber,
		APIKey:         cfg.Logistics.APIKey,
		TimeoutSeconds: cfg.Logistics.TimeoutSeconds,
	}, log)
	if err != nil {
		log.Fatal("Failed to create logistics client", zap.Error(err))
	}

	// Fulfillment poller
	poller := scheduler.NewFulfillmentPoller(logisticsClient, catalogClient, log, scheduler.FulfillmentPollerConfig{
		Enabled:     cfg.Poller.Enabled,
		Interval:    cfg.Poller.Interval,
		TickTimeout: cfg.Poller.TickTimeout,
	})

	// Application services
	guard := reconcileapp.NewGuard()
	mapping := reconcile.MappingConfig{
		OwnerID:       cfg.CRM.OwnerID,
		ParentModelID: cfg.CRM.ParentModelID,
	}
	orderService := reconcileapp.NewOrderService(crmClient, catalogClient, logisticsClient, poller, guard, mapping, log)
	companyService := reconcileapp.NewCompanyService(crmClient, catalogClient, guard, cfg.Sync.ContactForceUpdate, log)

	// HTTP engine
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	if err := dto.RegisterValidations(); err != nil {
		log.Fatal("Failed to register payload validations", zap.Error(err))
	}
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))

	healthHandler := handler.NewHealthHandler()
	engine.GET("/healthz", healthHandler.Healthz)

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(handler.NewWebhookHandler(orderService, companyService, log))
	r.Register(handler.NewCatalogHandler(catalogClient, log))
	r.Setup()

	// Start background poller
	if err := poller.Start(context.Background()); err != nil {
		log.Fatal("Failed to start fulfillment poller", zap.Error(err))
	}

	// Point the catalog's webhooks at this service. Failure is logged, not
	// fatal: the catalog keeps its previous registration.
	if cfg.Webhook.RegisterOnStartup {
		registerWebhooks(catalogClient, cfg, log)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      engine,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}
	if err := poller.Stop(ctx); err != nil {
		log.Error("Fulfillment poller shutdown incomplete", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// registerWebhooks registers both catalog webhooks against this service's
// public URL.
func registerWebhooks(client *catalog.Client, cfg *config.Config, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	base := strings.TrimRight(cfg.Webhook.PublicBaseURL, "/")
	orderURL := base + "/api/v1/webhooks/orders"
	companyURL := base + "/api/v1/webhooks/companies"

	if err := client.RegisterOrderWebhook(ctx, orderURL, cfg.Webhook.CallbackKey); err != nil {
		log.Error("Failed to register order webhook", zap.String("url", orderURL), zap.Error(err))
	} else {
		log.Info("Order webhook registered", zap.String("url", orderURL))
	}
	if err := client.RegisterCompanyWebhook(ctx, companyURL, cfg.Webhook.CallbackKey); err != nil {
		log.Error("Failed to register company webhook", zap.String("url", companyURL), zap.Error(err))
	} else {
		log.Info("Company webhook registered", zap.String("url", companyURL))
	}
}
