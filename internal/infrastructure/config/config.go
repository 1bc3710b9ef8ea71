package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Catalog   CatalogConfig
	CRM       CRMConfig
	Logistics LogisticsConfig
	Poller    PollerConfig
	Sync      SyncConfig
	Webhook   WebhookConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// CatalogConfig holds catalog API settings
type CatalogConfig struct {
	BaseURL        string
	APIKey         string
	TimeoutSeconds int
}

// CRMConfig holds CRM API settings
type CRMConfig struct {
	APIBaseURL     string
	RPCURL         string
	AuthURL        string
	ClientID       string
	ClientSecret   string
	OwnerID        int64
	ParentModelID  int64
	TimeoutSeconds int
}

// LogisticsConfig holds fulfillment provider settings
type LogisticsConfig struct {
	BaseURL        string
	MerchantNumber string
	APIKey         string
	TimeoutSeconds int
}

// PollerConfig holds fulfillment poller settings
type PollerConfig struct {
	Enabled     bool
	Interval    time.Duration
	TickTimeout time.Duration
}

// SyncConfig holds reconciliation behavior toggles
type SyncConfig struct {
	// ContactForceUpdate writes matched contacts even when no field changed
	ContactForceUpdate bool
}

// WebhookConfig holds the catalog webhook registration settings
type WebhookConfig struct {
	// RegisterOnStartup registers both webhooks with the catalog at boot
	RegisterOnStartup bool
	// PublicBaseURL is this service's externally reachable base URL
	PublicBaseURL string
	// CallbackKey is the key the catalog sends back on webhook deliveries
	CallbackKey string
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with SYNCBRIDGE_ prefix (e.g., SYNCBRIDGE_CRM_CLIENT_SECRET)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("SYNCBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:  v.GetDuration("http.read_timeout"),
			WriteTimeout: v.GetDuration("http.write_timeout"),
			IdleTimeout:  v.GetDuration("http.idle_timeout"),
		},
		Catalog: CatalogConfig{
			BaseURL:        v.GetString("catalog.base_url"),
			APIKey:         v.GetString("catalog.api_key"),
			TimeoutSeconds: v.GetInt("catalog.timeout_seconds"),
		},
		CRM: CRMConfig{
			APIBaseURL:     v.GetString("crm.api_base_url"),
			RPCURL:         v.GetString("crm.rpc_url"),
			AuthURL:        v.GetString("crm.auth_url"),
			ClientID:       v.GetString("crm.client_id"),
			ClientSecret:   v.GetString("crm.client_secret"),
			OwnerID:        v.GetInt64("crm.owner_id"),
			ParentModelID:  v.GetInt64("crm.parent_model_id"),
			TimeoutSeconds: v.GetInt("crm.timeout_seconds"),
		},
		Logistics: LogisticsConfig{
			BaseURL:        v.GetString("logistics.base_url"),
			MerchantNumber: v.GetString("logistics.merchant_number"),
			APIKey:         v.GetString("logistics.api_key"),
			TimeoutSeconds: v.GetInt("logistics.timeout_seconds"),
		},
		Poller: PollerConfig{
			Enabled:     v.GetBool("poller.enabled"),
			Interval:    v.GetDuration("poller.interval"),
			TickTimeout: v.GetDuration("poller.tick_timeout"),
		},
		Sync: SyncConfig{
			ContactForceUpdate: v.GetBool("sync.contact_force_update"),
		},
		Webhook: WebhookConfig{
			RegisterOnStartup: v.GetBool("webhook.register_on_startup"),
			PublicBaseURL:     v.GetString("webhook.public_base_url"),
			CallbackKey:       v.GetString("webhook.callback_key"),
		},
	}

	applyDefaults(cfg, v)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config, v *viper.Viper) {
	if cfg.App.Name == "" {
		cfg.App.Name = "syncbridge"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		if cfg.App.Env == "production" {
			cfg.Log.Format = "json"
		} else {
			cfg.Log.Format = "console"
		}
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 30 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.Catalog.TimeoutSeconds == 0 {
		cfg.Catalog.TimeoutSeconds = 30
	}
	if cfg.CRM.TimeoutSeconds == 0 {
		cfg.CRM.TimeoutSeconds = 30
	}
	if cfg.Logistics.TimeoutSeconds == 0 {
		cfg.Logistics.TimeoutSeconds = 30
	}
	if !v.IsSet("poller.enabled") {
		cfg.Poller.Enabled = true
	}
	if cfg.Poller.Interval == 0 {
		cfg.Poller.Interval = 5 * time.Minute
	}
	if cfg.Poller.TickTimeout == 0 {
		cfg.Poller.TickTimeout = 2 * time.Minute
	}
	if !v.IsSet("sync.contact_force_update") {
		cfg.Sync.ContactForceUpdate = true
	}
}

// validate checks required settings
func (c *Config) validate() error {
	if c.Catalog.BaseURL == "" {
		return fmt.Errorf("catalog.base_url is required")
	}
	if c.Catalog.APIKey == "" {
		return fmt.Errorf("catalog.api_key is required")
	}
	if c.CRM.APIBaseURL == "" || c.CRM.RPCURL == "" || c.CRM.AuthURL == "" {
		return fmt.Errorf("crm.api_base_url, crm.rpc_url and crm.auth_url are required")
	}
	if c.CRM.ClientID == "" || c.CRM.ClientSecret == "" {
		return fmt.Errorf("crm.client_id and crm.client_secret are required")
	}
	if c.CRM.OwnerID == 0 || c.CRM.ParentModelID == 0 {
		return fmt.Errorf("crm.owner_id and crm.parent_model_id are required")
	}
	if c.Logistics.BaseURL == "" {
		return fmt.Errorf("logistics.base_url is required")
	}
	if c.Logistics.MerchantNumber == "" || c.Logistics.APIKey == "" {
		return fmt.Errorf("logistics.merchant_number and logistics.api_key are required")
	}
	if c.Webhook.RegisterOnStartup && c.Webhook.PublicBaseURL == "" {
		return fmt.Errorf("webhook.public_base_url is required when webhook.register_on_startup is set")
	}
	return nil
}

// IsProduction returns true when running in the production environment
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}
