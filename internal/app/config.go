package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (MNK_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (MNK_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Paymob      PaymobConfig
	Checkout    CheckoutConfig
	Tracking    TrackingConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// PaymobConfig holds the payment gateway credentials. A zero IntegrationID
// leaves the gateway unconfigured; checkout then creates pending orders
// without a redirect.
type PaymobConfig struct {
	BaseURL       string `default:"https://accept.paymob.com" usage:"Paymob API base URL" flag:"paymob-base-url"`
	SecretKey     string `usage:"Paymob API secret key" flag:"paymob-secret-key"`
	PublicKey     string `usage:"Paymob public key for the hosted checkout URL" flag:"paymob-public-key"`
	IntegrationID int64  `usage:"Paymob integration id" flag:"paymob-integration-id"`
	HMACSecret    string `usage:"Paymob webhook HMAC secret" flag:"paymob-hmac-secret"`
}

// CheckoutConfig holds the URLs handed to the gateway at intention creation.
type CheckoutConfig struct {
	NotifyURL     string `usage:"Public webhook URL registered with the gateway" flag:"notify-url"`
	RedirectURL   string `usage:"Customer redirect URL after payment" flag:"redirect-url"`
	ExpirySeconds int    `default:"3600" usage:"Payment intention expiry in seconds" flag:"intention-expiry"`
}

// TrackingConfig configures the Kafka purchase event stream. No brokers means
// tracking is disabled.
type TrackingConfig struct {
	Brokers []string `usage:"Kafka broker addresses for purchase tracking" flag:"kafka-brokers"`
	Topic   string   `default:"purchases" usage:"Kafka topic for purchase events" flag:"kafka-topic"`
}

// RateLimitConfig controls the per-client rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins []string `default:"*" usage:"Allowed CORS origins"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "MNK",
		Files:     []string{"config.yaml", "/etc/manasik/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set MNK_DATABASE_URL or DATABASE_URL")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables
// (Railway, Render, etc.) that use standard names like DATABASE_URL and PORT
// onto the MNK_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
