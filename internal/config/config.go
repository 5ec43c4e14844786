package config

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration parsed from environment variables.
type Config struct {
	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8080"`
	DBConnString    string        `envconfig:"DB_DSN"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	CartCacheSize   int           `envconfig:"CART_CACHE_SIZE" default:"10000"`
	// TrustedProxies lists the proxies whose X-Forwarded-For is believed. Empty trusts none.
	TrustedProxies []string `envconfig:"TRUSTED_PROXIES"`

	Storefront StorefrontConfig
	Checkout   CheckoutConfig
	RateLimit  RateLimitConfig
	CORS       CORSConfig
	Admin      AdminConfig
}

// StorefrontConfig points at the hosted commerce backend. An empty Domain selects the
// in-process catalog instead.
type StorefrontConfig struct {
	Domain      string        `envconfig:"STOREFRONT_DOMAIN"`
	AccessToken string        `envconfig:"STOREFRONT_ACCESS_TOKEN"`
	APIVersion  string        `envconfig:"STOREFRONT_API_VERSION" default:"2025-07"`
	Timeout     time.Duration `envconfig:"STOREFRONT_TIMEOUT" default:"10s"`
	// Currency prices the in-process catalog and labels the total of an empty cart.
	Currency string `envconfig:"STOREFRONT_CURRENCY" default:"EUR"`
	// CatalogCSV adds products from a CSV file to the in-process catalog.
	CatalogCSV string `envconfig:"CATALOG_CSV"`
}

// CheckoutConfig configures deposit checkout for leads. Without a Stripe key the
// checkout URL points straight at the success page.
type CheckoutConfig struct {
	StripeSecretKey string `envconfig:"STRIPE_SECRET_KEY"`
	PublicBaseURL   string `envconfig:"PUBLIC_BASE_URL" default:""`
	SuccessPath     string `envconfig:"CHECKOUT_SUCCESS_PATH" default:"/checkout/success"`
	CancelPath      string `envconfig:"CHECKOUT_CANCEL_PATH" default:"/"`
	DepositCents    int64  `envconfig:"DEPOSIT_AMOUNT_CENTS" default:"4900"`
	DepositCurrency string `envconfig:"DEPOSIT_CURRENCY" default:"EUR"`
}

type RateLimitConfig struct {
	Limit  int           `envconfig:"LEAD_RATE_LIMIT" default:"3"`
	Window time.Duration `envconfig:"LEAD_RATE_WINDOW" default:"1h"`
}

type CORSConfig struct {
	AllowOrigins []string      `envconfig:"CORS_ALLOW_ORIGINS" default:"http://localhost:5173,http://localhost:8080"`
	MaxAge       time.Duration `envconfig:"CORS_MAX_AGE" default:"12h"`
}

// AdminConfig guards the lead listing. An empty PasswordHash disables the admin routes.
type AdminConfig struct {
	Username     string `envconfig:"ADMIN_USERNAME" default:"admin"`
	PasswordHash string `envconfig:"ADMIN_PASSWORD_HASH"`
}

// FromEnv builds Config with defaults, overridden by environment variables.
func FromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, errors.Wrap(err, "process env config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks combinations envconfig cannot express.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Storefront.Domain) != "" && strings.TrimSpace(c.Storefront.AccessToken) == "" {
		return errors.New("STOREFRONT_ACCESS_TOKEN is required when STOREFRONT_DOMAIN is set")
	}
	if c.RateLimit.Limit <= 0 || c.RateLimit.Window <= 0 {
		return errors.New("LEAD_RATE_LIMIT and LEAD_RATE_WINDOW must be positive")
	}
	if c.Checkout.DepositCents <= 0 {
		return errors.New("DEPOSIT_AMOUNT_CENTS must be positive")
	}
	if c.CartCacheSize <= 0 {
		return errors.New("CART_CACHE_SIZE must be positive")
	}
	return nil
}

// UsePostgres reports whether a database is configured for leads and cart state.
func (c Config) UsePostgres() bool {
	return strings.TrimSpace(c.DBConnString) != ""
}
