package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/averlon/podstore/internal/domain/order"
)

// Config holds the complete application configuration, loadable from
// environment variables (POD_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (POD_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	RedisURL     string `default:"redis://localhost:6379/0" usage:"Redis connection URL (POD_REDIS_URL or REDIS_URL)" flag:"redis-url"`
	ImageBaseURL string `default:"" usage:"Base URL for product images (e.g. https://cdn.example.com/images)" flag:"image-base-url"`
	APIKeyPepper string `usage:"HMAC pepper for admin API key hashing (POD_API_KEY_PEPPER)" flag:"api-key-pepper"`
	Session      SessionConfig
	Cache        CacheConfig
	Pricing      PricingConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// SessionConfig controls visitor sessions and the cart they carry.
type SessionConfig struct {
	TTL          time.Duration `default:"24h" usage:"Idle session lifetime in Redis"`
	CookieMaxAge int           `default:"2592000" usage:"Session cookie Max-Age in seconds" flag:"cookie-max-age"`
	SecureCookie bool          `default:"false" usage:"Set the Secure flag on the session cookie" flag:"secure-cookie"`
}

// CacheConfig controls the catalog read-through cache.
type CacheConfig struct {
	Enabled bool          `default:"true" usage:"Enable the Redis catalog cache"`
	TTL     time.Duration `default:"5m" usage:"Catalog cache entry lifetime"`
}

// PricingConfig holds the tax and shipping policy as decimal strings, so the
// configured rates survive the trip into money math without float drift.
type PricingConfig struct {
	TaxRate         string `default:"0.08" usage:"Flat tax rate applied to the item subtotal" flag:"tax-rate"`
	ShippingFlat    string `default:"9.99" usage:"Flat shipping charge below the free threshold" flag:"shipping-flat"`
	FreeShippingMin string `default:"100" usage:"Subtotal at which shipping becomes free" flag:"free-shipping-min"`
}

// Pricing parses the configured rates into the domain policy.
func (p PricingConfig) Pricing() (order.Pricing, error) {
	taxRate, err := decimal.NewFromString(p.TaxRate)
	if err != nil {
		return order.Pricing{}, errors.Wrap(err, "parse tax rate")
	}
	shippingFlat, err := decimal.NewFromString(p.ShippingFlat)
	if err != nil {
		return order.Pricing{}, errors.Wrap(err, "parse shipping flat rate")
	}
	freeMin, err := decimal.NewFromString(p.FreeShippingMin)
	if err != nil {
		return order.Pricing{}, errors.Wrap(err, "parse free shipping minimum")
	}
	return order.Pricing{
		TaxRate:         taxRate,
		ShippingFlat:    shippingFlat,
		FreeShippingMin: freeMin,
	}, nil
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"true" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "POD",
		Files:     []string{"config.yaml", "/etc/podstore/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set POD_DATABASE_URL or DATABASE_URL")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's POD_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if v := os.Getenv("REDIS_URL"); v != "" && c.RedisURL == "redis://localhost:6379/0" {
		c.RedisURL = v
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
