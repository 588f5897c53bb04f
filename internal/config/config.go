package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Redis (claims store + rate limiting)
	RedisURL string `env:"REDIS_URL,required"`

	// Root identity. The one reserved super-admin, matched case-insensitively.
	RootAdminEmail string `env:"ROOT_ADMIN_EMAIL,required"`

	// JWT Configuration
	JWTHS256Secret      string `env:"JWT_HS256_SECRET,required"`    // Base64-encoded HMAC secret
	JWTAllowedIssuers   string `env:"JWT_ALLOWED_ISSUERS,required"` // CSV list of allowed issuers (e.g., "docroute-web")
	JWTAudience         string `env:"JWT_AUDIENCE,required"`        // Expected JWT audience
	JWTClockSkewSeconds int    `env:"JWT_CLOCK_SKEW_SECONDS" envDefault:"60"`
	JWTPublicKeyIdPV1   string `env:"JWT_PUBLIC_KEY_IDP_V1"` // Optional RS256 public key for the identity provider issuer

	// S2S (Service-to-Service) Tokens
	S2STokenIdP string `env:"S2S_TOKEN_IDP"` // identity provider webhook (first-auth provisioning)

	// Claims store: empty = Redis-backed; otherwise the base URL of the provider's admin API
	ClaimsAdminURL string `env:"CLAIMS_ADMIN_URL"`

	// Server
	AppEnv string `env:"APP_ENV" envDefault:"production"`
	Port   string `env:"PORT" envDefault:"3002"`

	// Optional token protecting the /metrics endpoint. Empty = open access.
	MetricsToken string `env:"METRICS_TOKEN"`

	// Rate Limiting
	RateLimitPerActorPerMin int `env:"RATE_LIMIT_PER_ACTOR_PER_MIN" envDefault:"100"`
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate performs custom validation on the configuration
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.RootAdminEmail == "" {
		return fmt.Errorf("ROOT_ADMIN_EMAIL is required")
	}
	if !strings.Contains(c.RootAdminEmail, "@") {
		return fmt.Errorf("ROOT_ADMIN_EMAIL must be an email address")
	}
	// Stored lowercased so every comparison is case-insensitive
	c.RootAdminEmail = strings.ToLower(strings.TrimSpace(c.RootAdminEmail))

	if c.JWTHS256Secret == "" {
		return fmt.Errorf("JWT_HS256_SECRET is required")
	}

	issuers := c.GetAllowedIssuers()
	if len(issuers) == 0 {
		return fmt.Errorf("JWT_ALLOWED_ISSUERS must contain at least one valid issuer")
	}

	if c.JWTAudience == "" {
		return fmt.Errorf("JWT_AUDIENCE is required")
	}

	if c.JWTClockSkewSeconds < 0 {
		return fmt.Errorf("JWT_CLOCK_SKEW_SECONDS must be non-negative")
	}

	if c.RateLimitPerActorPerMin <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_ACTOR_PER_MIN must be positive")
	}

	return nil
}

// GetAllowedIssuers returns the list of allowed JWT issuers
func (c *Config) GetAllowedIssuers() []string {
	issuers := strings.Split(c.JWTAllowedIssuers, ",")
	result := make([]string, 0, len(issuers))
	for _, issuer := range issuers {
		trimmed := strings.TrimSpace(issuer)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
