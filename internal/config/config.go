package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"marketplace-auth/internal/credential"
	"marketplace-auth/internal/token"
)

type Config struct {
	ServerPort                string
	ServerReadHeaderTimeout   time.Duration
	ServerWriteTimeout        time.Duration
	ServerIdleTimeout         time.Duration
	RequestTimeout            time.Duration
	DatabaseURL               string
	DBMaxConns                int32
	DBMinConns                int32
	JWTIssuer                 string
	JWTAudience               string
	JWTLifetime               time.Duration
	JWTSigningKey             string
	PasswordIterations        int
	CORSOrigins               []string
	RateLimitRPM              int
	AuthRateLimitRPM          int
	TrustedProxies            []string
	RevocationCleanupInterval time.Duration
	AdminUsername             string
	AdminEmail                string
	AdminPassword             string
	LogLevel                  string
	LogFormat                 string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort:                getEnv("SERVER_PORT", "8080"),
		ServerReadHeaderTimeout:   getDuration("SERVER_READ_HEADER_TIMEOUT", 10*time.Second),
		ServerWriteTimeout:        getDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		ServerIdleTimeout:         getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		RequestTimeout:            getDuration("REQUEST_TIMEOUT", 30*time.Second),
		DatabaseURL:               strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxConns:                int32(getInt("DB_MAX_CONNS", 10)),
		DBMinConns:                int32(getInt("DB_MIN_CONNS", 1)),
		JWTIssuer:                 getEnv("JWT_ISSUER", "marketplace-auth"),
		JWTAudience:               getEnv("JWT_AUDIENCE", "marketplace-clients"),
		JWTLifetime:               time.Duration(getInt("JWT_LIFETIME_MINUTES", 60)) * time.Minute,
		JWTSigningKey:             strings.TrimSpace(os.Getenv("JWT_SIGNING_KEY")),
		PasswordIterations:        getInt("PBKDF2_ITERATIONS", credential.DefaultIterations),
		CORSOrigins:               splitCSV(getEnv("CORS_ORIGINS", "*")),
		RateLimitRPM:              getInt("RATE_LIMIT_RPM", 100),
		AuthRateLimitRPM:          getInt("AUTH_RATE_LIMIT_RPM", 10),
		TrustedProxies:            splitCSV(os.Getenv("TRUSTED_PROXIES")),
		RevocationCleanupInterval: getDuration("REVOCATION_CLEANUP_INTERVAL", time.Hour),
		AdminUsername:             strings.TrimSpace(os.Getenv("ADMIN_USERNAME")),
		AdminEmail:                strings.TrimSpace(os.Getenv("ADMIN_EMAIL")),
		AdminPassword:             os.Getenv("ADMIN_PASSWORD"),
		LogLevel:                  getEnv("LOG_LEVEL", "info"),
		LogFormat:                 getEnv("LOG_FORMAT", "pretty"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.JWTSigningKey) == "" {
		return fmt.Errorf("JWT_SIGNING_KEY is required")
	}

	if len(c.JWTSigningKey) < token.MinSigningKeyLength {
		return fmt.Errorf("JWT_SIGNING_KEY must be at least %d bytes", token.MinSigningKeyLength)
	}

	if strings.TrimSpace(c.JWTIssuer) == "" {
		return fmt.Errorf("JWT_ISSUER cannot be empty")
	}

	if strings.TrimSpace(c.JWTAudience) == "" {
		return fmt.Errorf("JWT_AUDIENCE cannot be empty")
	}

	if c.JWTLifetime <= 0 {
		return fmt.Errorf("JWT_LIFETIME_MINUTES must be positive")
	}

	if c.PasswordIterations < credential.MinIterations {
		return fmt.Errorf("PBKDF2_ITERATIONS must be at least %d", credential.MinIterations)
	}

	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS and DB_MAX_CONNS are inconsistent")
	}

	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	for _, proxy := range c.TrustedProxies {
		if net.ParseIP(proxy) == nil {
			if _, _, err := net.ParseCIDR(proxy); err != nil {
				return fmt.Errorf("TRUSTED_PROXIES entry %q is not an address or CIDR", proxy)
			}
		}
	}

	if (c.AdminUsername == "") != (c.AdminPassword == "") {
		return fmt.Errorf("ADMIN_USERNAME and ADMIN_PASSWORD must be set together")
	}

	if c.AdminUsername != "" && c.AdminEmail == "" {
		return fmt.Errorf("ADMIN_EMAIL is required when ADMIN_USERNAME is set")
	}

	return nil
}

// TokenConfig is the subset handed to the token issuer.
func (c *Config) TokenConfig() token.Config {
	return token.Config{
		Issuer:     c.JWTIssuer,
		Audience:   c.JWTAudience,
		Lifetime:   c.JWTLifetime,
		SigningKey: c.JWTSigningKey,
	}
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}
