package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port           string        `mapstructure:"PORT"`
	Env            string        `mapstructure:"ENV"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32         `mapstructure:"DB_MIN_CONNS"`
	AuthSecret     string        `mapstructure:"AUTH_SECRET"`
	AuthIssuer     string        `mapstructure:"AUTH_ISSUER"`
	AuthAudience   string        `mapstructure:"AUTH_AUDIENCE"`
	SessionCookie  string        `mapstructure:"SESSION_COOKIE"`
	AuthSessionURL string        `mapstructure:"AUTH_SESSION_URL"`
	SignInPath     string        `mapstructure:"SIGN_IN_PATH"`
	RedisURL       string        `mapstructure:"REDIS_URL"`
	CORSOrigins     []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	BodyLimit      string        `mapstructure:"BODY_LIMIT"`
	S3Bucket        string        `mapstructure:"S3_BUCKET"`
	S3Region        string        `mapstructure:"S3_REGION"`
	S3Endpoint      string        `mapstructure:"S3_ENDPOINT"`
	BlobURLTTL     time.Duration `mapstructure:"BLOB_URL_TTL"`
	KafkaBrokers    []string      `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic     string        `mapstructure:"KAFKA_TOPIC"`
	WebDir         string        `mapstructure:"WEB_DIR"`
}

var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"AUTH_SECRET", "AUTH_ISSUER", "AUTH_AUDIENCE", "SESSION_COOKIE",
	"AUTH_SESSION_URL", "SIGN_IN_PATH", "REDIS_URL", "CORS_ORIGINS",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "REQUEST_TIMEOUT", "BODY_LIMIT",
	"S3_BUCKET", "S3_REGION", "S3_ENDPOINT", "BLOB_URL_TTL",
	"KAFKA_BROKERS", "KAFKA_TOPIC", "WEB_DIR",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("SESSION_COOKIE", "docportal.session-token")
	v.SetDefault("SIGN_IN_PATH", "/auth/sign-in")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("BODY_LIMIT", "2M")
	v.SetDefault("BLOB_URL_TTL", "15m")
	v.SetDefault("KAFKA_TOPIC", "docportal.events")
	v.SetDefault("WEB_DIR", "./web")

	for _, k := range keys {
		v.BindEnv(k)
	}

	// .env is optional
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(cfg.CORSOrigins, v.GetString("CORS_ORIGINS"))
	cfg.KafkaBrokers = splitList(cfg.KafkaBrokers, v.GetString("KAFKA_BROKERS"))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() && cfg.AuthSecret == "" && cfg.AuthSessionURL == "" {
		log.Println("WARNING: AUTH_SECRET is empty; using an insecure development signing key.")
		cfg.AuthSecret = "docportal-development-secret"
	}

	return cfg, nil
}

// splitList normalizes a comma separated env value. Viper hands back a
// single-element slice for "a,b" when the value came from the environment.
func splitList(current []string, raw string) []string {
	if len(current) > 1 {
		return current
	}
	if raw == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// RemoteSessions reports whether sessions are resolved by calling the auth
// provider instead of verifying tokens locally.
func (c *Config) RemoteSessions() bool {
	return c.AuthSessionURL != ""
}

// Validate checks cross-field constraints that Load cannot express as defaults.
func (c *Config) Validate() error {
	if !c.RemoteSessions() && c.AuthSecret == "" {
		return fmt.Errorf("AUTH_SECRET is required unless AUTH_SESSION_URL is set (ENV=%q)", c.Env)
	}
	if c.IsProduction() && len(c.AuthSecret) > 0 && len(c.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be at least 32 characters in production")
	}
	if c.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must not be negative, got %v", c.RateLimitRPS)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}
	if c.S3Bucket != "" && c.S3Region == "" && c.S3Endpoint == "" {
		return fmt.Errorf("S3_REGION or S3_ENDPOINT is required when S3_BUCKET is set")
	}
	return nil
}
