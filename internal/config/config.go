package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/MrJamesThe3rd/mpesaflow/internal/mpesa"
)

type Config struct {
	App struct {
		Name          string `envconfig:"APP_NAME" default:"mpesaflow"`
		Port          int    `envconfig:"PORT" default:"8080"`
		LogLevel      string `envconfig:"LOG_LEVEL" default:"info"`
		AllowedOrigin string `envconfig:"ALLOWED_ORIGIN" default:"*"`
		// PublicURL is the externally reachable base URL used to build the
		// provider callback URL. When empty it is taken from each request.
		PublicURL string `envconfig:"PUBLIC_URL"`
	}

	DB struct {
		Driver   string `envconfig:"DB_DRIVER" default:"postgres"`
		Host     string `envconfig:"DB_HOST" default:"localhost"`
		Port     int    `envconfig:"DB_PORT" default:"5432"`
		User     string `envconfig:"DB_USER" default:"postgres"`
		Password string `envconfig:"DB_PASSWORD" default:""`
		Name     string `envconfig:"DB_NAME" default:"mpesaflow"`
		Migrate  bool   `envconfig:"DB_MIGRATE" default:"true"`
	}

	Mongo struct {
		URI      string `envconfig:"MONGO_URI" default:"mongodb://localhost:27017"`
		Database string `envconfig:"MONGO_DATABASE" default:"mpesaflow"`
	}

	Server struct {
		Timeout time.Duration `envconfig:"SERVER_TIMEOUT" default:"60s"`
	}

	Auth struct {
		Mode      string        `envconfig:"AUTH_MODE" default:"remote"`
		VerifyURL string        `envconfig:"UNKEY_VERIFY_URL" default:"https://api.unkey.dev/v1/keys.verifyKey"`
		AppAPIID  string        `envconfig:"UNKEY_API_ID"`
		RootAPIID string        `envconfig:"UNKEY_ROOT_ID"`
		CacheTTL  time.Duration `envconfig:"AUTH_CACHE_TTL" default:"30s"`
		JWTSecret string        `envconfig:"AUTH_JWT_SECRET"`
		JWTIssuer string        `envconfig:"AUTH_JWT_ISSUER" default:"mpesaflow"`
	}

	Sandbox struct {
		OAuthURL          string `envconfig:"MPESA_OAUTH_URL" default:"https://sandbox.safaricom.co.ke/oauth/v1/generate?grant_type=client_credentials"`
		ProcessURL        string `envconfig:"MPESA_PROCESS_URL" default:"https://sandbox.safaricom.co.ke/mpesa/stkpush/v1/processrequest"`
		QueryURL          string `envconfig:"MPESA_QUERY_URL" default:"https://sandbox.safaricom.co.ke/mpesa/stkpushquery/v1/query"`
		ConsumerKey       string `envconfig:"MPESA_CONSUMER_KEY"`
		ConsumerSecret    string `envconfig:"MPESA_CONSUMER_SECRET"`
		BusinessShortCode string `envconfig:"BUSINESS_SHORT_CODE" default:"174379"`
		PassKey           string `envconfig:"PASS_KEY"`
	}

	Production struct {
		OAuthURL   string `envconfig:"MPESA_PRODUCTION_OAUTH_URL" default:"https://api.safaricom.co.ke/oauth/v1/generate?grant_type=client_credentials"`
		ProcessURL string `envconfig:"MPESA_PRODUCTION_PROCESS_URL" default:"https://api.safaricom.co.ke/mpesa/stkpush/v1/processrequest"`
		QueryURL   string `envconfig:"MPESA_PRODUCTION_QUERY_URL" default:"https://api.safaricom.co.ke/mpesa/stkpushquery/v1/query"`
	}

	Poll struct {
		MaxAttempts int           `envconfig:"POLL_MAX_ATTEMPTS" default:"5"`
		Interval    time.Duration `envconfig:"POLL_INTERVAL" default:"5s"`
		Timeout     time.Duration `envconfig:"POLL_TIMEOUT" default:"40s"`
	}

	Secrets struct {
		EncryptionKey string `envconfig:"ENCRYPTION_KEY"`
	}
}

func (c *Config) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name)
}

func (c *Config) SandboxEndpoints() mpesa.Endpoints {
	return mpesa.Endpoints{
		OAuthURL:   c.Sandbox.OAuthURL,
		ProcessURL: c.Sandbox.ProcessURL,
		QueryURL:   c.Sandbox.QueryURL,
	}
}

func (c *Config) ProductionEndpoints() mpesa.Endpoints {
	return mpesa.Endpoints{
		OAuthURL:   c.Production.OAuthURL,
		ProcessURL: c.Production.ProcessURL,
		QueryURL:   c.Production.QueryURL,
	}
}

// LogLevel parses App.LogLevel, defaulting to info.
func (c *Config) LogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.App.LogLevel)); err != nil {
		return slog.LevelInfo
	}

	return lvl
}

func (c *Config) validate() error {
	switch strings.ToLower(c.DB.Driver) {
	case "postgres", "mongo":
	default:
		return fmt.Errorf("DB_DRIVER must be postgres or mongo, got %q", c.DB.Driver)
	}

	switch c.Auth.Mode {
	case "remote":
		if c.Auth.AppAPIID == "" || c.Auth.RootAPIID == "" {
			return fmt.Errorf("UNKEY_API_ID and UNKEY_ROOT_ID are required when AUTH_MODE=remote")
		}
	case "jwt":
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("AUTH_JWT_SECRET is required when AUTH_MODE=jwt")
		}

		if c.Auth.AppAPIID == "" {
			c.Auth.AppAPIID = "app"
		}

		if c.Auth.RootAPIID == "" {
			c.Auth.RootAPIID = "root"
		}
	default:
		return fmt.Errorf("AUTH_MODE must be remote or jwt, got %q", c.Auth.Mode)
	}

	if c.Poll.MaxAttempts < 1 {
		return fmt.Errorf("POLL_MAX_ATTEMPTS must be at least 1")
	}

	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}
