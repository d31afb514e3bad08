package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
)

// Record store backends
const (
	RecordStoreDynamoDB = "dynamodb"
	RecordStorePostgres = "postgres"
)

// Environment variables with defaults
type ServerEnvironment struct {

	// http server settings
	Environment           string        `env:"ENVIRONMENT,default=dev"`
	Host                  string        `env:"HOST,default=0.0.0.0"`
	Port                  int           `env:"PORT,default=8080"`
	LogLevel              string        `env:"LOG_LEVEL,default=debug"`
	ServerShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT,default=10s"`
	ReadTimeout           time.Duration `env:"READ_TIMEOUT,default=15s"`
	WriteTimeout          time.Duration `env:"WRITE_TIMEOUT,default=15s"`
	IdleTimeout           time.Duration `env:"IDLE_TIMEOUT,default=60s"`
	RequestTimeout        time.Duration `env:"REQUEST_TIMEOUT,default=30s"`
	RateLimitRPS          int32         `env:"RATE_LIMIT_RPS,default=100"`
	RateLimitBurst        int32         `env:"RATE_LIMIT_BURST,default=200"`

	// JWK cache settings
	SkipJWKCache        bool          `env:"SKIP_JWK_CACHE,default=false"`
	JWKCacheMinRefresh  time.Duration `env:"JWK_CACHE_MIN_REFRESH,default=10m"`
	JWKCacheMaxRefresh  time.Duration `env:"JWK_CACHE_MAX_REFRESH,default=12h"`
	JWKCacheHTTPTimeout time.Duration `env:"JWK_CACHE_HTTP_TIMEOUT,default=10s"`

	// identity provider - ISSUER_URL takes precedence over the cognito settings
	CognitoRegion     string `env:"COGNITO_REGION"`
	CognitoUserPoolID string `env:"COGNITO_USER_POOL_ID"`
	IssuerURL         string `env:"ISSUER_URL"`

	// download settings.
	// BUCKET and TABLE are not required at startup: requests fail with a 500 until they are set.
	Bucket string `env:"BUCKET"`
	Table  string `env:"TABLE"`

	// AWS settings (AWS_ENDPOINT_URL is used for localstack/minio)
	AWSRegion      string `env:"AWS_REGION,default=us-east-1"`
	AWSEndpointURL string `env:"AWS_ENDPOINT_URL"`

	// record store backend: dynamodb or postgres
	RecordStore string `env:"RECORD_STORE,default=dynamodb"`

	// database settings (RECORD_STORE=postgres only)
	DatabaseURL         string        `env:"DATABASE_URL"`
	DBMaxConnections    int32         `env:"DB_MAX_CONNECTIONS,default=4"`
	DBMinConnections    int32         `env:"DB_MIN_CONNECTIONS,default=0"`
	DBMaxConnLifetime   time.Duration `env:"DB_MAX_CONN_LIFETIME,default=60m"`
	DBMaxConnIdleTime   time.Duration `env:"DB_MAX_CONN_IDLE_TIME,default=30m"`
	DBConnectTimeout    time.Duration `env:"DB_CONNECT_TIMEOUT,default=5s"`
	DatabasePingTimeout time.Duration `env:"DATABASE_PING_TIMEOUT,default=10s"`
}

var validEnvs = map[string]bool{
	"dev":     true,
	"test":    true,
	"prod":    true,
	"staging": true,
}

var validRecordStores = map[string]bool{
	RecordStoreDynamoDB: true,
	RecordStorePostgres: true,
}

// NewServerConfig loads environment variables and returns a ServerEnvironment struct that contains the values
func NewServerConfig() (*ServerEnvironment, error) {
	var cfg ServerEnvironment

	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal environment variables: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Issuer returns the expected token issuer.
//
// ISSUER_URL is used as-is (minus any trailing slash). Otherwise the Cognito user pool
// issuer is derived from COGNITO_REGION and COGNITO_USER_POOL_ID.
// Returns "" when neither is configured.
func (c *ServerEnvironment) Issuer() string {
	if c.IssuerURL != "" {
		return strings.TrimRight(c.IssuerURL, "/")
	}
	if c.CognitoRegion == "" || c.CognitoUserPoolID == "" {
		return ""
	}
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", c.CognitoRegion, c.CognitoUserPoolID)
}

// validateConfig checks the env variables that are fatal at startup
func validateConfig(cfg *ServerEnvironment) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}
	if !validEnvs[cfg.Environment] {
		return fmt.Errorf("invalid ENVIRONMENT: %s", cfg.Environment)
	}
	if !validRecordStores[cfg.RecordStore] {
		return fmt.Errorf("invalid RECORD_STORE: %s (use %s or %s)", cfg.RecordStore, RecordStoreDynamoDB, RecordStorePostgres)
	}

	if cfg.JWKCacheMinRefresh > cfg.JWKCacheMaxRefresh {
		return fmt.Errorf("JWK_CACHE_MIN_REFRESH (%s) cannot be greater than JWK_CACHE_MAX_REFRESH (%s)",
			cfg.JWKCacheMinRefresh, cfg.JWKCacheMaxRefresh)
	}
	if cfg.JWKCacheHTTPTimeout <= 0 {
		return fmt.Errorf("JWK_CACHE_HTTP_TIMEOUT must be greater than 0")
	}

	if cfg.RecordStore != RecordStorePostgres {
		return nil
	}

	// Validate database pool configuration
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required when RECORD_STORE=%s", RecordStorePostgres)
	}
	if cfg.DBMaxConnections < 1 {
		return fmt.Errorf("DB_MAX_CONNECTIONS must be at least 1")
	}
	if cfg.DBMinConnections < 0 {
		return fmt.Errorf("DB_MIN_CONNECTIONS must be 0 or greater")
	}
	if cfg.DBMinConnections > cfg.DBMaxConnections {
		return fmt.Errorf("DB_MIN_CONNECTIONS (%d) cannot be greater than DB_MAX_CONNECTIONS (%d)",
			cfg.DBMinConnections, cfg.DBMaxConnections)
	}

	return nil
}
