package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "LEDGERLINE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	NumberStrategyTimestamp = "timestamp"
	NumberStrategySequence  = "sequence"
)

const (
	EnvAppEnv        = "LEDGERLINE_APP_ENV"
	EnvPort          = "LEDGERLINE_APP_PORT"
	EnvDBDSN         = "LEDGERLINE_DB_DSN"
	EnvDBDriver      = "LEDGERLINE_DB_DRIVER"
	EnvDBHost        = "LEDGERLINE_DB_HOST"
	EnvDBUser        = "LEDGERLINE_DB_USER"
	EnvDBName        = "LEDGERLINE_DB_NAME"
	EnvRedisURL      = "LEDGERLINE_REDIS_URL"
	EnvJWTSecret     = "LEDGERLINE_JWT_SECRET"
	EnvJWTIssuer     = "LEDGERLINE_JWT_ISSUER"
	EnvJWTExpMins    = "LEDGERLINE_JWT_EXPIRATION_MINUTES"
	EnvNumberFormat  = "LEDGERLINE_INVOICE_NUMBER_STRATEGY"
	EnvPurchaseLimit = "LEDGERLINE_PURCHASE_RATE_LIMIT"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Invoicing    InvoicingConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Invoicing.validate(); err != nil {
		return nil, err
	}
	if cfg.Invoicing.UsesSequenceNumbers() && !cfg.Redis.Configured() {
		return nil, fmt.Errorf("%s=%s requires %s", EnvNumberFormat, NumberStrategySequence, EnvRedisURL)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env            string        `envconfig:"LEDGERLINE_APP_ENV" required:"true"`
	Port           string        `envconfig:"LEDGERLINE_APP_PORT" required:"true"`
	LogLevel       string        `envconfig:"LEDGERLINE_LOG_LEVEL" default:"info"`
	LogFormat      string        `envconfig:"LEDGERLINE_LOG_FORMAT" default:"json"`
	LogWarnStack   bool          `envconfig:"LEDGERLINE_LOG_WARN_STACK" default:"false"`
	RequestTimeout time.Duration `envconfig:"LEDGERLINE_REQUEST_TIMEOUT" default:"15s"`
	CORSOrigins    []string      `envconfig:"LEDGERLINE_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"LEDGERLINE_DB_DSN"`
	Driver string `envconfig:"LEDGERLINE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LEDGERLINE_DB_HOST"`
	LegacyPort     int    `envconfig:"LEDGERLINE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LEDGERLINE_DB_USER"`
	LegacyPassword string `envconfig:"LEDGERLINE_DB_PASSWORD"`
	LegacyName     string `envconfig:"LEDGERLINE_DB_NAME"`
	LegacySSLMode  string `envconfig:"LEDGERLINE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LEDGERLINE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LEDGERLINE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LEDGERLINE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LEDGERLINE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the SQLite driver was selected.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"LEDGERLINE_REDIS_URL"`
	Address      string        `envconfig:"LEDGERLINE_REDIS_ADDR"`
	Password     string        `envconfig:"LEDGERLINE_REDIS_PASSWORD"`
	DB           int           `envconfig:"LEDGERLINE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LEDGERLINE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LEDGERLINE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LEDGERLINE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LEDGERLINE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LEDGERLINE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Configured reports whether a Redis endpoint was provided.
func (r RedisConfig) Configured() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type JWTConfig struct {
	Secret            string `envconfig:"LEDGERLINE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"LEDGERLINE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"LEDGERLINE_JWT_EXPIRATION_MINUTES" required:"true"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"LEDGERLINE_AUTO_MIGRATE" default:"false"`
}

type InvoicingConfig struct {
	NumberStrategy    string `envconfig:"LEDGERLINE_INVOICE_NUMBER_STRATEGY" default:"timestamp"`
	PurchaseRateLimit int    `envconfig:"LEDGERLINE_PURCHASE_RATE_LIMIT" default:"30"`
}

// UsesSequenceNumbers reports whether invoice numbers come from the Redis counter.
func (i InvoicingConfig) UsesSequenceNumbers() bool {
	return strings.EqualFold(strings.TrimSpace(i.NumberStrategy), NumberStrategySequence)
}

func (i InvoicingConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(i.NumberStrategy)) {
	case NumberStrategyTimestamp, NumberStrategySequence:
	default:
		return fmt.Errorf("%s must be %q or %q", EnvNumberFormat, NumberStrategyTimestamp, NumberStrategySequence)
	}
	if i.PurchaseRateLimit < 0 {
		return fmt.Errorf("%s cannot be negative", EnvPurchaseLimit)
	}
	return nil
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		return fmt.Errorf("%s is required when %s=%s", EnvDBDSN, EnvDBDriver, DriverSQLite)
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
