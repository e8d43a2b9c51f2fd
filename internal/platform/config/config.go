package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every environment variable, e.g. CHECKOUT_ADDR.
const Prefix = "CHECKOUT"

// Config captures process-level configuration.
type Config struct {
	Addr            string        `envconfig:"ADDR" default:":8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" default:"15s"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	// Empty directories fall back to the embedded catalog, no partner
	// settings and no flight rollouts.
	CatalogDir  string `envconfig:"CATALOG_DIR"`
	SettingsDir string `envconfig:"SETTINGS_DIR"`
	FlightsDir  string `envconfig:"FLIGHTS_DIR"`

	SubmitBase string `envconfig:"SUBMIT_BASE" default:"/v1/submit"`

	Redirect  RedirectConfig  `envconfig:"REDIRECT"`
	Challenge ChallengeConfig `envconfig:"CHALLENGE"`
	Redis     RedisConfig     `envconfig:"REDIS"`
	Postgres  PostgresConfig  `envconfig:"POSTGRES"`
}

// RedirectConfig configures the redirection strategy selector.
type RedirectConfig struct {
	BaseURL       string        `envconfig:"BASE_URL" default:"https://pay.example.com/redirect"`
	StatusBaseURL string        `envconfig:"STATUS_BASE_URL" default:"/v1/paymentInstruments"`
	QRSigningKey  string        `envconfig:"QR_SIGNING_KEY"`
	QRIssuer      string        `envconfig:"QR_ISSUER" default:"checkout"`
	QRAudience    string        `envconfig:"QR_AUDIENCE" default:"checkout-qr"`
	QRTokenTTL    time.Duration `envconfig:"QR_TOKEN_TTL" default:"10m"`
}

// ChallengeConfig configures challenge sessions.
type ChallengeConfig struct {
	TTL             time.Duration `envconfig:"TTL" default:"10m"`
	DefaultAttempts int           `envconfig:"DEFAULT_ATTEMPTS" default:"3"`
	StepBase        string        `envconfig:"STEP_BASE" default:"/v1/challenges"`
	Retention       time.Duration `envconfig:"RETENTION" default:"15m"`
	JanitorInterval time.Duration `envconfig:"JANITOR_INTERVAL" default:"1m"`
}

// RedisConfig configures the shared Redis client. An empty URL keeps
// challenge sessions in memory.
type RedisConfig struct {
	URL          string        `envconfig:"URL"`
	PoolSize     int           `envconfig:"POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"3s"`
}

// PostgresConfig configures the partner settings database. An empty DSN
// disables the database-backed settings source.
type PostgresConfig struct {
	DSN             string        `envconfig:"DSN"`
	MaxOpenConns    int           `envconfig:"MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"CONN_MAX_LIFETIME" default:"5m"`
}

// FromEnv builds a Config from CHECKOUT_* environment variables.
func FromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if cfg.Redirect.QRSigningKey == "" {
		// Development default; production deployments set CHECKOUT_REDIRECT_QR_SIGNING_KEY.
		cfg.Redirect.QRSigningKey = "dev-qr-signing-key-change-in-production"
	}
	return cfg, nil
}
