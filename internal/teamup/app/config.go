package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/aussiebroadwan/teamup/pkg/httpx"
	"github.com/aussiebroadwan/teamup/pkg/jwtx"
)

type Config struct {
	Env       string `env:"ENV" envDefault:"development"` // development, production
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
	Port      int    `env:"PORT" envDefault:"8080"`

	// Database is sqlite or postgres. DatabaseURL is only read for postgres.
	Database     string `env:"DATABASE" envDefault:"sqlite"`
	DatabaseFile string `env:"DATABASE_FILE" envDefault:"teamup.db"`
	DatabaseURL  string `env:"DATABASE_URL"`

	// JWTSecret signs session tokens. Outside production a random one is
	// generated when unset, so sessions do not survive a restart.
	JWTSecret  string        `env:"JWT_SECRET"`
	Issuer     string        `env:"ISSUER" envDefault:"teamup"`
	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"168h"`
	OTPTTL     time.Duration `env:"OTP_TTL" envDefault:"15m"`
	PepperFile string        `env:"PEPPER_FILE" envDefault:"pepper"`

	CORSOrigins []string `env:"CORS_ORIGIN" envSeparator:","`

	// RedisAddr enables the shared rate limit store.
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	SMTPHost     string        `env:"SMTP_HOST"`
	SMTPPort     int           `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string        `env:"SMTP_USER"`
	SMTPPassword string        `env:"SMTP_PASSWORD"`
	SMTPFrom     string        `env:"SMTP_FROM"`
	SMTPTimeout  time.Duration `env:"SMTP_TIMEOUT" envDefault:"10s"`

	// RateLimits overrides the request budgets, mostly for end-to-end tests.
	RateLimits RateLimitOverrides `envPrefix:"RATELIMIT_"`

	ShutdownGracePeriod  time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`
	HousekeepingInterval time.Duration `env:"HOUSEKEEPING_INTERVAL" envDefault:"1h"`
}

// RateLimitOverrides replaces a profile's budget when its request count is
// positive. Burst follows the request count unless set.
type RateLimitOverrides struct {
	StrictRequests   int           `env:"STRICT_REQUESTS"`
	StrictBurst      int           `env:"STRICT_BURST"`
	StrictWindow     time.Duration `env:"STRICT_WINDOW" envDefault:"1m"`
	ModerateRequests int           `env:"MODERATE_REQUESTS"`
	ModerateBurst    int           `env:"MODERATE_BURST"`
	ModerateWindow   time.Duration `env:"MODERATE_WINDOW" envDefault:"1m"`
}

func override(base httpx.RateLimitConfig, requests, burst int, window time.Duration) httpx.RateLimitConfig {
	if requests <= 0 {
		return base
	}
	if burst <= 0 {
		burst = requests
	}
	return httpx.RateLimitConfig{RequestsPerWindow: requests, Window: window, Burst: burst}
}

// Apply installs the overrides on the shared httpx profiles. It must run
// before routes are registered.
func (o RateLimitOverrides) Apply() {
	httpx.StrictLimit = override(httpx.StrictLimit, o.StrictRequests, o.StrictBurst, o.StrictWindow)
	httpx.ModerateLimit = override(httpx.ModerateLimit, o.ModerateRequests, o.ModerateBurst, o.ModerateWindow)
}

// Production reports whether cookies and CORS should be locked down.
func (c Config) Production() bool {
	return c.Env == "production" || c.Env == "prod"
}

// LoadConfig reads TEAMUP_* environment variables.
func LoadConfig() (Config, error) {
	return ParseConfig(nil)
}

// ParseConfig reads configuration from environ, or the process environment
// when environ is nil, and validates it.
func ParseConfig(environ map[string]string) (Config, error) {
	opts := env.Options{Prefix: "TEAMUP_"}
	if environ != nil {
		opts.Environment = environ
	}

	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.Database = strings.ToLower(strings.TrimSpace(cfg.Database))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error

	switch c.Database {
	case "sqlite":
		if c.DatabaseFile == "" {
			errs = append(errs, errors.New("TEAMUP_DATABASE_FILE is required for sqlite"))
		}
	case "postgres":
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("TEAMUP_DATABASE_URL is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown TEAMUP_DATABASE %q", c.Database))
	}

	if c.JWTSecret != "" && len(c.JWTSecret) < jwtx.MinSecretLength {
		errs = append(errs, fmt.Errorf("TEAMUP_JWT_SECRET must be at least %d bytes", jwtx.MinSecretLength))
	}
	if c.JWTSecret == "" && c.Production() {
		errs = append(errs, errors.New("TEAMUP_JWT_SECRET is required in production"))
	}
	if c.Production() && len(c.CORSOrigins) == 0 {
		errs = append(errs, errors.New("TEAMUP_CORS_ORIGIN is required in production"))
	}
	if c.SMTPHost != "" && c.SMTPFrom == "" {
		errs = append(errs, errors.New("TEAMUP_SMTP_FROM is required when TEAMUP_SMTP_HOST is set"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid TEAMUP_PORT %d", c.Port))
	}

	return errors.Join(errs...)
}
