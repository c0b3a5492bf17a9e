// Package config loads the service configuration. Values come from the
// environment, optionally layered over a YAML file named by CONFIG_FILE
// (keys are the lower-cased variable names, e.g. basket_grace_period).
// Load reports every invalid value at once.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS  bool
	HSTSMaxAge  time.Duration
	AllowCamera bool // let a same-origin browser scanner use the camera
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// RedisConfig defines the optional Redis connection backing the open
// session cache.
type RedisConfig struct {
	Addr     string        // REDIS_ADDR (e.g. "localhost:6379")
	Password string        // REDIS_PASSWORD
	DB       int           // REDIS_DB
	TTL      time.Duration // CACHE_TTL
}

// Enabled reports whether a Redis address is configured.
func (r RedisConfig) Enabled() bool { return strings.TrimSpace(r.Addr) != "" }

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	GinMode           string // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool
	SwaggerEnabled bool
	APIBasePath    string

	// Database
	DBDriver    string // sqlite|postgres
	DBPath      string // SQLite path
	DatabaseURL string // PostgreSQL DSN, required when DBDriver is postgres
	AutoMigrate bool   // run schema migrations at server start

	// Session cache (disabled when Redis.Addr is empty)
	Redis RedisConfig

	// Changing room
	StrictScanFormat  bool          // enforce tag/barcode shapes on top of normalization
	BasketGracePeriod time.Duration // transferred baskets older than this are purged
	JanitorInterval   time.Duration // how often the background sweep runs
	StaleSessionAfter time.Duration // open sessions older than this are reported stale

	// Rate limiting
	RateRPS   float64
	RateBurst int

	CORS     CORSConfig
	Security SecurityConfig

	// IdempotencyTTL is how long a resolution's Idempotency-Key replays.
	IdempotencyTTL time.Duration

	OTEL OTELConfig
}

var defaults = map[string]any{
	"PORT":                        "8080",
	"READ_TIMEOUT":                "15s",
	"READ_HEADER_TIMEOUT":         "10s",
	"WRITE_TIMEOUT":               "20s",
	"IDLE_TIMEOUT":                "60s",
	"MAX_HEADER_BYTES":            "1048576",
	"GIN_MODE":                    "release",
	"LOG_LEVEL":                   "info",
	"LOG_PRETTY":                  "false",
	"SWAGGER_ENABLED":             "false",
	"API_BASE_PATH":               "/api/v1",
	"DB_DRIVER":                   "sqlite",
	"DB_PATH":                     "changingroom.db",
	"DATABASE_URL":                "",
	"AUTO_MIGRATE":                "true",
	"REDIS_ADDR":                  "",
	"REDIS_PASSWORD":              "",
	"REDIS_DB":                    "0",
	"CACHE_TTL":                   "5m",
	"STRICT_SCAN_FORMAT":          "false",
	"BASKET_GRACE_PERIOD":         "24h",
	"JANITOR_INTERVAL":            "5m",
	"STALE_SESSION_AFTER":         "4h",
	"RATE_RPS":                    "5",
	"RATE_BURST":                  "10",
	"CORS_ALLOWED_ORIGINS":        "",
	"ENABLE_HSTS":                 "false",
	"HSTS_MAX_AGE":                "4320h",
	"ALLOW_CAMERA":                "false",
	"IDEMPOTENCY_TTL":             "24h",
	"OTEL_ENABLED":                "false",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "localhost:4317",
	"OTEL_EXPORTER_OTLP_INSECURE": "true",
	"OTEL_SERVICE_NAME":           "go-changingroom-backend",
	"OTEL_TRACES_SAMPLER_ARG":     "1.0",
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the configuration, normalizes it and validates the result.
func Load() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	if file := strings.TrimSpace(v.GetString("CONFIG_FILE")); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read %s: %w", file, err)
		}
	}

	r := reader{v: v}
	cfg := Config{
		Port:              r.str("PORT"),
		ReadTimeout:       r.dur("READ_TIMEOUT"),
		ReadHeaderTimeout: r.dur("READ_HEADER_TIMEOUT"),
		WriteTimeout:      r.dur("WRITE_TIMEOUT"),
		IdleTimeout:       r.dur("IDLE_TIMEOUT"),
		MaxHeaderBytes:    r.int("MAX_HEADER_BYTES"),
		GinMode:           strings.ToLower(r.str("GIN_MODE")),

		LogLevel:       strings.ToLower(r.str("LOG_LEVEL")),
		LogPretty:      r.bool("LOG_PRETTY"),
		SwaggerEnabled: r.bool("SWAGGER_ENABLED"),
		APIBasePath:    normalizeBasePath(r.str("API_BASE_PATH")),

		DBDriver:    strings.ToLower(r.str("DB_DRIVER")),
		DBPath:      r.str("DB_PATH"),
		DatabaseURL: r.str("DATABASE_URL"),
		AutoMigrate: r.bool("AUTO_MIGRATE"),

		Redis: RedisConfig{
			Addr:     r.str("REDIS_ADDR"),
			Password: r.str("REDIS_PASSWORD"),
			DB:       r.int("REDIS_DB"),
			TTL:      r.dur("CACHE_TTL"),
		},

		StrictScanFormat:  r.bool("STRICT_SCAN_FORMAT"),
		BasketGracePeriod: r.dur("BASKET_GRACE_PERIOD"),
		JanitorInterval:   r.dur("JANITOR_INTERVAL"),
		StaleSessionAfter: r.dur("STALE_SESSION_AFTER"),

		RateRPS:   r.float("RATE_RPS"),
		RateBurst: r.int("RATE_BURST"),

		CORS: CORSConfig{AllowedOrigins: r.list("CORS_ALLOWED_ORIGINS")},
		Security: SecurityConfig{
			EnableHSTS:  r.bool("ENABLE_HSTS"),
			HSTSMaxAge:  r.dur("HSTS_MAX_AGE"),
			AllowCamera: r.bool("ALLOW_CAMERA"),
		},

		IdempotencyTTL: r.dur("IDEMPOTENCY_TTL"),

		OTEL: OTELConfig{
			Enabled:     r.bool("OTEL_ENABLED"),
			Endpoint:    r.str("OTEL_EXPORTER_OTLP_ENDPOINT"),
			Insecure:    r.bool("OTEL_EXPORTER_OTLP_INSECURE"),
			ServiceName: r.str("OTEL_SERVICE_NAME"),
			SampleRatio: r.float("OTEL_TRACES_SAMPLER_ARG"),
		},
	}
	if err := errors.Join(r.errs...); err != nil {
		return cfg, err
	}

	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	return cfg, cfg.validate()
}

func (cfg Config) validate() error {
	var errs []error
	check := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, errors.New(msg))
		}
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		errs = append(errs, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic"))
	}
	check(strings.TrimSpace(cfg.Port) != "", "PORT must not be empty")
	check(cfg.ReadTimeout > 0 && cfg.ReadHeaderTimeout > 0 && cfg.WriteTimeout > 0 && cfg.IdleTimeout > 0,
		"timeouts must be positive durations")
	check(cfg.MaxHeaderBytes > 0, "MAX_HEADER_BYTES must be > 0")

	switch cfg.DBDriver {
	case "sqlite":
		check(strings.TrimSpace(cfg.DBPath) != "", "DB_PATH must not be empty")
	case "postgres":
		check(strings.TrimSpace(cfg.DatabaseURL) != "", "DATABASE_URL is required when DB_DRIVER=postgres")
	default:
		errs = append(errs, errors.New("DB_DRIVER must be one of: sqlite, postgres"))
	}

	check(cfg.Redis.DB >= 0, "REDIS_DB must be >= 0")
	check(cfg.Redis.TTL > 0, "CACHE_TTL must be > 0")
	check(cfg.BasketGracePeriod > 0 && cfg.JanitorInterval > 0 && cfg.StaleSessionAfter > 0,
		"BASKET_GRACE_PERIOD, JANITOR_INTERVAL and STALE_SESSION_AFTER must be positive durations")
	check(cfg.RateRPS >= 0, "RATE_RPS must be >= 0")
	check(cfg.RateBurst >= 1, "RATE_BURST must be >= 1")
	check(cfg.Security.HSTSMaxAge >= 0, "HSTS_MAX_AGE must be >= 0")
	check(cfg.IdempotencyTTL > 0, "IDEMPOTENCY_TTL must be > 0")
	check(cfg.OTEL.SampleRatio >= 0 && cfg.OTEL.SampleRatio <= 1, "OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	return errors.Join(errs...)
}

// reader converts viper values and collects parse errors instead of
// silently falling back to defaults.
type reader struct {
	v    *viper.Viper
	errs []error
}

func (r *reader) str(k string) string {
	return strings.TrimSpace(r.v.GetString(k))
}

func (r *reader) fail(k, s, want string) {
	r.errs = append(r.errs, fmt.Errorf("%s: %q is not a valid %s", k, s, want))
}

func (r *reader) dur(k string) time.Duration {
	s := r.str(k)
	d, err := time.ParseDuration(s)
	if err != nil {
		r.fail(k, s, "duration")
	}
	return d
}

func (r *reader) int(k string) int {
	s := r.str(k)
	n, err := strconv.Atoi(s)
	if err != nil {
		r.fail(k, s, "integer")
	}
	return n
}

func (r *reader) float(k string) float64 {
	s := r.str(k)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		r.fail(k, s, "number")
	}
	return f
}

func (r *reader) bool(k string) bool {
	s := r.str(k)
	switch strings.ToLower(s) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	}
	r.fail(k, s, "boolean")
	return false
}

// list accepts a comma-separated string (environment) or a YAML sequence.
func (r *reader) list(k string) []string {
	var parts []string
	switch raw := r.v.Get(k).(type) {
	case []any:
		for _, p := range raw {
			parts = append(parts, fmt.Sprint(p))
		}
	case []string:
		parts = raw
	default:
		parts = strings.Split(r.v.GetString(k), ",")
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// normalizeBasePath ensures a leading '/' and strips trailing ones (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			p = "/"
		}
	}
	return p
}
