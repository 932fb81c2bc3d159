// Package config loads service configuration from defaults, an optional
// YAML or JSON file and VELIB_ environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"

	"github.com/velibadvisor/velibadvisor/internal/api/middleware"
	"github.com/velibadvisor/velibadvisor/internal/auth"
	"github.com/velibadvisor/velibadvisor/internal/cache"
	"github.com/velibadvisor/velibadvisor/internal/database"
	"github.com/velibadvisor/velibadvisor/internal/decision"
	"github.com/velibadvisor/velibadvisor/internal/telemetry"
	"github.com/velibadvisor/velibadvisor/internal/worker"
)

// EnvPrefix prefixes every environment override. Sections are separated by
// a double underscore: VELIB_SERVER__PORT sets server.port.
const EnvPrefix = "VELIB_"

// minSigningKeyLength is the shortest accepted HMAC key.
const minSigningKeyLength = 32

// Config is the full service configuration.
type Config struct {
	Log        LogConfig             `koanf:"log"`
	Server     ServerConfig          `koanf:"server"`
	Decision   decision.Config       `koanf:"decision"`
	Stations   StationsConfig        `koanf:"stations"`
	Providers  ProvidersConfig       `koanf:"providers"`
	Cache      CacheConfig           `koanf:"cache"`
	Auth       auth.JWTConfig        `koanf:"auth"`
	RateLimits middleware.RateLimits `koanf:"rate_limits"`
	Database   database.Config       `koanf:"database"`
	Telemetry  telemetry.Config      `koanf:"telemetry"`
	Worker     worker.Config         `koanf:"worker"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level string `koanf:"level"`
	// Pretty switches to human-readable console output.
	Pretty bool `koanf:"pretty"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	// RequireTLS rejects plain HTTP requests not forwarded from TLS.
	RequireTLS bool `koanf:"require_tls"`
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// StationsConfig tunes station lookups.
type StationsConfig struct {
	// DefaultRadius applies to station requests without a radius.
	DefaultRadius float64 `koanf:"default_radius"`
	// MaxRadius is the ceiling of the radius auto-expansion.
	MaxRadius float64 `koanf:"max_radius"`
}

// ProvidersConfig holds external provider settings.
type ProvidersConfig struct {
	OpenData  OpenDataConfig  `koanf:"opendata"`
	ORS       ORSConfig       `koanf:"ors"`
	Nominatim NominatimConfig `koanf:"nominatim"`
	// Timeout is the HTTP timeout of provider requests.
	Timeout time.Duration `koanf:"timeout"`
}

// OpenDataConfig configures the Paris Open Data station feed.
type OpenDataConfig struct {
	BaseURL string `koanf:"base_url"`
	Rows    int    `koanf:"rows"`
}

// ORSConfig configures OpenRouteService. Without an API key routes are
// estimated.
type ORSConfig struct {
	APIKey           string `koanf:"api_key"`
	BaseURL          string `koanf:"base_url"`
	Language         string `koanf:"language"`
	DisableElevation bool   `koanf:"disable_elevation"`
}

// NominatimConfig configures the Nominatim geocoder.
type NominatimConfig struct {
	BaseURL   string `koanf:"base_url"`
	UserAgent string `koanf:"user_agent"`
	Language  string `koanf:"language"`
}

// CacheConfig sizes the shared provider cache.
type CacheConfig struct {
	Size       int           `koanf:"size"`
	StationTTL time.Duration `koanf:"station_ttl"`
	RouteTTL   time.Duration `koanf:"route_ttl"`
	GeocodeTTL time.Duration `koanf:"geocode_ttl"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info"},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Decision: decision.DefaultConfig(),
		Stations: StationsConfig{DefaultRadius: 800, MaxRadius: 2000},
		Providers: ProvidersConfig{
			OpenData:  OpenDataConfig{Rows: 30},
			ORS:       ORSConfig{Language: "fr"},
			Nominatim: NominatimConfig{UserAgent: "velibadvisor/1.0", Language: "fr"},
			Timeout:   5 * time.Second,
		},
		Cache: CacheConfig{
			Size:       cache.DefaultSize,
			StationTTL: 2 * time.Minute,
			RouteTTL:   24 * time.Hour,
			GeocodeTTL: 24 * time.Hour,
		},
		Auth: auth.JWTConfig{
			Issuer:   "velibadvisor",
			Audience: "velibadvisor-admin",
			Expiry:   auth.DefaultTokenExpiry,
		},
		RateLimits: middleware.DefaultRateLimits(),
		Database:   database.DefaultConfig(),
		Telemetry: telemetry.Config{
			Environment:  "development",
			OTLPEndpoint: "localhost:4317",
			SampleRatio:  1,
		},
		Worker: worker.DefaultConfig(),
	}
}

// Load reads the configuration. An empty path skips the file; a missing
// file named explicitly is an error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		parser, err := parserFor(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := Default()
	// Hub lists replace the defaults instead of merging element-wise.
	cfg.Worker.Warmup.Hubs = nil
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.Decision = cfg.Decision.WithDefaults()
	cfg.RateLimits = cfg.RateLimits.WithDefaults()
	cfg.Worker.Warmup = cfg.Worker.Warmup.WithDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	default:
		return nil, fmt.Errorf("unsupported config format: %s", filepath.Ext(path))
	}
}

// envKey maps VELIB_RATE_LIMITS__ANALYSIS__REQUEST_LIMIT to
// rate_limits.analysis.request_limit.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// LoadDotEnv loads environment variables from the given files (".env" when
// none are given). Missing files are ignored and set variables are kept.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Validate reports every inconsistent setting.
func (c Config) Validate() error {
	var errs []error

	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if err := c.Decision.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("decision: %w", err))
	}
	if c.Stations.DefaultRadius <= 0 || c.Stations.MaxRadius < c.Stations.DefaultRadius {
		errs = append(errs, errors.New("stations: default_radius must be positive and not exceed max_radius"))
	}
	if c.Cache.Size <= 0 {
		errs = append(errs, errors.New("cache.size must be positive"))
	}
	if key := c.Auth.SigningKey; key != "" && len(key) < minSigningKeyLength {
		errs = append(errs, fmt.Errorf("auth.signing_key must be at least %d bytes", minSigningKeyLength))
	}
	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("database: %w", err))
	}
	if c.Telemetry.Enabled && c.Telemetry.OTLPEndpoint == "" {
		errs = append(errs, errors.New("telemetry.otlp_endpoint is required when telemetry is enabled"))
	}
	if c.Worker.Subscription != "" && c.Worker.ProjectID == "" {
		errs = append(errs, errors.New("worker.project_id is required with a subscription"))
	}
	for _, h := range c.Worker.Warmup.Hubs {
		if err := h.Point().Validate(); err != nil {
			errs = append(errs, fmt.Errorf("worker hub %q: %w", h.Name, err))
		}
	}

	return errors.Join(errs...)
}

// NewLogger builds the process logger for service.
func (c LogConfig) NewLogger(service, version string) zerolog.Logger {
	return c.newLogger(os.Stdout, service, version)
}

func (c LogConfig) newLogger(out io.Writer, service, version string) zerolog.Logger {
	level, err := zerolog.ParseLevel(c.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	if c.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", service).
		Str("version", version).
		Logger()
}
