// Package config resolves console settings from a YAML file, SYNCCONSOLE_*
// environment variables and command line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Backends selectable with Config.Backend.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendREST   = "rest"
)

const (
	defaultListen          = "127.0.0.1:8080"
	defaultBackend         = BackendMemory
	defaultAPITimeout      = 10 * time.Second
	defaultProbeTimeout    = 5 * time.Second
	defaultShutdownTimeout = 15 * time.Second
	defaultLogLevel        = "info"
	defaultLogFormat       = "text"
	defaultSessionCookie   = "syncconsole_session"

	envPrefix = "SYNCCONSOLE_"
)

// Config carries runtime settings for every command.
type Config struct {
	Listen          string        `yaml:"listen"`
	Backend         string        `yaml:"backend"`
	APIURL          string        `yaml:"api_url"`
	APITimeout      time.Duration `yaml:"api_timeout"`
	DataDir         string        `yaml:"data_dir"`
	CatalogDir      string        `yaml:"catalog_dir"`
	CatalogOpenAPI  string        `yaml:"catalog_openapi"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
	SessionCookie   string        `yaml:"session_cookie"`
	ProbeTimeout    time.Duration `yaml:"probe_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	Dev             bool          `yaml:"dev"`
}

// Default returns a Config with every default applied.
func Default() Config {
	return Config{}.Normalize()
}

// Normalize applies defaults when values are not supplied.
func (c Config) Normalize() Config {
	c.Listen = strings.TrimSpace(c.Listen)
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	if c.Backend == "" {
		c.Backend = defaultBackend
	}
	c.APIURL = strings.TrimRight(strings.TrimSpace(c.APIURL), "/")
	if c.APITimeout <= 0 {
		c.APITimeout = defaultAPITimeout
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = defaultProbeTimeout
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}
	if c.DataDir == "" {
		c.DataDir = defaultDataDir()
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	if c.LogFormat == "" {
		c.LogFormat = defaultLogFormat
	}
	if c.SessionCookie == "" {
		c.SessionCookie = defaultSessionCookie
	}
	return c
}

// Validate reports settings that cannot work together.
func (c Config) Validate() error {
	var errs []error
	switch c.Backend {
	case BackendMemory, BackendSQLite:
	case BackendREST:
		if c.APIURL == "" {
			errs = append(errs, errors.New("api_url is required for the rest backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q", c.Backend))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// DatabasePath is the SQLite file used by the sqlite backend.
func (c Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "syncconsole.db")
}

// Load reads path (when non-empty), applies environment overrides from
// lookup and returns the normalised result. A missing file is an error only
// when path was given explicitly.
func Load(path string, lookup func(string) (string, bool)) (Config, error) {
	var cfg Config
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return Config{}, err
	}
	return cfg.Normalize(), nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(envPrefix + name); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	dur := func(name string, dst *time.Duration) error {
		v, ok := lookup(envPrefix + name)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("config: %s%s: %w", envPrefix, name, err)
		}
		*dst = d
		return nil
	}

	str("LISTEN", &c.Listen)
	str("BACKEND", &c.Backend)
	str("API_URL", &c.APIURL)
	str("DATA_DIR", &c.DataDir)
	str("CATALOG_DIR", &c.CatalogDir)
	str("CATALOG_OPENAPI", &c.CatalogOpenAPI)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)
	str("SESSION_COOKIE", &c.SessionCookie)
	if err := dur("API_TIMEOUT", &c.APITimeout); err != nil {
		return err
	}
	if err := dur("PROBE_TIMEOUT", &c.ProbeTimeout); err != nil {
		return err
	}
	if err := dur("SHUTDOWN_TIMEOUT", &c.ShutdownTimeout); err != nil {
		return err
	}
	if v, ok := lookup(envPrefix + "DEV"); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			c.Dev = b
		}
	}
	return nil
}

// BindFlags registers flags for every setting on fs.
func BindFlags(fs *pflag.FlagSet) {
	fs.String("listen", defaultListen, "Address for the HTTP console to listen on")
	fs.String("backend", defaultBackend, "Persistence backend (memory|sqlite|rest)")
	fs.String("api-url", "", "Base URL of the replication backend (rest backend)")
	fs.Duration("api-timeout", defaultAPITimeout, "Timeout for backend API calls")
	fs.String("data-dir", "", "Directory for local state")
	fs.String("catalog-dir", "", "Directory of connector definitions (JSON/YAML), hot reloaded")
	fs.String("catalog-openapi", "", "OpenAPI document whose components describe connectors")
	fs.String("log-level", defaultLogLevel, "Log level (debug|info|warn|error)")
	fs.String("log-format", defaultLogFormat, "Log output format (text|json)")
	fs.String("session-cookie", defaultSessionCookie, "Session cookie name")
	fs.Duration("probe-timeout", defaultProbeTimeout, "Timeout for connection probes")
	fs.Duration("shutdown-timeout", defaultShutdownTimeout, "Grace period for in-flight requests on shutdown")
	fs.Bool("dev", false, "Enable development defaults")
}

// ApplyFlags copies explicitly set flags from fs over c.
func (c *Config) ApplyFlags(fs *pflag.FlagSet) error {
	var errs []error
	fs.Visit(func(f *pflag.Flag) {
		var err error
		switch f.Name {
		case "listen":
			c.Listen = f.Value.String()
		case "backend":
			c.Backend = f.Value.String()
		case "api-url":
			c.APIURL = f.Value.String()
		case "api-timeout":
			c.APITimeout, err = fs.GetDuration(f.Name)
		case "data-dir":
			c.DataDir = f.Value.String()
		case "catalog-dir":
			c.CatalogDir = f.Value.String()
		case "catalog-openapi":
			c.CatalogOpenAPI = f.Value.String()
		case "log-level":
			c.LogLevel = f.Value.String()
		case "log-format":
			c.LogFormat = f.Value.String()
		case "session-cookie":
			c.SessionCookie = f.Value.String()
		case "probe-timeout":
			c.ProbeTimeout, err = fs.GetDuration(f.Name)
		case "shutdown-timeout":
			c.ShutdownTimeout, err = fs.GetDuration(f.Name)
		case "dev":
			c.Dev, err = fs.GetBool(f.Name)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("config: flag --%s: %w", f.Name, err))
		}
	})
	*c = c.Normalize()
	return errors.Join(errs...)
}

// ParseLevel maps a level name to slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}

// NewLogger builds the process logger from the log settings.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	level, _ := ParseLevel(c.LogLevel)
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch c.LogFormat {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		return filepath.Join(dir, "syncconsole")
	}
	return ".syncconsole"
}
