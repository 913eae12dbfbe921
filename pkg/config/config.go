package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration.
// Files ending in .yaml or .yml are read as YAML, anything else as JSON.
type Config struct {
	Server   ServerConfig   `json:"server" yaml:"server"`
	Database DatabaseConfig `json:"database" yaml:"database"`
	ADSB     ADSBConfig     `json:"adsb" yaml:"adsb"`
	Observer ObserverConfig `json:"observer" yaml:"observer"`
	Display  DisplayConfig  `json:"display" yaml:"display"`
	Logging  LoggingConfig  `json:"logging" yaml:"logging"`
	Prefs    PrefsConfig    `json:"prefs" yaml:"prefs"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	// Port is the HTTP server port (default: 8080)
	Port string `json:"port" yaml:"port"`

	// Host is the server bind address (default: "0.0.0.0")
	Host string `json:"host" yaml:"host"`

	// AllowedOrigins lists CORS origins; empty allows any origin
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins"`

	// SessionSecret signs session tokens (should be loaded from environment)
	SessionSecret string `json:"session_secret" yaml:"session_secret"`

	// SessionTTLMinutes is how long an issued session token stays valid
	SessionTTLMinutes int `json:"session_ttl_minutes" yaml:"session_ttl_minutes"`
}

// Addr returns host:port for net/http.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, s.Port)
}

// SessionTTL returns the session lifetime.
func (s ServerConfig) SessionTTL() time.Duration {
	return time.Duration(s.SessionTTLMinutes) * time.Minute
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	// Driver is the database driver (sqlite, postgres)
	Driver string `json:"driver" yaml:"driver"`

	// Path is the sqlite database file (":memory:" for an in-memory database)
	Path string `json:"path" yaml:"path"`

	// Host is the database server hostname
	Host string `json:"host" yaml:"host"`

	// Port is the database server port
	Port int `json:"port" yaml:"port"`

	// Database is the database name
	Database string `json:"database" yaml:"database"`

	// Username for database authentication
	Username string `json:"username" yaml:"username"`

	// Password for database authentication (should be loaded from environment)
	Password string `json:"password" yaml:"password"`

	// SSLMode for PostgreSQL connections (disable, require, verify-ca, verify-full)
	SSLMode string `json:"ssl_mode" yaml:"ssl_mode"`

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int `json:"max_open_conns" yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int `json:"max_idle_conns" yaml:"max_idle_conns"`
}

// ADSBConfig contains ADS-B feed configuration.
type ADSBConfig struct {
	// BaseURL is the readsb-style v2 API base (adsb.lol, airplanes.live)
	BaseURL string `json:"base_url" yaml:"base_url"`

	// SearchRadiusNM is the radius of each point query in nautical miles
	SearchRadiusNM float64 `json:"search_radius_nm" yaml:"search_radius_nm"`

	// StaleSeconds is how long a fetched result is reused before polling again
	StaleSeconds int `json:"stale_seconds" yaml:"stale_seconds"`

	// RequestsPerSecond limits the API call rate
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`

	// TimeoutSeconds bounds a single HTTP request
	TimeoutSeconds int `json:"timeout_seconds" yaml:"timeout_seconds"`

	// Retries is how many times a failed poll is retried
	Retries int `json:"retries" yaml:"retries"`

	// CacheSize is the number of distinct areas kept in the feed cache
	CacheSize int `json:"cache_size" yaml:"cache_size"`
}

// StaleWindow returns the polling and cache window.
func (a ADSBConfig) StaleWindow() time.Duration {
	return time.Duration(a.StaleSeconds) * time.Second
}

// Timeout returns the per-request timeout.
func (a ADSBConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// ObserverConfig describes where the observer position comes from.
type ObserverConfig struct {
	// Source is "static" (fixed coordinates), "gpsd" or "none"
	Source string `json:"source" yaml:"source"`

	// Latitude in decimal degrees (-90 to +90), used by the static source
	Latitude float64 `json:"latitude" yaml:"latitude"`

	// Longitude in decimal degrees (-180 to +180), used by the static source
	Longitude float64 `json:"longitude" yaml:"longitude"`

	// Elevation in meters above sea level
	Elevation float64 `json:"elevation" yaml:"elevation"`

	// GPSDAddr is the gpsd host:port
	GPSDAddr string `json:"gpsd_addr" yaml:"gpsd_addr"`

	// FixTimeoutSeconds bounds the wait for a GPS fix
	FixTimeoutSeconds int `json:"fix_timeout_seconds" yaml:"fix_timeout_seconds"`

	// MaxFixAgeSeconds is how long a fix is reused
	MaxFixAgeSeconds int `json:"max_fix_age_seconds" yaml:"max_fix_age_seconds"`
}

// FixTimeout returns the GPS fix wait.
func (o ObserverConfig) FixTimeout() time.Duration {
	return time.Duration(o.FixTimeoutSeconds) * time.Second
}

// MaxFixAge returns how long a fix stays current.
func (o ObserverConfig) MaxFixAge() time.Duration {
	return time.Duration(o.MaxFixAgeSeconds) * time.Second
}

// DisplayConfig contains presentation settings.
type DisplayConfig struct {
	// DefaultMode is used when no preference has been stored ("near" or "overhead")
	DefaultMode string `json:"default_mode" yaml:"default_mode"`

	// ShowMagnetic adds a magnetic bearing badge
	ShowMagnetic bool `json:"show_magnetic" yaml:"show_magnetic"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	// Level is debug, info, warn or error
	Level string `json:"level" yaml:"level"`

	// File enables rotating file output; empty logs to stderr
	File string `json:"file" yaml:"file"`

	MaxSizeMB  int  `json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int  `json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int  `json:"max_age_days" yaml:"max_age_days"`
	Compress   bool `json:"compress" yaml:"compress"`
}

// PrefsConfig selects where user preferences (mode, last poll) are kept.
type PrefsConfig struct {
	// Store is "file" or "database"
	Store string `json:"store" yaml:"store"`

	// Path is the JSON file used by the file store
	Path string `json:"path" yaml:"path"`

	// Profile names the preference row used by the database store
	Profile string `json:"profile" yaml:"profile"`
}

// Load reads configuration from a JSON or YAML file.
// If the file doesn't exist, returns a default configuration.
// Values missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg.applyEnvironmentOverrides()
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvironmentOverrides()

	return cfg, nil
}

// Save writes the configuration to a JSON or YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var data []byte
	var err error
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the values that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	var errs []error

	switch c.Observer.Source {
	case "static":
		if c.Observer.Latitude < -90 || c.Observer.Latitude > 90 {
			errs = append(errs, fmt.Errorf("observer.latitude %v out of range [-90, 90]", c.Observer.Latitude))
		}
		if c.Observer.Longitude < -180 || c.Observer.Longitude > 180 {
			errs = append(errs, fmt.Errorf("observer.longitude %v out of range [-180, 180]", c.Observer.Longitude))
		}
	case "gpsd", "none":
	default:
		errs = append(errs, fmt.Errorf("observer.source %q must be static, gpsd or none", c.Observer.Source))
	}

	if c.ADSB.SearchRadiusNM <= 0 {
		errs = append(errs, fmt.Errorf("adsb.search_radius_nm must be positive"))
	}
	if c.ADSB.StaleSeconds <= 0 {
		errs = append(errs, fmt.Errorf("adsb.stale_seconds must be positive"))
	}
	if c.ADSB.Retries < 0 {
		errs = append(errs, fmt.Errorf("adsb.retries must not be negative"))
	}

	switch c.Display.DefaultMode {
	case "near", "overhead":
	default:
		errs = append(errs, fmt.Errorf("display.default_mode %q must be near or overhead", c.Display.DefaultMode))
	}

	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("database.driver %q must be sqlite or postgres", c.Database.Driver))
	}

	switch c.Prefs.Store {
	case "file", "database":
	default:
		errs = append(errs, fmt.Errorf("prefs.store %q must be file or database", c.Prefs.Store))
	}

	return errors.Join(errs...)
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              "8080",
			Host:              "0.0.0.0",
			SessionTTLMinutes: 24 * 60,
		},
		Database: DatabaseConfig{
			Driver:       "sqlite",
			Path:         filepath.Join(defaultDataDir(), "whats-overhead.db"),
			Host:         "localhost",
			Port:         5432,
			Database:     "whatsoverhead",
			Username:     "whatsoverhead",
			SSLMode:      "disable",
			MaxOpenConns: 10,
			MaxIdleConns: 2,
		},
		ADSB: ADSBConfig{
			BaseURL:           "https://api.adsb.lol/v2",
			SearchRadiusNM:    20,
			StaleSeconds:      30,
			RequestsPerSecond: 1,
			TimeoutSeconds:    10,
			Retries:           1,
			CacheSize:         64,
		},
		Observer: ObserverConfig{
			Source:            "gpsd",
			GPSDAddr:          "127.0.0.1:2947",
			FixTimeoutSeconds: 10,
			MaxFixAgeSeconds:  10,
		},
		Display: DisplayConfig{
			DefaultMode: "near",
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Prefs: PrefsConfig{
			Store:   "file",
			Path:    filepath.Join(defaultDataDir(), "prefs.json"),
			Profile: "default",
		},
	}
}

// defaultDataDir is <UserConfigDir>/whats-overhead, or the working directory
// when the user config directory is unknown.
func defaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, "whats-overhead")
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
// This allows secrets and per-host settings to be kept out of config files.
func (c *Config) applyEnvironmentOverrides() {
	if port := os.Getenv("WO_PORT"); port != "" {
		c.Server.Port = port
	}
	if dbPassword := os.Getenv("WO_DB_PASSWORD"); dbPassword != "" {
		c.Database.Password = dbPassword
	}
	if baseURL := os.Getenv("WO_ADSB_BASE_URL"); baseURL != "" {
		c.ADSB.BaseURL = baseURL
	}
	if secret := os.Getenv("WO_SESSION_SECRET"); secret != "" {
		c.Server.SessionSecret = secret
	}
	if level := os.Getenv("WO_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}

	// A fixed position from the environment switches the observer to static
	lat, latErr := strconv.ParseFloat(os.Getenv("WO_OBSERVER_LAT"), 64)
	lon, lonErr := strconv.ParseFloat(os.Getenv("WO_OBSERVER_LON"), 64)
	if latErr == nil && lonErr == nil {
		c.Observer.Source = "static"
		c.Observer.Latitude = lat
		c.Observer.Longitude = lon
	}
}
