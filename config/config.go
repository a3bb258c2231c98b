// ABOUTME: Client configuration stored as JSON in the XDG data directory
// ABOUTME: Applies defaults, .env files and TOUCHPOINT_* environment overrides
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
)

const (
	// AppName names the data directory under XDG_DATA_HOME.
	AppName = "touchpoint"

	ConfigFileName = "config.json"

	DefaultMaxRetries     = 3
	DefaultBaseBackoff    = 5 * time.Second
	DefaultMaxBackoff     = 5 * time.Minute
	DefaultPollInterval   = 15 * time.Second
	DefaultDebounce       = 300 * time.Millisecond
	DefaultMinQueryLength = 2
	DefaultPageSize       = 20
	DefaultLogLevel       = "info"
)

// Location is a fixed position used when no live location source exists.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy,omitempty"`
	Label     string  `json:"label,omitempty"`
}

type Config struct {
	// APIURL is the CRM API base URL. Empty means local mode.
	APIURL   string `json:"api_url,omitempty"`
	APIToken string `json:"api_token,omitempty"`

	// Local forces the SQLite store even when APIURL is set.
	Local bool `json:"local,omitempty"`

	AutoSync       bool          `json:"auto_sync"`
	MaxRetries     int           `json:"max_retries,omitempty"`
	BaseBackoff    time.Duration `json:"base_backoff,omitempty"`
	MaxBackoff     time.Duration `json:"max_backoff,omitempty"`
	PollInterval   time.Duration `json:"poll_interval,omitempty"`
	Debounce       time.Duration `json:"debounce,omitempty"`
	MinQueryLength int           `json:"min_query_length,omitempty"`
	PageSize       int           `json:"page_size,omitempty"`
	LogLevel       string        `json:"log_level,omitempty"`

	Location *Location `json:"location,omitempty"`

	dataDir string
}

// DefaultDataDir is where config, database, queue and logs live.
func DefaultDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

func DefaultConfig() *Config {
	return &Config{
		AutoSync:       true,
		MaxRetries:     DefaultMaxRetries,
		BaseBackoff:    DefaultBaseBackoff,
		MaxBackoff:     DefaultMaxBackoff,
		PollInterval:   DefaultPollInterval,
		Debounce:       DefaultDebounce,
		MinQueryLength: DefaultMinQueryLength,
		PageSize:       DefaultPageSize,
		LogLevel:       DefaultLogLevel,
	}
}

// Load reads config from dataDir (DefaultDataDir when empty). A missing file
// yields defaults. Environment variables, including those from a .env file in
// the working directory or the data directory, override file values.
func Load(dataDir string) (*Config, error) {
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}
	loadDotEnv(".env", filepath.Join(dataDir, ".env"))

	cfg := DefaultConfig()
	data, err := os.ReadFile(filepath.Join(dataDir, ConfigFileName))
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config: %w", err)
		}
	}

	cfg.dataDir = dataDir
	cfg.applyDefaults()
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotEnv loads the given files if they exist. Existing environment
// variables win over file values.
func loadDotEnv(paths ...string) {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
		}
	}
}

func (c *Config) applyDefaults() {
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = DefaultBaseBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = DefaultMaxBackoff
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.Debounce <= 0 {
		c.Debounce = DefaultDebounce
	}
	if c.MinQueryLength <= 0 {
		c.MinQueryLength = DefaultMinQueryLength
	}
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("TOUCHPOINT_API_URL"); v != "" {
		c.APIURL = v
	}
	if v := os.Getenv("TOUCHPOINT_API_TOKEN"); v != "" {
		c.APIToken = v
	}
	if v := os.Getenv("TOUCHPOINT_AUTO_SYNC"); v != "" {
		c.AutoSync = v == "true" || v == "1"
	}
	if v := os.Getenv("TOUCHPOINT_MAX_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid TOUCHPOINT_MAX_RETRIES %q", v)
		}
		c.MaxRetries = n
	}
	if v := os.Getenv("TOUCHPOINT_LOG_LEVEL"); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
	return nil
}

// DataDir is the directory this config was loaded from.
func (c *Config) DataDir() string {
	if c.dataDir == "" {
		return DefaultDataDir()
	}
	return c.dataDir
}

func (c *Config) Path() string {
	return filepath.Join(c.DataDir(), ConfigFileName)
}

func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir(), "touchpoint.db")
}

// QueueDir holds the badger store for queued mutations and drafts.
func (c *Config) QueueDir() string {
	return filepath.Join(c.DataDir(), "queue")
}

func (c *Config) LogPath() string {
	return filepath.Join(c.DataDir(), "touchpoint.log")
}

// UseLocalStore reports whether the SQLite store replaces the HTTP API.
func (c *Config) UseLocalStore() bool {
	return c.Local || c.APIURL == ""
}

// Save persists the config with owner-only permissions.
func (c *Config) Save() error {
	if err := os.MkdirAll(c.DataDir(), 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.Path(), data, 0600)
}
