// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const (
	defaultBookingURL    = "https://cal.com/book"
	defaultPruneCron     = "15 3 * * *"
	defaultICSWindowDays = 30
)

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Filename string `yaml:"filename"`
	// Directory holding one JSON file per collection for the "file" driver.
	DataDir string `yaml:"data_dir"`
	// Redis address for the "redis" driver.
	URL       string `yaml:"url,omitempty"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
	AuthToken string `yaml:"-"` // Loaded from environment
}

type AvailabilityConfig struct {
	BookingURL    string `yaml:"booking_url"`
	CalendarName  string `yaml:"calendar_name"`
	ICSWindowDays int    `yaml:"ics_window_days"`
	// RetentionDays > 0 enables pruning of explicit records older than the window.
	RetentionDays int    `yaml:"retention_days"`
	PruneCron     string `yaml:"prune_cron"`
}

type SecurityConfig struct {
	TrustProxy         bool          `yaml:"trust_proxy"`
	SessionTTL         time.Duration `yaml:"session_ttl"`
	LoginMaxAttempts   int           `yaml:"login_max_attempts"`
	LoginLockout       time.Duration `yaml:"login_lockout"`
	LoginMaxIPPerHour  int           `yaml:"login_max_ip_per_hour"`
	MutationsPerMinute int           `yaml:"mutations_per_minute"`
}

type Config struct {
	App struct {
		Name              string `yaml:"name"`
		Environment       string `yaml:"environment"`
		Port              int    `yaml:"port"`
		BaseURL           string `yaml:"base_url"`
		Timezone          string `yaml:"timezone"`
		SecretKey         string `yaml:"-"` // Loaded from environment
		AdminPasswordHash string `yaml:"-"` // Loaded from environment
	} `yaml:"app"`

	Database     DatabaseConfig     `yaml:"database"`
	Availability AvailabilityConfig `yaml:"availability"`
	Security     SecurityConfig     `yaml:"security"`

	Features struct {
		EnableMetrics bool `yaml:"enable_metrics"`
		EnableDebug   bool `yaml:"enable_debug"`
	} `yaml:"features"`
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.App.Name = "folio"
	cfg.App.Environment = "development"
	cfg.App.Port = 8080
	cfg.App.BaseURL = "http://localhost:8080"
	cfg.Database.Driver = "sqlite"
	cfg.Database.Filename = "data/folio.db"
	cfg.Normalize()
	return cfg
}

// Normalize fills zero values so partially written config files still work.
func (c *Config) Normalize() {
	if c.App.Timezone == "" {
		c.App.Timezone = "Local"
	}
	if c.Database.DataDir == "" {
		c.Database.DataDir = "data"
	}
	if c.Database.KeyPrefix == "" {
		c.Database.KeyPrefix = "folio"
	}
	if c.Availability.BookingURL == "" {
		c.Availability.BookingURL = defaultBookingURL
	}
	if c.Availability.CalendarName == "" {
		c.Availability.CalendarName = "Availability"
	}
	if c.Availability.ICSWindowDays <= 0 {
		c.Availability.ICSWindowDays = defaultICSWindowDays
	}
	if c.Availability.PruneCron == "" {
		c.Availability.PruneCron = defaultPruneCron
	}
	if c.Security.SessionTTL <= 0 {
		c.Security.SessionTTL = 8 * time.Hour
	}
	if c.Security.LoginMaxAttempts <= 0 {
		c.Security.LoginMaxAttempts = 5
	}
	if c.Security.LoginLockout <= 0 {
		c.Security.LoginLockout = 15 * time.Minute
	}
	if c.Security.LoginMaxIPPerHour <= 0 {
		c.Security.LoginMaxIPPerHour = 30
	}
	if c.Security.MutationsPerMinute <= 0 {
		c.Security.MutationsPerMinute = 60
	}
}

// Load loads both .env and yaml configuration. A missing yaml file falls back
// to Default so a bare checkout can still start.
func Load(configPath string) (*Config, error) {
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	cfg := Default()
	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("error reading config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}
	cfg.Normalize()

	// Load sensitive values from environment
	cfg.App.SecretKey = os.Getenv("APP_SECRET_KEY")
	cfg.App.AdminPasswordHash = os.Getenv("ADMIN_PASSWORD_HASH")
	cfg.Database.AuthToken = os.Getenv("DATABASE_AUTH_TOKEN")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app name is required")
	}
	if c.App.Port == 0 {
		return fmt.Errorf("app port is required")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid app timezone %q: %w", c.App.Timezone, err)
	}
	if c.App.AdminPasswordHash != "" && c.App.SecretKey == "" {
		return fmt.Errorf("APP_SECRET_KEY is required when ADMIN_PASSWORD_HASH is set")
	}
	if c.Database.Driver == "" {
		return fmt.Errorf("database driver is required")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Filename == "" {
			return fmt.Errorf("database filename is required for sqlite")
		}
	case "file":
		if c.Database.DataDir == "" {
			return fmt.Errorf("database data_dir is required for file")
		}
	case "redis":
		if c.Database.URL == "" {
			return fmt.Errorf("database URL is required for redis")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if c.Availability.RetentionDays < 0 {
		return fmt.Errorf("availability retention_days must be 0 or greater")
	}
	if _, err := cron.ParseStandard(c.Availability.PruneCron); err != nil {
		return fmt.Errorf("invalid availability prune_cron %q: %w", c.Availability.PruneCron, err)
	}

	return nil
}

// Location resolves the configured timezone used for local calendar dates.
func (c *Config) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.App.Timezone)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(name)
}

// IsDevelopment reports whether the app runs with development defaults.
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}
