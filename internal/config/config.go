// Package config loads and validates snapmark configuration via Viper.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/seckatie/snapmark/internal/core"
	"github.com/seckatie/snapmark/internal/core/assets"
	"github.com/seckatie/snapmark/internal/core/browser"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig     `mapstructure:"server"`
	Data     DataConfig       `mapstructure:"data"`
	Browser  browser.Options  `mapstructure:"browser"`
	Capture  CaptureConfig    `mapstructure:"capture"`
	Scrape   ScrapeConfig     `mapstructure:"scrape"`
	LinkedIn core.Credentials `mapstructure:"linkedin"`
	Logging  LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DataConfig sets where the database, assets and session live. Empty paths
// are derived from Dir.
type DataConfig struct {
	Dir            string `mapstructure:"dir"`
	DBPath         string `mapstructure:"db_path"`
	ScreenshotsDir string `mapstructure:"screenshots_dir"`
	ImagesDir      string `mapstructure:"images_dir"`
	SessionPath    string `mapstructure:"session_path"`
}

// Assets returns the asset store layout.
func (d DataConfig) Assets() assets.Config {
	return assets.Config{ScreenshotsDir: d.ScreenshotsDir, ImagesDir: d.ImagesDir}
}

func (d *DataConfig) derivePaths() {
	if d.DBPath == "" {
		d.DBPath = filepath.Join(d.Dir, "bookmarks.db")
	}
	if d.ScreenshotsDir == "" {
		d.ScreenshotsDir = filepath.Join(d.Dir, "screenshots")
	}
	if d.ImagesDir == "" {
		d.ImagesDir = filepath.Join(d.Dir, "linkedin-images")
	}
	if d.SessionPath == "" {
		d.SessionPath = filepath.Join(d.Dir, "linkedin-auth.json")
	}
}

// CaptureConfig tunes the screenshot stage.
type CaptureConfig struct {
	SettleDelay time.Duration `mapstructure:"settle_delay"`
}

// ScrapeConfig tunes the LinkedIn scrape stage.
type ScrapeConfig struct {
	Hosts         []string      `mapstructure:"hosts"`
	MaxImages     int           `mapstructure:"max_images"`
	LookupTimeout time.Duration `mapstructure:"lookup_timeout"`
}

// LoggingConfig toggles developer-friendly logging.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// flagKeys maps command line flags to config keys.
var flagKeys = map[string]string{
	"host":        "server.host",
	"port":        "server.port",
	"data-dir":    "data.dir",
	"db":          "data.db_path",
	"chrome-path": "browser.chrome_path",
	"headless":    "browser.headless",
	"no-sandbox":  "browser.no_sandbox",
	"dev":         "logging.development",
}

// Load builds a Config from an optional file, SNAPMARK_* environment
// variables and any of the given flags that were set. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SNAPMARK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.BindEnv("linkedin.email", "SNAPMARK_LINKEDIN_EMAIL", "LINKEDIN_EMAIL"); err != nil {
		return Config{}, fmt.Errorf("bind env: %w", err)
	}
	if err := v.BindEnv("linkedin.password", "SNAPMARK_LINKEDIN_PASSWORD", "LINKEDIN_PASSWORD"); err != nil {
		return Config{}, fmt.Errorf("bind env: %w", err)
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Data.derivePaths()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("data.dir", "data")
	v.SetDefault("data.db_path", "")
	v.SetDefault("data.screenshots_dir", "")
	v.SetDefault("data.images_dir", "")
	v.SetDefault("data.session_path", "")
	v.SetDefault("browser.chrome_path", "")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.no_sandbox", false)
	v.SetDefault("browser.user_agent", core.UserAgent)
	v.SetDefault("browser.viewport_width", 1280)
	v.SetDefault("browser.viewport_height", 720)
	v.SetDefault("browser.nav_timeout", 15*time.Second)
	v.SetDefault("browser.action_timeout", 15*time.Second)
	v.SetDefault("capture.settle_delay", core.DefaultCaptureSettleDelay)
	v.SetDefault("scrape.hosts", core.DefaultScrapeHosts)
	v.SetDefault("scrape.max_images", core.MaxPostImages)
	v.SetDefault("scrape.lookup_timeout", core.DefaultLookupTimeout)
	v.SetDefault("linkedin.email", "")
	v.SetDefault("linkedin.password", "")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}
	if c.Data.DBPath == "" || c.Data.ScreenshotsDir == "" || c.Data.ImagesDir == "" || c.Data.SessionPath == "" {
		return fmt.Errorf("data paths must not be empty")
	}
	if c.Browser.ViewportWidth <= 0 || c.Browser.ViewportHeight <= 0 {
		return fmt.Errorf("browser viewport must be > 0")
	}
	if c.Browser.NavigationTimeout <= 0 || c.Browser.ActionTimeout <= 0 {
		return fmt.Errorf("browser timeouts must be > 0")
	}
	if c.Capture.SettleDelay < 0 {
		return fmt.Errorf("capture.settle_delay must be >= 0")
	}
	if len(c.Scrape.Hosts) == 0 {
		return fmt.Errorf("scrape.hosts must not be empty")
	}
	if c.Scrape.MaxImages < 0 || c.Scrape.MaxImages > core.MaxPostImages {
		return fmt.Errorf("scrape.max_images must be between 0 and %d", core.MaxPostImages)
	}
	if c.Scrape.LookupTimeout <= 0 {
		return fmt.Errorf("scrape.lookup_timeout must be > 0")
	}
	return nil
}
