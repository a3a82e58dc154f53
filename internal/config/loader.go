package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tgienger/shiush/internal/db"
	"github.com/tgienger/shiush/internal/offline"
)

// ErrInvalidConfig is returned when a loaded configuration fails validation
var ErrInvalidConfig = errors.New("invalid config")

const envPrefix = "SHIUSH"

// Load reads path over the defaults. SHIUSH_* environment variables
// override both. A missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	// Decode into a zero Config so a shorter manifest replaces the default
	// instead of overlaying it
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.resolve(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("data_dir", cfg.DataDir)
	v.SetDefault("timezone", cfg.Timezone)
	v.SetDefault("log_file", cfg.LogFile)
	v.SetDefault("schedule.poll_interval", cfg.Schedule.PollInterval)
	v.SetDefault("offline.addr", cfg.Offline.Addr)
	v.SetDefault("offline.origin", cfg.Offline.Origin)
	v.SetDefault("offline.version", cfg.Offline.Version)
	v.SetDefault("offline.strategy", cfg.Offline.Strategy)
	v.SetDefault("offline.offline_page", cfg.Offline.OfflinePage)
	v.SetDefault("offline.shell_page", cfg.Offline.ShellPage)
	v.SetDefault("offline.skip_waiting", cfg.Offline.SkipWaiting)
	v.SetDefault("offline.manifest", cfg.Offline.Manifest)
}

// resolve fills the path defaults that depend on the environment
func (c *Config) resolve() error {
	if c.DataDir == "" {
		dir, err := db.DefaultDataDir()
		if err != nil {
			return err
		}
		c.DataDir = dir
	}
	if c.LogFile == "" {
		c.LogFile = filepath.Join(c.DataDir, "shiush.log")
	}
	return nil
}

// Validate checks the configuration for values nothing can run with
func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, c.Timezone, err)
	}
	if c.Schedule.PollInterval < time.Second {
		return fmt.Errorf("%w: schedule.poll_interval must be at least 1s, got %s", ErrInvalidConfig, c.Schedule.PollInterval)
	}

	o := c.Offline
	if strings.TrimSpace(o.Version) == "" {
		return fmt.Errorf("%w: offline.version is empty", ErrInvalidConfig)
	}
	if _, err := offline.ParsePolicy(o.Strategy); err != nil {
		return fmt.Errorf("%w: offline.strategy: %v", ErrInvalidConfig, err)
	}
	if _, err := parseOrigin(o.Origin); err != nil {
		return fmt.Errorf("%w: offline.origin: %v", ErrInvalidConfig, err)
	}
	if !slices.Contains(o.Manifest, o.OfflinePage) {
		return fmt.Errorf("%w: offline.manifest must contain offline page %q", ErrInvalidConfig, o.OfflinePage)
	}
	return nil
}

// Location returns the configured time zone
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// DBPath returns the database file
func (c *Config) DBPath() string {
	return db.Path(c.DataDir)
}

// Registration builds the offline registration settings
func (o OfflineConfig) Registration() (offline.Config, error) {
	origin, err := parseOrigin(o.Origin)
	if err != nil {
		return offline.Config{}, err
	}
	policy, err := offline.ParsePolicy(o.Strategy)
	if err != nil {
		return offline.Config{}, err
	}
	return offline.Config{
		Origin: origin,
		Manifest: offline.Manifest{
			Assets:      o.Manifest,
			OfflinePage: o.OfflinePage,
			ShellPage:   o.ShellPage,
		},
		Policy:      policy,
		SkipWaiting: o.SkipWaiting,
	}, nil
}

func parseOrigin(s string) (*url.URL, error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%q is not an http(s) origin", s)
	}
	return u, nil
}

// DefaultPath returns the config file location
func DefaultPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".config", "shiush", "config.yaml")
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "shiush", "config.yaml")
}
