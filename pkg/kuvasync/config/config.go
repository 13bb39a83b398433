package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"github.com/jamesainslie/kuvasync/pkg/kuvasync/logging"
	"github.com/jamesainslie/kuvasync/pkg/kuvasync/types"
)

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    string `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level"`
	Path       string            `mapstructure:"path"`
	Rotation   RotationConfig    `mapstructure:"rotation"`
	Components map[string]string `mapstructure:"components"`
}

// RatesConfig overrides the request rate per call site. Zero means use the
// global rate.
type RatesConfig struct {
	Listing float64 `mapstructure:"listing"`
	Picture float64 `mapstructure:"picture"`
	Auth    float64 `mapstructure:"auth"`
}

// Config represents the application configuration.
type Config struct {
	Path        string      `mapstructure:"path"`
	Site        string      `mapstructure:"site"`
	Rate        float64     `mapstructure:"rate"`
	Rates       RatesConfig `mapstructure:"rates"`
	RateShared  bool        `mapstructure:"rate_shared"`
	Preserve    bool        `mapstructure:"preserve"`
	Concurrency int         `mapstructure:"concurrency"`
	Exclude     []string    `mapstructure:"exclude"`

	PasswordEnv string `mapstructure:"password_env"`
	Keyring     struct {
		Enabled bool   `mapstructure:"enabled"`
		Service string `mapstructure:"service"`
	} `mapstructure:"keyring"`

	Remote struct {
		Variants []string `mapstructure:"variants"`
	} `mapstructure:"remote"`
	HTTP struct {
		Timeout   time.Duration `mapstructure:"timeout"`
		UserAgent string        `mapstructure:"user_agent"`
	} `mapstructure:"http"`

	MinFree     string `mapstructure:"min_free"`
	MetricsFile string `mapstructure:"metrics_file"`

	Journal struct {
		Enabled       bool   `mapstructure:"enabled"`
		Path          string `mapstructure:"path"`
		RetentionDays int    `mapstructure:"retention_days"`
	} `mapstructure:"journal"`
	Index struct {
		Enabled bool   `mapstructure:"enabled"`
		Path    string `mapstructure:"path"`
	} `mapstructure:"index"`

	Logging LoggingConfig `mapstructure:"logging"`
}

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// New returns a viper instance with defaults, environment binding and the
// config file loaded. An empty cfgFile searches the default locations:
//   - $XDG_CONFIG_HOME/kuvasync/config.yaml
//   - $HOME/.config/kuvasync/config.yaml
//
// A missing config file is not an error.
func New(cfgFile string) (*viper.Viper, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
			v.AddConfigPath(filepath.Join(xdgConfigHome, "kuvasync"))
		}
		if homeDir, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(homeDir, ".config", "kuvasync"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return v, nil
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("path", DefaultPath)
	v.SetDefault("site", DefaultSite)
	v.SetDefault("rate", DefaultRate)
	v.SetDefault("rates.listing", 0.0)
	v.SetDefault("rates.picture", 0.0)
	v.SetDefault("rates.auth", 0.0)
	v.SetDefault("rate_shared", false)
	v.SetDefault("preserve", false)
	v.SetDefault("concurrency", DefaultConcurrency)
	v.SetDefault("exclude", []string{})

	v.SetDefault("password_env", DefaultPasswordEnv)
	v.SetDefault("keyring.enabled", true)
	v.SetDefault("keyring.service", DefaultKeyringService)

	v.SetDefault("remote.variants", DefaultVariants)
	v.SetDefault("http.timeout", DefaultHTTPTimeout)
	v.SetDefault("http.user_agent", "")

	v.SetDefault("min_free", "")
	v.SetDefault("metrics_file", "")

	v.SetDefault("journal.enabled", true)
	v.SetDefault("journal.path", filepath.Join(DataDir(), "journal"))
	v.SetDefault("journal.retention_days", DefaultRetentionDays)
	v.SetDefault("index.enabled", true)
	v.SetDefault("index.path", filepath.Join(DataDir(), "index"))

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.rotation.max_size", "10MB")
	v.SetDefault("logging.rotation.max_age", 30)
	v.SetDefault("logging.rotation.max_backups", 5)
	v.SetDefault("logging.components", map[string]string{
		"mirror": "info",
		"remote": "info",
	})
}

// FromViper decodes v into a Config and expands ~ in paths.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for _, p := range []*string{&cfg.Path, &cfg.Journal.Path, &cfg.Index.Path, &cfg.Logging.Path, &cfg.MetricsFile} {
		expanded, err := ExpandPath(*p)
		if err != nil {
			return nil, err
		}
		*p = expanded
	}
	return &cfg, nil
}

// Load reads configuration from the default locations and the environment.
func Load() (*Config, error) {
	v, err := New("")
	if err != nil {
		return nil, err
	}
	return FromViper(v)
}

// Validate checks values that cannot be checked by decoding alone.
func (c *Config) Validate() error {
	switch {
	case c.Path == "":
		return fmt.Errorf("%w: path is empty", ErrInvalidConfig)
	case c.Site == "":
		return fmt.Errorf("%w: site is empty", ErrInvalidConfig)
	case c.Rate < 0 || c.Rates.Listing < 0 || c.Rates.Picture < 0 || c.Rates.Auth < 0:
		return fmt.Errorf("%w: rates cannot be negative", ErrInvalidConfig)
	case c.Concurrency < 1:
		return fmt.Errorf("%w: concurrency must be at least 1", ErrInvalidConfig)
	}
	if c.MinFree != "" {
		if _, err := types.ParseSize(c.MinFree); err != nil {
			return fmt.Errorf("%w: min_free: %v", ErrInvalidConfig, err)
		}
	}
	return nil
}

// RateFor returns the configured rate for a call site, falling back to the
// global rate.
func (c *Config) RateFor(override float64) float64 {
	if override > 0 {
		return override
	}
	return c.Rate
}

// LoggingConfig converts the logging section for logging.Init.
func (c *Config) LoggingConfig() logging.Config {
	rot := logging.DefaultRotationConfig()
	if c.Logging.Rotation.MaxSize != "" {
		if n, err := types.ParseSize(c.Logging.Rotation.MaxSize); err == nil {
			rot.MaxSize = n
		}
	}
	rot.MaxAge = c.Logging.Rotation.MaxAge
	rot.MaxBackups = c.Logging.Rotation.MaxBackups

	return logging.Config{
		Level:      c.Logging.Level,
		Path:       c.Logging.Path,
		Rotation:   rot,
		Components: c.Logging.Components,
	}
}

// ConfigDir returns the configuration directory.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, "kuvasync"), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "kuvasync"), nil
}

// ConfigFile returns the default config file path.
func ConfigFile() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// WriteDefault writes a commented default config file. It returns the
// path and whether a file was written; an existing file is left alone.
func WriteDefault() (string, bool, error) {
	path, err := ConfigFile()
	if err != nil {
		return "", false, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", false, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		return path, false, nil
	} else if !os.IsNotExist(err) {
		return "", false, fmt.Errorf("failed to check config file: %w", err)
	}

	content := fmt.Sprintf(`# kuvasync configuration

# Local mirror root. It must exist before the first run.
path: %s

# Gallery to mirror
site: %s

# Requests per second for each endpoint
rate: %g
rates:
  listing: 0   # 0 means use rate
  picture: 0
  auth: 0
# Share one rate across all endpoints
rate_shared: false

# Log deletions instead of performing them
preserve: false

# Folders synchronized in parallel
concurrency: %d

# Folder glob patterns to leave alone, e.g. "/private/**"
exclude: []

# Environment variable holding the folder password
password_env: %s
keyring:
  enabled: true
  service: %s

remote:
  # Suffixes appended to a picture path to build download URLs, smallest first
  variants:
    - /_small.jpg
    - /_full.jpg

http:
  timeout: %s
  user_agent: ""

# Warn when free space in the mirror drops below this, e.g. 1G
min_free: ""

# Write Prometheus metrics to this file after each run
metrics_file: ""

journal:
  enabled: true
  path: %s
  retention_days: %d

index:
  enabled: true
  path: %s

logging:
  level: info
  # Empty means $XDG_STATE_HOME/kuvasync/kuvasync.log
  path: ""
  rotation:
    max_size: 10MB
    max_age: 30
    max_backups: 5
  components:
    mirror: info
    remote: info
`, DefaultPath, DefaultSite, DefaultRate, DefaultConcurrency, DefaultPasswordEnv,
		DefaultKeyringService, DefaultHTTPTimeout, filepath.Join(DataDir(), "journal"),
		DefaultRetentionDays, filepath.Join(DataDir(), "index"))

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", false, fmt.Errorf("failed to write default config: %w", err)
	}
	return path, true, nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, path[1:]), nil
}

// DataDir returns $XDG_DATA_HOME/kuvasync.
func DataDir() string {
	return filepath.Join(xdg.DataHome, "kuvasync")
}

// StateDir returns $XDG_STATE_HOME/kuvasync.
func StateDir() string {
	return filepath.Join(xdg.StateHome, "kuvasync")
}
