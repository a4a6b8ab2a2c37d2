package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// SiteConfig identifies one site whose data is cached on this device.
type SiteConfig struct {
	// ID is the unique site identifier; it names the site's database file.
	ID string `mapstructure:"id" yaml:"id"`

	// Name is the user-facing label for the site.
	Name string `mapstructure:"name" yaml:"name"`

	// URL is the site's base URL.
	URL string `mapstructure:"url" yaml:"url"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	// Env is "production" (JSON output) or "development" (console output).
	Env   string `mapstructure:"env" yaml:"env"`
	Level string `mapstructure:"level" yaml:"level"`
}

// MigrationConfig tunes how schema migrations run.
type MigrationConfig struct {
	// MaxConcurrency bounds the per-record fan-out inside a migration step.
	// Zero or negative means unbounded.
	MaxConcurrency int `mapstructure:"max_concurrency" yaml:"max_concurrency"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	DataDir   string          `mapstructure:"data_dir" yaml:"data_dir"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Sites     []SiteConfig    `mapstructure:"sites" yaml:"sites"`
	Migration MigrationConfig `mapstructure:"migration" yaml:"migration"`
}

// Site returns the configured site with the given ID.
func (c *AppConfig) Site(id string) (SiteConfig, bool) {
	for _, s := range c.Sites {
		if s.ID == id {
			return s, true
		}
	}
	return SiteConfig{}, false
}

// Validate checks that the configuration can be used to open site stores.
func (c *AppConfig) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	seen := make(map[string]bool, len(c.Sites))
	for i, s := range c.Sites {
		if strings.TrimSpace(s.ID) == "" {
			return fmt.Errorf("sites[%d]: id must not be empty", i)
		}
		if strings.ContainsAny(s.ID, `/\`) {
			return fmt.Errorf("sites[%d]: id %q must not contain path separators", i, s.ID)
		}
		if seen[s.ID] {
			return fmt.Errorf("sites[%d]: duplicate id %q", i, s.ID)
		}
		seen[s.ID] = true
	}
	return nil
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/sitecache/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "sitecache", "config.yaml")
}

// defaultDataDir returns ~/.local/share/sitecache, or ./data when the
// home directory cannot be resolved.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "data")
	}
	return filepath.Join(home, ".local", "share", "sitecache")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		DataDir: defaultDataDir(),
		Log: LogConfig{
			Env:   "production",
			Level: "info",
		},
		Sites: []SiteConfig{},
		Migration: MigrationConfig{
			MaxConcurrency: 8,
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
// SITECACHE_* environment variables override file values
// (e.g. SITECACHE_LOG_LEVEL=debug).
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("sitecache")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := defaultAppConfig()
	v.SetDefault("data_dir", def.DataDir)
	v.SetDefault("log.env", def.Log.Env)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("migration.max_concurrency", def.Migration.MaxConcurrency)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); !ok {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("data_dir", cfg.DataDir)
	v.Set("log", cfg.Log)
	v.Set("sites", cfg.Sites)
	v.Set("migration", cfg.Migration)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
