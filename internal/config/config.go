package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	API       API       `yaml:"api"`
	Ingest    Ingest    `yaml:"ingest"`
	Reconcile Reconcile `yaml:"reconcile"`
	Output    Output    `yaml:"output"`
	Logging   Logging   `yaml:"logging"`
	Metrics   Metrics   `yaml:"metrics"`

	loc             *time.Location
	timeout         time.Duration
	verbatimTimeout time.Duration
}

type API struct {
	BaseURL         string `yaml:"base_url"`
	Timeout         string `yaml:"timeout"`
	VerbatimTimeout string `yaml:"verbatim_timeout"`
	UserAgent       string `yaml:"user_agent"`
}

type Ingest struct {
	DefaultDays int    `yaml:"default_days"`
	Timezone    string `yaml:"timezone"`
}

type Reconcile struct {
	Workers int `yaml:"workers"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Metrics struct {
	Textfile string `yaml:"textfile"`
}

// ConfigDir returns the XDG config directory for parlcorpus.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "parlcorpus")
}

// DataDir returns the XDG data directory for parlcorpus.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "parlcorpus")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/parlcorpus/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'parlcorpus init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// Default returns the configuration described by the embedded default.yaml.
func Default() *Config {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded default config: %v", err))
	}
	return cfg
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		API: API{
			BaseURL:         "https://api.riigikogu.ee",
			Timeout:         "30s",
			VerbatimTimeout: "60s",
			UserAgent:       "parlcorpus/1.0",
		},
		Ingest: Ingest{
			DefaultDays: 30,
			Timezone:    "Europe/Tallinn",
		},
		Reconcile: Reconcile{Workers: 4},
		Logging:   Logging{Level: "info", Format: "text"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values that cannot be represented by YAML types alone
// and caches the parsed forms.
func (c *Config) Validate() error {
	var err error
	if c.timeout, err = time.ParseDuration(c.API.Timeout); err != nil {
		return fmt.Errorf("api.timeout: %w", err)
	}
	if c.verbatimTimeout, err = time.ParseDuration(c.API.VerbatimTimeout); err != nil {
		return fmt.Errorf("api.verbatim_timeout: %w", err)
	}
	if c.loc, err = time.LoadLocation(c.Ingest.Timezone); err != nil {
		return fmt.Errorf("ingest.timezone: %w", err)
	}
	if c.Ingest.DefaultDays < 0 {
		return fmt.Errorf("ingest.default_days must not be negative, got %d", c.Ingest.DefaultDays)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// Location is the time zone sessions are scheduled in.
func (c *Config) Location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}

func (c *Config) Timeout() time.Duration {
	if c.timeout == 0 {
		return 30 * time.Second
	}
	return c.timeout
}

func (c *Config) VerbatimTimeout() time.Duration {
	if c.verbatimTimeout == 0 {
		return 60 * time.Second
	}
	return c.verbatimTimeout
}

// Workers returns the reconcile concurrency, never less than one.
func (c *Config) Workers() int {
	if c.Reconcile.Workers <= 0 {
		return 1
	}
	return c.Reconcile.Workers
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
