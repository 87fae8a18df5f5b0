// Package config loads runtime configuration for central and store nodes.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fixline/bodyshop/internal/errors"
)

// Duration wraps time.Duration so YAML values can be written as "30s"
// or "5m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// CentralConfig configures the central server.
type CentralConfig struct {
	ListenAddr      string   `yaml:"listen_addr"`
	DataDir         string   `yaml:"data_dir"`
	JWTSecret       string   `yaml:"jwt_secret"`
	TokenTTL        Duration `yaml:"token_ttl"`
	PageSizeDefault int      `yaml:"page_size_default"`
	PageSizeMax     int      `yaml:"page_size_max"`
}

// StoreConfig configures a store node.
type StoreConfig struct {
	CentralURL        string   `yaml:"central_url"`
	DataDir           string   `yaml:"data_dir"`
	MachineKey        string   `yaml:"machine_key"`
	SyncInterval      Duration `yaml:"sync_interval"`
	RequestTimeout    Duration `yaml:"request_timeout"`
	BatchSize         int      `yaml:"batch_size"`
	RetentionWindow   Duration `yaml:"retention_window"`
	RetentionInterval Duration `yaml:"retention_interval"`
}

// Config is the root configuration document. A deployment fills in the
// section for the role it runs; the other section may be absent.
type Config struct {
	LogLevel string        `yaml:"log_level"`
	Central  CentralConfig `yaml:"central"`
	Store    StoreConfig   `yaml:"store"`
}

// Defaults applied when a value is absent from the file.
const (
	DefaultListenAddr      = ":8471"
	DefaultPageSizeDefault = 200
	DefaultPageSizeMax     = 1000
	DefaultTokenTTL        = 12 * time.Hour
	DefaultSyncInterval    = 5 * time.Minute
	DefaultRequestTimeout  = 30 * time.Second
	DefaultBatchSize       = 200
	DefaultRetentionWindow = 30 * 24 * time.Hour
	DefaultRetentionSweep  = 6 * time.Hour
)

// Load reads the YAML file at path and applies environment overrides.
// A missing file is not an error; defaults plus environment still have
// to pass the role-specific Validate call before use.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, errors.Wrap(errors.ErrConfig, "read config file", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(errors.ErrConfig, "parse config file", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("BODYSHOP_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("BODYSHOP_LISTEN_ADDR"); v != "" {
		c.Central.ListenAddr = v
	}
	if v := os.Getenv("BODYSHOP_JWT_SECRET"); v != "" {
		c.Central.JWTSecret = v
	}
	if v := os.Getenv("BODYSHOP_CENTRAL_URL"); v != "" {
		c.Store.CentralURL = v
	}
	if v := os.Getenv("BODYSHOP_DATA_DIR"); v != "" {
		c.Central.DataDir = v
		c.Store.DataDir = v
	}
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Central.ListenAddr == "" {
		c.Central.ListenAddr = DefaultListenAddr
	}
	if c.Central.DataDir == "" {
		c.Central.DataDir = "./data"
	}
	if c.Central.TokenTTL == 0 {
		c.Central.TokenTTL = Duration(DefaultTokenTTL)
	}
	if c.Central.PageSizeDefault <= 0 {
		c.Central.PageSizeDefault = DefaultPageSizeDefault
	}
	if c.Central.PageSizeMax <= 0 {
		c.Central.PageSizeMax = DefaultPageSizeMax
	}
	if c.Store.DataDir == "" {
		c.Store.DataDir = "./data"
	}
	if c.Store.SyncInterval == 0 {
		c.Store.SyncInterval = Duration(DefaultSyncInterval)
	}
	if c.Store.RequestTimeout == 0 {
		c.Store.RequestTimeout = Duration(DefaultRequestTimeout)
	}
	if c.Store.BatchSize <= 0 {
		c.Store.BatchSize = DefaultBatchSize
	}
	if c.Store.RetentionWindow == 0 {
		c.Store.RetentionWindow = Duration(DefaultRetentionWindow)
	}
	if c.Store.RetentionInterval == 0 {
		c.Store.RetentionInterval = Duration(DefaultRetentionSweep)
	}
}

// ValidateCentral checks the settings a central node cannot run without.
func (c *Config) ValidateCentral() error {
	if c.Central.JWTSecret == "" {
		return errors.New(errors.ErrConfig, "central.jwt_secret is required")
	}
	if c.Central.PageSizeDefault > c.Central.PageSizeMax {
		return errors.New(errors.ErrConfig, "central.page_size_default exceeds page_size_max")
	}
	return nil
}

// ValidateStore checks the settings a store node cannot run without.
func (c *Config) ValidateStore() error {
	if c.Store.CentralURL == "" {
		return errors.New(errors.ErrConfig, "store.central_url is required")
	}
	return nil
}
