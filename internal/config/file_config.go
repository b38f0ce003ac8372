package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig is the YAML form of Config. Unset fields fall back to the
// environment variable getters.
type FileConfig struct {
	AppName  string `yaml:"app_name"`
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`

	API struct {
		BaseURL   string        `yaml:"base_url"`
		Prefix    *string       `yaml:"prefix"`
		Timeout   time.Duration `yaml:"timeout"`
		Endpoints Endpoints     `yaml:"endpoints"`
	} `yaml:"api"`

	Session struct {
		Persist           PersistPolicy `yaml:"persist"`
		RefreshTimeout    time.Duration `yaml:"refresh_timeout"`
		ObfuscationSecret string        `yaml:"obfuscation_secret"`
	} `yaml:"session"`

	Storage struct {
		Backend     StorageBackend `yaml:"backend"`
		File        string         `yaml:"file"`
		RedisAddr   string         `yaml:"redis_addr"`
		RedisPrefix string         `yaml:"redis_prefix"`
		SQLitePath  string         `yaml:"sqlite_path"`
	} `yaml:"storage"`

	Cart struct {
		MaxSyncWrites int `yaml:"max_sync_writes"`
	} `yaml:"cart"`

	env mainConfig
}

var _ Config = (*FileConfig)(nil)

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads a YAML configuration file. ${VAR} references are expanded from
// the environment before parsing.
func Load(path string) (*FileConfig, error) {
	// #nosec G304 -- path comes from the command line
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse builds a FileConfig from YAML bytes.
func Parse(data []byte) (*FileConfig, error) {
	expanded := envPattern.ReplaceAllStringFunc(string(data), func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})

	var cfg FileConfig
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.Session.Persist != "" && cfg.Session.Persist != PersistIdentity && cfg.Session.Persist != PersistTokens {
		return nil, fmt.Errorf("parsing config: unknown session.persist %q", cfg.Session.Persist)
	}
	return &cfg, nil
}

func (c *FileConfig) GetAppName() string {
	return orDefault(c.AppName, c.env.GetAppName())
}

func (c *FileConfig) GetEnv() string {
	return orDefault(c.Env, c.env.EnvVars.GetEnv())
}

func (c *FileConfig) GetLogLevel() string {
	return orDefault(c.LogLevel, c.env.GetLogLevel())
}

func (c *FileConfig) GetBaseURL() string {
	return strings.TrimRight(orDefault(c.API.BaseURL, c.env.GetBaseURL()), "/")
}

func (c *FileConfig) GetAPIPrefix() string {
	if c.API.Prefix != nil {
		return *c.API.Prefix
	}
	return c.env.GetAPIPrefix()
}

// GetEndpoints overlays the configured paths on the defaults.
func (c *FileConfig) GetEndpoints() Endpoints {
	e := DefaultEndpoints()
	o := c.API.Endpoints
	e.Login = orDefault(o.Login, e.Login)
	e.Refresh = orDefault(o.Refresh, e.Refresh)
	e.Logout = orDefault(o.Logout, e.Logout)
	e.Users = orDefault(o.Users, e.Users)
	e.Cart = orDefault(o.Cart, e.Cart)
	e.CartItems = orDefault(o.CartItems, e.CartItems)
	e.Products = orDefault(o.Products, e.Products)
	e.Categories = orDefault(o.Categories, e.Categories)
	e.Reviews = orDefault(o.Reviews, e.Reviews)
	e.Inventory = orDefault(o.Inventory, e.Inventory)
	e.Orders = orDefault(o.Orders, e.Orders)
	e.GraphQL = orDefault(o.GraphQL, e.GraphQL)
	e.OAuth2 = orDefault(o.OAuth2, e.OAuth2)
	return e
}

func (c *FileConfig) GetHTTPTimeout() time.Duration {
	if c.API.Timeout > 0 {
		return c.API.Timeout
	}
	return c.env.GetHTTPTimeout()
}

func (c *FileConfig) GetPersistPolicy() PersistPolicy {
	if c.Session.Persist != "" {
		return c.Session.Persist
	}
	return c.env.GetPersistPolicy()
}

func (c *FileConfig) GetRefreshTimeout() time.Duration {
	if c.Session.RefreshTimeout > 0 {
		return c.Session.RefreshTimeout
	}
	return c.env.GetRefreshTimeout()
}

func (c *FileConfig) GetObfuscationSecret() string {
	return orDefault(c.Session.ObfuscationSecret, c.env.GetObfuscationSecret())
}

func (c *FileConfig) GetStorageBackend() StorageBackend {
	return StorageBackend(orDefault(string(c.Storage.Backend), string(c.env.GetStorageBackend())))
}

func (c *FileConfig) GetStorageFile() string {
	return orDefault(c.Storage.File, c.env.GetStorageFile())
}

func (c *FileConfig) GetRedisAddr() string {
	return orDefault(c.Storage.RedisAddr, c.env.GetRedisAddr())
}

func (c *FileConfig) GetRedisPrefix() string {
	return orDefault(c.Storage.RedisPrefix, c.env.GetRedisPrefix())
}

func (c *FileConfig) GetSQLitePath() string {
	return orDefault(c.Storage.SQLitePath, c.env.GetSQLitePath())
}

func (c *FileConfig) GetMaxSyncWrites() int {
	if c.Cart.MaxSyncWrites > 0 {
		return c.Cart.MaxSyncWrites
	}
	return c.env.GetMaxSyncWrites()
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
