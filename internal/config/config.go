// Package config loads daemon settings from defaults, an optional YAML file
// and ROBOTOPS_* environment variables, in increasing precedence.
package config

import (
	"encoding/hex"
	"os"
	"strings"
	"time"

	"github.com/celerix-dev/robot-ops/internal/vault"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const EnvPrefix = "ROBOTOPS"

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"

	PersistJSON   = "json"
	PersistBadger = "badger"
	PersistNone   = "none"
)

// Config is the full daemon configuration.
type Config struct {
	HTTP      HTTPConfig      `mapstructure:"http"`
	Store     StoreConfig     `mapstructure:"store"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Bootstrap BootstrapConfig `mapstructure:"bootstrap"`
	Log       LogConfig       `mapstructure:"log"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
	TLS  bool   `mapstructure:"tls"`
}

type StoreConfig struct {
	Driver      string `mapstructure:"driver"`
	DataDir     string `mapstructure:"data_dir"`
	Persistence string `mapstructure:"persistence"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

type AuthConfig struct {
	// TokenKey is a hex encoded 32 byte AES key. Empty means a fresh key per
	// process, which invalidates every session on restart.
	TokenKey     string        `mapstructure:"token_key"`
	TokenTTL     time.Duration `mapstructure:"token_ttl"`
	CookieName   string        `mapstructure:"cookie_name"`
	SecureCookie bool          `mapstructure:"secure_cookie"`
}

type BootstrapConfig struct {
	SuperAdminEmail    string `mapstructure:"superadmin_email"`
	SuperAdminName     string `mapstructure:"superadmin_name"`
	SuperAdminPassword string `mapstructure:"superadmin_password"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func defaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":7002")
	v.SetDefault("http.tls", false)
	v.SetDefault("store.driver", DriverMemory)
	v.SetDefault("store.data_dir", "./data")
	v.SetDefault("store.persistence", PersistJSON)
	v.SetDefault("store.postgres_dsn", "")
	v.SetDefault("auth.token_key", "")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("auth.cookie_name", "robotops_session")
	v.SetDefault("auth.secure_cookie", false)
	v.SetDefault("bootstrap.superadmin_email", "")
	v.SetDefault("bootstrap.superadmin_name", "SuperAdmin")
	v.SetDefault("bootstrap.superadmin_password", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads path when non-empty, then applies environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	defaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory:
		switch c.Store.Persistence {
		case PersistJSON, PersistBadger, PersistNone:
		default:
			return errors.Errorf("unknown store.persistence %q", c.Store.Persistence)
		}
	case DriverPostgres:
		if c.Store.PostgresDSN == "" {
			return errors.New("store.postgres_dsn is required for the postgres driver")
		}
	default:
		return errors.Errorf("unknown store.driver %q", c.Store.Driver)
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("auth.token_ttl must be positive")
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, "log.level")
	}
	return nil
}

// TokenKey decodes the configured key or generates a random one.
func (c *Config) TokenKey() ([]byte, error) {
	if c.Auth.TokenKey == "" {
		return vault.NewKey()
	}
	key, err := hex.DecodeString(c.Auth.TokenKey)
	if err != nil {
		return nil, errors.Wrap(err, "auth.token_key is not hex")
	}
	if len(key) != 32 {
		return nil, errors.Errorf("auth.token_key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}

// ConfigureLogging applies the log section to the standard logrus logger.
func (c *Config) ConfigureLogging() {
	level, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	logrus.SetOutput(os.Stderr)
	if c.Log.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}
