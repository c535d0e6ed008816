// Package config loads daemon settings from flags, RPSD_* environment
// variables and an optional <home>/config/app.toml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/Cript/game-rps/internal/rps"
	"github.com/Cript/game-rps/internal/store"
)

const EnvPrefix = "RPSD"

type Config struct {
	Home string     `mapstructure:"home"`
	ABCI ABCIConfig `mapstructure:"abci"`
	DB   DBConfig   `mapstructure:"db"`
	RPS  rps.Params `mapstructure:"rps"`
	Log  LogConfig  `mapstructure:"log"`
}

type ABCIConfig struct {
	Addr      string `mapstructure:"addr"`
	Transport string `mapstructure:"transport"`
}

type DBConfig struct {
	Backend string `mapstructure:"backend"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DataDir is where the state store lives.
func (c Config) DataDir() string {
	return filepath.Join(c.Home, "data")
}

func SetDefaults(v *viper.Viper) {
	params := rps.DefaultParams()
	v.SetDefault("home", ".rpsd")
	v.SetDefault("abci.addr", "tcp://127.0.0.1:26658")
	v.SetDefault("abci.transport", "socket")
	v.SetDefault("db.backend", string(store.BackendFile))
	v.SetDefault("rps.capacity", params.Capacity)
	v.SetDefault("rps.max_roster_size", params.MaxRosterSize)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "plain")
}

// Load resolves the configuration. Flags must already be bound to v.
func Load(v *viper.Viper) (Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path := filepath.Join(v.GetString("home"), "config", "app.toml")
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("stat %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Home == "" {
		return fmt.Errorf("home must be set")
	}
	switch c.ABCI.Transport {
	case "socket", "grpc":
	default:
		return fmt.Errorf("abci.transport must be socket or grpc, got %q", c.ABCI.Transport)
	}
	if _, err := store.ParseBackend(c.DB.Backend); err != nil {
		return err
	}
	switch c.Log.Format {
	case "plain", "json":
	default:
		return fmt.Errorf("log.format must be plain or json, got %q", c.Log.Format)
	}
	if err := c.RPS.Validate(); err != nil {
		return fmt.Errorf("rps: %w", err)
	}
	return nil
}
