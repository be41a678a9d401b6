package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the example server configuration. It is read from an optional
// yaml file, HXLIVE_* environment variables and command line flags, in
// increasing order of precedence.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	Session SessionConfig `mapstructure:"session"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Metrics         bool          `mapstructure:"metrics"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type SessionConfig struct {
	// Key signs component props, hex encoded. Empty generates a key per run.
	Key           string        `mapstructure:"key"`
	Cookie        string        `mapstructure:"cookie"`
	MaxAge        time.Duration `mapstructure:"max_age"`
	DeleteTimeout time.Duration `mapstructure:"delete_timeout"`
	SSETick       time.Duration `mapstructure:"sse_tick"`
	BufferSize    int           `mapstructure:"buffer_size"`
}

func newFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("example", pflag.ContinueOnError)
	fs.StringP("config", "c", "", "path to a yaml config file")
	fs.String("addr", ":8080", "listen address")
	fs.String("log-level", "info", "log level: debug, info, warn or error")
	fs.String("log-format", "text", "log format: text or json")
	fs.Bool("metrics", true, "serve prometheus metrics on /metrics")
	return fs
}

// Load builds the configuration from flags, the config file they name and
// the environment.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.metrics", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("session.cookie", "sid")
	v.SetDefault("session.max_age", 7*24*time.Hour)
	v.SetDefault("session.delete_timeout", 10*time.Second)
	v.SetDefault("session.sse_tick", 15*time.Second)
	v.SetDefault("session.buffer_size", 10)

	v.SetEnvPrefix("HXLIVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, flag := range map[string]string{
		"server.addr":    "addr",
		"server.metrics": "metrics",
		"log.level":      "log-level",
		"log.format":     "log-format",
	} {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return nil, err
		}
	}

	if path, _ := fs.GetString("config"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// KeyBytes decodes the props signing key.
func (c SessionConfig) KeyBytes() ([]byte, error) {
	if c.Key == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(c.Key)
	if err != nil {
		return nil, fmt.Errorf("session.key: %w", err)
	}
	if len(key) < 32 {
		return nil, fmt.Errorf("session.key: need at least 32 bytes, got %d", len(key))
	}
	return key, nil
}

func newLogger(cfg LogConfig) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	switch cfg.Format {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}
