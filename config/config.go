// Package config loads the chatstate process configuration.
//
// Values are resolved in order: defaults, the YAML file, then CHATSTATE_*
// environment variables. A .env file in the working directory is loaded
// into the environment first; variables that are already set win.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the process settings.
type Config struct {
	ServerAddr string `yaml:"server_addr"`
	// LocalUserID is the user this client runs as. Required.
	LocalUserID string `yaml:"local_user_id"`
	// TimeZone groups timelines by day. Empty means the host zone.
	TimeZone string `yaml:"time_zone"`
	LogLevel string `yaml:"log_level"`

	// PostgresDSN and RedisAddr enable the roster sources. Either may be
	// empty.
	PostgresDSN string `yaml:"postgres_dsn"`
	RedisAddr   string `yaml:"redis_addr"`
	// RosterMessageLimit caps the messages read from Postgres at startup.
	RosterMessageLimit int `yaml:"roster_message_limit"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		ServerAddr:         ":8080",
		LogLevel:           "info",
		RosterMessageLimit: 500,
		ShutdownTimeout:    10 * time.Second,
	}
}

// Load reads the configuration. An empty path skips the YAML file; a path
// that does not exist is an error.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"CHATSTATE_SERVER_ADDR":   &c.ServerAddr,
		"CHATSTATE_LOCAL_USER_ID": &c.LocalUserID,
		"CHATSTATE_TIME_ZONE":     &c.TimeZone,
		"CHATSTATE_LOG_LEVEL":     &c.LogLevel,
		"CHATSTATE_POSTGRES_DSN":  &c.PostgresDSN,
		"CHATSTATE_REDIS_ADDR":    &c.RedisAddr,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	if v, ok := lookup("CHATSTATE_ROSTER_MESSAGE_LIMIT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CHATSTATE_ROSTER_MESSAGE_LIMIT: %w", err)
		}
		c.RosterMessageLimit = n
	}
	if v, ok := lookup("CHATSTATE_SHUTDOWN_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("CHATSTATE_SHUTDOWN_TIMEOUT: %w", err)
		}
		c.ShutdownTimeout = d
	}
	return nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.LocalUserID == "" {
		return errors.New("config: local_user_id is required")
	}
	if c.RosterMessageLimit <= 0 {
		return fmt.Errorf("config: roster_message_limit must be positive, got %d", c.RosterMessageLimit)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Location resolves TimeZone.
func (c Config) Location() (*time.Location, error) {
	if c.TimeZone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("config: time_zone: %w", err)
	}
	return loc, nil
}

// Level resolves LogLevel.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("config: log_level: %w", err)
	}
	return l, nil
}
