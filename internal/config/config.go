package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
		Lang string `yaml:"lang"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Storage struct {
		Driver string `yaml:"driver"`
		SQLite struct {
			Path string `yaml:"path"`
		} `yaml:"sqlite"`
	} `yaml:"storage"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL                string `yaml:"ttl"`
		TimeLimit          string `yaml:"time_limit"`
		RequireAllAnswered *bool  `yaml:"require_all_answered"`
		SeedFile           string `yaml:"seed_file"`
	} `yaml:"quiz"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Server.Lang = "en"
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	cfg.Storage.Driver = DriverSQLite
	cfg.Storage.SQLite.Path = "quizdeck.db"
	cfg.Quiz.TTL = "10m"
	cfg.Quiz.TimeLimit = "10m"
	return cfg
}

// Load reads YAML config from path over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks values that would otherwise fail late at startup.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case DriverMemory, DriverSQLite:
	case DriverPostgres:
		if c.Postgres.URL == "" {
			return errors.New("storage driver postgres needs postgres.url")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.Driver == DriverSQLite && c.Storage.SQLite.Path == "" {
		return errors.New("storage driver sqlite needs storage.sqlite.path")
	}
	if c.Quiz.TimeLimit != "" {
		if d, err := time.ParseDuration(c.Quiz.TimeLimit); err != nil || d < 0 {
			return fmt.Errorf("invalid quiz.time_limit %q", c.Quiz.TimeLimit)
		}
	}
	return nil
}

// RequireAllAnswered defaults to true when unset.
func (c Config) RequireAllAnswered() bool {
	if c.Quiz.RequireAllAnswered == nil {
		return true
	}
	return *c.Quiz.RequireAllAnswered
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
