// Package config handles loading and parsing application configuration.
// It supports three sources (in priority order):
//  1. An environment variable:  CONFIG_PATH=/path/to/config.yaml
//  2. A command-line flag:      --config=/path/to/config.yaml
//  3. Plain environment variables with built-in defaults, when no file
//     is given at all.
//
// Environment variables always win over values from the YAML file.
// A .env file in the working directory, if present, is loaded into the
// process environment before anything is read.
package config

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	// Side-effect import: loads .env (if it exists) into os.Environ
	// before cleanenv reads the env:"..." tags below.
	_ "github.com/joho/godotenv/autoload"
)

// Config is the root configuration structure.
// Every field maps to a key in the YAML file AND can be overridden
// by the corresponding environment variable (env:"...").
type Config struct {
	// Env controls log format and verbosity.
	// Valid values: "dev", "staging", "prod"
	Env string `yaml:"env" env:"ENV" env-default:"dev"`

	// StoragePath is the SQLite data source: a file path, optionally
	// with driver query parameters (e.g. "users.db?_busy_timeout=5000").
	StoragePath string `yaml:"storage_path" env:"DATABASE_URL" env-default:"storage/users.db"`

	// SkipSeed turns off the startup seed of demo users and addresses.
	// cleanenv fills zero values from env-default, so a boolean that
	// defaults to true could never be switched off from YAML.
	SkipSeed bool `yaml:"skip_seed" env:"SKIP_SEED"`

	HTTPServer `yaml:"http_server"`
	Database   `yaml:"database"`
}

// HTTPServer holds settings specific to the HTTP server.
type HTTPServer struct {
	Addr            string        `yaml:"address"          env:"HTTP_SERVER_ADDR"      env-default:"localhost:8082"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"HTTP_READ_TIMEOUT"     env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"HTTP_WRITE_TIMEOUT"    env-default:"10s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"HTTP_IDLE_TIMEOUT"     env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"5s"`
}

// Database tunes the connection pool and query observability.
type Database struct {
	MaxOpenConns       int           `yaml:"max_open_conns"       env:"DB_MAX_OPEN_CONNS"       env-default:"10"`
	MaxIdleConns       int           `yaml:"max_idle_conns"       env:"DB_MAX_IDLE_CONNS"       env-default:"5"`
	SlowQueryThreshold time.Duration `yaml:"slow_query_threshold" env:"DB_SLOW_QUERY_THRESHOLD" env-default:"200ms"`
}

// Load reads the config from configPath, or from the environment only
// when configPath is empty.
func Load(configPath string) (*Config, error) {
	var cfg Config

	if configPath == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("config.Load: read env: %w", err)
		}
		return &cfg, nil
	}

	// Verify the file exists before trying to read it, so the message
	// names the path rather than a bare "no such file".
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config.Load: config file does not exist: %s", configPath)
	}

	// cleanenv.ReadConfig parses the YAML file, then applies env
	// overrides and env-default values.
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: read %s: %w", configPath, err)
	}

	return &cfg, nil
}

// MustLoad resolves the config path from CONFIG_PATH or --config and
// returns the loaded config. It exits the process on failure: if this
// returns, the config is valid.
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")

	if configPath == "" {
		flags := flag.String("config", "", "Path to the configuration YAML file")
		flag.Parse()
		configPath = *flags
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot load config: %s", err.Error())
	}

	return cfg
}
