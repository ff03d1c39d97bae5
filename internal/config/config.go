// Package config loads target database settings from database.toml, with
// DBMIGRATE_* environment variables taking precedence.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"

	"github.com/koba/db-migrate/internal/database"
)

// DatabaseConfig mirrors the [Database] table of database.toml.
type DatabaseConfig struct {
	Driver   string `toml:"Driver"   env:"DRIVER"`
	Host     string `toml:"Host"     env:"HOST"`
	Port     string `toml:"Port"     env:"PORT"`
	Database string `toml:"Database" env:"DATABASE"`
	User     string `toml:"User"     env:"USER"`
	Password string `toml:"Password" env:"PASSWORD"`
	Path     string `toml:"Path"     env:"PATH"`
}

// Config is the full configuration file.
type Config struct {
	Database DatabaseConfig `toml:"Database" envPrefix:"DBMIGRATE_"`
}

// Load reads the configuration file at path and applies environment
// overrides. A missing file is only an error when no driver is configured
// through the environment either.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{Host: "localhost"},
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// Fall through to environment-only configuration.
	default:
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if cfg.Database.Driver == "" {
		return nil, fmt.Errorf("no database driver configured (set Driver in %s or DBMIGRATE_DRIVER)", path)
	}

	if cfg.Database.Port == "" {
		switch cfg.Database.Driver {
		case "mysql", "MySQL":
			cfg.Database.Port = "3306"
		case "postgres", "Postgres", "PostgreSQL":
			cfg.Database.Port = "5432"
		}
	}

	return cfg, nil
}

// DatabaseConfig converts the loaded settings into a connector config.
func (c *Config) DatabaseConfig() database.Config {
	return database.Config{
		Driver:   c.Database.Driver,
		Host:     c.Database.Host,
		Port:     c.Database.Port,
		Database: c.Database.Database,
		User:     c.Database.User,
		Password: c.Database.Password,
		Path:     c.Database.Path,
	}
}
