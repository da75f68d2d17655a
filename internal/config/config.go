package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreValkey   = "valkey"
)

// Config holds all runtime settings.
type Config struct {
	// Server
	Port       string
	CORSOrigin string
	JWTSecret  string
	Debug      bool

	// Persistence
	Store       string // memory, postgres or valkey
	DatabaseURL string
	ValkeyAddr  string

	// Scheduled promotion; disabled when PromoteInterval is zero.
	PromoteInterval time.Duration
	PromoteMax      int
	PromoteMinVotes int
}

// DefaultConfig returns settings with default values.
func DefaultConfig() *Config {
	return &Config{
		Port:            "8080",
		CORSOrigin:      "http://127.0.0.1:5173",
		Store:           StoreMemory,
		ValkeyAddr:      "127.0.0.1:6379",
		PromoteInterval: 0,
		PromoteMax:      1,
		PromoteMinVotes: 1,
	}
}

// Load reads a .env file if present, then overlays environment variables on
// the defaults.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading env file: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function such as os.Getenv.
func FromEnv(getenv func(string) string) (*Config, error) {
	c := DefaultConfig()

	setString(getenv, "PORT", &c.Port)
	setString(getenv, "CORS_ORIGIN", &c.CORSOrigin)
	setString(getenv, "JWT_SECRET", &c.JWTSecret)
	setString(getenv, "STORE", &c.Store)
	setString(getenv, "DATABASE_URL", &c.DatabaseURL)
	setString(getenv, "VALKEY_ADDR", &c.ValkeyAddr)

	if v := getenv("DEBUG"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("DEBUG: %w", err)
		}
		c.Debug = b
	}
	if v := getenv("PROMOTE_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("PROMOTE_INTERVAL: %w", err)
		}
		c.PromoteInterval = d
	}
	if err := setInt(getenv, "PROMOTE_MAX", &c.PromoteMax); err != nil {
		return nil, err
	}
	if err := setInt(getenv, "PROMOTE_MIN_VOTES", &c.PromoteMinVotes); err != nil {
		return nil, err
	}

	return c, c.Validate()
}

// Validate checks settings that depend on each other.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres store")
		}
	case StoreValkey:
		if c.ValkeyAddr == "" {
			return errors.New("VALKEY_ADDR is required for the valkey store")
		}
	default:
		return fmt.Errorf("unknown STORE %q", c.Store)
	}
	if c.PromoteInterval < 0 {
		return errors.New("PROMOTE_INTERVAL must not be negative")
	}
	if c.PromoteMax < 0 || c.PromoteMinVotes < 0 {
		return errors.New("PROMOTE_MAX and PROMOTE_MIN_VOTES must not be negative")
	}
	return nil
}

func setString(getenv func(string) string, key string, dst *string) {
	if v := getenv(key); v != "" {
		*dst = v
	}
}

func setInt(getenv func(string) string, key string, dst *int) error {
	v := getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}
