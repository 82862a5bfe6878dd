// Package config holds the settings of a turnstile process. Values come
// from Default, then an optional Lua file, then explicitly set flags.
package config

import (
	"fmt"
	"time"

	"github.com/andrebq/turnstile/password"
)

const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

type (
	Config struct {
		Bind     string
		Database string

		SessionBackend string
		RedisAddr      string
		RedisPrefix    string

		CookieName     string
		InsecureCookie bool
		IdleTimeout    time.Duration
		SweepInterval  time.Duration

		Argon2      password.Config
		HashWorkers int

		LogLevel  string
		LogPretty bool
	}
)

func Default() Config {
	return Config{
		Bind:           "localhost:8080",
		Database:       "turnstile.db",
		SessionBackend: BackendSQLite,
		RedisAddr:      "localhost:6379",
		CookieName:     "turnstile_session",
		IdleTimeout:    30 * time.Minute,
		SweepInterval:  5 * time.Minute,
		Argon2:         password.DefaultConfig(),
		LogLevel:       "info",
	}
}

func (c Config) Validate() error {
	switch c.SessionBackend {
	case BackendSQLite, BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("config: session backend must be one of %v, %v or %v, got %q",
			BackendSQLite, BackendMemory, BackendRedis, c.SessionBackend)
	}
	if c.IdleTimeout < time.Second {
		return fmt.Errorf("config: idle timeout must be at least one second, got %v", c.IdleTimeout)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("config: sweep interval must be positive, got %v", c.SweepInterval)
	}
	if c.CookieName == "" {
		return fmt.Errorf("config: cookie name cannot be empty")
	}
	if c.SessionBackend == BackendRedis && c.RedisAddr == "" {
		return fmt.Errorf("config: redis backend requires an address")
	}
	if _, err := password.NewArgon2(c.Argon2); err != nil {
		return fmt.Errorf("config: invalid argon2 settings, cause %w", err)
	}
	return nil
}
