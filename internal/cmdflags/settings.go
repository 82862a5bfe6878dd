package cmdflags

import (
	"fmt"
	"math"
	"time"

	"github.com/andrebq/turnstile/internal/config"
	"github.com/urfave/cli/v2"
)

type (
	// Settings binds the command line to a config.Config. Only flags that
	// were explicitly set (or came from env vars) override the Lua file.
	Settings struct {
		ConfigFile string

		flagged          config.Config
		argonMemory      uint
		argonTime        uint
		argonParallelism uint
	}
)

const (
	envPrefix = "TURNSTILE_"
)

func env(name string) []string {
	return []string{envPrefix + name}
}

func Database(out *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "database",
		Aliases:     []string{"db"},
		Usage:       "Path to the SQLite database file",
		EnvVars:     env("DATABASE"),
		Value:       *out,
		Destination: out,
	}
}

func ConfigFile(out *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "Lua file returning a table with settings, flags take precedence over it",
		EnvVars:     env("CONFIG"),
		Value:       *out,
		Destination: out,
	}
}

func NewSettings() *Settings {
	s := &Settings{flagged: config.Default()}
	s.argonMemory = uint(s.flagged.Argon2.Memory)
	s.argonTime = uint(s.flagged.Argon2.Time)
	s.argonParallelism = uint(s.flagged.Argon2.Parallelism)
	return s
}

// Flags returns every setting flag, when serve is false the http and
// session specific ones are omitted.
func (s *Settings) Flags(serve bool) []cli.Flag {
	f := &s.flagged
	flags := []cli.Flag{
		ConfigFile(&s.ConfigFile),
		Database(&f.Database),
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Minimum log level (trace, debug, info, warn, error)",
			EnvVars:     env("LOG_LEVEL"),
			Value:       f.LogLevel,
			Destination: &f.LogLevel,
		},
		&cli.BoolFlag{
			Name:        "log-pretty",
			Usage:       "Human friendly console logs instead of JSON",
			EnvVars:     env("LOG_PRETTY"),
			Destination: &f.LogPretty,
		},
		&cli.StringFlag{
			Name:        "session-backend",
			Usage:       "Where sessions are kept: sqlite, memory or redis",
			EnvVars:     env("SESSION_BACKEND"),
			Value:       f.SessionBackend,
			Destination: &f.SessionBackend,
		},
		&cli.StringFlag{
			Name:        "redis-addr",
			Usage:       "Redis address used by the redis session backend",
			EnvVars:     env("REDIS_ADDR"),
			Value:       f.RedisAddr,
			Destination: &f.RedisAddr,
		},
		&cli.StringFlag{
			Name:        "redis-prefix",
			Usage:       "Key prefix for sessions stored in redis",
			EnvVars:     env("REDIS_PREFIX"),
			Destination: &f.RedisPrefix,
		},
		&cli.UintFlag{
			Name:        "argon2-memory",
			Usage:       "Argon2id memory cost in KiB",
			EnvVars:     env("ARGON2_MEMORY"),
			Value:       s.argonMemory,
			Destination: &s.argonMemory,
		},
		&cli.UintFlag{
			Name:        "argon2-time",
			Usage:       "Argon2id iterations",
			EnvVars:     env("ARGON2_TIME"),
			Value:       s.argonTime,
			Destination: &s.argonTime,
		},
		&cli.UintFlag{
			Name:        "argon2-parallelism",
			Usage:       "Argon2id lanes",
			EnvVars:     env("ARGON2_PARALLELISM"),
			Value:       s.argonParallelism,
			Destination: &s.argonParallelism,
		},
		&cli.IntFlag{
			Name:        "hash-workers",
			Usage:       "Maximum concurrent password hash computations (0 uses half the CPUs)",
			EnvVars:     env("HASH_WORKERS"),
			Destination: &f.HashWorkers,
		},
	}
	if !serve {
		return flags
	}
	return append(flags,
		&cli.StringFlag{
			Name:        "bind",
			Usage:       "Address to bind the HTTP server",
			EnvVars:     env("BIND"),
			Value:       f.Bind,
			Destination: &f.Bind,
		},
		&cli.StringFlag{
			Name:        "cookie-name",
			Usage:       "Name of the session cookie",
			EnvVars:     env("COOKIE_NAME"),
			Value:       f.CookieName,
			Destination: &f.CookieName,
		},
		&cli.BoolFlag{
			Name:        "insecure-cookie",
			Usage:       "Send the session cookie over plain http (local development only)",
			EnvVars:     env("INSECURE_COOKIE"),
			Destination: &f.InsecureCookie,
		},
		&cli.DurationFlag{
			Name:        "idle-timeout",
			Usage:       "Sessions without activity for this long are signed out",
			EnvVars:     env("IDLE_TIMEOUT"),
			Value:       f.IdleTimeout,
			Destination: &f.IdleTimeout,
		},
		&cli.DurationFlag{
			Name:        "sweep-interval",
			Usage:       "How often expired sessions are removed from the store",
			EnvVars:     env("SWEEP_INTERVAL"),
			Value:       f.SweepInterval,
			Destination: &f.SweepInterval,
		},
	)
}

// Resolve builds the effective configuration: defaults, then the Lua file
// when one was given, then every flag that was explicitly set.
func (s *Settings) Resolve(ctx *cli.Context) (config.Config, error) {
	cfg := config.Default()
	if s.ConfigFile != "" {
		if err := config.LoadFile(s.ConfigFile, &cfg); err != nil {
			return config.Config{}, err
		}
	}
	f := s.flagged
	overrideString(ctx, "database", &cfg.Database, f.Database)
	overrideString(ctx, "log-level", &cfg.LogLevel, f.LogLevel)
	overrideString(ctx, "session-backend", &cfg.SessionBackend, f.SessionBackend)
	overrideString(ctx, "redis-addr", &cfg.RedisAddr, f.RedisAddr)
	overrideString(ctx, "redis-prefix", &cfg.RedisPrefix, f.RedisPrefix)
	overrideString(ctx, "bind", &cfg.Bind, f.Bind)
	overrideString(ctx, "cookie-name", &cfg.CookieName, f.CookieName)
	overrideBool(ctx, "log-pretty", &cfg.LogPretty, f.LogPretty)
	overrideBool(ctx, "insecure-cookie", &cfg.InsecureCookie, f.InsecureCookie)
	overrideDuration(ctx, "idle-timeout", &cfg.IdleTimeout, f.IdleTimeout)
	overrideDuration(ctx, "sweep-interval", &cfg.SweepInterval, f.SweepInterval)
	if ctx.IsSet("hash-workers") {
		cfg.HashWorkers = f.HashWorkers
	}
	if ctx.IsSet("argon2-memory") {
		if err := checkRange("argon2-memory", s.argonMemory, math.MaxUint32); err != nil {
			return config.Config{}, err
		}
		cfg.Argon2.Memory = uint32(s.argonMemory)
	}
	if ctx.IsSet("argon2-time") {
		if err := checkRange("argon2-time", s.argonTime, math.MaxUint32); err != nil {
			return config.Config{}, err
		}
		cfg.Argon2.Time = uint32(s.argonTime)
	}
	if ctx.IsSet("argon2-parallelism") {
		if err := checkRange("argon2-parallelism", s.argonParallelism, math.MaxUint8); err != nil {
			return config.Config{}, err
		}
		cfg.Argon2.Parallelism = uint8(s.argonParallelism)
	}
	return cfg, cfg.Validate()
}

// checkRange rejects flag values that do not fit the narrower config field.
func checkRange(name string, v uint, limit uint64) error {
	if uint64(v) > limit {
		return fmt.Errorf("cmdflags: %v must be at most %v, got %v", name, limit, v)
	}
	return nil
}

func overrideString(ctx *cli.Context, name string, dst *string, v string) {
	if ctx.IsSet(name) {
		*dst = v
	}
}

func overrideBool(ctx *cli.Context, name string, dst *bool, v bool) {
	if ctx.IsSet(name) {
		*dst = v
	}
}

func overrideDuration(ctx *cli.Context, name string, dst *time.Duration, v time.Duration) {
	if ctx.IsSet(name) {
		*dst = v
	}
}
