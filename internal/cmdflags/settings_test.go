package cmdflags

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/andrebq/turnstile/internal/config"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func resolve(t *testing.T, args ...string) config.Config {
	settings := NewSettings()
	var cfg config.Config
	app := &cli.App{
		Name:  "test",
		Flags: settings.Flags(true),
		Action: func(ctx *cli.Context) error {
			var err error
			cfg, err = settings.Resolve(ctx)
			return err
		},
	}
	require.NoError(t, app.Run(append([]string{"test"}, args...)))
	return cfg
}

func TestResolveDefaults(t *testing.T) {
	cfg := resolve(t)
	require.Equal(t, config.Default(), cfg)
}

func TestFlagsOverrideLuaFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.lua")
	require.NoError(t, os.WriteFile(path, []byte(`return {
		bind = "0.0.0.0:9000",
		idle_timeout = "1h",
		session_backend = "memory",
	}`), 0644))

	cfg := resolve(t, "--config", path, "--idle-timeout", "10m", "--insecure-cookie", "--argon2-time", "4")
	require.Equal(t, "0.0.0.0:9000", cfg.Bind, "lua value kept when the flag is not set")
	require.Equal(t, config.BackendMemory, cfg.SessionBackend)
	require.Equal(t, 10*time.Minute, cfg.IdleTimeout, "explicit flag wins over lua")
	require.True(t, cfg.InsecureCookie)
	require.Equal(t, uint32(4), cfg.Argon2.Time)
}

func TestResolveValidates(t *testing.T) {
	settings := NewSettings()
	app := &cli.App{
		Name:  "test",
		Flags: settings.Flags(true),
		Action: func(ctx *cli.Context) error {
			_, err := settings.Resolve(ctx)
			return err
		},
	}
	require.Error(t, app.Run([]string{"test", "--session-backend", "mongo"}))
}

func TestResolveRejectsOversizedArgon2(t *testing.T) {
	for _, args := range [][]string{
		{"--argon2-parallelism", "257"},
		{"--argon2-parallelism", "256"},
		{"--argon2-memory", "4294967296"},
	} {
		settings := NewSettings()
		app := &cli.App{
			Name:  "test",
			Flags: settings.Flags(true),
			Action: func(ctx *cli.Context) error {
				_, err := settings.Resolve(ctx)
				return err
			},
		}
		err := app.Run(append([]string{"test"}, args...))
		require.Error(t, err, "%v", args)
		require.Contains(t, err.Error(), "must be at most")
	}

	cfg := resolve(t, "--argon2-parallelism", "255")
	require.Equal(t, uint8(255), cfg.Argon2.Parallelism)
}
