package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/andrebq/turnstile/auth"
	"github.com/andrebq/turnstile/internal/config"
	"github.com/andrebq/turnstile/sessionstore"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, backend string) config.Config {
	cfg := config.Default()
	cfg.Database = filepath.Join(t.TempDir(), "turnstile.db")
	cfg.SessionBackend = backend
	cfg.Argon2.Memory = 1024
	cfg.Argon2.Time = 1
	return cfg
}

func TestOpenEachBackend(t *testing.T) {
	srv := miniredis.RunT(t)
	for _, backend := range []string{config.BackendSQLite, config.BackendMemory, config.BackendRedis} {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			cfg := testConfig(t, backend)
			cfg.RedisAddr = srv.Addr()
			svc, err := Open(ctx, cfg, nil)
			require.NoError(t, err)
			defer svc.Close()

			switch backend {
			case config.BackendSQLite:
				require.IsType(t, &sessionstore.SQLite{}, svc.Sessions)
			case config.BackendMemory:
				require.IsType(t, &sessionstore.Memory{}, svc.Sessions)
			case config.BackendRedis:
				require.IsType(t, &sessionstore.Redis{}, svc.Sessions)
			}

			registered, err := svc.Auth.Register(ctx, "user@example.com", "correct horse")
			require.NoError(t, err)
			id, err := svc.Auth.Authenticate(ctx, auth.Credentials{Email: "user@example.com", Password: "correct horse"})
			require.NoError(t, err)
			require.Equal(t, registered.ID, id.ID)
		})
	}
}

func TestOpenUnreachableRedis(t *testing.T) {
	srv := miniredis.RunT(t)
	addr := srv.Addr()
	srv.Close()

	cfg := testConfig(t, config.BackendRedis)
	cfg.RedisAddr = addr
	_, err := Open(context.Background(), cfg, nil)
	require.Error(t, err)
}
