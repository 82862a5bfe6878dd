package users

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/andrebq/turnstile/auth"
	"github.com/andrebq/turnstile/internal/config"
	"github.com/andrebq/turnstile/internal/service"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func run(t *testing.T, stdin string, args ...string) error {
	app := &cli.App{
		Name:      "turnstile",
		Reader:    strings.NewReader(stdin),
		Writer:    &bytes.Buffer{},
		ErrWriter: &bytes.Buffer{},
		Commands:  []*cli.Command{Cmd()},
	}
	return app.Run(append([]string{"turnstile", "users"}, args...))
}

func TestRegisterAndPasswd(t *testing.T) {
	db := filepath.Join(t.TempDir(), "users.db")
	weak := []string{"--database", db, "--argon2-memory", "1024", "--argon2-time", "1"}

	require.NoError(t, run(t, "first password\n", append([]string{"register", "--email", "user@example.com"}, weak...)...))
	require.Error(t, run(t, "", append([]string{"register", "--email", "other@example.com"}, weak...)...))
	require.NoError(t, run(t, "second password\n", append([]string{"passwd", "--email", "user@example.com"}, weak...)...))

	cfg := config.Default()
	cfg.Database = db
	cfg.Argon2.Memory = 1024
	cfg.Argon2.Time = 1
	ctx := context.Background()
	svc, err := service.Open(ctx, cfg, nil)
	require.NoError(t, err)
	defer svc.Close()

	id, err := svc.Auth.Authenticate(ctx, auth.Credentials{Email: "user@example.com", Password: "first password"})
	require.NoError(t, err)
	require.Nil(t, id)
	id, err = svc.Auth.Authenticate(ctx, auth.Credentials{Email: "user@example.com", Password: "second password"})
	require.NoError(t, err)
	require.NotNil(t, id)
}
