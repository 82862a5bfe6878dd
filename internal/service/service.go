// Package service assembles the stores, backends and session manager from
// a config.Config, every command builds on it.
package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/andrebq/turnstile/auth"
	"github.com/andrebq/turnstile/internal/config"
	"github.com/andrebq/turnstile/internal/database"
	"github.com/andrebq/turnstile/password"
	"github.com/andrebq/turnstile/profile"
	"github.com/andrebq/turnstile/session"
	"github.com/andrebq/turnstile/sessionstore"
	"github.com/andrebq/turnstile/users"
	"github.com/benbjohnson/clock"
	"github.com/redis/go-redis/v9"
)

type (
	Service struct {
		Config   config.Config
		Clock    clock.Clock
		DB       *sql.DB
		Users    users.Store
		Auth     *auth.Backend
		Sessions sessionstore.Store
		Manager  *session.Manager
		Profiles *profile.SQLite

		closers []func() error
	}
)

// Open connects to every backend selected by cfg, Close releases them.
func Open(ctx context.Context, cfg config.Config, clk clock.Clock) (*Service, error) {
	if clk == nil {
		clk = clock.New()
	}
	s := &Service{Config: cfg, Clock: clk}
	db, err := database.Open(ctx, cfg.Database, true)
	if err != nil {
		return nil, err
	}
	s.DB = db
	s.closers = append(s.closers, db.Close)

	hasher, err := password.NewArgon2(cfg.Argon2)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Users = users.NewSQLite(db)
	s.Auth = auth.NewBackend(s.Users, password.NewPool(hasher, cfg.HashWorkers))
	s.Profiles = profile.NewSQLite(db)

	s.Sessions, err = s.openSessionStore(ctx)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Manager = session.NewManager(s.Sessions, s.Auth, clk, session.Config{
		CookieName:   cfg.CookieName,
		SecureCookie: !cfg.InsecureCookie,
		IdleTimeout:  cfg.IdleTimeout,
	})
	return s, nil
}

func (s *Service) openSessionStore(ctx context.Context) (sessionstore.Store, error) {
	switch s.Config.SessionBackend {
	case config.BackendSQLite:
		return sessionstore.NewSQLite(s.DB, s.Clock), nil
	case config.BackendMemory:
		// entries are saved again on every authenticated request, twice the
		// idle timeout keeps active sessions in the cache
		m, err := sessionstore.NewMemory(2*s.Config.IdleTimeout, s.Clock)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, m.Close)
		return m, nil
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{Addr: s.Config.RedisAddr})
		s.closers = append(s.closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("unable to reach redis at %v, cause %w", s.Config.RedisAddr, err)
		}
		return sessionstore.NewRedis(client, s.Config.RedisPrefix, s.Clock), nil
	}
	return nil, fmt.Errorf("unknown session backend %q", s.Config.SessionBackend)
}

func (s *Service) Close() error {
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	s.closers = nil
	return first
}
