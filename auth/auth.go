// Package auth turns credentials or a user id into an Identity.
//
// Credential rejections are not errors: Authenticate returns nil, nil for an
// unknown email and for a wrong password alike. Errors are reserved for
// persistence failures and always match ErrBackend.
package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"

	"github.com/andrebq/turnstile/internal/logutil"
	"github.com/andrebq/turnstile/password"
	"github.com/andrebq/turnstile/users"
)

type (
	Identity struct {
		ID int64
		// SessionAuthHash is derived from the current password hash, sessions
		// that carry a different value are no longer valid.
		SessionAuthHash []byte
	}

	Credentials struct {
		Email    string
		Password string
	}

	Backend struct {
		users users.Store
		pool  *password.Pool

		dummyOnce sync.Once
		dummy     string
		dummyErr  error
	}

	backendError struct {
		op    string
		cause error
	}
)

var (
	ErrBackend = errors.New("auth: backend failure")
)

func (b backendError) Error() string {
	return fmt.Sprintf("auth: unable to %v, cause %v", b.op, b.cause)
}

func (b backendError) Unwrap() error { return b.cause }

func (b backendError) Is(target error) bool { return target == ErrBackend }

func NewBackend(store users.Store, pool *password.Pool) *Backend {
	return &Backend{users: store, pool: pool}
}

// AuthHash computes the session auth hash for a stored password hash.
func AuthHash(passwordHash string) []byte {
	sum := sha256.Sum256([]byte(passwordHash))
	return sum[:]
}

func identityOf(u *users.User) *Identity {
	return &Identity{ID: u.ID, SessionAuthHash: AuthHash(u.PasswordHash)}
}

// Matches compares the auth hash in constant time.
func (i *Identity) Matches(authHash []byte) bool {
	return len(authHash) > 0 && subtle.ConstantTimeCompare(i.SessionAuthHash, authHash) == 1
}

func (b *Backend) Authenticate(ctx context.Context, c Credentials) (*Identity, error) {
	log := logutil.GetOrDefault(ctx)
	u, err := b.users.FindByEmail(ctx, c.Email)
	if errors.Is(err, users.ErrNotFound) {
		// spend the same work as a real verification
		b.verifyDummy(ctx, c.Password)
		log.Info().Str("reason", "credentials").Msg("Authentication rejected")
		return nil, nil
	} else if err != nil {
		return nil, backendError{op: "lookup user", cause: err}
	}
	ok, err := b.pool.Verify(ctx, c.Password, u.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("auth: unable to verify password, cause %w", err)
	}
	if !ok {
		log.Info().Str("reason", "credentials").Msg("Authentication rejected")
		return nil, nil
	}
	if b.pool.Hasher().NeedsRehash(u.PasswordHash) {
		u = b.rehash(ctx, u, c.Password)
	}
	return identityOf(u), nil
}

// Resolve returns nil, nil when the user no longer exists.
func (b *Backend) Resolve(ctx context.Context, id int64) (*Identity, error) {
	u, err := b.users.FindByID(ctx, id)
	if errors.Is(err, users.ErrNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, backendError{op: "resolve user", cause: err}
	}
	return identityOf(u), nil
}

// Register returns users.ErrConflict when the email is taken.
func (b *Backend) Register(ctx context.Context, email, plain string) (*Identity, error) {
	hash, err := b.pool.Hash(ctx, plain)
	if err != nil {
		return nil, fmt.Errorf("auth: unable to hash password, cause %w", err)
	}
	u, err := b.users.Create(ctx, email, hash)
	if errors.Is(err, users.ErrConflict) {
		return nil, err
	} else if err != nil {
		return nil, backendError{op: "create user", cause: err}
	}
	log := logutil.GetOrDefault(ctx)
	log.Info().Int64("user", u.ID).Msg("User registered")
	return identityOf(u), nil
}

// ChangePassword replaces the password hash of id, every session bound to
// the previous hash stops resolving.
func (b *Backend) ChangePassword(ctx context.Context, id int64, plain string) (*Identity, error) {
	hash, err := b.pool.Hash(ctx, plain)
	if err != nil {
		return nil, fmt.Errorf("auth: unable to hash password, cause %w", err)
	}
	err = b.users.UpdatePasswordHash(ctx, id, hash)
	if errors.Is(err, users.ErrNotFound) {
		return nil, err
	} else if err != nil {
		return nil, backendError{op: "update password", cause: err}
	}
	log := logutil.GetOrDefault(ctx)
	log.Info().Int64("user", id).Msg("Password changed")
	return &Identity{ID: id, SessionAuthHash: AuthHash(hash)}, nil
}

// rehash upgrades a hash created with weaker parameters. Failures keep the
// old hash, the login itself already succeeded.
func (b *Backend) rehash(ctx context.Context, u *users.User, plain string) *users.User {
	log := logutil.GetOrDefault(ctx)
	hash, err := b.pool.Hash(ctx, plain)
	if err != nil {
		log.Warn().Err(err).Int64("user", u.ID).Msg("Unable to rehash password")
		return u
	}
	if err := b.users.UpdatePasswordHash(ctx, u.ID, hash); err != nil {
		log.Warn().Err(err).Int64("user", u.ID).Msg("Unable to store rehashed password")
		return u
	}
	return &users.User{ID: u.ID, Email: u.Email, PasswordHash: hash}
}

func (b *Backend) verifyDummy(ctx context.Context, plain string) {
	b.dummyOnce.Do(func() {
		b.dummy, b.dummyErr = b.pool.Hasher().Hash("turnstile-dummy-password")
	})
	if b.dummyErr != nil {
		return
	}
	b.pool.Verify(ctx, plain, b.dummy)
}
