// Package users stores the credential records used to authenticate
// visitors. Only password hashes are persisted.
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

type (
	User struct {
		ID           int64
		Email        string
		PasswordHash string
	}

	Store interface {
		// FindByEmail performs an exact match on the normalized email,
		// returns ErrNotFound when no user matches.
		FindByEmail(ctx context.Context, email string) (*User, error)
		FindByID(ctx context.Context, id int64) (*User, error)
		Exists(ctx context.Context, email string) (bool, error)
		// Create returns ErrConflict when the email is already taken.
		Create(ctx context.Context, email string, passwordHash string) (*User, error)
		UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error
	}

	// BackendFailure wraps any error returned by the persistence layer.
	BackendFailure struct {
		Op    string
		cause error
	}
)

var (
	ErrNotFound = errors.New("users: user not found")
	ErrConflict = errors.New("users: email already registered")
)

func (b BackendFailure) Error() string {
	return fmt.Sprintf("users: unable to %v, cause %v", b.Op, b.cause)
}

func (b BackendFailure) Unwrap() error {
	return b.cause
}

func backendFailure(op string, cause error) error {
	return BackendFailure{Op: op, cause: cause}
}

// NormalizeEmail is applied on every write and lookup, so two spellings
// that differ only in case or surrounding blanks are the same account.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
