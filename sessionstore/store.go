// Package sessionstore persists session records keyed by an opaque id.
//
// Every adapter checks the expiry when reading, so a record that is past
// its expiry is reported as missing even if DeleteExpired has not removed
// it yet.
package sessionstore

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type (
	Record struct {
		ID string
		// Data is opaque to the store
		Data   []byte
		Expiry time.Time
	}

	Store interface {
		// Save inserts or updates the record with the same id, a stored
		// expiry is never moved back.
		Save(ctx context.Context, r Record) error
		// Update replaces the data of an existing, unexpired record and
		// raises its expiry, it never creates a record and returns
		// ErrNotFound instead.
		Update(ctx context.Context, r Record) error
		// Touch raises the expiry of an existing, unexpired record without
		// changing its data, returns ErrNotFound like Update.
		Touch(ctx context.Context, id string, expiry time.Time) error
		// Load returns ErrNotFound if the record does not exist or expired.
		Load(ctx context.Context, id string) (*Record, error)
		// Delete is idempotent.
		Delete(ctx context.Context, id string) error
		// DeleteExpired removes records whose expiry is before now and
		// returns how many were removed.
		DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	}

	BackendFailure struct {
		Op    string
		cause error
	}
)

var (
	ErrNotFound = errors.New("sessionstore: session not found")
)

// ExpiredAt uses second granularity, which is what every backend stores.
func (r Record) ExpiredAt(now time.Time) bool {
	return r.Expiry.Unix() < now.Unix()
}

func (b BackendFailure) Error() string {
	return fmt.Sprintf("sessionstore: unable to %v, cause %v", b.Op, b.cause)
}

func (b BackendFailure) Unwrap() error {
	return b.cause
}

func backendFailure(op string, cause error) error {
	return BackendFailure{Op: op, cause: cause}
}
