package users

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/andrebq/turnstile/internal/testutil"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	db, cleanup := testutil.AcquireDatabase(ctx, t, "users")
	defer cleanup()
	testStoreContract(ctx, t, NewSQLite(db))
}

func TestMemoryStore(t *testing.T) {
	testStoreContract(context.Background(), t, NewMemory())
}

func testStoreContract(ctx context.Context, t *testing.T, s Store) {
	_, err := s.FindByEmail(ctx, "bob@example.com")
	require.ErrorIs(t, err, ErrNotFound)

	found, err := s.Exists(ctx, "bob@example.com")
	require.NoError(t, err)
	require.False(t, found)

	bob, err := s.Create(ctx, " Bob@Example.com ", "hash-1")
	require.NoError(t, err)
	require.NotZero(t, bob.ID)
	require.Equal(t, "bob@example.com", bob.Email)

	_, err = s.Create(ctx, "bob@example.com", "hash-2")
	require.ErrorIs(t, err, ErrConflict)

	alice, err := s.Create(ctx, "alice@example.com", "hash-3")
	require.NoError(t, err)
	require.NotEqual(t, bob.ID, alice.ID)

	found, err = s.Exists(ctx, "BOB@example.com")
	require.NoError(t, err)
	require.True(t, found)

	u, err := s.FindByEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	require.Equal(t, *bob, *u)

	// lookups are exact, never partial
	for _, partial := range []string{"b", "bob", "example.com", "@", "ob@example.co"} {
		_, err = s.FindByEmail(ctx, partial)
		require.ErrorIs(t, err, ErrNotFound, "%q must not match any user", partial)
	}

	u, err = s.FindByID(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", u.Email)

	_, err = s.FindByID(ctx, 9999)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.UpdatePasswordHash(ctx, bob.ID, "hash-4"))
	u, err = s.FindByID(ctx, bob.ID)
	require.NoError(t, err)
	require.Equal(t, "hash-4", u.PasswordHash)

	require.ErrorIs(t, s.UpdatePasswordHash(ctx, 9999, "hash-5"), ErrNotFound)
}

func TestSQLiteBackendFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()
	s := NewSQLite(db)
	broken := errors.New("disk I/O error")

	mock.ExpectQuery(`select id, email, password_hash from users where email_hash64 = \? and email = \?`).
		WillReturnError(broken)
	_, err = s.FindByEmail(ctx, "bob@example.com")
	var failure BackendFailure
	require.ErrorAs(t, err, &failure)
	require.ErrorIs(t, err, broken)
	require.NotErrorIs(t, err, ErrNotFound)

	mock.ExpectQuery(`select exists`).WillReturnError(broken)
	_, err = s.Exists(ctx, "bob@example.com")
	require.ErrorAs(t, err, &failure)

	mock.ExpectQuery(`insert into users`).WillReturnError(broken)
	_, err = s.Create(ctx, "bob@example.com", "hash")
	require.ErrorAs(t, err, &failure)
	require.NotErrorIs(t, err, ErrConflict)

	mock.ExpectQuery(`select id, email, password_hash from users where id = \?`).
		WillReturnError(sql.ErrConnDone)
	_, err = s.FindByID(ctx, 1)
	require.ErrorAs(t, err, &failure)

	mock.ExpectExec(`update users set password_hash`).WillReturnError(broken)
	require.ErrorAs(t, s.UpdatePasswordHash(ctx, 1, "hash"), &failure)

	require.NoError(t, mock.ExpectationsWereMet())
}
