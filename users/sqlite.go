package users

import (
	"context"
	"database/sql"
	"errors"

	"github.com/cespare/xxhash/v2"
	"github.com/mattn/go-sqlite3"
)

type (
	SQLite struct {
		db *sql.DB
	}
)

// NewSQLite expects db to have the schema from internal/database.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

func (s *SQLite) FindByEmail(ctx context.Context, email string) (*User, error) {
	email, hash := normalizeWithHash(email)
	var u User
	err := s.db.QueryRowContext(ctx, `select id, email, password_hash from users where email_hash64 = ? and email = ?`, hash, email).
		Scan(&u.ID, &u.Email, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, backendFailure("find user by email", err)
	}
	return &u, nil
}

func (s *SQLite) FindByID(ctx context.Context, id int64) (*User, error) {
	var u User
	err := s.db.QueryRowContext(ctx, `select id, email, password_hash from users where id = ?`, id).
		Scan(&u.ID, &u.Email, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, backendFailure("find user by id", err)
	}
	return &u, nil
}

func (s *SQLite) Exists(ctx context.Context, email string) (bool, error) {
	email, hash := normalizeWithHash(email)
	var found bool
	err := s.db.QueryRowContext(ctx, `select exists(select 1 from users where email_hash64 = ? and email = ?)`, hash, email).Scan(&found)
	if err != nil {
		return false, backendFailure("check if user exists", err)
	}
	return found, nil
}

func (s *SQLite) Create(ctx context.Context, email string, passwordHash string) (*User, error) {
	email, hash := normalizeWithHash(email)
	u := User{Email: email, PasswordHash: passwordHash}
	err := s.db.QueryRowContext(ctx, `insert into users(email, email_hash64, password_hash) values (?, ?, ?) returning id`,
		email, hash, passwordHash).Scan(&u.ID)
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return nil, ErrConflict
	} else if err != nil {
		return nil, backendFailure("create user", err)
	}
	return &u, nil
}

func (s *SQLite) UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error {
	res, err := s.db.ExecContext(ctx, `update users set password_hash = ? where id = ?`, passwordHash, id)
	if err != nil {
		return backendFailure("update password hash", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return backendFailure("update password hash", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func normalizeWithHash(email string) (string, int64) {
	email = NormalizeEmail(email)
	return email, int64(xxhash.Sum64String(email))
}
