// Package profile keeps the editable details of a registered user.
package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type (
	Profile struct {
		UserID      int64
		DisplayName string
	}

	SQLite struct {
		db *sql.DB
	}
)

var (
	ErrNotFound = errors.New("profile: profile not found")
)

func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db}
}

// Get returns ErrNotFound when the user never saved a profile.
func (s *SQLite) Get(ctx context.Context, userID int64) (*Profile, error) {
	p := Profile{UserID: userID}
	err := s.db.QueryRowContext(ctx, `select display_name from user_profiles where id = ?`, userID).Scan(&p.DisplayName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("profile: unable to load profile of %v, cause %w", userID, err)
	}
	return &p, nil
}

func (s *SQLite) Save(ctx context.Context, p Profile) error {
	_, err := s.db.ExecContext(ctx, `insert into user_profiles(id, display_name) values (?, ?)
		on conflict(id) do update set display_name = excluded.display_name`, p.UserID, p.DisplayName)
	if err != nil {
		return fmt.Errorf("profile: unable to save profile of %v, cause %w", p.UserID, err)
	}
	return nil
}
