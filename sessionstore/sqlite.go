package sessionstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/benbjohnson/clock"
)

type (
	SQLite struct {
		db    *sql.DB
		clock clock.Clock
	}
)

func NewSQLite(db *sql.DB, clk clock.Clock) *SQLite {
	return &SQLite{db: db, clock: clk}
}

func (s *SQLite) Save(ctx context.Context, r Record) error {
	_, err := s.db.ExecContext(ctx, `insert into sessions(id, data, expiry) values (?, ?, ?)
		on conflict(id) do update set data = excluded.data, expiry = max(sessions.expiry, excluded.expiry)`,
		r.ID, string(r.Data), r.Expiry.Unix())
	if err != nil {
		return backendFailure("save session", err)
	}
	return nil
}

func (s *SQLite) Update(ctx context.Context, r Record) error {
	res, err := s.db.ExecContext(ctx, `update sessions set data = ?, expiry = max(expiry, ?) where id = ? and expiry >= ?`,
		string(r.Data), r.Expiry.Unix(), r.ID, s.clock.Now().Unix())
	return s.checkUpdated(res, err, "update session")
}

func (s *SQLite) Touch(ctx context.Context, id string, expiry time.Time) error {
	res, err := s.db.ExecContext(ctx, `update sessions set expiry = max(expiry, ?) where id = ? and expiry >= ?`,
		expiry.Unix(), id, s.clock.Now().Unix())
	return s.checkUpdated(res, err, "touch session")
}

func (s *SQLite) checkUpdated(res sql.Result, err error, op string) error {
	if err != nil {
		return backendFailure(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return backendFailure(op, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) Load(ctx context.Context, id string) (*Record, error) {
	var data string
	var expiry int64
	err := s.db.QueryRowContext(ctx, `select data, expiry from sessions where id = ? and expiry >= ?`, id, s.clock.Now().Unix()).
		Scan(&data, &expiry)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, backendFailure("load session", err)
	}
	return &Record{ID: id, Data: []byte(data), Expiry: time.Unix(expiry, 0)}, nil
}

func (s *SQLite) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `delete from sessions where id = ?`, id)
	if err != nil {
		return backendFailure("delete session", err)
	}
	return nil
}

func (s *SQLite) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `delete from sessions where expiry < ?`, now.Unix())
	if err != nil {
		return 0, backendFailure("delete expired sessions", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, backendFailure("delete expired sessions", err)
	}
	return n, nil
}
