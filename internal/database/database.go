// Package database opens the SQLite file shared by the user, session and
// profile stores and keeps its schema up to date.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

var (
	schema = []string{
		`create table if not exists users(
			id integer not null primary key autoincrement,
			email text not null unique,
			email_hash64 integer not null,
			password_hash text not null
		)`,
		`create index if not exists idx_users_email_hash64
			on users(email_hash64)
		`,
		`create table if not exists sessions(
			id text not null primary key,
			data text not null,
			expiry integer not null
		)`,
		`create index if not exists idx_sessions_expiry
			on sessions(expiry)
		`,
		`create table if not exists user_profiles(
			id integer not null primary key,
			display_name text not null,
			foreign key (id) references users(id)
		)`,
	}
)

// Open connects to the database at file, creating its directory and schema
// when readwrite is set.
func Open(ctx context.Context, file string, readwrite bool) (*sql.DB, error) {
	if readwrite {
		err := os.MkdirAll(filepath.Dir(file), 0755)
		if err != nil {
			return nil, fmt.Errorf("unable to create directory to store %v, cause %w", file, err)
		}
	}
	var connstr string
	if readwrite {
		connstr = fmt.Sprintf("file:%v?_foreign_keys=on&_journal=wal&_busy_timeout=5000&mode=rwc", file)
	} else {
		connstr = fmt.Sprintf("file:%v?_foreign_keys=on&_busy_timeout=5000&mode=ro", file)
	}
	db, err := sql.Open("sqlite3", connstr)
	if err != nil {
		return nil, fmt.Errorf("unable to open %v, cause %w", file, err)
	}
	err = db.PingContext(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping database %v, cause %w", file, err)
	}
	if readwrite {
		err = Migrate(ctx, db)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("unable to init database %v, cause %w", file, err)
		}
	}
	return db, nil
}

// Migrate creates any missing table or index, it is safe to call it
// on an up to date database.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, cmd := range schema {
		_, err := db.ExecContext(ctx, cmd)
		if err != nil {
			return err
		}
	}
	return nil
}
