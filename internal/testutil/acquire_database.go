package testutil

import (
	"context"
	"database/sql"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/andrebq/turnstile/internal/database"
)

type (
	TestLog interface {
		Fatal(...interface{})
		Log(...interface{})
	}
)

// AcquireDatabase opens a writable database with the full schema inside a
// temporary directory, cleanup closes it and removes the directory.
func AcquireDatabase(ctx context.Context, t TestLog, name string) (*sql.DB, func()) {
	dir, err := ioutil.TempDir("", "turnstile-tests")
	if err != nil {
		t.Fatal(err)
	}
	db, err := database.Open(ctx, filepath.Join(dir, name+".db"), true)
	if err != nil {
		t.Fatal(err)
	}
	return db, func() {
		err := db.Close()
		if err != nil {
			t.Log("unable to close database", err)
		}
		err = os.RemoveAll(dir)
		if err != nil {
			t.Log("unable to cleanup temp dir", dir)
		}
	}
}

// AcquirePopulatedDatabase works like AcquireDatabase but runs loader
// before returning, failing the test if it errors.
func AcquirePopulatedDatabase(ctx context.Context, t TestLog, name string, loader func(context.Context, *sql.DB) error) (*sql.DB, func()) {
	db, cleanup := AcquireDatabase(ctx, t, name)
	if loader != nil {
		err := loader(ctx, db)
		if err != nil {
			cleanup()
			t.Fatal(err)
		}
	}
	return db, cleanup
}
