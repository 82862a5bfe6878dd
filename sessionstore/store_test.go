package sessionstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/andrebq/turnstile/internal/testutil"
	"github.com/benbjohnson/clock"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newMockClock() *clock.Mock {
	clk := clock.NewMock()
	clk.Set(time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC))
	return clk
}

func acquireSQLite(t *testing.T, clk clock.Clock) Store {
	db, cleanup := testutil.AcquireDatabase(context.Background(), t, "sessions")
	t.Cleanup(cleanup)
	return NewSQLite(db, clk)
}

func acquireMemory(t *testing.T, clk clock.Clock) Store {
	m, err := NewMemory(time.Hour, clk)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func acquireRedis(t *testing.T, clk clock.Clock) Store {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedis(client, "", clk)
}

var adapters = map[string]func(*testing.T, clock.Clock) Store{
	"sqlite": acquireSQLite,
	"memory": acquireMemory,
	"redis":  acquireRedis,
}

func TestStoreContract(t *testing.T) {
	for name, acquire := range adapters {
		acquire := acquire
		t.Run(name, func(t *testing.T) {
			t.Run("round trip", func(t *testing.T) {
				clk := newMockClock()
				testRoundTrip(t, clk, acquire(t, clk))
			})
			t.Run("expiry", func(t *testing.T) {
				clk := newMockClock()
				testExpiry(t, clk, acquire(t, clk))
			})
			t.Run("delete expired", func(t *testing.T) {
				clk := newMockClock()
				testDeleteExpired(t, clk, acquire(t, clk))
			})
			t.Run("expiry never moves back", func(t *testing.T) {
				clk := newMockClock()
				testExpiryMonotonic(t, clk, acquire(t, clk))
			})
			t.Run("update never creates", func(t *testing.T) {
				clk := newMockClock()
				testUpdateOnlyExisting(t, clk, acquire(t, clk))
			})
			t.Run("concurrent access", func(t *testing.T) {
				clk := newMockClock()
				testConcurrentAccess(t, clk, acquire(t, clk))
			})
		})
	}
}

func testRoundTrip(t *testing.T, clk *clock.Mock, s Store) {
	ctx := context.Background()
	rec := Record{ID: "abc", Data: []byte(`{"user_id":1}`), Expiry: clk.Now().Add(time.Minute)}

	_, err := s.Load(ctx, rec.ID)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Save(ctx, rec))
	loaded, err := s.Load(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, rec.ID, loaded.ID)
	require.Equal(t, rec.Data, loaded.Data)
	require.Equal(t, rec.Expiry.Unix(), loaded.Expiry.Unix())

	rec.Data = []byte(`{"user_id":2}`)
	require.NoError(t, s.Save(ctx, rec))
	loaded, err = s.Load(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, rec.Data, loaded.Data)

	require.NoError(t, s.Delete(ctx, rec.ID))
	_, err = s.Load(ctx, rec.ID)
	require.ErrorIs(t, err, ErrNotFound)

	// deleting again is not an error
	require.NoError(t, s.Delete(ctx, rec.ID))
	require.NoError(t, s.Delete(ctx, "never-existed"))
}

func testExpiry(t *testing.T, clk *clock.Mock, s Store) {
	ctx := context.Background()
	rec := Record{ID: "short-lived", Data: []byte(`{}`), Expiry: clk.Now().Add(10 * time.Second)}
	require.NoError(t, s.Save(ctx, rec))

	clk.Add(10 * time.Second)
	_, err := s.Load(ctx, rec.ID)
	require.NoError(t, err, "a record is readable up to its expiry")

	clk.Add(time.Second)
	_, err = s.Load(ctx, rec.ID)
	require.ErrorIs(t, err, ErrNotFound, "expired records must be unreadable before any sweep")
}

func testDeleteExpired(t *testing.T, clk *clock.Mock, s Store) {
	ctx := context.Background()
	now := clk.Now()
	for i, offset := range []time.Duration{-time.Hour, -time.Second, 0, time.Second, time.Hour} {
		require.NoError(t, s.Save(ctx, Record{
			ID:     fmt.Sprintf("s%v", i),
			Data:   []byte(`{}`),
			Expiry: now.Add(offset),
		}))
	}
	n, err := s.DeleteExpired(ctx, now)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	for _, id := range []string{"s2", "s3", "s4"} {
		_, err := s.Load(ctx, id)
		require.NoError(t, err, "%v should survive the sweep", id)
	}

	n, err = s.DeleteExpired(ctx, now)
	require.NoError(t, err)
	require.Zero(t, n)
}

func testExpiryMonotonic(t *testing.T, clk *clock.Mock, s Store) {
	ctx := context.Background()
	later := clk.Now().Add(time.Hour)
	require.NoError(t, s.Save(ctx, Record{ID: "id", Data: []byte(`1`), Expiry: later}))
	require.NoError(t, s.Save(ctx, Record{ID: "id", Data: []byte(`2`), Expiry: clk.Now().Add(time.Minute)}))

	loaded, err := s.Load(ctx, "id")
	require.NoError(t, err)
	require.Equal(t, []byte(`2`), loaded.Data)
	require.Equal(t, later.Unix(), loaded.Expiry.Unix())
}

func testUpdateOnlyExisting(t *testing.T, clk *clock.Mock, s Store) {
	ctx := context.Background()
	later := clk.Now().Add(time.Hour)

	require.ErrorIs(t, s.Update(ctx, Record{ID: "gone", Data: []byte(`1`), Expiry: later}), ErrNotFound)
	require.ErrorIs(t, s.Touch(ctx, "gone", later), ErrNotFound)
	_, err := s.Load(ctx, "gone")
	require.ErrorIs(t, err, ErrNotFound, "update and touch must not create records")

	require.NoError(t, s.Save(ctx, Record{ID: "live", Data: []byte(`1`), Expiry: clk.Now().Add(time.Minute)}))
	require.NoError(t, s.Touch(ctx, "live", later))
	loaded, err := s.Load(ctx, "live")
	require.NoError(t, err)
	require.Equal(t, []byte(`1`), loaded.Data, "touch keeps the data")
	require.Equal(t, later.Unix(), loaded.Expiry.Unix())

	require.NoError(t, s.Update(ctx, Record{ID: "live", Data: []byte(`2`), Expiry: clk.Now()}))
	loaded, err = s.Load(ctx, "live")
	require.NoError(t, err)
	require.Equal(t, []byte(`2`), loaded.Data)
	require.Equal(t, later.Unix(), loaded.Expiry.Unix(), "update never lowers the expiry")

	// a deleted record stays deleted
	require.NoError(t, s.Delete(ctx, "live"))
	require.ErrorIs(t, s.Touch(ctx, "live", later), ErrNotFound)
	require.ErrorIs(t, s.Update(ctx, Record{ID: "live", Data: []byte(`3`), Expiry: later}), ErrNotFound)
	_, err = s.Load(ctx, "live")
	require.ErrorIs(t, err, ErrNotFound)

	// expired records cannot be revived either
	require.NoError(t, s.Save(ctx, Record{ID: "stale", Data: []byte(`1`), Expiry: clk.Now().Add(time.Second)}))
	clk.Add(2 * time.Second)
	require.ErrorIs(t, s.Touch(ctx, "stale", clk.Now().Add(time.Hour)), ErrNotFound)
	_, err = s.Load(ctx, "stale")
	require.ErrorIs(t, err, ErrNotFound)
}

func testConcurrentAccess(t *testing.T, clk *clock.Mock, s Store) {
	ctx := context.Background()
	expiry := clk.Now().Add(time.Hour)
	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("c%v", i%4)
			if err := s.Save(ctx, Record{ID: id, Data: []byte(`{}`), Expiry: expiry}); err != nil {
				errs <- err
				return
			}
			if _, err := s.Load(ctx, id); err != nil {
				errs <- err
				return
			}
			if _, err := s.DeleteExpired(ctx, clk.Now()); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
}

func TestSQLiteBackendFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	ctx := context.Background()
	s := NewSQLite(db, newMockClock())
	broken := errors.New("database is locked")

	mock.ExpectExec(`insert into sessions`).WillReturnError(broken)
	var failure BackendFailure
	require.ErrorAs(t, s.Save(ctx, Record{ID: "a", Expiry: time.Now()}), &failure)

	mock.ExpectQuery(`select data, expiry from sessions`).WillReturnError(broken)
	_, err = s.Load(ctx, "a")
	require.ErrorAs(t, err, &failure)
	require.NotErrorIs(t, err, ErrNotFound)

	mock.ExpectExec(`update sessions set expiry`).WillReturnError(broken)
	require.ErrorAs(t, s.Touch(ctx, "a", time.Now()), &failure)

	mock.ExpectExec(`update sessions set data`).WillReturnResult(sqlmock.NewResult(0, 0))
	require.ErrorIs(t, s.Update(ctx, Record{ID: "a", Expiry: time.Now()}), ErrNotFound)

	mock.ExpectExec(`delete from sessions where id`).WillReturnError(broken)
	require.ErrorAs(t, s.Delete(ctx, "a"), &failure)

	mock.ExpectExec(`delete from sessions where expiry`).WillReturnError(broken)
	_, err = s.DeleteExpired(ctx, time.Now())
	require.ErrorIs(t, err, broken)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisBackendFailure(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr(), MaxRetries: -1})
	defer client.Close()
	s := NewRedis(client, "", newMockClock())
	srv.Close()

	ctx := context.Background()
	var failure BackendFailure
	_, err := s.Load(ctx, "a")
	require.ErrorAs(t, err, &failure)
	require.NotErrorIs(t, err, ErrNotFound)
}

func TestSweep(t *testing.T) {
	clk := newMockClock()
	s := acquireMemory(t, clk)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.Save(ctx, Record{ID: "old", Data: []byte(`{}`), Expiry: clk.Now().Add(time.Minute)}))
	require.NoError(t, s.Save(ctx, Record{ID: "fresh", Data: []byte(`{}`), Expiry: clk.Now().Add(24 * time.Hour)}))

	done := make(chan struct{})
	go func() {
		defer close(done)
		Sweep(ctx, s, clk, 5*time.Minute)
	}()

	mem := s.(*Memory)
	require.Eventually(t, func() bool {
		clk.Add(5 * time.Minute)
		_, err := mem.cache.Get("old")
		return err != nil
	}, time.Second*5, time.Millisecond*10)

	_, err := s.Load(ctx, "fresh")
	require.NoError(t, err)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}
