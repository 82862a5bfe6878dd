package sessionstore

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/benbjohnson/clock"
)

type (
	// Memory keeps sessions inside the process, they are lost on restart.
	Memory struct {
		// serializes read-modify-write cycles
		sync.Mutex
		cache *bigcache.BigCache
		clock clock.Clock
	}
)

// NewMemory creates an in-process store, entries not saved again within
// maxLifetime are evicted by the cache regardless of their expiry.
func NewMemory(maxLifetime time.Duration, clk clock.Clock) (*Memory, error) {
	cfg := bigcache.DefaultConfig(maxLifetime)
	cfg.Verbose = false
	cache, err := bigcache.NewBigCache(cfg)
	if err != nil {
		return nil, backendFailure("create memory store", err)
	}
	return &Memory{cache: cache, clock: clk}, nil
}

func (m *Memory) Save(ctx context.Context, r Record) error {
	m.Lock()
	defer m.Unlock()
	expiry := r.Expiry.Unix()
	if old, err := m.cache.Get(r.ID); err == nil && len(old) >= 8 {
		if prev := int64(binary.BigEndian.Uint64(old)); prev > expiry {
			expiry = prev
		}
	}
	err := m.cache.Set(r.ID, encodeEntry(expiry, r.Data))
	if err != nil {
		return backendFailure("save session", err)
	}
	return nil
}

func (m *Memory) Update(ctx context.Context, r Record) error {
	return m.replace(r.ID, r.Expiry, func(old []byte) []byte { return r.Data })
}

func (m *Memory) Touch(ctx context.Context, id string, expiry time.Time) error {
	return m.replace(id, expiry, func(old []byte) []byte { return old })
}

// replace rewrites an existing, unexpired entry under the lock so a
// concurrent Delete cannot be undone.
func (m *Memory) replace(id string, expiry time.Time, data func(old []byte) []byte) error {
	m.Lock()
	defer m.Unlock()
	buf, err := m.cache.Get(id)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return ErrNotFound
	} else if err != nil {
		return backendFailure("update session", err)
	}
	old, ok := decodeEntry(id, buf)
	if !ok || old.ExpiredAt(m.clock.Now()) {
		return ErrNotFound
	}
	next := expiry.Unix()
	if prev := old.Expiry.Unix(); prev > next {
		next = prev
	}
	if err := m.cache.Set(id, encodeEntry(next, data(old.Data))); err != nil {
		return backendFailure("update session", err)
	}
	return nil
}

func (m *Memory) Load(ctx context.Context, id string) (*Record, error) {
	buf, err := m.cache.Get(id)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, backendFailure("load session", err)
	}
	r, ok := decodeEntry(id, buf)
	if !ok || r.ExpiredAt(m.clock.Now()) {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (m *Memory) Delete(ctx context.Context, id string) error {
	m.Lock()
	defer m.Unlock()
	err := m.cache.Delete(id)
	if err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
		return backendFailure("delete session", err)
	}
	return nil
}

func (m *Memory) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	it := m.cache.Iterator()
	for it.SetNext() {
		entry, err := it.Value()
		if err != nil {
			// entry removed while iterating
			continue
		}
		if m.deleteIfExpired(entry.Key(), now) {
			count++
		}
	}
	return count, nil
}

func (m *Memory) deleteIfExpired(id string, now time.Time) bool {
	m.Lock()
	defer m.Unlock()
	buf, err := m.cache.Get(id)
	if err != nil {
		return false
	}
	if r, ok := decodeEntry(id, buf); ok && !r.ExpiredAt(now) {
		return false
	}
	return m.cache.Delete(id) == nil
}

func (m *Memory) Close() error {
	return m.cache.Close()
}

func encodeEntry(expiry int64, data []byte) []byte {
	buf := make([]byte, 8+len(data))
	binary.BigEndian.PutUint64(buf, uint64(expiry))
	copy(buf[8:], data)
	return buf
}

func decodeEntry(id string, buf []byte) (Record, bool) {
	if len(buf) < 8 {
		return Record{}, false
	}
	data := make([]byte, len(buf)-8)
	copy(data, buf[8:])
	return Record{
		ID:     id,
		Data:   data,
		Expiry: time.Unix(int64(binary.BigEndian.Uint64(buf)), 0),
	}, true
}
