package users

import (
	"context"
	"sync"
)

type (
	// Memory keeps users in a slice indexed by id, ids start at 1.
	Memory struct {
		sync.RWMutex
		records []User
	}
)

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) FindByEmail(ctx context.Context, email string) (*User, error) {
	email = NormalizeEmail(email)
	m.RLock()
	defer m.RUnlock()
	for _, u := range m.records {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) FindByID(ctx context.Context, id int64) (*User, error) {
	m.RLock()
	defer m.RUnlock()
	if id <= 0 || id > int64(len(m.records)) {
		return nil, ErrNotFound
	}
	u := m.records[id-1]
	return &u, nil
}

func (m *Memory) Exists(ctx context.Context, email string) (bool, error) {
	_, err := m.FindByEmail(ctx, email)
	if err == ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

func (m *Memory) Create(ctx context.Context, email string, passwordHash string) (*User, error) {
	email = NormalizeEmail(email)
	m.Lock()
	defer m.Unlock()
	for _, u := range m.records {
		if u.Email == email {
			return nil, ErrConflict
		}
	}
	u := User{ID: int64(len(m.records) + 1), Email: email, PasswordHash: passwordHash}
	m.records = append(m.records, u)
	return &u, nil
}

func (m *Memory) UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error {
	m.Lock()
	defer m.Unlock()
	if id <= 0 || id > int64(len(m.records)) {
		return ErrNotFound
	}
	m.records[id-1].PasswordHash = passwordHash
	return nil
}
