package password

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"
)

type (
	// Pool bounds how many hash computations run at once, so a burst of
	// logins cannot starve unrelated request handling of CPU and memory.
	Pool struct {
		hasher *Argon2
		slots  *semaphore.Weighted
	}
)

// NewPool returns a pool with the given number of workers, when workers
// is not positive it defaults to half the available CPUs (at least one).
func NewPool(hasher *Argon2, workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU() / 2
		if workers == 0 {
			workers = 1
		}
	}
	return &Pool{
		hasher: hasher,
		slots:  semaphore.NewWeighted(int64(workers)),
	}
}

// Hash waits for a free worker and hashes password.
//
// ctx is only observed while waiting, once the computation starts it
// runs to completion.
func (p *Pool) Hash(ctx context.Context, password string) (string, error) {
	if err := p.slots.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer p.slots.Release(1)
	return p.hasher.Hash(password)
}

// Verify waits for a free worker and checks password against encoded.
// The error is non-nil only when ctx ended before a worker was available.
func (p *Pool) Verify(ctx context.Context, password, encoded string) (bool, error) {
	if err := p.slots.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer p.slots.Release(1)
	return p.hasher.Verify(password, encoded), nil
}

func (p *Pool) Hasher() *Argon2 {
	return p.hasher
}
