// Package lock provides named cross-process reader-writer locks backed
// by OS advisory file locks. Each well-known name maps to a dedicated
// .lock file in the coordinator's directory; the payload a lock guards
// is never the lock file itself, so wiping or atomically replacing the
// payload cannot sever the lock from its holders.
package lock

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	errUtils "github.com/sysinv/sysinv/errors"
	log "github.com/sysinv/sysinv/pkg/logger"
)

// retryDelay is the polling interval for bounded acquisitions.
const retryDelay = 10 * time.Millisecond

// Coordinator hands out cross-process locks identified by well-known
// names. Distinct names never contend with each other.
type Coordinator struct {
	dir string
}

// NewCoordinator creates a Coordinator whose lock files live in dir.
// The directory must exist.
func NewCoordinator(dir string) *Coordinator {
	return &Coordinator{dir: dir}
}

// Guard is a held lock. Release is idempotent and must be called on all
// exit paths; defer it immediately after acquisition.
type Guard struct {
	lock *flock.Flock
	once sync.Once
}

// Release unlocks and closes the underlying file lock.
func (g *Guard) Release() {
	if g == nil {
		return
	}
	g.once.Do(func() {
		if err := g.lock.Close(); err != nil {
			log.Trace("Failed to release lock", "error", err, "path", g.lock.Path())
		}
	})
}

func (c *Coordinator) lockPath(name string) string {
	return filepath.Join(c.dir, name+".lock")
}

// AcquireShared blocks until a shared hold on the named lock is granted.
func (c *Coordinator) AcquireShared(name string) (*Guard, error) {
	l := flock.New(c.lockPath(name))
	if err := l.RLock(); err != nil {
		return nil, errUtils.Build(errUtils.ErrLockAcquire).
			WithCause(err).
			WithContext("name", name).
			Err()
	}
	return &Guard{lock: l}, nil
}

// AcquireSharedTimeout is AcquireShared with a deadline. A zero timeout
// means block indefinitely. Timing out returns ErrLockTimeout.
func (c *Coordinator) AcquireSharedTimeout(name string, timeout time.Duration) (*Guard, error) {
	if timeout <= 0 {
		return c.AcquireShared(name)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	l := flock.New(c.lockPath(name))
	locked, err := l.TryRLockContext(ctx, retryDelay)
	if err != nil {
		if ctx.Err() != nil {
			return nil, errUtils.Build(errUtils.ErrLockTimeout).
				WithCause(err).
				WithContext("name", name).
				WithContext("timeout", timeout).
				Err()
		}
		return nil, errUtils.Build(errUtils.ErrLockAcquire).
			WithCause(err).
			WithContext("name", name).
			Err()
	}
	if !locked {
		return nil, errUtils.Build(errUtils.ErrLockTimeout).
			WithContext("name", name).
			WithContext("timeout", timeout).
			Err()
	}
	return &Guard{lock: l}, nil
}

// AcquireExclusive blocks until an exclusive hold on the named lock is
// granted.
func (c *Coordinator) AcquireExclusive(name string) (*Guard, error) {
	l := flock.New(c.lockPath(name))
	if err := l.Lock(); err != nil {
		return nil, errUtils.Build(errUtils.ErrLockAcquire).
			WithCause(err).
			WithContext("name", name).
			Err()
	}
	return &Guard{lock: l}, nil
}

// TryAcquireExclusive attempts an exclusive hold without blocking.
// It returns (nil, false, nil) when another holder currently owns the
// lock; that is an election outcome, not an error.
func (c *Coordinator) TryAcquireExclusive(name string) (*Guard, bool, error) {
	l := flock.New(c.lockPath(name))
	locked, err := l.TryLock()
	if err != nil {
		return nil, false, errUtils.Build(errUtils.ErrLockAcquire).
			WithCause(err).
			WithContext("name", name).
			Err()
	}
	if !locked {
		return nil, false, nil
	}
	return &Guard{lock: l}, true, nil
}
