package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gofrs/flock"
)

var errLockBusy = errors.New("lock busy")

// Lock is an exclusive advisory lock on a store, held for the duration of a
// run.
type Lock struct {
	fl *flock.Flock
}

// LockPath returns the path of the lock file guarding the store.
func (s *Store) LockPath() string { return s.path + ".lock" }

// Lock acquires the store's exclusive lock, retrying with exponential backoff
// until timeout elapses. A timeout of zero makes a single attempt. If the lock
// cannot be taken in time the error wraps ErrStoreLocked.
func (s *Store) Lock(ctx context.Context, timeout time.Duration) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(s.LockPath()), 0o755); err != nil {
		return nil, fmt.Errorf("lock store: %w", err)
	}
	fl := flock.New(s.LockPath())

	attempt := func() error {
		ok, err := fl.TryLock()
		if err != nil {
			return backoff.Permanent(err)
		}
		if !ok {
			return errLockBusy
		}
		return nil
	}

	var err error
	if timeout <= 0 {
		err = attempt()
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Err
		}
	} else {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 10 * time.Millisecond
		b.MaxInterval = 250 * time.Millisecond
		b.MaxElapsedTime = timeout
		err = backoff.Retry(attempt, backoff.WithContext(b, ctx))
	}

	switch {
	case err == nil:
		s.logger.Debug("acquired store lock", "lock", s.LockPath())
		return &Lock{fl: fl}, nil
	case errors.Is(err, errLockBusy):
		return nil, fmt.Errorf("%w: %s", ErrStoreLocked, s.LockPath())
	default:
		return nil, fmt.Errorf("lock store: %w", err)
	}
}

// Unlock releases the lock. It is safe to call on a nil Lock.
func (l *Lock) Unlock() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
