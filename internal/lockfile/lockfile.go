package lockfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/Mirebella/fedimint/internal/core/domain"
)

// FileName is the lock file created inside the working directory.
const FileName = "fedimint-cli.lock"

// reclaimSuffix names the lock serializing stale lock reclaims.
const reclaimSuffix = ".reclaim"

// Defaults.
const (
	DefaultStaleAfter = 24 * time.Hour
	DefaultRetryDelay = 100 * time.Millisecond
)

// Owner is the metadata written into a held lock file.
type Owner struct {
	PID        int       `json:"pid"`
	Hostname   string    `json:"hostname"`
	Command    string    `json:"command,omitempty"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// Options configures Acquire.
type Options struct {
	// Wait blocks until the lock is free or ctx is done. Without Wait a
	// held lock fails immediately with ErrAlreadyLocked.
	Wait bool

	// RetryDelay is the polling interval while waiting.
	// Default: 100ms
	RetryDelay time.Duration

	// StaleAfter is the age after which a lock whose owner is gone may be
	// reclaimed. Zero uses DefaultStaleAfter; negative disables reclaim.
	StaleAfter time.Duration

	// Command is recorded in the owner metadata.
	Command string

	Logger *slog.Logger

	// now is overridable in tests.
	now func() time.Time
}

// Guard is a held working directory lock.
type Guard struct {
	fl     *flock.Flock
	file   *os.File
	path   string
	logger *slog.Logger
	once   sync.Once
	err    error
}

// Path returns the lock file path for dir.
func Path(dir string) string {
	return filepath.Join(dir, FileName)
}

// Acquire takes the exclusive lock of dir.
func Acquire(ctx context.Context, dir string, opts Options) (*Guard, error) {
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.StaleAfter == 0 {
		opts.StaleAfter = DefaultStaleAfter
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.now == nil {
		opts.now = time.Now
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, domain.ErrIO.WithDetails(dir).WithCause(err)
	}

	path := Path(dir)
	fl, err := tryAcquire(ctx, path, opts, false)
	if err != nil {
		return nil, err
	}
	if fl != nil {
		return newGuard(fl, path, opts)
	}

	if owner, _ := ReadOwner(dir); isStale(owner, opts) {
		g, err := reclaim(ctx, dir, opts)
		if err != nil || g != nil {
			return g, err
		}
	}
	if opts.Wait {
		fl, err = tryAcquire(ctx, path, opts, true)
		if err != nil {
			return nil, err
		}
		return newGuard(fl, path, opts)
	}
	owner, _ := ReadOwner(dir)
	return nil, domain.ErrAlreadyLocked.WithDetails(describeOwner(path, owner))
}

// reclaim replaces a stale lock file. Reclaimers are serialized by a
// second lock and re-check the owner under it, so a lock one of them just
// took is never removed by another. It returns nil without error when the
// lock turned out not to be stale or was taken by someone else.
func reclaim(ctx context.Context, dir string, opts Options) (*Guard, error) {
	path := Path(dir)
	serial, err := tryAcquire(ctx, path+reclaimSuffix, opts, true)
	if err != nil {
		return nil, err
	}
	defer serial.Unlock()

	owner, _ := ReadOwner(dir)
	if !isStale(owner, opts) {
		return nil, nil
	}
	opts.Logger.Warn("reclaiming stale lock",
		"path", path,
		"owner_pid", owner.PID,
		"owner_host", owner.Hostname,
		"acquired_at", owner.AcquiredAt)
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, domain.ErrIO.WithDetails(path).WithCause(err)
	}
	fl, err := tryAcquire(ctx, path, opts, false)
	if err != nil || fl == nil {
		return nil, err
	}
	// The owner is written before the reclaim lock is dropped.
	return newGuard(fl, path, opts)
}

// newGuard records this process as owner of the lock held by fl. The
// metadata is written through a handle kept for the guard's lifetime, so
// a guard never touches a lock file that replaced its own.
func newGuard(fl *flock.Flock, path string, opts Options) (*Guard, error) {
	file, err := os.OpenFile(path, os.O_RDWR, 0o600)
	if err != nil {
		_ = fl.Unlock()
		return nil, domain.ErrIO.WithDetails(path).WithCause(err)
	}
	g := &Guard{fl: fl, file: file, path: path, logger: opts.Logger}
	if err := g.writeOwner(Owner{
		PID:        os.Getpid(),
		Hostname:   hostname(),
		Command:    opts.Command,
		AcquiredAt: opts.now().UTC(),
	}); err != nil {
		g.Release()
		return nil, err
	}

	opts.Logger.Debug("working directory locked", "path", path)
	return g, nil
}

// tryAcquire returns a locked flock, or nil when the lock is held elsewhere.
func tryAcquire(ctx context.Context, path string, opts Options, wait bool) (*flock.Flock, error) {
	fl := flock.New(path)

	var ok bool
	var err error
	if wait {
		ok, err = fl.TryLockContext(ctx, opts.RetryDelay)
	} else {
		ok, err = fl.TryLock()
	}
	if err != nil {
		_ = fl.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, domain.ErrAlreadyLocked.WithDetails("gave up waiting for lock").WithCause(ctxErr)
		}
		return nil, domain.ErrIO.WithDetails(path).WithCause(err)
	}
	if !ok {
		_ = fl.Close()
		return nil, nil
	}
	return fl, nil
}

func isStale(owner *Owner, opts Options) bool {
	if owner == nil || opts.StaleAfter < 0 || owner.AcquiredAt.IsZero() {
		return false
	}
	if opts.now().Sub(owner.AcquiredAt) < opts.StaleAfter {
		return false
	}
	if owner.Hostname == hostname() && processAlive(owner.PID) {
		return false
	}
	return true
}

// ReadOwner returns the owner metadata currently in the lock file of dir.
// It returns nil without error when no metadata is present.
func ReadOwner(dir string) (*Owner, error) {
	raw, err := os.ReadFile(Path(dir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var owner Owner
	if err := json.Unmarshal(raw, &owner); err != nil {
		return nil, fmt.Errorf("parse lock owner: %w", err)
	}
	return &owner, nil
}

// ForceUnlock removes the lock file of dir regardless of its owner. It is
// an operator escape hatch; a live owner keeps its lock on the unlinked
// file, so callers must make sure no other invocation is running.
func ForceUnlock(dir string) (*Owner, error) {
	owner, _ := ReadOwner(dir)
	if err := os.Remove(Path(dir)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return owner, domain.ErrIO.WithDetails(Path(dir)).WithCause(err)
	}
	return owner, nil
}

func (g *Guard) writeOwner(owner Owner) error {
	raw, err := json.Marshal(owner)
	if err != nil {
		return err
	}
	if err := g.file.Truncate(0); err != nil {
		return domain.ErrIO.WithDetails(g.path).WithCause(err)
	}
	if _, err := g.file.WriteAt(raw, 0); err != nil {
		return domain.ErrIO.WithDetails(g.path).WithCause(err)
	}
	return nil
}

// Path returns the lock file path.
func (g *Guard) Path() string {
	return g.path
}

// Release clears the owner metadata and drops the lock. Safe to call more
// than once and from several goroutines; the lock file itself is kept so
// that waiters polling it stay on the same inode. Only the file this guard
// locked is cleared, even if the path was force-unlocked since.
func (g *Guard) Release() error {
	g.once.Do(func() {
		if err := g.file.Truncate(0); err != nil {
			g.logger.Warn("clear lock owner", "path", g.path, "error", err)
		}
		if err := g.file.Close(); err != nil {
			g.logger.Warn("close lock file", "path", g.path, "error", err)
		}
		if err := g.fl.Unlock(); err != nil {
			g.err = domain.ErrIO.WithDetails(g.path).WithCause(err)
			return
		}
		g.logger.Debug("working directory unlocked", "path", g.path)
	})
	return g.err
}

func describeOwner(path string, owner *Owner) string {
	if owner == nil {
		return path
	}
	return fmt.Sprintf("%s held by pid %d on %s since %s",
		path, owner.PID, owner.Hostname, owner.AcquiredAt.Format(time.RFC3339))
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}
