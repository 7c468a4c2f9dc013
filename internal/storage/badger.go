package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/dgraph-io/badger/v3"

	"github.com/Mirebella/fedimint/internal/core/domain"
)

// BadgerEngine implements KVStore using Badger v3.
type BadgerEngine struct {
	db     *badger.DB
	cfg    Config
	logger *slog.Logger
	closed atomic.Bool
}

// Open opens (creating if needed) the Badger store described by cfg.
//
// Open failures are classified: a directory held by another process is
// ErrAlreadyLocked, damaged files are ErrCorruptStore, anything else is
// ErrIO.
func Open(cfg Config, logger *slog.Logger) (*BadgerEngine, error) {
	if cfg.Dir == "" && !cfg.InMemory {
		return nil, fmt.Errorf("badger: dir is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Dir)
		opts.ValueLogFileSize = cfg.ValueLogFileSize
	}
	opts.Logger = &badgerLogger{logger: logger}
	opts.SyncWrites = cfg.SyncWrites
	opts.BlockCacheSize = cfg.CacheSize
	opts.NumVersionsToKeep = 1

	db, err := badger.Open(opts)
	if err != nil {
		return nil, classifyOpenError(cfg.Dir, err)
	}

	logger.Debug("state store opened",
		"dir", cfg.Dir,
		"in_memory", cfg.InMemory,
		"sync_writes", cfg.SyncWrites)

	return &BadgerEngine{
		db:     db,
		cfg:    cfg,
		logger: logger,
	}, nil
}

// OpenInMemory opens a throwaway in-memory store.
func OpenInMemory(logger *slog.Logger) (*BadgerEngine, error) {
	cfg := DefaultConfig("")
	cfg.InMemory = true
	cfg.SyncWrites = false
	return Open(cfg, logger)
}

func classifyOpenError(dir string, err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "cannot acquire directory lock"):
		return domain.ErrAlreadyLocked.WithDetails(dir).WithCause(err)
	case strings.Contains(msg, "checksum"),
		strings.Contains(msg, "corrupt"),
		strings.Contains(msg, "truncate"),
		strings.Contains(msg, "manifest"),
		strings.Contains(msg, "unexpected eof"):
		return domain.ErrCorruptStore.WithDetails(dir).WithCause(err)
	default:
		return domain.ErrIO.WithDetails(dir).WithCause(err)
	}
}

// classify maps engine errors of an open store onto the taxonomy.
func classify(err error) error {
	var pathErr *fs.PathError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrKeyNotFound), errors.Is(err, ErrClosed),
		errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded),
		domain.IsDomainError(err, ""):
		return err
	case errors.Is(err, badger.ErrTxnTooBig):
		return domain.ErrInvalidArgument.WithDetails("batch too large").WithCause(err)
	case errors.As(err, &pathErr):
		return domain.ErrIO.WithCause(err)
	case strings.Contains(strings.ToLower(err.Error()), "checksum"):
		return domain.ErrCorruptStore.WithCause(err)
	default:
		return domain.ErrIO.WithCause(err)
	}
}

func (e *BadgerEngine) check(ctx context.Context) error {
	if e.closed.Load() {
		return ErrClosed
	}
	return ctx.Err()
}

// Get retrieves a value by key.
func (e *BadgerEngine) Get(ctx context.Context, key []byte) ([]byte, error) {
	if err := e.check(ctx); err != nil {
		return nil, err
	}

	var value []byte
	err := e.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrKeyNotFound
			}
			return err
		}

		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, classify(err)
	}

	return value, nil
}

// Put stores a key-value pair.
func (e *BadgerEngine) Put(ctx context.Context, key, value []byte) error {
	return e.Batch(ctx, []Write{Set(key, value)})
}

// Scan iterates over keys with a given prefix in ascending key order.
// Keys and values passed to fn are copies owned by the callee.
func (e *BadgerEngine) Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) bool) error {
	if err := e.check(ctx); err != nil {
		return err
	}

	err := e.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			key := item.KeyCopy(nil)
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}

			if !fn(key, value) {
				break
			}
		}

		return nil
	})
	return classify(err)
}

// Batch applies writes in a single read-write transaction. With SyncWrites
// the commit is on disk when Batch returns nil.
func (e *BadgerEngine) Batch(ctx context.Context, writes []Write) error {
	if err := e.check(ctx); err != nil {
		return err
	}
	if len(writes) == 0 {
		return nil
	}

	err := e.db.Update(func(txn *badger.Txn) error {
		for _, w := range writes {
			if len(w.Key) == 0 {
				return domain.ErrInvalidArgument.WithDetails("empty key in batch")
			}
			var err error
			if w.Delete {
				err = txn.Delete(w.Key)
			} else {
				err = txn.Set(w.Key, w.Value)
			}
			if err != nil {
				return fmt.Errorf("write %q: %w", w.Key, err)
			}
		}
		return nil
	})
	return classify(err)
}

// Backup streams a full backup of the store to w.
//
// Uses Badger's built-in backup mechanism.
func (e *BadgerEngine) Backup(ctx context.Context, w io.Writer) (uint64, error) {
	if err := e.check(ctx); err != nil {
		return 0, err
	}
	version, err := e.db.Backup(w, 0)
	if err != nil {
		return 0, classify(fmt.Errorf("backup: %w", err))
	}
	return version, nil
}

// GC reclaims value log space. Returns the number of rewritten log files.
func (e *BadgerEngine) GC(ctx context.Context) (int, error) {
	if err := e.check(ctx); err != nil {
		return 0, err
	}
	if e.cfg.InMemory {
		return 0, nil
	}

	rewritten := 0
	for {
		if err := ctx.Err(); err != nil {
			return rewritten, err
		}
		err := e.db.RunValueLogGC(e.cfg.GCThreshold)
		if err != nil {
			if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) {
				break
			}
			return rewritten, classify(fmt.Errorf("gc: %w", err))
		}
		rewritten++
	}

	e.logger.Info("gc completed", "rewritten", rewritten)
	return rewritten, nil
}

// Stats returns storage statistics.
func (e *BadgerEngine) Stats(ctx context.Context) (*Stats, error) {
	if err := e.check(ctx); err != nil {
		return nil, err
	}
	lsm, vlog := e.db.Size()

	return &Stats{
		LSMSize:      uint64(lsm),
		ValueLogSize: uint64(vlog),
		TotalSize:    uint64(lsm + vlog),
	}, nil
}

// Close flushes and closes the store. Safe to call more than once.
func (e *BadgerEngine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}

	if err := e.db.Close(); err != nil {
		return classify(fmt.Errorf("close db: %w", err))
	}

	e.logger.Debug("state store closed")
	return nil
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
// Badger is chatty at info level, so info is demoted to debug.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)), "component", "badger")
}
