package service

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/Mirebella/fedimint/internal/federation"
	"github.com/Mirebella/fedimint/internal/lockfile"
	"github.com/Mirebella/fedimint/internal/secret"
	"github.com/Mirebella/fedimint/internal/storage"
)

// StoreDirName is the State Store directory inside a working directory.
const StoreDirName = "state"

// WorkdirOptions configures OpenWorkdir.
type WorkdirOptions struct {
	Dir        string
	Passphrase []byte
	Lock       lockfile.Options
	Federation federation.Options
	Observer   Observer
	Logger     *slog.Logger
}

// Workdir is the context object of one invocation. It owns the lock, the
// State Store, the lazily loaded Secret Root, the registry and the
// dispatcher; nothing of it lives in package state.
type Workdir struct {
	dir        string
	passphrase []byte
	logger     *slog.Logger

	guard      *lockfile.Guard
	store      *storage.BadgerEngine
	registry   *federation.Registry
	oplog      *OperationLog
	dispatcher *Dispatcher

	rootMu sync.Mutex
	root   *secret.Root

	closeOnce sync.Once
	closeErr  error
}

// OpenWorkdir locks dir and opens its State Store.
func OpenWorkdir(ctx context.Context, opts WorkdirOptions) (*Workdir, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Lock.Logger == nil {
		opts.Lock.Logger = opts.Logger
	}
	if opts.Federation.Logger == nil {
		opts.Federation.Logger = opts.Logger
	}

	// 1. Take the working directory lock
	guard, err := lockfile.Acquire(ctx, opts.Dir, opts.Lock)
	if err != nil {
		return nil, err
	}

	// 2. Open the State Store
	store, err := storage.Open(storage.DefaultConfig(filepath.Join(opts.Dir, StoreDirName)), opts.Logger)
	if err != nil {
		_ = guard.Release()
		return nil, err
	}

	// 3. Wire registry and dispatcher
	w := &Workdir{
		dir:        opts.Dir,
		passphrase: append([]byte(nil), opts.Passphrase...),
		logger:     opts.Logger,
		guard:      guard,
		store:      store,
		oplog:      NewOperationLog(store),
	}
	fedOpts := opts.Federation
	fedOpts.Journal = w.oplog
	w.registry = federation.NewRegistry(store, w.Root, fedOpts)
	w.dispatcher = NewDispatcher(w.registry, w.oplog, DispatcherOptions{
		Observer: opts.Observer,
		Logger:   opts.Logger,
	})
	return w, nil
}

// Dir returns the working directory path.
func (w *Workdir) Dir() string { return w.dir }

// Store returns the State Store.
func (w *Workdir) Store() *storage.BadgerEngine { return w.store }

// Registry returns the Federation Client Registry.
func (w *Workdir) Registry() *federation.Registry { return w.registry }

// Dispatcher returns the Command Dispatcher.
func (w *Workdir) Dispatcher() *Dispatcher { return w.dispatcher }

// OperationLog returns the operation log.
func (w *Workdir) OperationLog() *OperationLog { return w.oplog }

// Initialize creates the Secret Root from mnemonic.
func (w *Workdir) Initialize(ctx context.Context, mnemonic string) (*secret.Root, error) {
	w.rootMu.Lock()
	defer w.rootMu.Unlock()

	root, err := secret.Initialize(ctx, w.store, mnemonic, w.passphrase)
	if err != nil {
		return nil, err
	}
	w.root = root
	return root, nil
}

// Root loads the Secret Root on first use.
func (w *Workdir) Root(ctx context.Context) (*secret.Root, error) {
	w.rootMu.Lock()
	defer w.rootMu.Unlock()

	if w.root != nil {
		return w.root, nil
	}
	root, err := secret.Load(ctx, w.store, w.passphrase)
	if err != nil {
		return nil, err
	}
	w.root = root
	return root, nil
}

// Close wipes secrets, closes the store and releases the lock.
func (w *Workdir) Close() error {
	w.closeOnce.Do(func() {
		w.rootMu.Lock()
		if w.root != nil {
			w.root.Zero()
			w.root = nil
		}
		secret.Zero(w.passphrase)
		w.rootMu.Unlock()

		w.closeErr = errors.Join(w.store.Close(), w.guard.Release())
	})
	return w.closeErr
}
