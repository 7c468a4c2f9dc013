package shutdown

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// ExitInterrupted is the exit code used when hooks had to be forced.
const ExitInterrupted = 130

// Handler cancels a command on SIGINT/SIGTERM and runs cleanup hooks.
//
// The first signal cancels the context returned by NewHandler. If the
// command has not called Shutdown within the grace period, the hooks run
// anyway and the process exits with ExitInterrupted.
type Handler struct {
	grace   time.Duration
	cancel  context.CancelFunc
	signals chan os.Signal
	stop    chan struct{}

	mu    sync.Mutex
	hooks []func(context.Context) error

	once sync.Once
	err  error
	done chan struct{}

	// exit is overridable in tests.
	exit func(code int)
}

// NewHandler derives a context from parent that is cancelled on SIGINT or
// SIGTERM.
func NewHandler(parent context.Context, grace time.Duration) (*Handler, context.Context) {
	ctx, cancel := context.WithCancel(parent)
	h := &Handler{
		grace:   grace,
		cancel:  cancel,
		signals: make(chan os.Signal, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		exit:    os.Exit,
	}
	signal.Notify(h.signals, syscall.SIGINT, syscall.SIGTERM)
	go h.watch()
	return h, ctx
}

func (h *Handler) watch() {
	select {
	case <-h.stop:
		return
	case <-h.signals:
	}

	// 1. Ask the command to stop
	h.cancel()

	// 2. Give it the grace period to unwind by itself
	timer := time.NewTimer(h.grace)
	defer timer.Stop()
	select {
	case <-h.done:
		return
	case <-timer.C:
	}

	// 3. Force cleanup so the lock is not left behind
	_ = h.Shutdown()
	h.exit(ExitInterrupted)
}

// OnShutdown registers a cleanup hook.
// Hooks are called in reverse order of registration.
func (h *Handler) OnShutdown(hook func(context.Context) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, hook)
}

// Shutdown runs the hooks once, stops signal handling and returns the
// joined hook errors. Later calls return the same result.
func (h *Handler) Shutdown() error {
	h.once.Do(func() {
		signal.Stop(h.signals)
		close(h.stop)

		h.mu.Lock()
		hooks := make([]func(context.Context) error, len(h.hooks))
		copy(hooks, h.hooks)
		h.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), h.grace)
		defer cancel()

		var errs []error
		for i := len(hooks) - 1; i >= 0; i-- {
			if err := hooks[i](ctx); err != nil {
				errs = append(errs, err)
			}
		}
		h.err = errors.Join(errs...)
		h.cancel()
		close(h.done)
	})
	return h.err
}

// Done returns a channel that closes when Shutdown has completed.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}
