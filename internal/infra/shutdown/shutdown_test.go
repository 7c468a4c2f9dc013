package shutdown

import (
	"context"
	"errors"
	"sync"
	"syscall"
	"testing"
	"time"
)

func TestHandler_HooksRunInReverse(t *testing.T) {
	h, _ := NewHandler(context.Background(), time.Second)

	var (
		mu    sync.Mutex
		order []int
	)
	for i := 1; i <= 3; i++ {
		h.OnShutdown(func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, i)
			return nil
		})
	}

	if err := h.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if len(order) != 3 || order[0] != 3 || order[1] != 2 || order[2] != 1 {
		t.Errorf("hook order = %v, want [3 2 1]", order)
	}
	select {
	case <-h.Done():
	default:
		t.Error("Done() should be closed after Shutdown()")
	}
}

func TestHandler_ShutdownOnce(t *testing.T) {
	h, ctx := NewHandler(context.Background(), time.Second)

	calls := 0
	boom := errors.New("boom")
	h.OnShutdown(func(context.Context) error {
		calls++
		return boom
	})

	for i := 0; i < 3; i++ {
		if err := h.Shutdown(); !errors.Is(err, boom) {
			t.Errorf("Shutdown() #%d error = %v", i, err)
		}
	}
	if calls != 1 {
		t.Errorf("hook ran %d times", calls)
	}
	if ctx.Err() == nil {
		t.Error("Shutdown() should cancel the context")
	}
}

func TestHandler_SignalCancelsContext(t *testing.T) {
	h, ctx := NewHandler(context.Background(), time.Second)
	exited := make(chan int, 1)
	h.exit = func(code int) { exited <- code }

	h.signals <- syscall.SIGINT

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("signal did not cancel the context")
	}

	// The command unwinds in time: no forced exit.
	if err := h.Shutdown(); err != nil {
		t.Fatal(err)
	}
	select {
	case code := <-exited:
		t.Errorf("unexpected forced exit %d", code)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHandler_ForcedAfterGrace(t *testing.T) {
	h, _ := NewHandler(context.Background(), 20*time.Millisecond)
	exited := make(chan int, 1)
	h.exit = func(code int) { exited <- code }

	released := make(chan struct{})
	h.OnShutdown(func(context.Context) error {
		close(released)
		return nil
	})

	h.signals <- syscall.SIGTERM

	select {
	case code := <-exited:
		if code != ExitInterrupted {
			t.Errorf("exit code = %d, want %d", code, ExitInterrupted)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("hung command was not forced out")
	}
	select {
	case <-released:
	default:
		t.Error("hooks must run before the forced exit")
	}
}
