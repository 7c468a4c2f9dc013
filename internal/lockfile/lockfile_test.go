package lockfile

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Mirebella/fedimint/internal/core/domain"
)

func TestAcquire_Exclusive(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, err := Acquire(ctx, dir, Options{Command: "info"})
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer first.Release()

	_, err = Acquire(ctx, dir, Options{})
	if !errors.Is(err, domain.ErrAlreadyLocked) {
		t.Fatalf("second Acquire: expected ErrAlreadyLocked, got %v", err)
	}
	if domain.ExitCode(err) != domain.ExitState {
		t.Errorf("held lock should exit %d, got %d", domain.ExitState, domain.ExitCode(err))
	}

	owner, err := ReadOwner(dir)
	if err != nil {
		t.Fatal(err)
	}
	if owner == nil || owner.PID != os.Getpid() || owner.Command != "info" {
		t.Errorf("unexpected owner metadata: %+v", owner)
	}
}

func TestAcquire_Concurrent(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	var (
		wg     sync.WaitGroup
		won    atomic.Int32
		locked atomic.Int32
		guards = make(chan *Guard, 8)
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g, err := Acquire(ctx, dir, Options{})
			switch {
			case err == nil:
				won.Add(1)
				guards <- g
			case errors.Is(err, domain.ErrAlreadyLocked):
				locked.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	close(guards)
	for g := range guards {
		g.Release()
	}

	if won.Load() != 1 {
		t.Errorf("expected exactly one winner, got %d", won.Load())
	}
	if locked.Load() != 7 {
		t.Errorf("expected 7 ErrAlreadyLocked, got %d", locked.Load())
	}
}

func TestGuard_ReleaseIdempotent(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	g, err := Acquire(ctx, dir, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if err := g.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if err := g.Release(); err != nil {
		t.Errorf("second Release() error = %v", err)
	}

	if owner, _ := ReadOwner(dir); owner != nil {
		t.Errorf("owner metadata should be cleared, got %+v", owner)
	}
	if _, err := os.Stat(g.Path()); err != nil {
		t.Errorf("lock file should be kept after release: %v", err)
	}

	again, err := Acquire(ctx, dir, Options{})
	if err != nil {
		t.Fatalf("reacquire after release: %v", err)
	}
	again.Release()
}

func TestAcquire_WaitBlocksUntilReleased(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	first, err := Acquire(ctx, dir, Options{})
	if err != nil {
		t.Fatal(err)
	}

	var released atomic.Bool
	go func() {
		time.Sleep(150 * time.Millisecond)
		released.Store(true)
		first.Release()
	}()

	second, err := Acquire(ctx, dir, Options{Wait: true, RetryDelay: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("waiting Acquire() error = %v", err)
	}
	defer second.Release()

	if !released.Load() {
		t.Error("waiting Acquire returned before the holder released")
	}
}

func TestAcquire_WaitGivesUpOnContext(t *testing.T) {
	dir := t.TempDir()

	first, err := Acquire(context.Background(), dir, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer first.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = Acquire(ctx, dir, Options{Wait: true, RetryDelay: 10 * time.Millisecond})
	if !errors.Is(err, domain.ErrAlreadyLocked) {
		t.Errorf("expected ErrAlreadyLocked after timeout, got %v", err)
	}
}

func writeForeignOwner(t *testing.T, dir string, acquired time.Time) {
	t.Helper()
	raw, err := json.Marshal(Owner{PID: 1, Hostname: "some-other-host", AcquiredAt: acquired})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(Path(dir), raw, 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestAcquire_StaleReclaim(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	holder, err := Acquire(ctx, dir, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer holder.Release()
	writeForeignOwner(t, dir, base)

	tests := []struct {
		name       string
		now        time.Time
		staleAfter time.Duration
		wantErr    error
	}{
		{"fresh lock is honoured", base.Add(time.Hour), 0, domain.ErrAlreadyLocked},
		{"reclaim disabled", base.Add(48 * time.Hour), -1, domain.ErrAlreadyLocked},
		{"stale lock is reclaimed", base.Add(25 * time.Hour), 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := tt.now
			g, err := Acquire(ctx, dir, Options{
				StaleAfter: tt.staleAfter,
				now:        func() time.Time { return now },
			})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Acquire() error = %v", err)
			}
			defer g.Release()

			owner, _ := ReadOwner(dir)
			if owner == nil || owner.PID != os.Getpid() {
				t.Errorf("reclaimed lock should record the new owner, got %+v", owner)
			}
		})
	}
}

func TestAcquire_ConcurrentReclaim(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	holder, err := Acquire(context.Background(), dir, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer holder.Release()
	writeForeignOwner(t, dir, base)

	now := base.Add(25 * time.Hour)
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []*Guard
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g, err := Acquire(context.Background(), dir, Options{now: func() time.Time { return now }})
			if err != nil {
				if !errors.Is(err, domain.ErrAlreadyLocked) {
					t.Errorf("Acquire() error = %v", err)
				}
				return
			}
			mu.Lock()
			winners = append(winners, g)
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(winners) != 1 {
		t.Fatalf("%d reclaimers hold the lock, want exactly 1", len(winners))
	}
	owner, _ := ReadOwner(dir)
	if owner == nil || owner.PID != os.Getpid() || !owner.AcquiredAt.Equal(now) {
		t.Errorf("owner after reclaim = %+v", owner)
	}
	winners[0].Release()
}

func TestIsStale_LiveLocalOwner(t *testing.T) {
	now := time.Now()
	owner := &Owner{PID: os.Getpid(), Hostname: hostname(), AcquiredAt: now.Add(-72 * time.Hour)}
	opts := Options{StaleAfter: time.Hour, now: func() time.Time { return now }}
	if isStale(owner, opts) {
		t.Error("a live owner on this host must never be treated as stale")
	}
}

func TestForceUnlock(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	holder, err := Acquire(ctx, dir, Options{Command: "join"})
	if err != nil {
		t.Fatal(err)
	}
	defer holder.Release()

	owner, err := ForceUnlock(dir)
	if err != nil {
		t.Fatalf("ForceUnlock() error = %v", err)
	}
	if owner == nil || owner.Command != "join" {
		t.Errorf("ForceUnlock should report the previous owner, got %+v", owner)
	}

	g, err := Acquire(ctx, dir, Options{Command: "info"})
	if err != nil {
		t.Fatalf("Acquire after ForceUnlock: %v", err)
	}

	// The evicted holder releasing late must leave the new owner intact.
	if err := holder.Release(); err != nil {
		t.Fatal(err)
	}
	if owner, _ := ReadOwner(dir); owner == nil || owner.Command != "info" {
		t.Errorf("late release of an evicted guard cleared the new owner, got %+v", owner)
	}
	g.Release()

	if _, err := ForceUnlock(t.TempDir()); err != nil {
		t.Errorf("ForceUnlock on a directory without a lock should succeed, got %v", err)
	}
}
