package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/Mirebella/fedimint/internal/core/domain"
	"github.com/Mirebella/fedimint/internal/storage"
)

const oplogPrefix = "oplog/"

// OperationLog is the append-only record of confirmed mutating commands.
//
// Entries are keyed oplog/<federation>/<ulid>, so a prefix scan yields one
// federation's entries in the order they were appended.
type OperationLog struct {
	store storage.KVStore

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	now     func() time.Time
}

// NewOperationLog creates an operation log over store.
func NewOperationLog(store storage.KVStore) *OperationLog {
	return &OperationLog{
		store:   store,
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}
}

func (l *OperationLog) newID(ts time.Time) (ulid.ULID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return ulid.New(ulid.Timestamp(ts), l.entropy)
}

// Stage assigns ID and Timestamp to entry and returns the write that
// records it, for callers committing it in their own batch.
func (l *OperationLog) Stage(entry *domain.OperationLogEntry) (storage.Write, error) {
	ts := l.now().UTC()
	id, err := l.newID(ts)
	if err != nil {
		return storage.Write{}, fmt.Errorf("generate log id: %w", err)
	}
	entry.ID = id.String()
	entry.Timestamp = ts

	raw, err := storage.EncodeJSON(entry)
	if err != nil {
		return storage.Write{}, err
	}
	return storage.Set([]byte(oplogPrefix+entry.FederationID.String()+"/"+entry.ID), raw), nil
}

// Append records entry on its own.
func (l *OperationLog) Append(ctx context.Context, entry *domain.OperationLogEntry) error {
	w, err := l.Stage(entry)
	if err != nil {
		return err
	}
	if err := l.store.Batch(ctx, []storage.Write{w}); err != nil {
		return fmt.Errorf("append operation log: %w", err)
	}
	return nil
}

// Scan streams entries in key order. A nil federation scans all of them.
func (l *OperationLog) Scan(ctx context.Context, federation *domain.FederationID, fn func(*domain.OperationLogEntry) bool) error {
	prefix := oplogPrefix
	if federation != nil {
		prefix += federation.String() + "/"
	}

	var decodeErr error
	err := l.store.Scan(ctx, []byte(prefix), func(key, value []byte) bool {
		var entry domain.OperationLogEntry
		if err := storage.DecodeJSON(key, value, &entry); err != nil {
			decodeErr = err
			return false
		}
		return fn(&entry)
	})
	if err != nil {
		return err
	}
	return decodeErr
}
