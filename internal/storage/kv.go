package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Mirebella/fedimint/internal/core/domain"
)

// Common errors
var (
	ErrKeyNotFound = errors.New("key not found")
	ErrClosed      = errors.New("state store closed")
)

// KVStore is the embedded ordered key-value store of one working directory.
//
// Implementations are not required to isolate concurrent readers from
// writers within a process.
type KVStore interface {
	// Get retrieves a value by key.
	// Returns ErrKeyNotFound if key doesn't exist.
	Get(ctx context.Context, key []byte) ([]byte, error)

	// Put stores a single key-value pair durably.
	Put(ctx context.Context, key, value []byte) error

	// Scan iterates in key order over keys with the given prefix.
	// Callback returns false to stop iteration. Each call starts a
	// fresh iteration.
	Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) bool) error

	// Batch applies all writes atomically.
	Batch(ctx context.Context, writes []Write) error

	// Close releases the store.
	Close() error
}

// Write is one mutation inside a Batch.
type Write struct {
	Key    []byte
	Value  []byte
	Delete bool
}

// Set returns a Write storing value under key.
func Set(key, value []byte) Write {
	return Write{Key: key, Value: value}
}

// Del returns a Write removing key.
func Del(key []byte) Write {
	return Write{Key: key, Delete: true}
}

// Stats contains storage engine statistics.
type Stats struct {
	// LSMSize is the LSM tree size in bytes.
	LSMSize uint64 `json:"lsm_size"`

	// ValueLogSize is the value log size in bytes.
	ValueLogSize uint64 `json:"value_log_size"`

	// TotalSize is the total disk usage in bytes.
	TotalSize uint64 `json:"total_size"`
}

// Config configures the Badger engine.
type Config struct {
	// Dir is the storage directory.
	Dir string

	// InMemory disables persistence (tests). Dir is ignored.
	InMemory bool

	// SyncWrites fsyncs every commit.
	// Default: true
	SyncWrites bool

	// CacheSize is the block cache size in bytes.
	// Default: 8MB
	CacheSize int64

	// ValueLogFileSize is the max value log file size in bytes.
	// Default: 64MB
	ValueLogFileSize int64

	// GCThreshold is the value log GC discard ratio (0.0-1.0).
	// Default: 0.5
	GCThreshold float64
}

// DefaultConfig returns the default configuration for dir.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:              dir,
		SyncWrites:       true,
		CacheSize:        8 << 20,
		ValueLogFileSize: 64 << 20,
		GCThreshold:      0.5,
	}
}

// GetJSON reads key and decodes it into v. A value that does not decode
// is reported as store corruption.
func GetJSON(ctx context.Context, s KVStore, key []byte, v any) error {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	return DecodeJSON(key, raw, v)
}

// DecodeJSON decodes a stored record, mapping failures to ErrCorruptStore.
func DecodeJSON(key, raw []byte, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return domain.ErrCorruptStore.WithDetailsf("record %q", key).WithCause(err)
	}
	return nil
}

// EncodeJSON encodes a record for storage.
func EncodeJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return raw, nil
}
