package module

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Mirebella/fedimint/internal/core/domain"
	"github.com/Mirebella/fedimint/internal/secret"
	"github.com/Mirebella/fedimint/internal/storage"
)

// counterKey holds the next unused derivation index of a module.
const counterKey = "counter"

// state is the persisted state of one module instance, stored under
// module/<federation>/<name>/.
type state struct {
	store  storage.KVStore
	prefix string
}

func newState(store storage.KVStore, fed domain.FederationID, name string) *state {
	return &state{
		store:  store,
		prefix: "module/" + fed.String() + "/" + name + "/",
	}
}

func (s *state) key(parts ...string) []byte {
	return []byte(s.prefix + strings.Join(parts, "/"))
}

func (s *state) uint(ctx context.Context, name string) (uint64, error) {
	key := s.key(name)
	raw, err := s.store.Get(ctx, key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		return 0, domain.ErrCorruptStore.WithDetails(string(key)).WithCause(err)
	}
	return v, nil
}

func (s *state) setUint(name string, v uint64) storage.Write {
	return storage.Set(s.key(name), []byte(strconv.FormatUint(v, 10)))
}

func (s *state) record(kind string, index uint64, v any) (storage.Write, error) {
	raw, err := storage.EncodeJSON(v)
	if err != nil {
		return storage.Write{}, err
	}
	return storage.Set(s.key(kind, fmt.Sprintf("%020d", index)), raw), nil
}

func (s *state) commit(ctx context.Context, writes ...storage.Write) error {
	if err := s.store.Batch(ctx, writes); err != nil {
		return fmt.Errorf("commit module state: %w", err)
	}
	return nil
}

// childSecret derives the material of one derivation index.
func childSecret(key secret.DerivedKey, index uint64) []byte {
	mac := hmac.New(sha256.New, key[:])
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], index)
	mac.Write(buf[:])
	return mac.Sum(nil)
}

// submit reserves the next derivation index and runs call with the
// material derived for it. The writes returned by call are committed
// together with the advanced counter; nothing is written when call fails.
func (b *base) submit(ctx context.Context, call func(index uint64, child []byte) ([]storage.Write, error)) error {
	index, err := b.state.uint(ctx, counterKey)
	if err != nil {
		return err
	}
	child := childSecret(b.deps.Key, index)
	defer secret.Zero(child)

	writes, err := call(index, child)
	if err != nil {
		return err
	}
	writes = append(writes, b.state.setUint(counterKey, index+1))
	if err := b.state.commit(ctx, writes...); err != nil {
		return err
	}
	b.logger.Debug("module state committed", "index", index, "writes", len(writes))
	return nil
}

// stamp is the creation time recorded with module records.
func stamp() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
