package secret

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/hkdf"

	"github.com/Mirebella/fedimint/internal/core/domain"
	"github.com/Mirebella/fedimint/internal/storage"
)

// RootKey is the State Store key of the root envelope.
var RootKey = []byte("secret/root")

const (
	// KeySize is the length of the root secret and of derived keys.
	KeySize = 32

	rootInfo   = "fedimint-cli/root"
	deriveInfo = "fedimint-cli/derive/"
)

// DerivedKey is isolated key material for one consumer.
type DerivedKey [KeySize]byte

// Root is the Secret Root of a working directory.
type Root struct {
	secret   [KeySize]byte
	mnemonic []byte
}

// NormalizeMnemonic lowercases the phrase and collapses whitespace.
func NormalizeMnemonic(mnemonic string) string {
	return strings.Join(strings.Fields(strings.ToLower(mnemonic)), " ")
}

// ValidateMnemonic checks the word list and its checksum.
func ValidateMnemonic(mnemonic string) error {
	m := NormalizeMnemonic(mnemonic)
	if m == "" {
		return domain.ErrInvalidMnemonic.WithDetails("empty mnemonic")
	}
	if _, err := bip39.EntropyFromMnemonic(m); err != nil {
		return domain.ErrInvalidMnemonic.WithCause(err)
	}
	return nil
}

// GenerateMnemonic returns a fresh mnemonic of 12, 15, 18, 21 or 24 words.
func GenerateMnemonic(words int) (string, error) {
	if words < 12 || words > 24 || words%3 != 0 {
		return "", domain.ErrInvalidArgument.WithDetailsf("mnemonic length %d: want 12, 15, 18, 21 or 24 words", words)
	}
	entropy, err := bip39.NewEntropy(words / 3 * 32)
	if err != nil {
		return "", fmt.Errorf("secret: generate entropy: %w", err)
	}
	defer Zero(entropy)
	return bip39.NewMnemonic(entropy)
}

// IsInitialized reports whether store holds a root envelope.
func IsInitialized(ctx context.Context, store storage.KVStore) (bool, error) {
	_, err := store.Get(ctx, RootKey)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, storage.ErrKeyNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Initialize validates mnemonic, persists it (sealed with passphrase when
// one is given) and returns the derived root. It writes exactly once.
func Initialize(ctx context.Context, store storage.KVStore, mnemonic string, passphrase []byte) (*Root, error) {
	if err := ValidateMnemonic(mnemonic); err != nil {
		return nil, err
	}
	ok, err := IsInitialized(ctx, store)
	if err != nil {
		return nil, err
	}
	if ok {
		return nil, domain.ErrAlreadyInitialized
	}

	normalized := []byte(NormalizeMnemonic(mnemonic))
	env, err := seal(normalized, passphrase)
	if err != nil {
		return nil, err
	}
	raw, err := storage.EncodeJSON(env)
	if err != nil {
		return nil, err
	}
	if err := store.Batch(ctx, []storage.Write{storage.Set(RootKey, raw)}); err != nil {
		return nil, fmt.Errorf("persist secret root: %w", err)
	}

	return newRoot(normalized)
}

// Load opens the stored root envelope.
func Load(ctx context.Context, store storage.KVStore, passphrase []byte) (*Root, error) {
	var env envelope
	if err := storage.GetJSON(ctx, store, RootKey, &env); err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, domain.ErrNotInitialized
		}
		return nil, err
	}

	mnemonic, err := env.open(passphrase)
	if err != nil {
		return nil, err
	}
	if err := ValidateMnemonic(string(mnemonic)); err != nil {
		Zero(mnemonic)
		return nil, domain.ErrCorruptStore.WithDetails("stored mnemonic fails validation")
	}
	return newRoot(mnemonic)
}

// IsEncrypted reports whether the stored root needs a passphrase.
func IsEncrypted(ctx context.Context, store storage.KVStore) (bool, error) {
	var env envelope
	if err := storage.GetJSON(ctx, store, RootKey, &env); err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return false, domain.ErrNotInitialized
		}
		return false, err
	}
	return env.Encrypted, nil
}

func newRoot(mnemonic []byte) (*Root, error) {
	seed, err := bip39.NewSeedWithErrorChecking(string(mnemonic), "")
	if err != nil {
		return nil, domain.ErrInvalidMnemonic.WithCause(err)
	}
	defer Zero(seed)

	r := &Root{mnemonic: mnemonic}
	if _, err := io.ReadFull(hkdf.New(sha256.New, seed, nil, []byte(rootInfo)), r.secret[:]); err != nil {
		return nil, fmt.Errorf("secret: derive root: %w", err)
	}
	return r, nil
}

// Derive expands the root into key material bound to tag. It is a pure
// function of (root, tag).
func (r *Root) Derive(tag []byte) DerivedKey {
	var out DerivedKey
	info := make([]byte, 0, len(deriveInfo)+len(tag))
	info = append(info, deriveInfo...)
	info = append(info, tag...)
	// HKDF-Expand on a fixed-size output cannot fail.
	_, _ = io.ReadFull(hkdf.Expand(sha256.New, r.secret[:], info), out[:])
	return out
}

// ModuleTag builds the derivation tag of one module of one federation.
func ModuleTag(id domain.FederationID, module string) []byte {
	tag := make([]byte, 0, len(id)+1+len(module))
	tag = append(tag, id[:]...)
	tag = append(tag, 0)
	tag = append(tag, module...)
	return tag
}

// Mnemonic returns the recovery phrase.
func (r *Root) Mnemonic() string {
	return string(r.mnemonic)
}

// Zero wipes the root from memory. The Root must not be used afterwards.
func (r *Root) Zero() {
	Zero(r.secret[:])
	Zero(r.mnemonic)
}
