package secret

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Mirebella/fedimint/internal/core/domain"
	"github.com/Mirebella/fedimint/internal/storage"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func newStore(t *testing.T) storage.KVStore {
	t.Helper()
	s, err := storage.OpenInMemory(nil)
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestValidateMnemonic(t *testing.T) {
	tests := []struct {
		name     string
		mnemonic string
		wantErr  bool
	}{
		{"valid", testMnemonic, false},
		{"valid with odd spacing and case", "  Abandon abandon ABANDON abandon abandon abandon\tabandon abandon abandon abandon abandon about ", false},
		{"bad checksum", "zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo", true},
		{"unknown word", "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon notaword", true},
		{"wrong length", "abandon abandon abandon", true},
		{"empty", "   ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMnemonic(tt.mnemonic)
			if tt.wantErr {
				if !errors.Is(err, domain.ErrInvalidMnemonic) {
					t.Errorf("expected ErrInvalidMnemonic, got %v", err)
				}
				if domain.ExitCode(err) != domain.ExitInput {
					t.Errorf("invalid mnemonic should exit %d", domain.ExitInput)
				}
			} else if err != nil {
				t.Errorf("ValidateMnemonic() error = %v", err)
			}
		})
	}
}

func TestInitialize_InvalidMnemonicWritesNothing(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	_, err := Initialize(ctx, store, "zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo zoo", nil)
	if !errors.Is(err, domain.ErrInvalidMnemonic) {
		t.Fatalf("expected ErrInvalidMnemonic, got %v", err)
	}

	ok, err := IsInitialized(ctx, store)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("nothing should be persisted for an invalid mnemonic")
	}
}

func TestInitialize_AlreadyInitialized(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	if _, err := Initialize(ctx, store, testMnemonic, nil); err != nil {
		t.Fatal(err)
	}
	_, err := Initialize(ctx, store, testMnemonic, nil)
	if !errors.Is(err, domain.ErrAlreadyInitialized) {
		t.Errorf("expected ErrAlreadyInitialized, got %v", err)
	}
}

func TestLoad_NotInitialized(t *testing.T) {
	_, err := Load(context.Background(), newStore(t), nil)
	if !errors.Is(err, domain.ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized, got %v", err)
	}
}

func TestDerive_DeterministicAcrossDirectories(t *testing.T) {
	ctx := context.Background()

	first, err := Initialize(ctx, newStore(t), testMnemonic, nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Initialize(ctx, newStore(t), testMnemonic, []byte("correct horse battery"))
	if err != nil {
		t.Fatal(err)
	}

	var id domain.FederationID
	id[0] = 0xaa
	tags := [][]byte{
		nil,
		[]byte("mint"),
		ModuleTag(id, "mint"),
		ModuleTag(id, "wallet"),
	}
	for _, tag := range tags {
		if first.Derive(tag) != second.Derive(tag) {
			t.Errorf("Derive(%q) differs between directories", tag)
		}
		if first.Derive(tag) != first.Derive(tag) {
			t.Errorf("Derive(%q) not deterministic", tag)
		}
	}

	if first.Derive(ModuleTag(id, "mint")) == first.Derive(ModuleTag(id, "wallet")) {
		t.Error("different modules must get different keys")
	}
	var other domain.FederationID
	other[0] = 0xbb
	if first.Derive(ModuleTag(id, "mint")) == first.Derive(ModuleTag(other, "mint")) {
		t.Error("different federations must get different keys")
	}
}

func TestLoad_RoundTrip(t *testing.T) {
	tests := []struct {
		name       string
		passphrase []byte
	}{
		{"plain", nil},
		{"encrypted", []byte("correct horse battery")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()

			created, err := Initialize(ctx, store, testMnemonic, tt.passphrase)
			if err != nil {
				t.Fatal(err)
			}
			loaded, err := Load(ctx, store, tt.passphrase)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if created.Derive([]byte("x")) != loaded.Derive([]byte("x")) {
				t.Error("loaded root derives different keys")
			}
			if loaded.Mnemonic() != testMnemonic {
				t.Errorf("Mnemonic() = %q", loaded.Mnemonic())
			}

			encrypted, err := IsEncrypted(ctx, store)
			if err != nil {
				t.Fatal(err)
			}
			if encrypted != (tt.passphrase != nil) {
				t.Errorf("IsEncrypted() = %v", encrypted)
			}
		})
	}
}

func TestLoad_WrongPassphrase(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	if _, err := Initialize(ctx, store, testMnemonic, []byte("correct horse battery")); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(ctx, store, []byte("wrong horse battery")); !errors.Is(err, domain.ErrDecryptionFailed) {
		t.Errorf("wrong passphrase: expected ErrDecryptionFailed, got %v", err)
	}
	if _, err := Load(ctx, store, nil); !errors.Is(err, domain.ErrDecryptionFailed) {
		t.Errorf("missing passphrase: expected ErrDecryptionFailed, got %v", err)
	}
}

func TestInitialize_WeakPassphrase(t *testing.T) {
	store := newStore(t)
	_, err := Initialize(context.Background(), store, testMnemonic, []byte("short"))
	if !errors.Is(err, domain.ErrPassphraseTooWeak) {
		t.Errorf("expected ErrPassphraseTooWeak, got %v", err)
	}
}

func TestEnvelope_DoesNotStorePlaintextWhenEncrypted(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	if _, err := Initialize(ctx, store, testMnemonic, []byte("correct horse battery")); err != nil {
		t.Fatal(err)
	}
	raw, err := store.Get(ctx, RootKey)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(raw, []byte("abandon")) {
		t.Error("encrypted envelope leaks the mnemonic")
	}
}

func TestLoad_CorruptEnvelope(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, RootKey, []byte(`{"version":1,"encrypted":tr`)); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(ctx, store, nil); !errors.Is(err, domain.ErrCorruptStore) {
		t.Errorf("expected ErrCorruptStore, got %v", err)
	}
}

func TestGenerateMnemonic(t *testing.T) {
	for _, words := range []int{12, 24} {
		m, err := GenerateMnemonic(words)
		if err != nil {
			t.Fatalf("GenerateMnemonic(%d) error = %v", words, err)
		}
		if got := len(strings.Fields(m)); got != words {
			t.Errorf("GenerateMnemonic(%d) produced %d words", words, got)
		}
		if err := ValidateMnemonic(m); err != nil {
			t.Errorf("generated mnemonic invalid: %v", err)
		}
	}

	if _, err := GenerateMnemonic(13); err == nil {
		t.Error("GenerateMnemonic(13) should fail")
	}
}

func TestRoot_Zero(t *testing.T) {
	root, err := Initialize(context.Background(), newStore(t), testMnemonic, nil)
	if err != nil {
		t.Fatal(err)
	}
	before := root.Derive([]byte("x"))
	root.Zero()
	if root.Derive([]byte("x")) == before {
		t.Error("Zero should wipe the root secret")
	}
}
