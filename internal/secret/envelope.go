package secret

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"runtime"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/Mirebella/fedimint/internal/core/domain"
)

// CipherType identifies the envelope AEAD.
type CipherType string

const (
	CipherAESGCM   CipherType = "aes-gcm"
	CipherChaCha20 CipherType = "chacha20-poly1305"
)

const (
	envelopeVersion = 1

	// MinPassphraseLength is the minimum passphrase length.
	MinPassphraseLength = 8

	// SaltLength is the Argon2id salt length.
	SaltLength = 16

	kdfArgon2id = "argon2id"

	// Argon2 parameters for key derivation from passphrase.
	argon2Time    = 3
	argon2Memory  = 64 * 1024
	argon2Threads = 4
	argon2KeyLen  = 32
)

// envelopeAAD binds ciphertexts to their purpose.
var envelopeAAD = []byte("fedimint-cli/secret-root/v1")

// envelope is the persisted form of the root material.
type envelope struct {
	Version   int        `json:"version"`
	Encrypted bool       `json:"encrypted"`
	KDF       string     `json:"kdf,omitempty"`
	Salt      []byte     `json:"salt,omitempty"`
	Cipher    CipherType `json:"cipher,omitempty"`
	Payload   []byte     `json:"payload"`
}

// CheckPassphrase rejects passphrases that are set but too short. An empty
// passphrase is accepted and means the root is stored unencrypted.
func CheckPassphrase(passphrase []byte) error {
	if len(passphrase) > 0 && len(passphrase) < MinPassphraseLength {
		return domain.ErrPassphraseTooWeak.WithDetailsf("minimum %d characters", MinPassphraseLength)
	}
	return nil
}

// seal wraps plaintext. A nil passphrase stores it unencrypted.
func seal(plaintext, passphrase []byte) (*envelope, error) {
	if len(passphrase) == 0 {
		return &envelope{
			Version: envelopeVersion,
			Payload: append([]byte(nil), plaintext...),
		}, nil
	}
	if err := CheckPassphrase(passphrase); err != nil {
		return nil, err
	}

	salt := make([]byte, SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("secret: generate salt: %w", err)
	}

	key := deriveKey(passphrase, salt)
	defer Zero(key)

	cipherType := preferredCipher()
	aead, err := newAEAD(key, cipherType)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("secret: generate nonce: %w", err)
	}

	return &envelope{
		Version:   envelopeVersion,
		Encrypted: true,
		KDF:       kdfArgon2id,
		Salt:      salt,
		Cipher:    cipherType,
		Payload:   aead.Seal(nonce, nonce, plaintext, envelopeAAD),
	}, nil
}

// open returns the plaintext held by the envelope.
func (e *envelope) open(passphrase []byte) ([]byte, error) {
	if e.Version != envelopeVersion {
		return nil, domain.ErrCorruptStore.WithDetailsf("unsupported secret envelope version %d", e.Version)
	}
	if !e.Encrypted {
		return append([]byte(nil), e.Payload...), nil
	}
	if len(passphrase) == 0 {
		return nil, domain.ErrDecryptionFailed.WithDetails("passphrase required")
	}
	if e.KDF != kdfArgon2id || len(e.Salt) != SaltLength {
		return nil, domain.ErrCorruptStore.WithDetails("secret envelope has invalid kdf parameters")
	}

	key := deriveKey(passphrase, e.Salt)
	defer Zero(key)

	aead, err := newAEAD(key, e.Cipher)
	if err != nil {
		return nil, domain.ErrCorruptStore.WithCause(err)
	}
	if len(e.Payload) < aead.NonceSize()+aead.Overhead() {
		return nil, domain.ErrCorruptStore.WithDetails("secret envelope payload truncated")
	}

	nonce := e.Payload[:aead.NonceSize()]
	plaintext, err := aead.Open(nil, nonce, e.Payload[aead.NonceSize():], envelopeAAD)
	if err != nil {
		return nil, domain.ErrDecryptionFailed
	}
	return plaintext, nil
}

// deriveKey stretches a passphrase into an AEAD key with Argon2id.
func deriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
}

// preferredCipher picks AES-GCM where Go uses hardware AES, ChaCha20 otherwise.
func preferredCipher() CipherType {
	switch runtime.GOARCH {
	case "amd64", "arm64":
		return CipherAESGCM
	default:
		return CipherChaCha20
	}
}

func newAEAD(key []byte, cipherType CipherType) (cipher.AEAD, error) {
	switch cipherType {
	case CipherAESGCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		return cipher.NewGCM(block)
	case CipherChaCha20:
		return chacha20poly1305.New(key)
	default:
		return nil, errors.New("unknown cipher type: " + string(cipherType))
	}
}

// Zero overwrites b with zeros.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
