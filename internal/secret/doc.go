// Package secret manages the Secret Root of a working directory.
//
// The root is derived once from a BIP-39 mnemonic and never rotated in
// place. Every module obtains isolated key material through Derive, a pure
// HKDF expansion keyed by the root, so re-initializing from the same
// mnemonic reproduces identical module keys.
//
// At rest the mnemonic is stored in a versioned envelope, optionally
// sealed with an AEAD key stretched from a passphrase with Argon2id.
package secret
