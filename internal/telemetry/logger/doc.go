// Package logger builds the CLI's structured logger.
//
// It wraps log/slog with a text or JSON handler on stderr and masks
// sensitive attributes before they are written:
//
//   - logger.go: handler selection and level parsing
//   - redact.go: mnemonic, passphrase and invite code redaction
//
// Callers receive a plain *slog.Logger and pass it down explicitly.
package logger
