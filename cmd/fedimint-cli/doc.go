// Package main provides the entry point for fedimint-cli.
//
// fedimint-cli is the local client of fedimint federations. It manages
// one working directory (secret root, joined federations, module state,
// operation log) and dispatches module operations to federation guardians:
//
//   - init, print-mnemonic: secret root lifecycle
//   - join, list-federations, info, decode-invite: federation membership
//   - mint, wallet, ln, lnv2, meta, module: module operations
//   - export-log, store, force-unlock: local state maintenance
//
// Usage:
//
//	fedimint-cli [global flags] command [arguments]
//	fedimint-cli --data-dir ./wallet init --generate
//	fedimint-cli join fed1...
//	fedimint-cli mint reissue notes=... --federation 15db8cb4
//
// Exit codes: 0 success, 1 input error, 2 state or lock error,
// 3 federation, network or module error.
package main
