// Package module provides the module sub-clients of a federation session.
//
// Each supported module kind (mint, wallet, ln, lnv2, meta) is one variant
// behind the uniform Client interface: a list of operations plus
// Invoke(ctx, op, args). Dispatch never needs to know which variant it
// talks to; adding a module kind means adding a variant to the table in
// module.go.
//
// Module cryptography and consensus live in the federation. Clients here
// forward opaque payloads to the guardian API, derive per-operation
// material from their isolated key, and commit local state (derivation
// counter, balance, records) in one batch after the federation confirmed
// an operation.
package module
