// Package service orchestrates one CLI invocation against a working
// directory.
//
// This package contains:
//
//   - Workdir: the per-invocation context object owning the lock, the
//     State Store, the Secret Root and the registry
//   - Dispatcher: maps module commands onto federation sessions and turns
//     every command into exactly one Outcome
//   - OperationLog: append-only record of confirmed mutating commands
//
// Nothing here is held in package-level state; callers open a Workdir,
// use it, and close it.
package service
