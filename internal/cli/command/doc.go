// Package command provides the fedimint-cli command definitions.
//
// This package defines all CLI commands using urfave/cli/v2:
//
//   - root.go: App, global flags, per-invocation environment
//   - client.go: init, join, list-federations, info, decode-invite,
//     export-log, print-mnemonic, force-unlock
//   - module.go: module operations and the module catalog
//   - store.go: State Store maintenance
//   - config.go: effective configuration
//   - version.go: build information
//
// Every command writes exactly one Outcome to stdout and returns an error
// whose taxonomy kind selects the process exit code.
package command
