// Package domain defines the core domain models for the fedimint client CLI.
//
// Domain models are pure value objects without any IO dependencies or
// framework coupling. This package contains:
//
//   - FederationID / FederationConfig: the identity and immutable
//     configuration of one federation
//   - InviteCode: the decoded bootstrap reference for a federation
//   - OperationLogEntry: the append-only audit record of a command
//   - Errors: the error taxonomy shared by every layer
package domain
