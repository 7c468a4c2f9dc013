// Package federation provides the Federation Client Registry.
//
// The registry joins federations from invite codes, persists their
// verified configuration, and builds one Session per federation per
// process. A Session owns the module clients of its federation, each keyed
// from the Secret Root with a federation/module tag.
//
// Guardians are reached over JSON-RPC on websockets. Reads that must be
// trusted, such as the federation config, require a threshold of
// n - floor((n-1)/3) guardians to return the same result.
//
// Invite codes are bech32m strings with the "fed" prefix wrapping a CBOR
// payload of federation id, guardian endpoints and an optional API secret.
package federation
