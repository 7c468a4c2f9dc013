// Package tlsroots builds the trust roots used to dial wss:// guardians.
//
// Federations run behind private CAs in test and staging setups; a PEM
// bundle named by network.ca_file is added on top of the system roots.
package tlsroots
