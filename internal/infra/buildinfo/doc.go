// Package buildinfo reports the CLI's version.
//
// Values may be injected at build time:
//
//	go build -ldflags "-X github.com/Mirebella/fedimint/internal/infra/buildinfo.Version=v0.4.0"
package buildinfo
