// Package config defines the CLI configuration.
//
//   - spec.go: CLIConfig struct (<data-dir>/client.yaml)
//   - default.go: defaults and conversions into component options
//   - loader.go: layering of file, FM_ environment and flags
//   - verify.go: validation
package config
