// Package output renders command results.
//
//   - formatter.go: Formatter interface and factory
//   - json.go: JSON (the default, for scripts)
//   - yaml.go: YAML via gopkg.in/yaml.v3
//   - table.go: aligned text tables for people
//
// All formats use the json field names of the rendered values.
package output
