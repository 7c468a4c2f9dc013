// Package confloader loads layered configuration with koanf.
//
// Priority (highest to lowest):
//
//  1. Overrides (explicitly set command-line flags)
//  2. Environment variables (FM_ prefix)
//  3. Configuration file (YAML)
//  4. Defaults already present in the target struct
package confloader
