package config

import (
	"github.com/Mirebella/fedimint/internal/core/domain"
	"github.com/Mirebella/fedimint/internal/infra/confloader"
)

// Load builds the effective configuration for dataDir: defaults, then
// <dataDir>/client.yaml, then FM_ environment variables, then overrides
// (flags the user set explicitly, keyed like Keys).
func Load(dataDir string, overrides map[string]any) (*CLIConfig, error) {
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}
	cfg := Default()

	loader := confloader.NewLoader(
		confloader.WithEnvPrefix(confloader.DefaultEnvPrefix),
		confloader.WithEnvKeys(Keys...),
		confloader.WithOptionalConfigFile(Path(dataDir)),
		confloader.WithOverrides(overrides),
	)
	if err := loader.Load(cfg); err != nil {
		return nil, domain.ErrInvalidArgument.WithDetails("configuration").WithCause(err)
	}
	cfg.DataDir = dataDir

	if err := Verify(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
