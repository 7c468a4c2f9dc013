package config

import (
	"github.com/Mirebella/fedimint/internal/core/domain"
	"github.com/Mirebella/fedimint/internal/telemetry/logger"
)

// Verify validates the configuration.
func Verify(cfg *CLIConfig) error {
	switch cfg.Output {
	case "json", "yaml", "table":
	default:
		return domain.ErrInvalidArgument.WithDetailsf("output %q: want json, yaml or table", cfg.Output)
	}
	if _, err := logger.ParseLevel(cfg.Log.Level); err != nil {
		return domain.ErrInvalidArgument.WithDetails("log.level").WithCause(err)
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		return domain.ErrInvalidArgument.WithDetailsf("log.format %q: want text or json", cfg.Log.Format)
	}
	if cfg.Lock.WaitTimeout < 0 {
		return domain.ErrInvalidArgument.WithDetails("lock.wait_timeout must not be negative")
	}
	if cfg.Network.RequestTimeout <= 0 {
		return domain.ErrInvalidArgument.WithDetails("network.request_timeout must be positive")
	}
	if cfg.Network.MaxParallel < 1 {
		return domain.ErrInvalidArgument.WithDetails("network.max_parallel must be at least 1")
	}
	if cfg.Network.RateLimit < 0 {
		return domain.ErrInvalidArgument.WithDetails("network.rate_limit must not be negative")
	}
	return nil
}
