package config

import (
	"crypto/tls"
	"os"
	"path/filepath"
	"time"

	"github.com/Mirebella/fedimint/internal/core/domain"
	"github.com/Mirebella/fedimint/internal/federation"
	"github.com/Mirebella/fedimint/internal/infra/tlsroots"
	"github.com/Mirebella/fedimint/internal/lockfile"
)

// Default configuration values.
const (
	// FileName is the config file read from the data directory.
	FileName = "client.yaml"

	DefaultOutput    = "json"
	DefaultLogLevel  = "warn"
	DefaultLogFormat = "text"
)

// Keys lists every configuration key; each is also read from FM_<KEY>.
var Keys = []string{
	"output",
	"federation",
	"log.level",
	"log.format",
	"lock.wait",
	"lock.wait_timeout",
	"lock.stale_after",
	"network.request_timeout",
	"network.max_parallel",
	"network.rate_limit",
	"network.ca_file",
	"metrics.textfile",
}

// DefaultDataDir returns ~/.fedimint-cli, or the current directory when no
// home directory is known.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".fedimint-cli"
	}
	return filepath.Join(home, ".fedimint-cli")
}

// Path returns the config file path inside dataDir.
func Path(dataDir string) string {
	return filepath.Join(dataDir, FileName)
}

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		DataDir: DefaultDataDir(),
		Output:  DefaultOutput,
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Lock: LockSection{
			StaleAfter: lockfile.DefaultStaleAfter,
		},
		Network: NetworkSection{
			RequestTimeout: federation.DefaultRequestTimeout,
			MaxParallel:    federation.DefaultMaxParallel,
		},
	}
}

// LockOptions converts the lock section for lockfile.Acquire.
func (c *CLIConfig) LockOptions(command string) lockfile.Options {
	return lockfile.Options{
		Wait:       c.Lock.Wait,
		StaleAfter: c.Lock.StaleAfter,
		Command:    command,
	}
}

// APIOptions converts the network section for the guardian API.
func (c *CLIConfig) APIOptions() federation.APIOptions {
	return federation.APIOptions{
		RequestTimeout: c.Network.RequestTimeout,
		MaxParallel:    c.Network.MaxParallel,
		RateLimit:      c.Network.RateLimit,
	}
}

// TLSConfig loads network.ca_file. It returns nil when no file is set.
func (c *CLIConfig) TLSConfig() (*tls.Config, error) {
	tc, err := tlsroots.ClientConfig(c.Network.CAFile)
	if err != nil {
		return nil, domain.ErrInvalidArgument.WithDetails("network.ca_file").WithCause(err)
	}
	return tc, nil
}

// LockWaitTimeout is how long a waiting lock acquisition may block.
func (c *CLIConfig) LockWaitTimeout() time.Duration {
	if !c.Lock.Wait {
		return 0
	}
	return c.Lock.WaitTimeout
}
