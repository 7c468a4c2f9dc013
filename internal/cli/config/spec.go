package config

import "time"

// CLIConfig is the configuration for fedimint-cli.
type CLIConfig struct {
	// DataDir is the working directory. It is fixed by flag or env before
	// the config file inside it is read.
	DataDir string `koanf:"data_dir" json:"data_dir" yaml:"data_dir"`

	// Output is the result format (json, yaml, table).
	Output string `koanf:"output" json:"output" yaml:"output"`

	// Federation is the default federation selector.
	Federation string `koanf:"federation" json:"federation,omitempty" yaml:"federation,omitempty"`

	Log     LogSection     `koanf:"log" json:"log" yaml:"log"`
	Lock    LockSection    `koanf:"lock" json:"lock" yaml:"lock"`
	Network NetworkSection `koanf:"network" json:"network" yaml:"network"`
	Metrics MetricsSection `koanf:"metrics" json:"metrics" yaml:"metrics"`
}

// LogSection configures stderr logging.
type LogSection struct {
	Level  string `koanf:"level" json:"level" yaml:"level"`
	Format string `koanf:"format" json:"format" yaml:"format"`
}

// LockSection configures the working directory lock.
type LockSection struct {
	// Wait blocks on a held lock instead of failing.
	Wait bool `koanf:"wait" json:"wait" yaml:"wait"`

	// WaitTimeout bounds Wait. Zero waits until interrupted.
	WaitTimeout time.Duration `koanf:"wait_timeout" json:"wait_timeout" yaml:"wait_timeout"`

	// StaleAfter is the age after which an orphaned lock is reclaimed.
	// Negative disables reclaim.
	StaleAfter time.Duration `koanf:"stale_after" json:"stale_after" yaml:"stale_after"`
}

// NetworkSection configures guardian requests.
type NetworkSection struct {
	RequestTimeout time.Duration `koanf:"request_timeout" json:"request_timeout" yaml:"request_timeout"`
	MaxParallel    int           `koanf:"max_parallel" json:"max_parallel" yaml:"max_parallel"`

	// RateLimit caps requests per second per guardian. Zero is unlimited.
	RateLimit float64 `koanf:"rate_limit" json:"rate_limit" yaml:"rate_limit"`

	// CAFile is a PEM bundle trusted for wss:// guardians in addition to
	// the system roots.
	CAFile string `koanf:"ca_file" json:"ca_file,omitempty" yaml:"ca_file,omitempty"`
}

// MetricsSection configures the Prometheus textfile dump.
type MetricsSection struct {
	// Textfile is written after every command when set.
	Textfile string `koanf:"textfile" json:"textfile,omitempty" yaml:"textfile,omitempty"`
}
