package confloader

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the prefix of CLI environment variables.
const DefaultEnvPrefix = "FM_"

// Loader layers configuration sources onto a struct that already holds
// the defaults.
type Loader struct {
	k *koanf.Koanf

	envPrefix    string
	envKeys      map[string]string
	filePath     string
	fileOptional bool
	overrides    map[string]any
}

// Option configures a Loader.
type Option func(*Loader)

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) { l.envPrefix = prefix }
}

// WithEnvKeys restricts environment loading to the given dotted keys.
// FM_LOCK_STALE_AFTER then maps onto lock.stale_after rather than
// lock.stale.after, and unrelated FM_ variables are ignored.
func WithEnvKeys(keys ...string) Option {
	return func(l *Loader) {
		l.envKeys = make(map[string]string, len(keys))
		for _, k := range keys {
			l.envKeys[strings.ToUpper(strings.ReplaceAll(k, ".", "_"))] = k
		}
	}
}

// WithConfigFile sets a YAML file that must exist.
func WithConfigFile(path string) Option {
	return func(l *Loader) { l.filePath, l.fileOptional = path, false }
}

// WithOptionalConfigFile sets a YAML file that may be absent.
func WithOptionalConfigFile(path string) Option {
	return func(l *Loader) { l.filePath, l.fileOptional = path, true }
}

// WithOverrides sets values that win over every other source, typically
// the command-line flags the user set. Keys are dotted paths.
func WithOverrides(values map[string]any) Option {
	return func(l *Loader) { l.overrides = values }
}

// NewLoader creates a loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		k:         koanf.New("."),
		envPrefix: DefaultEnvPrefix,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads file, environment and overrides, in that order, and
// unmarshals the merged result into target. Keys no source sets keep the
// value target already holds.
func (l *Loader) Load(target any) error {
	steps := []struct {
		name string
		run  func() error
	}{
		{"config file", l.loadConfigFile},
		{"env", l.LoadEnv},
		{"overrides", func() error { return l.LoadMap(l.overrides) }},
	}
	for _, s := range steps {
		if err := s.run(); err != nil {
			return fmt.Errorf("load %s: %w", s.name, err)
		}
	}
	if err := l.k.Unmarshal("", target); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}

func (l *Loader) loadConfigFile() error {
	if l.filePath == "" {
		return nil
	}
	if l.fileOptional {
		if _, err := os.Stat(l.filePath); errors.Is(err, fs.ErrNotExist) {
			return nil
		}
	}
	return l.LoadFile(l.filePath)
}

// LoadFile merges a YAML file. An empty path is a no-op.
func (l *Loader) LoadFile(path string) error {
	if path == "" {
		return nil
	}
	if err := l.k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// LoadEnv merges prefixed environment variables. Without WithEnvKeys,
// PREFIX_SECTION_KEY maps onto section.key (FM_LOG_LEVEL is log.level).
func (l *Loader) LoadEnv() error {
	return l.k.Load(env.Provider(l.envPrefix, ".", l.envKey), nil)
}

func (l *Loader) envKey(name string) string {
	name = strings.TrimPrefix(name, l.envPrefix)
	if l.envKeys != nil {
		return l.envKeys[name]
	}
	return strings.ReplaceAll(strings.ToLower(name), "_", ".")
}

// LoadMap merges a map of dotted keys.
func (l *Loader) LoadMap(data map[string]any) error {
	if len(data) == 0 {
		return nil
	}
	return l.k.Load(mapProvider(data), nil)
}

// Get returns the merged value of key, or nil.
func (l *Loader) Get(key string) any {
	return l.k.Get(key)
}
