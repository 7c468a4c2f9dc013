package module

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/Mirebella/fedimint/internal/core/domain"
)

// Args are the named arguments of one operation.
type Args map[string]string

// ParseArgs parses KEY=VALUE pairs.
func ParseArgs(pairs []string) (Args, error) {
	args := make(Args, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, domain.ErrInvalidArgument.WithDetailsf("argument %q: want KEY=VALUE", p)
		}
		if _, dup := args[k]; dup {
			return nil, domain.ErrInvalidArgument.WithDetailsf("argument %q given twice", k)
		}
		args[k] = v
	}
	return args, nil
}

// String returns a required argument.
func (a Args) String(name string) (string, error) {
	v, ok := a[name]
	if !ok || v == "" {
		return "", domain.ErrMissingArgument.WithDetails(name)
	}
	return v, nil
}

// Optional returns an argument or def when absent.
func (a Args) Optional(name, def string) string {
	if v, ok := a[name]; ok {
		return v
	}
	return def
}

// Uint64 returns a required positive integer argument.
func (a Args) Uint64(name string) (uint64, error) {
	s, err := a.String(name)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil || v == 0 {
		return 0, domain.ErrInvalidArgument.WithDetailsf("%s: want a positive integer, got %q", name, s)
	}
	return v, nil
}

// only rejects arguments outside allowed. Names in allowed may carry a
// trailing "?" marking them optional.
func (a Args) only(allowed ...string) error {
	known := make(map[string]bool, len(allowed))
	for _, name := range allowed {
		known[strings.TrimSuffix(name, "?")] = true
	}
	var unknown []string
	for k := range a {
		if !known[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return domain.ErrInvalidArgument.WithDetailsf("unknown argument(s): %s", strings.Join(unknown, ", "))
}

func decodeParams(raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return domain.ErrModule.WithDetails("decode module params").WithCause(err)
	}
	return nil
}
