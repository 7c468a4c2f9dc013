package federation

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/Mirebella/fedimint/internal/core/domain"
	"github.com/Mirebella/fedimint/internal/module"
)

// Session is the live client of one federation within one process.
type Session struct {
	id      domain.FederationID
	config  *domain.FederationConfig
	api     *API
	modules map[string]module.Client

	// mu serializes operations on this federation.
	mu sync.Mutex
}

// ID returns the federation id.
func (s *Session) ID() domain.FederationID {
	return s.id
}

// Config returns the stored federation config.
func (s *Session) Config() *domain.FederationConfig {
	return s.config
}

// API returns the guardian API client.
func (s *Session) API() *API {
	return s.api
}

// ModuleNames returns the names of the available modules in sorted order.
func (s *Session) ModuleNames() []string {
	names := make([]string, 0, len(s.modules))
	for name := range s.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Module returns the module client registered under name.
func (s *Session) Module(name string) (module.Client, error) {
	c, ok := s.modules[name]
	if !ok {
		return nil, domain.ErrUnknownModule.WithDetailsf("%q (available: %s)", name, strings.Join(s.ModuleNames(), ", "))
	}
	return c, nil
}

// Invoke runs op on the named module while holding the session lock.
func (s *Session) Invoke(ctx context.Context, name, op string, args module.Args) (any, error) {
	c, err := s.Module(name)
	if err != nil {
		return nil, err
	}
	if _, err := module.Lookup(c, op); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return c.Invoke(ctx, op, args)
}
