// Package fedtest runs fake federations of websocket guardians for tests.
package fedtest

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/Mirebella/fedimint/internal/core/domain"
	"github.com/Mirebella/fedimint/internal/federation"
	"github.com/Mirebella/fedimint/internal/module"
)

// Handler answers one guardian API method.
type Handler func(params json.RawMessage) (any, error)

// Guardian is one fake guardian.
type Guardian struct {
	ID     domain.PeerID
	Server *httptest.Server

	mu       sync.Mutex
	config   domain.FederationConfig
	handlers map[string]Handler
	down     bool
	calls    atomic.Int64
}

// Federation is a set of fake guardians sharing one config.
type Federation struct {
	Guardians []*Guardian
	Config    domain.FederationConfig
	ID        domain.FederationID
}

// DefaultModules returns one module instance of every supported kind.
func DefaultModules() map[string]domain.ModuleConfig {
	modules := make(map[string]domain.ModuleConfig)
	for _, kind := range module.Kinds() {
		modules[kind] = domain.ModuleConfig{Kind: kind, Params: json.RawMessage(`{"network":"regtest"}`)}
	}
	return modules
}

// New starts n guardians named name. A nil modules map uses
// DefaultModules. Servers are closed when the test ends.
func New(t testing.TB, name string, n int, modules map[string]domain.ModuleConfig) *Federation {
	t.Helper()
	if modules == nil {
		modules = DefaultModules()
	}

	f := &Federation{}
	peers := make([]domain.PeerEndpoint, n)
	for i := 0; i < n; i++ {
		g := &Guardian{ID: domain.PeerID(i), handlers: make(map[string]Handler)}
		g.Server = httptest.NewServer(g)
		t.Cleanup(g.Server.Close)
		f.Guardians = append(f.Guardians, g)
		peers[i] = domain.PeerEndpoint{ID: g.ID, URL: "ws://" + strings.TrimPrefix(g.Server.URL, "http://")}
	}

	f.Config = domain.FederationConfig{
		Global: domain.GlobalConfig{
			Name:             name,
			Network:          "regtest",
			ConsensusVersion: 2,
			Peers:            peers,
		},
		Modules: modules,
	}
	id, err := f.Config.FederationID()
	if err != nil {
		t.Fatal(err)
	}
	f.ID = id
	for _, g := range f.Guardians {
		g.SetConfig(f.Config)
	}
	return f
}

// Invite returns an invite naming every guardian.
func (f *Federation) Invite() *domain.InviteCode {
	return &domain.InviteCode{FederationID: f.ID, Peers: append([]domain.PeerEndpoint(nil), f.Config.Global.Peers...)}
}

// InviteCode returns the encoded invite.
func (f *Federation) InviteCode(t testing.TB) string {
	t.Helper()
	code, err := federation.EncodeInvite(f.Invite())
	if err != nil {
		t.Fatal(err)
	}
	return code
}

// Handle registers h for method on every guardian.
func (f *Federation) Handle(method string, h Handler) {
	for _, g := range f.Guardians {
		g.Handle(method, h)
	}
}

// Calls returns the number of requests served by all guardians.
func (f *Federation) Calls() int64 {
	var n int64
	for _, g := range f.Guardians {
		n += g.calls.Load()
	}
	return n
}

// SetConfig replaces the config this guardian serves.
func (g *Guardian) SetConfig(cfg domain.FederationConfig) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.config = cfg
}

// Handle registers h for method.
func (g *Guardian) Handle(method string, h Handler) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.handlers[method] = h
}

// SetDown makes the guardian refuse connections.
func (g *Guardian) SetDown(down bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.down = down
}

func (g *Guardian) dispatch(method string, params json.RawMessage) (any, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch method {
	case federation.MethodClientConfig:
		return g.config, nil
	case federation.MethodStatus:
		return map[string]string{"status": "ok"}, nil
	}
	h, ok := g.handlers[method]
	if !ok {
		return nil, errors.New("method not found: " + method)
	}
	return h(params)
}

// ServeHTTP serves JSON-RPC requests over a websocket.
func (g *Guardian) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	down := g.down
	g.mu.Unlock()
	if down {
		http.Error(w, "guardian offline", http.StatusServiceUnavailable)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	for {
		var req struct {
			ID     uint64            `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		if err := wsjson.Read(ctx, conn, &req); err != nil {
			return
		}
		g.calls.Add(1)

		var params json.RawMessage
		if len(req.Params) > 0 {
			params = req.Params[0]
		}
		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		result, err := g.dispatch(req.Method, params)
		if err != nil {
			resp["error"] = map[string]any{"code": -32000, "message": err.Error()}
		} else {
			resp["result"] = result
		}
		if err := wsjson.Write(ctx, conn, resp); err != nil {
			return
		}
	}
}
