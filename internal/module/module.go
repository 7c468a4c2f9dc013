package module

import (
	"context"
	"log/slog"
	"sort"

	"github.com/Mirebella/fedimint/internal/core/domain"
	"github.com/Mirebella/fedimint/internal/secret"
	"github.com/Mirebella/fedimint/internal/storage"
)

// Module kinds.
const (
	KindMint   = "mint"
	KindWallet = "wallet"
	KindLN     = "ln"
	KindLNv2   = "lnv2"
	KindMeta   = "meta"
)

// API is the part of the guardian API module clients call.
type API interface {
	// RequestQuorum sends method to every guardian and decodes into out
	// the result agreed by a threshold of them.
	RequestQuorum(ctx context.Context, method string, params any, out any) error
}

// Operation describes one operation of a module.
type Operation struct {
	Name     string   `json:"name"`
	Mutating bool     `json:"mutating"`
	Summary  string   `json:"summary"`
	Args     []string `json:"args,omitempty"`
}

// Client is a module sub-client of one federation.
type Client interface {
	// Kind returns the module variant, e.g. "mint".
	Kind() string

	// Name returns the module instance name within its federation.
	Name() string

	// Operations lists the operations Invoke accepts.
	Operations() []Operation

	// Invoke runs one operation. Mutating operations commit local state
	// only after the federation confirmed them.
	Invoke(ctx context.Context, op string, args Args) (any, error)
}

// Deps is everything a module client is built from.
type Deps struct {
	Federation domain.FederationID
	Name       string
	Config     domain.ModuleConfig
	Key        secret.DerivedKey
	API        API
	Store      storage.KVStore
	Logger     *slog.Logger
}

type constructor func(Deps) Client

// variants is the closed set of supported module kinds.
var variants = map[string]constructor{
	KindMint:   newMint,
	KindWallet: newWallet,
	KindLN:     newLightningV1,
	KindLNv2:   newLightningV2,
	KindMeta:   newMeta,
}

// New builds the client for deps.Config.Kind.
func New(deps Deps) (Client, error) {
	build, ok := variants[deps.Config.Kind]
	if !ok {
		return nil, domain.ErrUnknownModule.WithDetailsf("unsupported module kind %q", deps.Config.Kind)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return build(deps), nil
}

// Kinds returns the supported module kinds in sorted order.
func Kinds() []string {
	kinds := make([]string, 0, len(variants))
	for k := range variants {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Catalog describes the operations of every supported kind, keyed by kind.
func Catalog() map[string][]Operation {
	out := make(map[string][]Operation, len(variants))
	for kind, build := range variants {
		out[kind] = build(Deps{Name: kind, Config: domain.ModuleConfig{Kind: kind}, Logger: slog.Default()}).Operations()
	}
	return out
}

// Lookup finds op among the operations of c.
func Lookup(c Client, op string) (Operation, error) {
	for _, o := range c.Operations() {
		if o.Name == op {
			return o, nil
		}
	}
	return Operation{}, domain.ErrUnknownOperation.WithDetailsf("module %s has no operation %q", c.Name(), op)
}

type handler func(ctx context.Context, args Args) (any, error)

type entry struct {
	Operation
	run handler
}

// base carries what all variants share.
type base struct {
	kind   string
	deps   Deps
	state  *state
	logger *slog.Logger
	ops    []entry
}

func newBase(kind string, deps Deps) base {
	return base{
		kind:   kind,
		deps:   deps,
		state:  newState(deps.Store, deps.Federation, deps.Name),
		logger: deps.Logger.With("module", deps.Name, "kind", kind),
	}
}

func (b *base) Kind() string { return b.kind }

func (b *base) Name() string { return b.deps.Name }

func (b *base) Operations() []Operation {
	out := make([]Operation, len(b.ops))
	for i, e := range b.ops {
		out[i] = e.Operation
	}
	return out
}

func (b *base) Invoke(ctx context.Context, op string, args Args) (any, error) {
	for _, e := range b.ops {
		if e.Name != op {
			continue
		}
		if err := args.only(e.Args...); err != nil {
			return nil, err
		}
		return e.run(ctx, args)
	}
	return nil, domain.ErrUnknownOperation.WithDetailsf("module %s has no operation %q", b.deps.Name, op)
}

// method names the guardian API endpoint of this module instance.
func (b *base) method(name string) string {
	return "module_" + b.deps.Name + "_" + name
}

// Info is the result of every module's info operation.
type Info struct {
	Federation string         `json:"federation"`
	Module     string         `json:"module"`
	Kind       string         `json:"kind"`
	Params     map[string]any `json:"params,omitempty"`
	NextIndex  uint64         `json:"next_index"`
}

func (b *base) info(ctx context.Context, _ Args) (any, error) {
	next, err := b.state.uint(ctx, counterKey)
	if err != nil {
		return nil, err
	}
	info := &Info{
		Federation: b.deps.Federation.String(),
		Module:     b.deps.Name,
		Kind:       b.kind,
		NextIndex:  next,
	}
	if len(b.deps.Config.Params) > 0 {
		if err := decodeParams(b.deps.Config.Params, &info.Params); err != nil {
			return nil, err
		}
	}
	return info, nil
}

func infoOp(b *base) entry {
	return entry{
		Operation: Operation{Name: "info", Summary: "Show module configuration and local state"},
		run:       b.info,
	}
}
