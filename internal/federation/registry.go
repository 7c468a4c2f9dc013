package federation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Mirebella/fedimint/internal/core/domain"
	"github.com/Mirebella/fedimint/internal/module"
	"github.com/Mirebella/fedimint/internal/secret"
	"github.com/Mirebella/fedimint/internal/storage"
)

// State Store keys owned by the registry.
const (
	configPrefix = "federation/config/"
	indexPrefix  = "federation/index/"
	seqKey       = "federation/meta/seq"
)

func configKey(id domain.FederationID) []byte {
	return []byte(configPrefix + id.String())
}

func indexKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", indexPrefix, seq))
}

// Record is what the registry persists per federation.
type Record struct {
	Config    domain.FederationConfig `json:"config"`
	APISecret string                  `json:"api_secret,omitempty"`
	JoinedAt  time.Time               `json:"joined_at"`
}

// RootFunc returns the Secret Root. It is called only when a session is
// built, so commands that never build one need no passphrase.
type RootFunc func(ctx context.Context) (*secret.Root, error)

// Journal stages operation log entries for commit alongside other writes.
type Journal interface {
	Stage(entry *domain.OperationLogEntry) (storage.Write, error)
}

// Operation log names of registry mutations.
const (
	ClientModule  = "client"
	JoinOperation = "join"
)

// Options configures a Registry.
type Options struct {
	API    APIOptions
	Logger *slog.Logger

	// Journal, when set, records every new join in the same batch as the
	// federation config.
	Journal Journal
}

// Registry tracks the federations of a working directory and builds one
// Session per federation per process.
type Registry struct {
	store  storage.KVStore
	root   RootFunc
	opts   Options
	logger *slog.Logger

	connectMu sync.Mutex

	mu       sync.Mutex
	sessions map[domain.FederationID]*Session
	builds   singleflight.Group
}

// NewRegistry creates a registry over store.
func NewRegistry(store storage.KVStore, root RootFunc, opts Options) *Registry {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.API.Logger == nil {
		opts.API.Logger = opts.Logger
	}
	return &Registry{
		store:    store,
		root:     root,
		opts:     opts,
		logger:   opts.Logger.With("component", "registry"),
		sessions: make(map[domain.FederationID]*Session),
	}
}

// Connect joins the federation named by an invite code.
func (r *Registry) Connect(ctx context.Context, code string) (domain.FederationID, error) {
	invite, err := DecodeInvite(code)
	if err != nil {
		return domain.FederationID{}, err
	}
	return r.ConnectInvite(ctx, invite)
}

// ConnectInvite fetches and verifies the federation config and persists
// it. Joining an already known federation with an identical config is a
// no-op; a differing config fails with ErrConfigMismatch and leaves the
// stored config untouched.
func (r *Registry) ConnectInvite(ctx context.Context, invite *domain.InviteCode) (domain.FederationID, error) {
	id := invite.FederationID

	api := NewAPI(invite.Peers, invite.APISecret, r.opts.API)
	cfg, err := FetchConfig(ctx, api, invite)
	if err != nil {
		return id, err
	}

	r.connectMu.Lock()
	defer r.connectMu.Unlock()

	stored, err := r.Record(ctx, id)
	switch {
	case err == nil:
		if !stored.Config.Equal(cfg) {
			return id, domain.ErrConfigMismatch.WithDetailsf("federation %s", id)
		}
		r.logger.Info("federation already joined", "federation", id.Short())
		return id, nil
	case !errors.Is(err, domain.ErrUnknownFederation):
		return id, err
	}

	seq, err := r.nextSeq(ctx)
	if err != nil {
		return id, err
	}
	raw, err := storage.EncodeJSON(&Record{
		Config:    *cfg,
		APISecret: invite.APISecret,
		JoinedAt:  time.Now().UTC(),
	})
	if err != nil {
		return id, err
	}
	writes := []storage.Write{
		storage.Set(configKey(id), raw),
		storage.Set(indexKey(seq), []byte(id.String())),
		storage.Set([]byte(seqKey), []byte(strconv.FormatUint(seq+1, 10))),
	}
	if r.opts.Journal != nil {
		entry, err := r.opts.Journal.Stage(&domain.OperationLogEntry{
			FederationID: id,
			Module:       ClientModule,
			Operation:    JoinOperation,
			Outcome:      domain.OutcomeSuccess,
			Result:       map[string]any{"name": cfg.Global.Name, "guardians": cfg.PeerCount()},
		})
		if err != nil {
			return id, err
		}
		writes = append(writes, entry)
	}
	if err = r.store.Batch(ctx, writes); err != nil {
		return id, fmt.Errorf("persist federation %s: %w", id.Short(), err)
	}

	r.logger.Info("federation joined",
		"federation", id.Short(),
		"name", cfg.Global.Name,
		"guardians", cfg.PeerCount(),
		"modules", cfg.ModuleNames())
	return id, nil
}

func (r *Registry) nextSeq(ctx context.Context) (uint64, error) {
	raw, err := r.store.Get(ctx, []byte(seqKey))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	seq, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		return 0, domain.ErrCorruptStore.WithDetails(seqKey).WithCause(err)
	}
	return seq, nil
}

// Record returns the stored record of a federation.
func (r *Registry) Record(ctx context.Context, id domain.FederationID) (*Record, error) {
	var rec Record
	if err := storage.GetJSON(ctx, r.store, configKey(id), &rec); err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, domain.ErrUnknownFederation.WithDetails(id.String())
		}
		return nil, err
	}
	return &rec, nil
}

// List returns the known federations in the order they were joined.
func (r *Registry) List(ctx context.Context) ([]domain.FederationID, error) {
	var (
		ids     []domain.FederationID
		scanErr error
	)
	err := r.store.Scan(ctx, []byte(indexPrefix), func(key, value []byte) bool {
		id, err := domain.ParseFederationID(string(value))
		if err != nil {
			scanErr = domain.ErrCorruptStore.WithDetails(string(key)).WithCause(err)
			return false
		}
		ids = append(ids, id)
		return true
	})
	if err != nil {
		return nil, err
	}
	if scanErr != nil {
		return nil, scanErr
	}
	return ids, nil
}

// GetOrBuild returns the session of id, building it on first use.
// Concurrent first calls share one build. Building only reads state.
func (r *Registry) GetOrBuild(ctx context.Context, id domain.FederationID) (*Session, error) {
	if s := r.cached(id); s != nil {
		return s, nil
	}

	v, err, _ := r.builds.Do(id.String(), func() (any, error) {
		if s := r.cached(id); s != nil {
			return s, nil
		}
		s, err := r.build(ctx, id)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.sessions[id] = s
		r.mu.Unlock()
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

func (r *Registry) cached(id domain.FederationID) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[id]
}

func (r *Registry) build(ctx context.Context, id domain.FederationID) (*Session, error) {
	rec, err := r.Record(ctx, id)
	if err != nil {
		return nil, err
	}
	root, err := r.root(ctx)
	if err != nil {
		return nil, err
	}

	cfg := rec.Config
	api := NewAPI(cfg.Global.Peers, rec.APISecret, r.opts.API)
	s := &Session{
		id:      id,
		config:  &cfg,
		api:     api,
		modules: make(map[string]module.Client, len(cfg.Modules)),
	}
	for _, name := range cfg.ModuleNames() {
		mc := cfg.Modules[name]
		client, err := module.New(module.Deps{
			Federation: id,
			Name:       name,
			Config:     mc,
			Key:        root.Derive(secret.ModuleTag(id, name)),
			API:        api,
			Store:      r.store,
			Logger:     r.opts.Logger,
		})
		if errors.Is(err, domain.ErrUnknownModule) {
			r.logger.Warn("skipping unsupported module", "federation", id.Short(), "module", name, "kind", mc.Kind)
			continue
		}
		if err != nil {
			return nil, err
		}
		s.modules[name] = client
	}

	r.logger.Debug("session built", "federation", id.Short(), "modules", s.ModuleNames())
	return s, nil
}
