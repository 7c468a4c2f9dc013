package federation

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Mirebella/fedimint/internal/core/domain"
)

// Guardian API methods used by this layer.
const (
	MethodClientConfig = "client_config"
	MethodStatus       = "status"
)

// Defaults for APIOptions.
const (
	DefaultRequestTimeout = 30 * time.Second
	DefaultMaxParallel    = 8

	maxMessageSize = 4 << 20
)

// APIOptions tunes the guardian API client.
type APIOptions struct {
	// RequestTimeout bounds one request to one guardian.
	// Default: 30s
	RequestTimeout time.Duration

	// MaxParallel bounds concurrent requests of one fan-out.
	// Default: 8
	MaxParallel int

	// RateLimit is the request rate allowed per guardian, per second.
	// Zero means unlimited.
	RateLimit float64

	// TLSConfig verifies wss:// guardians. Nil uses the system roots.
	TLSConfig *tls.Config

	Logger *slog.Logger
}

// RPCError is an error answered by a guardian.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("guardian error %d: %s", e.Code, e.Message)
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// PeerResponse is the answer of one guardian in a fan-out.
type PeerResponse struct {
	Peer     domain.PeerEndpoint
	Result   json.RawMessage
	Err      error
	Duration time.Duration
}

// API talks JSON-RPC over websocket to the guardians of one federation.
// It holds no connection state; every request dials its guardian.
type API struct {
	peers    []domain.PeerEndpoint
	secret   string
	opts     APIOptions
	logger   *slog.Logger
	limiters map[domain.PeerID]*rate.Limiter
	client   *http.Client
	nextID   atomic.Uint64
}

// NewAPI creates a client for the given guardians.
func NewAPI(peers []domain.PeerEndpoint, apiSecret string, opts APIOptions) *API {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = DefaultMaxParallel
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	a := &API{
		peers:  append([]domain.PeerEndpoint(nil), peers...),
		secret: apiSecret,
		opts:   opts,
		logger: opts.Logger.With("component", "guardian-api"),
	}
	if opts.TLSConfig != nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = opts.TLSConfig
		a.client = &http.Client{Transport: transport}
	}
	if opts.RateLimit > 0 {
		a.limiters = make(map[domain.PeerID]*rate.Limiter, len(peers))
		for _, p := range peers {
			a.limiters[p.ID] = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
		}
	}
	return a
}

// Peers returns the guardian endpoints.
func (a *API) Peers() []domain.PeerEndpoint {
	return append([]domain.PeerEndpoint(nil), a.peers...)
}

// WithPeers returns a client with the same secret and options for
// another set of guardians.
func (a *API) WithPeers(peers []domain.PeerEndpoint) *API {
	return NewAPI(peers, a.secret, a.opts)
}

// Threshold returns the number of agreeing guardians required.
func (a *API) Threshold() int {
	return domain.Threshold(len(a.peers))
}

// Request calls method on one guardian.
func (a *API) Request(ctx context.Context, peer domain.PeerEndpoint, method string, params any) (json.RawMessage, error) {
	if lim := a.limiters[peer.ID]; lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return nil, peerError(peer, err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, a.opts.RequestTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, peer.URL, &websocket.DialOptions{
		HTTPClient: a.client,
		HTTPHeader: a.header(),
	})
	if err != nil {
		return nil, peerError(peer, err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(maxMessageSize)

	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      a.nextID.Add(1),
		Method:  method,
		Params:  []any{},
	}
	if params != nil {
		req.Params = []any{params}
	}
	if err := wsjson.Write(ctx, conn, req); err != nil {
		return nil, peerError(peer, err)
	}

	for {
		var resp rpcResponse
		if err := wsjson.Read(ctx, conn, &resp); err != nil {
			return nil, peerError(peer, err)
		}
		if resp.ID != req.ID {
			continue
		}
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	}
}

// RequestEach calls method on every guardian concurrently, bounded by
// MaxParallel. Responses are returned in peer order.
func (a *API) RequestEach(ctx context.Context, method string, params any) []PeerResponse {
	return a.requestPeers(ctx, a.peers, method, params)
}

func (a *API) requestPeers(ctx context.Context, peers []domain.PeerEndpoint, method string, params any) []PeerResponse {
	out := make([]PeerResponse, len(peers))

	var g errgroup.Group
	g.SetLimit(a.opts.MaxParallel)
	for i, peer := range peers {
		g.Go(func() error {
			start := time.Now()
			res, err := a.Request(ctx, peer, method, params)
			out[i] = PeerResponse{Peer: peer, Result: res, Err: err, Duration: time.Since(start)}
			a.logger.Debug("guardian request",
				"method", method,
				"peer", peer.ID,
				"duration", out[i].Duration,
				"error", err)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// RequestQuorum calls method on every guardian and decodes into out the
// result returned by at least Threshold of them.
func (a *API) RequestQuorum(ctx context.Context, method string, params any, out any) error {
	responses := a.RequestEach(ctx, method, params)
	raw, err := quorum(responses, a.Threshold(), normalizeJSON,
		domain.ErrNetwork.WithDetailsf("guardians disagree on %s", method))
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return domain.ErrNetwork.WithDetailsf("decode %s result", method).WithCause(err)
	}
	return nil
}

// quorum returns the result shared by at least threshold responses. key
// maps a raw result to its comparison form. When enough guardians
// answered but no result reached the threshold, disagree is returned.
func quorum(responses []PeerResponse, threshold int, key func(json.RawMessage) (string, error), disagree error) (json.RawMessage, error) {
	counts := make(map[string]int)
	rpcErrs := make(map[string]int)
	var failures []error

	for _, r := range responses {
		if r.Err != nil {
			failures = append(failures, r.Err)
			var rpcErr *RPCError
			if errors.As(r.Err, &rpcErr) {
				rpcErrs[rpcErr.Message]++
				if rpcErrs[rpcErr.Message] >= threshold {
					return nil, rpcErr
				}
			}
			continue
		}
		k, err := key(r.Result)
		if err != nil {
			failures = append(failures, peerError(r.Peer, err))
			continue
		}
		counts[k]++
		if counts[k] >= threshold {
			return r.Result, nil
		}
	}

	answered := len(responses) - len(failures)
	if answered < threshold {
		return nil, domain.ErrNetwork.
			WithDetailsf("%d of %d guardians answered, %d required", answered, len(responses), threshold).
			WithCause(errors.Join(failures...))
	}
	return nil, disagree
}

func normalizeJSON(raw json.RawMessage) (string, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}
	out, err := json.Marshal(v)
	return string(out), err
}

func (a *API) header() http.Header {
	h := http.Header{}
	h.Set("User-Agent", "fedimint-cli")
	if a.secret != "" {
		h.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("fedimint:"+a.secret)))
	}
	return h
}

func peerError(peer domain.PeerEndpoint, err error) error {
	return domain.ErrNetwork.WithDetailsf("guardian %d at %s", peer.ID, peer.URL).WithCause(err)
}

// PeerStatus is the reachability of one guardian.
type PeerStatus struct {
	Peer      domain.PeerID `json:"peer"`
	URL       string        `json:"url"`
	Online    bool          `json:"online"`
	LatencyMS int64         `json:"latency_ms"`
	Error     string        `json:"error,omitempty"`
}

// Status probes every guardian.
func (a *API) Status(ctx context.Context) []PeerStatus {
	responses := a.RequestEach(ctx, MethodStatus, nil)
	out := make([]PeerStatus, len(responses))
	for i, r := range responses {
		out[i] = PeerStatus{
			Peer:      r.Peer.ID,
			URL:       r.Peer.URL,
			Online:    r.Err == nil,
			LatencyMS: r.Duration.Milliseconds(),
		}
		if r.Err != nil {
			out[i].Error = r.Err.Error()
		}
	}
	return out
}
