package federation

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/Mirebella/fedimint/internal/core/domain"
)

// FetchConfig downloads the config of the federation named by invite and
// verifies it in two steps.
//
// The invite's guardians are asked first. Any answer whose consensus
// section hashes to the invite's federation id authenticates the guardian
// set, which must include every guardian the invite names. The whole
// config, modules included, is then accepted only when Threshold of that
// guardian set return it. Answers from the first step are reused.
func FetchConfig(ctx context.Context, api *API, invite *domain.InviteCode) (*domain.FederationConfig, error) {
	// 1. Authenticate the guardian set against the invite
	first := api.RequestEach(ctx, MethodClientConfig, nil)
	global, err := authenticatedGlobal(first, invite.FederationID)
	if err != nil {
		return nil, err
	}
	if err := checkInvitePeers(invite.Peers, global.Peers); err != nil {
		return nil, err
	}

	// 2. Quorum over the federation's own guardians
	answered := make(map[domain.PeerID]PeerResponse, len(first))
	for _, r := range first {
		answered[r.Peer.ID] = r
	}
	var missing []domain.PeerEndpoint
	for _, p := range global.Peers {
		if _, ok := answered[p.ID]; !ok {
			missing = append(missing, p)
		}
	}
	fedAPI := api.WithPeers(global.Peers)
	for _, r := range fedAPI.requestPeers(ctx, missing, MethodClientConfig, nil) {
		answered[r.Peer.ID] = r
	}
	responses := make([]PeerResponse, 0, len(global.Peers))
	for _, p := range global.Peers {
		responses = append(responses, answered[p.ID])
	}

	raw, err := quorum(responses, fedAPI.Threshold(), canonicalConfig,
		domain.ErrUntrustedConfig.WithDetails("guardians returned conflicting configs"))
	if err != nil {
		return nil, err
	}
	cfg, err := verifyConfig(raw, invite.FederationID)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// authenticatedGlobal returns the consensus section of the first answer
// that hashes to id.
func authenticatedGlobal(responses []PeerResponse, id domain.FederationID) (*domain.GlobalConfig, error) {
	var failures []error
	var lastErr error
	for _, r := range responses {
		if r.Err != nil {
			failures = append(failures, r.Err)
			continue
		}
		cfg, err := verifyConfig(r.Result, id)
		if err != nil {
			lastErr = err
			continue
		}
		return &cfg.Global, nil
	}
	if lastErr == nil {
		return nil, domain.ErrNetwork.
			WithDetailsf("none of %d invite guardians answered", len(responses)).
			WithCause(errors.Join(failures...))
	}
	return nil, lastErr
}

// checkInvitePeers rejects invites naming a guardian the federation does
// not list at the same endpoint.
func checkInvitePeers(invited, peers []domain.PeerEndpoint) error {
	urls := make(map[domain.PeerID]string, len(peers))
	for _, p := range peers {
		urls[p.ID] = p.URL
	}
	for _, p := range invited {
		if url, ok := urls[p.ID]; !ok || url != p.URL {
			return domain.ErrUntrustedConfig.WithDetailsf(
				"invite guardian %d at %s is not part of the federation", p.ID, p.URL)
		}
	}
	return nil
}

func verifyConfig(raw json.RawMessage, want domain.FederationID) (*domain.FederationConfig, error) {
	var cfg domain.FederationConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, domain.ErrUntrustedConfig.WithCause(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	id, err := cfg.FederationID()
	if err != nil {
		return nil, domain.ErrUntrustedConfig.WithCause(err)
	}
	if id != want {
		return nil, domain.ErrUntrustedConfig.WithDetailsf(
			"config hashes to %s, invite names %s", id.Short(), want.Short())
	}
	return &cfg, nil
}

func canonicalConfig(raw json.RawMessage) (string, error) {
	var cfg domain.FederationConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return "", err
	}
	out, err := cfg.Canonical()
	return string(out), err
}
