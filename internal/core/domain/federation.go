package domain

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// FederationIDSize is the byte length of a FederationID.
const FederationIDSize = sha256.Size

// FederationID names one federation. It is the SHA-256 hash of the
// canonical encoding of the federation's consensus section.
type FederationID [FederationIDSize]byte

// String returns the lowercase hex form.
func (id FederationID) String() string {
	return hex.EncodeToString(id[:])
}

// Short returns an abbreviated form for tables and logs.
func (id FederationID) Short() string {
	return id.String()[:12]
}

// IsZero reports whether id is unset.
func (id FederationID) IsZero() bool {
	return id == FederationID{}
}

// MarshalText implements encoding.TextMarshaler.
func (id FederationID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *FederationID) UnmarshalText(text []byte) error {
	parsed, err := ParseFederationID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseFederationID parses the hex form of a FederationID.
func ParseFederationID(s string) (FederationID, error) {
	var id FederationID
	raw, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil || len(raw) != FederationIDSize {
		return id, ErrInvalidArgument.WithDetailsf("federation id %q: want %d hex bytes", s, FederationIDSize)
	}
	copy(id[:], raw)
	return id, nil
}

// PeerID identifies a guardian within a federation.
type PeerID uint16

// PeerEndpoint is a guardian API endpoint.
type PeerEndpoint struct {
	ID  PeerID `json:"id" cbor:"1,keyasint"`
	URL string `json:"url" cbor:"2,keyasint"`
}

// GlobalConfig is the consensus section of a federation config. Its
// canonical encoding determines the FederationID.
type GlobalConfig struct {
	Name             string         `json:"name"`
	Network          string         `json:"network"`
	ConsensusVersion uint32         `json:"consensus_version"`
	Peers            []PeerEndpoint `json:"peers"`
}

// ModuleConfig is the client-side configuration of one module instance.
// Params are opaque to this layer.
type ModuleConfig struct {
	Kind   string          `json:"kind"`
	Params json.RawMessage `json:"params,omitempty"`
}

// FederationConfig is the immutable configuration of one federation.
type FederationConfig struct {
	Global  GlobalConfig            `json:"global"`
	Modules map[string]ModuleConfig `json:"modules"`
}

// Canonical returns the deterministic encoding used for hashing and for
// comparing configs. Peers are ordered by id; map keys are sorted by
// encoding/json.
func (c *FederationConfig) Canonical() ([]byte, error) {
	cp := *c
	cp.Global.Peers = append([]PeerEndpoint(nil), c.Global.Peers...)
	sort.Slice(cp.Global.Peers, func(i, j int) bool {
		return cp.Global.Peers[i].ID < cp.Global.Peers[j].ID
	})
	return json.Marshal(&cp)
}

// FederationID computes the id from the consensus section.
func (c *FederationConfig) FederationID() (FederationID, error) {
	global := c.Global
	global.Peers = append([]PeerEndpoint(nil), c.Global.Peers...)
	sort.Slice(global.Peers, func(i, j int) bool {
		return global.Peers[i].ID < global.Peers[j].ID
	})
	raw, err := json.Marshal(&global)
	if err != nil {
		return FederationID{}, fmt.Errorf("encode global config: %w", err)
	}
	return sha256.Sum256(raw), nil
}

// Equal reports whether both configs have identical canonical encodings.
func (c *FederationConfig) Equal(other *FederationConfig) bool {
	a, err := c.Canonical()
	if err != nil {
		return false
	}
	b, err := other.Canonical()
	if err != nil {
		return false
	}
	return bytes.Equal(a, b)
}

// PeerCount returns the number of guardians.
func (c *FederationConfig) PeerCount() int {
	return len(c.Global.Peers)
}

// MaxFaulty returns the number of faulty guardians tolerated (n > 3f).
func (c *FederationConfig) MaxFaulty() int {
	return MaxFaulty(c.PeerCount())
}

// Threshold returns the number of matching guardian responses required.
func (c *FederationConfig) Threshold() int {
	return Threshold(c.PeerCount())
}

// ModuleNames returns the configured module instance names in sorted order.
func (c *FederationConfig) ModuleNames() []string {
	names := make([]string, 0, len(c.Modules))
	for name := range c.Modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks structural invariants of the config.
func (c *FederationConfig) Validate() error {
	if len(c.Global.Peers) == 0 {
		return ErrUntrustedConfig.WithDetails("config lists no guardians")
	}
	seen := make(map[PeerID]bool, len(c.Global.Peers))
	for _, p := range c.Global.Peers {
		if seen[p.ID] {
			return ErrUntrustedConfig.WithDetailsf("duplicate guardian id %d", p.ID)
		}
		seen[p.ID] = true
		if p.URL == "" {
			return ErrUntrustedConfig.WithDetailsf("guardian %d has no endpoint", p.ID)
		}
	}
	for name, m := range c.Modules {
		if m.Kind == "" {
			return ErrUntrustedConfig.WithDetailsf("module %q has no kind", name)
		}
	}
	return nil
}

// MaxFaulty returns f = floor((n-1)/3) for n guardians.
func MaxFaulty(n int) int {
	if n <= 0 {
		return 0
	}
	return (n - 1) / 3
}

// Threshold returns n - f, the number of agreeing guardians needed.
func Threshold(n int) int {
	return n - MaxFaulty(n)
}

// InviteCode is the decoded form of a federation invite.
type InviteCode struct {
	FederationID FederationID   `json:"federation_id"`
	Peers        []PeerEndpoint `json:"peers"`
	APISecret    string         `json:"api_secret,omitempty"`
}

// Validate checks the invite carries enough information to bootstrap.
func (i *InviteCode) Validate() error {
	if i.FederationID.IsZero() {
		return ErrInvalidInvite.WithDetails("missing federation id")
	}
	if len(i.Peers) == 0 {
		return ErrInvalidInvite.WithDetails("no guardian endpoints")
	}
	for _, p := range i.Peers {
		if p.URL == "" {
			return ErrInvalidInvite.WithDetailsf("guardian %d has no endpoint", p.ID)
		}
	}
	return nil
}
