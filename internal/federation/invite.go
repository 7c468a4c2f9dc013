package federation

import (
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/fxamacker/cbor/v2"

	"github.com/Mirebella/fedimint/internal/core/domain"
)

// InviteHRP is the human readable part of an invite code.
const InviteHRP = "fed"

// invitePayload is the CBOR body carried inside the bech32m string.
type invitePayload struct {
	FederationID []byte                `cbor:"1,keyasint"`
	Peers        []domain.PeerEndpoint `cbor:"2,keyasint"`
	APISecret    string                `cbor:"3,keyasint,omitempty"`
}

var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	var err error
	if cborEnc, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic(err)
	}
	if cborDec, err = (cbor.DecOptions{
		DupMapKey:        cbor.DupMapKeyEnforcedAPF,
		MaxArrayElements: 1024,
	}).DecMode(); err != nil {
		panic(err)
	}
}

// EncodeInvite renders an invite as a bech32m "fed1..." string.
func EncodeInvite(invite *domain.InviteCode) (string, error) {
	if err := invite.Validate(); err != nil {
		return "", err
	}
	raw, err := cborEnc.Marshal(invitePayload{
		FederationID: invite.FederationID[:],
		Peers:        invite.Peers,
		APISecret:    invite.APISecret,
	})
	if err != nil {
		return "", domain.ErrInvalidInvite.WithCause(err)
	}
	data, err := bech32.ConvertBits(raw, 8, 5, true)
	if err != nil {
		return "", domain.ErrInvalidInvite.WithCause(err)
	}
	return bech32.EncodeM(InviteHRP, data)
}

// DecodeInvite parses a bech32m invite code. Only the bech32m checksum
// variant is accepted.
func DecodeInvite(code string) (*domain.InviteCode, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, domain.ErrInvalidInvite.WithDetails("empty invite code")
	}

	hrp, data, version, err := bech32.DecodeNoLimitWithVersion(code)
	if err != nil {
		return nil, domain.ErrInvalidInvite.WithCause(err)
	}
	if hrp != InviteHRP {
		return nil, domain.ErrInvalidInvite.WithDetailsf("unexpected prefix %q", hrp)
	}
	if version != bech32.VersionM {
		return nil, domain.ErrInvalidInvite.WithDetails("invite code is not bech32m")
	}

	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, domain.ErrInvalidInvite.WithCause(err)
	}
	var payload invitePayload
	if err := cborDec.Unmarshal(raw, &payload); err != nil {
		return nil, domain.ErrInvalidInvite.WithCause(err)
	}
	if len(payload.FederationID) != domain.FederationIDSize {
		return nil, domain.ErrInvalidInvite.WithDetailsf("federation id has %d bytes", len(payload.FederationID))
	}

	invite := &domain.InviteCode{
		Peers:     payload.Peers,
		APISecret: payload.APISecret,
	}
	copy(invite.FederationID[:], payload.FederationID)
	if err := invite.Validate(); err != nil {
		return nil, err
	}
	return invite, nil
}
