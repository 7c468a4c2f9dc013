package domain

import (
	"encoding/json"
	"testing"
)

func sampleConfig() *FederationConfig {
	return &FederationConfig{
		Global: GlobalConfig{
			Name:             "test-fed",
			Network:          "regtest",
			ConsensusVersion: 2,
			Peers: []PeerEndpoint{
				{ID: 1, URL: "ws://guardian-1"},
				{ID: 0, URL: "ws://guardian-0"},
				{ID: 3, URL: "ws://guardian-3"},
				{ID: 2, URL: "ws://guardian-2"},
			},
		},
		Modules: map[string]ModuleConfig{
			"mint": {Kind: "mint", Params: json.RawMessage(`{"denominations":[1,2,4]}`)},
			"meta": {Kind: "meta"},
		},
	}
}

func TestFederationID_PeerOrderIndependent(t *testing.T) {
	a := sampleConfig()
	b := sampleConfig()
	b.Global.Peers[0], b.Global.Peers[3] = b.Global.Peers[3], b.Global.Peers[0]

	idA, err := a.FederationID()
	if err != nil {
		t.Fatal(err)
	}
	idB, err := b.FederationID()
	if err != nil {
		t.Fatal(err)
	}
	if idA != idB {
		t.Error("federation id should not depend on peer order")
	}
	if !a.Equal(b) {
		t.Error("configs differing only in peer order should be equal")
	}
}

func TestFederationID_IgnoresModules(t *testing.T) {
	a := sampleConfig()
	b := sampleConfig()
	b.Modules["mint"] = ModuleConfig{Kind: "mint", Params: json.RawMessage(`{"denominations":[1]}`)}

	idA, _ := a.FederationID()
	idB, _ := b.FederationID()
	if idA != idB {
		t.Error("module section must not change the federation id")
	}
	if a.Equal(b) {
		t.Error("configs with different module params must not be equal")
	}
}

func TestParseFederationID(t *testing.T) {
	id, _ := sampleConfig().FederationID()

	parsed, err := ParseFederationID(id.String())
	if err != nil {
		t.Fatalf("ParseFederationID() error = %v", err)
	}
	if parsed != id {
		t.Error("parsed id differs")
	}

	for _, bad := range []string{"", "zz", id.String()[:10]} {
		if _, err := ParseFederationID(bad); err == nil {
			t.Errorf("ParseFederationID(%q) should fail", bad)
		}
	}
}

func TestFederationID_JSON(t *testing.T) {
	id, _ := sampleConfig().FederationID()
	raw, err := json.Marshal(map[string]FederationID{"id": id})
	if err != nil {
		t.Fatal(err)
	}
	var out map[string]FederationID
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatal(err)
	}
	if out["id"] != id {
		t.Error("federation id should survive JSON as hex text")
	}
}

func TestThreshold(t *testing.T) {
	tests := []struct {
		n, faulty, threshold int
	}{
		{1, 0, 1},
		{3, 0, 3},
		{4, 1, 3},
		{7, 2, 5},
		{10, 3, 7},
	}
	for _, tt := range tests {
		if got := MaxFaulty(tt.n); got != tt.faulty {
			t.Errorf("MaxFaulty(%d) = %d, want %d", tt.n, got, tt.faulty)
		}
		if got := Threshold(tt.n); got != tt.threshold {
			t.Errorf("Threshold(%d) = %d, want %d", tt.n, got, tt.threshold)
		}
	}
}

func TestFederationConfig_Validate(t *testing.T) {
	if err := sampleConfig().Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	dup := sampleConfig()
	dup.Global.Peers[1].ID = dup.Global.Peers[0].ID
	if err := dup.Validate(); !IsDomainError(err, ErrUntrustedConfig.Code) {
		t.Errorf("duplicate peer: got %v", err)
	}

	empty := sampleConfig()
	empty.Global.Peers = nil
	if err := empty.Validate(); err == nil {
		t.Error("config without guardians should fail")
	}
}

func TestInviteCode_Validate(t *testing.T) {
	id, _ := sampleConfig().FederationID()
	ok := &InviteCode{FederationID: id, Peers: []PeerEndpoint{{ID: 0, URL: "ws://g0"}}}
	if err := ok.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if err := (&InviteCode{Peers: ok.Peers}).Validate(); err == nil {
		t.Error("missing federation id should fail")
	}
	if err := (&InviteCode{FederationID: id}).Validate(); err == nil {
		t.Error("missing peers should fail")
	}
}
