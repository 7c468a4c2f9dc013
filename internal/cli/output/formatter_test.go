package output

import (
	"bytes"
	"strings"
	"testing"
)

type sample struct {
	FederationID string `json:"federation_id"`
	AmountMsat   uint64 `json:"amount_msat"`
	Invoice      string `json:"invoice,omitempty"`
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"json", FormatJSON, false},
		{"YAML", FormatYAML, false},
		{" table ", FormatTable, false},
		{"", FormatJSON, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewFormatter(t *testing.T) {
	if _, ok := NewFormatter(FormatJSON).(*JSONFormatter); !ok {
		t.Error("expected JSONFormatter")
	}
	if _, ok := NewFormatter(FormatYAML).(*YAMLFormatter); !ok {
		t.Error("expected YAMLFormatter")
	}
	if _, ok := NewFormatter(FormatTable).(*TableFormatter); !ok {
		t.Error("expected TableFormatter")
	}
	if _, ok := NewFormatter("unknown").(*JSONFormatter); !ok {
		t.Error("unknown formats should fall back to JSON")
	}
}

func TestJSONFormatter_Format(t *testing.T) {
	var buf bytes.Buffer
	data := sample{FederationID: "15db", AmountMsat: 42, Invoice: "lnbcrt1<x>&y"}
	if err := (&JSONFormatter{}).Format(&buf, data); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{`"federation_id": "15db"`, `"amount_msat": 42`, `"invoice": "lnbcrt1<x>&y"`} {
		if !strings.Contains(out, want) {
			t.Errorf("Format() = %s, missing %s", out, want)
		}
	}

	buf.Reset()
	if err := (&JSONFormatter{}).Format(&buf, nil); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != "null" {
		t.Errorf("Format(nil) = %q", buf.String())
	}
}

func TestYAMLFormatter_Format(t *testing.T) {
	var buf bytes.Buffer
	data := map[string]any{
		"result": sample{FederationID: "15db", AmountMsat: 5000},
		"module": "mint",
	}
	if err := (&YAMLFormatter{}).Format(&buf, data); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{"module: mint", "result:", "  federation_id: 15db", "  amount_msat: 5000"} {
		if !strings.Contains(out, want) {
			t.Errorf("Format() =\n%s\nmissing %q", out, want)
		}
	}
	if strings.Contains(out, "invoice") {
		t.Error("omitempty fields must stay omitted")
	}
}
