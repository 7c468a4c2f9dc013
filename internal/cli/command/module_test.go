package command

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Mirebella/fedimint/internal/core/domain"
	"github.com/Mirebella/fedimint/internal/federation/fedtest"
	"github.com/Mirebella/fedimint/internal/module"
)

func TestParseModuleArgs(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		selector string
		wantFed  string
		wantOp   string
		wantArgs module.Args
		wantErr  error
	}{
		{"operation only", []string{"balance"}, "", "", "balance", module.Args{}, nil},
		{"pairs", []string{"spend", "amount=10"}, "", "", "spend", module.Args{"amount": "10"}, nil},
		{"config selector", []string{"balance"}, "15db8c", "15db8c", "balance", module.Args{}, nil},
		{"flag overrides selector", []string{"reissue", "--federation", "a3c1e2", "notes=x"}, "15db8c", "a3c1e2", "reissue", module.Args{"notes": "x"}, nil},
		{"short flag", []string{"reissue", "notes=x", "-f", "a3c1e2"}, "", "a3c1e2", "reissue", module.Args{"notes": "x"}, nil},
		{"flag with equals", []string{"balance", "--federation=a3c1e2"}, "", "a3c1e2", "balance", module.Args{}, nil},
		{"value with equals", []string{"submit", "key=welcome", "value={\"a\":1}"}, "", "", "submit", module.Args{"key": "welcome", "value": "{\"a\":1}"}, nil},
		{"no operation", nil, "", "", "", nil, domain.ErrMissingArgument},
		{"flag instead of operation", []string{"--federation", "x"}, "", "", "", nil, domain.ErrMissingArgument},
		{"dangling flag", []string{"balance", "--federation"}, "", "", "", nil, domain.ErrMissingArgument},
		{"unknown flag", []string{"balance", "--verbose"}, "", "", "", nil, domain.ErrInvalidArgument},
		{"not a pair", []string{"spend", "10"}, "", "", "", nil, domain.ErrInvalidArgument},
		{"duplicate pair", []string{"spend", "amount=1", "amount=2"}, "", "", "", nil, domain.ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := parseModuleArgs("mint", tt.args, tt.selector)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseModuleArgs() error = %v", err)
			}
			if cmd.Module != "mint" || cmd.Operation != tt.wantOp || cmd.Federation != tt.wantFed {
				t.Errorf("command = %+v", cmd)
			}
			if len(cmd.Args) != len(tt.wantArgs) {
				t.Fatalf("Args = %v, want %v", cmd.Args, tt.wantArgs)
			}
			for k, v := range tt.wantArgs {
				if cmd.Args[k] != v {
					t.Errorf("Args[%s] = %q, want %q", k, cmd.Args[k], v)
				}
			}
		})
	}
}

func TestModule_AmbiguousFederation(t *testing.T) {
	alpha := fedtest.New(t, "alpha", 4, nil)
	beta := fedtest.New(t, "beta", 4, nil)
	dir := t.TempDir()
	mustRun(t, dir, append([]string{"init"}, strings.Fields(testMnemonic)...)...)
	mustRun(t, dir, "join", alpha.InviteCode(t))
	mustRun(t, dir, "join", beta.InviteCode(t))
	before := alpha.Calls() + beta.Calls()

	r := runApp(t, dir, "mint", "balance")
	if !errors.Is(r.err, domain.ErrAmbiguousFederation) {
		t.Fatalf("expected ErrAmbiguousFederation, got %v", r.err)
	}
	if domain.ExitCode(r.err) != domain.ExitInput {
		t.Errorf("ExitCode() = %d, want %d", domain.ExitCode(r.err), domain.ExitInput)
	}
	env := decodeEnvelope(t, r.stdout)
	if env.Module != "mint" || env.Operation != "balance" || env.Error == nil || env.Error.Kind != string(domain.KindInput) {
		t.Errorf("outcome = %+v", env)
	}
	if after := alpha.Calls() + beta.Calls(); after != before {
		t.Error("an ambiguous command must not reach any guardian")
	}

	var bal module.Balance
	r = mustRun(t, dir, "mint", "balance", "--federation", beta.ID.String())
	env = decodeResult(t, r.stdout, &bal)
	if env.Federation != beta.ID.String() || bal.BalanceMsat != 0 {
		t.Errorf("outcome = %+v, balance = %+v", env, bal)
	}

	r = mustRun(t, dir, "--federation", alpha.ID.String()[:10], "module", "mint", "balance")
	env = decodeEnvelope(t, r.stdout)
	if env.Federation != alpha.ID.String() {
		t.Errorf("module command selected %s, want %s", env.Federation, alpha.ID)
	}
}

func TestModule_Errors(t *testing.T) {
	fed := fedtest.New(t, "alpha", 4, nil)
	fed.Handle("module_mint_reissue", func(json.RawMessage) (any, error) {
		return nil, errors.New("notes already spent")
	})
	dir := t.TempDir()
	mustRun(t, dir, append([]string{"init"}, strings.Fields(testMnemonic)...)...)
	mustRun(t, dir, "join", fed.InviteCode(t))

	tests := []struct {
		name     string
		args     []string
		wantErr  error
		wantExit int
	}{
		{"no federation flag value", []string{"mint", "balance", "--federation"}, domain.ErrMissingArgument, domain.ExitInput},
		{"unknown operation", []string{"mint", "melt"}, domain.ErrUnknownOperation, domain.ExitInput},
		{"unknown module", []string{"module", "stability", "info"}, domain.ErrUnknownModule, domain.ExitInput},
		{"missing module name", []string{"module"}, domain.ErrMissingArgument, domain.ExitInput},
		{"missing argument", []string{"mint", "reissue"}, domain.ErrMissingArgument, domain.ExitInput},
		{"rejected by federation", []string{"mint", "reissue", "notes=abc"}, nil, domain.ExitFederation},
		{"unknown federation", []string{"mint", "balance", "--federation", "000000000"}, nil, domain.ExitInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := runApp(t, dir, tt.args...)
			if r.err == nil {
				t.Fatal("expected an error")
			}
			if tt.wantErr != nil && !errors.Is(r.err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, r.err)
			}
			if got := domain.ExitCode(r.err); got != tt.wantExit {
				t.Errorf("ExitCode() = %d, want %d", got, tt.wantExit)
			}
			if !Reported(r.err) {
				t.Error("module errors are written as an outcome")
			}
		})
	}

	r := mustRun(t, dir, "export-log")
	var entries []domain.OperationLogEntry
	decodeResult(t, r.stdout, &entries)
	if len(entries) != 1 || entries[0].Operation != "join" {
		t.Errorf("failed operations were logged: %+v", entries)
	}
}

func TestModules(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "unused")

	var ops []moduleOperation
	r := mustRun(t, dir, "modules")
	decodeResult(t, r.stdout, &ops)

	seen := map[string]moduleOperation{}
	for _, op := range ops {
		seen[op.Module+" "+op.Operation] = op
	}
	if op, ok := seen["mint reissue"]; !ok || !op.Mutating || op.Args != "notes" {
		t.Errorf("mint reissue = %+v", op)
	}
	if op, ok := seen["meta get"]; !ok || op.Mutating {
		t.Errorf("meta get = %+v", op)
	}
	if len(ops) != 18 {
		t.Errorf("modules lists %d operations, want 18", len(ops))
	}
}
