package command

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Mirebella/fedimint/internal/core/domain"
	"github.com/Mirebella/fedimint/internal/federation/fedtest"
	"github.com/Mirebella/fedimint/internal/storage"
)

func TestStore_StatsAndGC(t *testing.T) {
	dir := t.TempDir()
	mustRun(t, dir, append([]string{"init"}, strings.Fields(testMnemonic)...)...)

	var stats storage.Stats
	r := mustRun(t, dir, "store", "stats")
	env := decodeResult(t, r.stdout, &stats)
	if env.Operation != "store-stats" || stats.TotalSize != stats.LSMSize+stats.ValueLogSize {
		t.Errorf("stats = %+v (%+v)", stats, env)
	}

	var gc map[string]int
	r = mustRun(t, dir, "store", "gc")
	decodeResult(t, r.stdout, &gc)
	if _, ok := gc["rewritten_files"]; !ok {
		t.Errorf("gc result = %v", gc)
	}
}

func TestStore_Dump(t *testing.T) {
	fed := fedtest.New(t, "alpha", 1, nil)
	dir := t.TempDir()
	mustRun(t, dir, append([]string{"init"}, strings.Fields(testMnemonic)...)...)
	mustRun(t, dir, "join", fed.InviteCode(t))

	var entries []dumpEntry
	r := mustRun(t, dir, "store", "dump", "--values")
	decodeResult(t, r.stdout, &entries)

	keys := map[string]dumpEntry{}
	for _, e := range entries {
		keys[e.Key] = e
	}
	root, ok := keys["secret/root"]
	if !ok || root.Size == 0 {
		t.Fatalf("dump lacks secret/root: %+v", entries)
	}
	if root.Value != nil {
		t.Error("dump must never print secret material")
	}
	if strings.Contains(r.stdout, "abandon") {
		t.Error("mnemonic leaked into dump output")
	}
	cfg, ok := keys["federation/config/"+fed.ID.String()]
	if !ok || cfg.Value == nil {
		t.Errorf("federation config entry = %+v", cfg)
	}

	entries = nil
	r = mustRun(t, dir, "store", "dump", "--prefix", "federation/index/")
	decodeResult(t, r.stdout, &entries)
	if len(entries) != 1 || entries[0].Value != nil {
		t.Errorf("dump --prefix = %+v", entries)
	}
}

func TestStore_Backup(t *testing.T) {
	dir := t.TempDir()
	mustRun(t, dir, append([]string{"init"}, strings.Fields(testMnemonic)...)...)
	out := filepath.Join(t.TempDir(), "state.bak")

	mustRun(t, dir, "store", "backup", "--out", out)
	info, err := os.Stat(out)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() == 0 {
		t.Error("backup is empty")
	}

	r := runApp(t, dir, "store", "backup", "--out", out)
	if !errors.Is(r.err, domain.ErrIO) {
		t.Errorf("backup over an existing file: err = %v", r.err)
	}
}
