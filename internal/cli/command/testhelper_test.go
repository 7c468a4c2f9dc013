package command

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

// result is the result of one CLI run.
type result struct {
	stdout string
	stderr string
	err    error
}

// runApp runs fedimint-cli on dataDir with args placed after --data-dir.
func runApp(t *testing.T, dataDir string, args ...string) result {
	t.Helper()
	app := App()
	var stdout, stderr bytes.Buffer
	app.Writer = &stdout
	app.ErrWriter = &stderr
	app.Reader = strings.NewReader("")

	full := append([]string{"fedimint-cli", "--data-dir", dataDir}, args...)
	err := app.Run(full)
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

// mustRun runs the CLI and fails the test on error.
func mustRun(t *testing.T, dataDir string, args ...string) result {
	t.Helper()
	r := runApp(t, dataDir, args...)
	if r.err != nil {
		t.Fatalf("%v: %v\nstdout: %s\nstderr: %s", args, r.err, r.stdout, r.stderr)
	}
	return r
}

// envelope mirrors the JSON Outcome.
type envelope struct {
	Federation string          `json:"federation"`
	Module     string          `json:"module"`
	Operation  string          `json:"operation"`
	Result     json.RawMessage `json:"result"`
	Error      *struct {
		Kind    string `json:"kind"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, stdout string) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal([]byte(stdout), &env); err != nil {
		t.Fatalf("stdout is not an outcome: %v\n%s", err, stdout)
	}
	return env
}

func decodeResult(t *testing.T, stdout string, v any) envelope {
	t.Helper()
	env := decodeEnvelope(t, stdout)
	if env.Error != nil {
		t.Fatalf("outcome carries error %+v", env.Error)
	}
	if err := json.Unmarshal(env.Result, v); err != nil {
		t.Fatalf("decode result: %v\n%s", err, env.Result)
	}
	return env
}
