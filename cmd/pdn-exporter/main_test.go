package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(io.Discard)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

const stateJSON = `{"wave": 1, "phase": "x", "vms": {"claude-agent-01": {"vm_id": "01", "ip": "192.168.1.110", "status": "idle"}}}`

func TestRender_FleetFromFlag(t *testing.T) {
	path := writeFile(t, "state.json", stateJSON)

	out, err := run(t, "render", "fleet", "--state-file", path)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, "fleet_exporter_up 1\n") {
		t.Errorf("output missing up 1:\n%s", out)
	}
	if !strings.Contains(out, `fleet_agent_status{agent="claude-agent-01",vm_id="01",ip="192.168.1.110"} 1`) {
		t.Errorf("output missing agent sample:\n%s", out)
	}
}

func TestRender_FleetFromEnv(t *testing.T) {
	t.Setenv("PDN_EXPORTER_FLEET_STATE_FILE", filepath.Join(t.TempDir(), "missing.json"))

	out, err := run(t, "render", "fleet")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.HasSuffix(out, "fleet_exporter_up 0\n") {
		t.Errorf("got %q, want liveness 0 block", out)
	}
}

func TestRender_UnknownExporter(t *testing.T) {
	if _, err := run(t, "render", "nope"); err == nil {
		t.Fatal("expected error for unknown exporter")
	}
}

func TestLoad_FileThenEnvThenFlag(t *testing.T) {
	cfgPath := writeFile(t, "config.yaml", `
fleet:
  state_file: /from/file.json
github:
  repo: file/repo
  command_timeout: 3s
`)
	t.Setenv("PDN_EXPORTER_FLEET_STATE_FILE", "/from/env.json")
	t.Setenv("PDN_EXPORTER_GITHUB_REPO", "env/repo")
	t.Setenv("PDN_EXPORTER_GITHUB_DETAIL_LIMIT", "7")

	a := newApp()
	root := a.rootCmd()
	root.SetArgs([]string{"render", "fleet", "--config", cfgPath, "--state-file", "/from/flag.json"})
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if a.cfg.Fleet.StateFile != "/from/flag.json" {
		t.Errorf("fleet.state_file: got %q, want flag value", a.cfg.Fleet.StateFile)
	}
	if a.cfg.GitHub.Repo != "env/repo" {
		t.Errorf("github.repo: got %q, want env value", a.cfg.GitHub.Repo)
	}
	if a.cfg.GitHub.DetailLimit != 7 {
		t.Errorf("github.detail_limit: got %d, want 7", a.cfg.GitHub.DetailLimit)
	}
	if a.cfg.GitHub.CommandTimeout != 3*time.Second {
		t.Errorf("github.command_timeout: got %v, want file value 3s", a.cfg.GitHub.CommandTimeout)
	}
}

func TestLoad_InvalidOverrideFails(t *testing.T) {
	t.Setenv("PDN_EXPORTER_GITHUB_LIST_LIMIT", "0")
	if _, err := run(t, "render", "fleet"); err == nil || !strings.Contains(err.Error(), "list_limit") {
		t.Fatalf("got %v, want list_limit validation error", err)
	}
}

func TestValidateState(t *testing.T) {
	good := writeFile(t, "good.json", stateJSON)
	out, err := run(t, "validate-state", good)
	if err != nil {
		t.Fatalf("validate-state good: %v", err)
	}
	if !strings.Contains(out, ": ok") {
		t.Errorf("got %q, want ok", out)
	}

	out, err = run(t, "validate-state", "--ip-prefix", "10.0.0.", good)
	if err != nil {
		t.Fatalf("warnings must not fail validate-state: %v", err)
	}
	if !strings.Contains(out, "outside infrastructure range 10.0.0.*") {
		t.Errorf("missing ip warning:\n%s", out)
	}

	bad := writeFile(t, "bad.json", `{"agents": {"01": {}}}`)
	out, err = run(t, "validate-state", "--json", bad)
	if err == nil {
		t.Fatal("expected error for invalid state")
	}
	var findings []map[string]string
	if err := json.Unmarshal([]byte(out), &findings); err != nil {
		t.Fatalf("decode findings: %v\n%s", err, out)
	}
	if len(findings) == 0 || findings[0]["severity"] == "" {
		t.Errorf("findings: got %v", findings)
	}
}

func TestCheckContract(t *testing.T) {
	state := writeFile(t, "state.json", stateJSON)
	dash := writeFile(t, "dash.json", `{"panels": [
		{"title": "Agents", "datasource": {"uid": "prometheus"},
		 "targets": [{"expr": "fleet_agent_status{status=\"\"}", "legendFormat": "{{agent}}"}]}
	]}`)

	out, err := run(t, "check-contract", "--dashboard", dash, "--state-file", state, "--repo", "a/b", "--gh", "definitely-not-gh")
	if err == nil {
		t.Fatal("expected contract error for status matcher")
	}
	if !strings.Contains(out, "label-missing") {
		t.Errorf("table missing label-missing row:\n%s", out)
	}
}

func TestCheckContract_TruncatedFleetOutputFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, "# TYPE fleet_exporter_up gauge\nfleet_exporter_up 1\nfleet_agent_status{agent=\"claude-") //nolint:errcheck
	}))
	defer srv.Close()
	dash := writeFile(t, "dash.json", `{"panels": [{"title": "Up", "targets": [{"expr": "fleet_exporter_up"}]}]}`)

	_, err := run(t, "check-contract", "--dashboard", dash, "--fleet-url", srv.URL, "--repo", "a/b", "--gh", "definitely-not-gh")
	if err == nil || !strings.Contains(err.Error(), "1 families before the error") {
		t.Fatalf("got %v, want parse error naming the partial result", err)
	}
}
