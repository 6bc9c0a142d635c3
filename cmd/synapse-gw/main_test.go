package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/synapse-gw/internal/config"
	"github.com/mattjoyce/synapse-gw/internal/history"
	"github.com/mattjoyce/synapse-gw/internal/storage"
)

func captureOutputWithExitCode(t *testing.T, run func() int) (int, string, string) {
	t.Helper()

	oldStdout := os.Stdout
	oldStderr := os.Stderr

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe stdout failed: %v", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe stderr failed: %v", err)
	}

	os.Stdout = stdoutW
	os.Stderr = stderrW

	code := run()

	_ = stdoutW.Close()
	_ = stderrW.Close()
	os.Stdout = oldStdout
	os.Stderr = oldStderr

	stdoutBytes, _ := io.ReadAll(stdoutR)
	stderrBytes, _ := io.ReadAll(stderrR)

	_ = stdoutR.Close()
	_ = stderrR.Close()

	return code, string(stdoutBytes), string(stderrBytes)
}

func captureRun(t *testing.T, cmd string, args ...string) (int, string, string) {
	t.Helper()
	return captureOutputWithExitCode(t, func() int {
		return run(cmd, args)
	})
}

func writeTestConfig(t *testing.T, extra string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	configYAML := `
service:
  lock_path: ` + filepath.Join(dir, "synapse-gw.lock") + `
api:
  listen: 127.0.0.1:0
  auth:
    api_key: secret-admin-key
    tokens:
      - token: writer-token
        caller: validator-a
        scopes: ["query:rw", "tasks:ro"]
storage:
  enabled: true
  path: ` + filepath.Join(dir, "history.db") + `
metrics:
  enabled: true
  path: /metrics
  namespace: test
` + extra
	require.NoError(t, os.WriteFile(configPath, []byte(configYAML), 0o600))
	return dir, configPath
}

func TestRunVersion(t *testing.T) {
	code, stdout, _ := captureRun(t, "version")
	assert.Equal(t, 0, code)
	assert.Equal(t, "synapse-gw version "+version+"\n", stdout)
}

func TestRunUnknownCommand(t *testing.T) {
	code, stdout, stderr := captureRun(t, "frobnicate")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Unknown command: frobnicate")
	assert.Contains(t, stdout, "Usage:")
}

func TestNounHelp(t *testing.T) {
	code, stdout, _ := captureRun(t, "query", "help")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "inspect, list, prune")

	code, _, stderr := captureRun(t, "config")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Actions: check, lock, show")

	code, _, stderr = captureRun(t, "system", "stop")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Unknown system action: stop")
}

func TestConfigCheck_PrintsFingerprint(t *testing.T) {
	_, configPath := writeTestConfig(t, "")

	want, err := config.ComputeBlake3Hash(configPath)
	require.NoError(t, err)

	code, stdout, stderr := captureRun(t, "config", "check", "--config", configPath)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Configuration OK")
	assert.Contains(t, stdout, "Fingerprint (blake3): "+want)
	assert.Contains(t, stdout, "not locked")

	// Root alias and directory form.
	code, stdout, _ = captureRun(t, "check", "--config", filepath.Dir(configPath), "--json")
	require.Equal(t, 0, code)
	var report checkReport
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.True(t, report.Valid)
	assert.Equal(t, want, report.Fingerprint)
}

func TestConfigCheck_StrictWarnings(t *testing.T) {
	_, configPath := writeTestConfig(t, "admission:\n  allow_unknown: false\n")

	code, stdout, _ := captureRun(t, "config", "check", "--config", configPath)
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "Warning: admission.allow_unknown is false")

	code, _, _ = captureRun(t, "config", "check", "--config", configPath, "--strict")
	assert.Equal(t, 2, code)
}

func TestConfigCheck_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("api:\n  listen: ''\n"), 0o600))

	code, _, stderr := captureRun(t, "config", "check", "--config", configPath)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Config load error")
}

func TestConfigLock_DetectsTampering(t *testing.T) {
	_, configPath := writeTestConfig(t, "")

	code, stdout, stderr := captureRun(t, "config", "lock", "--config", configPath, "--dry-run")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "DRY-RUN")
	_, err := os.Stat(config.ChecksumPath(configPath))
	assert.True(t, os.IsNotExist(err))

	code, stdout, stderr = captureRun(t, "config", "lock", "--config", configPath)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Successfully locked configuration")

	code, stdout, _ = captureRun(t, "config", "check", "--config", configPath)
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "locked, checksum verified")

	f, err := os.OpenFile(configPath, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.WriteString("\nscheduler:\n  max_concurrent: 2\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	code, _, stderr = captureRun(t, "config", "check", "--config", configPath)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "hash mismatch")

	// Re-locking authorizes the edit.
	code, _, _ = captureRun(t, "config", "lock", "--config", configPath)
	require.Equal(t, 0, code)
	code, _, _ = captureRun(t, "config", "check", "--config", configPath)
	assert.Equal(t, 0, code)
}

func TestConfigLock_RefusesInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("scheduler:\n  max_concurrent: 0\n"), 0o600))

	code, _, stderr := captureRun(t, "config", "lock", "--config", configPath)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Refusing to lock")
	_, err := os.Stat(config.ChecksumPath(configPath))
	assert.True(t, os.IsNotExist(err))
}

func TestConfigShow_RedactsSecrets(t *testing.T) {
	_, configPath := writeTestConfig(t, "")

	code, stdout, stderr := captureRun(t, "config", "show", "--config", configPath)
	require.Equal(t, 0, code, stderr)
	assert.NotContains(t, stdout, "secret-admin-key")
	assert.NotContains(t, stdout, "writer-token")
	assert.Contains(t, stdout, redacted)
	assert.Contains(t, stdout, "validator-a")
}

func seedHistory(t *testing.T, dbPath string) {
	t.Helper()
	ctx := context.Background()
	db, err := storage.OpenSQLite(ctx, dbPath)
	require.NoError(t, err)
	defer db.Close()

	store := history.New(db)
	require.NoError(t, store.Begin(ctx, history.Record{
		ID:       "q-1",
		Task:     "tts_clone",
		Engine:   "StyleTTS2",
		Caller:   "validator-a",
		Priority: 2.5,
	}))
	msg := "Some error from the generation :/"
	require.NoError(t, store.Transition(ctx, "q-1", history.StateFailed, history.Update{ErrorMessage: &msg}))

	old := time.Now().Add(-72 * time.Hour)
	require.NoError(t, store.Begin(ctx, history.Record{
		ID:        "q-old",
		Task:      "available_tasks",
		Caller:    "validator-b",
		CreatedAt: old,
	}))
}

func TestQueryInspect(t *testing.T) {
	dir, configPath := writeTestConfig(t, "")
	seedHistory(t, filepath.Join(dir, "history.db"))

	code, stdout, stderr := captureRun(t, "query", "inspect", "q-1", "--config", configPath)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Query:    q-1")
	assert.Contains(t, stdout, "State:    failed")
	assert.Contains(t, stdout, "Error:    Some error from the generation :/")

	code, stdout, stderr = captureRun(t, "query", "inspect", "q-1", "--config", configPath, "--json")
	require.Equal(t, 0, code, stderr)
	var rec history.Record
	require.NoError(t, json.Unmarshal([]byte(stdout), &rec))
	assert.Equal(t, history.StateFailed, rec.State)
	assert.Equal(t, 2.5, rec.Priority)

	code, _, stderr = captureRun(t, "query", "inspect", "missing", "--config", configPath)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Query not found: missing")

	code, _, stderr = captureRun(t, "query", "inspect", "--config", configPath)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Usage:")

	code, _, stderr = captureRun(t, "query", "inspect", "q-1", "q-2", "--config", configPath)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Usage:")
}

func TestQueryInspect_FlagsBeforeID(t *testing.T) {
	dir, configPath := writeTestConfig(t, "")
	seedHistory(t, filepath.Join(dir, "history.db"))

	for _, args := range [][]string{
		{"query", "inspect", "--config", configPath, "q-1", "--json"},
		{"query", "inspect", "--json", "--config=" + configPath, "q-1"},
		{"query", "inspect", "-config", configPath, "--json", "q-1"},
	} {
		code, stdout, stderr := captureRun(t, args[0], args[1:]...)
		require.Equal(t, 0, code, "args %v: %s", args, stderr)
		var rec history.Record
		require.NoError(t, json.Unmarshal([]byte(stdout), &rec))
		assert.Equal(t, "q-1", rec.ID)
	}
}

func TestSplitFlagsAndPositionals(t *testing.T) {
	flags, positionals := splitFlagsAndPositionals(
		[]string{"--config", "cfg.yaml", "q-1", "--json", "--config=other.yaml"},
		map[string]bool{"config": true},
	)
	assert.Equal(t, []string{"--config", "cfg.yaml", "--json", "--config=other.yaml"}, flags)
	assert.Equal(t, []string{"q-1"}, positionals)
}

func TestQueryListAndPrune(t *testing.T) {
	dir, configPath := writeTestConfig(t, "")
	seedHistory(t, filepath.Join(dir, "history.db"))

	code, stdout, stderr := captureRun(t, "query", "list", "--config", configPath)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "q-1")
	assert.Contains(t, stdout, "q-old")

	code, _, stderr = captureRun(t, "query", "prune", "--config", configPath)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "--older-than")

	code, stdout, stderr = captureRun(t, "query", "prune", "--config", configPath, "--older-than", "24h")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Pruned 1 queries")

	code, stdout, _ = captureRun(t, "query", "list", "--config", configPath, "--json")
	require.Equal(t, 0, code)
	var recs []history.Record
	require.NoError(t, json.Unmarshal([]byte(stdout), &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "q-1", recs[0].ID)
}

func TestQueryCommands_StorageDisabled(t *testing.T) {
	_, configPath := writeTestConfig(t, "")
	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	data = []byte(strings.Replace(string(data), "enabled: true\n  path: "+filepath.Dir(configPath), "enabled: false\n  path: "+filepath.Dir(configPath), 1))
	require.NoError(t, os.WriteFile(configPath, data, 0o600))

	code, _, stderr := captureRun(t, "query", "list", "--config", configPath)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "query history is disabled")
}

func TestBuildGateway_ServesQueries(t *testing.T) {
	_, configPath := writeTestConfig(t, "")
	cfg, err := config.Load(configPath)
	require.NoError(t, err)

	gw, err := buildGateway(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = gw.Close() })

	assert.True(t, gw.registry.Sealed())

	srv := httptest.NewServer(gw.server.Handler())
	t.Cleanup(srv.Close)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/text-to-speech-clone",
		strings.NewReader(`{"text":"hello","engine":"StyleTTS2","is_mock":true}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer writer-token")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	queryID := resp.Header.Get("X-Query-ID")
	require.NotEmpty(t, queryID)

	req, err = http.NewRequest(http.MethodGet, srv.URL+"/query/"+queryID, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer secret-admin-key")
	qresp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer qresp.Body.Close()
	require.Equal(t, http.StatusOK, qresp.StatusCode)
	var rec history.Record
	require.NoError(t, json.NewDecoder(qresp.Body).Decode(&rec))
	assert.Equal(t, history.StateProjected, rec.State)
	assert.Equal(t, "validator-a", rec.Caller)

	mresp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer mresp.Body.Close()
	body, err := io.ReadAll(mresp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "test_scheduler_pending")
	assert.Contains(t, string(body), `test_queries_total{state="completed",task="tts_clone"} 1`)
}
