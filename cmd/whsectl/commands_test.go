package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	path  string
	query url.Values
}

type recorder struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (rec *recorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.calls = append(rec.calls, recordedCall{path: r.URL.Path, query: r.URL.Query()})
}

func (rec *recorder) snapshot() []recordedCall {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return append([]recordedCall(nil), rec.calls...)
}

const sessionsJSON = `[
  {
    "sessionID": "abc123",
    "date": 20240115,
    "time": 930,
    "loginID": "picker1",
    "whseID": "01",
    "ordn": "00123",
    "bin": "A-01",
    "status": "SUCCESS - Order 00123 is Invoiced",
    "function": "PICKING"
  },
  {
    "sessionid": "def456",
    "whseid": "01",
    "ordernbr": "00456",
    "status": "HOLD - Order 00456 on hold"
  }
]`

const warehousesYAML = `warehouses:
  - id: "01"
    arranged: range
    ranges:
      - from: A-01
        through: A-99
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func setup(t *testing.T) (string, *recorder) {
	t.Helper()
	dir := t.TempDir()

	rec := &recorder{}
	srv := httptest.NewServer(rec)
	t.Cleanup(srv.Close)

	cfg := fmt.Sprintf(`[logging]
level = "error"
format = "json"

[storage]
sqlite_path = %q

[backend]
base_url = %q
request_timeout_seconds = 5
`, filepath.Join(dir, "whse.db"), srv.URL)

	return writeFile(t, dir, "config.toml", cfg), rec
}

func run(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func importFixtures(t *testing.T, configPath string) {
	t.Helper()
	dir := filepath.Dir(configPath)

	out, err := run(t, configPath, "import-sessions", writeFile(t, dir, "sessions.json", sessionsJSON))
	require.NoError(t, err)
	assert.Contains(t, out, "imported 2 sessions")

	out, err = run(t, configPath, "import-warehouses", writeFile(t, dir, "warehouses.yaml", warehousesYAML))
	require.NoError(t, err)
	assert.Contains(t, out, "imported 1 warehouses")
}

func TestShow(t *testing.T) {
	configPath, _ := setup(t)
	importFixtures(t, configPath)

	out, err := run(t, configPath, "show", "abc123")
	require.NoError(t, err)

	var got struct {
		Session    map[string]any  `json:"session"`
		Message    string          `json:"message"`
		Conditions map[string]bool `json:"conditions"`
		HasBin     bool            `json:"has_bin"`
		HasPallet  bool            `json:"has_pallet"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))

	assert.Equal(t, "abc123", got.Session["sessionid"])
	assert.Equal(t, "01", got.Session["whseid"])
	assert.Equal(t, "Order 00123 has been invoiced", got.Message)
	assert.True(t, got.Conditions["order_invoiced"])
	assert.True(t, got.Conditions["succeeded"])
	assert.True(t, got.HasBin)
	assert.False(t, got.HasPallet)
}

func TestShowOnHoldBeatsOthers(t *testing.T) {
	configPath, _ := setup(t)
	importFixtures(t, configPath)

	out, err := run(t, configPath, "show", "def456")
	require.NoError(t, err)
	assert.Contains(t, out, "Order 00456 is on hold")
}

func TestShowMissing(t *testing.T) {
	configPath, _ := setup(t)

	_, err := run(t, configPath, "show", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestDebugPrintsQuery(t *testing.T) {
	configPath, _ := setup(t)
	importFixtures(t, configPath)

	out, err := run(t, configPath, "--debug", "show", "abc123")
	require.NoError(t, err)
	assert.Contains(t, out, "FROM whsesession")
	assert.Contains(t, out, "'abc123'")

	out, err = run(t, configPath, "--debug", "clear-picked", "abc123")
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM whseitempick WHERE sessionid = 'abc123'", strings.TrimSpace(out))
}

func TestExists(t *testing.T) {
	configPath, _ := setup(t)
	importFixtures(t, configPath)

	out, err := run(t, configPath, "exists", "abc123")
	require.NoError(t, err)
	assert.Equal(t, "true", strings.TrimSpace(out))

	out, err = run(t, configPath, "exists", "nope")
	require.NoError(t, err)
	assert.Equal(t, "false", strings.TrimSpace(out))
}

func TestActions(t *testing.T) {
	configPath, rec := setup(t)
	importFixtures(t, configPath)

	tests := []struct {
		args   []string
		path   string
		action string
	}{
		{[]string{"start", "new-session"}, "/warehouse/redir/", "initiate-whse"},
		{[]string{"pick", "abc123"}, "/warehouse/picking/sales-order/redir/", "start-pick"},
		{[]string{"pick-pack", "abc123"}, "/warehouse/picking/sales-order/redir/", "start-pick-pack"},
		{[]string{"logout", "abc123"}, "/warehouse/picking/sales-order/redir/", "logout"},
	}

	for i, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			out, err := run(t, configPath, tt.args...)
			require.NoError(t, err)
			assert.Contains(t, out, "sent "+tt.action)

			calls := rec.snapshot()
			require.Len(t, calls, i+1)
			call := calls[i]
			assert.Equal(t, tt.path, call.path)
			assert.Contains(t, call.query, tt.action)
			assert.Equal(t, tt.args[1], call.query.Get("sessionID"))
		})
	}
}

func TestPickRequiresSession(t *testing.T) {
	configPath, rec := setup(t)

	_, err := run(t, configPath, "pick", "missing")
	require.Error(t, err)
	assert.Empty(t, rec.snapshot())
}

func TestPickedRequiresItem(t *testing.T) {
	configPath, _ := setup(t)
	importFixtures(t, configPath)

	_, err := run(t, configPath, "picked", "abc123")
	require.Error(t, err)
}

func TestPickedTotalEmpty(t *testing.T) {
	configPath, _ := setup(t)
	importFixtures(t, configPath)

	out, err := run(t, configPath, "picked-total", "abc123", "--item", "WIDGET")
	require.NoError(t, err)
	assert.Equal(t, "0", strings.TrimSpace(out))

	out, err = run(t, configPath, "clear-picked", "abc123")
	require.NoError(t, err)
	assert.Contains(t, out, "deleted 0 picked items")
}

func TestUIConfig(t *testing.T) {
	configPath, _ := setup(t)
	importFixtures(t, configPath)

	out, err := run(t, configPath, "ui-config", "abc123")
	require.NoError(t, err)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	whseCfg, ok := payload["whse"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "01", whseCfg["id"])
}

func TestImportSessionsRejectsMissingID(t *testing.T) {
	configPath, _ := setup(t)
	file := writeFile(t, filepath.Dir(configPath), "bad.json", `[{"status": "x"}]`)

	_, err := run(t, configPath, "import-sessions", file)
	require.Error(t, err)
}

func TestImportSessionsRejectsNullRecord(t *testing.T) {
	configPath, _ := setup(t)
	file := writeFile(t, filepath.Dir(configPath), "null.json", `[null]`)

	_, err := run(t, configPath, "import-sessions", file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without sessionid")
}

func TestHelpDoesNotOpenStore(t *testing.T) {
	out, err := run(t, filepath.Join(t.TempDir(), "absent.toml"), "help")
	require.NoError(t, err)
	assert.Contains(t, out, "whsectl")
}
