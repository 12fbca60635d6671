package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/whse-session/internal/backend"
	"github.com/yegors/whse-session/internal/config"
	"github.com/yegors/whse-session/internal/storage/sqlite"
	"github.com/yegors/whse-session/internal/uiconfig"
	"github.com/yegors/whse-session/internal/whse"
	"github.com/yegors/whse-session/pkg/logger"
)

type backendRecorder struct {
	mu      sync.Mutex
	actions []url.Values
	paths   []string
}

func (b *backendRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.actions = append(b.actions, r.URL.Query())
	b.paths = append(b.paths, r.URL.Path)
}

type testEnv struct {
	api      *httptest.Server
	backend  *backendRecorder
	sessions *sqlite.SessionStorage
	registry *uiconfig.Registry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	log := logger.NewNop()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "whse.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sessions, err := sqlite.NewSessionStorage(db, log)
	require.NoError(t, err)
	warehouses, err := sqlite.NewWarehouseStorage(db, log)
	require.NoError(t, err)

	s := whse.NewSession("abc123")
	s.WarehouseID = "01"
	s.OrderNumber = "00123"
	s.BinNumber = "A-01"
	s.Status = "SUCCESS - Order 00123 is Invoiced"
	require.NoError(t, sessions.UpsertSession(ctx, s))
	require.NoError(t, sessions.InsertPickedItem(ctx, whse.PickedItem{
		SessionID: "abc123", OrderNumber: "00123", ItemID: "WIDGET", RecordNumber: 1, Barcode: "0001", Qty: 4,
	}))
	require.NoError(t, warehouses.SaveWarehouse(ctx, &whse.Warehouse{
		ID:          "01",
		Arrangement: whse.BinsRanged,
		Ranges:      []whse.BinRange{{From: "A-01", Through: "A-99"}},
	}))

	recorder := &backendRecorder{}
	backendSrv := httptest.NewServer(recorder)
	t.Cleanup(backendSrv.Close)

	cfg := &config.Config{Storage: config.StorageConfig{SQLitePath: "unused.db"}}
	cfg.Backend.BaseURL = backendSrv.URL
	require.NoError(t, cfg.Validate())

	client, err := backend.NewClient(cfg.Backend.BaseURL, time.Second, log)
	require.NoError(t, err)

	registry := uiconfig.NewRegistry(nil, log)
	svc := whse.NewService(sessions, warehouses, client, registry, cfg.PagesFor(), nil, log)

	api := httptest.NewServer(NewRouter(svc, registry, sessions, nil, cfg, log).Routes())
	t.Cleanup(api.Close)

	return &testEnv{api: api, backend: recorder, sessions: sessions, registry: registry}
}

func (e *testEnv) do(t *testing.T, method, path string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, e.api.URL+path, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestAPI_GetSession(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodGet, "/api/v1/sessions/abc123")
	require.Equal(t, http.StatusOK, code)

	session := body["session"].(map[string]any)
	assert.Equal(t, "abc123", session["sessionid"])
	assert.Equal(t, "00123", session["ordernbr"])

	status := body["status"].(map[string]any)
	assert.Equal(t, "Order 00123 has been invoiced", status["message"])
	assert.Equal(t, true, status["has_bin"])
	assert.Equal(t, false, status["has_pallet"])

	conditions := status["conditions"].(map[string]any)
	assert.Equal(t, true, conditions["order_invoiced"])
	assert.Equal(t, true, conditions["succeeded"])
	assert.Equal(t, false, conditions["order_on_hold"])
}

func TestAPI_GetSessionNotFound(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodGet, "/api/v1/sessions/missing")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Contains(t, body["error"], "missing")
}

func TestAPI_GetSessionDebug(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodGet, "/api/v1/sessions/abc123?debug=true")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body["query"], "WHERE sessionid = 'abc123'")
	assert.NotContains(t, body, "session")
}

func TestAPI_Exists(t *testing.T) {
	env := newTestEnv(t)

	_, body := env.do(t, http.MethodGet, "/api/v1/sessions/abc123/exists")
	assert.Equal(t, true, body["exists"])

	_, body = env.do(t, http.MethodGet, "/api/v1/sessions/missing/exists")
	assert.Equal(t, false, body["exists"])
}

func TestAPI_Actions(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		method string
		path   string
		action string
		page   string
	}{
		{http.MethodPost, "/api/v1/sessions/abc123/start", "initiate-whse", "/warehouse/redir/"},
		{http.MethodPost, "/api/v1/sessions/abc123/picking", "start-pick", "/warehouse/picking/sales-order/redir/"},
		{http.MethodPost, "/api/v1/sessions/abc123/pick-pack", "start-pick-pack", "/warehouse/picking/sales-order/redir/"},
		{http.MethodDelete, "/api/v1/sessions/abc123", "logout", "/warehouse/picking/sales-order/redir/"},
	}

	for i, tt := range tests {
		code, body := env.do(t, tt.method, tt.path)
		require.Equal(t, http.StatusAccepted, code, tt.path)
		assert.Equal(t, tt.action, body["action"])

		env.backend.mu.Lock()
		assert.Equal(t, tt.action, env.backend.actions[i].Get("action"))
		assert.Equal(t, "abc123", env.backend.actions[i].Get("sessionID"))
		assert.Equal(t, tt.page, env.backend.paths[i])
		env.backend.mu.Unlock()
	}
}

func TestAPI_PickingUnknownSession(t *testing.T) {
	env := newTestEnv(t)

	code, _ := env.do(t, http.MethodPost, "/api/v1/sessions/missing/picking")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Empty(t, env.backend.actions)
}

func TestAPI_PickedItems(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodGet, "/api/v1/sessions/abc123/picked-items?itemID=WIDGET")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["items"], 1)

	_, body = env.do(t, http.MethodGet, "/api/v1/sessions/abc123/picked-items/total?itemID=WIDGET")
	assert.Equal(t, float64(4), body["total"])

	_, body = env.do(t, http.MethodDelete, "/api/v1/sessions/abc123/picked-items?debug=1")
	assert.Equal(t, "DELETE FROM whseitempick WHERE sessionid = 'abc123'", body["query"])

	_, body = env.do(t, http.MethodDelete, "/api/v1/sessions/abc123/picked-items")
	assert.Equal(t, float64(1), body["deleted"])

	_, body = env.do(t, http.MethodGet, "/api/v1/sessions/abc123/picked-items/total?itemID=WIDGET")
	assert.Equal(t, float64(0), body["total"])
}

func TestAPI_UIConfig(t *testing.T) {
	env := newTestEnv(t)

	code, _ := env.do(t, http.MethodGet, "/api/v1/ui-config/session")
	assert.Equal(t, http.StatusNotFound, code)

	code, body := env.do(t, http.MethodPost, "/api/v1/sessions/abc123/ui-config")
	require.Equal(t, http.StatusOK, code)
	whseCfg := body["whse"].(map[string]any)
	assert.Equal(t, "01", whseCfg["id"])
	assert.Equal(t, "range", whseCfg["bins"].(map[string]any)["arranged"])

	code, stored := env.do(t, http.MethodGet, "/api/v1/ui-config/session")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, body, stored)
}

func TestAPI_Health(t *testing.T) {
	env := newTestEnv(t)

	code, body := env.do(t, http.MethodGet, "/api/v1/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}
