package server_test

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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/tally/pkg/adapters/fs"
	"github.com/aretw0/tally/pkg/core"
	"github.com/aretw0/tally/pkg/server"
	"github.com/aretw0/tally/pkg/session"
)

type testEnv struct {
	handler http.Handler
	monitor *session.Monitor
	repo    *fs.Repository
	dir     string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	repo := fs.NewRepository(fs.Config{Dir: dir})
	require.NoError(t, repo.Initialize(context.Background()))
	t.Cleanup(func() { _ = repo.Close(context.Background()) })

	monitor := session.New(
		session.WithTimeout(time.Hour),
		session.WithTerminate(func() {}),
	)
	t.Cleanup(monitor.Stop)

	srv := server.New(server.Config{
		Service: core.NewService(repo, nil),
		Monitor: monitor,
	})
	return &testEnv{handler: srv.Handler(), monitor: monitor, repo: repo, dir: dir}
}

func doRaw(t *testing.T, handler http.Handler, req *http.Request, expectedStatus int) []byte {
	t.Helper()

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	respBytes, err := io.ReadAll(recorder.Body)
	require.NoError(t, err)
	if recorder.Code != expectedStatus {
		t.Fatalf("expected status %d, got %d: %s", expectedStatus, recorder.Code, respBytes)
	}
	return respBytes
}

func doJSON[T any](t *testing.T, handler http.Handler, method, path string, payload any, expectedStatus int) T {
	t.Helper()

	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")

	var value T
	respBytes := doRaw(t, handler, req, expectedStatus)
	if len(respBytes) == 0 {
		return value
	}
	require.NoError(t, json.Unmarshal(respBytes, &value))
	return value
}

func TestSaveThenLoad(t *testing.T) {
	env := newTestEnv(t)

	resp := doJSON[map[string]bool](t, env.handler, http.MethodPost, "/api/save", map[string]any{
		"storeName": "accounts",
		"data":      []any{map[string]any{"name": "<b>Rent</b>", "monthlyPayment": "1200.5", "annualPayment": "0"}},
	}, http.StatusOK)
	assert.True(t, resp["success"])

	doc := doJSON[core.Document](t, env.handler, http.MethodGet, "/api/data", nil, http.StatusOK)
	require.Len(t, doc.Accounts, 1)
	acc := doc.Accounts[0]
	assert.Equal(t, "Rent", acc.Name)
	assert.Equal(t, 1200.5, acc.MonthlyPayment)
	assert.Equal(t, 0.0, acc.AnnualPayment)
	assert.Equal(t, "expense", acc.Type)
	assert.Equal(t, "No", acc.HasReminder)
	assert.Equal(t, "Active", acc.Status)
	assert.Equal(t, "Important", acc.Priority)
	assert.Equal(t, 1, acc.ID)
	assert.Nil(t, acc.OwnerID)
}

func TestSaveKeyedStore(t *testing.T) {
	env := newTestEnv(t)

	doJSON[map[string]bool](t, env.handler, http.MethodPost, "/api/save", map[string]any{
		"storeName": "profile",
		"key":       "cards",
		"data":      []any{map[string]any{"id": "c1", "displayName": "Ana", "fullName": "Ana Lima", "color": "blue"}},
	}, http.StatusOK)

	doc := doJSON[core.Document](t, env.handler, http.MethodGet, "/api/data", nil, http.StatusOK)
	cards, ok := doc.Profile["cards"].([]any)
	require.True(t, ok)
	require.Len(t, cards, 1)
	assert.Equal(t, "blue", cards[0].(map[string]any)["color"])
}

func TestSaveErrors(t *testing.T) {
	env := newTestEnv(t)

	t.Run("Unknown Store", func(t *testing.T) {
		resp := doJSON[map[string]string](t, env.handler, http.MethodPost, "/api/save", map[string]any{
			"storeName": "secrets", "data": []any{},
		}, http.StatusBadRequest)
		assert.Equal(t, "unknown store", resp["error"])
		assert.Contains(t, resp["detail"], "secrets")
	})

	t.Run("Invalid JSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/save", strings.NewReader("{nope"))
		doRaw(t, env.handler, req, http.StatusBadRequest)
	})

	t.Run("Wrong Shape", func(t *testing.T) {
		doJSON[map[string]string](t, env.handler, http.MethodPost, "/api/save", map[string]any{
			"storeName": "accounts", "data": "not a list",
		}, http.StatusBadRequest)
	})

	t.Run("Body Too Large", func(t *testing.T) {
		big := `{"storeName":"settings","data":{"x":"` + strings.Repeat("a", server.MaxBodyBytes) + `"}}`
		req := httptest.NewRequest(http.MethodPost, "/api/save", strings.NewReader(big))
		doRaw(t, env.handler, req, http.StatusRequestEntityTooLarge)
	})

	t.Run("Wrong Method", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/save", nil)
		doRaw(t, env.handler, req, http.StatusMethodNotAllowed)
	})
}

func TestUnrecoverableStore(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.WriteFile(filepath.Join(env.dir, fs.DefaultFileName), []byte("{"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(env.dir, fs.DefaultBackupName), []byte("{"), 0o644))

	resp := doJSON[map[string]string](t, env.handler, http.MethodGet, "/api/data", nil, http.StatusInternalServerError)
	assert.Equal(t, "data store unrecoverable", resp["error"])
	assert.Contains(t, resp["detail"], fs.DefaultBackupName)
}

func TestImport(t *testing.T) {
	env := newTestEnv(t)

	doJSON[map[string]bool](t, env.handler, http.MethodPost, "/api/save", map[string]any{
		"storeName": "settings", "data": map[string]any{"theme": "old"},
	}, http.StatusOK)

	resp := doJSON[map[string]string](t, env.handler, http.MethodPost, "/api/import", map[string]any{
		"accounts": []any{map[string]any{"name": "Gym", "monthlyPayment": 2e9}},
		"settings": map[string]any{"theme": "new"},
	}, http.StatusOK)
	assert.NotEmpty(t, resp["message"])

	doc := doJSON[core.Document](t, env.handler, http.MethodGet, "/api/data", nil, http.StatusOK)
	require.Len(t, doc.Accounts, 1)
	assert.Equal(t, 1e9, doc.Accounts[0].MonthlyPayment)
	assert.Equal(t, "new", doc.Settings["theme"])
	assert.Equal(t, core.Mapping{}, doc.Profile)

	safety, err := os.ReadFile(filepath.Join(env.dir, fs.DefaultImportBackupName))
	require.NoError(t, err)
	assert.Contains(t, string(safety), `"old"`)

	t.Run("Rejects Non Object", func(t *testing.T) {
		doJSON[map[string]string](t, env.handler, http.MethodPost, "/api/import", []any{1, 2}, http.StatusBadRequest)
	})
}

func TestSessionEndpoints(t *testing.T) {
	env := newTestEnv(t)

	hb := doJSON[map[string]string](t, env.handler, http.MethodPost, "/api/heartbeat", nil, http.StatusOK)
	assert.Equal(t, "alive", hb["status"])
	assert.Equal(t, session.StatusArmed, env.monitor.Status())

	type settings struct {
		Success bool    `json:"success"`
		Timeout float64 `json:"timeout"`
		Enabled bool    `json:"enabled"`
	}
	got := doJSON[settings](t, env.handler, http.MethodPost, "/api/system/settings", map[string]any{"timeout": 30}, http.StatusOK)
	assert.Equal(t, settings{Success: true, Timeout: 30, Enabled: true}, got)

	got = doJSON[settings](t, env.handler, http.MethodPost, "/api/system/settings", map[string]any{"enabled": false}, http.StatusOK)
	assert.Equal(t, settings{Success: true, Timeout: 30, Enabled: false}, got)
	assert.Equal(t, session.StatusDisarmed, env.monitor.Status())

	for _, timeout := range []float64{-1, 0, 0.001, 86401, 1e300} {
		doJSON[map[string]string](t, env.handler, http.MethodPost, "/api/system/settings", map[string]any{"timeout": timeout}, http.StatusBadRequest)
	}
	timeout, enabled := env.monitor.Settings()
	assert.Equal(t, 30*time.Second, timeout)
	assert.False(t, enabled)

	got = doJSON[settings](t, env.handler, http.MethodPost, "/api/system/settings", map[string]any{"timeout": 1}, http.StatusOK)
	assert.Equal(t, 1.0, got.Timeout)

	ack := doJSON[map[string]bool](t, env.handler, http.MethodPost, "/api/tab-closed", nil, http.StatusOK)
	assert.True(t, ack["acknowledged"])
}

func TestSameOrigin(t *testing.T) {
	env := newTestEnv(t)

	t.Run("Foreign Origin Rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "http://127.0.0.1:3000/api/heartbeat", nil)
		req.Header.Set("Origin", "http://evil.example")
		doRaw(t, env.handler, req, http.StatusForbidden)
	})

	t.Run("Cross Site Fetch Rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "http://127.0.0.1:3000/api/save", strings.NewReader(`{}`))
		req.Header.Set("Sec-Fetch-Site", "cross-site")
		doRaw(t, env.handler, req, http.StatusForbidden)
	})

	t.Run("Same Origin Allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "http://127.0.0.1:3000/api/heartbeat", nil)
		req.Header.Set("Origin", "http://127.0.0.1:3000")
		doRaw(t, env.handler, req, http.StatusOK)
	})

	t.Run("Reads Are Not Checked", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "http://127.0.0.1:3000/api/data", nil)
		req.Header.Set("Origin", "http://evil.example")
		doRaw(t, env.handler, req, http.StatusOK)
	})
}

func TestStateAndProjection(t *testing.T) {
	env := newTestEnv(t)

	doJSON[map[string]bool](t, env.handler, http.MethodPost, "/api/save", map[string]any{
		"storeName": "timeline",
		"key":       "timelineData",
		"data": map[string]any{
			"startingBalance": 100,
			"months": []any{
				map[string]any{"id": "2025-01", "year": 2025, "month": "January", "income": 50, "expenses": 80},
			},
		},
	}, http.StatusOK)

	state := doJSON[map[string]json.RawMessage](t, env.handler, http.MethodGet, "/api/system/state", nil, http.StatusOK)
	assert.Contains(t, state, "repository")
	assert.Contains(t, state, "service")
	assert.Contains(t, state, "session-monitor")

	proj := doJSON[struct {
		Projection struct {
			FinalBalance float64 `json:"finalBalance"`
		} `json:"projection"`
	}](t, env.handler, http.MethodGet, "/api/projection", nil, http.StatusOK)
	assert.Equal(t, 70.0, proj.Projection.FinalBalance)

	doJSON[map[string]string](t, env.handler, http.MethodGet, "/api/projection?key=missing", nil, http.StatusNotFound)
}

func TestStaticFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>tally</h1>"), 0o644))

	repo := fs.NewRepository(fs.Config{Dir: t.TempDir()})
	require.NoError(t, repo.Initialize(context.Background()))
	defer repo.Close(context.Background())

	srv := server.New(server.Config{
		Service:   core.NewService(repo, nil),
		Monitor:   session.New(session.WithSuppressed(true)),
		StaticDir: dir,
	})

	body := doRaw(t, srv.Handler(), httptest.NewRequest(http.MethodGet, "/", nil), http.StatusOK)
	assert.Contains(t, string(body), "tally")
}
