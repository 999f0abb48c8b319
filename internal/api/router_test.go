package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/isdelr/ender-local/internal/auth"
	"github.com/isdelr/ender-local/internal/database"
	"github.com/isdelr/ender-local/internal/models"
	"github.com/isdelr/ender-local/internal/monitoring"
	"github.com/isdelr/ender-local/internal/services"
	"github.com/isdelr/ender-local/internal/system"
	"github.com/isdelr/ender-local/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type stubHost struct{}

func (stubHost) Stats() (system.Stats, error) {
	return system.Stats{MemoryTotalMB: 8192, DiskPath: "/", DiskUsedPercent: 42}, nil
}

func (stubHost) TotalMemoryMB() (uint64, error) { return 8192, nil }

type testAPI struct {
	handler http.Handler
	token   string
}

func newTestAPI(t *testing.T, a *auth.Authenticator) *testAPI {
	t.Helper()

	dir := t.TempDir()
	db, err := database.New(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db))

	prev := models.ServersRoot()
	models.SetServersRoot(filepath.Join(dir, "servers"))
	t.Cleanup(func() { models.SetServersRoot(prev) })

	hub := websocket.NewHub()
	events := services.NewEventService(db)
	servers := services.NewServerService(db, hub, events, stubHost{}, services.NewStatusTracker())
	backups := services.NewBackupService(db, servers, events, filepath.Join(dir, "backups"))
	scheduler, err := monitoring.NewScheduler("", backups, events)
	require.NoError(t, err)

	if a == nil {
		a = auth.NewAuthenticator("", "")
	}
	return &testAPI{handler: NewRouter(Dependencies{
		Hub:            hub,
		Auth:           a,
		Servers:        servers,
		Backups:        backups,
		Events:         events,
		Scheduler:      scheduler,
		Host:           stubHost{},
		AllowedOrigins: []string{"http://localhost:3000"},
	})}
}

func (api *testAPI) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if api.token != "" {
		req.Header.Set("Authorization", "Bearer "+api.token)
	}
	rec := httptest.NewRecorder()
	api.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func (api *testAPI) createServer(t *testing.T, name string, port int) map[string]interface{} {
	t.Helper()
	rec := api.do(t, http.MethodPost, "/api/v1/servers", map[string]interface{}{
		"name": name, "serverType": "Vanilla", "version": "1.20.4", "port": port, "memoryMB": 1024,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var server map[string]interface{}
	decode(t, rec, &server)
	return server
}

func TestCatalogEndpoints(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.do(t, http.MethodGet, "/api/v1/server-types", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var types []string
	decode(t, rec, &types)
	assert.Equal(t, []string{"Vanilla", "PaperMC", "Forge", "NeoForge", "FabricMC", "SpigotMC"}, types)

	rec = api.do(t, http.MethodGet, "/api/v1/properties/defaults", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var defaults []map[string]string
	decode(t, rec, &defaults)
	require.Len(t, defaults, 19)
	assert.Equal(t, map[string]string{"key": "server-port", "value": "25565"}, defaults[0])
}

func TestServerLifecycle(t *testing.T) {
	api := newTestAPI(t, nil)
	server := api.createServer(t, "Survival", 25570)
	id := server["id"].(string)
	assert.Equal(t, "Vanilla", server["serverType"])
	assert.Equal(t, "stopped", server["status"])
	assert.Equal(t, "Stopped.", server["statusDescription"])

	rec := api.do(t, http.MethodGet, "/api/v1/servers", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]interface{}
	decode(t, rec, &list)
	assert.Len(t, list, 1)

	rec = api.do(t, http.MethodPut, "/api/v1/servers/"+id, map[string]interface{}{"name": "Hardcore", "port": 25575})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodGet, "/api/v1/servers/"+id+"/properties", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var props map[string]string
	decode(t, rec, &props)
	assert.Equal(t, "25575", props["server-port"])

	rec = api.do(t, http.MethodPut, "/api/v1/servers/"+id+"/properties", map[string]interface{}{
		"set": map[string]string{"difficulty": "hard"}, "remove": []string{"level-seed"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	props = nil
	decode(t, rec, &props)
	assert.Equal(t, "hard", props["difficulty"])
	assert.NotContains(t, props, "level-seed")

	rec = api.do(t, http.MethodGet, "/api/v1/servers/"+id+"/ops", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = api.do(t, http.MethodPut, "/api/v1/servers/"+id+"/status", map[string]string{"status": "running"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodGet, "/api/v1/servers/"+id+"/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"running","description":"Running, Go ahead and join."}`, rec.Body.String())

	rec = api.do(t, http.MethodDelete, "/api/v1/servers/"+id, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	api.do(t, http.MethodPut, "/api/v1/servers/"+id+"/status", map[string]string{"status": "stopped"})
	rec = api.do(t, http.MethodDelete, "/api/v1/servers/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/v1/servers/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/v1/events?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var events []map[string]interface{}
	decode(t, rec, &events)
	require.Len(t, events, 2)
	assert.Equal(t, "server.delete", events[0]["type"])
}

func TestErrorMapping(t *testing.T) {
	api := newTestAPI(t, nil)
	server := api.createServer(t, "Survival", 25570)
	id := server["id"].(string)
	require.NoError(t, os.WriteFile(filepath.Join(models.ServersRoot(), id, "ops.json"), []byte("{not json"), 0o644))

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
	}{
		{"unknown server", http.MethodGet, "/api/v1/servers/nope", nil, http.StatusNotFound},
		{"unknown server properties", http.MethodGet, "/api/v1/servers/nope/properties", nil, http.StatusNotFound},
		{"unknown server status", http.MethodPut, "/api/v1/servers/nope/status", map[string]string{"status": "running"}, http.StatusNotFound},
		{"bad status", http.MethodPut, "/api/v1/servers/" + id + "/status", map[string]string{"status": "exploded"}, http.StatusBadRequest},
		{"missing status", http.MethodPut, "/api/v1/servers/" + id + "/status", map[string]string{}, http.StatusBadRequest},
		{"bad type", http.MethodPost, "/api/v1/servers", map[string]interface{}{"name": "x", "serverType": "Bukkit", "version": "1", "memoryMB": 1024}, http.StatusBadRequest},
		{"too much memory", http.MethodPost, "/api/v1/servers", map[string]interface{}{"name": "x", "serverType": "Forge", "version": "1", "memoryMB": 65536}, http.StatusBadRequest},
		{"port mismatch", http.MethodPut, "/api/v1/servers/" + id + "/properties", map[string]interface{}{"set": map[string]string{"server-port": "1"}}, http.StatusBadRequest},
		{"corrupt ops", http.MethodGet, "/api/v1/servers/" + id + "/ops", nil, http.StatusUnprocessableEntity},
		{"unknown backup", http.MethodDelete, "/api/v1/servers/" + id + "/backups/nope", nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestBackupEndpoints(t *testing.T) {
	api := newTestAPI(t, nil)
	a := api.createServer(t, "a", 25570)["id"].(string)
	b := api.createServer(t, "b", 25571)["id"].(string)

	rec := api.do(t, http.MethodPost, "/api/v1/servers/"+a+"/backups", map[string]string{"name": "first"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var backup map[string]interface{}
	decode(t, rec, &backup)
	backupID := backup["id"].(string)
	assert.NotContains(t, backup, "path")

	rec = api.do(t, http.MethodGet, "/api/v1/servers/"+a+"/backups", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]interface{}
	decode(t, rec, &list)
	assert.Len(t, list, 1)

	// a backup is only reachable under its own server
	rec = api.do(t, http.MethodDelete, "/api/v1/servers/"+b+"/backups/"+backupID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/v1/servers/"+a+"/backups/"+backupID+"/restore", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodDelete, "/api/v1/servers/"+a+"/backups/"+backupID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/v1/backups/schedule/run", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"backups":2}`, rec.Body.String())

	rec = api.do(t, http.MethodGet, "/api/v1/backups/schedule", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"schedule":"","enabled":false}`, rec.Body.String())
}

func TestSystemAndMetrics(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.do(t, http.MethodGet, "/api/v1/system", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats system.Stats
	decode(t, rec, &stats)
	assert.Equal(t, uint64(8192), stats.MemoryTotalMB)

	rec = api.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ender_api_requests_total")
}

func TestAuthRequired(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)
	api := newTestAPI(t, auth.NewAuthenticator("secret", string(hash)))

	rec := api.do(t, http.MethodGet, "/api/v1/servers", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{"password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{"password": "hunter2"})
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	decode(t, rec, &body)
	require.NotEmpty(t, body["token"])
	assert.NotEmpty(t, rec.Result().Cookies())

	api.token = body["token"]
	rec = api.do(t, http.MethodGet, "/api/v1/servers", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginWhenAuthDisabled(t *testing.T) {
	api := newTestAPI(t, nil)
	rec := api.do(t, http.MethodPost, "/api/v1/auth/login", map[string]string{"password": "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
