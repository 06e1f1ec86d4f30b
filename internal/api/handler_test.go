package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurihiro0119/pages-deploy/internal/aggregator"
	"github.com/kurihiro0119/pages-deploy/internal/domain"
	"github.com/kurihiro0119/pages-deploy/internal/storage/sqlite"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	store, err := sqlite.NewSQLiteStorage(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	base := time.Date(2025, 3, 27, 9, 0, 0, 0, time.UTC)
	for i, d := range []*domain.Deployment{
		{ID: "a", Owner: "alice", Repo: "site", Status: domain.DeployStatusSucceeded, URL: "https://alice.github.io/site/"},
		{ID: "b", Owner: "alice", Repo: "site", Status: domain.DeployStatusFailed, FailedStep: "build"},
		{ID: "c", Owner: "alice", Repo: "blog", Status: domain.DeployStatusSucceeded},
	} {
		d.Mode = domain.DeployModeRedeploy
		d.StartedAt = base.Add(time.Duration(i) * time.Hour)
		d.FinishedAt = d.StartedAt.Add(time.Minute)
		require.NoError(t, store.SaveDeployment(context.Background(), d))
	}

	return SetupRoutes(NewHandler(store, aggregator.NewAggregator(store)), io.Discard)
}

func get(t *testing.T, router http.Handler, path string) (*httptest.ResponseRecorder, map[string]json.RawMessage) {
	t.Helper()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return w, body
}

func TestHealthCheck(t *testing.T) {
	w, body := get(t, newTestRouter(t), "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `"ok"`, string(body["status"]))
}

func TestListDeployments(t *testing.T) {
	router := newTestRouter(t)

	w, body := get(t, router, "/api/v1/deployments?owner=alice&repo=site")
	require.Equal(t, http.StatusOK, w.Code)

	var deployments []domain.Deployment
	require.NoError(t, json.Unmarshal(body["data"], &deployments))
	require.Len(t, deployments, 2)
	assert.Equal(t, "b", deployments[0].ID)
	assert.JSONEq(t, `2`, string(body["count"]))

	w, body = get(t, router, "/api/v1/deployments?status=failed&limit=10")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(body["data"], &deployments))
	require.Len(t, deployments, 1)
	assert.Equal(t, "build", deployments[0].FailedStep)

	w, body = get(t, router, "/api/v1/deployments?owner=nobody")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, string(body["data"]))
}

func TestListDeploymentsBadRequest(t *testing.T) {
	router := newTestRouter(t)
	for _, path := range []string{
		"/api/v1/deployments?status=pending",
		"/api/v1/deployments?limit=-1",
		"/api/v1/deployments?since=yesterday",
	} {
		w, body := get(t, router, path)
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
		assert.Contains(t, string(body["error"]), "BAD_REQUEST", path)
	}
}

func TestGetDeployment(t *testing.T) {
	router := newTestRouter(t)

	w, body := get(t, router, "/api/v1/deployments/a")
	require.Equal(t, http.StatusOK, w.Code)
	var d domain.Deployment
	require.NoError(t, json.Unmarshal(body["data"], &d))
	assert.Equal(t, "https://alice.github.io/site/", d.URL)

	w, body = get(t, router, "/api/v1/deployments/missing")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, string(body["error"]), "NOT_FOUND")
}

func TestGetRepoStats(t *testing.T) {
	router := newTestRouter(t)

	w, body := get(t, router, "/api/v1/repos/alice/site/stats")
	require.Equal(t, http.StatusOK, w.Code)
	var stats domain.RepoStats
	require.NoError(t, json.Unmarshal(body["data"], &stats))
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(1), stats.FailuresByStep["build"])
	assert.Equal(t, "https://alice.github.io/site/", stats.LastURL)

	w, _ = get(t, router, "/api/v1/repos/alice/nothing/stats")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListRepoStats(t *testing.T) {
	w, body := get(t, newTestRouter(t), "/api/v1/stats?since=2025-03-27")
	require.Equal(t, http.StatusOK, w.Code)
	var stats []domain.RepoStats
	require.NoError(t, json.Unmarshal(body["data"], &stats))
	require.Len(t, stats, 2)
	assert.Equal(t, "blog", stats[0].Repo)
}

func TestPreviewRoutes(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "assets"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte("<html>app</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "assets", "app.js"), []byte("run()"), 0o644))

	router := SetupPreviewRoutes(PreviewSite{
		Root:      root,
		EntryFile: "index.html",
		AssetsDir: "assets",
		Status:    func() any { return gin.H{"builds": 3} },
	}, io.Discard)

	tests := []struct {
		path   string
		status int
		body   string
	}{
		{path: "/", status: http.StatusOK, body: "<html>app</html>"},
		{path: "/assets/app.js", status: http.StatusOK, body: "run()"},
		{path: "/some/client/route", status: http.StatusOK, body: "<html>app</html>"},
		{path: "/assets/missing.js", status: http.StatusNotFound},
		{path: "/__preview/status", status: http.StatusOK, body: `{"data":{"builds":3}}`},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.status, w.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, w.Body.String())
			}
			assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	w := httptest.NewRecorder()
	newTestRouter(t).ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/v1/deployments", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRespondErrorInternal(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	respondError(c, errors.New("database is locked"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "INTERNAL_ERROR", body.Error.Code)
	assert.Equal(t, "database is locked", body.Error.Message)
}
