package pages

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-github/v55/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*githubClient, *http.ServeMux) {
	t.Helper()
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	gh := github.NewClient(nil)
	base, err := url.Parse(server.URL + "/")
	require.NoError(t, err)
	gh.BaseURL = base

	c := newClient(gh, nil)
	c.rateLimiter = NewRateLimiter(0, nil)
	return c, mux
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestAuthenticatedUser(t *testing.T) {
	c, mux := setup(t)
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"login": "alice"})
	})

	login, err := c.AuthenticatedUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice", login)
}

func TestInfoNotEnabled(t *testing.T) {
	c, mux := setup(t)
	mux.HandleFunc("/repos/alice/site/pages", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
	})

	_, err := c.Info(context.Background(), "alice", "site")
	var notEnabled *NotEnabledError
	require.True(t, errors.As(err, &notEnabled))
	assert.Equal(t, "pages is not enabled for alice/site", err.Error())
}

func TestEnsureEnabledCreatesSite(t *testing.T) {
	c, mux := setup(t)
	var body struct {
		Source struct {
			Branch string `json:"branch"`
			Path   string `json:"path"`
		} `json:"source"`
	}
	mux.HandleFunc("/repos/alice/site/pages", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		case http.MethodPost:
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			writeJSON(w, http.StatusCreated, map[string]interface{}{
				"html_url": "https://alice.github.io/site/",
				"status":   "building",
				"source":   map[string]string{"branch": body.Source.Branch, "path": body.Source.Path},
			})
		}
	})

	site, err := c.EnsureEnabled(context.Background(), "alice", "site", "gh-pages")
	require.NoError(t, err)
	assert.True(t, site.Created)
	assert.Equal(t, "https://alice.github.io/site/", site.URL)
	assert.Equal(t, "gh-pages", body.Source.Branch)
	assert.Equal(t, "/", body.Source.Path)
	assert.Equal(t, "gh-pages", site.Branch)
}

func TestEnsureEnabledExisting(t *testing.T) {
	c, mux := setup(t)
	mux.HandleFunc("/repos/alice/site/pages", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("unexpected %s", r.Method)
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"html_url": "https://alice.github.io/site/",
			"status":   "built",
			"public":   true,
			"source":   map[string]string{"branch": "gh-pages", "path": "/"},
		})
	})

	site, err := c.EnsureEnabled(context.Background(), "alice", "site", "gh-pages")
	require.NoError(t, err)
	assert.False(t, site.Created)
	assert.Equal(t, "built", site.Status)
	assert.True(t, site.Public)
}

func TestWaitForBuild(t *testing.T) {
	c, mux := setup(t)
	var calls int32
	mux.HandleFunc("/repos/alice/site/pages/builds/latest", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		switch n {
		case 1:
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		case 2:
			writeJSON(w, http.StatusOK, map[string]interface{}{"status": "building", "commit": "abc"})
		default:
			w.Header().Set("X-RateLimit-Limit", "5000")
			w.Header().Set("X-RateLimit-Remaining", "4990")
			w.Header().Set("X-RateLimit-Reset", "1743069412")
			writeJSON(w, http.StatusOK, map[string]interface{}{"status": "built", "commit": "abc", "duration": 1500})
		}
	})

	b, err := c.WaitForBuild(context.Background(), "alice", "site", time.Millisecond, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, BuildBuilt, b.Status)
	remaining, reset := c.rateLimiter.CheckLimit()
	assert.Equal(t, 4990, remaining)
	assert.Equal(t, int64(1743069412), reset.Unix())
	assert.Equal(t, "abc", b.Commit)
	assert.Equal(t, 1500*time.Millisecond, b.Duration)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestWaitForBuildErrored(t *testing.T) {
	c, mux := setup(t)
	mux.HandleFunc("/repos/alice/site/pages/builds/latest", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": "errored",
			"error":  map[string]string{"message": "Page build failed."},
		})
	})

	b, err := c.WaitForBuild(context.Background(), "alice", "site", time.Millisecond, time.Minute)
	require.NoError(t, err)
	assert.True(t, b.Finished())
	assert.Equal(t, "Page build failed.", b.Error)
}

func TestWaitForBuildTimeout(t *testing.T) {
	c, mux := setup(t)
	mux.HandleFunc("/repos/alice/site/pages/builds/latest", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "queued"})
	})

	b, err := c.WaitForBuild(context.Background(), "alice", "site", time.Millisecond, 0)
	assert.ErrorIs(t, err, ErrWaitTimeout)
	require.NotNil(t, b)
	assert.Equal(t, BuildQueued, b.Status)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(0, nil)
	reset := time.Now().Add(time.Hour)
	rl.UpdateLimit(3, reset)

	remaining, at := rl.CheckLimit()
	assert.Equal(t, 3, remaining)
	assert.True(t, reset.Equal(at))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, rl.Wait(ctx), context.Canceled)

	rl.UpdateLimit(100, reset)
	assert.NoError(t, rl.Wait(context.Background()))
}
