package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurihiro0119/pages-deploy/internal/domain"
	apperrors "github.com/kurihiro0119/pages-deploy/internal/errors"
)

func newDeployment(id, repo string, status domain.DeployStatus, startedAt time.Time) *domain.Deployment {
	return &domain.Deployment{
		ID:         id,
		Mode:       domain.DeployModeRedeploy,
		Owner:      "alice",
		Repo:       repo,
		Username:   "alice",
		Branch:     "gh-pages",
		Commit:     "3f2a9c1d",
		URL:        "https://alice.github.io/" + repo + "/",
		Status:     status,
		FileCount:  3,
		Bytes:      2048,
		StartedAt:  startedAt,
		FinishedAt: startedAt.Add(42 * time.Second),
	}
}

func TestSaveAndGet(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	defer store.Close()

	started := time.Date(2025, 3, 27, 8, 56, 52, 0, time.UTC)
	want := newDeployment("d1", "site", domain.DeployStatusFailed, started)
	want.FailedStep = "build"
	want.Error = "BUILD_FAILED: Build failed"

	require.NoError(t, store.SaveDeployment(ctx, want))

	got, err := store.GetDeployment(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, want.Repo, got.Repo)
	assert.Equal(t, want.Status, got.Status)
	assert.Equal(t, "build", got.FailedStep)
	assert.Equal(t, want.Error, got.Error)
	assert.Equal(t, int64(2048), got.Bytes)
	assert.True(t, want.StartedAt.Equal(got.StartedAt))
	assert.Equal(t, 42*time.Second, got.Duration())
}

func TestGetMissing(t *testing.T) {
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer store.Close()

	_, err = store.GetDeployment(context.Background(), "nope")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestListDeployments(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer store.Close()

	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveDeployment(ctx, newDeployment("a", "site", domain.DeployStatusSucceeded, base)))
	require.NoError(t, store.SaveDeployment(ctx, newDeployment("b", "site", domain.DeployStatusFailed, base.Add(time.Hour))))
	require.NoError(t, store.SaveDeployment(ctx, newDeployment("c", "blog", domain.DeployStatusSucceeded, base.Add(2*time.Hour))))

	all, err := store.ListDeployments(ctx, domain.DeploymentFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{all[0].ID, all[1].ID, all[2].ID})

	site, err := store.ListDeployments(ctx, domain.DeploymentFilter{Owner: "alice", Repo: "site"})
	require.NoError(t, err)
	assert.Len(t, site, 2)

	failed, err := store.ListDeployments(ctx, domain.DeploymentFilter{Status: domain.DeployStatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "b", failed[0].ID)

	limited, err := store.ListDeployments(ctx, domain.DeploymentFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "c", limited[0].ID)

	recent, err := store.ListDeployments(ctx, domain.DeploymentFilter{Since: base.Add(90 * time.Minute)})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "c", recent[0].ID)
}

func TestSaveReplaces(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer store.Close()

	d := newDeployment("a", "site", domain.DeployStatusFailed, time.Now().UTC())
	require.NoError(t, store.SaveDeployment(ctx, d))
	d.Status = domain.DeployStatusSucceeded
	require.NoError(t, store.SaveDeployment(ctx, d))

	all, err := store.ListDeployments(ctx, domain.DeploymentFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, domain.DeployStatusSucceeded, all[0].Status)
}

func TestListSinceAcrossZones(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer store.Close()

	pacific := time.FixedZone("PDT", -7*60*60)
	tokyo := time.FixedZone("JST", 9*60*60)

	// 2025-03-28 03:00 UTC
	late := time.Date(2025, 3, 27, 20, 0, 0, 0, pacific)
	// 2025-03-27 23:00 UTC, later wall clock text than late
	early := time.Date(2025, 3, 28, 8, 0, 0, 0, tokyo)
	require.NoError(t, store.SaveDeployment(ctx, newDeployment("late", "site", domain.DeployStatusSucceeded, late)))
	require.NoError(t, store.SaveDeployment(ctx, newDeployment("early", "site", domain.DeployStatusFailed, early)))

	since := time.Date(2025, 3, 28, 0, 0, 0, 0, time.UTC)
	recent, err := store.ListDeployments(ctx, domain.DeploymentFilter{Since: since})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "late", recent[0].ID)
	assert.True(t, late.Equal(recent[0].StartedAt))

	all, err := store.ListDeployments(ctx, domain.DeploymentFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, []string{"late", "early"}, []string{all[0].ID, all[1].ID})
}
