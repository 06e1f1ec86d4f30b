package aggregator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kurihiro0119/pages-deploy/internal/domain"
	apperrors "github.com/kurihiro0119/pages-deploy/internal/errors"
)

type memStorage struct {
	deployments []*domain.Deployment
}

func (m *memStorage) SaveDeployment(_ context.Context, d *domain.Deployment) error {
	m.deployments = append(m.deployments, d)
	return nil
}

func (m *memStorage) GetDeployment(_ context.Context, id string) (*domain.Deployment, error) {
	for _, d := range m.deployments {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, apperrors.NewNotFoundError("deployment " + id)
}

func (m *memStorage) ListDeployments(_ context.Context, f domain.DeploymentFilter) ([]*domain.Deployment, error) {
	var out []*domain.Deployment
	for _, d := range m.deployments {
		if f.Owner != "" && d.Owner != f.Owner {
			continue
		}
		if f.Repo != "" && d.Repo != f.Repo {
			continue
		}
		if !f.Since.IsZero() && d.StartedAt.Before(f.Since) {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (m *memStorage) Migrate(context.Context) error { return nil }
func (m *memStorage) Close() error                  { return nil }

var base = time.Date(2025, 3, 27, 9, 0, 0, 0, time.UTC)

func run(id, owner, repo string, status domain.DeployStatus, offset, took time.Duration) *domain.Deployment {
	return &domain.Deployment{
		ID:         id,
		Owner:      owner,
		Repo:       repo,
		Status:     status,
		URL:        "https://" + owner + ".github.io/" + repo + "/#" + id,
		StartedAt:  base.Add(offset),
		FinishedAt: base.Add(offset + took),
	}
}

func TestSummarize(t *testing.T) {
	failed := run("b", "alice", "site", domain.DeployStatusFailed, time.Hour, 10*time.Second)
	failed.FailedStep = "build"
	noStep := run("d", "alice", "site", domain.DeployStatusFailed, 3*time.Hour, 0)
	noStep.FinishedAt = time.Time{}

	stats := Summarize("alice", "site", []*domain.Deployment{
		run("c", "alice", "site", domain.DeployStatusSucceeded, 2*time.Hour, 30*time.Second),
		failed,
		run("a", "alice", "site", domain.DeployStatusSucceeded, 0, 20*time.Second),
		noStep,
	})

	assert.Equal(t, "alice/site", stats.FullName())
	assert.Equal(t, int64(4), stats.Total)
	assert.Equal(t, int64(2), stats.Succeeded)
	assert.Equal(t, int64(2), stats.Failed)
	assert.InDelta(t, 0.5, stats.SuccessRate, 1e-9)
	assert.Equal(t, 20*time.Second, stats.AverageDuration)
	require.NotNil(t, stats.LastDeployedAt)
	assert.True(t, base.Add(3*time.Hour).Equal(*stats.LastDeployedAt))
	require.NotNil(t, stats.LastSuccessAt)
	assert.True(t, base.Add(2*time.Hour).Equal(*stats.LastSuccessAt))
	assert.Equal(t, "https://alice.github.io/site/#c", stats.LastURL)
	assert.Equal(t, map[string]int64{"build": 1, "unknown": 1}, stats.FailuresByStep)
}

func TestSummarizeEmpty(t *testing.T) {
	stats := Summarize("alice", "site", nil)
	assert.Zero(t, stats.Total)
	assert.Zero(t, stats.SuccessRate)
	assert.Nil(t, stats.LastDeployedAt)
	assert.Nil(t, stats.LastSuccessAt)
}

func TestRepoStats(t *testing.T) {
	store := &memStorage{deployments: []*domain.Deployment{
		run("a", "alice", "site", domain.DeployStatusSucceeded, 0, time.Second),
		run("b", "alice", "blog", domain.DeployStatusSucceeded, time.Hour, time.Second),
	}}
	agg := NewAggregator(store)

	stats, err := agg.RepoStats(context.Background(), "alice", "site", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Total)

	_, err = agg.RepoStats(context.Background(), "alice", "missing", time.Time{})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestAllRepoStats(t *testing.T) {
	store := &memStorage{deployments: []*domain.Deployment{
		run("a", "alice", "site", domain.DeployStatusSucceeded, 0, time.Second),
		run("b", "alice", "blog", domain.DeployStatusFailed, time.Hour, time.Second),
		run("c", "alice", "site", domain.DeployStatusSucceeded, 2*time.Hour, time.Second),
		run("d", "bob", "docs", domain.DeployStatusSucceeded, -time.Hour, time.Second),
	}}
	agg := NewAggregator(store)

	all, err := agg.AllRepoStats(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "alice/site", all[0].FullName())
	assert.Equal(t, int64(2), all[0].Total)
	assert.Equal(t, "alice/blog", all[1].FullName())
	assert.Equal(t, "bob/docs", all[2].FullName())

	recent, err := agg.AllRepoStats(context.Background(), base.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}
