package aggregator

import (
	"context"
	"sort"
	"time"

	"github.com/kurihiro0119/pages-deploy/internal/domain"
	apperrors "github.com/kurihiro0119/pages-deploy/internal/errors"
	"github.com/kurihiro0119/pages-deploy/internal/storage"
)

// Aggregator defines the interface for summarizing deployment history
type Aggregator interface {
	// RepoStats summarizes the deployments of one repository since the given time
	RepoStats(ctx context.Context, owner, repo string, since time.Time) (*domain.RepoStats, error)

	// AllRepoStats summarizes every repository present in the history
	AllRepoStats(ctx context.Context, since time.Time) ([]*domain.RepoStats, error)
}

// aggregator implements the Aggregator interface
type aggregator struct {
	storage storage.Storage
}

// NewAggregator creates a new aggregator
func NewAggregator(storage storage.Storage) Aggregator {
	return &aggregator{
		storage: storage,
	}
}

// RepoStats summarizes the deployments of one repository
func (a *aggregator) RepoStats(ctx context.Context, owner, repo string, since time.Time) (*domain.RepoStats, error) {
	deployments, err := a.storage.ListDeployments(ctx, domain.DeploymentFilter{
		Owner: owner,
		Repo:  repo,
		Since: since,
	})
	if err != nil {
		return nil, err
	}
	if len(deployments) == 0 {
		return nil, apperrors.NewNotFoundError("deployments for " + owner + "/" + repo)
	}

	return Summarize(owner, repo, deployments), nil
}

// AllRepoStats groups the history by repository and summarizes each group
func (a *aggregator) AllRepoStats(ctx context.Context, since time.Time) ([]*domain.RepoStats, error) {
	deployments, err := a.storage.ListDeployments(ctx, domain.DeploymentFilter{Since: since})
	if err != nil {
		return nil, err
	}

	type key struct{ owner, repo string }
	groups := make(map[key][]*domain.Deployment)
	for _, d := range deployments {
		k := key{d.Owner, d.Repo}
		groups[k] = append(groups[k], d)
	}

	stats := make([]*domain.RepoStats, 0, len(groups))
	for k, ds := range groups {
		stats = append(stats, Summarize(k.owner, k.repo, ds))
	}

	// Most recently deployed first
	sort.Slice(stats, func(i, j int) bool {
		ti, tj := stats[i].LastDeployedAt, stats[j].LastDeployedAt
		if ti.Equal(*tj) {
			return stats[i].FullName() < stats[j].FullName()
		}
		return ti.After(*tj)
	})

	return stats, nil
}

// Summarize computes stats over deployments of a single repository.
// The input order does not matter.
func Summarize(owner, repo string, deployments []*domain.Deployment) *domain.RepoStats {
	stats := &domain.RepoStats{
		Owner:          owner,
		Repo:           repo,
		FailuresByStep: make(map[string]int64),
	}

	var (
		totalDuration time.Duration
		timed         int64
		lastSuccess   *domain.Deployment
		last          *domain.Deployment
	)

	for _, d := range deployments {
		stats.Total++

		switch d.Status {
		case domain.DeployStatusSucceeded:
			stats.Succeeded++
			if lastSuccess == nil || d.StartedAt.After(lastSuccess.StartedAt) {
				lastSuccess = d
			}
		case domain.DeployStatusFailed:
			stats.Failed++
			step := d.FailedStep
			if step == "" {
				step = "unknown"
			}
			stats.FailuresByStep[step]++
		}

		if dur := d.Duration(); dur > 0 {
			totalDuration += dur
			timed++
		}

		if last == nil || d.StartedAt.After(last.StartedAt) {
			last = d
		}
	}

	if stats.Total > 0 {
		stats.SuccessRate = float64(stats.Succeeded) / float64(stats.Total)
	}
	if timed > 0 {
		stats.AverageDuration = totalDuration / time.Duration(timed)
	}
	if last != nil {
		t := last.StartedAt
		stats.LastDeployedAt = &t
	}
	if lastSuccess != nil {
		t := lastSuccess.StartedAt
		stats.LastSuccessAt = &t
		stats.LastURL = lastSuccess.URL
	}

	return stats
}
