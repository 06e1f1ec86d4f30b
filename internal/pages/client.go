// Package pages talks to the GitHub REST API about a repository's Pages site.
package pages

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/go-github/v55/github"
	"golang.org/x/oauth2"
)

// Pages build statuses reported by the API
const (
	BuildQueued   = "queued"
	BuildBuilding = "building"
	BuildBuilt    = "built"
	BuildErrored  = "errored"
)

// ErrWaitTimeout is returned when a Pages build does not finish in time
var ErrWaitTimeout = errors.New("timed out waiting for pages build")

// Site describes a repository's Pages configuration
type Site struct {
	URL     string `json:"url"`
	Status  string `json:"status"`
	Branch  string `json:"branch"`
	Path    string `json:"path"`
	Public  bool   `json:"public"`
	HTTPS   bool   `json:"https_enforced"`
	Created bool   `json:"-"`
}

// Build is the latest Pages build of a repository
type Build struct {
	Status    string        `json:"status"`
	Commit    string        `json:"commit"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
	CreatedAt time.Time     `json:"created_at"`
}

// Finished reports whether the build reached a terminal status
func (b *Build) Finished() bool {
	return b.Status == BuildBuilt || b.Status == BuildErrored
}

// Client is the subset of the GitHub API the deploy workflow uses
type Client interface {
	// AuthenticatedUser returns the login of the token owner
	AuthenticatedUser(ctx context.Context) (string, error)

	// Info returns the Pages site of a repository
	Info(ctx context.Context, owner, repo string) (*Site, error)

	// EnsureEnabled enables Pages from branch at "/" when the site does not exist yet
	EnsureEnabled(ctx context.Context, owner, repo, branch string) (*Site, error)

	// LatestBuild returns the most recent Pages build
	LatestBuild(ctx context.Context, owner, repo string) (*Build, error)

	// WaitForBuild polls LatestBuild until it is built or errored
	WaitForBuild(ctx context.Context, owner, repo string, interval, timeout time.Duration) (*Build, error)
}

// githubClient implements Client using go-github
type githubClient struct {
	client      *github.Client
	rateLimiter RateLimiter
	log         *slog.Logger
}

// NewClient creates a new GitHub Pages client authenticated with token
func NewClient(token string, log *slog.Logger) Client {
	ctx := context.Background()
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(ctx, ts)
	return newClient(github.NewClient(tc), log)
}

func newClient(gh *github.Client, log *slog.Logger) *githubClient {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &githubClient{
		client:      gh,
		rateLimiter: NewRateLimiter(100*time.Millisecond, log),
		log:         log,
	}
}

// AuthenticatedUser returns the login of the token owner
func (c *githubClient) AuthenticatedUser(ctx context.Context) (string, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return "", err
	}

	user, resp, err := c.client.Users.Get(ctx, "")
	c.updateRateLimitFromResponse(resp)
	if err != nil {
		return "", fmt.Errorf("failed to get authenticated user: %w", err)
	}
	return user.GetLogin(), nil
}

// Info returns the Pages site of a repository
func (c *githubClient) Info(ctx context.Context, owner, repo string) (*Site, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	p, resp, err := c.client.Repositories.GetPagesInfo(ctx, owner, repo)
	c.updateRateLimitFromResponse(resp)
	if err != nil {
		if isNotFound(resp) {
			return nil, &NotEnabledError{Owner: owner, Repo: repo}
		}
		return nil, fmt.Errorf("failed to get pages info for %s/%s: %w", owner, repo, err)
	}
	return toSite(p), nil
}

// EnsureEnabled enables Pages when the repository has no site yet
func (c *githubClient) EnsureEnabled(ctx context.Context, owner, repo, branch string) (*Site, error) {
	site, err := c.Info(ctx, owner, repo)
	var notEnabled *NotEnabledError
	if !errors.As(err, &notEnabled) {
		return site, err
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	c.log.Debug("enabling pages", "repo", owner+"/"+repo, "branch", branch)
	p, resp, err := c.client.Repositories.EnablePages(ctx, owner, repo, &github.Pages{
		Source: &github.PagesSource{
			Branch: github.String(branch),
			Path:   github.String("/"),
		},
	})
	c.updateRateLimitFromResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to enable pages for %s/%s: %w", owner, repo, err)
	}

	site = toSite(p)
	site.Created = true
	return site, nil
}

// LatestBuild returns the most recent Pages build
func (c *githubClient) LatestBuild(ctx context.Context, owner, repo string) (*Build, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	b, resp, err := c.client.Repositories.GetLatestPagesBuild(ctx, owner, repo)
	c.updateRateLimitFromResponse(resp)
	if err != nil {
		if isNotFound(resp) {
			return nil, &NotEnabledError{Owner: owner, Repo: repo}
		}
		return nil, fmt.Errorf("failed to get latest pages build for %s/%s: %w", owner, repo, err)
	}

	return &Build{
		Status:    b.GetStatus(),
		Commit:    b.GetCommit(),
		Error:     b.GetError().GetMessage(),
		Duration:  time.Duration(b.GetDuration()) * time.Millisecond,
		CreatedAt: b.GetCreatedAt().Time,
	}, nil
}

// WaitForBuild polls until the latest build is finished, ctx ends or timeout elapses.
// A build that is not yet visible counts as pending.
func (c *githubClient) WaitForBuild(ctx context.Context, owner, repo string, interval, timeout time.Duration) (*Build, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last *Build
	for {
		b, err := c.LatestBuild(ctx, owner, repo)
		var notEnabled *NotEnabledError
		switch {
		case errors.As(err, &notEnabled):
		case err != nil:
			return last, err
		default:
			last = b
			remaining, reset := c.rateLimiter.CheckLimit()
			c.log.Debug("pages build", "repo", owner+"/"+repo, "status", b.Status,
				"rate_remaining", remaining, "rate_reset", reset)
			if b.Finished() {
				return b, nil
			}
		}

		if !time.Now().Before(deadline) {
			return last, ErrWaitTimeout
		}

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
		}
	}
}

// updateRateLimitFromResponse updates the rate limiter from API response
func (c *githubClient) updateRateLimitFromResponse(resp *github.Response) {
	if resp != nil && resp.Rate.Limit > 0 {
		c.rateLimiter.UpdateLimit(resp.Rate.Remaining, resp.Rate.Reset.Time)
	}
}

// NotEnabledError means the repository has no Pages site
type NotEnabledError struct {
	Owner string
	Repo  string
}

func (e *NotEnabledError) Error() string {
	return fmt.Sprintf("pages is not enabled for %s/%s", e.Owner, e.Repo)
}

func isNotFound(resp *github.Response) bool {
	return resp != nil && resp.StatusCode == http.StatusNotFound
}

func toSite(p *github.Pages) *Site {
	return &Site{
		URL:    p.GetHTMLURL(),
		Status: p.GetStatus(),
		Branch: p.GetSource().GetBranch(),
		Path:   p.GetSource().GetPath(),
		Public: p.GetPublic(),
		HTTPS:  p.GetHTTPSEnforced(),
	}
}
