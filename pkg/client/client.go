package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kurihiro0119/pages-deploy/internal/domain"
	apperrors "github.com/kurihiro0119/pages-deploy/internal/errors"
)

// Client is the API client for the pages-deploy history server
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ListDeployments retrieves deployments matching filter, newest first
func (c *Client) ListDeployments(ctx context.Context, filter domain.DeploymentFilter) ([]*domain.Deployment, error) {
	params := url.Values{}
	if filter.Owner != "" {
		params.Set("owner", filter.Owner)
	}
	if filter.Repo != "" {
		params.Set("repo", filter.Repo)
	}
	if filter.Status != "" {
		params.Set("status", string(filter.Status))
	}
	if !filter.Since.IsZero() {
		params.Set("since", filter.Since.Format(time.RFC3339))
	}
	if filter.Limit > 0 {
		params.Set("limit", strconv.Itoa(filter.Limit))
	}

	var response struct {
		Data []*domain.Deployment `json:"data"`
	}
	if err := c.get(ctx, "/api/v1/deployments", params, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// GetDeployment retrieves one deployment
func (c *Client) GetDeployment(ctx context.Context, id string) (*domain.Deployment, error) {
	var response struct {
		Data *domain.Deployment `json:"data"`
	}
	if err := c.get(ctx, "/api/v1/deployments/"+url.PathEscape(id), nil, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// GetRepoStats retrieves aggregated stats for one repository
func (c *Client) GetRepoStats(ctx context.Context, owner, repo string, since time.Time) (*domain.RepoStats, error) {
	path := fmt.Sprintf("/api/v1/repos/%s/%s/stats", url.PathEscape(owner), url.PathEscape(repo))

	var response struct {
		Data *domain.RepoStats `json:"data"`
	}
	if err := c.get(ctx, path, sinceParams(since), &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// ListRepoStats retrieves aggregated stats for every repository
func (c *Client) ListRepoStats(ctx context.Context, since time.Time) ([]*domain.RepoStats, error) {
	var response struct {
		Data []*domain.RepoStats `json:"data"`
	}
	if err := c.get(ctx, "/api/v1/stats", sinceParams(since), &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// HealthCheck checks if the API is healthy
func (c *Client) HealthCheck(ctx context.Context) error {
	var response struct {
		Status string `json:"status"`
	}
	if err := c.get(ctx, "/health", nil, &response); err != nil {
		return err
	}
	if response.Status != "ok" {
		return fmt.Errorf("unhealthy status: %s", response.Status)
	}
	return nil
}

func sinceParams(since time.Time) url.Values {
	if since.IsZero() {
		return nil
	}
	return url.Values{"since": {since.Format(time.RFC3339)}}
}

func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return err
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}

	return json.NewDecoder(resp.Body).Decode(result)
}

// decodeError turns the server's error envelope back into an AppError so
// callers can test codes such as NOT_FOUND.
func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var envelope struct {
		Error struct {
			Code    apperrors.ErrCode `json:"code"`
			Message string            `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Code != "" {
		return &apperrors.AppError{
			Code:    envelope.Error.Code,
			Message: envelope.Error.Message,
		}
	}
	return fmt.Errorf("API error: %s - %s", resp.Status, string(body))
}
