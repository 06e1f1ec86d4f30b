package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kurihiro0119/pages-deploy/internal/aggregator"
	"github.com/kurihiro0119/pages-deploy/internal/domain"
	apperrors "github.com/kurihiro0119/pages-deploy/internal/errors"
	"github.com/kurihiro0119/pages-deploy/internal/storage"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Handler handles API requests
type Handler struct {
	storage    storage.Storage
	aggregator aggregator.Aggregator
}

// NewHandler creates a new API handler
func NewHandler(store storage.Storage, agg aggregator.Aggregator) *Handler {
	return &Handler{
		storage:    store,
		aggregator: agg,
	}
}

// ListDeployments returns the deployment history, newest first
// GET /api/v1/deployments?owner=&repo=&status=&since=YYYY-MM-DD&limit=
func (h *Handler) ListDeployments(c *gin.Context) {
	filter, err := parseFilter(c)
	if err != nil {
		respondError(c, err)
		return
	}

	deployments, err := h.storage.ListDeployments(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	if deployments == nil {
		deployments = []*domain.Deployment{}
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  deployments,
		"count": len(deployments),
	})
}

// GetDeployment returns a single deployment
// GET /api/v1/deployments/:id
func (h *Handler) GetDeployment(c *gin.Context) {
	deployment, err := h.storage.GetDeployment(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": deployment,
	})
}

// GetRepoStats returns aggregated stats for one repository
// GET /api/v1/repos/:owner/:repo/stats?since=YYYY-MM-DD
func (h *Handler) GetRepoStats(c *gin.Context) {
	since, err := parseSince(c)
	if err != nil {
		respondError(c, err)
		return
	}

	stats, err := h.aggregator.RepoStats(c.Request.Context(), c.Param("owner"), c.Param("repo"), since)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": stats,
	})
}

// ListRepoStats returns aggregated stats for every repository
// GET /api/v1/stats?since=YYYY-MM-DD
func (h *Handler) ListRepoStats(c *gin.Context) {
	since, err := parseSince(c)
	if err != nil {
		respondError(c, err)
		return
	}

	stats, err := h.aggregator.AllRepoStats(c.Request.Context(), since)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": stats,
	})
}

// HealthCheck returns the health status
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// parseFilter parses the history filter from query parameters
func parseFilter(c *gin.Context) (domain.DeploymentFilter, error) {
	filter := domain.DeploymentFilter{
		Owner: c.Query("owner"),
		Repo:  c.Query("repo"),
		Limit: defaultLimit,
	}

	switch status := domain.DeployStatus(c.Query("status")); status {
	case "", domain.DeployStatusSucceeded, domain.DeployStatusFailed:
		filter.Status = status
	default:
		return filter, apperrors.NewBadRequestError("status must be succeeded or failed")
	}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return filter, apperrors.NewBadRequestError("limit must be a positive integer")
		}
		if limit > maxLimit {
			limit = maxLimit
		}
		filter.Limit = limit
	}

	since, err := parseSince(c)
	if err != nil {
		return filter, err
	}
	filter.Since = since

	return filter, nil
}

// parseSince parses the optional since date (YYYY-MM-DD or RFC 3339)
func parseSince(c *gin.Context) (time.Time, error) {
	raw := c.Query("since")
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Time{}, apperrors.NewBadRequestError("since must be YYYY-MM-DD or RFC 3339")
}

// respondError sends an error response
func respondError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		appErr = apperrors.NewInternalError(err.Error(), err)
	}

	status := http.StatusInternalServerError
	switch appErr.Code {
	case apperrors.ErrCodeNotFound:
		status = http.StatusNotFound
	case apperrors.ErrCodeUnauthorized:
		status = http.StatusUnauthorized
	case apperrors.ErrCodeBadRequest, apperrors.ErrCodeParse:
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    appErr.Code,
			"message": appErr.Message,
		},
	})
}
