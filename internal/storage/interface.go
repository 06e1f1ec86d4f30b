package storage

import (
	"context"

	"github.com/kurihiro0119/pages-deploy/internal/domain"
)

// Storage is the abstract interface for the deployment history
type Storage interface {
	// SaveDeployment inserts or replaces a deployment record
	SaveDeployment(ctx context.Context, d *domain.Deployment) error

	// GetDeployment returns one record, or a NOT_FOUND AppError
	GetDeployment(ctx context.Context, id string) (*domain.Deployment, error)

	// ListDeployments returns matching records, newest first
	ListDeployments(ctx context.Context, filter domain.DeploymentFilter) ([]*domain.Deployment, error)

	// Migration
	Migrate(ctx context.Context) error

	// Connection management
	Close() error
}
