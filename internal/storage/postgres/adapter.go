package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/lib/pq"

	"github.com/kurihiro0119/pages-deploy/internal/domain"
	apperrors "github.com/kurihiro0119/pages-deploy/internal/errors"
	"github.com/kurihiro0119/pages-deploy/internal/storage"
)

// postgresStorage implements the Storage interface for PostgreSQL
type postgresStorage struct {
	db *sql.DB
}

// NewPostgresStorage creates a new PostgreSQL storage instance
func NewPostgresStorage(connStr string) (storage.Storage, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &postgresStorage{db: db}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Migrate runs database migrations
func (s *postgresStorage) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS deployments (
		id TEXT PRIMARY KEY,
		mode TEXT NOT NULL,
		owner TEXT NOT NULL DEFAULT '',
		repo TEXT NOT NULL DEFAULT '',
		username TEXT NOT NULL DEFAULT '',
		branch TEXT NOT NULL DEFAULT '',
		commit_sha TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		failed_step TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		file_count INTEGER NOT NULL DEFAULT 0,
		bytes BIGINT NOT NULL DEFAULT 0,
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ
	);

	CREATE INDEX IF NOT EXISTS idx_deployments_owner_repo ON deployments(owner, repo);
	CREATE INDEX IF NOT EXISTS idx_deployments_started_at ON deployments(started_at);
	CREATE INDEX IF NOT EXISTS idx_deployments_status ON deployments(status);
	`

	_, err := s.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to migrate deployments: %w", err)
	}
	return nil
}

// SaveDeployment saves a deployment
func (s *postgresStorage) SaveDeployment(ctx context.Context, d *domain.Deployment) error {
	query := `
		INSERT INTO deployments (id, mode, owner, repo, username, branch, commit_sha, url, status, failed_step, error, file_count, bytes, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			owner = EXCLUDED.owner,
			repo = EXCLUDED.repo,
			username = EXCLUDED.username,
			commit_sha = EXCLUDED.commit_sha,
			url = EXCLUDED.url,
			status = EXCLUDED.status,
			failed_step = EXCLUDED.failed_step,
			error = EXCLUDED.error,
			file_count = EXCLUDED.file_count,
			bytes = EXCLUDED.bytes,
			finished_at = EXCLUDED.finished_at
	`
	var finishedAt sql.NullTime
	if !d.FinishedAt.IsZero() {
		finishedAt = sql.NullTime{Time: d.FinishedAt, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, query,
		d.ID,
		string(d.Mode),
		d.Owner,
		d.Repo,
		d.Username,
		d.Branch,
		d.Commit,
		d.URL,
		string(d.Status),
		d.FailedStep,
		d.Error,
		d.FileCount,
		d.Bytes,
		d.StartedAt,
		finishedAt,
	)
	return err
}

const selectColumns = `id, mode, owner, repo, username, branch, commit_sha, url, status, failed_step, error, file_count, bytes, started_at, finished_at`

// GetDeployment retrieves a deployment by ID
func (s *postgresStorage) GetDeployment(ctx context.Context, id string) (*domain.Deployment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM deployments WHERE id = $1`, id)
	d, err := scanDeployment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("deployment " + id)
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// ListDeployments retrieves deployments matching filter, newest first
func (s *postgresStorage) ListDeployments(ctx context.Context, filter domain.DeploymentFilter) ([]*domain.Deployment, error) {
	var (
		where []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.Owner != "" {
		where = append(where, "owner = "+arg(filter.Owner))
	}
	if filter.Repo != "" {
		where = append(where, "repo = "+arg(filter.Repo))
	}
	if filter.Status != "" {
		where = append(where, "status = "+arg(string(filter.Status)))
	}
	if !filter.Since.IsZero() {
		where = append(where, "started_at >= "+arg(filter.Since))
	}

	query := `SELECT ` + selectColumns + ` FROM deployments`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deployments []*domain.Deployment
	for rows.Next() {
		d, err := scanDeployment(rows)
		if err != nil {
			return nil, err
		}
		deployments = append(deployments, d)
	}

	return deployments, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanDeployment(row scanner) (*domain.Deployment, error) {
	var d domain.Deployment
	var mode, status string
	var finishedAt sql.NullTime

	err := row.Scan(&d.ID, &mode, &d.Owner, &d.Repo, &d.Username, &d.Branch, &d.Commit, &d.URL,
		&status, &d.FailedStep, &d.Error, &d.FileCount, &d.Bytes, &d.StartedAt, &finishedAt)
	if err != nil {
		return nil, err
	}

	d.Mode = domain.DeployMode(mode)
	d.Status = domain.DeployStatus(status)
	if finishedAt.Valid {
		d.FinishedAt = finishedAt.Time
	}
	return &d, nil
}

// Close closes the database connection
func (s *postgresStorage) Close() error {
	return s.db.Close()
}
