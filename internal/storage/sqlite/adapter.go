package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kurihiro0119/pages-deploy/internal/domain"
	apperrors "github.com/kurihiro0119/pages-deploy/internal/errors"
	"github.com/kurihiro0119/pages-deploy/internal/storage"
)

// sqliteStorage implements the Storage interface for SQLite
type sqliteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (storage.Storage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	s := &sqliteStorage{db: db}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Migrate runs database migrations
func (s *sqliteStorage) Migrate(ctx context.Context) error {
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
		bytes INTEGER NOT NULL DEFAULT 0,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_deployments_owner_repo ON deployments(owner, repo);
	CREATE INDEX IF NOT EXISTS idx_deployments_started_at ON deployments(started_at);
	CREATE INDEX IF NOT EXISTS idx_deployments_status ON deployments(status);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// SaveDeployment saves a deployment
func (s *sqliteStorage) SaveDeployment(ctx context.Context, d *domain.Deployment) error {
	query := `
		INSERT OR REPLACE INTO deployments (id, mode, owner, repo, username, branch, commit_sha, url, status, failed_step, error, file_count, bytes, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	// Timestamps are stored as UTC text, which is what started_at is compared and sorted by.
	var finishedAt sql.NullTime
	if !d.FinishedAt.IsZero() {
		finishedAt = sql.NullTime{Time: d.FinishedAt.UTC(), Valid: true}
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
		d.StartedAt.UTC(),
		finishedAt,
	)
	return err
}

const selectColumns = `id, mode, owner, repo, username, branch, commit_sha, url, status, failed_step, error, file_count, bytes, started_at, finished_at`

// GetDeployment retrieves a deployment by ID
func (s *sqliteStorage) GetDeployment(ctx context.Context, id string) (*domain.Deployment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM deployments WHERE id = ?`, id)
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
func (s *sqliteStorage) ListDeployments(ctx context.Context, filter domain.DeploymentFilter) ([]*domain.Deployment, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Owner != "" {
		where = append(where, "owner = ?")
		args = append(args, filter.Owner)
	}
	if filter.Repo != "" {
		where = append(where, "repo = ?")
		args = append(args, filter.Repo)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if !filter.Since.IsZero() {
		where = append(where, "started_at >= ?")
		args = append(args, filter.Since.UTC())
	}

	query := `SELECT ` + selectColumns + ` FROM deployments`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
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
func (s *sqliteStorage) Close() error {
	return s.db.Close()
}
