// Package state records deploy history in SQLite.
package state

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jayteealao/distpush/internal/errors"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/001_initial.sql
var initialMigration string

// Deployment statuses.
const (
	StatusDeploying   = "deploying"
	StatusSucceeded   = "succeeded"
	StatusFailed      = "failed"
	StatusInterrupted = "interrupted"
)

// Store provides deploy history using SQLite.
type Store struct {
	db      *sql.DB
	dataDir string
}

// Deployment is one recorded run of the pipeline.
type Deployment struct {
	ID           string
	Name         string
	Host         string
	WebDir       string
	WorkDir      string
	Revision     string // git revision of WorkDir, when it is a repository
	Status       string
	FailedStage  string
	ErrorMessage string
	StartedAt    time.Time
	FinishedAt   *time.Time
}

// Duration returns how long the run took, or zero while it is in progress.
func (d *Deployment) Duration() time.Duration {
	if d.FinishedAt == nil {
		return 0
	}
	return d.FinishedAt.Sub(d.StartedAt)
}

// New creates a new Store with the given data directory.
// The database file will be created at <dataDir>/distpush.db.
func New(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "distpush.db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't handle concurrent writes well
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	store := &Store{
		db:      db,
		dataDir: dataDir,
	}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DataDir returns the data directory path.
func (s *Store) DataDir() string {
	return s.dataDir
}

func (s *Store) migrate() error {
	var version int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		// Table doesn't exist yet
		version = 0
	}

	if version < 1 {
		if _, err := s.db.Exec(initialMigration); err != nil {
			return fmt.Errorf("failed to run initial migration: %w", err)
		}
	}

	return nil
}

const deploymentColumns = `id, name, host, web_dir, work_dir, revision, status, failed_stage, error_message, started_at, finished_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDeployment(row rowScanner) (*Deployment, error) {
	var d Deployment
	var workDir, revision, failedStage, errorMessage sql.NullString
	var finishedAt sql.NullTime
	if err := row.Scan(
		&d.ID, &d.Name, &d.Host, &d.WebDir, &workDir, &revision,
		&d.Status, &failedStage, &errorMessage, &d.StartedAt, &finishedAt,
	); err != nil {
		return nil, err
	}
	d.WorkDir = workDir.String
	d.Revision = revision.String
	d.FailedStage = failedStage.String
	d.ErrorMessage = errorMessage.String
	if finishedAt.Valid {
		d.FinishedAt = &finishedAt.Time
	}
	return &d, nil
}

// CreateDeployment records the start of a run. ID and StartedAt are filled
// in when empty.
func (s *Store) CreateDeployment(ctx context.Context, d *Deployment) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if d.StartedAt.IsZero() {
		d.StartedAt = time.Now().UTC()
	}
	if d.Status == "" {
		d.Status = StatusDeploying
	}

	query := `
		INSERT INTO deployments (id, name, host, web_dir, work_dir, revision, status, failed_stage, error_message, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		d.ID, d.Name, d.Host, d.WebDir, nullString(d.WorkDir), nullString(d.Revision),
		d.Status, nullString(d.FailedStage), nullString(d.ErrorMessage), d.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create deployment: %w", err)
	}

	return nil
}

// GetDeployment retrieves a deployment by ID.
func (s *Store) GetDeployment(ctx context.Context, id string) (*Deployment, error) {
	query := `SELECT ` + deploymentColumns + ` FROM deployments WHERE id = ?`

	d, err := scanDeployment(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrDeploymentNotFound
		}
		return nil, fmt.Errorf("failed to get deployment: %w", err)
	}
	return d, nil
}

// ListDeployments returns runs, most recent first. An empty name lists runs
// of every project.
func (s *Store) ListDeployments(ctx context.Context, name string, limit int) ([]*Deployment, error) {
	query := `SELECT ` + deploymentColumns + ` FROM deployments`
	var args []interface{}
	if name != "" {
		query += ` WHERE name = ?`
		args = append(args, name)
	}
	query += ` ORDER BY started_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list deployments: %w", err)
	}
	defer rows.Close()

	var deployments []*Deployment
	for rows.Next() {
		d, err := scanDeployment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deployment: %w", err)
		}
		deployments = append(deployments, d)
	}

	return deployments, rows.Err()
}

// FinishDeployment stores the terminal status of a run.
func (s *Store) FinishDeployment(ctx context.Context, id, status, failedStage string, errorMsg *string) error {
	query := `
		UPDATE deployments
		SET status = ?, failed_stage = ?, error_message = ?, finished_at = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		status, nullString(failedStage), nullStringPtr(errorMsg), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update deployment status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return errors.ErrDeploymentNotFound
	}

	return nil
}

// GetInterruptedDeployments returns runs started from workDir that never
// recorded an outcome.
func (s *Store) GetInterruptedDeployments(ctx context.Context, workDir string) ([]*Deployment, error) {
	query := `SELECT ` + deploymentColumns + ` FROM deployments
		WHERE status = ? AND work_dir = ?
		ORDER BY started_at DESC`

	rows, err := s.db.QueryContext(ctx, query, StatusDeploying, workDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list interrupted deployments: %w", err)
	}
	defer rows.Close()

	var deployments []*Deployment
	for rows.Next() {
		d, err := scanDeployment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deployment: %w", err)
		}
		deployments = append(deployments, d)
	}

	return deployments, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
