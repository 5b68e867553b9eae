package state

import "context"

// StateStore defines the interface for deploy history storage.
type StateStore interface {
	Close() error
	DataDir() string

	CreateDeployment(ctx context.Context, d *Deployment) error
	GetDeployment(ctx context.Context, id string) (*Deployment, error)
	ListDeployments(ctx context.Context, name string, limit int) ([]*Deployment, error)
	FinishDeployment(ctx context.Context, id, status, failedStage string, errorMsg *string) error
	GetInterruptedDeployments(ctx context.Context, workDir string) ([]*Deployment, error)
}

// Ensure Store implements StateStore
var _ StateStore = (*Store)(nil)
