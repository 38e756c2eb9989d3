// Package gateway defines the contract through which the console reads,
// writes and deploys communities, and the error taxonomy shared by every
// implementation of it.
package gateway

import (
	"context"

	"powerhause/internal/model"
)

// Gateway is the remote community service boundary.
// Every call may fail with ErrTransport in addition to the domain errors
// listed on each method. No implementation retries on its own.
type Gateway interface {
	// List returns every community visible to the caller; empty is not an error.
	List(ctx context.Context) ([]model.Community, error)
	// Get fails with ErrNotFound for an unknown id.
	Get(ctx context.Context, id string) (*model.Community, error)
	// Create fails with ErrValidation for a blank name. The result has status draft.
	Create(ctx context.Context, name, purpose string) (*model.Community, error)
	// Update fails with ErrNotFound or ErrValidation.
	Update(ctx context.Context, id string, fields *model.UpdateFields) (*model.Community, error)
	// Deploy fails with ErrDeployment carrying the server detail.
	Deploy(ctx context.Context, id string) (*model.DeploymentResult, error)
	// PostNow fails with ErrNotFound, or ErrOperation when the community is not active.
	PostNow(ctx context.Context, id string) error
}
