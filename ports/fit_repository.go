package ports

import (
	"context"

	"metabias/domain/core"
	"metabias/domain/model"
)

// FitRepository stores fitted models.
type FitRepository interface {
	// Save persists a fit. Saving the same ID twice is an error.
	Save(ctx context.Context, fit *model.FittedModel) error

	// Get returns core.ErrFitNotFound when no fit has the ID.
	Get(ctx context.Context, id core.FitID) (*model.FittedModel, error)

	// List returns the most recent fits first.
	List(ctx context.Context, limit int) ([]FitSummary, error)

	// FindByFingerprint returns the ids of fits with the same configuration,
	// newest first.
	FindByFingerprint(ctx context.Context, fp core.Hash) ([]core.FitID, error)
}

// FitSummary is the listing view of a stored fit.
type FitSummary struct {
	ID          core.FitID     `json:"id"`
	CreatedAt   core.Timestamp `json:"created_at"`
	Regime      string         `json:"bias"`
	Studies     int            `json:"studies"`
	Fingerprint core.Hash      `json:"fingerprint"`
}
