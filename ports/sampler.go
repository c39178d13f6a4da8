package ports

import (
	"context"

	"metabias/domain/model"
)

// PosteriorSampler runs MCMC for one model configuration. Implementations
// talk to an external sampler; this module never runs MCMC itself.
type PosteriorSampler interface {
	Sample(ctx context.Context, req model.SamplerRequest) (model.Draws, error)
}
