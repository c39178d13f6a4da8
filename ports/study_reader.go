package ports

import (
	"context"

	"metabias/internal/likelihood"
)

// StudyReader loads effect estimates and sampling variances from a source.
type StudyReader interface {
	ReadStudies(ctx context.Context) (likelihood.Studies, error)
}
