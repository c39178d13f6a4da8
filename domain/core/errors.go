package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// ErrInvalidArgument covers malformed inputs: mismatched vector lengths,
	// non-positive scales, unsorted cutoffs, mixture weights off the simplex.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrDomain marks inputs inside the accepted shape that still produce an
	// undefined quantity, e.g. a normalizer with zero mass.
	ErrDomain = errors.New("domain error")

	// ErrSamplingStalled is returned when a rejection sampler exhausts its
	// proposal budget without an acceptance.
	ErrSamplingStalled = errors.New("sampling stalled")

	// ErrNumericalInstability is returned when quadrature does not reach the
	// requested tolerance.
	ErrNumericalInstability = errors.New("numerical instability")

	// ErrInvalidPrior marks a rejected prior configuration. It is an
	// ErrInvalidArgument.
	ErrInvalidPrior = fmt.Errorf("%w: prior", ErrInvalidArgument)

	// Not found errors
	ErrNotFound    = errors.New("resource not found")
	ErrFitNotFound = fmt.Errorf("%w: fit", ErrNotFound)
)

// NewInvalidArgument describes which argument was rejected and why.
func NewInvalidArgument(field string, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidArgument, field, reason)
}

// NewInvalidArgumentf is NewInvalidArgument with a formatted reason.
func NewInvalidArgumentf(field string, format string, args ...interface{}) error {
	return NewInvalidArgument(field, fmt.Sprintf(format, args...))
}

// NewInvalidPrior rejects a prior key or value.
func NewInvalidPrior(key string, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidPrior, key, fmt.Sprintf(format, args...))
}

func NewDomainError(reason string) error {
	return fmt.Errorf("%w: %s", ErrDomain, reason)
}

func NewSamplingStalledError(budget int, draw int) error {
	return fmt.Errorf("%w: no acceptance after %d proposals (draw %d)", ErrSamplingStalled, budget, draw)
}

func NewInstabilityError(lo, hi float64, points int, delta float64) error {
	return fmt.Errorf("%w: quadrature on [%g, %g] not converged at %d points (|delta|=%.3g)", ErrNumericalInstability, lo, hi, points, delta)
}

func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

// Error checking helpers
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

func IsInvalidPrior(err error) bool {
	return errors.Is(err, ErrInvalidPrior)
}

func IsDomainError(err error) bool {
	return errors.Is(err, ErrDomain)
}

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsNumericalError reports failures of the numerical machinery rather than of
// the caller's input.
func IsNumericalError(err error) bool {
	return errors.Is(err, ErrSamplingStalled) ||
		errors.Is(err, ErrNumericalInstability)
}
