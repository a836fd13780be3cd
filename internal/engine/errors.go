package engine

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/inodb/vibe-sync/internal/offset"
)

var (
	// ErrCancelled is returned when a build is aborted through its context.
	// It is not a failure: no partial data is published.
	ErrCancelled = errors.New("build cancelled")

	ErrUnknownChromosome = errors.New("unknown chromosome")
	ErrUnknownGenome     = errors.New("unknown genome")
)

func cancelled(cause error) error {
	return fmt.Errorf("%w: %w", ErrCancelled, cause)
}

func isInvariantViolation(err error) bool {
	var iv *offset.InvariantViolationError
	return errors.As(err, &iv)
}

// BuildError reports chromosomes whose construction failed. The other
// chromosomes of the build remain queryable.
type BuildError struct {
	Failures map[string]error
}

func (e *BuildError) Error() string {
	names := make([]string, 0, len(e.Failures))
	for name := range e.Failures {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s: %v", name, e.Failures[name])
	}
	return fmt.Sprintf("%d chromosome(s) failed: %s", len(names), strings.Join(parts, "; "))
}

func (e *BuildError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, err := range e.Failures {
		errs = append(errs, err)
	}
	return errs
}
