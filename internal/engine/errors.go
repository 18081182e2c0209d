package engine

import (
	"errors"
	"fmt"

	"github.com/picklr-io/anfctl/internal/resource"
)

var (
	// ErrCancelled is returned when the caller's context ends a run.
	ErrCancelled = errors.New("operation cancelled")
	// ErrTimedOut is returned when deletion could not be confirmed and the
	// timeout policy treats that as fatal.
	ErrTimedOut = errors.New("deletion not confirmed before retries were exhausted")
)

// StageError ties a failure to the stage and resource it happened on.
type StageError struct {
	Stage Stage
	Ref   resource.Ref
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s %s %q: %v", e.Stage, e.Ref.Kind.DisplayName(), e.Ref.LeafName(), e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// UpdateFailedError is returned by ApplyUpdate. It always aborts a workflow.
type UpdateFailedError struct {
	Ref resource.Ref
	Err error
}

func (e *UpdateFailedError) Error() string {
	return fmt.Sprintf("update of %s %q failed: %v", e.Ref.Kind.DisplayName(), e.Ref.LeafName(), e.Err)
}

func (e *UpdateFailedError) Unwrap() error {
	return e.Err
}

func cancelled(err error) error {
	return fmt.Errorf("%w: %w", ErrCancelled, err)
}
