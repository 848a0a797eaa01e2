package dataset

import (
	"io"

	"github.com/pkg/errors"
)

var (
	// ErrSchemaMismatch is returned when a requested schema cannot be
	// produced from the native schema of a fragment.
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrConstruction is returned for malformed options, fragments or tasks.
	ErrConstruction = errors.New("invalid construction")
	// ErrExecution is returned while consuming a scan when the backing
	// data is unavailable or corrupted.
	ErrExecution = errors.New("scan execution failed")
)

type executionError struct {
	cause error
}

func (e *executionError) Error() string { return ErrExecution.Error() + ": " + e.cause.Error() }

func (e *executionError) Unwrap() error { return e.cause }

func (e *executionError) Is(target error) bool { return target == ErrExecution }

// executionFailed marks err as an execution error while keeping its cause
// reachable through errors.Is and errors.As. io.EOF is returned unchanged.
func executionFailed(err error, format string, args ...any) error {
	if err == nil || err == io.EOF || errors.Is(err, ErrExecution) {
		return err
	}
	return &executionError{cause: errors.Wrapf(err, format, args...)}
}
