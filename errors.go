package assetcache

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyID           = errors.New("assetcache: empty asset id")
	ErrDuplicatePriority = errors.New("assetcache: duplicate backend priority")
	ErrNotSupported      = errors.New("assetcache: operation not supported by backend")
	ErrClosed            = errors.New("assetcache: manager closed")
	ErrNoCreator         = errors.New("assetcache: no backend can create asset")
	ErrNilAsset          = errors.New("assetcache: nil asset")
	ErrNilBackend        = errors.New("assetcache: nil backend")
	ErrInvalidFormat     = errors.New("assetcache: invalid format hint")
)

// BackendError is one backend's failure within a multi-backend operation.
type BackendError struct {
	Backend  string
	Priority int
	Err      error
}

func (e BackendError) Error() string {
	return fmt.Sprintf("%s (priority %d): %v", e.Backend, e.Priority, e.Err)
}

func (e BackendError) Unwrap() error { return e.Err }

// RemoveError lists the backends that failed to remove an id. Backends that
// succeeded are not listed and stay removed.
type RemoveError struct {
	ID       string
	Failures []BackendError
}

func (e *RemoveError) Error() string {
	if len(e.Failures) == 1 {
		return fmt.Sprintf("remove %q: %v", e.ID, e.Failures[0])
	}
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.Error()
	}
	return fmt.Sprintf("remove %q failed on %d backends: %s", e.ID, len(e.Failures), strings.Join(parts, "; "))
}

func (e *RemoveError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f)
	}
	return errs
}
