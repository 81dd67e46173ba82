package media

import (
	"errors"
	"fmt"
)

// ErrMissingAsset is returned when a required input file does not exist
var ErrMissingAsset = errors.New("asset missing")

// ErrMisconfigured marks errors no retry can fix. They are never reported as external.
var ErrMisconfigured = errors.New("misconfigured")

// ProbeError reports a failed duration measurement
type ProbeError struct {
	Path string
	Err  error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %s: %v", e.Path, e.Err)
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

// ExternalServiceError reports a failed call to the media toolkit or the speech provider.
// Op names the operation, Target the input it was working on.
type ExternalServiceError struct {
	Op     string
	Target string
	Err    error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Target, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// IsExternal reports whether err came from an external collaborator
func IsExternal(err error) bool {
	var ext *ExternalServiceError
	return errors.As(err, &ext)
}

func missing(path string) error {
	return fmt.Errorf("%w: %s", ErrMissingAsset, path)
}
