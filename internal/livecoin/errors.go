package livecoin

import (
	"errors"
	"fmt"
)

// ErrUpstreamTimeout is returned when the provider did not answer in time.
var ErrUpstreamTimeout = errors.New("upstream timeout")

// UpstreamError is a non-2xx reply or an undecodable body.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error %d: %s", e.Status, e.Message)
}

// Retryable reports whether another attempt may succeed.
func (e *UpstreamError) Retryable() bool {
	return e.Status == 429 || e.Status >= 500
}

// IsUpstreamError reports whether err carries an *UpstreamError.
func IsUpstreamError(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}
