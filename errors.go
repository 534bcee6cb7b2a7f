package gatewayip

import (
	"errors"
	"fmt"
)

// ErrLocationNotFound is matched by errors.Is for a *LocationNotFoundError.
var ErrLocationNotFound = errors.New("location not found")

// ResolutionError reports that the hostname did not produce a usable address.
type ResolutionError struct {
	Hostname string
	Err      error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("unable to resolve %s: %s", e.Hostname, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// RemoteFetchError reports a failed or malformed read from the gateway API.
// StatusCode is set when the API answered with an error status the client recognizes.
type RemoteFetchError struct {
	StatusCode int
	Err        error
}

func (e *RemoteFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("gateway api returned status %d: %s", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("gateway api request failed: %s", e.Err)
}

func (e *RemoteFetchError) Unwrap() error { return e.Err }

// LocationNotFoundError reports that no location carries the configured name.
type LocationNotFoundError struct {
	Name string
}

func (e *LocationNotFoundError) Error() string {
	return fmt.Sprintf("location '%s' not found", e.Name)
}

func (e *LocationNotFoundError) Is(target error) bool {
	return target == ErrLocationNotFound
}

// RemoteUpdateError reports that the gateway API did not accept an update.
//
// When Err is nil the request completed and the API rejected it;
// Body then holds the raw response for diagnostics.
type RemoteUpdateError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *RemoteUpdateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway update request failed: %s", e.Err)
	}
	return fmt.Sprintf("gateway update rejected with status %d: %s", e.StatusCode, e.Body)
}

func (e *RemoteUpdateError) Unwrap() error { return e.Err }

// Rejected reports whether the API answered the update with a failure.
func (e *RemoteUpdateError) Rejected() bool { return e.Err == nil }
