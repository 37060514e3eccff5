package gitlab

import (
	"errors"
	"fmt"
)

// RemoteError reports a failed exchange with the API: either the request
// never completed (Reason) or the server answered with a status the caller
// does not accept (Status and Body).
type RemoteError struct {
	Method string
	Path   string
	Status string
	Body   string
	Reason string
	// Lookup is set when a read request failed under strict lookups.
	Lookup bool
}

func (e *RemoteError) Error() string {
	if e.Reason != "" {
		if e.Body != "" {
			return e.Reason + "\n" + e.Body
		}
		return e.Reason
	}
	return e.Status + "\n" + e.Body
}

// IsRemoteError reports whether err is or wraps a RemoteError.
func IsRemoteError(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}

func statusError(method, path string, resp *Response) error {
	return &RemoteError{
		Method: method,
		Path:   path,
		Status: resp.Status,
		Body:   string(resp.Body),
	}
}

func lookupError(path string, resp *Response) error {
	return &RemoteError{
		Method: "GET",
		Path:   path,
		Status: resp.Status,
		Body:   string(resp.Body),
		Lookup: true,
	}
}

func decodeError(path string, err error) error {
	return &RemoteError{
		Method: "GET",
		Path:   path,
		Reason: fmt.Sprintf("failed to decode response: %v", err),
		Lookup: true,
	}
}
