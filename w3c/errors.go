package w3c

import "fmt"

// UpstreamError reports that the validation service answered with a status
// other than 200 OK.
type UpstreamError struct {
	URL    string
	Status int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s responded with %d", e.URL, e.Status)
}

// TransportError wraps a failure to build the request, reach the validation
// service, or read its response.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("markup validation request failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// MalformedResponseError reports a result page without a verdict heading.
// Page holds the full response body for debugging.
type MalformedResponseError struct {
	Page string
}

func (e *MalformedResponseError) Error() string {
	return "validator result page contains no verdict heading (h2.valid or h2.invalid)"
}
