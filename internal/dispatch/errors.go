package dispatch

import "fmt"

// Client-facing details.
const (
	DetailInvalidModel    = "Invalid model provided"
	DetailUnsupportedTask = "Unsupported task"
	DetailNoValidResponse = "I'm sorry, no valid response was possible from the workers :/"
)

// ValidationError means the request could not be turned into a dispatchable
// query. Detail is safe to return to the client.
type ValidationError struct {
	QueryID string
	Detail  string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("query %s invalid: %s: %v", e.QueryID, e.Detail, e.Err)
	}
	return fmt.Sprintf("query %s invalid: %s", e.QueryID, e.Detail)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// AdmissionRejected means the operation's blacklist refused the caller.
type AdmissionRejected struct {
	QueryID string
	Reason  string
}

func (e *AdmissionRejected) Error() string {
	return fmt.Sprintf("query %s rejected: %s", e.QueryID, e.Reason)
}

// NoValidResponse means no envelope was obtained from forward.
type NoValidResponse struct {
	QueryID string
	Cause   string
}

func (e *NoValidResponse) Error() string {
	return fmt.Sprintf("query %s produced no response: %s", e.QueryID, e.Cause)
}
