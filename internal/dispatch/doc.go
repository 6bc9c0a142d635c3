// Package dispatch executes gateway queries.
//
// An Executor turns one inbound request into at most one worker call and
// projects the outcome back into the external response shape. Each query
// moves through a fixed state machine:
//
//	received -> validated -> admitted -> dispatched -> completed|failed -> projected
//
// with early exits to invalid (bad body, unsupported engine or task),
// rejected (blacklisted caller) and unavailable (no envelope was produced).
// Every transition is logged, written to the query history when one is
// configured, and published on the events hub.
//
// Error handling:
//   - Malformed body, unsupported engine, unknown task -> *ValidationError
//   - Blacklisted caller -> *AdmissionRejected (forward is never called)
//   - Forward panicked, returned nil, or no slot was obtained -> *NoValidResponse
//   - Worker failure -> success with error_message set on the envelope
//
// There are no retries: a failed worker call is reported, not repeated.
package dispatch
