package events

import "time"

// Event types published for every query state transition.
const (
	TypeQueryReceived    = "query.received"
	TypeQueryValidated   = "query.validated"
	TypeQueryInvalid     = "query.invalid"
	TypeQueryRejected    = "query.rejected"
	TypeQueryAdmitted    = "query.admitted"
	TypeQueryDispatched  = "query.dispatched"
	TypeQueryCompleted   = "query.completed"
	TypeQueryFailed      = "query.failed"
	TypeQueryUnavailable = "query.unavailable"
	TypeQueryProjected   = "query.projected"
)

// QueryEvent is the payload of every query.* event.
type QueryEvent struct {
	QueryID  string        `json:"query_id"`
	Task     string        `json:"task"`
	Engine   string        `json:"engine,omitempty"`
	Caller   string        `json:"caller,omitempty"`
	State    string        `json:"state"`
	Priority float64       `json:"priority,omitempty"`
	Detail   string        `json:"detail,omitempty"`
	Elapsed  time.Duration `json:"elapsed_ns,omitempty"`
}

// TypeForState maps a query state name onto its event type.
func TypeForState(state string) string {
	return "query." + state
}
