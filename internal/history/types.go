package history

import "time"

// State is a query's position in the execution state machine.
type State string

const (
	StateReceived    State = "received"
	StateValidated   State = "validated"
	StateInvalid     State = "invalid"
	StateRejected    State = "rejected"
	StateAdmitted    State = "admitted"
	StateDispatched  State = "dispatched"
	StateCompleted   State = "completed"
	StateFailed      State = "failed"
	StateUnavailable State = "unavailable"
	StateProjected   State = "projected"
)

var transitions = map[State][]State{
	StateReceived:   {StateValidated, StateInvalid},
	StateValidated:  {StateAdmitted, StateRejected},
	StateAdmitted:   {StateDispatched, StateUnavailable},
	StateDispatched: {StateCompleted, StateFailed, StateUnavailable},
	StateCompleted:  {StateProjected},
	StateFailed:     {StateProjected},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return len(transitions[s]) == 0
}

// Record is one row of the query log.
type Record struct {
	ID           string    `json:"id"`
	Task         string    `json:"task"`
	Engine       string    `json:"engine"`
	Caller       string    `json:"caller"`
	State        State     `json:"state"`
	Priority     float64   `json:"priority"`
	ErrorMessage *string   `json:"error_message,omitempty"`
	Detail       *string   `json:"detail,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Update carries the optional columns written alongside a transition. Nil
// fields leave the stored value unchanged.
type Update struct {
	Engine       *string
	Priority     *float64
	ErrorMessage *string
	Detail       *string
}
