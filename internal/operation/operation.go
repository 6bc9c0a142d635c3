// Package operation defines the per-task forward/blacklist/priority contract
// and the registry that maps task names onto implementations.
package operation

import (
	"context"
	"time"

	"github.com/mattjoyce/synapse-gw/internal/backend"
	"github.com/mattjoyce/synapse-gw/internal/synapse"
)

//go:generate mockgen -destination=mocks/mock_operation.go -package=mocks github.com/mattjoyce/synapse-gw/internal/operation Backend,Operation

// Operation handles one task.
type Operation interface {
	// Forward produces a new envelope carrying outgoing fields. It never
	// panics outward; every failure becomes an error_message.
	Forward(ctx context.Context, env synapse.Envelope) synapse.Envelope
	// Blacklist reports whether the query must be rejected, and why.
	Blacklist(env synapse.Envelope) (bool, string)
	// Priority scores the query; higher is served first.
	Priority(env synapse.Envelope) float64
}

// Backend performs the outbound worker call.
type Backend interface {
	Call(ctx context.Context, endpoint string, payload any, timeout time.Duration) backend.Result
}

// Admission is the caller-level policy shared by all operations.
type Admission interface {
	Blacklist(caller string) (bool, string)
	Priority(caller string) float64
}

// Base implements Blacklist and Priority by delegating to an Admission
// policy keyed on the envelope's caller. A nil policy admits everyone at
// priority zero.
type Base struct {
	Admission Admission
}

func (b Base) Blacklist(env synapse.Envelope) (bool, string) {
	if b.Admission == nil || env == nil {
		return false, ""
	}
	return b.Admission.Blacklist(env.Header().Caller)
}

func (b Base) Priority(env synapse.Envelope) float64 {
	if b.Admission == nil || env == nil {
		return 0
	}
	return b.Admission.Priority(env.Header().Caller)
}
