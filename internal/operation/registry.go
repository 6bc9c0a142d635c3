package operation

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mattjoyce/synapse-gw/internal/synapse"
)

// Registry maps task names onto operations. It is filled at startup, then
// sealed; after Seal it is read-only.
type Registry struct {
	mu     sync.RWMutex
	ops    map[synapse.Task]Operation
	sealed bool
}

// NewRegistry creates an empty, unsealed registry.
func NewRegistry() *Registry {
	return &Registry{ops: make(map[synapse.Task]Operation)}
}

// Register adds op for task. Registering twice, registering a task without
// an envelope type, or registering after Seal is an error.
func (r *Registry) Register(task synapse.Task, op Operation) error {
	if op == nil {
		return fmt.Errorf("operation for %q is nil", task)
	}
	if !synapse.KnownTask(task) {
		return fmt.Errorf("task %q has no envelope type", task)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("registry is sealed; cannot register %q", task)
	}
	if _, exists := r.ops[task]; exists {
		return fmt.Errorf("task %q already registered", task)
	}
	r.ops[task] = op
	return nil
}

// Seal freezes the registry.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Sealed reports whether Seal has been called.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Resolve returns the operation for task.
func (r *Registry) Resolve(task synapse.Task) (Operation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	op, ok := r.ops[task]
	return op, ok
}

// Tasks returns the registered task names, sorted.
func (r *Registry) Tasks() []synapse.Task {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]synapse.Task, 0, len(r.ops))
	for t := range r.ops {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
