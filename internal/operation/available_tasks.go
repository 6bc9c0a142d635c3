package operation

import (
	"context"

	"github.com/mattjoyce/synapse-gw/internal/synapse"
)

// AvailableTasks lists the tasks registered in a registry. It performs no
// I/O.
type AvailableTasks struct {
	Base
	registry *Registry
}

func NewAvailableTasks(r *Registry, admission Admission) *AvailableTasks {
	return &AvailableTasks{Base: Base{Admission: admission}, registry: r}
}

func (o *AvailableTasks) Forward(_ context.Context, env synapse.Envelope) synapse.Envelope {
	listing, ok := env.(synapse.AvailableTasks)
	if !ok {
		return failOrNil(env)
	}
	tasks := o.registry.Tasks()
	names := make([]string, 0, len(tasks))
	for _, t := range tasks {
		names = append(names, string(t))
	}
	return listing.WithTasks(names)
}
