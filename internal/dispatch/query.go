package dispatch

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mattjoyce/synapse-gw/internal/events"
	"github.com/mattjoyce/synapse-gw/internal/history"
	"github.com/mattjoyce/synapse-gw/internal/synapse"
)

// query tracks one execution through the state machine.
type query struct {
	exec     *Executor
	id       string
	task     synapse.Task
	caller   string
	engine   string
	priority float64
	state    history.State
	outcome  history.State
	start    time.Time
	span     trace.Span
	logger   *slog.Logger
}

func (q *query) begin(ctx context.Context) {
	q.state = history.StateReceived
	q.logger.Info("query received", "caller", q.caller)
	q.span.AddEvent(string(history.StateReceived))

	if r := q.exec.recorder; r != nil {
		err := r.Begin(ctx, history.Record{
			ID:        q.id,
			Task:      string(q.task),
			Caller:    q.caller,
			State:     history.StateReceived,
			CreatedAt: q.start.UTC(),
		})
		if err != nil {
			q.logger.Warn("failed to record query", "error", err)
		}
	}
	q.publish("")
}

// to moves the query to next. Illegal moves are logged and ignored.
func (q *query) to(ctx context.Context, next history.State, upd history.Update, detail string) {
	if !history.CanTransition(q.state, next) {
		q.logger.Error("illegal query transition", "from", q.state, "to", next)
		return
	}
	q.state = next
	if next == history.StateCompleted || next == history.StateFailed {
		q.outcome = next
	}

	args := []any{"state", string(next)}
	if detail != "" {
		args = append(args, "detail", detail)
	}
	if next == history.StateAdmitted {
		args = append(args, "priority", q.priority)
	}
	q.logger.Debug("query transition", args...)
	q.span.AddEvent(string(next))

	if r := q.exec.recorder; r != nil {
		if err := r.Transition(ctx, q.id, next, upd); err != nil {
			q.logger.Warn("failed to record query transition", "state", next, "error", err)
		}
	}
	q.publish(detail)

	if next.Terminal() {
		label := next
		if next == history.StateProjected && q.outcome != "" {
			label = q.outcome
		}
		elapsed := time.Since(q.start)
		q.exec.metrics.ObserveQuery(string(q.task), string(label), elapsed)
		q.logger.Info("query finished", "state", string(label), "elapsed", elapsed)
	}
}

func (q *query) publish(detail string) {
	if q.exec.hub == nil {
		return
	}
	q.exec.hub.Publish(events.QueryEvent{
		QueryID:  q.id,
		Task:     string(q.task),
		Engine:   q.engine,
		Caller:   q.caller,
		State:    string(q.state),
		Priority: q.priority,
		Detail:   detail,
		Elapsed:  time.Since(q.start),
	})
}

func (q *query) invalid(ctx context.Context, detail string, cause error) error {
	upd := history.Update{Detail: &detail}
	if q.engine != "" {
		upd.Engine = &q.engine
	}
	q.to(ctx, history.StateInvalid, upd, detail)
	q.span.SetStatus(codes.Error, detail)
	if cause != nil {
		q.span.RecordError(cause)
	}
	return &ValidationError{QueryID: q.id, Detail: detail, Err: cause}
}

func (q *query) unavailable(ctx context.Context, cause string) error {
	q.to(ctx, history.StateUnavailable, history.Update{Detail: &cause}, cause)
	q.logger.Warn("no valid response", "cause", cause)
	q.span.SetStatus(codes.Error, "unavailable")
	q.span.SetAttributes(attribute.String("query.cause", cause))
	return &NoValidResponse{QueryID: q.id, Cause: cause}
}
