package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mattjoyce/synapse-gw/internal/events"
	"github.com/mattjoyce/synapse-gw/internal/history"
	"github.com/mattjoyce/synapse-gw/internal/log"
	"github.com/mattjoyce/synapse-gw/internal/metrics"
	"github.com/mattjoyce/synapse-gw/internal/operation"
	"github.com/mattjoyce/synapse-gw/internal/synapse"
	"github.com/mattjoyce/synapse-gw/internal/telemetry"
)

// Recorder persists query state. *history.Store implements it.
type Recorder interface {
	Begin(ctx context.Context, rec history.Record) error
	Transition(ctx context.Context, id string, state history.State, upd history.Update) error
}

// Scheduler orders admitted queries. *scheduler.Scheduler implements it.
type Scheduler interface {
	Acquire(ctx context.Context, score float64) (func(), error)
}

// Request is one inbound query.
type Request struct {
	Task   synapse.Task
	Caller string
	Body   []byte
	// QueryID is generated when empty.
	QueryID string
}

// Result is a projected query.
type Result struct {
	QueryID  string
	State    history.State
	Envelope synapse.Envelope
	// Response is the external shape returned to the client.
	Response any
	Elapsed  time.Duration
}

// Executor runs queries against a sealed operation registry.
type Executor struct {
	registry  *operation.Registry
	scheduler Scheduler
	recorder  Recorder
	hub       *events.Hub
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	logger    *slog.Logger
	newID     func() string
}

// Option configures an Executor.
type Option func(*Executor)

func WithScheduler(s Scheduler) Option { return func(e *Executor) { e.scheduler = s } }

func WithRecorder(r Recorder) Option { return func(e *Executor) { e.recorder = r } }

func WithEvents(h *events.Hub) Option { return func(e *Executor) { e.hub = h } }

func WithMetrics(m *metrics.Metrics) Option { return func(e *Executor) { e.metrics = m } }

func WithLogger(l *slog.Logger) Option { return func(e *Executor) { e.logger = l } }

// WithIDGenerator overrides uuid query ids.
func WithIDGenerator(fn func() string) Option { return func(e *Executor) { e.newID = fn } }

func New(reg *operation.Registry, opts ...Option) *Executor {
	e := &Executor{
		registry: reg,
		tracer:   telemetry.Tracer(),
		logger:   log.WithComponent("dispatch"),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs req to completion. On success the result is in state
// projected; the envelope may still carry an error_message from a failed
// worker call. Errors are *ValidationError, *AdmissionRejected or
// *NoValidResponse.
func (e *Executor) Execute(ctx context.Context, req Request) (*Result, error) {
	id := req.QueryID
	if id == "" {
		id = e.newID()
	}

	ctx, span := e.tracer.Start(ctx, "query.execute", trace.WithAttributes(
		attribute.String("query.id", id),
		attribute.String("query.task", string(req.Task)),
	))
	defer span.End()

	q := &query{
		exec:   e,
		id:     id,
		task:   req.Task,
		caller: req.Caller,
		start:  time.Now(),
		span:   span,
		logger: e.logger.With("query_id", id, "task", string(req.Task)),
	}
	q.begin(ctx)

	// 1. Envelope.
	header := synapse.Header{QueryID: id, Caller: req.Caller, ReceivedAt: q.start.UTC()}
	env, err := synapse.Decode(req.Task, header, req.Body)
	if err != nil {
		detail := err.Error()
		if errors.Is(err, synapse.ErrUnknownTask) {
			detail = DetailUnsupportedTask
		}
		return nil, q.invalid(ctx, detail, err)
	}
	q.engine = string(env.Engine())

	// 2. Engine, before any registry lookup.
	if !synapse.SupportedEngines(req.Task).Supports(env.Engine()) {
		return nil, q.invalid(ctx, DetailInvalidModel, nil)
	}

	// 3. Operation and blacklist.
	op, ok := e.registry.Resolve(req.Task)
	if !ok {
		return nil, q.invalid(ctx, DetailUnsupportedTask, nil)
	}
	q.to(ctx, history.StateValidated, history.Update{Engine: &q.engine}, "")

	if rejected, reason := op.Blacklist(env); rejected {
		q.to(ctx, history.StateRejected, history.Update{Detail: &reason}, reason)
		e.metrics.ObserveRejection(reason)
		span.SetStatus(codes.Error, "rejected")
		return nil, &AdmissionRejected{QueryID: id, Reason: reason}
	}

	// 4. Priority.
	score := op.Priority(env)
	q.priority = score
	q.to(ctx, history.StateAdmitted, history.Update{Priority: &score}, "")
	span.SetAttributes(attribute.Float64("query.priority", score))

	if e.scheduler != nil {
		release, err := e.scheduler.Acquire(ctx, score)
		if err != nil {
			return nil, q.unavailable(ctx, fmt.Sprintf("no dispatch slot: %v", err))
		}
		defer release()
	}

	// 5. Forward.
	q.to(ctx, history.StateDispatched, history.Update{}, "")
	out, cause := e.forward(ctx, op, env)
	if out == nil {
		// 6. No envelope at all.
		return nil, q.unavailable(ctx, cause)
	}

	if msg, failed := out.ErrorMessage(); failed {
		q.to(ctx, history.StateFailed, history.Update{ErrorMessage: &msg}, msg)
	} else {
		q.to(ctx, history.StateCompleted, history.Update{}, "")
	}

	// 7. Projection.
	resp := out.Project()
	q.to(ctx, history.StateProjected, history.Update{}, "")

	return &Result{
		QueryID:  id,
		State:    history.StateProjected,
		Envelope: out,
		Response: resp,
		Elapsed:  time.Since(q.start),
	}, nil
}

// forward calls op.Forward and turns panics and nil envelopes into a cause.
func (e *Executor) forward(ctx context.Context, op operation.Operation, env synapse.Envelope) (out synapse.Envelope, cause string) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			cause = fmt.Sprintf("forward panicked: %v", r)
		}
	}()
	out = op.Forward(ctx, env)
	if out == nil {
		return nil, "forward returned no envelope"
	}
	return out, ""
}
