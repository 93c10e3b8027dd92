package replication

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"purchases/internal/core/apperror"
	"purchases/pkg/logger"
)

var tracer = otel.Tracer("purchases/replication")

// Enqueuer appends a payload to a named durable queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, queue string, data []byte) (jobID string, err error)
}

// Outcome is the result of sending one envelope.
type Outcome struct {
	Process Process
	Queue   string
	JobID   string
	Err     error
}

// OK reports whether the envelope was enqueued.
func (o Outcome) OK() bool { return o.Err == nil }

// String renders "job generated, id=<id>" or the failure reason.
func (o Outcome) String() string {
	if o.Err != nil {
		return o.Err.Error()
	}
	return "job generated, id=" + o.JobID
}

// Producer routes envelopes to their queue and enqueues them.
type Producer struct {
	enqueuer Enqueuer
	router   *Router
}

// NewProducer creates a producer.
func NewProducer(enqueuer Enqueuer, router *Router) *Producer {
	return &Producer{enqueuer: enqueuer, router: router}
}

// Send enqueues a single envelope. An unknown process yields an Outcome
// wrapping ErrUnroutableProcess; nothing is dropped silently.
func (p *Producer) Send(ctx context.Context, env Envelope) Outcome {
	ctx, span := tracer.Start(ctx, "replication.send",
		trace.WithAttributes(
			attribute.String("replication.process", string(env.Process)),
			attribute.String("replication.source", string(env.Source)),
		))
	defer span.End()

	out := Outcome{Process: env.Process}

	queue, err := p.router.Resolve(env.Process)
	if err != nil {
		out.Err = apperror.NewBusinessRule(apperror.CodeUnroutableProcess, "process has no route").
			WithDetail("process", string(env.Process)).
			WithCause(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error(ctx, "sendMessage: unroutable process", "process", env.Process, "error", err)
		return out
	}
	out.Queue = queue

	data, err := env.Marshal()
	if err != nil {
		out.Err = apperror.NewReplicationFailure(string(env.Process), err)
		span.SetStatus(codes.Error, err.Error())
		return out
	}

	jobID, err := p.enqueuer.Enqueue(ctx, queue, data)
	if err != nil {
		out.Err = apperror.NewReplicationFailure(string(env.Process), err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error(ctx, "sendMessage: enqueue failed", "process", env.Process, "queue", queue, "error", err)
		return out
	}

	out.JobID = jobID
	span.SetAttributes(attribute.String("replication.job_id", jobID))
	logger.Info(ctx, "sendMessage: job generated", "process", env.Process, "queue", queue, "job_id", jobID)
	return out
}

// SendAll sends every envelope independently; one failure never stops the
// others. Outcomes are returned in input order.
func (p *Producer) SendAll(ctx context.Context, envs []Envelope) []Outcome {
	outcomes := make([]Outcome, 0, len(envs))
	for _, env := range envs {
		outcomes = append(outcomes, p.Send(ctx, env))
	}
	return outcomes
}

// Forward sends an envelope stored in wire form, as written to the outbox.
func (p *Producer) Forward(ctx context.Context, payload []byte) error {
	env, err := ParseEnvelope(payload)
	if err != nil {
		return err
	}
	return p.Send(ctx, env).Err
}

// SendMessages sends every envelope and folds the outcomes into one string:
// "<i> job success <detail>|" or "<i> job failed: <reason>|" per envelope.
func (p *Producer) SendMessages(ctx context.Context, envs []Envelope) string {
	return CombineOutcomes(p.SendAll(ctx, envs))
}

// CombineOutcomes renders outcomes in the SendMessages format.
func CombineOutcomes(outcomes []Outcome) string {
	var b strings.Builder
	for i, out := range outcomes {
		if out.OK() {
			fmt.Fprintf(&b, "%d job success %s|", i, out)
			continue
		}
		fmt.Fprintf(&b, "%d job failed: %s|", i, out)
	}
	return b.String()
}

// FirstError returns the first failed outcome's error, or nil.
func FirstError(outcomes []Outcome) error {
	for _, out := range outcomes {
		if out.Err != nil {
			return out.Err
		}
	}
	return nil
}

// IsUnroutable reports whether err came from a process without a route.
func IsUnroutable(err error) bool {
	return errors.Is(err, ErrUnroutableProcess)
}
