package replication

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	appctx "purchases/internal/core/context"
	"purchases/internal/domain"
	"purchases/internal/infrastructure/queue"
	"purchases/pkg/logger"
)

// NotImplemented is the outcome of a job whose process has no handler.
const NotImplemented = "process not implemented"

// Consumer reserves jobs from a durable queue and settles them.
type Consumer interface {
	Reserve(ctx context.Context, queue string, timeout time.Duration) (*queue.Job, error)
	Ack(ctx context.Context, job *queue.Job) error
	Nack(ctx context.Context, job *queue.Job, cause error) (deadLettered bool, err error)
}

// WorkerConfig configures the reception worker.
type WorkerConfig struct {
	Queues         []string
	Concurrency    int
	ReserveTimeout time.Duration
	// ErrorBackoff is the pause after a failed Reserve.
	ErrorBackoff time.Duration
}

// Worker consumes envelopes from the inbound queues and dispatches them to
// the registry. It does not retry; failed jobs are nacked and the queue
// applies its retry and dead-letter policy.
type Worker struct {
	consumer Consumer
	registry *Registry
	cfg      WorkerConfig
	recent   *RecentJobs
	log      *logger.Logger
}

// NewWorker creates a worker.
func NewWorker(consumer Consumer, registry *Registry, cfg WorkerConfig, log *logger.Logger) *Worker {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.ReserveTimeout <= 0 {
		cfg.ReserveTimeout = 5 * time.Second
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = time.Second
	}
	return &Worker{
		consumer: consumer,
		registry: registry,
		cfg:      cfg,
		recent:   NewRecentJobs(100),
		log:      log.WithComponent("reception-worker"),
	}
}

// Recent returns the ring of recently finished jobs.
func (w *Worker) Recent() *RecentJobs {
	return w.recent
}

// ProcessJob dispatches env to its handler. An unknown process is logged and
// resolved with NotImplemented so the queue never retries it.
func (w *Worker) ProcessJob(ctx context.Context, env Envelope) (Result, error) {
	ctx, span := tracer.Start(ctx, "replication.process",
		trace.WithAttributes(
			attribute.String("replication.process", string(env.Process)),
			attribute.String("replication.source", string(env.Source)),
		))
	defer span.End()

	h, ok := w.registry.Lookup(env.Process)
	if !ok {
		logger.Error(ctx, "process not implemented", "process", env.Process, "source", env.Source)
		return Result{Process: env.Process, Message: NotImplemented}, nil
	}

	result, err := h.Handle(ctx, env)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{Process: env.Process}, err
	}
	if result.Summary != nil {
		span.SetAttributes(
			attribute.Int("replication.ok", result.Summary.OKCount),
			attribute.Int("replication.ko", result.Summary.KOCount),
		)
	}
	return result, nil
}

// Run consumes every configured queue with Concurrency loops each until ctx
// is cancelled. Jobs in flight at cancellation run to completion.
func (w *Worker) Run(ctx context.Context) error {
	if len(w.cfg.Queues) == 0 {
		return errors.New("reception worker: no queues configured")
	}

	w.log.Infow("reception worker started",
		"queues", w.cfg.Queues,
		"concurrency", w.cfg.Concurrency,
		"processes", w.registry.Processes(),
	)

	g, ctx := errgroup.WithContext(ctx)
	for _, name := range w.cfg.Queues {
		for range w.cfg.Concurrency {
			g.Go(func() error {
				w.loop(ctx, name)
				return nil
			})
		}
	}
	err := g.Wait()
	w.log.Info("reception worker stopped")
	return err
}

func (w *Worker) loop(ctx context.Context, queueName string) {
	for ctx.Err() == nil {
		job, err := w.consumer.Reserve(ctx, queueName, w.cfg.ReserveTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.log.Errorw("reserve failed", "queue", queueName, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.cfg.ErrorBackoff):
			}
			continue
		}
		if job == nil {
			continue
		}

		w.handle(context.WithoutCancel(ctx), job)
	}
}

func (w *Worker) handle(ctx context.Context, job *queue.Job) {
	start := time.Now()

	env, err := ParseEnvelope(job.Data)
	jobCtx := &appctx.JobContext{
		JobID:    job.ID,
		Queue:    job.Queue,
		Process:  string(env.Process),
		Attempts: job.Attempts,
	}
	ctx = appctx.WithJob(logger.WithLogger(ctx, w.log), jobCtx)

	var result Result
	if err == nil {
		logger.Info(ctx, "processJob: starting process...")
		result, err = w.ProcessJob(ctx, env)
	}

	record := JobRecord{
		JobID:          job.ID,
		Queue:          job.Queue,
		Process:        env.Process,
		Attempts:       job.Attempts + 1,
		Message:        result.Message,
		Summary:        result.Summary,
		RuntimeSeconds: time.Since(start).Seconds(),
		FinishedAt:     time.Now().UTC(),
	}

	if err != nil {
		record.Error = err.Error()
		w.recent.Add(record)

		dead, nackErr := w.consumer.Nack(ctx, job, err)
		if nackErr != nil {
			logger.Error(ctx, "processJob: nack failed", "error", nackErr)
		}
		logger.Error(ctx, "processJob: error",
			"error", err,
			"dead_lettered", dead,
			"runtime_seconds", record.RuntimeSeconds,
		)
		return
	}

	w.recent.Add(record)
	if ackErr := w.consumer.Ack(ctx, job); ackErr != nil {
		logger.Error(ctx, "processJob: ack failed", "error", ackErr)
	}

	fields := []any{"runtime_seconds", record.RuntimeSeconds, "response", result.Message}
	if result.Summary != nil {
		fields = append(fields, "summary", result.Summary.String())
	}
	logger.Info(ctx, "processJob: executed", fields...)
}

// JobRecord describes a finished job for diagnostics.
type JobRecord struct {
	JobID          string                 `json:"jobId"`
	Queue          string                 `json:"queue"`
	Process        Process                `json:"process"`
	Attempts       int                    `json:"attempts"`
	Message        string                 `json:"message,omitempty"`
	Error          string                 `json:"error,omitempty"`
	Summary        *domain.ProcessSummary `json:"summary,omitempty"`
	RuntimeSeconds float64                `json:"runtimeSeconds"`
	FinishedAt     time.Time              `json:"finishedAt"`
}

// RecentJobs is a fixed-size ring of the latest job records.
type RecentJobs struct {
	mu    sync.Mutex
	items []JobRecord
	next  int
	full  bool
}

// NewRecentJobs creates a ring holding up to size records.
func NewRecentJobs(size int) *RecentJobs {
	if size < 1 {
		panic(fmt.Sprintf("replication: invalid ring size %d", size))
	}
	return &RecentJobs{items: make([]JobRecord, size)}
}

// Add stores r, evicting the oldest record when full.
func (r *RecentJobs) Add(rec JobRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[r.next] = rec
	r.next = (r.next + 1) % len(r.items)
	if r.next == 0 {
		r.full = true
	}
}

// Snapshot returns the records newest first.
func (r *RecentJobs) Snapshot() []JobRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.next
	if r.full {
		n = len(r.items)
	}
	out := make([]JobRecord, 0, n)
	for i := 1; i <= n; i++ {
		idx := (r.next - i + len(r.items)) % len(r.items)
		out = append(out, r.items[idx])
	}
	return out
}
