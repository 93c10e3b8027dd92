package replication

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"purchases/internal/domain"
	"purchases/internal/infrastructure/queue"
	"purchases/pkg/logger"
)

type companyDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type fakeCompanyService struct {
	mu      sync.Mutex
	updated []companyDTO
	removed []string
	failOn  string
}

func (s *fakeCompanyService) EntityName() string { return "company" }

func (s *fakeCompanyService) UpdateBatch(ctx context.Context, items []companyDTO) *domain.ProcessSummary {
	return domain.ForEach(ctx, "updateBatch", items,
		func(c companyDTO) string { return "name=" + c.Name },
		func(_ context.Context, c companyDTO) error {
			if c.Name == s.failOn {
				return errors.New("duplicated name")
			}
			s.mu.Lock()
			defer s.mu.Unlock()
			s.updated = append(s.updated, c)
			return nil
		})
}

func (s *fakeCompanyService) RemoveBatch(ctx context.Context, ids []string) *domain.ProcessSummary {
	return domain.ForEach(ctx, "removeBatch", ids,
		func(id string) string { return "id=" + id },
		func(_ context.Context, id string) error {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.removed = append(s.removed, id)
			return nil
		})
}

func newTestWorker(consumer Consumer, svc *fakeCompanyService) *Worker {
	reg := NewRegistry()
	reg.Register(ProcessCompanyUpdate, UpdateHandler[companyDTO](svc))
	reg.Register(ProcessCompanyDelete, RemoveHandler(svc))
	return NewWorker(consumer, reg, WorkerConfig{
		Queues:         []string{"purchases"},
		ReserveTimeout: 10 * time.Millisecond,
	}, logger.NewNop())
}

func TestWorker_ProcessJob_Update(t *testing.T) {
	svc := &fakeCompanyService{failOn: "Dup"}
	w := newTestWorker(nil, svc)

	env, err := NewEnvelope(SourceAdmin, ProcessCompanyUpdate, []companyDTO{
		{ID: "c1", Name: "Acme"},
		{ID: "c2", Name: "Dup"},
		{ID: "c3", Name: "Globex"},
	})
	require.NoError(t, err)

	res, err := w.ProcessJob(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, "update company executed", res.Message)
	require.NotNil(t, res.Summary)
	assert.Equal(t, 3, res.Summary.Total)
	assert.Equal(t, 2, res.Summary.OKCount)
	assert.Equal(t, 1, res.Summary.KOCount)
	assert.Equal(t, []string{"(0) name=Acme, message=OK", "(2) name=Globex, message=OK"}, res.Summary.OKDetails)
	assert.Equal(t, []string{"(1) name=Dup, error=duplicated name"}, res.Summary.KODetails)
}

func TestWorker_ProcessJob_Remove(t *testing.T) {
	svc := &fakeCompanyService{}
	w := newTestWorker(nil, svc)

	env, err := NewEnvelope(SourceAdmin, ProcessCompanyDelete, []Ref{{ID: "c1"}, {ID: "c2"}})
	require.NoError(t, err)

	res, err := w.ProcessJob(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, "delete company executed", res.Message)
	assert.Equal(t, []string{"c1", "c2"}, svc.removed)
}

func TestWorker_ProcessJob_UnknownProcess(t *testing.T) {
	w := newTestWorker(nil, &fakeCompanyService{})

	res, err := w.ProcessJob(context.Background(), Envelope{Source: SourceSales, Process: "saleUpdate", JSONData: "[]"})
	require.NoError(t, err)
	assert.Equal(t, NotImplemented, res.Message)
	assert.Nil(t, res.Summary)
}

func TestWorker_ProcessJob_MalformedPayload(t *testing.T) {
	w := newTestWorker(nil, &fakeCompanyService{})

	_, err := w.ProcessJob(context.Background(), Envelope{Source: SourceAdmin, Process: ProcessCompanyUpdate, JSONData: "{not json"})
	assert.Error(t, err)
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	reg := NewRegistry()
	h := HandlerFunc(func(context.Context, Envelope) (Result, error) { return Result{}, nil })
	reg.Register(ProcessUserUpdate, h)
	assert.Panics(t, func() { reg.Register(ProcessUserUpdate, h) })
	assert.Equal(t, []Process{ProcessUserUpdate}, reg.Processes())
}

type fakeConsumer struct {
	mu     sync.Mutex
	jobs   []*queue.Job
	acked  []string
	nacked []string
}

func (c *fakeConsumer) push(t *testing.T, jobID string, env Envelope) {
	data, err := env.Marshal()
	require.NoError(t, err)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jobs = append(c.jobs, &queue.Job{ID: jobID, Queue: "purchases", Data: data})
}

func (c *fakeConsumer) Reserve(ctx context.Context, _ string, timeout time.Duration) (*queue.Job, error) {
	c.mu.Lock()
	if len(c.jobs) > 0 {
		job := c.jobs[0]
		c.jobs = c.jobs[1:]
		c.mu.Unlock()
		return job, nil
	}
	c.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(timeout):
		return nil, nil
	}
}

func (c *fakeConsumer) Ack(_ context.Context, job *queue.Job) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.acked = append(c.acked, job.ID)
	return nil
}

func (c *fakeConsumer) Nack(_ context.Context, job *queue.Job, _ error) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nacked = append(c.nacked, job.ID)
	return false, nil
}

func (c *fakeConsumer) settled() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.acked) + len(c.nacked)
}

func TestWorker_Run_AcksAndNacks(t *testing.T) {
	consumer := &fakeConsumer{}
	svc := &fakeCompanyService{}
	w := newTestWorker(consumer, svc)

	update, err := NewEnvelope(SourceAdmin, ProcessCompanyUpdate, []companyDTO{{ID: "c1", Name: "Acme"}})
	require.NoError(t, err)
	consumer.push(t, "j1", update)
	consumer.push(t, "j2", Envelope{Source: SourceAdmin, Process: ProcessCompanyUpdate, JSONData: "oops"})
	consumer.push(t, "j3", Envelope{Source: SourceSales, Process: "saleUpdate", JSONData: "[]"})
	consumer.mu.Lock()
	consumer.jobs = append(consumer.jobs, &queue.Job{ID: "j4", Queue: "purchases", Data: []byte("garbage")})
	consumer.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return consumer.settled() == 4 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.ElementsMatch(t, []string{"j1", "j3"}, consumer.acked)
	assert.ElementsMatch(t, []string{"j2", "j4"}, consumer.nacked)

	recent := w.Recent().Snapshot()
	require.Len(t, recent, 4)
	assert.Equal(t, "j4", recent[0].JobID, "newest first")
	assert.NotEmpty(t, recent[0].Error)
}

func TestWorker_Run_NoQueues(t *testing.T) {
	w := NewWorker(&fakeConsumer{}, NewRegistry(), WorkerConfig{}, logger.NewNop())
	assert.Error(t, w.Run(context.Background()))
}

func TestRecentJobs_Ring(t *testing.T) {
	r := NewRecentJobs(3)
	assert.Empty(t, r.Snapshot())

	for _, id := range []string{"a", "b", "c", "d"} {
		r.Add(JobRecord{JobID: id})
	}

	snap := r.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "d", snap[0].JobID)
	assert.Equal(t, "c", snap[1].JobID)
	assert.Equal(t, "b", snap[2].JobID)
}
