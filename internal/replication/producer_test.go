package replication

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"purchases/internal/core/apperror"
)

type fakeEnqueuer struct {
	mu     sync.Mutex
	seq    int
	failOn map[Process]error
	sent   map[string][]Envelope
}

func newFakeEnqueuer() *fakeEnqueuer {
	return &fakeEnqueuer{failOn: map[Process]error{}, sent: map[string][]Envelope{}}
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, queue string, data []byte) (string, error) {
	env, err := ParseEnvelope(data)
	if err != nil {
		return "", err
	}
	if err := f.failOn[env.Process]; err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	f.sent[queue] = append(f.sent[queue], env)
	return fmt.Sprintf("job-%d", f.seq), nil
}

func testRouter() *Router {
	return NewRouter(map[Topic]string{TopicProducts: "products", TopicPurchases: "purchases"})
}

func TestProducer_Send(t *testing.T) {
	enq := newFakeEnqueuer()
	p := NewProducer(enq, testRouter())

	env, err := NewEnvelope(SourcePurchases, ProcessMovementDelete, Ref{ID: "o1"})
	require.NoError(t, err)

	out := p.Send(context.Background(), env)
	require.NoError(t, out.Err)
	assert.Equal(t, "job-1", out.JobID)
	assert.Equal(t, "products", out.Queue)
	assert.Equal(t, ProcessMovementDelete, out.Process)
	assert.Equal(t, []Envelope{env}, enq.sent["products"])
}

func TestProducer_Send_Unroutable(t *testing.T) {
	enq := newFakeEnqueuer()
	p := NewProducer(enq, testRouter())

	out := p.Send(context.Background(), Envelope{Source: SourcePurchases, Process: "orderArchive", JSONData: "{}"})
	require.Error(t, out.Err)
	assert.True(t, IsUnroutable(out.Err))
	assert.True(t, apperror.HasCode(out.Err, apperror.CodeUnroutableProcess))
	assert.Empty(t, enq.sent)
}

func TestProducer_Send_EnqueueFailure(t *testing.T) {
	enq := newFakeEnqueuer()
	enq.failOn[ProcessMovementUpdate] = errors.New("connection refused")
	p := NewProducer(enq, testRouter())

	out := p.Send(context.Background(), Envelope{Source: SourcePurchases, Process: ProcessMovementUpdate, JSONData: "[]"})
	require.Error(t, out.Err)
	assert.True(t, apperror.HasCode(out.Err, apperror.CodeReplicationFailure))
	assert.Contains(t, out.Err.Error(), "connection refused")
}

func TestProducer_SendAll_DoesNotAbort(t *testing.T) {
	enq := newFakeEnqueuer()
	enq.failOn[ProcessMovementUpdate] = errors.New("boom")
	p := NewProducer(enq, testRouter())

	envs := []Envelope{
		{Source: SourcePurchases, Process: ProcessMovementUpdate, JSONData: "[]"},
		{Source: SourcePurchases, Process: ProcessMovementDelete, JSONData: `{"id":"o1"}`},
		{Source: SourcePurchases, Process: ProcessProductCostUpdate, JSONData: "[]"},
	}
	outcomes := p.SendAll(context.Background(), envs)
	require.Len(t, outcomes, 3)
	assert.False(t, outcomes[0].OK())
	assert.True(t, outcomes[1].OK())
	assert.True(t, outcomes[2].OK())
	assert.Len(t, enq.sent["products"], 2)
	assert.Error(t, FirstError(outcomes))
}

func TestProducer_SendMessages_CombinedString(t *testing.T) {
	enq := newFakeEnqueuer()
	enq.failOn[ProcessMovementDelete] = errors.New("boom")
	p := NewProducer(enq, testRouter())

	got := p.SendMessages(context.Background(), []Envelope{
		{Source: SourcePurchases, Process: ProcessMovementUpdate, JSONData: "[]"},
		{Source: SourcePurchases, Process: ProcessMovementDelete, JSONData: "{}"},
	})

	assert.Contains(t, got, "0 job success job generated, id=job-1|")
	assert.Contains(t, got, "1 job failed: ")
	assert.Contains(t, got, "boom")
}

func TestFirstError_AllOK(t *testing.T) {
	assert.NoError(t, FirstError([]Outcome{{JobID: "a"}, {JobID: "b"}}))
	assert.NoError(t, FirstError(nil))
}

func TestProducer_Forward(t *testing.T) {
	enq := newFakeEnqueuer()
	p := NewProducer(enq, testRouter())

	env, err := NewEnvelope(SourcePurchases, ProcessMovementUpdate, []Movement{})
	require.NoError(t, err)
	raw, err := env.Marshal()
	require.NoError(t, err)

	require.NoError(t, p.Forward(context.Background(), raw))
	assert.Equal(t, []Envelope{env}, enq.sent["products"])

	assert.Error(t, p.Forward(context.Background(), []byte("not json")))
}
