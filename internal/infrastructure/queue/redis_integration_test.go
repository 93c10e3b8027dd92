//go:build integration

package queue

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "Failed to start Redis container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	client, err := NewClient(ctx, ClientConfig{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestQueue_EnqueueReserveAck(t *testing.T) {
	rdb := newTestRedis(t)
	ctx := context.Background()
	q := New(rdb, NewLocker(rdb, time.Second), Options{MaxAttempts: 3})

	first, err := q.Enqueue(ctx, "purchases", []byte(`{"n":1}`))
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, "purchases", []byte(`{"n":2}`))
	require.NoError(t, err)

	job, err := q.Reserve(ctx, "purchases", time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, first, job.ID, "jobs are consumed in FIFO order")

	stats, err := q.Stats(ctx, "purchases")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Ready)
	assert.Equal(t, int64(1), stats.Processing)

	require.NoError(t, q.Ack(ctx, job))

	stats, err = q.Stats(ctx, "purchases")
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Processing)
}

func TestQueue_ReserveTimeout(t *testing.T) {
	rdb := newTestRedis(t)
	q := New(rdb, NewLocker(rdb, time.Second), Options{})

	job, err := q.Reserve(context.Background(), "empty", 100*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestQueue_NackRetriesThenDeadLetters(t *testing.T) {
	rdb := newTestRedis(t)
	ctx := context.Background()
	q := New(rdb, NewLocker(rdb, time.Second), Options{MaxAttempts: 2})

	// Pretend time runs far ahead so every retry is due immediately.
	clock := time.Now()
	q.now = func() time.Time { return clock }

	_, err := q.Enqueue(ctx, "purchases", []byte(`{}`))
	require.NoError(t, err)

	job, err := q.Reserve(ctx, "purchases", time.Second)
	require.NoError(t, err)
	dead, err := q.Nack(ctx, job, errors.New("boom"))
	require.NoError(t, err)
	assert.False(t, dead)

	clock = clock.Add(time.Hour)
	n, err := q.PromoteDelayed(ctx, "purchases", 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	job, err = q.Reserve(ctx, "purchases", time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, 1, job.Attempts)
	assert.Equal(t, "boom", job.LastError)

	dead, err = q.Nack(ctx, job, errors.New("boom again"))
	require.NoError(t, err)
	assert.True(t, dead)

	stats, err := q.Stats(ctx, "purchases")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Dead)
	assert.Equal(t, int64(0), stats.Delayed)
	assert.Equal(t, int64(0), stats.Processing)
}

func TestQueue_RecoverStale(t *testing.T) {
	rdb := newTestRedis(t)
	ctx := context.Background()
	q := New(rdb, NewLocker(rdb, time.Second), Options{VisibilityTimeout: time.Minute})

	clock := time.Now()
	q.now = func() time.Time { return clock }

	_, err := q.Enqueue(ctx, "purchases", []byte(`{}`))
	require.NoError(t, err)
	_, err = q.Reserve(ctx, "purchases", time.Second)
	require.NoError(t, err)

	n, err := q.RecoverStale(ctx, "purchases")
	require.NoError(t, err)
	assert.Equal(t, 0, n, "job is still within its visibility timeout")

	clock = clock.Add(2 * time.Minute)
	n, err = q.RecoverStale(ctx, "purchases")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stats, err := q.Stats(ctx, "purchases")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Ready)
	assert.Equal(t, int64(0), stats.Processing)
}

func TestQueue_RecoverStaleStampsUnstampedReservation(t *testing.T) {
	rdb := newTestRedis(t)
	ctx := context.Background()
	q := New(rdb, NewLocker(rdb, time.Second), Options{VisibilityTimeout: time.Minute})

	clock := time.Now()
	q.now = func() time.Time { return clock }

	_, err := q.Enqueue(ctx, "purchases", []byte(`{}`))
	require.NoError(t, err)
	job, err := q.Reserve(ctx, "purchases", time.Second)
	require.NoError(t, err)
	require.NoError(t, rdb.HDel(ctx, reservedKey("purchases"), job.ID).Err())

	n, err := q.RecoverStale(ctx, "purchases")
	require.NoError(t, err)
	assert.Equal(t, 0, n, "an unstamped reservation is stamped, not recovered")

	stamp, err := rdb.HGet(ctx, reservedKey("purchases"), job.ID).Result()
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprint(clock.UnixMilli()), stamp)

	clock = clock.Add(2 * time.Minute)
	n, err = q.RecoverStale(ctx, "purchases")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestLocker_RunExclusive(t *testing.T) {
	rdb := newTestRedis(t)
	ctx := context.Background()
	locker := NewLocker(rdb, 5*time.Second)

	ran, err := locker.RunExclusive(ctx, "lock:test", func(ctx context.Context) error {
		inner, err := locker.RunExclusive(ctx, "lock:test", func(context.Context) error {
			t.Fatal("lock must not be granted twice")
			return nil
		})
		assert.False(t, inner)
		return err
	})
	require.NoError(t, err)
	assert.True(t, ran)
}
