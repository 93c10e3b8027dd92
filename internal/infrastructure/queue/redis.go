package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"purchases/internal/core/id"
	"purchases/pkg/logger"
)

// ClientConfig holds Redis connection settings.
type ClientConfig struct {
	Addr     string
	Network  string // tcp, tcp4 or tcp6
	Password string
	DB       int
}

// Client retry policy. go-redis treats MaxRetries -1 as "never retry", so an
// unbounded policy is a high cap with capped backoff: transient network errors
// are retried for about a minute before a command fails.
const (
	clientMaxRetries      = 30
	clientMinRetryBackoff = 100 * time.Millisecond
	clientMaxRetryBackoff = 2 * time.Second
)

func clientOptions(cfg ClientConfig) *redis.Options {
	network := cfg.Network
	if network == "" {
		network = "tcp"
	}
	return &redis.Options{
		Network:         network,
		Addr:            cfg.Addr,
		Password:        cfg.Password,
		DB:              cfg.DB,
		MaxRetries:      clientMaxRetries,
		MinRetryBackoff: clientMinRetryBackoff,
		MaxRetryBackoff: clientMaxRetryBackoff,
	}
}

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, cfg ClientConfig) (*redis.Client, error) {
	client := redis.NewClient(clientOptions(cfg))

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// Options configures a Queue.
type Options struct {
	// VisibilityTimeout is how long a reserved job may stay unacked before
	// RecoverStale hands it to another worker.
	VisibilityTimeout time.Duration
	// MaxAttempts moves a job to the dead list once reached.
	MaxAttempts int
}

// Stats is a point-in-time view of one queue.
type Stats struct {
	Queue      string `json:"queue"`
	Ready      int64  `json:"ready"`
	Processing int64  `json:"processing"`
	Delayed    int64  `json:"delayed"`
	Dead       int64  `json:"dead"`
}

// Queue is a durable job queue backed by Redis.
type Queue struct {
	rdb    *redis.Client
	locker *Locker
	opts   Options
	now    func() time.Time
}

// New creates a queue on an existing client.
func New(rdb *redis.Client, locker *Locker, opts Options) *Queue {
	if opts.VisibilityTimeout <= 0 {
		opts.VisibilityTimeout = 5 * time.Minute
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	return &Queue{
		rdb:    rdb,
		locker: locker,
		opts:   opts,
		now:    time.Now,
	}
}

// Ping checks the Redis connection.
func (q *Queue) Ping(ctx context.Context) error {
	return q.rdb.Ping(ctx).Err()
}

// Enqueue appends data to the queue and returns the new job id.
func (q *Queue) Enqueue(ctx context.Context, queue string, data []byte) (string, error) {
	job := &Job{
		ID:         id.NewString(),
		EnqueuedAt: q.now().UTC(),
		Data:       data,
	}
	raw, err := encodeJob(job)
	if err != nil {
		return "", err
	}
	if err := q.rdb.LPush(ctx, queue, raw).Err(); err != nil {
		return "", fmt.Errorf("enqueue to %s: %w", queue, err)
	}
	return job.ID, nil
}

// Reserve blocks up to timeout for the oldest ready job and moves it to the
// processing list. It returns nil, nil when the timeout elapses.
func (q *Queue) Reserve(ctx context.Context, queue string, timeout time.Duration) (*Job, error) {
	raw, err := q.rdb.BLMove(ctx, queue, processingKey(queue), "RIGHT", "LEFT", timeout).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reserve from %s: %w", queue, err)
	}

	job, err := decodeJob(queue, raw)
	if err != nil {
		// Unparseable members can never be acked by id; park them.
		_, pipeErr := q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.LRem(ctx, processingKey(queue), 1, raw)
			pipe.LPush(ctx, deadKey(queue), raw)
			return nil
		})
		if pipeErr != nil {
			logger.Error(ctx, "failed to park malformed job", "queue", queue, "error", pipeErr)
		}
		return nil, err
	}

	ms := strconv.FormatInt(q.now().UnixMilli(), 10)
	if err := q.rdb.HSet(ctx, reservedKey(queue), job.ID, ms).Err(); err != nil {
		return nil, fmt.Errorf("mark job %s reserved: %w", job.ID, err)
	}
	return job, nil
}

// Ack removes a finished job.
func (q *Queue) Ack(ctx context.Context, job *Job) error {
	_, err := q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, processingKey(job.Queue), 1, job.raw)
		pipe.HDel(ctx, reservedKey(job.Queue), job.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("ack job %s: %w", job.ID, err)
	}
	return nil
}

// Nack records a failed attempt. The job is scheduled for a retry after
// Backoff(attempts), or moved to the dead list once MaxAttempts is reached.
// It reports whether the job was dead-lettered.
func (q *Queue) Nack(ctx context.Context, job *Job, cause error) (bool, error) {
	next := *job
	next.Attempts++
	if cause != nil {
		next.LastError = cause.Error()
	}
	raw, err := encodeJob(&next)
	if err != nil {
		return false, err
	}

	dead := next.Attempts >= q.opts.MaxAttempts
	_, err = q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, processingKey(job.Queue), 1, job.raw)
		pipe.HDel(ctx, reservedKey(job.Queue), job.ID)
		if dead {
			pipe.LPush(ctx, deadKey(job.Queue), raw)
			return nil
		}
		due := q.now().Add(Backoff(next.Attempts))
		pipe.ZAdd(ctx, delayedKey(job.Queue), redis.Z{Score: float64(due.UnixMilli()), Member: raw})
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("nack job %s: %w", job.ID, err)
	}
	return dead, nil
}

var promoteScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[2])
for _, member in ipairs(due) do
	redis.call('ZREM', KEYS[1], member)
	redis.call('LPUSH', KEYS[2], member)
end
return #due
`)

// PromoteDelayed moves up to limit due retries back to the ready list.
func (q *Queue) PromoteDelayed(ctx context.Context, queue string, limit int) (int, error) {
	n, err := promoteScript.Run(ctx, q.rdb,
		[]string{delayedKey(queue), queue},
		q.now().UnixMilli(), limit,
	).Int()
	if err != nil {
		return 0, fmt.Errorf("promote delayed jobs of %s: %w", queue, err)
	}
	return n, nil
}

// RecoverStale returns jobs reserved longer than the visibility timeout to
// the ready list. Only one instance scans a queue at a time; when another
// holds the lock the call is a no-op.
func (q *Queue) RecoverStale(ctx context.Context, queue string) (int, error) {
	recovered := 0
	_, err := q.locker.RunExclusive(ctx, "lock:"+queue+":recover", func(ctx context.Context) error {
		n, err := q.recoverStale(ctx, queue)
		recovered = n
		return err
	})
	return recovered, err
}

func (q *Queue) recoverStale(ctx context.Context, queue string) (int, error) {
	members, err := q.rdb.LRange(ctx, processingKey(queue), 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("list processing jobs of %s: %w", queue, err)
	}
	if len(members) == 0 {
		return 0, nil
	}

	reserved, err := q.rdb.HGetAll(ctx, reservedKey(queue)).Result()
	if err != nil {
		return 0, fmt.Errorf("load reservations of %s: %w", queue, err)
	}

	now := q.now()
	recovered := 0
	for _, raw := range members {
		job, err := decodeJob(queue, raw)
		if err != nil {
			continue
		}

		ms, ok := reserved[job.ID]
		if !ok {
			// Reserved but the timestamp write has not landed yet.
			err := q.rdb.HSetNX(ctx, reservedKey(queue), job.ID, strconv.FormatInt(now.UnixMilli(), 10)).Err()
			if err != nil {
				logger.Error(ctx, "stamp reservation failed", "queue", queue, "job_id", job.ID, "error", err)
			}
			continue
		}
		at, err := strconv.ParseInt(ms, 10, 64)
		if err != nil || now.Sub(time.UnixMilli(at)) < q.opts.VisibilityTimeout {
			continue
		}

		_, err = q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.LRem(ctx, processingKey(queue), 1, raw)
			pipe.HDel(ctx, reservedKey(queue), job.ID)
			pipe.RPush(ctx, queue, raw)
			return nil
		})
		if err != nil {
			return recovered, fmt.Errorf("recover job %s: %w", job.ID, err)
		}
		logger.Warn(ctx, "recovered stale job", "queue", queue, "job_id", job.ID)
		recovered++
	}
	return recovered, nil
}

// Stats returns list sizes for queue.
func (q *Queue) Stats(ctx context.Context, queue string) (Stats, error) {
	var ready, processing, delayed, dead *redis.IntCmd
	_, err := q.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		ready = pipe.LLen(ctx, queue)
		processing = pipe.LLen(ctx, processingKey(queue))
		delayed = pipe.ZCard(ctx, delayedKey(queue))
		dead = pipe.LLen(ctx, deadKey(queue))
		return nil
	})
	if err != nil {
		return Stats{}, fmt.Errorf("queue stats of %s: %w", queue, err)
	}
	return Stats{
		Queue:      queue,
		Ready:      ready.Val(),
		Processing: processing.Val(),
		Delayed:    delayed.Val(),
		Dead:       dead.Val(),
	}, nil
}
