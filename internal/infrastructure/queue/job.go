// Package queue implements a durable job queue on Redis lists.
//
// Layout per queue name q:
//
//	q              ready list (LPUSH in, BLMOVE out: FIFO)
//	q:processing   jobs reserved by a worker and not yet acked
//	q:reserved     hash job id -> reservation time (unix ms)
//	q:delayed      sorted set of jobs waiting for a retry, scored by due time
//	q:dead         jobs that exhausted their attempts
//
// Delivery is at least once: a worker that dies between Reserve and Ack
// leaves the job in q:processing until RecoverStale moves it back.
package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// Job is a queued unit of work. Data is the opaque payload (an envelope).
type Job struct {
	ID         string          `json:"id"`
	Attempts   int             `json:"attempts"`
	EnqueuedAt time.Time       `json:"enqueuedAt"`
	LastError  string          `json:"lastError,omitempty"`
	Data       json.RawMessage `json:"data"`

	// Queue is the name the job was reserved from.
	Queue string `json:"-"`
	// raw is the exact list member, needed to LREM it on ack.
	raw string
}

func encodeJob(j *Job) (string, error) {
	b, err := json.Marshal(j)
	if err != nil {
		return "", fmt.Errorf("encode job %s: %w", j.ID, err)
	}
	return string(b), nil
}

func decodeJob(queue, raw string) (*Job, error) {
	var j Job
	if err := json.Unmarshal([]byte(raw), &j); err != nil {
		return nil, fmt.Errorf("decode job from %s: %w", queue, err)
	}
	j.Queue = queue
	j.raw = raw
	return &j, nil
}

func processingKey(queue string) string { return queue + ":processing" }
func reservedKey(queue string) string   { return queue + ":reserved" }
func delayedKey(queue string) string    { return queue + ":delayed" }
func deadKey(queue string) string       { return queue + ":dead" }

// Backoff returns the retry delay after the given number of failed attempts:
// 2^attempts seconds, capped at 5 minutes.
func Backoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	if attempts > 8 {
		return 5 * time.Minute
	}
	d := time.Duration(1<<attempts) * time.Second
	if d > 5*time.Minute {
		d = 5 * time.Minute
	}
	return d
}
