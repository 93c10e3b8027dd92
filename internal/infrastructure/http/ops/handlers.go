package ops

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"purchases/internal/core/apperror"
	"purchases/internal/infrastructure/queue"
	"purchases/internal/infrastructure/storage/postgres"
	"purchases/internal/replication"
)

// Pinger checks a backing service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PoolStats reports database connection pool usage.
type PoolStats interface {
	Stats() postgres.PoolStats
}

// JobHistory exposes recently finished jobs.
type JobHistory interface {
	Snapshot() []replication.JobRecord
}

// OutboxStats reports the outbox backlog.
type OutboxStats interface {
	Counts(ctx context.Context) (postgres.OutboxCounts, error)
}

// QueueStats reports queue depth.
type QueueStats interface {
	Stats(ctx context.Context, queue string) (queue.Stats, error)
}

// Handler serves the ops endpoints.
type Handler struct {
	checks map[string]Pinger
	pool   PoolStats
	jobs   JobHistory
	outbox OutboxStats
	queues QueueStats
	names  []string
}

// Live handles the liveness probe.
// GET /healthz
func (h *Handler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready pings every dependency and reports pool usage.
// GET /readyz
func (h *Handler) Ready(c *gin.Context) {
	ctx := c.Request.Context()

	status := http.StatusOK
	checks := make(map[string]string, len(h.checks))
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			checks[name] = "unhealthy: " + err.Error()
			continue
		}
		checks[name] = "healthy"
	}

	body := gin.H{"status": "ok", "checks": checks}
	if h.pool != nil {
		body["pool"] = h.pool.Stats()
	}
	if status != http.StatusOK {
		body["status"] = "error"
	}
	c.JSON(status, body)
}

// Jobs lists recently processed jobs, newest first.
// GET /ops/jobs
func (h *Handler) Jobs(c *gin.Context) {
	jobs := h.jobs.Snapshot()
	c.JSON(http.StatusOK, gin.H{"count": len(jobs), "jobs": jobs})
}

// Outbox reports the outbox backlog.
// GET /ops/outbox
func (h *Handler) Outbox(c *gin.Context) {
	if h.outbox == nil {
		c.JSON(http.StatusOK, gin.H{"enabled": false})
		return
	}
	counts, err := h.outbox.Counts(c.Request.Context())
	if err != nil {
		_ = c.Error(apperror.NewInternal(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": true, "counts": counts})
}

// Queues reports the depth of every configured queue.
// GET /ops/queues
func (h *Handler) Queues(c *gin.Context) {
	stats := make([]queue.Stats, 0, len(h.names))
	for _, name := range h.names {
		s, err := h.queues.Stats(c.Request.Context(), name)
		if err != nil {
			_ = c.Error(apperror.NewInternal(err).WithDetail("queue", name))
			return
		}
		stats = append(stats, s)
	}
	c.JSON(http.StatusOK, gin.H{"queues": stats})
}
