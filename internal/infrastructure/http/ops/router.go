package ops

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"purchases/pkg/logger"
)

// RouterConfig holds the ops router dependencies.
type RouterConfig struct {
	Logger *logger.Logger

	// Checks are pinged by /readyz, keyed by name ("database", "redis").
	Checks map[string]Pinger
	Pool   PoolStats // optional

	Jobs   JobHistory
	Outbox OutboxStats // nil when the outbox relay is disabled
	Queues QueueStats
	// QueueNames are the queues reported by /ops/queues.
	QueueNames []string
}

// NewRouter creates the ops router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(Recovery())
	router.Use(Trace())
	router.Use(Logger(cfg.Logger))
	router.Use(ErrorHandler())

	h := &Handler{
		checks: cfg.Checks,
		pool:   cfg.Pool,
		jobs:   cfg.Jobs,
		outbox: cfg.Outbox,
		queues: cfg.Queues,
		names:  cfg.QueueNames,
	}

	router.GET("/healthz", h.Live)
	router.GET("/readyz", h.Ready)

	opsGroup := router.Group("/ops")
	{
		opsGroup.GET("/jobs", h.Jobs)
		opsGroup.GET("/outbox", h.Outbox)
		opsGroup.GET("/queues", h.Queues)
	}

	return router
}

// Serve runs the ops server until ctx is cancelled.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
