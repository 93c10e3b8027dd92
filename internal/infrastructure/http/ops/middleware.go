// Package ops provides the operational HTTP endpoint of the worker: health
// probes and views of recent jobs, queue depth and outbox backlog.
package ops

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"purchases/internal/core/apperror"
	appctx "purchases/internal/core/context"
	"purchases/pkg/logger"
)

const HeaderRequestID = "X-Request-ID"

// Recovery recovers from panics and answers 500 without internal details.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error(c.Request.Context(), "panic recovered",
					"error", err,
					"stack", string(debug.Stack()),
				)
				_ = c.Error(apperror.NewInternal(fmt.Errorf("panic: %v", err)))
				c.Abort()
			}
		}()
		c.Next()
	}
}

// Trace attaches a trace context, reusing the caller's request id.
func Trace() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		trace := &appctx.TraceContext{TraceID: uuid.New().String(), RequestID: requestID}
		c.Request = c.Request.WithContext(appctx.WithTrace(c.Request.Context(), trace))
		c.Set("request_id", requestID)
		c.Header(HeaderRequestID, requestID)

		c.Next()
	}
}

// Logger logs each request with timing and status.
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		log.WithContext(c.Request.Context()).Infow("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		)
	}
}

// ErrorHandler renders the last handler error as JSON.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err

		if appErr, ok := apperror.AsAppError(err); ok {
			if appErr.Err != nil {
				logger.Error(c.Request.Context(), "request error", "code", appErr.Code, "cause", appErr.Err)
			}
			c.JSON(appErr.HTTPStatus, gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
				"details": appErr.Details,
			})
			return
		}

		logger.Error(c.Request.Context(), "unhandled error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    apperror.CodeInternal,
			"message": "Internal server error",
			"details": map[string]any{"request_id": c.GetString("request_id")},
		})
	}
}
