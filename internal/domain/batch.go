// Package domain provides the building blocks shared by every business service:
// the batch processor and the generic replica service.
package domain

import (
	"context"
	"fmt"
	"time"

	"purchases/pkg/logger"
)

// ProcessSummary aggregates per-item outcomes of a batch operation.
// OKCount + KOCount always equals the number of items processed so far.
type ProcessSummary struct {
	Total     int      `json:"total"`
	OKCount   int      `json:"okCount"`
	KOCount   int      `json:"koCount"`
	OKDetails []string `json:"okDetails"`
	KODetails []string `json:"koDetails"`
}

// NewProcessSummary creates an empty summary for total items.
func NewProcessSummary(total int) *ProcessSummary {
	return &ProcessSummary{
		Total:     total,
		OKDetails: make([]string, 0, total),
		KODetails: make([]string, 0),
	}
}

// Processed returns the number of items recorded so far.
func (s *ProcessSummary) Processed() int {
	return s.OKCount + s.KOCount
}

// RecordOK records a successful item.
func (s *ProcessSummary) RecordOK(index int, key string) {
	s.OKCount++
	s.OKDetails = append(s.OKDetails, fmt.Sprintf("(%d) %s, message=OK", index, key))
}

// RecordKO records a failed item.
func (s *ProcessSummary) RecordKO(index int, key string, err error) {
	s.KOCount++
	s.KODetails = append(s.KODetails, fmt.Sprintf("(%d) %s, error=%v", index, key, err))
}

// String is the short status line logged per job.
func (s *ProcessSummary) String() string {
	return fmt.Sprintf("total=%d ok=%d ko=%d", s.Total, s.OKCount, s.KOCount)
}

// ForEach applies op to every item sequentially, in input order. A failing
// item is recorded and the loop continues; the batch never aborts early.
// key renders the item identity used in detail lines (e.g. "name=Acme").
func ForEach[T any](ctx context.Context, name string, items []T, key func(T) string, op func(context.Context, T) error) *ProcessSummary {
	log := logger.FromContext(ctx)
	log.Infow(name+": starting process...", "list_size", len(items))
	start := time.Now()

	summary := NewProcessSummary(len(items))
	for i, item := range items {
		if err := op(ctx, item); err != nil {
			summary.RecordKO(i, key(item), err)
			continue
		}
		summary.RecordOK(i, key(item))
	}

	log.Infow(name+": executed",
		"runtime_seconds", time.Since(start).Seconds(),
		"ok", summary.OKCount,
		"ko", summary.KOCount,
	)
	return summary
}
