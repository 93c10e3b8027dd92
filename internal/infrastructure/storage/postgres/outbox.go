package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/klauspost/compress/zstd"
	"go.opentelemetry.io/otel/attribute"

	"purchases/internal/core/id"
	"purchases/pkg/logger"
)

// OutboxStatus represents the state of an outbox message.
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusPublished OutboxStatus = "published"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// Compression is the encoding of a stored payload.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionZstd Compression = "zstd"
)

// OutboxMessage is a row of sys_outbox. Payload is always decompressed.
type OutboxMessage struct {
	ID            id.ID        `db:"id"`
	AggregateType string       `db:"aggregate_type"`
	AggregateID   string       `db:"aggregate_id"`
	EventType     string       `db:"event_type"`
	Payload       []byte       `db:"payload"`
	Compression   Compression  `db:"compression"`
	Status        OutboxStatus `db:"status"`
	RetryCount    int          `db:"retry_count"`
	LastError     *string      `db:"last_error"`
	NextRetryAt   *time.Time   `db:"next_retry_at"`
	CreatedAt     time.Time    `db:"created_at"`
	PublishedAt   *time.Time   `db:"published_at"`
}

// DomainEvent is an already encoded payload to publish via the outbox.
type DomainEvent struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

const insertOutboxSQL = `
	INSERT INTO sys_outbox (id, aggregate_type, aggregate_id, event_type, payload, compression, status, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

// OutboxPublisher writes events to sys_outbox inside the caller's transaction.
// Payloads larger than the threshold are stored zstd-compressed.
type OutboxPublisher struct {
	txManager *TxManager
	encoder   *zstd.Encoder
	threshold int
	now       func() time.Time
}

// NewOutboxPublisher creates a publisher. threshold <= 0 means 10KB.
func NewOutboxPublisher(txManager *TxManager, threshold int) (*OutboxPublisher, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	if threshold <= 0 {
		threshold = 10 * 1024
	}
	return &OutboxPublisher{
		txManager: txManager,
		encoder:   encoder,
		threshold: threshold,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

func (p *OutboxPublisher) encode(payload []byte) ([]byte, Compression) {
	if len(payload) <= p.threshold {
		return payload, CompressionNone
	}
	return p.encoder.EncodeAll(payload, make([]byte, 0, len(payload)/2)), CompressionZstd
}

// Publish writes one event. It must be called inside a transaction.
func (p *OutboxPublisher) Publish(ctx context.Context, event DomainEvent) error {
	return p.PublishBatch(ctx, []DomainEvent{event})
}

// PublishBatch writes events in one round trip, preserving their order
// through created_at and UUIDv7 ids.
func (p *OutboxPublisher) PublishBatch(ctx context.Context, events []DomainEvent) error {
	t := p.txManager.GetTx(ctx)
	if t == nil {
		return errors.New("outbox publish requires transaction context")
	}
	if len(events) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	now := p.now()
	for _, event := range events {
		payload, compression := p.encode(event.Payload)
		batch.Queue(insertOutboxSQL,
			id.New(), event.AggregateType, event.AggregateID, event.EventType,
			payload, compression, OutboxStatusPending, now)
	}

	results := t.SendBatch(ctx, batch)
	defer results.Close()

	for range events {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert outbox message: %w", err)
		}
	}
	return nil
}

// OutboxHandler delivers a message; an error schedules a retry.
type OutboxHandler interface {
	Handle(ctx context.Context, msg *OutboxMessage) error
}

// OutboxHandlerFunc adapts a function to OutboxHandler.
type OutboxHandlerFunc func(ctx context.Context, msg *OutboxMessage) error

// Handle calls f.
func (f OutboxHandlerFunc) Handle(ctx context.Context, msg *OutboxMessage) error {
	return f(ctx, msg)
}

// OutboxRelayConfig configures the relay.
type OutboxRelayConfig struct {
	BatchSize  int
	MaxRetries int
}

// OutboxRelay drains pending outbox rows through a handler.
type OutboxRelay struct {
	txManager *TxManager
	handler   OutboxHandler
	decoder   *zstd.Decoder
	cfg       OutboxRelayConfig
}

// NewOutboxRelay creates a new outbox relay.
func NewOutboxRelay(txManager *TxManager, handler OutboxHandler, cfg OutboxRelayConfig) (*OutboxRelay, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	return &OutboxRelay{txManager: txManager, handler: handler, decoder: decoder, cfg: cfg}, nil
}

// ProcessBatch claims up to BatchSize due rows with FOR UPDATE SKIP LOCKED,
// hands them to the handler in creation order and records each result in
// the same transaction. It returns the number of published messages.
func (r *OutboxRelay) ProcessBatch(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "outbox.batch")
	defer span.End()

	published := 0
	err := r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		q := r.txManager.GetQuerier(ctx)

		var messages []*OutboxMessage
		err := pgxscan.Select(ctx, q, &messages, `
			SELECT id, aggregate_type, aggregate_id, event_type, payload, compression, status,
			       retry_count, last_error, next_retry_at, created_at, published_at
			FROM sys_outbox
			WHERE status = $1
			  AND (next_retry_at IS NULL OR next_retry_at <= NOW())
			ORDER BY created_at, id
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		`, OutboxStatusPending, r.cfg.BatchSize)
		if err != nil {
			return fmt.Errorf("fetch outbox messages: %w", err)
		}

		for _, msg := range messages {
			ok, err := r.processMessage(ctx, q, msg)
			if err != nil {
				return err
			}
			if ok {
				published++
			}
		}
		span.SetAttributes(attribute.Int("outbox.fetched", len(messages)))
		return nil
	})
	span.SetAttributes(attribute.Int("outbox.published", published))
	return published, err
}

// processMessage delivers one message and updates its row. Only database
// errors are returned; handler failures are recorded on the row.
func (r *OutboxRelay) processMessage(ctx context.Context, q Querier, msg *OutboxMessage) (bool, error) {
	handleErr := r.decode(msg)
	if handleErr == nil {
		handleErr = r.handler.Handle(ctx, msg)
	}

	if handleErr != nil {
		retries := msg.RetryCount + 1
		status := OutboxStatusPending
		if retries >= r.cfg.MaxRetries {
			status = OutboxStatusFailed
		}
		nextRetry := time.Now().UTC().Add(time.Duration(retries) * time.Minute)

		logger.Warn(ctx, "outbox delivery failed",
			"outbox_id", msg.ID, "event_type", msg.EventType,
			"retry_count", retries, "status", status, "error", handleErr)

		_, err := q.Exec(ctx, `
			UPDATE sys_outbox
			SET retry_count = $1, last_error = $2, next_retry_at = $3, status = $4
			WHERE id = $5
		`, retries, handleErr.Error(), nextRetry, status, msg.ID)
		if err != nil {
			return false, fmt.Errorf("update failed message: %w", err)
		}
		return false, nil
	}

	_, err := q.Exec(ctx, `
		UPDATE sys_outbox SET status = $1, published_at = $2, last_error = NULL
		WHERE id = $3
	`, OutboxStatusPublished, time.Now().UTC(), msg.ID)
	if err != nil {
		return false, fmt.Errorf("mark message published: %w", err)
	}
	return true, nil
}

func (r *OutboxRelay) decode(msg *OutboxMessage) error {
	if msg.Compression != CompressionZstd {
		return nil
	}
	payload, err := r.decoder.DecodeAll(msg.Payload, nil)
	if err != nil {
		return fmt.Errorf("decompress outbox payload: %w", err)
	}
	msg.Payload = payload
	msg.Compression = CompressionNone
	return nil
}

// MoveToDLQ moves failed messages to sys_outbox_dlq.
func (r *OutboxRelay) MoveToDLQ(ctx context.Context) (int64, error) {
	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, `
		WITH moved AS (
			DELETE FROM sys_outbox
			WHERE status = $1
			RETURNING id, aggregate_type, aggregate_id, event_type, payload, compression,
			          retry_count, last_error, created_at
		)
		INSERT INTO sys_outbox_dlq (id, aggregate_type, aggregate_id, event_type, payload, compression,
		                            retry_count, failure_reason, created_at, failed_at)
		SELECT id, aggregate_type, aggregate_id, event_type, payload, compression,
		       retry_count, last_error, created_at, NOW()
		FROM moved
	`, OutboxStatusFailed)
	if err != nil {
		return 0, fmt.Errorf("move to DLQ: %w", err)
	}
	return result.RowsAffected(), nil
}

// CleanupPublished deletes published rows older than retention.
func (r *OutboxRelay) CleanupPublished(ctx context.Context, retention time.Duration) (int64, error) {
	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, `
		DELETE FROM sys_outbox WHERE status = $1 AND published_at < $2
	`, OutboxStatusPublished, time.Now().UTC().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("cleanup published outbox: %w", err)
	}
	return result.RowsAffected(), nil
}

// OutboxCounts is the outbox backlog by status.
type OutboxCounts struct {
	Pending int64 `json:"pending" db:"pending"`
	Failed  int64 `json:"failed" db:"failed"`
	Dead    int64 `json:"dead" db:"dead"`
}

// Counts returns the outbox backlog.
func (r *OutboxRelay) Counts(ctx context.Context) (OutboxCounts, error) {
	var c OutboxCounts
	err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &c, `
		SELECT
			(SELECT COUNT(*) FROM sys_outbox WHERE status = $1) AS pending,
			(SELECT COUNT(*) FROM sys_outbox WHERE status = $2) AS failed,
			(SELECT COUNT(*) FROM sys_outbox_dlq) AS dead
	`, OutboxStatusPending, OutboxStatusFailed)
	if err != nil {
		return OutboxCounts{}, fmt.Errorf("count outbox: %w", err)
	}
	return c, nil
}
