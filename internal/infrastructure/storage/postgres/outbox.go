package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"stoq/internal/core/id"
	"stoq/internal/domain/events"
	"stoq/pkg/logger"
)

// OutboxStatus is the delivery state of an outbox message.
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusPublished OutboxStatus = "published"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// DefaultMaxAttempts is the number of failed deliveries after which a
// message is marked failed and becomes eligible for the DLQ.
const DefaultMaxAttempts = 5

// OutboxMessage is one row of sys_outbox.
type OutboxMessage struct {
	ID            id.ID        `db:"id"`
	AggregateType string       `db:"aggregate_type"`
	AggregateID   id.ID        `db:"aggregate_id"`
	EventType     string       `db:"event_type"`
	Payload       []byte       `db:"payload"`
	Status        OutboxStatus `db:"status"`
	RetryCount    int          `db:"retry_count"`
	LastError     *string      `db:"last_error"`
	NextRetryAt   *time.Time   `db:"next_retry_at"`
	CreatedAt     time.Time    `db:"created_at"`
	PublishedAt   *time.Time   `db:"published_at"`
}

const insertOutbox = `
	INSERT INTO sys_outbox (id, aggregate_type, aggregate_id, event_type, payload, status, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

// OutboxPublisher writes domain events to sys_outbox inside the caller's
// transaction, so an event exists exactly when the change it describes does.
type OutboxPublisher struct {
	txManager *TxManager
}

var _ events.Publisher = (*OutboxPublisher)(nil)

// NewOutboxPublisher creates an outbox publisher.
func NewOutboxPublisher(txManager *TxManager) *OutboxPublisher {
	return &OutboxPublisher{txManager: txManager}
}

func outboxArgs(e events.Event) ([]any, error) {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", e.Topic, err)
	}
	at := e.OccurredAt
	if at.IsZero() {
		at = time.Now()
	}
	return []any{id.New(), e.AggregateType, e.AggregateID, string(e.Topic), payload, OutboxStatusPending, at.UTC()}, nil
}

// Publish implements events.Publisher. It must run inside a transaction.
func (p *OutboxPublisher) Publish(ctx context.Context, e events.Event) error {
	tx := p.txManager.GetTx(ctx)
	if tx == nil {
		return fmt.Errorf("outbox publish requires transaction context")
	}
	args, err := outboxArgs(e)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, insertOutbox, args...); err != nil {
		return fmt.Errorf("insert outbox message: %w", err)
	}
	return nil
}

// PublishBatch writes several events in one round-trip.
func (p *OutboxPublisher) PublishBatch(ctx context.Context, list []events.Event) error {
	tx := p.txManager.GetTx(ctx)
	if tx == nil {
		return fmt.Errorf("outbox publish requires transaction context")
	}

	batch := &pgx.Batch{}
	for _, e := range list {
		args, err := outboxArgs(e)
		if err != nil {
			return err
		}
		batch.Queue(insertOutbox, args...)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()
	for range list {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch insert outbox message: %w", err)
		}
	}
	return nil
}

// OutboxHandler delivers one message. A returned error schedules a retry.
type OutboxHandler interface {
	Handle(ctx context.Context, msg *OutboxMessage) error
}

// OutboxHandlerFunc adapts a function to OutboxHandler.
type OutboxHandlerFunc func(ctx context.Context, msg *OutboxMessage) error

func (f OutboxHandlerFunc) Handle(ctx context.Context, msg *OutboxMessage) error { return f(ctx, msg) }

// OutboxRelay drains sys_outbox. Several relays may run at once: rows are
// claimed with FOR UPDATE SKIP LOCKED for the duration of a batch.
type OutboxRelay struct {
	txManager   *TxManager
	batchSize   int
	maxAttempts int
	handler     OutboxHandler
	onDLQ       func(moved int64)
}

// NewOutboxRelay creates a relay delivering through handler.
func NewOutboxRelay(txManager *TxManager, batchSize int, handler OutboxHandler) *OutboxRelay {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OutboxRelay{
		txManager:   txManager,
		batchSize:   batchSize,
		maxAttempts: DefaultMaxAttempts,
		handler:     handler,
	}
}

// OnDeadLetter sets a callback invoked with the number of messages each
// MoveToDLQ call of Run moves.
func (r *OutboxRelay) OnDeadLetter(fn func(moved int64)) { r.onDLQ = fn }

// ProcessBatch delivers up to batchSize due messages and returns how many
// were delivered.
func (r *OutboxRelay) ProcessBatch(ctx context.Context) (int, error) {
	processed := 0
	err := r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		q := r.txManager.GetQuerier(ctx)

		var messages []*OutboxMessage
		err := pgxscan.Select(ctx, q, &messages, `
			SELECT id, aggregate_type, aggregate_id, event_type, payload, status,
			       retry_count, last_error, next_retry_at, created_at, published_at
			FROM sys_outbox
			WHERE status = $1
			  AND (next_retry_at IS NULL OR next_retry_at <= NOW())
			ORDER BY created_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		`, OutboxStatusPending, r.batchSize)
		if err != nil {
			return fmt.Errorf("fetch outbox messages: %w", err)
		}

		for _, msg := range messages {
			if err := r.deliver(ctx, q, msg); err != nil {
				logger.Warn(ctx, "outbox delivery failed",
					"message_id", msg.ID, "event_type", msg.EventType, "retry", msg.RetryCount+1, "error", err)
				continue
			}
			processed++
		}
		return nil
	})
	return processed, err
}

func (r *OutboxRelay) deliver(ctx context.Context, q Querier, msg *OutboxMessage) error {
	if err := r.handler.Handle(ctx, msg); err != nil {
		status := OutboxStatusPending
		if msg.RetryCount+1 >= r.maxAttempts {
			status = OutboxStatusFailed
		}
		_, updateErr := q.Exec(ctx, `
			UPDATE sys_outbox
			SET retry_count = retry_count + 1, last_error = $1, next_retry_at = $2, status = $3
			WHERE id = $4
		`, err.Error(), time.Now().Add(Backoff(msg.RetryCount)), status, msg.ID)
		if updateErr != nil {
			return fmt.Errorf("update failed message: %w", updateErr)
		}
		return err
	}

	_, err := q.Exec(ctx, `UPDATE sys_outbox SET status = $1, published_at = NOW() WHERE id = $2`,
		OutboxStatusPublished, msg.ID)
	return err
}

// Backoff is the delay before retry number retries+1: one minute doubled
// per previous failure, capped at one hour.
func Backoff(retries int) time.Duration {
	if retries > 6 {
		return time.Hour
	}
	d := time.Minute << retries
	if d > time.Hour {
		return time.Hour
	}
	return d
}

// MoveToDLQ moves failed messages to sys_outbox_dlq.
func (r *OutboxRelay) MoveToDLQ(ctx context.Context) (int64, error) {
	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, `
		WITH moved AS (
			DELETE FROM sys_outbox
			WHERE status = $1
			RETURNING id, aggregate_type, aggregate_id, event_type, payload, retry_count, last_error, created_at
		)
		INSERT INTO sys_outbox_dlq (id, aggregate_type, aggregate_id, event_type, payload, retry_count, failure_reason, created_at, failed_at)
		SELECT id, aggregate_type, aggregate_id, event_type, payload, retry_count, last_error, created_at, NOW() FROM moved
	`, OutboxStatusFailed)
	if err != nil {
		return 0, fmt.Errorf("move to DLQ: %w", err)
	}
	return result.RowsAffected(), nil
}

// Purge deletes published messages older than keep.
func (r *OutboxRelay) Purge(ctx context.Context, keep time.Duration) (int64, error) {
	result, err := r.txManager.GetQuerier(ctx).Exec(ctx,
		`DELETE FROM sys_outbox WHERE status = $1 AND published_at < $2`,
		OutboxStatusPublished, time.Now().Add(-keep))
	if err != nil {
		return 0, fmt.Errorf("purge outbox: %w", err)
	}
	return result.RowsAffected(), nil
}

// Run processes batches every interval until ctx is done. A full batch is
// followed immediately by the next one.
func (r *OutboxRelay) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		n, err := r.ProcessBatch(ctx)
		if err != nil {
			logger.Error(ctx, "outbox batch failed", "error", err)
		}
		if n >= r.batchSize {
			continue
		}
		if moved, err := r.MoveToDLQ(ctx); err != nil {
			logger.Error(ctx, "outbox dlq move failed", "error", err)
		} else if moved > 0 {
			logger.Warn(ctx, "outbox messages moved to dlq", "count", moved)
			if r.onDLQ != nil {
				r.onDLQ(moved)
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
