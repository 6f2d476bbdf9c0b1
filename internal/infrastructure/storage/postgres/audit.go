package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/klauspost/compress/zstd"

	appctx "stoq/internal/core/context"
	"stoq/internal/core/id"
	"stoq/internal/domain/events"
)

// CompressionAlgo names how the changes of an audit entry are stored.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// DefaultCompressThreshold is the payload size above which changes are compressed.
const DefaultCompressThreshold = 10 * 1024

// AuditEntry is one row of sys_audit: a domain event as seen by the user
// that caused it.
type AuditEntry struct {
	ID                id.ID           `db:"id"`
	EntityType        string          `db:"entity_type"`
	EntityID          id.ID           `db:"entity_id"`
	Action            string          `db:"action"`
	UserID            string          `db:"user_id"`
	BranchID          string          `db:"branch_id"`
	Changes           json.RawMessage `db:"changes"`
	ChangesCompressed []byte          `db:"changes_compressed"`
	CompressionAlgo   CompressionAlgo `db:"compression_algo"`
	CreatedAt         time.Time       `db:"created_at"`
}

var auditColumns = []string{
	"id", "entity_type", "entity_id", "action", "user_id", "branch_id",
	"changes", "changes_compressed", "compression_algo", "created_at",
}

// AuditLog records every published event in sys_audit, inside the caller's
// transaction. It implements events.Publisher.
type AuditLog struct {
	txManager         *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

var _ events.Publisher = (*AuditLog)(nil)

// NewAuditLog creates an audit log compressing changes above threshold bytes.
// A threshold <= 0 uses DefaultCompressThreshold.
func NewAuditLog(txManager *TxManager, threshold int) (*AuditLog, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	if threshold <= 0 {
		threshold = DefaultCompressThreshold
	}
	return &AuditLog{
		txManager:         txManager,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: threshold,
	}, nil
}

// Publish implements events.Publisher.
func (a *AuditLog) Publish(ctx context.Context, e events.Event) error {
	entry, err := a.entry(ctx, e)
	if err != nil {
		return err
	}
	sql, args, err := Builder.Insert("sys_audit").Columns(auditColumns...).Values(
		entry.ID, entry.EntityType, entry.EntityID, entry.Action, entry.UserID, entry.BranchID,
		entry.Changes, entry.ChangesCompressed, entry.CompressionAlgo, entry.CreatedAt,
	).ToSql()
	if err != nil {
		return fmt.Errorf("build audit insert: %w", err)
	}
	if _, err := a.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// entry builds the row for e, compressing large payloads.
func (a *AuditLog) entry(ctx context.Context, e events.Event) (AuditEntry, error) {
	changes, err := json.Marshal(e.Payload)
	if err != nil {
		return AuditEntry{}, fmt.Errorf("marshal %s payload: %w", e.Topic, err)
	}
	entry := AuditEntry{
		ID:              id.New(),
		EntityType:      e.AggregateType,
		EntityID:        e.AggregateID,
		Action:          string(e.Topic),
		Changes:         changes,
		CompressionAlgo: CompressionNone,
		CreatedAt:       e.OccurredAt.UTC(),
	}
	if e.OccurredAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if user := appctx.GetUser(ctx); user != nil {
		entry.UserID = user.UserID
		entry.BranchID = user.BranchID
	}
	if len(changes) > a.compressThreshold {
		entry.ChangesCompressed = a.encoder.EncodeAll(changes, nil)
		entry.Changes = nil
		entry.CompressionAlgo = CompressionZstd
	}
	return entry, nil
}

// History returns the latest limit entries of an entity, newest first, with
// changes decompressed.
func (a *AuditLog) History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]AuditEntry, error) {
	q := Builder.Select(auditColumns...).From("sys_audit").
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		OrderBy("created_at DESC", "id DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build history query: %w", err)
	}

	var entries []AuditEntry
	if err := pgxscan.Select(ctx, a.txManager.GetQuerier(ctx), &entries, sql, args...); err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	for i := range entries {
		if err := a.inflate(&entries[i]); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

func (a *AuditLog) inflate(e *AuditEntry) error {
	if e.CompressionAlgo != CompressionZstd || len(e.ChangesCompressed) == 0 {
		return nil
	}
	raw, err := a.decoder.DecodeAll(e.ChangesCompressed, nil)
	if err != nil {
		return fmt.Errorf("decompress changes of %s: %w", e.ID, err)
	}
	e.Changes = raw
	e.ChangesCompressed = nil
	e.CompressionAlgo = CompressionNone
	return nil
}
