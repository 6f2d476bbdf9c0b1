package postgres

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stoq/internal/core/apperror"
)

// Builder is the squirrel builder with PostgreSQL placeholders.
var Builder = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// Table provides CRUD over one table whose rows map onto T through "db"
// tags. Repositories embed it and add their own queries.
type Table[T any] struct {
	txm    *TxManager
	name   string
	entity string
	cols   []string
}

// NewTable creates a table helper. entity names the row in errors.
func NewTable[T any](txm *TxManager, name, entity string) Table[T] {
	return Table[T]{txm: txm, name: name, entity: entity, cols: ExtractDBColumns[T]()}
}

// Name returns the table name.
func (t Table[T]) Name() string { return t.name }

// Columns returns the mapped columns.
func (t Table[T]) Columns() []string { return t.cols }

// Querier returns the active transaction or the pool.
func (t Table[T]) Querier(ctx context.Context) Querier { return t.txm.GetQuerier(ctx) }

// TxManager returns the manager the table runs on.
func (t Table[T]) TxManager() *TxManager { return t.txm }

// values maps v to its columns, leaving out skip.
func (t Table[T]) values(v *T, skip ...string) map[string]any {
	data := StructToMap(v)
	out := make(map[string]any, len(t.cols))
	for _, col := range t.cols {
		if slices.Contains(skip, col) {
			continue
		}
		if val, ok := data[col]; ok {
			out[col] = val
		}
	}
	return out
}

// Insert inserts v.
func (t Table[T]) Insert(ctx context.Context, v *T) error {
	sql, args, err := Builder.Insert(t.name).SetMap(t.values(v)).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	_, err = t.Querier(ctx).Exec(ctx, sql, args...)
	return MapError(err, "insert", t.entity, nil)
}

// Upsert inserts v or overwrites the row conflicting on keys.
func (t Table[T]) Upsert(ctx context.Context, v *T, keys ...string) error {
	sql, args, err := t.upsertSQL(v, keys)
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	_, err = t.Querier(ctx).Exec(ctx, sql, args...)
	return MapError(err, "upsert", t.entity, nil)
}

func (t Table[T]) upsertSQL(v *T, keys []string) (string, []any, error) {
	var set []string
	for _, col := range t.cols {
		if !slices.Contains(keys, col) {
			set = append(set, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
		}
	}
	return Builder.Insert(t.name).
		SetMap(t.values(v)).
		Suffix(fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s", strings.Join(keys, ", "), strings.Join(set, ", "))).
		ToSql()
}

// UpdateVersioned overwrites the row of key with optimistic locking: the
// row must still hold version. Creation stamps are never rewritten. On
// success the caller bumps its copy.
func (t Table[T]) UpdateVersioned(ctx context.Context, v *T, key any, version int) error {
	sql, args, err := t.updateVersionedSQL(v, key, version)
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	tag, err := t.Querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return MapError(err, "update", t.entity, key)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewConcurrentModification(t.entity, key)
	}
	return nil
}

func (t Table[T]) updateVersionedSQL(v *T, key any, version int) (string, []any, error) {
	return Builder.Update(t.name).
		SetMap(t.values(v, "id", "version", "created_at", "created_by")).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": key}).
		Where(squirrel.Eq{"version": version}).
		ToSql()
}

// Update overwrites every column except keys of the rows matching where.
// It returns NotFound when nothing matched.
func (t Table[T]) Update(ctx context.Context, v *T, where squirrel.Sqlizer, key any, keys ...string) error {
	sql, args, err := Builder.Update(t.name).SetMap(t.values(v, keys...)).Where(where).ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	tag, err := t.Querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return MapError(err, "update", t.entity, key)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound(t.entity, key)
	}
	return nil
}

// Select starts a SELECT of every mapped column.
func (t Table[T]) Select() squirrel.SelectBuilder {
	return Builder.Select(t.cols...).From(t.name)
}

// Get loads the single row selected by q. key is reported on NotFound.
func (t Table[T]) Get(ctx context.Context, q squirrel.SelectBuilder, key any) (*T, error) {
	sql, args, err := q.Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var out T
	if err := pgxscan.Get(ctx, t.Querier(ctx), &out, sql, args...); err != nil {
		return nil, MapError(err, "get", t.entity, key)
	}
	return &out, nil
}

// GetByID loads the row with id.
func (t Table[T]) GetByID(ctx context.Context, key any) (*T, error) {
	return t.Get(ctx, t.Select().Where(squirrel.Eq{"id": key}), key)
}

// List loads every row selected by q.
func (t Table[T]) List(ctx context.Context, q squirrel.SelectBuilder) ([]*T, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var out []*T
	if err := pgxscan.Select(ctx, t.Querier(ctx), &out, sql, args...); err != nil {
		return nil, MapError(err, "list", t.entity, nil)
	}
	return out, nil
}

// Delete removes the rows matching where and returns how many went.
func (t Table[T]) Delete(ctx context.Context, where squirrel.Sqlizer) (int64, error) {
	sql, args, err := Builder.Delete(t.name).Where(where).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}
	tag, err := t.Querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, MapError(err, "delete", t.entity, nil)
	}
	return tag.RowsAffected(), nil
}
