// Package numerator provides database-backed identifier sequences.
// Values live in the sys_sequences table keyed by numerator.Config.Key().
package numerator

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"

	core "stoq/internal/core/numerator"
)

// Querier interface for database operations.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// QuerierResolver picks the querier for a call, typically the active transaction.
type QuerierResolver func(ctx context.Context) Querier

type cachedRange struct {
	current int64
	max     int64
}

// Service implements numerator.Generator over sys_sequences.
type Service struct {
	resolve QuerierResolver

	cacheMu sync.Mutex
	ranges  map[string]*cachedRange
}

var _ core.Generator = (*Service)(nil)

// New creates a numerator service with a static querier.
func New(querier Querier) *Service {
	return NewWithResolver(func(context.Context) Querier { return querier })
}

// NewWithResolver creates a numerator service that resolves its querier per call,
// so strict values are allocated inside the caller's transaction.
func NewWithResolver(resolve QuerierResolver) *Service {
	return &Service{
		resolve: resolve,
		ranges:  make(map[string]*cachedRange),
	}
}

// Next returns the next value of the sequence.
func (s *Service) Next(ctx context.Context, cfg core.Config, opts *core.Options) (int64, error) {
	if s == nil {
		return 0, fmt.Errorf("numerator service is not initialized")
	}
	if opts == nil {
		opts = core.DefaultOptions()
	}

	switch opts.Strategy {
	case core.StrategyCached:
		return s.nextCached(ctx, cfg.Key(), opts)
	default:
		return s.nextStrict(ctx, cfg.Key())
	}
}

// nextStrict bumps the counter with UPSERT + RETURNING.
func (s *Service) nextStrict(ctx context.Context, key string) (int64, error) {
	var num int64
	err := s.resolve(ctx).QueryRow(ctx, `
		INSERT INTO sys_sequences (key, current_val)
		VALUES ($1, 1)
		ON CONFLICT (key) DO UPDATE SET current_val = sys_sequences.current_val + 1
		RETURNING current_val
	`, key).Scan(&num)
	if err != nil {
		return 0, fmt.Errorf("strict next %s: %w", key, err)
	}
	return num, nil
}

// nextCached serves values from a reserved range, refilling it from the database.
func (s *Service) nextCached(ctx context.Context, key string, opts *core.Options) (int64, error) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	rng, ok := s.ranges[key]
	if !ok {
		rng = &cachedRange{}
		s.ranges[key] = rng
	}

	if rng.current >= rng.max {
		size := opts.RangeSize
		if size <= 0 {
			size = 50
		}

		// current_val holds the last reserved value: the new range is
		// (newMax-size, newMax].
		var newMax int64
		err := s.resolve(ctx).QueryRow(ctx, `
			INSERT INTO sys_sequences (key, current_val)
			VALUES ($1, $2)
			ON CONFLICT (key) DO UPDATE SET current_val = sys_sequences.current_val + $2
			RETURNING current_val
		`, key, size).Scan(&newMax)
		if err != nil {
			return 0, fmt.Errorf("reserve range %s: %w", key, err)
		}

		rng.current = newMax - size
		rng.max = newMax
	}

	rng.current++
	return rng.current, nil
}

// SetNext overwrites the sequence value (data migrations).
func (s *Service) SetNext(ctx context.Context, cfg core.Config, value int64) error {
	key := cfg.Key()

	var result int64
	err := s.resolve(ctx).QueryRow(ctx, `
		INSERT INTO sys_sequences (key, current_val)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET current_val = $2
		RETURNING current_val
	`, key, value).Scan(&result)

	s.cacheMu.Lock()
	delete(s.ranges, key)
	s.cacheMu.Unlock()

	if err != nil {
		return fmt.Errorf("set sequence %s: %w", key, err)
	}
	return nil
}
