package numerator

import (
	"context"
)

// Generator hands out monotonic identifiers.
// Implementations live in pkg/numerator (database) and in this package (mock).
type Generator interface {
	// Next returns the next identifier of the sequence described by cfg.
	Next(ctx context.Context, cfg Config, opts *Options) (int64, error)

	// SetNext moves the sequence so that the following Next returns value+1.
	SetNext(ctx context.Context, cfg Config, value int64) error
}
