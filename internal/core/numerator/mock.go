package numerator

import (
	"context"
	"sync"
)

// MockGenerator is an in-memory Generator for tests and the memory store.
// Function fields override the default counter behavior.
type MockGenerator struct {
	NextFunc    func(ctx context.Context, cfg Config, opts *Options) (int64, error)
	SetNextFunc func(ctx context.Context, cfg Config, value int64) error

	mu       sync.Mutex
	counters map[string]int64
}

// Next implements Generator.
func (m *MockGenerator) Next(ctx context.Context, cfg Config, opts *Options) (int64, error) {
	if m.NextFunc != nil {
		return m.NextFunc(ctx, cfg, opts)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counters == nil {
		m.counters = make(map[string]int64)
	}
	m.counters[cfg.Key()]++
	return m.counters[cfg.Key()], nil
}

// SetNext implements Generator.
func (m *MockGenerator) SetNext(ctx context.Context, cfg Config, value int64) error {
	if m.SetNextFunc != nil {
		return m.SetNextFunc(ctx, cfg, value)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counters == nil {
		m.counters = make(map[string]int64)
	}
	m.counters[cfg.Key()] = value
	return nil
}

// Ensure compile-time interface compliance.
var _ Generator = (*MockGenerator)(nil)
