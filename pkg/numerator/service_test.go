package numerator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"

	core "stoq/internal/core/numerator"
)

// Mock objects
type mockRow struct {
	val int64
	err error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	if len(dest) > 0 {
		if ptr, ok := dest[0].(*int64); ok {
			*ptr = m.val
		}
	}
	return nil
}

// mockQuerier simulates sys_sequences for a single key.
type mockQuerier struct {
	mu           sync.Mutex
	currentValue int64
	calls        int
	lastKey      string
	err          error
}

func (m *mockQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return &mockRow{err: m.err}
	}
	m.lastKey, _ = args[0].(string)

	switch {
	case strings.Contains(sql, "current_val = $2"):
		m.currentValue = args[1].(int64)
	case len(args) == 2:
		m.currentValue += args[1].(int64)
	default:
		m.currentValue++
	}
	return &mockRow{val: m.currentValue}
}

func TestNext_Strict(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	ctx := context.Background()
	cfg := core.Config{Kind: core.KindPayment, Scope: "branch-1"}

	for want := int64(1); want <= 3; want++ {
		got, err := svc.Next(ctx, cfg, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != want {
			t.Errorf("expected %d, got %d", want, got)
		}
	}
	if q.lastKey != "payment:branch-1" {
		t.Errorf("expected key payment:branch-1, got %s", q.lastKey)
	}
}

func TestNext_Cached(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	ctx := context.Background()
	cfg := core.Config{Kind: core.KindSale}
	opts := &core.Options{Strategy: core.StrategyCached, RangeSize: 10}

	// First call reserves 1..10.
	num, err := svc.Next(ctx, cfg, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != 1 {
		t.Errorf("expected 1, got %d", num)
	}
	if q.currentValue != 10 {
		t.Errorf("expected DB value to be 10, got %d", q.currentValue)
	}

	// Served from memory until the range is exhausted.
	for i := 0; i < 9; i++ {
		if _, err := svc.Next(ctx, cfg, opts); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if q.calls != 1 {
		t.Errorf("expected 1 DB call, got %d", q.calls)
	}

	num, err = svc.Next(ctx, cfg, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != 11 {
		t.Errorf("expected 11, got %d", num)
	}
	if q.currentValue != 20 {
		t.Errorf("expected DB value to be 20, got %d", q.currentValue)
	}
}

func TestSetNext_ResetsCache(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	ctx := context.Background()
	cfg := core.Config{Kind: core.KindReturnedSale}
	opts := &core.Options{Strategy: core.StrategyCached, RangeSize: 5}

	if _, err := svc.Next(ctx, cfg, opts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.SetNext(ctx, cfg, 100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	num, err := svc.Next(ctx, cfg, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != 101 {
		t.Errorf("expected 101 after reset, got %d", num)
	}
}

func TestNext_PropagatesError(t *testing.T) {
	q := &mockQuerier{err: errors.New("connection refused")}
	svc := New(q)

	_, err := svc.Next(context.Background(), core.Config{Kind: core.KindPayment}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "strict next payment") {
		t.Errorf("unexpected error text: %v", err)
	}
}
