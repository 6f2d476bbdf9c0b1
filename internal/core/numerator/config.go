// Package numerator provides domain contracts for identifier sequences.
package numerator

import "fmt"

// Strategy defines the numbering generation strategy.
type Strategy int

const (
	// StrategyStrict allocates every value in the database, without gaps.
	// Used for payments and fiscal-relevant documents.
	StrategyStrict Strategy = iota

	// StrategyCached allocates ranges of values in memory.
	// May produce gaps if the process restarts.
	StrategyCached
)

// Options configuration for number generation.
type Options struct {
	Strategy Strategy
	// RangeSize is the number of values reserved at once by StrategyCached.
	// Default is 50.
	RangeSize int64
}

// DefaultOptions returns standard options (Strict).
func DefaultOptions() *Options {
	return &Options{
		Strategy: StrategyStrict,
	}
}

// Config names one sequence: an entity kind, optionally scoped (per branch).
type Config struct {
	Kind  string
	Scope string
}

// Key is the persisted sequence key.
func (c Config) Key() string {
	if c.Scope == "" {
		return c.Kind
	}
	return fmt.Sprintf("%s:%s", c.Kind, c.Scope)
}

// Sequence kinds used by the payment core.
const (
	KindPayment       = "payment"
	KindSale          = "sale"
	KindReturnedSale  = "returned_sale"
	KindRenegotiation = "renegotiation"
)
