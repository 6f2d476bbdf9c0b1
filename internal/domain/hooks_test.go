package domain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHookRegistryStopsAtFirstError(t *testing.T) {
	r := NewHookRegistry[*int]()
	var calls []string
	boom := errors.New("boom")

	r.On(AfterPay, func(ctx context.Context, v *int) error {
		calls = append(calls, "first")
		*v++
		return nil
	})
	r.On(AfterPay, func(ctx context.Context, v *int) error {
		calls = append(calls, "second")
		return boom
	})
	r.On(AfterPay, func(ctx context.Context, v *int) error {
		calls = append(calls, "third")
		return nil
	})

	n := 0
	err := r.Run(context.Background(), AfterPay, &n)

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"first", "second"}, calls)
	assert.Equal(t, 1, n)
	assert.Equal(t, 3, r.Len(AfterPay))
	assert.NoError(t, r.Run(context.Background(), AfterCancel, &n))
}
