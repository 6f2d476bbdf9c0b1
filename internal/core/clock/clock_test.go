package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemClockIsPinned(t *testing.T) {
	c, err := NewFromName("America/Sao_Paulo")
	if err != nil {
		t.Skip("tzdata not available")
	}
	assert.Equal(t, "America/Sao_Paulo", c.Now().Location().String())

	today := c.Today()
	assert.Equal(t, 0, today.Hour())
	assert.Equal(t, c.Location(), today.Location())
}

func TestManualClock(t *testing.T) {
	start := time.Date(2024, 5, 10, 23, 30, 0, 0, time.UTC)
	c := Fixed(start)
	require.Equal(t, start, c.Now())

	c.Advance(time.Hour)
	assert.Equal(t, 11, c.Today().Day())
}
