package types

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRoundMoney_Bankers(t *testing.T) {
	cases := map[string]string{
		"0.125":  "0.12",
		"0.135":  "0.14",
		"33.333": "33.33",
		"2.5":    "2.5",
		"-1.005": "-1",
	}
	for in, want := range cases {
		got := RoundMoney(MustMoney(in))
		assert.True(t, got.Equal(MustMoney(want)), "%s -> %s, got %s", in, want, got)
	}
}

func TestPercentAndRatio(t *testing.T) {
	assert.True(t, Percent(MustMoney("200"), decimal.NewFromInt(10)).Equal(MustMoney("20")))
	assert.True(t, Ratio(MustMoney("100"), MustMoney("200")).Equal(MustMoney("0.5")))
	assert.True(t, Ratio(MustMoney("100"), Zero()).IsZero())
}

func TestQuantity(t *testing.T) {
	q := NewQuantity(3)
	assert.Equal(t, "3.0000", q.String())
	assert.Equal(t, "-0.5000", NewQuantityFromFloat64(-0.5).String())
	assert.True(t, q.Decimal().Equal(decimal.NewFromInt(3)))
}

func TestDaysBetween(t *testing.T) {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		t.Skip("tzdata not available")
	}
	a := time.Date(2024, 1, 30, 15, 0, 0, 0, loc)
	b := time.Date(2024, 3, 1, 9, 0, 0, 0, loc)
	assert.Equal(t, 31, DaysBetween(a, b))
	assert.Equal(t, -31, DaysBetween(b, a))
	assert.Equal(t, DateOf(b, loc), AddDays(DateOf(a, loc), 31))
}
