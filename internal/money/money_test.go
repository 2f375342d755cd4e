package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestParse(t *testing.T) {
	v, err := Parse(" 1250.75 ")
	require.NoError(t, err)
	assert.True(t, v.Equal(d("1250.75")))

	_, err = Parse("")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = Parse("12,50")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestFloorZero(t *testing.T) {
	assert.True(t, FloorZero(d("-5")).IsZero())
	assert.True(t, FloorZero(d("5")).Equal(d("5")))
}

func TestIsSettled(t *testing.T) {
	assert.True(t, IsSettled(d("0.009"), SettlementTolerance))
	assert.True(t, IsSettled(d("-0.009"), SettlementTolerance))
	assert.False(t, IsSettled(d("0.01"), SettlementTolerance))
}

func TestSafeDiv(t *testing.T) {
	assert.True(t, SafeDiv(d("10"), decimal.Zero).IsZero())
	assert.True(t, SafeDiv(d("10"), d("4")).Equal(d("2.5")))
}

func TestSumAndDeref(t *testing.T) {
	assert.True(t, Sum(d("0.1"), d("0.2")).Equal(d("0.3")))
	assert.True(t, Deref(nil).IsZero())
	v := d("7")
	assert.True(t, Deref(&v).Equal(v))
}
