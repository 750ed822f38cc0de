package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	for _, s := range []string{"1", "100", "1500.5"} {
		_, err := ParseAmount(s)
		assert.NoError(t, err, s)
	}
	for _, s := range []string{"0", "-5", "abc", "", "0.99"} {
		_, err := ParseAmount(s)
		assert.ErrorIs(t, err, ErrInvalidAmount, s)
	}
}

func TestProviderAmount(t *testing.T) {
	d, err := ParseAmount("1500.5")
	require.NoError(t, err)
	assert.Equal(t, int64(1501), ProviderAmount(d))
	assert.Equal(t, int64(50), ProviderAmount(decimal.NewFromInt(50)))
	assert.Equal(t, int64(1), ProviderAmount(decimal.RequireFromString("1.49")))
}

func TestStatusForResultCode(t *testing.T) {
	assert.Equal(t, StatusCompleted, StatusForResultCode(0))
	assert.Equal(t, StatusCancelled, StatusForResultCode(1032))
	assert.Equal(t, StatusFailed, StatusForResultCode(1))
	assert.Equal(t, StatusFailed, StatusForResultCode(2001))
	assert.False(t, IsTerminal(StatusPending))
	assert.True(t, IsTerminal(StatusCancelled))
}
