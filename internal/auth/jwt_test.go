package auth

import (
	"testing"
	"time"

	"quickpay/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallbackSigner(t *testing.T) {
	s := NewCallbackSigner(&config.CallbackConfig{Secret: "s3cret", TokenTTL: time.Hour})
	require.NotNil(t, s)

	tok, err := s.Sign("pay-1")
	require.NoError(t, err)
	id, err := s.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "pay-1", id)

	other := NewCallbackSigner(&config.CallbackConfig{Secret: "different"})
	_, err = other.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = s.Verify("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestCallbackSigner_Expired(t *testing.T) {
	s := NewCallbackSigner(&config.CallbackConfig{Secret: "s3cret", TokenTTL: -time.Minute})
	s.ttl = -time.Minute
	tok, err := s.Sign("pay-1")
	require.NoError(t, err)
	_, err = s.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewCallbackSigner_Disabled(t *testing.T) {
	assert.Nil(t, NewCallbackSigner(&config.CallbackConfig{}))
}
