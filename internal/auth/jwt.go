package auth

import (
	"errors"
	"time"

	"quickpay/config"

	"github.com/golang-jwt/jwt/v5"
)

const callbackIssuer = "quickpay-callback"

var ErrInvalidToken = errors.New("invalid token")

// CallbackSigner issues and checks the token appended to the STK callback URL.
// Daraja cannot authenticate its callbacks, so the URL itself carries a
// short-lived HS256 token whose subject is the payment id.
type CallbackSigner struct {
	secret []byte
	ttl    time.Duration
}

// NewCallbackSigner returns nil when no secret is configured; a nil signer
// disables callback tokens.
func NewCallbackSigner(cfg *config.CallbackConfig) *CallbackSigner {
	if cfg.Secret == "" {
		return nil
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CallbackSigner{secret: []byte(cfg.Secret), ttl: ttl}
}

func (s *CallbackSigner) Sign(paymentID string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   paymentID,
		Issuer:    callbackIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify returns the payment id the token was issued for.
func (s *CallbackSigner) Verify(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(callbackIssuer))
	if err != nil {
		return "", ErrInvalidToken
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
