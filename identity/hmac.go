package identity

import (
	"context"
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// HMACConfig holds configuration for HMACValidator
type HMACConfig struct {
	Secret   string
	Issuer   string
	Audience string
}

// HMACValidator validates HS256 caller tokens signed with a shared secret
type HMACValidator struct {
	secret []byte
	opts   []jwt.ParserOption
}

// NewHMACValidator creates a new shared-secret validator
func NewHMACValidator(cfg HMACConfig) (*HMACValidator, error) {
	if cfg.Secret == "" {
		return nil, errors.New("hmac validator: secret is required")
	}
	return &HMACValidator{
		secret: []byte(cfg.Secret),
		opts:   parserOptions([]string{jwt.SigningMethodHS256.Alg()}, cfg.Issuer, cfg.Audience),
	}, nil
}

// ValidateToken validates a caller token and returns its identity
func (v *HMACValidator) ValidateToken(_ context.Context, tokenString string) (*Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, v.opts...)
	return toIdentity(token, err)
}
