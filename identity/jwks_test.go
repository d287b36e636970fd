package identity

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "https://issuer.example.com"
	testAudience = "channel-token-service"
)

// Test helper to generate RSA key pair
func generateTestKeyPair(t *testing.T) *rsa.PrivateKey {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return privateKey
}

// Test helper to create a mock JWKS server that counts fetches
func createMockJWKSServer(t *testing.T, publicKey *rsa.PublicKey, kid string, hits *int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		jwks := JWKS{
			Keys: []JWK{
				{
					Kid: kid,
					Kty: "RSA",
					Alg: "RS256",
					Use: "sig",
					N:   base64.RawURLEncoding.EncodeToString(publicKey.N.Bytes()),
					E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(publicKey.E)).Bytes()),
				},
			},
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(jwks)
	}))
}

func signRS256(t *testing.T, key *rsa.PrivateKey, kid string, claims *Claims) string {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if kid != "" {
		token.Header["kid"] = kid
	}
	s, err := token.SignedString(key)
	require.NoError(t, err)
	return s
}

func validClaims(now time.Time) *Claims {
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testIssuer,
			Subject:   "user-123",
			Audience:  jwt.ClaimStrings{testAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Email: "user@example.com",
	}
}

func newTestJWKSValidator(t *testing.T, url string) *JWKSValidator {
	v, err := NewJWKSValidator(JWKSConfig{
		JWKSURL:  url,
		Issuer:   testIssuer,
		Audience: testAudience,
	})
	require.NoError(t, err)
	return v
}

func TestNewJWKSValidator(t *testing.T) {
	t.Run("requires url", func(t *testing.T) {
		_, err := NewJWKSValidator(JWKSConfig{})
		assert.Error(t, err)
	})

	t.Run("applies defaults", func(t *testing.T) {
		v, err := NewJWKSValidator(JWKSConfig{JWKSURL: "https://example.com/jwks.json"})
		require.NoError(t, err)
		assert.Equal(t, time.Hour, v.jwksCacheTTL)
		assert.Equal(t, 10*time.Second, v.httpClient.Timeout)
		assert.NotNil(t, v.keyCache)
	})
}

func TestJWKSValidator_ValidateToken(t *testing.T) {
	key := generateTestKeyPair(t)
	kid := "kid-1"
	var hits int32
	server := createMockJWKSServer(t, &key.PublicKey, kid, &hits)
	defer server.Close()

	v := newTestJWKSValidator(t, server.URL)
	ctx := context.Background()
	now := time.Now()

	t.Run("valid token", func(t *testing.T) {
		id, err := v.ValidateToken(ctx, signRS256(t, key, kid, validClaims(now)))
		require.NoError(t, err)
		assert.Equal(t, "user-123", id.Subject)
		assert.Equal(t, "user@example.com", id.Email)
		assert.Equal(t, testIssuer, id.Issuer)
		assert.WithinDuration(t, now.Add(time.Hour), id.ExpiresAt, time.Second)
	})

	t.Run("keys are cached", func(t *testing.T) {
		before := atomic.LoadInt32(&hits)
		_, err := v.ValidateToken(ctx, signRS256(t, key, kid, validClaims(now)))
		require.NoError(t, err)
		assert.Equal(t, before, atomic.LoadInt32(&hits))
	})

	t.Run("expired token", func(t *testing.T) {
		claims := validClaims(now.Add(-3 * time.Hour))
		_, err := v.ValidateToken(ctx, signRS256(t, key, kid, claims))
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		claims := validClaims(now)
		claims.Issuer = "https://evil.example.com"
		_, err := v.ValidateToken(ctx, signRS256(t, key, kid, claims))
		assert.ErrorIs(t, err, ErrInvalidIssuer)
	})

	t.Run("wrong audience", func(t *testing.T) {
		claims := validClaims(now)
		claims.Audience = jwt.ClaimStrings{"someone-else"}
		_, err := v.ValidateToken(ctx, signRS256(t, key, kid, claims))
		assert.ErrorIs(t, err, ErrInvalidAudience)
	})

	t.Run("unknown kid", func(t *testing.T) {
		before := atomic.LoadInt32(&hits)
		_, err := v.ValidateToken(ctx, signRS256(t, key, "other-kid", validClaims(now)))
		assert.ErrorIs(t, err, ErrInvalidToken)
		assert.Equal(t, before+1, atomic.LoadInt32(&hits), "unknown kid refetches the key set once")
	})

	t.Run("missing kid", func(t *testing.T) {
		_, err := v.ValidateToken(ctx, signRS256(t, key, "", validClaims(now)))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("signed by another key", func(t *testing.T) {
		other := generateTestKeyPair(t)
		_, err := v.ValidateToken(ctx, signRS256(t, other, kid, validClaims(now)))
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("hmac token is rejected", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims(now))
		s, err := token.SignedString([]byte("secret"))
		require.NoError(t, err)

		_, err = v.ValidateToken(ctx, s)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestJWKSValidator_FetchFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	v := newTestJWKSValidator(t, server.URL)

	_, err := v.FetchJWKS(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrJWKSFetchFailed))
}

func TestJWKSValidator_InvalidateCache(t *testing.T) {
	key := generateTestKeyPair(t)
	var hits int32
	server := createMockJWKSServer(t, &key.PublicKey, "kid-1", &hits)
	defer server.Close()

	v := newTestJWKSValidator(t, server.URL)
	ctx := context.Background()

	_, err := v.FetchJWKS(ctx)
	require.NoError(t, err)
	_, err = v.FetchJWKS(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	v.InvalidateCache()

	_, err = v.FetchJWKS(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestJWKSValidator_KeyRotation(t *testing.T) {
	oldKey := generateTestKeyPair(t)
	newKey := generateTestKeyPair(t)

	var rotated atomic.Bool
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		key, kid := &oldKey.PublicKey, "kid-old"
		if rotated.Load() {
			key, kid = &newKey.PublicKey, "kid-new"
		}
		_ = json.NewEncoder(w).Encode(JWKS{Keys: []JWK{{
			Kid: kid,
			Kty: "RSA",
			Alg: "RS256",
			N:   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}}})
	}))
	defer server.Close()

	v := newTestJWKSValidator(t, server.URL)
	ctx := context.Background()
	now := time.Now()

	_, err := v.ValidateToken(ctx, signRS256(t, oldKey, "kid-old", validClaims(now)))
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	rotated.Store(true)

	id, err := v.ValidateToken(ctx, signRS256(t, newKey, "kid-new", validClaims(now)))
	require.NoError(t, err)
	assert.Equal(t, "user-123", id.Subject)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))

	_, err = v.ValidateToken(ctx, signRS256(t, newKey, "kid-new", validClaims(now)))
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}
