// Package signer provides the token signing primitives used by the token
// service. Tokens are HS256 JWTs keyed by the app certificate with the app id
// as issuer, so the receiving media and messaging infrastructure can verify
// them with the same credential pair.
package signer

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/upb/channel-token-service/secrets"
	"github.com/upb/channel-token-service/services/token"
)

// Audiences distinguish the two token types
const (
	AudienceRTC = "rtc"
	AudienceRTM = "rtm"
)

var (
	// ErrMissingCredentials is returned when either half of the pair is empty
	ErrMissingCredentials = errors.New("app id and app certificate are required")

	// ErrTokenGeneration is returned when signing fails
	ErrTokenGeneration = errors.New("failed to generate token")
)

// RTCClaims are the claims of a channel join token
type RTCClaims struct {
	jwt.RegisteredClaims
	Channel          string `json:"channel"`
	UID              string `json:"uid"`
	Role             string `json:"role"`
	PrivilegeExpires int64  `json:"privilege_expire"`
}

// RTMClaims are the claims of a messaging session token
type RTMClaims struct {
	jwt.RegisteredClaims
	UID string `json:"uid"`
}

// JWTSigner signs tokens with HMAC-SHA256. Output is a pure function of the
// inputs: no issued-at claim, and the token id is a name-based UUID.
type JWTSigner struct {
	method jwt.SigningMethod
}

// NewJWTSigner creates a new HS256 signer
func NewJWTSigner() *JWTSigner {
	return &JWTSigner{method: jwt.SigningMethodHS256}
}

// SignRTC signs a channel join token
func (s *JWTSigner) SignRTC(creds secrets.CredentialPair, channel, uid string, role token.Role, tokenExpiry, privilegeExpiry int64) (string, error) {
	if !creds.Complete() {
		return "", ErrMissingCredentials
	}

	claims := &RTCClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID(creds.AppID, AudienceRTC, channel, uid, role.String(), tokenExpiry),
			Issuer:    creds.AppID,
			Subject:   uid,
			Audience:  jwt.ClaimStrings{AudienceRTC},
			ExpiresAt: jwt.NewNumericDate(unix(tokenExpiry)),
		},
		Channel:          channel,
		UID:              uid,
		Role:             role.String(),
		PrivilegeExpires: privilegeExpiry,
	}

	return s.sign(claims, creds.AppCertificate)
}

// SignRTM signs a messaging session token
func (s *JWTSigner) SignRTM(creds secrets.CredentialPair, uid string, tokenExpiry int64) (string, error) {
	if !creds.Complete() {
		return "", ErrMissingCredentials
	}

	claims := &RTMClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID(creds.AppID, AudienceRTM, uid, tokenExpiry),
			Issuer:    creds.AppID,
			Subject:   uid,
			Audience:  jwt.ClaimStrings{AudienceRTM},
			ExpiresAt: jwt.NewNumericDate(unix(tokenExpiry)),
		},
		UID: uid,
	}

	return s.sign(claims, creds.AppCertificate)
}

func (s *JWTSigner) sign(claims jwt.Claims, certificate string) (string, error) {
	signed, err := jwt.NewWithClaims(s.method, claims).SignedString([]byte(certificate))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenGeneration, err)
	}
	return signed, nil
}

// tokenID derives a stable token id from the signed fields
func tokenID(parts ...interface{}) string {
	var b strings.Builder
	for i, p := range parts {
		if i > 0 {
			b.WriteByte('|')
		}
		fmt.Fprint(&b, p)
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(b.String())).String()
}

func unix(sec int64) time.Time {
	return time.Unix(sec, 0)
}
