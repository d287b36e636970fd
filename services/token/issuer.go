package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/upb/channel-token-service/secrets"
	"github.com/upb/channel-token-service/services"
)

// DefaultWindow is the lifetime of issued tokens
const DefaultWindow = time.Hour

// IssuerConfig controls token lifetime and which token types are issued
type IssuerConfig struct {
	Window              time.Duration
	IssueMessagingToken bool
}

// Issuer signs the token set for a validated request
type Issuer struct {
	signer Signer
	cfg    IssuerConfig
}

// NewIssuer creates a new token issuer
func NewIssuer(signer Signer, cfg IssuerConfig) *Issuer {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	return &Issuer{signer: signer, cfg: cfg}
}

// ExpiryAt is the privilege expiry, in epoch seconds, for tokens issued at now
func ExpiryAt(now time.Time, window time.Duration) int64 {
	return now.Unix() + int64(window/time.Second)
}

// Issue signs the RTC token and, when enabled, the RTM token. Both carry the
// same expiry. Either signing failure fails the whole set.
func (i *Issuer) Issue(req TokenRequest, creds secrets.CredentialPair, now time.Time) (*IssuedTokenSet, error) {
	if !creds.Complete() {
		return nil, credentialsNotConfigured(req.Environment)
	}

	expiry := ExpiryAt(now, i.cfg.Window)

	rtc, err := safeSign(func() (string, error) {
		return i.signer.SignRTC(creds, req.ChannelName, req.UserID, req.Role, expiry, expiry)
	})
	if err != nil {
		return nil, services.WrapInternal(services.ErrTokenGeneration.Message, fmt.Errorf("rtc: %w", err))
	}

	set := &IssuedTokenSet{RTCToken: rtc, ExpiresAt: expiry}

	if i.cfg.IssueMessagingToken {
		rtm, err := safeSign(func() (string, error) {
			return i.signer.SignRTM(creds, req.UserID, expiry)
		})
		if err != nil {
			return nil, services.WrapInternal(services.ErrTokenGeneration.Message, fmt.Errorf("rtm: %w", err))
		}
		set.RTMToken = rtm
	}

	return set, nil
}

// safeSign converts signer panics and empty output into errors
func safeSign(sign func() (string, error)) (token string, err error) {
	defer func() {
		if r := recover(); r != nil {
			token = ""
			err = fmt.Errorf("signer panicked: %v", r)
		}
	}()

	token, err = sign()
	if err == nil && token == "" {
		err = errors.New("signer returned an empty token")
	}
	return token, err
}
