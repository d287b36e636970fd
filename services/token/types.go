// Package token implements channel token issuance: request validation,
// credential resolution and signing of RTC/RTM tokens with a shared expiry.
package token

import (
	"encoding/json"

	"github.com/upb/channel-token-service/secrets"
)

// Role is the permission granted by an RTC token
type Role int

const (
	RolePublisher  Role = 1
	RoleSubscriber Role = 2
)

// String returns the wire name of the role
func (r Role) String() string {
	if r == RolePublisher {
		return "publisher"
	}
	return "subscriber"
}

// MaxChannelNameLength is the longest channel name the media service accepts
const MaxChannelNameLength = 64

// RawRequest is the inbound payload before validation
type RawRequest struct {
	ChannelName string          `json:"channelName" validate:"required,max=64"`
	UID         json.RawMessage `json:"uid,omitempty"`
	Role        string          `json:"role,omitempty"`
	Env         string          `json:"env,omitempty"`
}

// TokenRequest is a validated, normalized issuance request
type TokenRequest struct {
	ChannelName string
	UID         uint32
	// UserID is the canonical decimal form of UID, shared by both token types
	UserID      string
	Role        Role
	Environment secrets.Environment
	// CallerSubject is the authenticated caller, empty when anonymous
	CallerSubject string
}

// IssuedTokenSet is the result of a successful issuance
type IssuedTokenSet struct {
	RTCToken  string `json:"rtcToken"`
	RTMToken  string `json:"rtmToken,omitempty"`
	ExpiresAt int64  `json:"expiresAt"`
}

// Signer produces opaque signed tokens. Implementations must be safe for
// concurrent use and must not perform I/O.
type Signer interface {
	SignRTC(creds secrets.CredentialPair, channel, uid string, role Role, tokenExpiry, privilegeExpiry int64) (string, error)
	SignRTM(creds secrets.CredentialPair, uid string, tokenExpiry int64) (string, error)
}
