package models

import (
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// IssuanceOutcome is the result of one issuance attempt
type IssuanceOutcome string

const (
	IssuanceOutcomeSuccess  IssuanceOutcome = "success"
	IssuanceOutcomeRejected IssuanceOutcome = "rejected"
	IssuanceOutcomeFailed   IssuanceOutcome = "failed"
)

// IssuanceEvent is an audit record of a token issuance attempt.
// It never holds token material or credentials.
type IssuanceEvent struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	RequestID      string          `json:"request_id" db:"request_id"`
	Outcome        IssuanceOutcome `json:"outcome" db:"outcome"`
	Channel        string          `json:"channel" db:"channel"`
	UserID         string          `json:"user_id" db:"user_id"`
	Role           string          `json:"role" db:"role"`
	Environment    string          `json:"environment" db:"environment"`
	CallerSubject  *string         `json:"caller_subject,omitempty" db:"caller_subject"`
	MessagingToken bool            `json:"messaging_token" db:"messaging_token"`
	ExpiresAt      *int64          `json:"expires_at,omitempty" db:"expires_at"`
	ErrorType      *string         `json:"error_type,omitempty" db:"error_type"`
	ErrorMessage   *string         `json:"error_message,omitempty" db:"error_message"`
	Timestamp      time.Time       `json:"timestamp" db:"timestamp"`
}

// Column widths of token_issuance_events. The builders clip to these so a
// row is never refused for length.
const (
	MaxRequestIDLength     = 255
	MaxChannelLength       = 255
	MaxUserIDLength        = 20
	MaxRoleLength          = 20
	MaxEnvironmentLength   = 10
	MaxCallerSubjectLength = 255
	MaxErrorTypeLength     = 50
)

// NewIssuanceEvent creates a new IssuanceEvent instance
func NewIssuanceEvent(requestID string, outcome IssuanceOutcome) *IssuanceEvent {
	return &IssuanceEvent{
		ID:        uuid.New(),
		RequestID: clip(requestID, MaxRequestIDLength),
		Outcome:   outcome,
		Timestamp: time.Now().UTC(),
	}
}

// WithRequest sets the validated request fields
func (e *IssuanceEvent) WithRequest(channel, userID, role, environment string) *IssuanceEvent {
	e.Channel = clip(channel, MaxChannelLength)
	e.UserID = clip(userID, MaxUserIDLength)
	e.Role = clip(role, MaxRoleLength)
	e.Environment = clip(environment, MaxEnvironmentLength)
	return e
}

// WithCaller sets the authenticated caller subject
func (e *IssuanceEvent) WithCaller(subject string) *IssuanceEvent {
	if subject != "" {
		subject = clip(subject, MaxCallerSubjectLength)
		e.CallerSubject = &subject
	}
	return e
}

// WithExpiry records the shared expiry of the issued tokens
func (e *IssuanceEvent) WithExpiry(expiresAt int64, messagingToken bool) *IssuanceEvent {
	e.ExpiresAt = &expiresAt
	e.MessagingToken = messagingToken
	return e
}

// WithError sets the error classification and the caller-facing message
func (e *IssuanceEvent) WithError(errorType, message string) *IssuanceEvent {
	errorType = clip(errorType, MaxErrorTypeLength)
	e.ErrorType = &errorType
	e.ErrorMessage = &message
	return e
}

// clip truncates s to n characters, counted as Postgres counts VARCHAR length
func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
