package token

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/upb/channel-token-service/identity"
	"github.com/upb/channel-token-service/secrets"
	"github.com/upb/channel-token-service/services"
	"github.com/upb/channel-token-service/utils"
)

// Wire values recognised by the role and environment mappings
const (
	rolePublisher  = "publisher"
	roleSubscriber = "subscriber"
)

// ValidatorConfig controls the optional validation policies
type ValidatorConfig struct {
	// RequireAuth rejects anonymous callers unless AuthBypass is set
	RequireAuth bool
	// AuthBypass disables the caller check for local development
	AuthBypass bool
	// StrictMapping rejects unrecognised role and env values instead of
	// falling back to the defaults
	StrictMapping bool
}

// Validator turns raw payloads into normalized TokenRequests
type Validator struct {
	cfg ValidatorConfig
}

// NewValidator creates a new request validator
func NewValidator(cfg ValidatorConfig) *Validator {
	return &Validator{cfg: cfg}
}

// Validate checks the raw request and the caller, applying defaults.
// It has no side effects; the same input always yields the same request.
func (v *Validator) Validate(raw RawRequest, caller *identity.Identity) (TokenRequest, error) {
	if v.cfg.RequireAuth && !v.cfg.AuthBypass && caller == nil {
		return TokenRequest{}, services.ErrUnauthenticated
	}

	// Blank names are rejected, but the name is signed exactly as sent
	if strings.TrimSpace(raw.ChannelName) == "" {
		return TokenRequest{}, services.ErrChannelNameRequired
	}
	if err := utils.ValidateStruct(&raw); err != nil {
		if !utils.IsValidationError(err) {
			return TokenRequest{}, services.WrapInternal("request validation failed", err)
		}
		if _, ok := utils.GetValidationFields(err)["channelName"]; ok {
			return TokenRequest{}, services.ErrChannelNameTooLong
		}
		return TokenRequest{}, services.WrapError(services.ErrorTypeInvalidArgument, "invalid request", err)
	}

	uid, err := ParseUID(raw.UID)
	if err != nil {
		return TokenRequest{}, err
	}

	role, err := v.mapRole(raw.Role)
	if err != nil {
		return TokenRequest{}, err
	}

	env, err := v.mapEnvironment(raw.Env)
	if err != nil {
		return TokenRequest{}, err
	}

	req := TokenRequest{
		ChannelName: raw.ChannelName,
		UID:         uid,
		UserID:      strconv.FormatUint(uint64(uid), 10),
		Role:        role,
		Environment: env,
	}
	if caller != nil {
		req.CallerSubject = caller.Subject
	}
	return req, nil
}

// mapRole is case-sensitive: only "publisher" grants publish rights
func (v *Validator) mapRole(role string) (Role, error) {
	if v.cfg.StrictMapping && role != "" {
		if err := utils.ValidateVar(role, "role", "oneof="+rolePublisher+" "+roleSubscriber); err != nil {
			return 0, services.ErrUnknownRole
		}
	}
	if role == rolePublisher {
		return RolePublisher, nil
	}
	return RoleSubscriber, nil
}

// mapEnvironment selects prod only for the exact value "prod"
func (v *Validator) mapEnvironment(env string) (secrets.Environment, error) {
	if v.cfg.StrictMapping && env != "" {
		allowed := "oneof=" + string(secrets.EnvironmentProd) + " " + string(secrets.EnvironmentDev)
		if err := utils.ValidateVar(env, "env", allowed); err != nil {
			return "", services.ErrUnknownEnvironment
		}
	}
	if env == string(secrets.EnvironmentProd) {
		return secrets.EnvironmentProd, nil
	}
	return secrets.EnvironmentDev, nil
}

// ParseUID normalizes the optional uid field. Absent and falsy values
// (null, false, 0, "") become 0; integers and decimal strings in the
// unsigned 32-bit range are accepted; anything else is rejected.
func ParseUID(raw json.RawMessage) (uint32, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var value interface{}
	if err := dec.Decode(&value); err != nil {
		return 0, services.ErrInvalidUID
	}

	switch val := value.(type) {
	case nil:
		return 0, nil
	case bool:
		if !val {
			return 0, nil
		}
		return 0, services.ErrInvalidUID
	case json.Number:
		return parseUIDString(val.String())
	case string:
		if val == "" {
			return 0, nil
		}
		return parseUIDString(val)
	default:
		return 0, services.ErrInvalidUID
	}
}

func parseUIDString(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, services.ErrInvalidUID
	}
	return uint32(n), nil
}
