package token

import (
	"github.com/upb/channel-token-service/secrets"
	"github.com/upb/channel-token-service/services"
)

// CredentialSource is a read-only view of the secret store
type CredentialSource interface {
	Credentials(env secrets.Environment) (secrets.CredentialPair, bool)
}

// Resolver selects the signing credentials for an environment
type Resolver struct {
	source CredentialSource
}

// NewResolver creates a new credential resolver
func NewResolver(source CredentialSource) *Resolver {
	return &Resolver{source: source}
}

// Resolve returns the complete credential pair for env, or a
// failed-precondition error when either half is missing.
func (r *Resolver) Resolve(env secrets.Environment) (secrets.CredentialPair, error) {
	if r.source == nil {
		return secrets.CredentialPair{}, credentialsNotConfigured(env)
	}

	pair, ok := r.source.Credentials(env)
	if !ok || !pair.Complete() {
		return secrets.CredentialPair{}, credentialsNotConfigured(env)
	}
	return pair, nil
}

func credentialsNotConfigured(env secrets.Environment) error {
	return services.NewDomainError(
		services.ErrorTypeFailedPrecondition,
		services.ErrCredentialsNotConfigured.Message,
		nil,
	).WithDetail("environment", string(env))
}
