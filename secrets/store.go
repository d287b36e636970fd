// Package secrets holds the signing credentials for each deployment
// environment. A Store is built once at startup and never mutated, so it is
// safe for concurrent reads without locking.
package secrets

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment is a deployment tier that owns one credential pair
type Environment string

const (
	EnvironmentProd Environment = "prod"
	EnvironmentDev  Environment = "dev"
)

// Environment variable names for the four secrets
const (
	EnvAppIDProd       = "AGORA_ID_PROD"
	EnvAppCertProd     = "AGORA_CERT_PROD"
	EnvAppIDDev        = "AGORA_ID_DEV"
	EnvAppCertDev      = "AGORA_CERT_DEV"
	EnvSecretsFilePath = "SECRETS_FILE"
)

// CredentialPair is the app id and app certificate used to sign tokens
type CredentialPair struct {
	AppID          string `yaml:"app_id"`
	AppCertificate string `yaml:"app_certificate"`
}

// Complete reports whether both halves of the pair are set
func (p CredentialPair) Complete() bool {
	return strings.TrimSpace(p.AppID) != "" && strings.TrimSpace(p.AppCertificate) != ""
}

// String redacts the certificate so pairs can be logged safely
func (p CredentialPair) String() string {
	cert := "<unset>"
	if p.AppCertificate != "" {
		cert = "<redacted>"
	}
	return fmt.Sprintf("app_id=%q app_certificate=%s", p.AppID, cert)
}

// Store is the read-only, process-wide secret store
type Store struct {
	pairs map[Environment]CredentialPair
}

// NewStore creates a store from the prod and dev pairs
func NewStore(prod, dev CredentialPair) *Store {
	return &Store{
		pairs: map[Environment]CredentialPair{
			EnvironmentProd: prod,
			EnvironmentDev:  dev,
		},
	}
}

// Credentials returns the pair for env. The second result is false when the
// environment is unknown; an incomplete pair is still returned as-is.
func (s *Store) Credentials(env Environment) (CredentialPair, bool) {
	if s == nil {
		return CredentialPair{}, false
	}
	pair, ok := s.pairs[env]
	return pair, ok
}

// Configured reports, per environment, whether a complete pair is present
func (s *Store) Configured() map[Environment]bool {
	out := make(map[Environment]bool, 2)
	for _, env := range []Environment{EnvironmentProd, EnvironmentDev} {
		pair, _ := s.Credentials(env)
		out[env] = pair.Complete()
	}
	return out
}

// fileFormat is the on-disk layout of a secrets file
type fileFormat struct {
	Prod CredentialPair `yaml:"prod"`
	Dev  CredentialPair `yaml:"dev"`
}

// LoadFromEnv builds a store from the AGORA_* environment variables
func LoadFromEnv() *Store {
	return NewStore(
		CredentialPair{
			AppID:          os.Getenv(EnvAppIDProd),
			AppCertificate: os.Getenv(EnvAppCertProd),
		},
		CredentialPair{
			AppID:          os.Getenv(EnvAppIDDev),
			AppCertificate: os.Getenv(EnvAppCertDev),
		},
	)
}

// LoadFromFile builds a store from a YAML secrets file:
//
//	prod:
//	  app_id: "..."
//	  app_certificate: "..."
//	dev:
//	  app_id: "..."
//	  app_certificate: "..."
func LoadFromFile(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secrets file: %w", err)
	}

	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse secrets file %s: %w", path, err)
	}

	return NewStore(f.Prod, f.Dev), nil
}

// Load reads the secrets file when path is set, otherwise the environment
func Load(path string) (*Store, error) {
	if path == "" {
		return LoadFromEnv(), nil
	}
	return LoadFromFile(path)
}
