package ports

import "context"

// SecretManager defines the port for resolving sensitive configuration
// values from a secret backend at startup. Path format depends on the
// implementation:
//   - env:   the environment variable name
//   - AWS:   "billing-service/{name}"
//   - Vault: "secret/data/billing-service" with the name as a field key
type SecretManager interface {
	// GetSecret retrieves a secret by its path/name
	GetSecret(ctx context.Context, path string) (string, error)
}
