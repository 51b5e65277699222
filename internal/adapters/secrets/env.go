package secrets

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/subwave/billing-service/internal/domain/ports"
)

// envSecretManager resolves secrets from environment variables. The secret
// path is the variable name. This is the default provider for development
// and container environments that inject secrets into the process env.
type envSecretManager struct {
	logger *zap.Logger
}

// NewEnvSecretManager creates an environment-backed secret manager
func NewEnvSecretManager(logger *zap.Logger) ports.SecretManager {
	return &envSecretManager{logger: logger}
}

// GetSecret reads the environment variable named by path
func (m *envSecretManager) GetSecret(ctx context.Context, path string) (string, error) {
	value := os.Getenv(path)
	if value == "" {
		return "", fmt.Errorf("secret not found: %s", path)
	}

	m.logger.Debug("Secret resolved from environment", zap.String("path", path))
	return value, nil
}
