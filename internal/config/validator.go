package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingSecrets is matched by every [MissingSecretsError]
var ErrMissingSecrets = errors.New("missing required secrets")

// MissingSecretsError lists the required secrets that are not set
type MissingSecretsError struct {
	Names []string
}

func (e *MissingSecretsError) Error() string {
	return fmt.Sprintf("Missing required environment variables: %s", strings.Join(e.Names, ", "))
}

func (e *MissingSecretsError) Is(target error) bool {
	return target == ErrMissingSecrets
}

// Validate returns the names of missing required secrets in a fixed order.
// The result is empty when every secret is set.
func (c *Config) Validate() []string {
	missing := []string{}
	if c.OpenRouterAPIKey == "" {
		missing = append(missing, KeyOpenRouterAPIKey)
	}
	if c.DeepgramAPIKey == "" {
		missing = append(missing, KeyDeepgramAPIKey)
	}
	if c.CartesiaAPIKey == "" {
		missing = append(missing, KeyCartesiaAPIKey)
	}
	return missing
}

// RequireSecrets returns a [MissingSecretsError] when Validate reports
// anything missing.
func (c *Config) RequireSecrets() error {
	if missing := c.Validate(); len(missing) > 0 {
		return &MissingSecretsError{Names: missing}
	}
	return nil
}
