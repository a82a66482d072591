package config

import (
	"context"
	"fmt"
	"strings"
)

// SecretPrefix marks a value that names a Secret Manager version instead of
// holding the secret, e.g. sm://projects/p/secrets/groq-key/versions/latest.
const SecretPrefix = "sm://"

type SecretAccessor interface {
	Access(ctx context.Context, name string) (string, error)
}

func (c *Config) secretFields() map[string]*string {
	return map[string]*string{
		"n8n.api_key":  &c.N8N.APIKey,
		"groq.api_key": &c.Groq.APIKey,
	}
}

// HasSecretRefs reports whether any field still needs resolving.
func (c *Config) HasSecretRefs() bool {
	for _, v := range c.secretFields() {
		if strings.HasPrefix(*v, SecretPrefix) {
			return true
		}
	}
	return false
}

// ResolveSecrets replaces every sm:// reference with the secret's payload.
func ResolveSecrets(ctx context.Context, c *Config, sa SecretAccessor) error {
	for field, v := range c.secretFields() {
		if !strings.HasPrefix(*v, SecretPrefix) {
			continue
		}
		value, err := sa.Access(ctx, strings.TrimPrefix(*v, SecretPrefix))
		if err != nil {
			return fmt.Errorf("resolving %s: %w", field, err)
		}
		*v = value
	}
	return nil
}
