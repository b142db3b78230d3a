package credential

import (
	"errors"
	"fmt"
	"os"

	"github.com/nhle/mailroute/internal/model"
)

// envVars lists the environment variables consulted for each key, in order.
var envVars = map[string][]string{
	KeyMailboxPassword: {"MAILROUTE_MAILBOX_PASSWORD"},
	KeyGeminiAPIKey:    {"MAILROUTE_MODEL_API_KEY", "GOOGLE_API_KEY", "GEMINI_API_KEY"},
	KeyAnthropicAPIKey: {"MAILROUTE_MODEL_API_KEY", "ANTHROPIC_API_KEY"},
	KeyAWSSecret:       {"AWS_SECRET_ACCESS_KEY"},
}

// ModelKey returns the credential key holding the API key for provider.
func ModelKey(provider string) string {
	if provider == model.ProviderAnthropic {
		return KeyAnthropicAPIKey
	}
	return KeyGeminiAPIKey
}

// Resolver looks a secret up in the environment first and then in the
// keyring. It caches nothing; every call reads the sources again.
type Resolver struct {
	store     *Store
	lookupEnv func(string) (string, bool)
}

// NewResolver returns a Resolver over store. store may be nil, in which case
// only the environment is consulted.
func NewResolver(store *Store) *Resolver {
	return &Resolver{store: store, lookupEnv: os.LookupEnv}
}

// Resolve returns the secret stored under key.
func (r *Resolver) Resolve(key string) (Secret, error) {
	for _, name := range envVars[key] {
		if v, ok := r.lookupEnv(name); ok && v != "" {
			return NewSecret(v), nil
		}
	}

	if r.store == nil {
		return Secret{}, fmt.Errorf("resolving %q: %w", key, ErrNotFound)
	}

	secret, err := r.store.Get(key)
	if err != nil {
		return Secret{}, fmt.Errorf("resolving %q: %w", key, err)
	}
	if secret.Empty() {
		return Secret{}, fmt.Errorf("resolving %q: %w", key, ErrNotFound)
	}
	return secret, nil
}

// IsNotFound reports whether err means the credential is missing.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
