package credential

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "mailroute"

// Well-known credential keys.
const (
	KeyMailboxPassword = "mailbox-password"
	KeyGeminiAPIKey    = "gemini-api-key"
	KeyAnthropicAPIKey = "anthropic-api-key"
	KeyAWSSecret       = "aws-secret-access-key"
)

// ErrNotFound is returned when a credential is not present in any source.
var ErrNotFound = errors.New("credential not found")

// Store reads and writes secrets in the system keyring.
type Store struct {
	ring keyring.Keyring
}

// OpenStore returns a Store backed by the first available system keyring.
func OpenStore(configDir string) (*Store, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  configDir + "/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("mailroute-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return &Store{ring: ring}, nil
}

// NewStore wraps an already opened keyring.
func NewStore(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

// Get retrieves a credential by key.
func (s *Store) Get(key string) (Secret, error) {
	item, err := s.ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return Secret{}, fmt.Errorf("getting credential %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return Secret{}, fmt.Errorf("getting credential %q: %w", key, err)
	}

	return NewSecret(string(item.Data)), nil
}

// Set stores a credential by key.
func (s *Store) Set(key string, value Secret) error {
	err := s.ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(value.Reveal()),
		Label: serviceName + " " + key,
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Delete removes a credential by key.
func (s *Store) Delete(key string) error {
	if err := s.ring.Remove(key); err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}
