package app

import (
	"errors"
	"fmt"

	"github.com/nhle/mailroute/internal/credential"
)

// Secret names accepted by SetSecret and DeleteSecret.
const (
	SecretMailbox = "mailbox"
	SecretModel   = "model"
	SecretAWS     = "aws"
)

// SecretNames lists the accepted secret names.
var SecretNames = []string{SecretMailbox, SecretModel, SecretAWS}

var errNoKeyring = errors.New("no system keyring available")

// SecretKey maps a user-facing secret name to its credential key. The
// model key depends on the configured provider.
func (a *App) SecretKey(name string) (string, error) {
	switch name {
	case SecretMailbox:
		return credential.KeyMailboxPassword, nil
	case SecretModel:
		return credential.ModelKey(a.cfg.Model.Provider), nil
	case SecretAWS:
		return credential.KeyAWSSecret, nil
	default:
		return "", fmt.Errorf("unknown secret %q (want mailbox, model or aws)", name)
	}
}

// SetSecret stores value in the keyring under name.
func (a *App) SetSecret(name string, value credential.Secret) error {
	key, err := a.SecretKey(name)
	if err != nil {
		return err
	}
	if a.keyring == nil {
		return errNoKeyring
	}
	return a.keyring.Set(key, value)
}

// DeleteSecret removes name from the keyring.
func (a *App) DeleteSecret(name string) error {
	key, err := a.SecretKey(name)
	if err != nil {
		return err
	}
	if a.keyring == nil {
		return errNoKeyring
	}
	return a.keyring.Delete(key)
}
