package auth

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const KeyringService = "guestctl"

// KeyringStore keeps the credential in the OS keychain, one entry per context.
type KeyringStore struct {
	Service string
	Account string
}

func NewKeyringStore(account string) *KeyringStore {
	return &KeyringStore{Service: KeyringService, Account: account}
}

func (s *KeyringStore) Location() string {
	return fmt.Sprintf("keychain:%s/%s", s.Service, s.Account)
}

func (s *KeyringStore) Load() (*Credential, error) {
	secret, err := keyring.Get(s.Service, s.Account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrNoCredential
		}
		return nil, fmt.Errorf("failed to read keychain: %w", err)
	}
	return decodeCredential([]byte(secret), s.Location())
}

func (s *KeyringStore) Save(cred *Credential) error {
	content, err := encodeCredential(cred)
	if err != nil {
		return err
	}
	if err := keyring.Set(s.Service, s.Account, string(content)); err != nil {
		return fmt.Errorf("failed to write keychain: %w", err)
	}
	return nil
}

func (s *KeyringStore) Delete() error {
	if err := keyring.Delete(s.Service, s.Account); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete keychain entry: %w", err)
	}
	return nil
}
