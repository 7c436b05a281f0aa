package session

import (
	"encoding/json"
	"fmt"

	"github.com/zalando/go-keyring"

	"igmanager/pkg/models"
)

const (
	keyringService = "igmanager"
	keyringPrefix  = "instagram_"
)

// KeyringStore implements Store using the system keychain.
type KeyringStore struct{}

// NewKeyringStore creates a new keyring-based session store.
func NewKeyringStore() (*KeyringStore, error) {
	// Test if keyring is available
	testKey := "test_availability"
	err := keyring.Set(keyringService, testKey, "test")
	if err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, testKey)

	return &KeyringStore{}, nil
}

// Save stores the session in the system keychain.
func (k *KeyringStore) Save(sess *models.Session) error {
	if sess == nil || sess.Username == "" {
		return ErrInvalidSession
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	key := keyringPrefix + sess.Username
	if err := keyring.Set(keyringService, key, string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}

	return nil
}

// Retrieve gets the session from the system keychain.
func (k *KeyringStore) Retrieve(username string) (*models.Session, error) {
	if username == "" {
		return nil, ErrInvalidSession
	}

	key := keyringPrefix + username
	data, err := keyring.Get(keyringService, key)
	if err != nil {
		if err == keyring.ErrNotFound {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to retrieve from keyring: %w", err)
	}

	var sess models.Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	return &sess, nil
}

// List returns all stored sessions from the keychain.
func (k *KeyringStore) List() ([]*models.Session, error) {
	// go-keyring cannot enumerate keys, a limitation of the underlying APIs.
	return []*models.Session{}, nil
}

// Delete removes the session from the system keychain.
func (k *KeyringStore) Delete(username string) error {
	if username == "" {
		return ErrInvalidSession
	}

	key := keyringPrefix + username
	err := keyring.Delete(keyringService, key)
	if err != nil {
		if err == keyring.ErrNotFound {
			return ErrSessionNotFound
		}
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}

	return nil
}

// Exists checks if a session exists in the keychain.
func (k *KeyringStore) Exists(username string) bool {
	if username == "" {
		return false
	}

	key := keyringPrefix + username
	_, err := keyring.Get(keyringService, key)
	return err == nil
}
