package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"igmanager/pkg/models"
)

// Store is the interface for persisting session cookie bundles. Cookie
// values are opaque to everything above this package.
type Store interface {
	// Save persists the session for its username.
	Save(sess *models.Session) error

	// Retrieve gets the stored session for a specific username.
	Retrieve(username string) (*models.Session, error)

	// List returns all stored sessions.
	List() ([]*models.Session, error)

	// Delete removes the stored session for a username.
	Delete(username string) error

	// Exists checks if a session exists for a username.
	Exists(username string) bool
}

// Manager handles session storage with fallback backends: system keychain
// first, encrypted file second, environment variables last.
type Manager struct {
	stores []Store
}

// NewManager creates a manager with the storage backends available on this
// system.
func NewManager() (*Manager, error) {
	var stores []Store

	keyringStore, err := NewKeyringStore()
	if err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "sessions.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NewManagerWith creates a manager over explicit backends, in priority order.
func NewManagerWith(stores ...Store) *Manager {
	return &Manager{stores: stores}
}

// Save persists the session using the first store that accepts it.
func (m *Manager) Save(sess *models.Session) error {
	if sess == nil || sess.Username == "" {
		return ErrInvalidSession
	}
	if len(sess.Cookies) == 0 {
		return errors.New("session has no cookies")
	}

	sess.LastUsed = time.Now()

	var lastErr error
	for _, store := range m.stores {
		if err := store.Save(sess); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store session: %w", lastErr)
	}
	return errors.New("no available session stores")
}

// Retrieve gets the session from the first store that has it.
func (m *Manager) Retrieve(username string) (*models.Session, error) {
	for _, store := range m.stores {
		if sess, err := store.Retrieve(username); err == nil && sess != nil {
			return sess, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, username)
}

// RetrieveDefault gets the session for the only stored account, or the one
// supplied through the environment.
func (m *Manager) RetrieveDefault() (*models.Session, error) {
	if envStore, ok := m.stores[len(m.stores)-1].(*EnvironmentStore); ok {
		if sess, err := envStore.Retrieve(""); err == nil && sess != nil {
			return sess, nil
		}
	}

	sessions, err := m.List()
	if err == nil && len(sessions) > 0 {
		return sessions[0], nil
	}

	return nil, ErrSessionNotFound
}

// List returns all stored sessions across backends, most recent version per
// username.
func (m *Manager) List() ([]*models.Session, error) {
	byUser := make(map[string]*models.Session)

	for _, store := range m.stores {
		sessions, err := store.List()
		if err != nil {
			continue
		}
		for _, sess := range sessions {
			if existing, ok := byUser[sess.Username]; !ok || sess.LastUsed.After(existing.LastUsed) {
				byUser[sess.Username] = sess
			}
		}
	}

	var result []*models.Session
	for _, sess := range byUser {
		result = append(result, sess)
	}

	return result, nil
}

// Delete removes the session for a username from all stores.
func (m *Manager) Delete(username string) error {
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		if err := store.Delete(username); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}

	if !deleted && lastErr != nil {
		return fmt.Errorf("failed to delete session: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, username)
	}

	return nil
}

// getConfigDir returns the configuration directory path
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "igmanager")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "igmanager")
	default: // Linux and others
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "igmanager")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "igmanager")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// Sanitize creates a copy of the session with cookie values masked for
// display and logging.
func Sanitize(sess *models.Session) *models.Session {
	if sess == nil {
		return nil
	}

	out := *sess
	out.Cookies = make([]models.Cookie, len(sess.Cookies))
	for i, c := range sess.Cookies {
		c.Value = maskString(c.Value)
		out.Cookies[i] = c
	}
	return &out
}

// maskString masks all but the first 4 and last 4 characters of a string
func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Errors
var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrInvalidSession   = errors.New("invalid session")
	ErrStoreUnavailable = errors.New("session store unavailable")
)
