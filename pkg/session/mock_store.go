package session

import (
	"sync"

	"igmanager/pkg/models"
)

// MockStore is an in-memory Store for tests.
type MockStore struct {
	mu       sync.RWMutex
	sessions map[string]models.Session

	// FailSave forces Save to report the store unavailable.
	FailSave bool
}

// NewMockStore creates an empty in-memory store.
func NewMockStore() *MockStore {
	return &MockStore{sessions: make(map[string]models.Session)}
}

func (m *MockStore) Save(sess *models.Session) error {
	if m.FailSave {
		return ErrStoreUnavailable
	}
	if sess == nil || sess.Username == "" {
		return ErrInvalidSession
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.Username] = *sess
	return nil
}

func (m *MockStore) Retrieve(username string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[username]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &sess, nil
}

func (m *MockStore) List() ([]*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.Session
	for _, sess := range m.sessions {
		s := sess
		out = append(out, &s)
	}
	return out, nil
}

func (m *MockStore) Delete(username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[username]; !ok {
		return ErrSessionNotFound
	}
	delete(m.sessions, username)
	return nil
}

func (m *MockStore) Exists(username string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.sessions[username]
	return ok
}
