package session

import (
	"os"
	"time"

	"github.com/google/uuid"

	"igmanager/pkg/models"
)

// EnvironmentStore implements Store using environment variables. Read-only;
// useful for CI and one-off runs.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based session store.
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Save is not supported for environment variables.
func (e *EnvironmentStore) Save(sess *models.Session) error {
	return ErrStoreUnavailable
}

// Retrieve builds a session from environment variables.
func (e *EnvironmentStore) Retrieve(username string) (*models.Session, error) {
	sessionID := os.Getenv("IGMANAGER_SESSION_ID")
	csrfToken := os.Getenv("IGMANAGER_CSRF_TOKEN")

	if sessionID == "" || csrfToken == "" {
		return nil, ErrSessionNotFound
	}

	// Environment variables don't carry a username.
	if username == "" {
		username = os.Getenv("IGMANAGER_USERNAME")
	}
	if username == "" {
		username = "default"
	}

	now := time.Now()
	return &models.Session{
		ID:       uuid.NewString(),
		Username: username,
		Cookies: []models.Cookie{
			{Name: "sessionid", Value: sessionID},
			{Name: "csrftoken", Value: csrfToken},
		},
		Active:    true,
		CreatedAt: now,
		LastUsed:  now,
	}, nil
}

// List returns a single session if environment variables are set.
func (e *EnvironmentStore) List() ([]*models.Session, error) {
	sess, err := e.Retrieve("")
	if err != nil {
		return []*models.Session{}, nil
	}
	return []*models.Session{sess}, nil
}

// Delete is not supported for environment variables.
func (e *EnvironmentStore) Delete(username string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials are present.
func (e *EnvironmentStore) Exists(username string) bool {
	return os.Getenv("IGMANAGER_SESSION_ID") != "" && os.Getenv("IGMANAGER_CSRF_TOKEN") != ""
}
