package allowlist

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igmanager/pkg/logger"
	"igmanager/pkg/models"
)

type memStore struct {
	entries   map[string]models.AllowListEntry
	lookupErr error
}

func newMemStore() *memStore {
	return &memStore{entries: make(map[string]models.AllowListEntry)}
}

func (m *memStore) AddAllowed(handle, reason string) (bool, error) {
	if _, ok := m.entries[handle]; ok {
		return false, nil
	}
	m.entries[handle] = models.AllowListEntry{Handle: handle, Reason: reason, AddedAt: time.Now()}
	return true, nil
}

func (m *memStore) RemoveAllowed(handle string) (bool, error) {
	if _, ok := m.entries[handle]; !ok {
		return false, nil
	}
	delete(m.entries, handle)
	return true, nil
}

func (m *memStore) IsAllowed(handle string) (bool, error) {
	if m.lookupErr != nil {
		return false, m.lookupErr
	}
	_, ok := m.entries[handle]
	return ok, nil
}

func (m *memStore) ListAllowed() ([]models.AllowListEntry, error) {
	var out []models.AllowListEntry
	for _, e := range m.entries {
		out = append(out, e)
	}
	return out, nil
}

func TestAddIsIdempotent(t *testing.T) {
	l := New(newMemStore(), logger.Nop())

	res, err := l.Add([]string{"alice", "bob"}, "friends")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob"}, res.Added)
	assert.Empty(t, res.AlreadyPresent)

	// Re-adding reports, it does not fail.
	res, err = l.Add([]string{"alice", "carol"}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"carol"}, res.Added)
	assert.Equal(t, []string{"alice"}, res.AlreadyPresent)
}

func TestAddNormalizesHandles(t *testing.T) {
	store := newMemStore()
	l := New(store, logger.Nop())

	_, err := l.Add([]string{"@alice", " alice ", ""}, "")
	require.NoError(t, err)
	assert.Len(t, store.entries, 1)
	assert.True(t, l.Contains("alice"))
}

func TestRemoveReportsMissing(t *testing.T) {
	l := New(newMemStore(), logger.Nop())
	_, err := l.Add([]string{"alice"}, "")
	require.NoError(t, err)

	res, err := l.Remove([]string{"alice", "ghost"})
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, res.Removed)
	assert.Equal(t, []string{"ghost"}, res.NotPresent)
	assert.False(t, l.Contains("alice"))
}

func TestContainsSwallowsStorageError(t *testing.T) {
	store := newMemStore()
	store.lookupErr = errors.New("db locked")
	l := New(store, logger.Nop())

	// Contains is the reconciler's view: a lookup failure reads as
	// unprotected. The queue uses ContainsErr and sees the error.
	assert.False(t, l.Contains("alice"))

	_, err := l.ContainsErr("alice")
	assert.Error(t, err)
}
