package allowlist

import (
	"fmt"
	"strings"

	"igmanager/pkg/logger"
	"igmanager/pkg/models"
)

// Store is the persistence the allow-list needs.
type Store interface {
	AddAllowed(handle, reason string) (bool, error)
	RemoveAllowed(handle string) (bool, error)
	IsAllowed(handle string) (bool, error)
	ListAllowed() ([]models.AllowListEntry, error)
}

// List is the persistent set of protected handles, excluded from candidate
// computation and from action execution regardless of selection.
type List struct {
	store  Store
	logger logger.Logger
}

// New creates a List over the given store.
func New(store Store, log logger.Logger) *List {
	if log == nil {
		log = logger.GetLogger()
	}
	return &List{store: store, logger: log}
}

// AddResult splits an add call into what changed and what was already there.
type AddResult struct {
	Added          []string
	AlreadyPresent []string
}

// RemoveResult splits a remove call the same way.
type RemoveResult struct {
	Removed    []string
	NotPresent []string
}

// Add protects the handles. Re-adding is idempotent: handles already present
// are reported, not rejected.
func (l *List) Add(handles []string, reason string) (*AddResult, error) {
	res := &AddResult{}
	for _, h := range normalize(handles) {
		inserted, err := l.store.AddAllowed(h, reason)
		if err != nil {
			return nil, fmt.Errorf("failed to add %s to allow-list: %w", h, err)
		}
		if inserted {
			res.Added = append(res.Added, h)
		} else {
			res.AlreadyPresent = append(res.AlreadyPresent, h)
		}
	}
	l.logger.WithFields(map[string]interface{}{
		"added":           len(res.Added),
		"already_present": len(res.AlreadyPresent),
	}).Info("allow-list add")
	return res, nil
}

// Remove unprotects the handles, reporting which were actually present.
func (l *List) Remove(handles []string) (*RemoveResult, error) {
	res := &RemoveResult{}
	for _, h := range normalize(handles) {
		removed, err := l.store.RemoveAllowed(h)
		if err != nil {
			return nil, fmt.Errorf("failed to remove %s from allow-list: %w", h, err)
		}
		if removed {
			res.Removed = append(res.Removed, h)
		} else {
			res.NotPresent = append(res.NotPresent, h)
		}
	}
	return res, nil
}

// Contains reports whether the handle is protected. Used synchronously by
// the reconciler and by the action queue's submission-time guard; a storage
// error reads as not-protected only for the reconciler, so the queue does
// its own storage-error handling via ContainsErr.
func (l *List) Contains(handle string) bool {
	ok, err := l.store.IsAllowed(strings.TrimSpace(handle))
	if err != nil {
		l.logger.WithError(err).WithField("handle", handle).Error("allow-list lookup failed")
		return false
	}
	return ok
}

// ContainsErr is Contains with the storage error surfaced.
func (l *List) ContainsErr(handle string) (bool, error) {
	return l.store.IsAllowed(strings.TrimSpace(handle))
}

// Entries returns the full allow-list.
func (l *List) Entries() ([]models.AllowListEntry, error) {
	return l.store.ListAllowed()
}

func normalize(handles []string) []string {
	seen := make(map[string]struct{}, len(handles))
	out := make([]string, 0, len(handles))
	for _, h := range handles {
		h = strings.TrimSpace(strings.TrimPrefix(h, "@"))
		if h == "" {
			continue
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	return out
}
