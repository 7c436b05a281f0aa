package audit

import (
	"fmt"
	"time"

	"igmanager/pkg/logger"
	"igmanager/pkg/models"
)

// Store is the audit persistence the log needs: append-only insert and a
// filtered count.
type Store interface {
	InsertAction(rec *models.ActionRecord) error
	CountActionsSince(kind models.ActionKind, since time.Time) (int, error)
	ListActions(kind models.ActionKind, limit int) ([]models.ActionRecord, error)
}

// Log is the append-only audit trail and the sole source of truth for quota
// accounting. Day boundaries are wall-clock dates in one fixed reference
// timezone so the quota cannot drift when the host timezone changes.
type Log struct {
	store  Store
	loc    *time.Location
	nowFn  func() time.Time
	logger logger.Logger
}

// New creates a Log using the given reference timezone.
func New(store Store, loc *time.Location, log logger.Logger) *Log {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Log{store: store, loc: loc, nowFn: time.Now, logger: log}
}

// SetClock overrides the clock. For tests.
func (l *Log) SetClock(nowFn func() time.Time) { l.nowFn = nowFn }

// Record appends one action attempt. A storage failure propagates: quota
// correctness depends on every attempt being written.
func (l *Log) Record(rec *models.ActionRecord) error {
	if err := l.store.InsertAction(rec); err != nil {
		return fmt.Errorf("failed to append action record: %w", err)
	}
	l.logger.WithFields(map[string]interface{}{
		"kind":    string(rec.Kind),
		"target":  rec.Target,
		"outcome": string(rec.Outcome),
	}).Debug("action recorded")
	return nil
}

// CountSince returns successful records of the kind at or after since.
func (l *Log) CountSince(kind models.ActionKind, since time.Time) (int, error) {
	return l.store.CountActionsSince(kind, since)
}

// UsedToday counts today's successful actions of the kind, with "today"
// anchored to the reference timezone.
func (l *Log) UsedToday(kind models.ActionKind) (int, error) {
	return l.CountSince(kind, l.StartOfToday())
}

// StartOfToday is the current day boundary in the reference timezone.
func (l *Log) StartOfToday() time.Time {
	now := l.nowFn().In(l.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, l.loc)
}

// QuotaStatus reports same-day usage of the kind against the limit.
func (l *Log) QuotaStatus(kind models.ActionKind, limit int) (*models.QuotaStatus, error) {
	used, err := l.UsedToday(kind)
	if err != nil {
		return nil, err
	}
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	return &models.QuotaStatus{
		Kind:      kind,
		UsedToday: used,
		Remaining: remaining,
		Limit:     limit,
	}, nil
}

// List returns recent records, newest first, optionally filtered by kind.
func (l *Log) List(kind models.ActionKind, limit int) ([]models.ActionRecord, error) {
	return l.store.ListActions(kind, limit)
}
