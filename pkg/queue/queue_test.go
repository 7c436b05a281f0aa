package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igmanager/pkg/audit"
	"igmanager/pkg/delay"
	errs "igmanager/pkg/errors"
	"igmanager/pkg/logger"
	"igmanager/pkg/models"
)

// memAudit is an in-memory audit store.
type memAudit struct {
	mu      sync.Mutex
	records []models.ActionRecord
	failAll bool
}

func (m *memAudit) InsertAction(rec *models.ActionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return errors.New("disk full")
	}
	r := *rec
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	m.records = append(m.records, r)
	return nil
}

func (m *memAudit) CountActionsSince(kind models.ActionKind, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.records {
		if r.Kind == kind && r.Outcome == models.OutcomeSuccess && !r.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *memAudit) ListActions(kind models.ActionKind, limit int) ([]models.ActionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.ActionRecord, len(m.records))
	copy(out, m.records)
	return out, nil
}

func (m *memAudit) recordsOf(kind models.ActionKind) []models.ActionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ActionRecord
	for _, r := range m.records {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

// memAccounts tracks SetIFollow calls.
type memAccounts struct {
	mu       sync.Mutex
	unfollow []string
	flagErr  error
}

func (m *memAccounts) GetAccount(handle string) (*models.Account, error) { return nil, nil }

func (m *memAccounts) SetIFollow(handle string, value bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.flagErr != nil {
		return m.flagErr
	}
	if !value {
		m.unfollow = append(m.unfollow, handle)
	}
	return nil
}

type memAllow map[string]bool

func (m memAllow) ContainsErr(handle string) (bool, error) { return m[handle], nil }

// scriptedActor fails or succeeds per handle, and can cancel the context
// after a number of actions.
type scriptedActor struct {
	mu          sync.Mutex
	failures    map[string]error
	calls       []string
	cancelAfter int
	cancel      context.CancelFunc
}

func (a *scriptedActor) Unfollow(ctx context.Context, handle string) error {
	a.mu.Lock()
	a.calls = append(a.calls, handle)
	n := len(a.calls)
	a.mu.Unlock()

	if err, ok := a.failures[handle]; ok {
		return err
	}
	if a.cancel != nil && n >= a.cancelAfter {
		a.cancel()
	}
	return nil
}

func newTestQueue(auditStore *memAudit, accounts *memAccounts, allow memAllow, limit int) *Queue {
	log := audit.New(auditStore, time.UTC, logger.Nop())
	return New(log, accounts, allow, delay.Zero{}, limit, logger.Nop())
}

func seedUsed(auditStore *memAudit, n int) {
	for i := 0; i < n; i++ {
		_ = auditStore.InsertAction(&models.ActionRecord{
			Kind:    models.ActionUnfollow,
			Target:  "earlier",
			Outcome: models.OutcomeSuccess,
		})
	}
}

func TestSubmitDeduplicatesAndNormalizes(t *testing.T) {
	q := newTestQueue(&memAudit{}, &memAccounts{}, memAllow{}, 50)

	batch, err := q.Submit("sess-1", []string{"@alice", "bob", "alice", " bob ", ""})
	require.NoError(t, err)

	handles := make([]string, 0, len(batch.Items))
	for _, item := range batch.Items {
		handles = append(handles, item.Handle)
	}
	assert.Equal(t, []string{"alice", "bob"}, handles)
	assert.NotEmpty(t, batch.ID)
}

func TestSubmitRejectsProtectedHandle(t *testing.T) {
	q := newTestQueue(&memAudit{}, &memAccounts{}, memAllow{"bestfriend": true}, 50)

	batch, err := q.Submit("sess-1", []string{"alice", "bestfriend"})
	assert.Nil(t, batch)
	assert.ErrorIs(t, err, ErrAllowlisted)
}

func TestSubmitQuotaWholesale(t *testing.T) {
	auditStore := &memAudit{}
	seedUsed(auditStore, 48)
	q := newTestQueue(auditStore, &memAccounts{}, memAllow{}, 50)

	// 48 of 50 used: a batch of 3 does not fit and is rejected with the
	// exact remaining count. Nothing partial runs.
	batch, err := q.Submit("sess-1", []string{"a", "b", "c"})
	assert.Nil(t, batch)
	require.True(t, errs.IsQuotaExceeded(err))
	var engErr *errs.Error
	require.ErrorAs(t, err, &engErr)
	assert.Equal(t, 2, engErr.Remaining)

	// A batch of 2 fits exactly.
	batch, err = q.Submit("sess-1", []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, batch.Items, 2)
}

func TestRunRecordsEveryAttempt(t *testing.T) {
	auditStore := &memAudit{}
	accounts := &memAccounts{}
	q := newTestQueue(auditStore, accounts, memAllow{}, 50)

	batch, err := q.Submit("sess-1", []string{"a", "b", "c", "d", "e"})
	require.NoError(t, err)

	actor := &scriptedActor{failures: map[string]error{
		"c": errs.TransientAction("c", errors.New("action button not found")),
	}}
	res := q.Run(context.Background(), batch, actor)

	require.NoError(t, res.Err)
	assert.Equal(t, 4, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "c", res.Failures[0].Handle)

	// One audit record per attempted action, failure included.
	recs := auditStore.recordsOf(models.ActionUnfollow)
	assert.Len(t, recs, 5)

	// Only successes flip the follow flag.
	assert.ElementsMatch(t, []string{"a", "b", "d", "e"}, accounts.unfollow)
}

func TestRunSequentialOrder(t *testing.T) {
	q := newTestQueue(&memAudit{}, &memAccounts{}, memAllow{}, 50)

	batch, err := q.Submit("sess-1", []string{"a", "b", "c"})
	require.NoError(t, err)

	actor := &scriptedActor{}
	res := q.Run(context.Background(), batch, actor)

	require.NoError(t, res.Err)
	assert.Equal(t, []string{"a", "b", "c"}, actor.calls)
}

func TestRunSessionInvalidAbortsBatch(t *testing.T) {
	auditStore := &memAudit{}
	q := newTestQueue(auditStore, &memAccounts{}, memAllow{}, 50)

	batch, err := q.Submit("sess-1", []string{"a", "b", "c", "d"})
	require.NoError(t, err)

	actor := &scriptedActor{failures: map[string]error{
		"b": errs.SessionInvalid("platform returned 401", nil),
	}}
	res := q.Run(context.Background(), batch, actor)

	require.Error(t, res.Err)
	assert.True(t, errs.IsSessionInvalid(res.Err))
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	// a succeeded, b failed and aborted; c and d were never attempted.
	assert.Equal(t, []string{"a", "b"}, actor.calls)
	assert.Len(t, auditStore.recordsOf(models.ActionUnfollow), 2)
}

func TestRunCancellationBetweenActions(t *testing.T) {
	auditStore := &memAudit{}
	q := newTestQueue(auditStore, &memAccounts{}, memAllow{}, 50)

	batch, err := q.Submit("sess-1", []string{"a", "b", "c", "d", "e"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	actor := &scriptedActor{cancelAfter: 2, cancel: cancel}
	res := q.Run(ctx, batch, actor)

	assert.True(t, res.Cancelled)
	require.NoError(t, res.Err)
	assert.Equal(t, 2, res.Succeeded)
	// Exactly the two completed actions are recorded; the rest carry no
	// outcome at all.
	assert.Len(t, auditStore.recordsOf(models.ActionUnfollow), 2)
	assert.Equal(t, []string{"a", "b"}, actor.calls)
	for _, item := range res.Items[2:] {
		assert.Empty(t, item.Outcome)
	}
}

func TestRunFlagWriteFailureIsOnTheRecord(t *testing.T) {
	auditStore := &memAudit{}
	accounts := &memAccounts{flagErr: errors.New("database is locked")}
	q := newTestQueue(auditStore, accounts, memAllow{}, 50)

	batch, err := q.Submit("sess-1", []string{"a"})
	require.NoError(t, err)

	res := q.Run(context.Background(), batch, &scriptedActor{})

	// The unfollow itself succeeded; only the flag write did not. That must
	// not fail the item or the batch, but it must be visible.
	require.NoError(t, res.Err)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, models.OutcomeSuccess, res.Items[0].Outcome)
	assert.Contains(t, res.Items[0].Reason, "follow flag not persisted")

	records := auditStore.recordsOf(models.ActionUnfollow)
	require.Len(t, records, 1)
	assert.Equal(t, models.OutcomeSuccess, records[0].Outcome)
	assert.Equal(t, "database is locked", records[0].Detail["follow_flag_error"])
}

func TestRunAuditFailureIsFatal(t *testing.T) {
	auditStore := &memAudit{failAll: true}
	q := newTestQueue(auditStore, &memAccounts{}, memAllow{}, 50)

	batch, err := q.Submit("sess-1", []string{"a", "b"})
	require.NoError(t, err)

	actor := &scriptedActor{}
	res := q.Run(context.Background(), batch, actor)

	require.Error(t, res.Err)
	// The first action ran, its record could not be written, and the batch
	// stopped there.
	assert.Equal(t, []string{"a"}, actor.calls)
}
