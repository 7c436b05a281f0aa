package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igmanager/pkg/config"
	errs "igmanager/pkg/errors"
	"igmanager/pkg/logger"
	"igmanager/pkg/models"
	"igmanager/pkg/reconcile"
	"igmanager/pkg/session"
	"igmanager/pkg/store"
	"igmanager/pkg/surface"
)

// fakeSurface renders a fixed account list in one round.
type fakeSurface struct {
	accounts []models.Account
	opened   bool
}

func (f *fakeSurface) Open(ctx context.Context) error { f.opened = true; return nil }

func (f *fakeSurface) Entries(ctx context.Context) ([]models.Account, error) {
	out := make([]models.Account, len(f.accounts))
	copy(out, f.accounts)
	return out, nil
}

func (f *fakeSurface) Advance(ctx context.Context) error { return nil }
func (f *fakeSurface) ContentHeight() int                { return len(f.accounts) }
func (f *fakeSurface) EndOfList() bool                   { return f.opened }
func (f *fakeSurface) Capture() []byte                   { return []byte("{}") }

// fakeProvider serves scripted lists and records unfollow calls.
type fakeProvider struct {
	followers   []models.Account
	following   []models.Account
	validateErr error

	unfollowed  []string
	unfollowErr map[string]error
}

func (p *fakeProvider) ListSurface(sess *models.Session, target string, kind models.ListKind) surface.ListSurface {
	accounts := p.following
	if kind == models.ListFollowers {
		accounts = p.followers
	}
	stamped := make([]models.Account, len(accounts))
	for i, a := range accounts {
		if kind == models.ListFollowers {
			a.FollowsMe = true
		} else {
			a.IFollow = true
		}
		stamped[i] = a
	}
	return &fakeSurface{accounts: stamped}
}

func (p *fakeProvider) Actor(sess *models.Session) surface.Actor {
	return actorFunc(func(ctx context.Context, handle string) error {
		if err := p.unfollowErr[handle]; err != nil {
			return err
		}
		p.unfollowed = append(p.unfollowed, handle)
		return nil
	})
}

func (p *fakeProvider) Validate(ctx context.Context, sess *models.Session) error {
	return p.validateErr
}

type actorFunc func(ctx context.Context, handle string) error

func (f actorFunc) Unfollow(ctx context.Context, handle string) error { return f(ctx, handle) }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.Storage.DatabasePath = filepath.Join(dir, "test.db")
	cfg.Storage.DiagnosticsDir = filepath.Join(dir, "diagnostics")
	cfg.Limits.MinActionDelay = 0
	cfg.Limits.MaxActionDelay = 0
	cfg.Collector.MinRenderWait = 0
	cfg.Collector.MaxRenderWait = 0
	cfg.Engine.Workers = 1
	return cfg
}

func newTestEngine(t *testing.T, provider *fakeProvider) *Engine {
	t.Helper()

	cfg := testConfig(t)
	db, err := store.Setup(cfg.Storage.DatabasePath)
	require.NoError(t, err)

	vault := session.NewManagerWith(session.NewMockStore())
	eng, err := New(cfg, db, vault, provider, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close() })
	return eng
}

func login(t *testing.T, eng *Engine) *models.Session {
	t.Helper()
	sess, err := eng.Login(context.Background(), "me", []models.Cookie{
		{Name: "sessionid", Value: "cookie-value"},
		{Name: "csrftoken", Value: "token-value"},
	})
	require.NoError(t, err)
	return sess
}

func account(handle string) models.Account {
	return models.Account{Handle: handle}
}

func TestLoginAndResume(t *testing.T) {
	eng := newTestEngine(t, &fakeProvider{})

	sess := login(t, eng)
	assert.Equal(t, "me", sess.Username)
	assert.True(t, sess.Active)

	resumed, err := eng.Resume("me")
	require.NoError(t, err)
	assert.Equal(t, sess.ID, resumed.ID)

	records, err := eng.Logs(models.ActionLogin, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.OutcomeSuccess, records[0].Outcome)
}

func TestLoginRejectsInvalidCookies(t *testing.T) {
	provider := &fakeProvider{validateErr: errs.SessionInvalid("platform returned 401", nil)}
	eng := newTestEngine(t, provider)

	_, err := eng.Login(context.Background(), "me", []models.Cookie{{Name: "sessionid", Value: "stale"}})
	require.Error(t, err)
	assert.True(t, errs.IsSessionInvalid(err))

	// The failed attempt is still on the record, and nothing was stored.
	records, err := eng.Logs(models.ActionLogin, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.OutcomeFailed, records[0].Outcome)

	_, err = eng.Resume("me")
	assert.Error(t, err)
}

func TestLogout(t *testing.T) {
	eng := newTestEngine(t, &fakeProvider{})
	sess := login(t, eng)

	require.NoError(t, eng.Logout(sess))

	_, err := eng.Resume("me")
	assert.Error(t, err)
}

func TestCollectPersistsSnapshot(t *testing.T) {
	provider := &fakeProvider{
		followers: []models.Account{account("alice"), account("bob")},
		following: []models.Account{account("alice"), account("carol")},
	}
	eng := newTestEngine(t, provider)
	sess := login(t, eng)

	ctx := context.Background()
	snap, err := eng.Collect(ctx, sess, "me", models.ListFollowers)
	require.NoError(t, err)
	assert.Len(t, snap.Accounts, 2)
	assert.True(t, snap.Complete)

	_, err = eng.Collect(ctx, sess, "me", models.ListFollowing)
	require.NoError(t, err)

	records, err := eng.Logs(models.ActionCollectFollowers, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.OutcomeSuccess, records[0].Outcome)
}

func TestReconcileRequiresBothSnapshots(t *testing.T) {
	provider := &fakeProvider{followers: []models.Account{account("alice")}}
	eng := newTestEngine(t, provider)
	sess := login(t, eng)

	_, err := eng.Reconcile("me", reconcile.Filters{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no follower snapshot")

	_, err = eng.Collect(context.Background(), sess, "me", models.ListFollowers)
	require.NoError(t, err)

	_, err = eng.Reconcile("me", reconcile.Filters{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no following snapshot")
}

func TestFullUnfollowFlow(t *testing.T) {
	provider := &fakeProvider{
		followers: []models.Account{account("alice"), account("bob")},
		following: []models.Account{account("alice"), account("carol"), account("dave"), account("erin")},
	}
	eng := newTestEngine(t, provider)
	sess := login(t, eng)

	ctx := context.Background()
	_, err := eng.Collect(ctx, sess, "me", models.ListFollowers)
	require.NoError(t, err)
	_, err = eng.Collect(ctx, sess, "me", models.ListFollowing)
	require.NoError(t, err)

	// dave is deliberate; protect it before reconciling.
	_, err = eng.Protect([]string{"dave"}, "keeping this one")
	require.NoError(t, err)

	res, err := eng.Reconcile("me", reconcile.Filters{})
	require.NoError(t, err)
	require.Len(t, res.Candidates, 2)
	assert.False(t, res.Provisional)

	handles := make([]string, len(res.Candidates))
	for i, a := range res.Candidates {
		handles[i] = a.Handle
	}
	assert.Equal(t, []string{"carol", "erin"}, handles)

	batch, err := eng.SubmitBatch(sess, handles)
	require.NoError(t, err)

	result := eng.RunBatch(ctx, sess, batch)
	require.NoError(t, result.Err)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, []string{"carol", "erin"}, provider.unfollowed)

	quota, err := eng.QuotaStatus()
	require.NoError(t, err)
	assert.Equal(t, 2, quota.UsedToday)
	assert.Equal(t, 48, quota.Remaining)

	stats, err := eng.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TodayUnfollows)

	// Recomputing after the batch must drop the acted-upon accounts: their
	// follow flags were flipped, no fresh collection pass required.
	res, err = eng.Reconcile("me", reconcile.Filters{})
	require.NoError(t, err)
	assert.Empty(t, res.Candidates)
}

func TestSubmitBatchRejectsProtected(t *testing.T) {
	eng := newTestEngine(t, &fakeProvider{})
	sess := login(t, eng)

	_, err := eng.Protect([]string{"dave"}, "")
	require.NoError(t, err)

	_, err = eng.SubmitBatch(sess, []string{"carol", "dave"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dave")
}

func TestRunBatchAsync(t *testing.T) {
	provider := &fakeProvider{
		followers: []models.Account{},
		following: []models.Account{account("carol")},
	}
	eng := newTestEngine(t, provider)
	sess := login(t, eng)

	batch, err := eng.SubmitBatch(sess, []string{"carol"})
	require.NoError(t, err)
	require.NoError(t, eng.RunBatchAsync(sess, batch))

	res := <-eng.BatchResults()
	assert.Equal(t, batch.ID, res.JobID)
	require.NoError(t, res.Err)
	assert.Equal(t, []string{"carol"}, provider.unfollowed)
}

func TestProtectAndUnprotect(t *testing.T) {
	eng := newTestEngine(t, &fakeProvider{})

	added, err := eng.Protect([]string{"alice", "bob"}, "close friends")
	require.NoError(t, err)
	assert.Len(t, added.Added, 2)

	entries, err := eng.Protected()
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	removed, err := eng.Unprotect([]string{"alice", "ghost"})
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, removed.Removed)
	assert.Equal(t, []string{"ghost"}, removed.NotPresent)

	records, err := eng.Logs(models.ActionWhitelistAdd, 10)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}
