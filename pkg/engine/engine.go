package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"igmanager/internal/worker"
	"igmanager/pkg/allowlist"
	"igmanager/pkg/audit"
	"igmanager/pkg/collector"
	"igmanager/pkg/config"
	"igmanager/pkg/delay"
	"igmanager/pkg/diagnostics"
	errs "igmanager/pkg/errors"
	"igmanager/pkg/logger"
	"igmanager/pkg/models"
	"igmanager/pkg/queue"
	"igmanager/pkg/reconcile"
	"igmanager/pkg/session"
	"igmanager/pkg/store"
	"igmanager/pkg/surface"
)

// Engine is the orchestration facade: it owns the persistence, the surface
// provider, the collector, and the action queue, and serializes work per
// session so a collection pass and a batch never share a browsing context.
type Engine struct {
	cfg      *config.Config
	db       *store.DB
	vault    *session.Manager
	provider surface.Provider

	collector *collector.Collector
	queue     *queue.Queue
	audit     *audit.Log
	allow     *allowlist.List
	pool      *worker.Pool
	logger    logger.Logger

	mu        sync.Mutex
	sessLocks map[string]*sync.Mutex
}

// New wires an Engine from its parts. The caller keeps ownership of the
// database handle until Close.
func New(cfg *config.Config, db *store.DB, vault *session.Manager, provider surface.Provider, log logger.Logger) (*Engine, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("invalid timezone: %w", err)
	}

	var sink diagnostics.Sink
	if cfg.Storage.DiagnosticsDir != "" {
		fileSink, err := diagnostics.NewFileSink(cfg.Storage.DiagnosticsDir, log)
		if err != nil {
			return nil, fmt.Errorf("diagnostics sink: %w", err)
		}
		sink = fileSink
	} else {
		sink = diagnostics.Discard{}
	}

	auditLog := audit.New(db, loc, log)
	allowList := allowlist.New(db, log)

	renderDelays := delay.NewUniform(cfg.Collector.MinRenderWait, cfg.Collector.MaxRenderWait)
	actionDelays := delay.NewUniform(cfg.Limits.MinActionDelay, cfg.Limits.MaxActionDelay)

	pool := worker.NewPool(cfg.Engine.Workers, log)
	pool.Start()

	return &Engine{
		cfg:       cfg,
		db:        db,
		vault:     vault,
		provider:  provider,
		collector: collector.New(renderDelays, sink, log),
		queue:     queue.New(auditLog, db, allowList, actionDelays, cfg.Limits.MaxDailyUnfollows, log),
		audit:     auditLog,
		allow:     allowList,
		pool:      pool,
		logger:    log,
		sessLocks: make(map[string]*sync.Mutex),
	}, nil
}

// Close stops background workers and releases the database.
func (e *Engine) Close() error {
	e.pool.Stop()
	return e.db.Close()
}

// sessionLock returns the mutex serializing all surface work for a session.
func (e *Engine) sessionLock(sessionID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	l, ok := e.sessLocks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		e.sessLocks[sessionID] = l
	}
	return l
}

// Login validates the supplied cookies against the platform and, on success,
// persists the session to the vault and the database. The cookie values are
// never inspected beyond handing them to the surface.
func (e *Engine) Login(ctx context.Context, username string, cookies []models.Cookie) (*models.Session, error) {
	now := time.Now()
	sess := &models.Session{
		ID:        uuid.NewString(),
		Username:  username,
		Cookies:   cookies,
		Active:    true,
		CreatedAt: now,
		LastUsed:  now,
	}

	if err := e.provider.Validate(ctx, sess); err != nil {
		_ = e.audit.Record(&models.ActionRecord{
			Kind:    models.ActionLogin,
			Target:  username,
			Outcome: models.OutcomeFailed,
			Detail:  map[string]any{"error": err.Error()},
		})
		return nil, fmt.Errorf("session validation failed: %w", err)
	}

	if err := e.vault.Save(sess); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}
	if err := e.db.SaveSession(sess); err != nil {
		return nil, fmt.Errorf("failed to record session: %w", err)
	}

	if err := e.audit.Record(&models.ActionRecord{
		Kind:    models.ActionLogin,
		Target:  username,
		Outcome: models.OutcomeSuccess,
		Detail:  map[string]any{"session_id": sess.ID},
	}); err != nil {
		return nil, err
	}

	e.logger.ForSession(sess.ID).WithField("username", username).Info("logged in")
	return sess, nil
}

// Resume loads a previously stored session for the username from the vault.
func (e *Engine) Resume(username string) (*models.Session, error) {
	if username == "" {
		return e.vault.RetrieveDefault()
	}
	return e.vault.Retrieve(username)
}

// Logout deactivates the session and removes it from the vault.
func (e *Engine) Logout(sess *models.Session) error {
	if err := e.db.DeactivateSession(sess.ID); err != nil {
		return err
	}
	if err := e.vault.Delete(sess.Username); err != nil && err != session.ErrSessionNotFound {
		e.logger.WithError(err).Warn("failed to remove session from vault")
	}

	if err := e.audit.Record(&models.ActionRecord{
		Kind:    models.ActionLogout,
		Target:  sess.Username,
		Outcome: models.OutcomeSuccess,
		Detail:  map[string]any{"session_id": sess.ID},
	}); err != nil {
		return err
	}

	e.logger.ForSession(sess.ID).Info("logged out")
	return nil
}

// Collect runs one list collection pass for the target and persists the
// snapshot plus every observed account. Only one operation runs per session
// at a time.
func (e *Engine) Collect(ctx context.Context, sess *models.Session, target string, kind models.ListKind) (*models.CollectionSnapshot, error) {
	lock := e.sessionLock(sess.ID)
	lock.Lock()
	defer lock.Unlock()

	surf := e.provider.ListSurface(sess, target, kind)
	opts := collector.Options{
		Cap:         e.cfg.Collector.Cap,
		MaxRounds:   e.cfg.Collector.MaxRounds,
		StallRounds: e.cfg.Collector.StallRounds,
	}

	snap, err := e.collector.Collect(ctx, surf, target, kind, opts)
	recOutcome := models.OutcomeSuccess
	detail := map[string]any{"session_id": sess.ID}
	if err != nil {
		recOutcome = models.OutcomeFailed
		detail["error"] = err.Error()
		if de := errs.DiagnosticRef(err); de != "" {
			detail["diagnostic_ref"] = de
		}
	} else {
		detail["entries"] = len(snap.Accounts)
		detail["rounds"] = snap.Rounds
		detail["complete"] = snap.Complete
	}

	if recErr := e.audit.Record(&models.ActionRecord{
		Kind:    models.CollectKind(kind),
		Target:  target,
		Outcome: recOutcome,
		Detail:  detail,
	}); recErr != nil {
		e.logger.WithError(recErr).Error("failed to record collection")
	}
	if err != nil {
		return nil, err
	}

	for _, a := range snap.Accounts {
		if upErr := e.db.UpsertObserved(a); upErr != nil {
			return nil, fmt.Errorf("failed to persist account %s: %w", a.Handle, upErr)
		}
	}
	if err := e.db.SaveSnapshot(snap); err != nil {
		return nil, fmt.Errorf("failed to persist snapshot: %w", err)
	}

	return snap, nil
}

// Reconcile computes the unfollow candidate set for a target from its latest
// stored follower and following snapshots. Purely a read; takes no session.
func (e *Engine) Reconcile(target string, filters reconcile.Filters) (*reconcile.Result, error) {
	followers, err := e.db.LatestSnapshot(models.ListFollowers, target)
	if err != nil {
		return nil, err
	}
	if followers == nil {
		return nil, fmt.Errorf("no follower snapshot for %s", target)
	}
	following, err := e.db.LatestSnapshot(models.ListFollowing, target)
	if err != nil {
		return nil, err
	}
	if following == nil {
		return nil, fmt.Errorf("no following snapshot for %s", target)
	}

	res := reconcile.Candidates(followers, following, e.allow, filters)
	return &res, nil
}

// SubmitBatch validates a batch of unfollow targets against the allow-list
// and today's quota without executing anything.
func (e *Engine) SubmitBatch(sess *models.Session, handles []string) (*queue.Batch, error) {
	return e.queue.Submit(sess.ID, handles)
}

// RunBatch executes an accepted batch synchronously under the session lock.
func (e *Engine) RunBatch(ctx context.Context, sess *models.Session, batch *queue.Batch) *queue.Result {
	lock := e.sessionLock(sess.ID)
	lock.Lock()
	defer lock.Unlock()

	actor := e.provider.Actor(sess)
	return e.queue.Run(ctx, batch, actor)
}

// RunBatchAsync schedules the batch on the worker pool and returns
// immediately. The result arrives on BatchResults.
func (e *Engine) RunBatchAsync(sess *models.Session, batch *queue.Batch) error {
	return e.pool.Submit(worker.Job{
		ID: batch.ID,
		Run: func(ctx context.Context) error {
			res := e.RunBatch(ctx, sess, batch)
			return res.Err
		},
	})
}

// BatchResults exposes the worker pool's completion channel.
func (e *Engine) BatchResults() <-chan worker.Result {
	return e.pool.Results()
}

// QuotaStatus reports today's unfollow usage against the configured limit.
func (e *Engine) QuotaStatus() (*models.QuotaStatus, error) {
	return e.audit.QuotaStatus(models.ActionUnfollow, e.cfg.Limits.MaxDailyUnfollows)
}

// Stats aggregates stored accounts and today's activity.
func (e *Engine) Stats() (*models.Stats, error) {
	return e.db.Stats(e.audit.StartOfToday(), e.cfg.Limits.MaxDailyUnfollows)
}

// Logs returns recent audit records, newest first. An empty kind means all.
func (e *Engine) Logs(kind models.ActionKind, limit int) ([]models.ActionRecord, error) {
	return e.audit.List(kind, limit)
}

// Protect adds handles to the allow-list and records the change.
func (e *Engine) Protect(handles []string, reason string) (*allowlist.AddResult, error) {
	res, err := e.allow.Add(handles, reason)
	if err != nil {
		return nil, err
	}
	for _, h := range res.Added {
		if recErr := e.audit.Record(&models.ActionRecord{
			Kind:    models.ActionWhitelistAdd,
			Target:  h,
			Outcome: models.OutcomeSuccess,
			Detail:  map[string]any{"reason": reason},
		}); recErr != nil {
			return nil, recErr
		}
	}
	return res, nil
}

// Unprotect removes handles from the allow-list and records the change.
func (e *Engine) Unprotect(handles []string) (*allowlist.RemoveResult, error) {
	res, err := e.allow.Remove(handles)
	if err != nil {
		return nil, err
	}
	for _, h := range res.Removed {
		if recErr := e.audit.Record(&models.ActionRecord{
			Kind:    models.ActionWhitelistRemove,
			Target:  h,
			Outcome: models.OutcomeSuccess,
		}); recErr != nil {
			return nil, recErr
		}
	}
	return res, nil
}

// Protected lists the allow-list entries.
func (e *Engine) Protected() ([]models.AllowListEntry, error) {
	return e.allow.Entries()
}
