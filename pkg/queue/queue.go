package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"igmanager/pkg/audit"
	"igmanager/pkg/delay"
	errs "igmanager/pkg/errors"
	"igmanager/pkg/logger"
	"igmanager/pkg/models"
	"igmanager/pkg/surface"
)

// AccountStore is the persistence the queue touches per successful action.
type AccountStore interface {
	GetAccount(handle string) (*models.Account, error)
	SetIFollow(handle string, value bool) error
}

// AllowGuard is the submission-time allow-list check.
type AllowGuard interface {
	ContainsErr(handle string) (bool, error)
}

// ErrAllowlisted rejects a submission containing a protected handle.
// Whitelisted handles are rejected before enqueue, never silently skipped.
var ErrAllowlisted = errors.New("handle is on the allow-list")

// Queue executes destructive actions strictly sequentially with a randomized
// pause between them. The pacing is the safety mechanism; concurrency within
// a batch would defeat it, so there is none.
type Queue struct {
	audit    *audit.Log
	accounts AccountStore
	allow    AllowGuard
	delays   delay.Provider
	limit    int
	logger   logger.Logger
}

// New creates a Queue with the configured daily limit.
func New(auditLog *audit.Log, accounts AccountStore, allow AllowGuard, delays delay.Provider, dailyLimit int, log logger.Logger) *Queue {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Queue{
		audit:    auditLog,
		accounts: accounts,
		allow:    allow,
		delays:   delays,
		limit:    dailyLimit,
		logger:   log,
	}
}

// Batch is one accepted unit of work: an ordered, deduplicated list of
// targets that passed the submission-time guards.
type Batch struct {
	ID        string
	SessionID string
	Items     []models.ActionQueueItem
}

// Failure describes one failed item.
type Failure struct {
	Handle string `json:"handle"`
	Reason string `json:"reason"`
}

// Result is the batch outcome: per-item outcomes plus counts. A batch is not
// a transaction; a single failure never aborts the rest.
type Result struct {
	BatchID   string                   `json:"batch_id"`
	Items     []models.ActionQueueItem `json:"items"`
	Succeeded int                      `json:"succeeded"`
	Failed    int                      `json:"failed"`
	Failures  []Failure                `json:"failures,omitempty"`
	// Cancelled is true when the batch stopped at a suspension point before
	// finishing; items after the stop carry no outcome and no audit record.
	Cancelled bool `json:"cancelled"`
	// Err is set only for batch-fatal conditions: an unusable session or an
	// audit append failure. Per-item failures never set it.
	Err error `json:"-"`
}

// Submit validates a batch without executing anything. Rejections are
// wholesale and happen before any action: a protected handle fails the whole
// submission, and a batch larger than today's remaining quota is refused
// with the exact remaining count.
func (q *Queue) Submit(sessionID string, handles []string) (*Batch, error) {
	items := make([]models.ActionQueueItem, 0, len(handles))
	seen := make(map[string]struct{}, len(handles))
	for _, h := range handles {
		h = strings.TrimSpace(strings.TrimPrefix(h, "@"))
		if h == "" {
			continue
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}

		protected, err := q.allow.ContainsErr(h)
		if err != nil {
			return nil, fmt.Errorf("allow-list check for %s: %w", h, err)
		}
		if protected {
			return nil, fmt.Errorf("%w: %s", ErrAllowlisted, h)
		}

		// Snapshot the account at selection time; unknown handles are still
		// actionable.
		acct, err := q.accounts.GetAccount(h)
		if err != nil {
			return nil, fmt.Errorf("account lookup for %s: %w", h, err)
		}
		items = append(items, models.ActionQueueItem{Handle: h, Account: acct})
	}

	if len(items) == 0 {
		return nil, errors.New("no valid targets in submission")
	}

	status, err := q.audit.QuotaStatus(models.ActionUnfollow, q.limit)
	if err != nil {
		return nil, fmt.Errorf("quota check: %w", err)
	}
	if len(items) > status.Remaining {
		return nil, errs.QuotaExceeded(len(items), status.Remaining, q.limit)
	}

	batch := &Batch{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Items:     items,
	}
	q.logger.ForSession(sessionID).ForBatch(batch.ID).WithFields(map[string]interface{}{
		"targets":         len(items),
		"remaining_today": status.Remaining,
	}).Info("batch accepted")
	return batch, nil
}

// Run executes an accepted batch against the actor. Actions run in
// submission order, one in flight at a time, with the randomized delay
// between actions (never before the first). Cancellation takes effect at the
// delay suspension point and leaves committed audit records intact.
func (q *Queue) Run(ctx context.Context, batch *Batch, actor surface.Actor) *Result {
	log := q.logger.ForSession(batch.SessionID).ForBatch(batch.ID)
	res := &Result{BatchID: batch.ID, Items: batch.Items}

	for i := range res.Items {
		if i > 0 {
			if err := q.delays.Wait(ctx); err != nil {
				res.Cancelled = true
				log.WithField("completed", i).Warn("batch cancelled between actions")
				break
			}
		}
		if ctx.Err() != nil {
			res.Cancelled = true
			log.WithField("completed", i).Warn("batch cancelled between actions")
			break
		}

		item := &res.Items[i]
		err := actor.Unfollow(ctx, item.Handle)

		if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			// Cancellation surfaced through the action before it executed;
			// no outcome, no record.
			res.Cancelled = true
			log.WithField("completed", i).Warn("batch cancelled between actions")
			break
		}

		if err == nil {
			item.Outcome = models.OutcomeSuccess
			res.Succeeded++

			// Reconciliation reads this flag; a failed write leaves the
			// handle a candidate until the next collection pass, so it goes
			// on the record, not just in the log.
			flagErr := q.accounts.SetIFollow(item.Handle, false)
			if flagErr != nil {
				item.Reason = fmt.Sprintf("follow flag not persisted: %v", flagErr)
				log.WithError(flagErr).WithField("target", item.Handle).Error("failed to update follow flag")
			}
			if recErr := q.record(batch, item.Handle, models.OutcomeSuccess, nil, flagErr); recErr != nil {
				res.Err = recErr
				return res
			}
			continue
		}

		// Per-action failure isolation: record and keep going. An unusable
		// session is the exception; every further action would fail the same
		// way, so it aborts the batch.
		item.Outcome = models.OutcomeFailed
		item.Reason = err.Error()
		res.Failed++
		res.Failures = append(res.Failures, Failure{Handle: item.Handle, Reason: err.Error()})
		if recErr := q.record(batch, item.Handle, models.OutcomeFailed, err, nil); recErr != nil {
			res.Err = recErr
			return res
		}
		if errs.IsSessionInvalid(err) {
			res.Err = err
			log.WithError(err).Error("session invalid, aborting batch")
			return res
		}
		log.WithError(err).WithField("target", item.Handle).Warn("action failed, continuing batch")
	}

	log.WithFields(map[string]interface{}{
		"succeeded": res.Succeeded,
		"failed":    res.Failed,
		"cancelled": res.Cancelled,
	}).Info("batch finished")
	return res
}

func (q *Queue) record(batch *Batch, handle string, outcome models.Outcome, actionErr, flagErr error) error {
	detail := map[string]any{"batch_id": batch.ID, "session_id": batch.SessionID}
	if actionErr != nil {
		detail["error"] = actionErr.Error()
	}
	if flagErr != nil {
		detail["follow_flag_error"] = flagErr.Error()
	}
	return q.audit.Record(&models.ActionRecord{
		Kind:    models.ActionUnfollow,
		Target:  handle,
		Outcome: outcome,
		Detail:  detail,
	})
}
