package collector

import (
	"context"
	"errors"
	"time"

	"igmanager/pkg/delay"
	"igmanager/pkg/diagnostics"
	errs "igmanager/pkg/errors"
	"igmanager/pkg/logger"
	"igmanager/pkg/models"
	"igmanager/pkg/surface"
)

// Options bounds one collection run.
type Options struct {
	// Cap is the maximum number of unique entries to collect. Hitting it
	// terminates the run with Complete=false: the result is a lower bound.
	Cap int
	// MaxRounds is the safety valve against surface changes that would
	// otherwise loop forever. Exceeding it also yields Complete=false.
	MaxRounds int
	// StallRounds is how many consecutive rounds without content growth are
	// read as "no more content reachable".
	StallRounds int
}

// Collector drives a relationship list surface to completion, deduplicating
// entries as they stream in. One run, one snapshot: partial results are
// discarded on failure so a snapshot's completion flag always matches its
// content.
type Collector struct {
	delays delay.Provider
	sink   diagnostics.Sink
	logger logger.Logger
}

// New creates a Collector. The delay provider paces the wait after each
// render-triggering advance; tests inject a zero provider.
func New(delays delay.Provider, sink diagnostics.Sink, log logger.Logger) *Collector {
	if log == nil {
		log = logger.GetLogger()
	}
	if sink == nil {
		sink = diagnostics.Discard{}
	}
	return &Collector{delays: delays, sink: sink, logger: log}
}

// Collect runs a full collection pass over the surface and produces a
// snapshot. Extraction rounds are strictly sequential: round n+1 only begins
// after round n's growth check, which is what makes dedup by handle correct.
// Cancellation takes effect at the render-wait suspension points.
func (c *Collector) Collect(ctx context.Context, surf surface.ListSurface, target string, kind models.ListKind, opts Options) (*models.CollectionSnapshot, error) {
	log := c.logger.WithFields(map[string]interface{}{
		"target": target,
		"kind":   string(kind),
	})
	log.Info("starting collection run")

	if err := surf.Open(ctx); err != nil {
		return nil, err
	}

	seen := make(map[string]models.Account)
	order := make([]string, 0, opts.Cap)

	complete := false
	stall := 0
	lastHeight := -1
	rounds := 0

	for {
		rounds++
		if rounds > opts.MaxRounds {
			log.WithField("rounds", rounds-1).Warn("max round count exceeded, stopping with partial result")
			break
		}

		entries, err := surf.Entries(ctx)
		if err != nil {
			if errors.Is(err, surface.ErrStructureNotFound) {
				return nil, c.surfaceNotFound(surf, target, kind, err, log)
			}
			return nil, err
		}

		for _, a := range entries {
			if a.Handle == "" {
				continue
			}
			if _, ok := seen[a.Handle]; ok {
				continue
			}
			seen[a.Handle] = a
			order = append(order, a.Handle)
		}

		// Terminal conditions, in priority order: cap, growth stall, end
		// indicator, round limit (checked at the top).
		if len(seen) >= opts.Cap {
			log.WithField("collected", len(seen)).Info("collection cap reached")
			break
		}

		height := surf.ContentHeight()
		if height <= lastHeight {
			stall++
			if stall >= opts.StallRounds {
				complete = true
				log.WithField("rounds", rounds).Info("content growth stalled, list complete")
				break
			}
		} else {
			stall = 0
		}
		lastHeight = height

		if surf.EndOfList() {
			complete = true
			log.WithField("rounds", rounds).Info("end of list indicator observed")
			break
		}

		if err := surf.Advance(ctx); err != nil {
			return nil, err
		}

		// Let asynchronous content load before the next extraction round.
		if err := c.delays.Wait(ctx); err != nil {
			return nil, err
		}
	}

	accounts := make([]models.Account, 0, len(order))
	for _, h := range order {
		accounts = append(accounts, seen[h])
	}

	snap := &models.CollectionSnapshot{
		Kind:        kind,
		Target:      target,
		Accounts:    accounts,
		Complete:    complete,
		Rounds:      rounds,
		CollectedAt: time.Now().UTC(),
	}

	log.WithFields(map[string]interface{}{
		"collected": len(accounts),
		"complete":  complete,
		"rounds":    rounds,
	}).Info("collection run finished")
	return snap, nil
}

// surfaceNotFound captures a diagnostic artifact and wraps the failure.
// In-memory partial results are the caller's to discard; no snapshot is
// produced.
func (c *Collector) surfaceNotFound(surf surface.ListSurface, target string, kind models.ListKind, err error, log logger.Logger) error {
	ref, capErr := c.sink.Capture("surface_not_found_"+target+"_"+string(kind), surf.Capture())
	if capErr != nil {
		log.WithError(capErr).Error("failed to capture diagnostic artifact")
		ref = ""
	}
	return errs.SurfaceNotFound("list entry structure could not be located", ref, err)
}
