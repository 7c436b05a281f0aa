package worker

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"igmanager/pkg/logger"
)

func collectResults(t *testing.T, pool *Pool, want int) []Result {
	t.Helper()

	var results []Result
	timeout := time.After(5 * time.Second)
	for len(results) < want {
		select {
		case r, ok := <-pool.Results():
			if !ok {
				t.Fatalf("result channel closed after %d of %d results", len(results), want)
			}
			results = append(results, r)
		case <-timeout:
			t.Fatalf("timed out waiting for results, got %d of %d", len(results), want)
		}
	}
	return results
}

func TestPoolRunsAllJobs(t *testing.T) {
	pool := NewPool(3, logger.Nop())
	pool.Start()

	var mu sync.Mutex
	ran := map[string]bool{}

	ids := []string{"a", "b", "c", "d", "e"}
	for _, id := range ids {
		id := id
		err := pool.Submit(Job{ID: id, Run: func(ctx context.Context) error {
			mu.Lock()
			ran[id] = true
			mu.Unlock()
			return nil
		}})
		if err != nil {
			t.Fatalf("Submit(%s) = %v", id, err)
		}
	}

	results := collectResults(t, pool, len(ids))
	pool.Stop()

	for _, r := range results {
		if r.Err != nil {
			t.Errorf("job %s failed: %v", r.JobID, r.Err)
		}
	}

	var got []string
	for id := range ran {
		got = append(got, id)
	}
	sort.Strings(got)
	if len(got) != len(ids) {
		t.Fatalf("ran %v, want all of %v", got, ids)
	}
}

func TestPoolReportsJobError(t *testing.T) {
	pool := NewPool(1, logger.Nop())
	pool.Start()

	boom := errors.New("boom")
	if err := pool.Submit(Job{ID: "failing", Run: func(ctx context.Context) error { return boom }}); err != nil {
		t.Fatal(err)
	}

	results := collectResults(t, pool, 1)
	pool.Stop()

	if results[0].JobID != "failing" {
		t.Fatalf("JobID = %s", results[0].JobID)
	}
	if !errors.Is(results[0].Err, boom) {
		t.Fatalf("Err = %v, want boom", results[0].Err)
	}
}

func TestPoolStopDrainsQueuedJobs(t *testing.T) {
	pool := NewPool(1, logger.Nop())
	pool.Start()

	var mu sync.Mutex
	var completed int
	for i := 0; i < 4; i++ {
		err := pool.Submit(Job{ID: "job", Run: func(ctx context.Context) error {
			time.Sleep(10 * time.Millisecond)
			mu.Lock()
			completed++
			mu.Unlock()
			return nil
		}})
		if err != nil {
			t.Fatal(err)
		}
	}

	done := make(chan struct{})
	go func() {
		for range pool.Results() {
		}
		close(done)
	}()

	pool.Stop()
	<-done

	mu.Lock()
	defer mu.Unlock()
	if completed != 4 {
		t.Fatalf("completed = %d, want 4", completed)
	}
}

func TestPoolShutdownCancelsInFlightJob(t *testing.T) {
	pool := NewPool(1, logger.Nop())
	pool.Start()

	started := make(chan struct{})
	cancelled := make(chan error, 1)
	err := pool.Submit(Job{ID: "slow", Run: func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		cancelled <- ctx.Err()
		return ctx.Err()
	}})
	if err != nil {
		t.Fatal(err)
	}

	<-started
	pool.Shutdown()

	select {
	case err := <-cancelled:
		if err != context.Canceled {
			t.Fatalf("ctx.Err() = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("job never saw cancellation")
	}
}

func TestSubmitAfterShutdown(t *testing.T) {
	pool := NewPool(1, logger.Nop())
	pool.Start()
	pool.Shutdown()

	err := pool.Submit(Job{ID: "late", Run: func(ctx context.Context) error { return nil }})
	if err == nil {
		t.Fatal("Submit after shutdown should fail")
	}
}
