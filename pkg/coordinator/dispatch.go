package coordinator

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/flwr-org/secagg/pkg/secagg"
)

// defaultMaxConcurrency bounds fan-out when Round.MaxConcurrency is unset.
const defaultMaxConcurrency = 64

func newSemaphore(n int) *semaphore.Weighted {
	if n <= 0 {
		n = defaultMaxConcurrency
	}
	return semaphore.NewWeighted(int64(n))
}

// dispatch fans fn out to every id in ids, bounded by sem, within
// timeout (spec.md §5). An id whose fn call errors, or whose semaphore
// acquisition is cancelled by the stage deadline, is dropped from
// survivors and recorded in failures — it never aborts the whole stage
// on a single id's failure; only the caller judges the resulting cohort
// size against min_num/threshold.
func dispatch(ctx context.Context, ids []secagg.ID, timeout time.Duration, sem *semaphore.Weighted, fn func(ctx context.Context, id secagg.ID) error) (survivors []secagg.ID, failures map[secagg.ID]error) {
	stageCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var mu sync.Mutex
	failures = make(map[secagg.ID]error)

	g, gctx := errgroup.WithContext(stageCtx)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				mu.Lock()
				failures[id] = err
				mu.Unlock()
				return nil
			}
			defer sem.Release(1)

			if err := fn(gctx, id); err != nil {
				mu.Lock()
				failures[id] = err
				mu.Unlock()
				return nil
			}
			mu.Lock()
			survivors = append(survivors, id)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // fn errors are carried via failures, never returned to the group
	return survivors, failures
}
