package dedup

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// ParallelMap applies fn to every item with at most workers calls in flight
// and returns the results in input order.
//
// A call never cancels its siblings. The context is consulted only before an
// item is dispatched: once it is done, remaining items are skipped (their
// result slots keep the zero value) and ctx.Err() is returned after the
// running calls finish.
func ParallelMap[T, R any](ctx context.Context, items []T, workers int, fn func(ctx context.Context, item T) R) ([]R, error) {
	if workers < 1 {
		workers = 1
	}

	results := make([]R, len(items))

	var g errgroup.Group
	g.SetLimit(workers)

	for i, item := range items {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			// Go may have blocked on the limit while ctx was cancelled
			if ctx.Err() != nil {
				return nil
			}
			results[i] = fn(ctx, item)
			return nil
		})
	}

	g.Wait()
	return results, ctx.Err()
}
