package agg

import (
	"context"

	"golang.org/x/sync/errgroup"

	"colq/internal/bitmap"
)

// parallelReduce splits [0, sel.Len()) into opts.ChunkRows-sized row ranges
// and computes fn(start, end) for each concurrently, capped at
// opts.MaxWorkers in flight — the same errgroup.Go/Wait dispatch shape
// frostdb uses to fan a table scan out across row-group workers, adapted
// here to fixed-size row chunks instead of row groups.
func parallelReduce(sel *bitmap.Bitmap, opts Options, fn func(start, end int) partial) ([]partial, error) {
	n := sel.Len()
	numChunks := (n + opts.ChunkRows - 1) / opts.ChunkRows
	if numChunks <= 0 {
		return nil, nil
	}

	results := make([]partial, numChunks)
	g, _ := errgroup.WithContext(context.Background())
	g.SetLimit(opts.MaxWorkers)

	for i := 0; i < numChunks; i++ {
		i := i
		start := i * opts.ChunkRows
		end := start + opts.ChunkRows
		if end > n {
			end = n
		}
		g.Go(func() error {
			results[i] = fn(start, end)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
