// Package parallel provides the small scheduling helpers used by the forest
// builder, the SVM sweep and row-wise matrix loops.
package parallel

import (
	"context"
	"runtime"
	"sync"

	"github.com/samber/lo"

	"github.com/ezoic/cardioml/pkg/errors"
)

const chanSize = 1024

// DefaultWorkers returns GOMAXPROCS, the worker count used when a caller passes
// a non-positive value.
func DefaultWorkers() int {
	return runtime.GOMAXPROCS(0)
}

// ParallelizeWithThreshold splits [0, n) into contiguous chunks and runs fn on
// each chunk concurrently. Below threshold rows fn runs once on the whole range.
func ParallelizeWithThreshold(n, threshold int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	workers := DefaultWorkers()
	if n < threshold || workers <= 1 {
		fn(0, n)
		return
	}

	chunks := lo.Chunk(lo.Range(n), (n+workers-1)/workers)
	var wg sync.WaitGroup
	for _, chunk := range chunks {
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			fn(start, end)
		}(chunk[0], chunk[len(chunk)-1]+1)
	}
	wg.Wait()
}

// ForEach runs job(ctx, i) for i in [0, nJobs) on at most nWorkers goroutines.
// A job's panic is converted into its error. Scheduling stops once ctx is
// cancelled; jobs already running finish. The returned slice holds each job's
// error (nil on success); the second return is ctx.Err() when cancellation
// prevented some jobs from running.
func ForEach(ctx context.Context, nJobs, nWorkers int, job func(ctx context.Context, i int) error) ([]error, error) {
	errs := make([]error, nJobs)
	if nJobs == 0 {
		return errs, nil
	}
	if nWorkers <= 0 {
		nWorkers = DefaultWorkers()
	}

	run := func(i int) {
		errs[i] = safeCall(ctx, i, job)
	}

	ran := make([]bool, nJobs)
	if nWorkers == 1 {
		for i := 0; i < nJobs; i++ {
			if ctx.Err() != nil {
				break
			}
			run(i)
			ran[i] = true
		}
	} else {
		c := make(chan int, chanSize)
		// producer
		go func() {
			defer close(c)
			for i := 0; i < nJobs; i++ {
				select {
				case <-ctx.Done():
					return
				case c <- i:
				}
			}
		}()
		// consumer
		var wg sync.WaitGroup
		for w := 0; w < nWorkers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range c {
					if ctx.Err() != nil {
						continue
					}
					run(i)
					ran[i] = true
				}
			}()
		}
		wg.Wait()
	}

	if lo.Contains(ran, false) {
		return errs, errors.Wrap(ctx.Err(), "parallel: cancelled before all jobs ran")
	}
	return errs, nil
}

func safeCall(ctx context.Context, i int, job func(ctx context.Context, i int) error) (err error) {
	defer errors.Recover(&err, "parallel.ForEach")
	return job(ctx, i)
}
