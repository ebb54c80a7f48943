package routing

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
)

// Job is one independent routing request for Sweep
type Job struct {
	Name    string
	Pond    *DetentionPond
	Inflow  Inflow
	Options []RouteOption
	// Observe, when set, is called from the worker goroutine after the job
	// routes successfully, with the time spent in Route.
	Observe func(res *Result, elapsed time.Duration)
}

// Sweep routes independent jobs on at most workers goroutines. A single
// route is a sequential scan, so jobs are the unit of parallelism. Results
// are returned in job order. The first failure cancels jobs not yet started.
// workers < 1 uses GOMAXPROCS.
func Sweep(ctx context.Context, jobs []Job, workers int) ([]*Result, error) {
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]*Result, len(jobs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if job.Pond == nil {
				return fmt.Errorf("job %d (%s): no pond", i, job.Name)
			}
			start := time.Now()
			r, err := job.Pond.Route(job.Inflow, job.Options...)
			if err != nil {
				return fmt.Errorf("job %d (%s): %w", i, job.Name, err)
			}
			if job.Observe != nil {
				job.Observe(r, time.Since(start))
			}
			results[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
