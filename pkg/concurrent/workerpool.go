// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package concurrent provides a bounded, optionally rate-limited worker pool.
package concurrent

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// WorkerPool runs functions with at most workerCount in flight. When a limiter is
// set every function also waits for a rate token before it starts.
type WorkerPool struct {
	workerCount int
	limiter     *rate.Limiter
}

// Option configures a WorkerPool.
type Option func(*WorkerPool)

// WithRateLimit caps how many functions may start per second. A non-positive
// perSecond leaves the pool unlimited.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(wp *WorkerPool) {
		if perSecond <= 0 {
			return
		}
		if burst <= 0 {
			burst = 1
		}
		wp.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// NewWorkerPool creates a new worker pool with the specified number of workers
func NewWorkerPool(workerCount int, opts ...Option) *WorkerPool {
	if workerCount <= 0 {
		workerCount = 1
	}
	wp := &WorkerPool{workerCount: workerCount}
	for _, opt := range opts {
		opt(wp)
	}
	return wp
}

// Size returns the maximum number of concurrently running functions.
func (wp *WorkerPool) Size() int {
	return wp.workerCount
}

func (wp *WorkerPool) wait(ctx context.Context) error {
	if wp.limiter == nil {
		return ctx.Err()
	}
	return wp.limiter.Wait(ctx)
}

// Run executes all functions and returns the first error encountered, cancelling
// work that has not started yet.
func (wp *WorkerPool) Run(ctx context.Context, functions ...func() error) error {
	if len(functions) == 0 {
		return nil
	}

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(wp.workerCount)

	for _, fn := range functions {
		g.Go(func() error {
			if err := wp.wait(groupCtx); err != nil {
				return err
			}
			return fn()
		})
	}

	return g.Wait()
}

// RunAll executes every function regardless of failures and returns the non-nil
// errors. Functions not started before ctx is done report ctx's error.
func (wp *WorkerPool) RunAll(ctx context.Context, functions ...func() error) []error {
	if len(functions) == 0 {
		return nil
	}

	errCh := make(chan error, len(functions))

	g := new(errgroup.Group)
	g.SetLimit(wp.workerCount)

	for _, fn := range functions {
		g.Go(func() error {
			if err := wp.wait(ctx); err != nil {
				errCh <- err
				return nil
			}
			if err := fn(); err != nil {
				errCh <- err
			}
			// never fail the group so siblings keep running
			return nil
		})
	}

	_ = g.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	return errs
}
