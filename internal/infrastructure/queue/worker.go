// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/pkg/concurrent"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/pkg/constants"
)

// Handler processes one delayed job. Returning an error schedules a retry; an
// error wrapped with backoff.Permanent dead letters the job at once.
type Handler func(ctx context.Context, job *models.DelayedJob) error

// WorkerConfig tunes how a Worker drains the queue.
type WorkerConfig struct {
	PollInterval   time.Duration
	Concurrency    int
	RatePerSecond  float64
	BatchSize      int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
}

// DefaultWorkerConfig returns the production defaults.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		PollInterval:   constants.DefaultQueuePollInterval,
		Concurrency:    constants.DefaultQueueConcurrency,
		RatePerSecond:  constants.DefaultQueueRatePerSecond,
		RetryBaseDelay: constants.DefaultRetryBaseDelay,
		RetryMaxDelay:  constants.DefaultRetryMaxDelay,
	}
}

// Worker polls a TaskQueue and runs the handler registered for each job kind.
type Worker struct {
	queue  domain.TaskQueue
	config WorkerConfig
	pool   *concurrent.WorkerPool
	now    func() time.Time

	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewWorker creates a worker. Zero config fields take their defaults.
func NewWorker(queue domain.TaskQueue, config WorkerConfig) *Worker {
	defaults := DefaultWorkerConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.Concurrency <= 0 {
		config.Concurrency = defaults.Concurrency
	}
	if config.BatchSize <= 0 {
		config.BatchSize = config.Concurrency * 4
	}
	if config.RetryBaseDelay <= 0 {
		config.RetryBaseDelay = defaults.RetryBaseDelay
	}
	if config.RetryMaxDelay <= 0 {
		config.RetryMaxDelay = defaults.RetryMaxDelay
	}

	return &Worker{
		queue:    queue,
		config:   config,
		pool:     concurrent.NewWorkerPool(config.Concurrency, concurrent.WithRateLimit(config.RatePerSecond, config.Concurrency)),
		now:      time.Now,
		handlers: make(map[string]Handler),
	}
}

// Handle registers h for jobs of kind, replacing any earlier handler.
func (w *Worker) Handle(kind string, h Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[kind] = h
}

func (w *Worker) handler(kind string) (Handler, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	h, ok := w.handlers[kind]
	return h, ok
}

// Run polls until ctx is done. Jobs in flight when ctx ends are not acknowledged
// and are redelivered after their lease lapses.
func (w *Worker) Run(ctx context.Context) error {
	slog.InfoContext(ctx, "delayed job worker started",
		"poll_interval", w.config.PollInterval,
		"concurrency", w.config.Concurrency,
		"rate_per_second", w.config.RatePerSecond,
	)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
			slog.ErrorContext(ctx, "error draining delayed jobs", logging.ErrKey, err)
		}

		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "delayed job worker stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce claims one batch of due jobs and processes it. It returns the number of
// jobs claimed.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	claimed, err := w.queue.Claim(ctx, w.now(), w.config.BatchSize)
	if err != nil {
		return 0, err
	}
	if len(claimed) == 0 {
		return 0, nil
	}

	functions := make([]func() error, 0, len(claimed))
	for _, c := range claimed {
		functions = append(functions, func() error {
			return w.process(ctx, c)
		})
	}

	errs := w.pool.RunAll(ctx, functions...)
	return len(claimed), errors.Join(errs...)
}

func (w *Worker) process(ctx context.Context, claimed *models.ClaimedJob) error {
	job := claimed.Job
	ctx = logging.AppendCtx(ctx, slog.String(logging.JobKey, job.ID))

	h, ok := w.handler(job.Kind)
	if !ok {
		return w.queue.DeadLetter(ctx, claimed, fmt.Errorf("no handler registered for job kind %q", job.Kind))
	}

	err := h(ctx, job)
	if err == nil {
		return w.queue.Ack(ctx, claimed)
	}

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		slog.ErrorContext(ctx, "job failed permanently", logging.ErrKey, err, "kind", job.Kind)
		return w.queue.DeadLetter(ctx, claimed, err)
	}

	retryAt := w.now().Add(RetryDelay(job.Attempts, w.config.RetryBaseDelay, w.config.RetryMaxDelay))
	slog.WarnContext(ctx, "job failed, scheduling retry",
		logging.ErrKey, err,
		"kind", job.Kind,
		"attempt", job.Attempts,
		"max_attempts", job.MaxAttempts,
		"retry_at", retryAt,
	)
	return w.queue.Fail(ctx, claimed, err, retryAt)
}

// RetryDelay is the exponential delay before retry number attempt: base, 2*base,
// 4*base and so on, capped at maxDelay.
func RetryDelay(attempt int, base, maxDelay time.Duration) time.Duration {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     base,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         maxDelay,
	}
	b.Reset()

	delay := base
	for i := 0; i < attempt; i++ {
		delay = b.NextBackOff()
	}
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}
