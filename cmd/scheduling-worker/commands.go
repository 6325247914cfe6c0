// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/handlers"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/infrastructure/messaging"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/infrastructure/queue"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/logging"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Answer scheduling requests, reconcile webhooks and run the reminder worker.",
		Action: func(c *cli.Context) error {
			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			env := parseEnv()
			a, err := setupApp(ctx, env)
			if err != nil {
				return err
			}
			defer a.Close()

			worker := queue.NewWorker(a.repos.Queue, queue.WorkerConfig{
				PollInterval:  env.QueuePollInterval,
				Concurrency:   env.QueueConcurrency,
				RatePerSecond: env.QueueRatePerSecond,
			})
			worker.Handle(models.JobKindReminder, a.reminders.HandleReminder)

			// Create NATS subscriptions for the service.
			if _, err := messaging.Subscribe(ctx, a.natsConn, models.VideoWebhookSubject, models.SchedulingQueue,
				handlers.NewVideoWebhookHandler(a.reconciler)); err != nil {
				return err
			}
			if _, err := messaging.Subscribe(ctx, a.natsConn, models.SchedulingWildcardSubject, models.SchedulingQueue,
				handlers.NewSchedulingHandler(a.scheduling, a.guard)); err != nil {
				return err
			}

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error { return worker.Run(ctx) })
			g.Go(func() error {
				every(ctx, env.ReminderScanInterval, "reminder scan", func(ctx context.Context) error {
					return a.scan(ctx)
				})
				return nil
			})
			g.Go(func() error {
				every(ctx, env.IdempotencySweepInterval, "idempotency sweep", func(ctx context.Context) error {
					n, err := a.repos.Idempotency.DeleteExpired(ctx, time.Now())
					if err == nil && n > 0 {
						slog.InfoContext(ctx, "purged expired idempotency records", "count", n)
					}
					return err
				})
				return nil
			})

			slog.InfoContext(ctx, "scheduling worker started")
			err = g.Wait()
			slog.Info("scheduling worker stopped")
			return err
		},
	}
}

func scanCommand() *cli.Command {
	return &cli.Command{
		Name:  "scan",
		Usage: "Run one reminder scan and expire unanswered requests, then exit.",
		Action: func(c *cli.Context) error {
			a, err := setupApp(c.Context, parseEnv())
			if err != nil {
				return err
			}
			defer a.Close()
			return a.scan(c.Context)
		},
	}
}

func deadJobsCommand() *cli.Command {
	return &cli.Command{
		Name:  "dead-jobs",
		Usage: "List dead-lettered jobs, most recently failed first.",
		Action: func(c *cli.Context) error {
			a, err := setupApp(c.Context, parseEnv())
			if err != nil {
				return err
			}
			defer a.Close()

			jobs, err := a.repos.Queue.ListDead(c.Context)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tKIND\tATTEMPTS\tFAILED AT\tLAST ERROR")
			for _, job := range jobs {
				failedAt := "-"
				if job.FailedAt != nil {
					failedAt = job.FailedAt.Format(time.RFC3339)
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", job.ID, job.Kind, job.Attempts, failedAt, job.LastError)
			}
			return w.Flush()
		},
	}
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "Print the lifecycle events of a meeting in the order they happened.",
		ArgsUsage: "<meeting-uid>",
		Action: func(c *cli.Context) error {
			meetingUID := c.Args().First()
			if meetingUID == "" {
				return cli.Exit("a meeting uid is required", 1)
			}

			a, err := setupApp(c.Context, parseEnv())
			if err != nil {
				return err
			}
			defer a.Close()

			events, err := a.repos.Events.ListByMeeting(c.Context, meetingUID)
			if err != nil {
				return err
			}
			return writeHistory(c.App.Writer, events)
		},
	}
}

func writeHistory(out io.Writer, events []*models.LifecycleEvent) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "AT\tEVENT\tACTOR")
	for _, event := range events {
		actor := event.ActorUserID
		if actor == "" {
			actor = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", event.CreatedAt.Format(time.RFC3339), event.Type, actor)
	}
	return w.Flush()
}

// scan re-derives reminders for upcoming meetings and expires stale requests.
func (a *app) scan(ctx context.Context) error {
	scheduled, err := a.reminders.ScanUpcoming(ctx)
	if err != nil {
		return fmt.Errorf("scan upcoming meetings: %w", err)
	}
	expired, err := a.scheduling.ExpireStale(ctx)
	if err != nil {
		return fmt.Errorf("expire stale requests: %w", err)
	}
	slog.InfoContext(ctx, "scan complete", "reminders_scheduled", scheduled, "requests_expired", expired)
	return nil
}

// every runs fn immediately and then on each tick until ctx is done. Errors are
// logged and the next tick tries again.
func every(ctx context.Context, interval time.Duration, name string, fn func(ctx context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := fn(ctx); err != nil && ctx.Err() == nil {
			slog.ErrorContext(ctx, "periodic task failed", "task", name, logging.ErrKey, err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
