// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/infrastructure/calendar"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/infrastructure/messaging"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/infrastructure/queue"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/infrastructure/sqlstore"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/infrastructure/store"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/service"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/pkg/constants"
)

// repositories holds the stores backed by NATS KV buckets.
type repositories struct {
	Meetings    *store.NatsMeetingRepository
	Events      *store.NatsLifecycleEventRepository
	Sessions    *store.NatsVideoSessionRepository
	Idempotency domain.IdempotencyStore
	Queue       *queue.NatsDelayedQueue

	closers []io.Closer
}

func (r *repositories) Close() {
	for _, c := range r.closers {
		if err := c.Close(); err != nil {
			slog.With(logging.ErrKey, err).Warn("error closing store")
		}
	}
}

// app is the wired scheduling worker.
type app struct {
	env        environment
	natsConn   *nats.Conn
	repos      *repositories
	scheduling *service.SchedulingService
	reminders  *service.ReminderService
	reconciler *service.VideoReconciler
	guard      *service.IdempotencyGuard
}

// setupNATS connects to NATS with unlimited reconnects.
func setupNATS(env environment) (*nats.Conn, error) {
	conn, err := nats.Connect(
		env.NatsURL,
		nats.Name("lfx-v2-scheduling-service"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.With(logging.ErrKey, err).Warn("disconnected from NATS")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("reconnected to NATS", "url", c.ConnectedUrlRedacted())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			slog.Info("NATS connection closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS at %s: %w", env.NatsURL, err)
	}
	slog.Info("connected to NATS", "url", conn.ConnectedUrlRedacted())
	return conn, nil
}

// getKeyValueStores creates or updates every bucket the service uses.
func getKeyValueStores(ctx context.Context, env environment, conn *nats.Conn) (*repositories, error) {
	js, err := jetstream.New(conn)
	if err != nil {
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	bucket := func(name string, history uint8, ttl time.Duration) (jetstream.KeyValue, error) {
		kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:  name,
			History: history,
			TTL:     ttl,
		})
		if err != nil {
			return nil, fmt.Errorf("create key-value bucket %s: %w", name, err)
		}
		return kv, nil
	}

	meetings, err := bucket(store.KVStoreNameMeetings, 5, 0)
	if err != nil {
		return nil, err
	}
	events, err := bucket(store.KVStoreNameMeetingEvents, 1, 0)
	if err != nil {
		return nil, err
	}
	sessions, err := bucket(store.KVStoreNameVideoSessions, 5, 0)
	if err != nil {
		return nil, err
	}
	delayed, err := bucket(store.KVStoreNameDelayedJobs, 1, 0)
	if err != nil {
		return nil, err
	}
	dead, err := bucket(store.KVStoreNameDeadJobs, 1, 0)
	if err != nil {
		return nil, err
	}

	repos := &repositories{
		Meetings: store.NewNatsMeetingRepository(meetings),
		Events:   store.NewNatsLifecycleEventRepository(events),
		Sessions: store.NewNatsVideoSessionRepository(sessions),
		Queue:    queue.NewNatsDelayedQueue(delayed, dead, queue.WithLease(constants.DefaultJobLease)),
	}

	switch env.IdempotencyBackend {
	case idempotencyBackendSQLite:
		sqlStore, err := sqlstore.Open(ctx, env.SQLiteDSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite idempotency store: %w", err)
		}
		repos.Idempotency = sqlStore
		repos.closers = append(repos.closers, sqlStore)
	default:
		// records carry their own expiry; the bucket TTL is an upper bound
		keys, err := bucket(store.KVStoreNameIdempotencyKeys, 1, models.WebhookIdempotencyTTL)
		if err != nil {
			return nil, err
		}
		repos.Idempotency = store.NewNatsIdempotencyStore(keys)
	}
	slog.InfoContext(ctx, "key-value stores ready", "idempotency_backend", env.IdempotencyBackend)

	return repos, nil
}

// setupApp connects to NATS and wires the services.
func setupApp(ctx context.Context, env environment) (*app, error) {
	conn, err := setupNATS(env)
	if err != nil {
		return nil, err
	}
	repos, err := getKeyValueStores(ctx, env, conn)
	if err != nil {
		conn.Close()
		return nil, err
	}

	config := service.DefaultServiceConfig()
	config.StrictConflicts = env.StrictConflicts
	config.LFXEnvironment = env.LFXEnvironment
	config.LFXAppOrigin = env.LFXAppOrigin

	messageBuilder := messaging.NewMessageBuilder(conn)
	reminders := service.NewReminderService(repos.Meetings, repos.Queue, messageBuilder)
	reminders.MaxAttempts = env.QueueMaxAttempts
	reminders.URLs = config.URLs()
	reconciler := service.NewVideoReconciler(repos.Meetings, repos.Sessions, repos.Events, repos.Idempotency, reminders, config)
	scheduling := service.NewSchedulingService(
		repos.Meetings,
		repos.Events,
		reminders,
		reconciler,
		messageBuilder,
		calendar.NewGenerator(config.URLs()),
		config,
	)

	return &app{
		env:        env,
		natsConn:   conn,
		repos:      repos,
		scheduling: scheduling,
		reminders:  reminders,
		reconciler: reconciler,
		guard:      service.NewIdempotencyGuard(repos.Idempotency),
	}, nil
}

// Close drains the NATS connection and closes the stores.
func (a *app) Close() {
	if err := a.natsConn.Drain(); err != nil {
		slog.With(logging.ErrKey, err).Warn("error draining NATS connection")
		a.natsConn.Close()
	}
	a.repos.Close()
}
