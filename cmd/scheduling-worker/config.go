// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/pkg/constants"
)

// Idempotency store backends selectable with IDEMPOTENCY_BACKEND.
const (
	idempotencyBackendNats   = "nats"
	idempotencyBackendSQLite = "sqlite"
)

// environment are the environment variables for the scheduling worker.
type environment struct {
	NatsURL            string
	LFXEnvironment     string
	LFXAppOrigin       string
	IdempotencyBackend string
	SQLiteDSN          string
	StrictConflicts    bool

	QueueConcurrency   int
	QueueRatePerSecond float64
	QueuePollInterval  time.Duration
	QueueMaxAttempts   int

	ReminderScanInterval     time.Duration
	IdempotencySweepInterval time.Duration
}

// parseEnv parses environment variables for the scheduling worker
func parseEnv() environment {
	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		natsURL = "nats://localhost:4222"
	}

	var lfxEnvironment string
	switch os.Getenv("LFX_ENVIRONMENT") {
	case "dev", "development":
		lfxEnvironment = "dev"
	case "staging", "stg", "stage":
		lfxEnvironment = "staging"
	default:
		lfxEnvironment = "prod"
	}

	backend := os.Getenv("IDEMPOTENCY_BACKEND")
	switch backend {
	case idempotencyBackendNats, idempotencyBackendSQLite:
	case "":
		backend = idempotencyBackendNats
	default:
		slog.Warn("unknown IDEMPOTENCY_BACKEND, using nats", "backend", backend)
		backend = idempotencyBackendNats
	}

	sqliteDSN := os.Getenv("SQLITE_DSN")
	if sqliteDSN == "" {
		sqliteDSN = "file:scheduling-idempotency.db?_pragma=busy_timeout(5000)"
	}

	return environment{
		NatsURL:                  natsURL,
		LFXEnvironment:           lfxEnvironment,
		LFXAppOrigin:             os.Getenv("LFX_APP_ORIGIN"),
		IdempotencyBackend:       backend,
		SQLiteDSN:                sqliteDSN,
		StrictConflicts:          envBool("SCHEDULING_STRICT_CONFLICTS", true),
		QueueConcurrency:         envInt("QUEUE_CONCURRENCY", constants.DefaultQueueConcurrency),
		QueueRatePerSecond:       envFloat("QUEUE_RATE_PER_SECOND", constants.DefaultQueueRatePerSecond),
		QueuePollInterval:        envDuration("QUEUE_POLL_INTERVAL", constants.DefaultQueuePollInterval),
		QueueMaxAttempts:         envInt("QUEUE_MAX_ATTEMPTS", 0),
		ReminderScanInterval:     envDuration("REMINDER_SCAN_INTERVAL", constants.DefaultReminderScanInterval),
		IdempotencySweepInterval: envDuration("IDEMPOTENCY_SWEEP_INTERVAL", constants.DefaultIdempotencySweepInterval),
	}
}

func envBool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		slog.With(logging.ErrKey, err, "key", key).Warn("invalid boolean, using default")
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		slog.With(logging.ErrKey, err, "key", key).Warn("invalid integer, using default")
		return fallback
	}
	return v
}

func envFloat(key string, fallback float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		slog.With(logging.ErrKey, err, "key", key).Warn("invalid number, using default")
		return fallback
	}
	return v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v <= 0 {
		slog.With(logging.ErrKey, err, "key", key).Warn("invalid duration, using default")
		return fallback
	}
	return v
}
