// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package constants

import "time"

// Scheduling time constraints
const (
	// ReminderScanHorizon is how far ahead the periodic scan re-derives reminders.
	ReminderScanHorizon = 25 * time.Hour

	// DefaultReminderScanInterval is how often the worker runs the periodic scan.
	DefaultReminderScanInterval = 15 * time.Minute

	// DefaultIdempotencySweepInterval is how often expired idempotency records are purged.
	DefaultIdempotencySweepInterval = time.Hour
)

// Delayed task queue defaults
const (
	DefaultQueueConcurrency   = 3
	DefaultQueueRatePerSecond = 10
	DefaultQueuePollInterval  = time.Second
	DefaultJobLease           = 2 * time.Minute
	DefaultRetryBaseDelay     = time.Second
	DefaultRetryMaxDelay      = 5 * time.Minute
)
