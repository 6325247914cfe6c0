// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import "time"

// DefaultJobMaxAttempts is used when a job is enqueued without MaxAttempts.
const DefaultJobMaxAttempts = 3

// DelayedJob is a unit of deferred work held by the task queue until RunAt.
type DelayedJob struct {
	ID          string     `msgpack:"id"`
	Kind        string     `msgpack:"kind"`
	Payload     []byte     `msgpack:"payload"`
	RunAt       time.Time  `msgpack:"run_at"`
	Attempts    int        `msgpack:"attempts"`
	MaxAttempts int        `msgpack:"max_attempts"`
	LeaseUntil  *time.Time `msgpack:"lease_until,omitempty"`
	LastError   string     `msgpack:"last_error,omitempty"`
	CreatedAt   time.Time  `msgpack:"created_at"`
	FailedAt    *time.Time `msgpack:"failed_at,omitempty"`
}

// IsDue reports whether the job may be claimed at now.
func (j *DelayedJob) IsDue(now time.Time) bool {
	if j.RunAt.After(now) {
		return false
	}
	return j.LeaseUntil == nil || !j.LeaseUntil.After(now)
}

// Exhausted reports whether the job has used every attempt.
func (j *DelayedJob) Exhausted() bool {
	limit := j.MaxAttempts
	if limit <= 0 {
		limit = DefaultJobMaxAttempts
	}
	return j.Attempts >= limit
}

// ClaimedJob is a job leased to one worker. Revision is the store revision written by
// the claim and guards the ack or fail that follows.
type ClaimedJob struct {
	Job      *DelayedJob
	Revision uint64
}
