// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReminderJobID_Deterministic(t *testing.T) {
	a := ReminderJobID("m-1", "alice", "1h")
	b := ReminderJobID("m-1", "alice", "1h")

	assert.Equal(t, "reminder.m-1.alice.1h", a)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, ReminderJobID("m-1", "bob", "1h"))
	assert.NotEqual(t, a, ReminderJobID("m-1", "alice", "15m"))
}

func TestReminderOffsets(t *testing.T) {
	start := time.Date(2026, 5, 10, 14, 0, 0, 0, time.UTC)

	labels := make([]string, 0, len(ReminderOffsets))
	for _, o := range ReminderOffsets {
		labels = append(labels, o.Label)
	}
	assert.Equal(t, []string{"24h", "1h", "15m"}, labels)

	assert.Equal(t, time.Date(2026, 5, 9, 14, 0, 0, 0, time.UTC), ReminderOffsets[0].FireAt(start))
	assert.Equal(t, time.Date(2026, 5, 10, 13, 0, 0, 0, time.UTC), ReminderOffsets[1].FireAt(start))
	assert.Equal(t, time.Date(2026, 5, 10, 13, 45, 0, 0, time.UTC), ReminderOffsets[2].FireAt(start))
}

func TestDelayedJob_IsDue(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	assert.True(t, (&DelayedJob{RunAt: past}).IsDue(now))
	assert.True(t, (&DelayedJob{RunAt: now}).IsDue(now))
	assert.False(t, (&DelayedJob{RunAt: future}).IsDue(now))
	assert.False(t, (&DelayedJob{RunAt: past, LeaseUntil: &future}).IsDue(now))
	assert.True(t, (&DelayedJob{RunAt: past, LeaseUntil: &past}).IsDue(now))
}

func TestDelayedJob_Exhausted(t *testing.T) {
	assert.False(t, (&DelayedJob{Attempts: 2}).Exhausted())
	assert.True(t, (&DelayedJob{Attempts: 3}).Exhausted())
	assert.False(t, (&DelayedJob{Attempts: 3, MaxAttempts: 5}).Exhausted())
	assert.True(t, (&DelayedJob{Attempts: 1, MaxAttempts: 1}).Exhausted())
}

func TestIdempotencyRecord_IsExpired(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

	assert.False(t, (&IdempotencyRecord{ExpiresAt: now.Add(time.Hour)}).IsExpired(now))
	assert.True(t, (&IdempotencyRecord{ExpiresAt: now}).IsExpired(now))
	assert.True(t, (*IdempotencyRecord)(nil).IsExpired(now))
}

func TestIdempotencyKeys(t *testing.T) {
	assert.Equal(t, "video_webhook:evt-1", WebhookIdempotencyKey("evt-1"))

	key := RequestIdempotencyKey("acme", "alice", MeetingCreateSubject, "k-1")
	assert.True(t, strings.HasPrefix(key, IdempotencyScopeRequest+":"))
	assert.Equal(t, key, RequestIdempotencyKey("acme", "alice", MeetingCreateSubject, "k-1"))

	// no caller key can reach the webhook namespace
	assert.NotEqual(t, WebhookIdempotencyKey("EV_9"), RequestIdempotencyKey("acme", "alice", MeetingCancelSubject, "video_webhook:EV_9"))

	others := []string{
		RequestIdempotencyKey("globex", "alice", MeetingCreateSubject, "k-1"),
		RequestIdempotencyKey("acme", "bob", MeetingCreateSubject, "k-1"),
		RequestIdempotencyKey("acme", "alice", MeetingCancelSubject, "k-1"),
		RequestIdempotencyKey("acme", "alice", MeetingCreateSubject, "k-2"),
		RequestIdempotencyKey("acm", "ealice", MeetingCreateSubject, "k-1"),
	}
	for _, other := range others {
		assert.NotEqual(t, key, other)
	}

	assert.Equal(t, RequestHash([]byte(`{"a":1}`)), RequestHash([]byte(`{"a":1}`)))
	assert.NotEqual(t, RequestHash([]byte(`{"a":1}`)), RequestHash([]byte(`{"a":2}`)))
}

func TestVideoEventType_IsKnown(t *testing.T) {
	assert.True(t, VideoEventRoomStarted.IsKnown())
	assert.True(t, VideoEventRoomFinished.IsKnown())
	assert.False(t, VideoEventType("track_published").IsKnown())
}

func TestVideoSession_IsOpen(t *testing.T) {
	assert.True(t, (&VideoSession{Status: VideoSessionCreated}).IsOpen())
	assert.True(t, (&VideoSession{Status: VideoSessionActive}).IsOpen())
	assert.False(t, (&VideoSession{Status: VideoSessionEnded}).IsOpen())
	assert.False(t, (*VideoSession)(nil).IsOpen())
}
