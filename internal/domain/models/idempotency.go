// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"
)

// Idempotency scopes.
const (
	IdempotencyScopeVideoWebhook = "video_webhook"
	IdempotencyScopeRequest      = "request"
)

// Idempotency record lifetimes.
const (
	WebhookIdempotencyTTL = 7 * 24 * time.Hour
	RequestIdempotencyTTL = 24 * time.Hour
)

// IdempotencyRecord remembers that a key was processed and what was answered.
// RequestHash fingerprints the request body a caller supplied key was first used with.
type IdempotencyRecord struct {
	Key         string          `json:"key"`
	Scope       string          `json:"scope"`
	RequestHash string          `json:"request_hash,omitempty"`
	Response    json.RawMessage `json:"response,omitempty"`
	StatusCode  int             `json:"status_code"`
	ExpiresAt   time.Time       `json:"expires_at"`
	CreatedAt   time.Time       `json:"created_at"`
}

// IsExpired reports whether the record no longer applies at now.
func (r *IdempotencyRecord) IsExpired(now time.Time) bool {
	return r == nil || !now.Before(r.ExpiresAt)
}

// WebhookIdempotencyKey is the key under which a provider webhook event is recorded.
func WebhookIdempotencyKey(eventID string) string {
	return IdempotencyScopeVideoWebhook + ":" + eventID
}

// RequestIdempotencyKey is the key under which a caller supplied idempotency key is
// recorded. It is bound to the tenant, the actor and the operation, so the same
// caller key never matches another caller's reply or a webhook record.
func RequestIdempotencyKey(tenantID, userID, operation, key string) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{tenantID, userID, operation, key}, "\x00")))
	return IdempotencyScopeRequest + ":" + hex.EncodeToString(sum[:])
}

// RequestHash fingerprints a request body.
func RequestHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
