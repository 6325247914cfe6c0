// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/logging"
)

// IdempotentResponse is the answer to a guarded call, fresh or replayed.
type IdempotentResponse struct {
	StatusCode int
	Body       json.RawMessage
	Replayed   bool
}

// IdempotencyGuard replays the stored response of a caller supplied key instead of
// running a mutation twice.
type IdempotencyGuard struct {
	Store domain.IdempotencyStore
	Now   func() time.Time
}

// NewIdempotencyGuard creates a new IdempotencyGuard.
func NewIdempotencyGuard(store domain.IdempotencyStore) *IdempotencyGuard {
	return &IdempotencyGuard{Store: store, Now: time.Now}
}

func (g *IdempotencyGuard) now() time.Time {
	if g.Now == nil {
		return time.Now().UTC()
	}
	return g.Now().UTC()
}

// IdempotentRequest identifies one guarded call. Key is the caller supplied
// idempotency key; it only matches earlier calls by the same actor on the same
// operation.
type IdempotentRequest struct {
	Key       string
	Actor     models.Actor
	Operation string
	Body      []byte
}

// Do runs fn once per request key within ttl. An empty key runs fn unguarded. A
// key reused with a different body is a Conflict. Errors from fn are returned and
// not remembered, so the caller may retry with the same key.
func (g *IdempotencyGuard) Do(
	ctx context.Context,
	req IdempotentRequest,
	ttl time.Duration,
	fn func() (int, any, error),
) (*IdempotentResponse, error) {
	if req.Key == "" || g == nil || g.Store == nil {
		return run(fn)
	}
	if ttl <= 0 {
		ttl = models.RequestIdempotencyTTL
	}
	ctx = logging.AppendCtx(ctx, slog.String("idempotency_key", req.Key))

	key := models.RequestIdempotencyKey(req.Actor.TenantID, req.Actor.UserID, req.Operation, req.Key)
	hash := models.RequestHash(req.Body)

	record, err := g.Store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if record != nil {
		if record.Scope != models.IdempotencyScopeRequest || record.RequestHash != hash {
			slog.WarnContext(ctx, "idempotency key reused with a different request")
			return nil, domain.NewConflictError("idempotency key was already used with a different request", domain.ErrIdempotencyReuse)
		}
		slog.DebugContext(ctx, "replaying idempotent response")
		return &IdempotentResponse{StatusCode: record.StatusCode, Body: record.Response, Replayed: true}, nil
	}

	response, err := run(fn)
	if err != nil {
		return nil, err
	}

	now := g.now()
	err = g.Store.Save(ctx, &models.IdempotencyRecord{
		Key:         key,
		Scope:       models.IdempotencyScopeRequest,
		RequestHash: hash,
		Response:    response.Body,
		StatusCode:  response.StatusCode,
		ExpiresAt:   now.Add(ttl),
		CreatedAt:   now,
	})
	if err != nil {
		// the mutation already happened; a retry would repeat it but still answer
		slog.WarnContext(ctx, "error saving idempotency record", logging.ErrKey, err)
	}
	return response, nil
}

func run(fn func() (int, any, error)) (*IdempotentResponse, error) {
	status, body, err := fn()
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, domain.NewInternalError("failed to marshal response", err)
	}
	return &IdempotentResponse{StatusCode: status, Body: raw}, nil
}
