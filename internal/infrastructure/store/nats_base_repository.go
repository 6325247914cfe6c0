// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/logging"
	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// NATS Key-Value store bucket names
const (
	KVStoreNameMeetings        = "meetings"
	KVStoreNameMeetingEvents   = "meeting-events"
	KVStoreNameVideoSessions   = "video-sessions"
	KVStoreNameIdempotencyKeys = "idempotency-keys"
	KVStoreNameDelayedJobs     = "delayed-jobs"
	KVStoreNameDeadJobs        = "dead-jobs"
)

// tracerName is the instrumentation name for the store package.
const tracerName = "github.com/linuxfoundation/lfx-v2-scheduling-service/internal/infrastructure/store"

// INatsKeyValue is the subset of jetstream.KeyValue the repositories use.
// It allows for mocking in tests.
type INatsKeyValue interface {
	ListKeys(context.Context, ...jetstream.WatchOpt) (jetstream.KeyLister, error)
	Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error)
	Put(context.Context, string, []byte) (uint64, error)
	Create(context.Context, string, []byte, ...jetstream.KVCreateOpt) (uint64, error)
	Update(context.Context, string, []byte, uint64) (uint64, error)
	Delete(context.Context, string, ...jetstream.KVDeleteOpt) error
}

// NatsBaseRepository provides common NATS KV operations that can be reused across all repositories
type NatsBaseRepository[T any] struct {
	kvStore    INatsKeyValue
	entityName string // Used in error messages (e.g., "meeting", "video session")
	codec      Codec
}

// NewNatsBaseRepository creates a new base repository for NATS KV operations storing JSON values.
func NewNatsBaseRepository[T any](kvStore INatsKeyValue, entityName string) *NatsBaseRepository[T] {
	return NewNatsBaseRepositoryWithCodec[T](kvStore, entityName, JSONCodec)
}

// NewNatsBaseRepositoryWithCodec creates a base repository that serializes values with codec.
func NewNatsBaseRepositoryWithCodec[T any](kvStore INatsKeyValue, entityName string, codec Codec) *NatsBaseRepository[T] {
	if codec == nil {
		codec = JSONCodec
	}
	return &NatsBaseRepository[T]{
		kvStore:    kvStore,
		entityName: entityName,
		codec:      codec,
	}
}

// IsReady checks if the repository is ready for use
func (r *NatsBaseRepository[T]) IsReady() bool {
	return r.kvStore != nil
}

// EntityName returns the name used in log and error messages.
func (r *NatsBaseRepository[T]) EntityName() string {
	return r.entityName
}

func (r *NatsBaseRepository[T]) startSpan(ctx context.Context, operation, key string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	base := []attribute.KeyValue{
		attribute.String("db.system", "nats"),
		attribute.String("db.operation", operation),
		attribute.String("db.nats.entity", r.entityName),
	}
	if key != "" {
		base = append(base, attribute.String("db.nats.key", key))
	}
	return otel.Tracer(tracerName).Start(ctx, "nats.kv."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(append(base, attrs...)...),
	)
}

func (r *NatsBaseRepository[T]) unavailable() *domain.DomainError {
	return domain.NewUnavailableError(fmt.Sprintf("%s repository is not available", r.entityName), domain.ErrServiceUnavailable)
}

// fail records err on span and returns it.
func fail(span trace.Span, err error, status string) error {
	span.RecordError(err)
	if status == "" {
		status = err.Error()
	}
	span.SetStatus(codes.Error, status)
	return err
}

// isRevisionMismatch reports whether a KV write was rejected by its expected revision.
func isRevisionMismatch(err error) bool {
	return errors.Is(err, jetstream.ErrKeyExists) || strings.Contains(err.Error(), "wrong last sequence")
}

// GetRaw retrieves a raw entry from NATS KV store
func (r *NatsBaseRepository[T]) GetRaw(ctx context.Context, key string) (jetstream.KeyValueEntry, error) {
	ctx, span := r.startSpan(ctx, "get", key)
	defer span.End()

	if !r.IsReady() {
		return nil, fail(span, r.unavailable(), "")
	}

	entry, err := r.kvStore.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, fail(span, domain.NewNotFoundError(
				fmt.Sprintf("%s with key '%s' not found", r.entityName, key), err), "not found")
		}
		slog.ErrorContext(ctx, fmt.Sprintf("error getting %s from NATS KV", r.entityName),
			logging.ErrKey, err, "key", key)
		return nil, fail(span, domain.NewInternalError(
			fmt.Sprintf("failed to retrieve %s from store", r.entityName), err), "")
	}

	span.SetStatus(codes.Ok, "")
	return entry, nil
}

// Get retrieves and decodes an entity from NATS KV store
func (r *NatsBaseRepository[T]) Get(ctx context.Context, key string) (*T, error) {
	entity, _, err := r.GetWithRevision(ctx, key)
	return entity, err
}

// GetWithRevision retrieves an entity with its revision from NATS KV store
func (r *NatsBaseRepository[T]) GetWithRevision(ctx context.Context, key string) (*T, uint64, error) {
	entry, err := r.GetRaw(ctx, key)
	if err != nil {
		return nil, 0, err
	}

	entity, err := r.Unmarshal(ctx, entry.Value())
	if err != nil {
		return nil, 0, domain.NewInternalError(
			fmt.Sprintf("failed to unmarshal %s data", r.entityName), domain.ErrUnmarshal, err)
	}

	return entity, entry.Revision(), nil
}

// Unmarshal decodes a stored value into the entity type
func (r *NatsBaseRepository[T]) Unmarshal(ctx context.Context, data []byte) (*T, error) {
	var entity T
	if err := r.codec.Unmarshal(data, &entity); err != nil {
		slog.ErrorContext(ctx, fmt.Sprintf("error unmarshaling %s", r.entityName),
			logging.ErrKey, err, "codec", r.codec.Name())
		return nil, err
	}

	return &entity, nil
}

// Marshal encodes an entity with the repository codec
func (r *NatsBaseRepository[T]) Marshal(ctx context.Context, entity *T) ([]byte, error) {
	data, err := r.codec.Marshal(entity)
	if err != nil {
		slog.ErrorContext(ctx, fmt.Sprintf("error marshaling %s", r.entityName),
			logging.ErrKey, err, "codec", r.codec.Name())
		return nil, err
	}

	return data, nil
}

// Exists checks if an entity exists in the store
func (r *NatsBaseRepository[T]) Exists(ctx context.Context, key string) (bool, error) {
	_, err := r.GetRaw(ctx, key)
	if err != nil {
		if domain.GetErrorType(err) == domain.ErrorTypeNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Put writes an entity regardless of what is stored under key and returns the new revision.
func (r *NatsBaseRepository[T]) Put(ctx context.Context, key string, entity *T) (uint64, error) {
	ctx, span := r.startSpan(ctx, "put", key)
	defer span.End()

	if !r.IsReady() {
		return 0, fail(span, r.unavailable(), "")
	}

	data, err := r.Marshal(ctx, entity)
	if err != nil {
		return 0, fail(span, domain.NewInternalError(fmt.Sprintf("failed to marshal %s", r.entityName), err), "")
	}

	revision, err := r.kvStore.Put(ctx, key, data)
	if err != nil {
		slog.ErrorContext(ctx, fmt.Sprintf("error putting %s in NATS KV", r.entityName),
			logging.ErrKey, err, "key", key)
		return 0, fail(span, domain.NewUnavailableError(fmt.Sprintf("failed to store %s", r.entityName), err), "")
	}

	span.SetStatus(codes.Ok, "")
	return revision, nil
}

// Create writes an entity only when key holds no value yet. An existing key is a
// conflict.
func (r *NatsBaseRepository[T]) Create(ctx context.Context, key string, entity *T) (uint64, error) {
	ctx, span := r.startSpan(ctx, "create", key)
	defer span.End()

	if !r.IsReady() {
		return 0, fail(span, r.unavailable(), "")
	}

	data, err := r.Marshal(ctx, entity)
	if err != nil {
		return 0, fail(span, domain.NewInternalError(fmt.Sprintf("failed to marshal %s", r.entityName), err), "")
	}

	// Create also accepts a key whose last entry is a delete marker.
	revision, err := r.kvStore.Create(ctx, key, data)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			return 0, fail(span, domain.NewConflictError(fmt.Sprintf("%s already exists", r.entityName), err), "conflict")
		}
		slog.ErrorContext(ctx, fmt.Sprintf("error creating %s in NATS KV", r.entityName),
			logging.ErrKey, err, "key", key)
		return 0, fail(span, domain.NewUnavailableError(fmt.Sprintf("failed to create %s in store", r.entityName), err), "")
	}

	span.SetStatus(codes.Ok, "")
	return revision, nil
}

// Update writes an entity with optimistic concurrency control and returns the new revision.
// A stale revision is a conflict wrapping domain.ErrRevisionMismatch.
func (r *NatsBaseRepository[T]) Update(ctx context.Context, key string, entity *T, revision uint64) (uint64, error) {
	ctx, span := r.startSpan(ctx, "update", key, attribute.Int64("db.nats.revision", int64(revision)))
	defer span.End()

	if !r.IsReady() {
		return 0, fail(span, r.unavailable(), "")
	}

	data, err := r.Marshal(ctx, entity)
	if err != nil {
		return 0, fail(span, domain.NewInternalError(fmt.Sprintf("failed to marshal %s", r.entityName), err), "")
	}

	next, err := r.kvStore.Update(ctx, key, data, revision)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return 0, fail(span, domain.NewNotFoundError(fmt.Sprintf("%s not found", r.entityName), err), "not found")
		}
		if isRevisionMismatch(err) {
			slog.DebugContext(ctx, fmt.Sprintf("%s revision mismatch", r.entityName),
				"key", key, "revision", revision)
			return 0, fail(span, domain.NewConflictError(
				fmt.Sprintf("%s has been modified", r.entityName), domain.ErrRevisionMismatch, err), "conflict")
		}
		slog.ErrorContext(ctx, fmt.Sprintf("error updating %s in NATS KV", r.entityName),
			logging.ErrKey, err, "key", key, "revision", revision)
		return 0, fail(span, domain.NewUnavailableError(fmt.Sprintf("failed to update %s in store", r.entityName), err), "")
	}

	span.SetStatus(codes.Ok, "")
	return next, nil
}

// Delete removes an entity from the store with optimistic concurrency control
func (r *NatsBaseRepository[T]) Delete(ctx context.Context, key string, revision uint64) error {
	ctx, span := r.startSpan(ctx, "delete", key, attribute.Int64("db.nats.revision", int64(revision)))
	defer span.End()

	if !r.IsReady() {
		return fail(span, r.unavailable(), "")
	}

	err := r.kvStore.Delete(ctx, key, jetstream.LastRevision(revision))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return fail(span, domain.NewNotFoundError(fmt.Sprintf("%s not found", r.entityName), err), "not found")
		}
		if isRevisionMismatch(err) {
			return fail(span, domain.NewConflictError(
				fmt.Sprintf("%s has been modified", r.entityName), domain.ErrRevisionMismatch, err), "conflict")
		}
		slog.ErrorContext(ctx, fmt.Sprintf("error deleting %s from NATS KV", r.entityName),
			logging.ErrKey, err, "key", key, "revision", revision)
		return fail(span, domain.NewUnavailableError(fmt.Sprintf("failed to delete %s from store", r.entityName), err), "")
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// DeleteWithoutRevision removes an entity regardless of its current revision.
// A missing key is reported as not found.
func (r *NatsBaseRepository[T]) DeleteWithoutRevision(ctx context.Context, key string) error {
	ctx, span := r.startSpan(ctx, "delete", key)
	defer span.End()

	if !r.IsReady() {
		return fail(span, r.unavailable(), "")
	}

	err := r.kvStore.Delete(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return fail(span, domain.NewNotFoundError(fmt.Sprintf("%s not found", r.entityName), err), "not found")
		}
		slog.ErrorContext(ctx, fmt.Sprintf("error deleting %s from NATS KV", r.entityName),
			logging.ErrKey, err, "key", key)
		return fail(span, domain.NewUnavailableError(fmt.Sprintf("failed to delete %s from store", r.entityName), err), "")
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// ListKeys lists all keys in the bucket. An empty bucket yields no keys and no error.
func (r *NatsBaseRepository[T]) ListKeys(ctx context.Context) ([]string, error) {
	ctx, span := r.startSpan(ctx, "list_keys", "")
	defer span.End()

	if !r.IsReady() {
		return nil, fail(span, r.unavailable(), "")
	}

	lister, err := r.kvStore.ListKeys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			span.SetStatus(codes.Ok, "")
			return nil, nil
		}
		slog.ErrorContext(ctx, fmt.Sprintf("error listing %s keys from NATS KV", r.entityName),
			logging.ErrKey, err)
		return nil, fail(span, domain.NewUnavailableError(
			fmt.Sprintf("failed to list %s keys from store", r.entityName), err), "")
	}
	defer func() { _ = lister.Stop() }()

	var keys []string
	for key := range lister.Keys() {
		keys = append(keys, key)
	}

	span.SetAttributes(attribute.Int("db.nats.keys_count", len(keys)))
	span.SetStatus(codes.Ok, "")
	return keys, nil
}

// ListEntities returns every entity whose key passes keep. A nil keep selects all keys.
// Entries that disappear or fail to decode while listing are skipped.
func (r *NatsBaseRepository[T]) ListEntities(ctx context.Context, keep func(key string) bool) ([]*T, error) {
	keys, err := r.ListKeys(ctx)
	if err != nil {
		return nil, err
	}

	var entities []*T
	for _, key := range keys {
		if keep != nil && !keep(key) {
			continue
		}

		entity, err := r.Get(ctx, key)
		if err != nil {
			slog.WarnContext(ctx, fmt.Sprintf("failed to get %s, skipping", r.entityName),
				"key", key, logging.ErrKey, err)
			continue
		}

		entities = append(entities, entity)
	}

	return entities, nil
}

// ListEntitiesEncoded lists entities whose decoded key starts with prefix.
func (r *NatsBaseRepository[T]) ListEntitiesEncoded(ctx context.Context, prefix string, kb *KeyBuilder) ([]*T, error) {
	return r.ListEntities(ctx, func(encodedKey string) bool {
		decodedKey, err := kb.DecodeKey(encodedKey)
		if err != nil {
			slog.WarnContext(ctx, "failed to decode key, skipping",
				"encoded_key", encodedKey, logging.ErrKey, err)
			return false
		}
		return strings.HasPrefix(decodedKey, prefix)
	})
}

// PutIndex creates an index entry in the store (stores empty value, key is used for indexing)
func (r *NatsBaseRepository[T]) PutIndex(ctx context.Context, indexKey string) error {
	if !r.IsReady() {
		return r.unavailable()
	}

	if _, err := r.kvStore.Put(ctx, indexKey, []byte{}); err != nil {
		slog.ErrorContext(ctx, "error creating index",
			logging.ErrKey, err, "index_key", indexKey)
		return domain.NewUnavailableError("failed to create index", err)
	}

	return nil
}

// ListIndex returns the entity UIDs referenced by index keys under prefix. prefix is a
// decoded key ending in "/".
func (r *NatsBaseRepository[T]) ListIndex(ctx context.Context, prefix string, kb *KeyBuilder) ([]string, error) {
	keys, err := r.ListKeys(ctx)
	if err != nil {
		return nil, err
	}

	var uids []string
	for _, encodedKey := range keys {
		decodedKey, err := kb.DecodeKey(encodedKey)
		if err != nil || !strings.HasPrefix(decodedKey, prefix) {
			continue
		}
		if uid := strings.TrimPrefix(decodedKey, prefix); uid != "" && !strings.Contains(uid, "/") {
			uids = append(uids, uid)
		}
	}
	return uids, nil
}
