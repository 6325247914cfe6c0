// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/logging"
)

var _ domain.IdempotencyStore = (*NatsIdempotencyStore)(nil)

// NatsIdempotencyStore keeps idempotency records in a NATS KV bucket. The bucket
// TTL bounds how long a record survives when DeleteExpired never runs.
type NatsIdempotencyStore struct {
	*NatsBaseRepository[models.IdempotencyRecord]
	keyBuilder *KeyBuilder
	now        func() time.Time
}

// NewNatsIdempotencyStore creates a new NATS KV backed idempotency store.
func NewNatsIdempotencyStore(kvStore INatsKeyValue) *NatsIdempotencyStore {
	return &NatsIdempotencyStore{
		NatsBaseRepository: NewNatsBaseRepository[models.IdempotencyRecord](kvStore, "idempotency record"),
		keyBuilder:         NewKeyBuilder(""),
		now:                time.Now,
	}
}

func (s *NatsIdempotencyStore) key(key string) string {
	return s.keyBuilder.EntityKeyEncoded(KeyPrefixIdempotency, key)
}

// Get returns the record for key, or nil when absent or expired.
func (s *NatsIdempotencyStore) Get(ctx context.Context, key string) (*models.IdempotencyRecord, error) {
	record, err := s.NatsBaseRepository.Get(ctx, s.key(key))
	if err != nil {
		if domain.GetErrorType(err) == domain.ErrorTypeNotFound {
			return nil, nil
		}
		return nil, err
	}
	if record.IsExpired(s.now()) {
		return nil, nil
	}
	return record, nil
}

// Save stores record, replacing any earlier record with the same key.
func (s *NatsIdempotencyStore) Save(ctx context.Context, record *models.IdempotencyRecord) error {
	_, err := s.Put(ctx, s.key(record.Key), record)
	return err
}

// DeleteExpired removes every record that expired at or before now.
func (s *NatsIdempotencyStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	records, err := s.ListEntitiesEncoded(ctx, "/"+KeyPrefixIdempotency+"/", s.keyBuilder)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, record := range records {
		if !record.IsExpired(now) {
			continue
		}
		if err := s.DeleteWithoutRevision(ctx, s.key(record.Key)); err != nil {
			if domain.GetErrorType(err) == domain.ErrorTypeNotFound {
				continue
			}
			slog.WarnContext(ctx, "failed to delete expired idempotency record", logging.ErrKey, err, "key", record.Key)
			continue
		}
		deleted++
	}
	return deleted, nil
}
