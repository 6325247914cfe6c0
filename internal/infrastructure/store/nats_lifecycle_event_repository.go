// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain/models"
)

var _ domain.LifecycleEventRepository = (*NatsLifecycleEventRepository)(nil)

// NatsLifecycleEventRepository stores meeting lifecycle events, one key per event.
type NatsLifecycleEventRepository struct {
	*NatsBaseRepository[models.LifecycleEvent]
	keyBuilder *KeyBuilder
}

// NewNatsLifecycleEventRepository creates a new NATS KV store repository for lifecycle events.
func NewNatsLifecycleEventRepository(kvStore INatsKeyValue) *NatsLifecycleEventRepository {
	return &NatsLifecycleEventRepository{
		NatsBaseRepository: NewNatsBaseRepository[models.LifecycleEvent](kvStore, "lifecycle event"),
		keyBuilder:         NewKeyBuilder(""),
	}
}

// Append stores an event. Events are never rewritten.
func (r *NatsLifecycleEventRepository) Append(ctx context.Context, event *models.LifecycleEvent) error {
	if event.UID == "" {
		event.UID = uuid.New().String()
	}

	key := r.keyBuilder.CompoundKey(KeyPrefixEvent, event.MeetingUID, event.UID)
	encoded, err := r.keyBuilder.EncodeKey(key)
	if err != nil {
		return domain.NewValidationError("invalid lifecycle event key", err)
	}

	_, err = r.NatsBaseRepository.Create(ctx, encoded, event)
	return err
}

// ListByMeeting returns the events of a meeting in the order they happened.
func (r *NatsLifecycleEventRepository) ListByMeeting(ctx context.Context, meetingUID string) ([]*models.LifecycleEvent, error) {
	prefix := "/" + r.keyBuilder.CompoundKey(KeyPrefixEvent, meetingUID) + "/"
	events, err := r.ListEntitiesEncoded(ctx, prefix, r.keyBuilder)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].CreatedAt.Before(events[j].CreatedAt)
	})
	return events, nil
}
