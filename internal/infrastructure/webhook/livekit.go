// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package webhook normalizes video provider webhook bodies.
package webhook

import (
	"time"

	"github.com/livekit/protocol/livekit"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain/models"
)

var unmarshalOptions = protojson.UnmarshalOptions{DiscardUnknown: true}

// DecodeLiveKitWebhook parses a verified LiveKit webhook body. Event types the
// reconciler has no rule for are returned as-is so the caller can record and drop
// them.
func DecodeLiveKitWebhook(raw []byte) (models.VideoWebhookEvent, error) {
	var event livekit.WebhookEvent
	if err := unmarshalOptions.Unmarshal(raw, &event); err != nil {
		return models.VideoWebhookEvent{}, domain.NewValidationError("malformed webhook body", err)
	}
	if event.GetId() == "" {
		return models.VideoWebhookEvent{}, domain.NewValidationError("webhook event id is required")
	}
	if event.GetEvent() == "" {
		return models.VideoWebhookEvent{}, domain.NewValidationError("webhook event type is required")
	}

	out := models.VideoWebhookEvent{
		EventID:   event.GetId(),
		EventType: models.VideoEventType(event.GetEvent()),
	}
	if room := event.GetRoom(); room != nil {
		out.Room = models.VideoRoom{Name: room.GetName(), SID: room.GetSid()}
	}
	if p := event.GetParticipant(); p != nil {
		out.Participant = &models.VideoParticipant{Identity: p.GetIdentity(), SID: p.GetSid()}
	}
	if ts := event.GetCreatedAt(); ts > 0 {
		out.CreatedAt = time.Unix(ts, 0).UTC()
	}
	return out, nil
}
