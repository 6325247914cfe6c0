// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package messaging

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/pkg/constants"
	"github.com/nats-io/nats.go"
)

var _ domain.MessageBuilder = (*MessageBuilder)(nil)

// INatsConn is the subset of *nats.Conn the message builder needs.
type INatsConn interface {
	IsConnected() bool
	PublishMsg(msg *nats.Msg) error
}

// MessageBuilder is the builder for the message and sends it to the NATS server.
type MessageBuilder struct {
	NatsConn INatsConn
}

// NewMessageBuilder creates a new MessageBuilder.
func NewMessageBuilder(natsConn INatsConn) *MessageBuilder {
	return &MessageBuilder{
		NatsConn: natsConn,
	}
}

// publish sends the message to the NATS server, forwarding the request ID found in ctx.
func (m *MessageBuilder) publish(ctx context.Context, subject string, data []byte) error {
	if m.NatsConn == nil {
		return domain.NewUnavailableError("NATS connection is not configured", domain.ErrServiceUnavailable)
	}

	msg := nats.NewMsg(subject)
	msg.Data = data
	if requestID, ok := ctx.Value(constants.RequestIDContextID).(string); ok && requestID != "" {
		msg.Header.Set(constants.RequestIDHeader, requestID)
	}

	if err := m.NatsConn.PublishMsg(msg); err != nil {
		slog.ErrorContext(ctx, "error sending message to NATS", logging.ErrKey, err, "subject", subject)
		return domain.NewUnavailableError("failed to publish message", err)
	}
	slog.DebugContext(ctx, "sent message to NATS", "subject", subject)
	return nil
}

func (m *MessageBuilder) publishJSON(ctx context.Context, subject string, v any) error {
	dataBytes, err := json.Marshal(v)
	if err != nil {
		slog.ErrorContext(ctx, "error marshalling data into JSON", logging.ErrKey, err, "subject", subject)
		return domain.NewInternalError("failed to marshal message", err)
	}
	return m.publish(ctx, subject, dataBytes)
}

// SendAuditEvent publishes an audit event. Audit delivery is fire-and-forget, so
// callers log the returned error and carry on.
func (m *MessageBuilder) SendAuditEvent(ctx context.Context, event models.AuditEvent) error {
	if event.ResourceType == "" {
		event.ResourceType = "meeting"
	}
	return m.publishJSON(ctx, models.AuditSubject, event)
}

// SendNotification hands a notification job to the dispatch service.
func (m *MessageBuilder) SendNotification(ctx context.Context, job models.NotificationJob) error {
	if job.Channel == "" {
		job.Channel = models.ChannelInApp
	}
	slog.DebugContext(ctx, "publishing notification",
		"user_id", job.UserID,
		"type", job.Type,
		"channel", job.Channel,
		"has_ics", job.ICS != "",
	)
	return m.publishJSON(ctx, models.NotificationSubject, job)
}
