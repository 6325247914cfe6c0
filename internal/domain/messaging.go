// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"

	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain/models"
)

// Message represents a domain message interface
type Message interface {
	Subject() string
	Data() []byte
	Header(key string) string
	Respond(data []byte) error
	HasReply() bool
}

// MessageHandler defines how the service handles incoming messages
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg Message)
	HandlerReady() bool
}

// AuditSender publishes fire-and-forget audit events.
type AuditSender interface {
	SendAuditEvent(ctx context.Context, event models.AuditEvent) error
}

// NotificationSender hands notification jobs to the dispatch service.
type NotificationSender interface {
	SendNotification(ctx context.Context, job models.NotificationJob) error
}

// MessageBuilder is the main interface that composes all messaging capabilities.
type MessageBuilder interface {
	AuditSender
	NotificationSender
}
