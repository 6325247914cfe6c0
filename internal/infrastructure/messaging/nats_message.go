// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package messaging

import (
	"context"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/logging"
)

var _ domain.Message = (*NatsMessage)(nil)

// NatsMessage adapts a *nats.Msg to domain.Message.
type NatsMessage struct {
	msg *nats.Msg
}

// NewNatsMessage wraps msg.
func NewNatsMessage(msg *nats.Msg) *NatsMessage {
	return &NatsMessage{msg: msg}
}

func (m *NatsMessage) Subject() string {
	return m.msg.Subject
}

func (m *NatsMessage) Data() []byte {
	return m.msg.Data
}

func (m *NatsMessage) Header(key string) string {
	if m.msg.Header == nil {
		return ""
	}
	return m.msg.Header.Get(key)
}

func (m *NatsMessage) Respond(data []byte) error {
	return m.msg.Respond(data)
}

func (m *NatsMessage) HasReply() bool {
	return m.msg.Reply != ""
}

// INatsSubscriber is the subset of *nats.Conn used to register handlers.
type INatsSubscriber interface {
	QueueSubscribe(subject, queue string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// Subscribe delivers every message on subject to handler within the queue group.
// Each message is handled on the subscription's goroutine with ctx as its parent.
func Subscribe(ctx context.Context, conn INatsSubscriber, subject, queue string, handler domain.MessageHandler) (*nats.Subscription, error) {
	sub, err := conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		if !handler.HandlerReady() {
			slog.ErrorContext(ctx, "handler not ready, dropping message", "subject", msg.Subject, logging.PriorityCritical())
			return
		}
		handler.HandleMessage(ctx, NewNatsMessage(msg))
	})
	if err != nil {
		return nil, domain.NewUnavailableError("failed to subscribe to "+subject, err)
	}
	slog.InfoContext(ctx, "subscribed to NATS subject", "subject", subject, "queue", queue)
	return sub, nil
}
