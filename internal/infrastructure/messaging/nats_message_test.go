// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package messaging

import (
	"context"
	"errors"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain"
)

type mockSubscriber struct {
	mock.Mock
	cb nats.MsgHandler
}

func (m *mockSubscriber) QueueSubscribe(subject, queue string, cb nats.MsgHandler) (*nats.Subscription, error) {
	args := m.Called(subject, queue)
	m.cb = cb
	sub, _ := args.Get(0).(*nats.Subscription)
	return sub, args.Error(1)
}

type recordingHandler struct {
	ready    bool
	received []domain.Message
}

func (h *recordingHandler) HandleMessage(ctx context.Context, msg domain.Message) {
	h.received = append(h.received, msg)
}

func (h *recordingHandler) HandlerReady() bool {
	return h.ready
}

func TestNatsMessage(t *testing.T) {
	raw := nats.NewMsg("lfx.scheduling.meeting.create")
	raw.Data = []byte(`{}`)
	raw.Header.Set("Idempotency-Key", "k-1")

	msg := NewNatsMessage(raw)
	assert.Equal(t, "lfx.scheduling.meeting.create", msg.Subject())
	assert.Equal(t, []byte(`{}`), msg.Data())
	assert.Equal(t, "k-1", msg.Header("Idempotency-Key"))
	assert.False(t, msg.HasReply())

	raw.Reply = "_INBOX.1"
	assert.True(t, msg.HasReply())

	bare := NewNatsMessage(&nats.Msg{Subject: "x"})
	assert.Empty(t, bare.Header("Idempotency-Key"))
}

func TestSubscribe(t *testing.T) {
	t.Run("delivers to a ready handler", func(t *testing.T) {
		conn := &mockSubscriber{}
		conn.On("QueueSubscribe", "lfx.scheduling.video-webhook", "lfx.scheduling.queue").Return(&nats.Subscription{}, nil)
		handler := &recordingHandler{ready: true}

		_, err := Subscribe(t.Context(), conn, "lfx.scheduling.video-webhook", "lfx.scheduling.queue", handler)
		require.NoError(t, err)

		conn.cb(&nats.Msg{Subject: "lfx.scheduling.video-webhook", Data: []byte("body")})
		require.Len(t, handler.received, 1)
		assert.Equal(t, []byte("body"), handler.received[0].Data())
		conn.AssertExpectations(t)
	})

	t.Run("drops messages while not ready", func(t *testing.T) {
		conn := &mockSubscriber{}
		conn.On("QueueSubscribe", mock.Anything, mock.Anything).Return(&nats.Subscription{}, nil)
		handler := &recordingHandler{}

		_, err := Subscribe(t.Context(), conn, "s", "q", handler)
		require.NoError(t, err)

		conn.cb(&nats.Msg{Subject: "s"})
		assert.Empty(t, handler.received)
	})

	t.Run("subscribe failure is unavailable", func(t *testing.T) {
		conn := &mockSubscriber{}
		conn.On("QueueSubscribe", mock.Anything, mock.Anything).Return(nil, errors.New("nats: connection closed"))

		_, err := Subscribe(t.Context(), conn, "s", "q", &recordingHandler{ready: true})

		assert.Equal(t, domain.ErrorTypeUnavailable, domain.GetErrorType(err))
	})
}
