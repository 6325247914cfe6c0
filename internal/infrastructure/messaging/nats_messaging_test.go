// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/pkg/constants"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockNATSConn is a mock implementation of INatsConn
type MockNATSConn struct {
	mock.Mock
}

func (m *MockNATSConn) IsConnected() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockNATSConn) PublishMsg(msg *nats.Msg) error {
	args := m.Called(msg)
	return args.Error(0)
}

func TestMessageBuilder_publish(t *testing.T) {
	tests := []struct {
		name         string
		publishError error
		expectError  bool
	}{
		{
			name: "successful send",
		},
		{
			name:         "publish error",
			publishError: errors.New("publish failed"),
			expectError:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockConn := new(MockNATSConn)
			mockConn.On("PublishMsg", mock.MatchedBy(func(msg *nats.Msg) bool {
				return msg.Subject == "test.subject" && string(msg.Data) == "test data"
			})).Return(tt.publishError)

			builder := NewMessageBuilder(mockConn)
			err := builder.publish(context.Background(), "test.subject", []byte("test data"))

			if tt.expectError {
				assert.Error(t, err)
				assert.True(t, domain.IsRetryable(err))
			} else {
				assert.NoError(t, err)
			}
			mockConn.AssertExpectations(t)
		})
	}
}

func TestMessageBuilder_publishForwardsRequestID(t *testing.T) {
	mockConn := new(MockNATSConn)
	var sent *nats.Msg
	mockConn.On("PublishMsg", mock.Anything).Run(func(args mock.Arguments) {
		sent = args.Get(0).(*nats.Msg)
	}).Return(nil)

	ctx := context.WithValue(context.Background(), constants.RequestIDContextID, "req-42")
	require.NoError(t, NewMessageBuilder(mockConn).publish(ctx, "s", []byte("x")))

	require.NotNil(t, sent)
	assert.Equal(t, "req-42", sent.Header.Get(constants.RequestIDHeader))
}

func TestMessageBuilder_NoConnection(t *testing.T) {
	err := NewMessageBuilder(nil).SendAuditEvent(context.Background(), models.AuditEvent{})
	assert.Equal(t, domain.ErrorTypeUnavailable, domain.GetErrorType(err))
}

func TestMessageBuilder_SendAuditEvent(t *testing.T) {
	mockConn := new(MockNATSConn)
	var sent *nats.Msg
	mockConn.On("PublishMsg", mock.Anything).Run(func(args mock.Arguments) {
		sent = args.Get(0).(*nats.Msg)
	}).Return(nil)

	occurred := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	err := NewMessageBuilder(mockConn).SendAuditEvent(context.Background(), models.AuditEvent{
		Action:     models.AuditActionAccept,
		ResourceID: "m-1",
		TenantID:   "acme",
		ActorID:    "bob",
		OccurredAt: occurred,
	})
	require.NoError(t, err)

	require.NotNil(t, sent)
	assert.Equal(t, models.AuditSubject, sent.Subject)

	var got models.AuditEvent
	require.NoError(t, json.Unmarshal(sent.Data, &got))
	assert.Equal(t, models.AuditActionAccept, got.Action)
	assert.Equal(t, "meeting", got.ResourceType)
	assert.Equal(t, "bob", got.ActorID)
	assert.True(t, occurred.Equal(got.OccurredAt))
}

func TestMessageBuilder_SendNotification(t *testing.T) {
	mockConn := new(MockNATSConn)
	var sent *nats.Msg
	mockConn.On("PublishMsg", mock.Anything).Run(func(args mock.Arguments) {
		sent = args.Get(0).(*nats.Msg)
	}).Return(nil)

	err := NewMessageBuilder(mockConn).SendNotification(context.Background(), models.NotificationJob{
		UserID:     "alice",
		TenantID:   "acme",
		Type:       models.NotificationMeetingReminder,
		Title:      "Reminder",
		ResourceID: "m-1",
	})
	require.NoError(t, err)

	assert.Equal(t, models.NotificationSubject, sent.Subject)
	var got models.NotificationJob
	require.NoError(t, json.Unmarshal(sent.Data, &got))
	assert.Equal(t, models.ChannelInApp, got.Channel)
	assert.Equal(t, models.NotificationMeetingReminder, got.Type)
	assert.Empty(t, got.ICS)
}
