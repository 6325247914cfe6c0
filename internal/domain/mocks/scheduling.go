// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain/models"
)

// MockReminderScheduler implements domain.ReminderScheduler for testing
type MockReminderScheduler struct {
	mock.Mock
}

func (m *MockReminderScheduler) ScheduleReminders(ctx context.Context, meetingUID string) (int, error) {
	args := m.Called(ctx, meetingUID)
	return args.Int(0), args.Error(1)
}

func (m *MockReminderScheduler) CancelReminders(ctx context.Context, meetingUID string) (int, error) {
	args := m.Called(ctx, meetingUID)
	return args.Int(0), args.Error(1)
}

// MockSessionEnder implements domain.SessionEnder for testing
type MockSessionEnder struct {
	mock.Mock
}

func (m *MockSessionEnder) EndSessions(ctx context.Context, meetingUID string, at time.Time) (int, error) {
	args := m.Called(ctx, meetingUID, at)
	return args.Int(0), args.Error(1)
}

// MockICSGenerator implements domain.ICSGenerator for testing
type MockICSGenerator struct {
	mock.Mock
}

func (m *MockICSGenerator) GenerateInvitation(meeting *models.Meeting) (string, error) {
	args := m.Called(meeting)
	return args.String(0), args.Error(1)
}

func (m *MockICSGenerator) GenerateCancellation(meeting *models.Meeting) (string, error) {
	args := m.Called(meeting)
	return args.String(0), args.Error(1)
}
