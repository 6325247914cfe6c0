// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain/models"
)

// MockVideoSessionRepository implements domain.VideoSessionRepository for testing
type MockVideoSessionRepository struct {
	mock.Mock
}

func (m *MockVideoSessionRepository) Create(ctx context.Context, session *models.VideoSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockVideoSessionRepository) GetWithRevision(ctx context.Context, meetingUID string) (*models.VideoSession, uint64, error) {
	args := m.Called(ctx, meetingUID)
	if args.Get(0) == nil {
		return nil, args.Get(1).(uint64), args.Error(2)
	}
	return args.Get(0).(*models.VideoSession), args.Get(1).(uint64), args.Error(2)
}

func (m *MockVideoSessionRepository) Update(ctx context.Context, session *models.VideoSession, revision uint64) error {
	args := m.Called(ctx, session, revision)
	return args.Error(0)
}
