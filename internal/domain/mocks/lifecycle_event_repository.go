// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain/models"
)

// MockLifecycleEventRepository implements domain.LifecycleEventRepository for testing
type MockLifecycleEventRepository struct {
	mock.Mock
}

func (m *MockLifecycleEventRepository) Append(ctx context.Context, event *models.LifecycleEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockLifecycleEventRepository) ListByMeeting(ctx context.Context, meetingUID string) ([]*models.LifecycleEvent, error) {
	args := m.Called(ctx, meetingUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.LifecycleEvent), args.Error(1)
}
