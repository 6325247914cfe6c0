// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain/models"
)

// MockTaskQueue implements domain.TaskQueue for testing
type MockTaskQueue struct {
	mock.Mock
}

func (m *MockTaskQueue) Enqueue(ctx context.Context, job *models.DelayedJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockTaskQueue) Remove(ctx context.Context, jobID string) error {
	args := m.Called(ctx, jobID)
	return args.Error(0)
}

func (m *MockTaskQueue) Get(ctx context.Context, jobID string) (*models.DelayedJob, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DelayedJob), args.Error(1)
}

func (m *MockTaskQueue) Claim(ctx context.Context, now time.Time, limit int) ([]*models.ClaimedJob, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ClaimedJob), args.Error(1)
}

func (m *MockTaskQueue) Ack(ctx context.Context, claimed *models.ClaimedJob) error {
	args := m.Called(ctx, claimed)
	return args.Error(0)
}

func (m *MockTaskQueue) Fail(ctx context.Context, claimed *models.ClaimedJob, cause error, retryAt time.Time) error {
	args := m.Called(ctx, claimed, cause, retryAt)
	return args.Error(0)
}

func (m *MockTaskQueue) DeadLetter(ctx context.Context, claimed *models.ClaimedJob, cause error) error {
	args := m.Called(ctx, claimed, cause)
	return args.Error(0)
}

func (m *MockTaskQueue) ListDead(ctx context.Context) ([]*models.DelayedJob, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.DelayedJob), args.Error(1)
}
