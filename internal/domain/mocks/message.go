// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package mocks

import (
	"github.com/stretchr/testify/mock"
)

// MockMessage implements domain.Message for testing
type MockMessage struct {
	mock.Mock
	data    []byte
	subject string
	headers map[string]string
}

func (m *MockMessage) Subject() string {
	return m.subject
}

func (m *MockMessage) Data() []byte {
	return m.data
}

func (m *MockMessage) Header(key string) string {
	return m.headers[key]
}

func (m *MockMessage) HasReply() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockMessage) Respond(data []byte) error {
	args := m.Called(data)
	return args.Error(0)
}

// WithHeader sets a header on the mock message.
func (m *MockMessage) WithHeader(key, value string) *MockMessage {
	if m.headers == nil {
		m.headers = map[string]string{}
	}
	m.headers[key] = value
	return m
}

// NewMockMessage creates a mock message for testing
func NewMockMessage(data []byte, subject string) *MockMessage {
	return &MockMessage{
		data:    data,
		subject: subject,
	}
}
