// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// mockKeyValueEntry implements jetstream.KeyValueEntry for testing
type mockKeyValueEntry struct {
	key      string
	value    []byte
	revision uint64
}

func (m *mockKeyValueEntry) Key() string                     { return m.key }
func (m *mockKeyValueEntry) Value() []byte                   { return m.value }
func (m *mockKeyValueEntry) Revision() uint64                { return m.revision }
func (m *mockKeyValueEntry) Created() time.Time              { return time.Now() }
func (m *mockKeyValueEntry) Delta() uint64                   { return 0 }
func (m *mockKeyValueEntry) Operation() jetstream.KeyValueOp { return jetstream.KeyValuePut }
func (m *mockKeyValueEntry) Bucket() string                  { return "test-bucket" }

// mockKeyLister implements jetstream.KeyLister for testing
type mockKeyLister struct {
	keys  []string
	index int
}

func (m *mockKeyLister) Next() (jetstream.KeyValueEntry, error) {
	if m.index >= len(m.keys) {
		return nil, errors.New("no more keys")
	}
	key := m.keys[m.index]
	m.index++
	return &mockKeyValueEntry{key: key}, nil
}

func (m *mockKeyLister) Keys() <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		for _, key := range m.keys {
			ch <- key
		}
	}()
	return ch
}

func (m *mockKeyLister) Stop() error { return nil }

// MockKeyValue is an in-memory INatsKeyValue for tests. It reproduces the
// revision semantics of a JetStream bucket: every write and delete takes the
// next sequence number of the bucket, a deleted key keeps its delete marker
// revision so Update with revision 0 fails on it, and Create succeeds on any
// key without a live value. The Err fields inject failures into single operations.
type MockKeyValue struct {
	mu        sync.Mutex
	data      map[string][]byte
	revisions map[string]uint64
	sequence  uint64

	PutErr    error
	GetErr    error
	CreateErr error
	UpdateErr error
	DeleteErr error
	ListErr   error
}

// NewMockKeyValue creates an empty MockKeyValue.
func NewMockKeyValue() *MockKeyValue {
	return &MockKeyValue{
		data:      make(map[string][]byte),
		revisions: make(map[string]uint64),
	}
}

// Len returns the number of keys held.
func (m *MockKeyValue) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

func (m *MockKeyValue) ListKeys(ctx context.Context, opts ...jetstream.WatchOpt) (jetstream.KeyLister, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ListErr != nil {
		return nil, m.ListErr
	}
	if len(m.data) == 0 {
		return nil, jetstream.ErrNoKeysFound
	}
	keys := make([]string, 0, len(m.data))
	for key := range m.data {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return &mockKeyLister{keys: keys}, nil
}

func (m *MockKeyValue) Get(ctx context.Context, key string) (jetstream.KeyValueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.GetErr != nil {
		return nil, m.GetErr
	}
	value, exists := m.data[key]
	if !exists {
		return nil, jetstream.ErrKeyNotFound
	}
	return &mockKeyValueEntry{key: key, value: value, revision: m.revisions[key]}, nil
}

func (m *MockKeyValue) Put(ctx context.Context, key string, data []byte) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.PutErr != nil {
		return 0, m.PutErr
	}
	return m.write(key, data), nil
}

func (m *MockKeyValue) Create(ctx context.Context, key string, data []byte, _ ...jetstream.KVCreateOpt) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CreateErr != nil {
		return 0, m.CreateErr
	}
	if _, exists := m.data[key]; exists {
		return 0, jetstream.ErrKeyExists
	}
	return m.write(key, data), nil
}

func (m *MockKeyValue) Update(ctx context.Context, key string, data []byte, expectedRevision uint64) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.UpdateErr != nil {
		return 0, m.UpdateErr
	}
	if m.revisions[key] != expectedRevision {
		return 0, errors.New("nats: wrong last sequence")
	}
	return m.write(key, data), nil
}

func (m *MockKeyValue) write(key string, data []byte) uint64 {
	m.sequence++
	m.data[key] = data
	m.revisions[key] = m.sequence
	return m.sequence
}

func (m *MockKeyValue) Delete(ctx context.Context, key string, opts ...jetstream.KVDeleteOpt) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	if _, exists := m.data[key]; !exists {
		return jetstream.ErrKeyNotFound
	}
	delete(m.data, key)
	m.sequence++
	m.revisions[key] = m.sequence
	return nil
}
