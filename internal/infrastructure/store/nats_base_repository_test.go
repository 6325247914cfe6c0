// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

// TestEntity is the document stored by the repository under test.
type TestEntity struct {
	ID   string `json:"id" msgpack:"id"`
	Name string `json:"name" msgpack:"name"`
}

func TestNatsBaseRepository_IsReady(t *testing.T) {
	assert.True(t, NewNatsBaseRepository[TestEntity](NewMockKeyValue(), "test").IsReady())
	assert.False(t, NewNatsBaseRepository[TestEntity](nil, "test").IsReady())
	assert.Equal(t, "test", NewNatsBaseRepository[TestEntity](nil, "test").EntityName())
}

func TestNatsBaseRepository_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("successful get", func(t *testing.T) {
		mockKV := NewMockKeyValue()
		repo := NewNatsBaseRepository[TestEntity](mockKV, "test")

		entity := &TestEntity{ID: "test-1", Name: "Test Entity"}
		entityJSON, _ := json.Marshal(entity)
		_, err := mockKV.Put(ctx, "test-key", entityJSON)
		require.NoError(t, err)

		result, err := repo.Get(ctx, "test-key")

		assert.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, entity.ID, result.ID)
		assert.Equal(t, entity.Name, result.Name)
	})

	t.Run("not found", func(t *testing.T) {
		repo := NewNatsBaseRepository[TestEntity](NewMockKeyValue(), "test")

		result, err := repo.Get(ctx, "nonexistent")

		assert.Error(t, err)
		assert.Nil(t, result)
		assert.Equal(t, domain.ErrorTypeNotFound, domain.GetErrorType(err))
	})

	t.Run("corrupt value", func(t *testing.T) {
		mockKV := NewMockKeyValue()
		repo := NewNatsBaseRepository[TestEntity](mockKV, "test")
		_, _ = mockKV.Put(ctx, "test-key", []byte("{not json"))

		_, err := repo.Get(ctx, "test-key")

		assert.ErrorIs(t, err, domain.ErrUnmarshal)
		assert.Equal(t, domain.ErrorTypeInternal, domain.GetErrorType(err))
	})

	t.Run("store failure", func(t *testing.T) {
		mockKV := NewMockKeyValue()
		mockKV.GetErr = errors.New("connection reset")
		repo := NewNatsBaseRepository[TestEntity](mockKV, "test")

		_, err := repo.Get(ctx, "test-key")

		assert.Equal(t, domain.ErrorTypeInternal, domain.GetErrorType(err))
	})

	t.Run("repository not ready", func(t *testing.T) {
		repo := NewNatsBaseRepository[TestEntity](nil, "test")

		result, err := repo.Get(ctx, "test-key")

		assert.Error(t, err)
		assert.Nil(t, result)
		assert.Equal(t, domain.ErrorTypeUnavailable, domain.GetErrorType(err))
	})
}

func TestNatsBaseRepository_GetWithRevision(t *testing.T) {
	ctx := context.Background()
	repo := NewNatsBaseRepository[TestEntity](NewMockKeyValue(), "test")

	rev, err := repo.Put(ctx, "test-key", &TestEntity{ID: "test-1", Name: "Test Entity"})
	require.NoError(t, err)

	result, revision, err := repo.GetWithRevision(ctx, "test-key")

	assert.NoError(t, err)
	assert.Equal(t, "test-1", result.ID)
	assert.Equal(t, rev, revision)
}

func TestNatsBaseRepository_Create(t *testing.T) {
	ctx := context.Background()
	entity := &TestEntity{ID: "test-1", Name: "Test Entity"}

	t.Run("successful create", func(t *testing.T) {
		mockKV := NewMockKeyValue()
		repo := NewNatsBaseRepository[TestEntity](mockKV, "test")

		rev, err := repo.Create(ctx, "test-key", entity)

		assert.NoError(t, err)
		assert.NotZero(t, rev)
		assert.Equal(t, 1, mockKV.Len())
	})

	t.Run("existing key is a conflict", func(t *testing.T) {
		repo := NewNatsBaseRepository[TestEntity](NewMockKeyValue(), "test")
		_, err := repo.Create(ctx, "test-key", entity)
		require.NoError(t, err)

		_, err = repo.Create(ctx, "test-key", &TestEntity{ID: "test-2"})

		assert.Equal(t, domain.ErrorTypeConflict, domain.GetErrorType(err))
		stored, err := repo.Get(ctx, "test-key")
		require.NoError(t, err)
		assert.Equal(t, "test-1", stored.ID)
	})

	t.Run("deleted key can be created again", func(t *testing.T) {
		mockKV := NewMockKeyValue()
		repo := NewNatsBaseRepository[TestEntity](mockKV, "test")
		rev, err := repo.Create(ctx, "test-key", entity)
		require.NoError(t, err)
		require.NoError(t, repo.Delete(ctx, "test-key", rev))

		// a blind revision 0 write is rejected by the delete marker
		_, err = mockKV.Update(ctx, "test-key", []byte(`{}`), 0)
		require.Error(t, err)

		next, err := repo.Create(ctx, "test-key", &TestEntity{ID: "test-2"})

		require.NoError(t, err)
		assert.Greater(t, next, rev)
		stored, err := repo.Get(ctx, "test-key")
		require.NoError(t, err)
		assert.Equal(t, "test-2", stored.ID)
	})

	t.Run("store failure", func(t *testing.T) {
		mockKV := NewMockKeyValue()
		mockKV.CreateErr = errors.New("timeout")
		repo := NewNatsBaseRepository[TestEntity](mockKV, "test")

		_, err := repo.Create(ctx, "test-key", entity)

		assert.Equal(t, domain.ErrorTypeUnavailable, domain.GetErrorType(err))
		assert.True(t, domain.IsRetryable(err))
	})
}

func TestNatsBaseRepository_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("matching revision", func(t *testing.T) {
		repo := NewNatsBaseRepository[TestEntity](NewMockKeyValue(), "test")
		rev, err := repo.Create(ctx, "test-key", &TestEntity{ID: "test-1", Name: "before"})
		require.NoError(t, err)

		next, err := repo.Update(ctx, "test-key", &TestEntity{ID: "test-1", Name: "after"}, rev)

		require.NoError(t, err)
		assert.Greater(t, next, rev)
		stored, _ := repo.Get(ctx, "test-key")
		assert.Equal(t, "after", stored.Name)
	})

	t.Run("stale revision", func(t *testing.T) {
		repo := NewNatsBaseRepository[TestEntity](NewMockKeyValue(), "test")
		rev, err := repo.Create(ctx, "test-key", &TestEntity{ID: "test-1"})
		require.NoError(t, err)
		_, err = repo.Update(ctx, "test-key", &TestEntity{ID: "test-1", Name: "first"}, rev)
		require.NoError(t, err)

		_, err = repo.Update(ctx, "test-key", &TestEntity{ID: "test-1", Name: "second"}, rev)

		assert.ErrorIs(t, err, domain.ErrRevisionMismatch)
		assert.Equal(t, domain.ErrorTypeConflict, domain.GetErrorType(err))
		assert.True(t, domain.IsRetryable(err))
		stored, _ := repo.Get(ctx, "test-key")
		assert.Equal(t, "first", stored.Name)
	})
}

func TestNatsBaseRepository_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("delete existing", func(t *testing.T) {
		mockKV := NewMockKeyValue()
		repo := NewNatsBaseRepository[TestEntity](mockKV, "test")
		rev, _ := repo.Put(ctx, "test-key", &TestEntity{ID: "test-1"})

		err := repo.Delete(ctx, "test-key", rev)

		assert.NoError(t, err)
		assert.Zero(t, mockKV.Len())
	})

	t.Run("delete missing", func(t *testing.T) {
		repo := NewNatsBaseRepository[TestEntity](NewMockKeyValue(), "test")

		err := repo.DeleteWithoutRevision(ctx, "test-key")

		assert.Equal(t, domain.ErrorTypeNotFound, domain.GetErrorType(err))
	})
}

func TestNatsBaseRepository_ListKeys(t *testing.T) {
	ctx := context.Background()

	t.Run("empty bucket", func(t *testing.T) {
		repo := NewNatsBaseRepository[TestEntity](NewMockKeyValue(), "test")

		keys, err := repo.ListKeys(ctx)

		assert.NoError(t, err)
		assert.Empty(t, keys)
	})

	t.Run("list failure", func(t *testing.T) {
		mockKV := NewMockKeyValue()
		mockKV.ListErr = errors.New("stream unavailable")
		repo := NewNatsBaseRepository[TestEntity](mockKV, "test")

		_, err := repo.ListKeys(ctx)

		assert.Equal(t, domain.ErrorTypeUnavailable, domain.GetErrorType(err))
	})
}

func TestNatsBaseRepository_ListEntitiesEncoded(t *testing.T) {
	ctx := context.Background()
	kb := NewKeyBuilder("")
	repo := NewNatsBaseRepository[TestEntity](NewMockKeyValue(), "test")

	for _, id := range []string{"a", "b"} {
		_, err := repo.Put(ctx, kb.EntityKeyEncoded(KeyPrefixMeeting, id), &TestEntity{ID: id})
		require.NoError(t, err)
	}
	_, err := repo.Put(ctx, kb.EntityKeyEncoded(KeyPrefixVideoSession, "c"), &TestEntity{ID: "c"})
	require.NoError(t, err)

	entities, err := repo.ListEntitiesEncoded(ctx, "/"+KeyPrefixMeeting+"/", kb)

	require.NoError(t, err)
	ids := []string{}
	for _, e := range entities {
		ids = append(ids, e.ID)
	}
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}

func TestNatsBaseRepository_ListIndex(t *testing.T) {
	ctx := context.Background()
	kb := NewKeyBuilder("")
	repo := NewNatsBaseRepository[TestEntity](NewMockKeyValue(), "test")

	require.NoError(t, repo.PutIndex(ctx, kb.IndexKeyEncoded(KeyPrefixIndexParticipant, "user-1", "m-1")))
	require.NoError(t, repo.PutIndex(ctx, kb.IndexKeyEncoded(KeyPrefixIndexParticipant, "user-1", "m-2")))
	require.NoError(t, repo.PutIndex(ctx, kb.IndexKeyEncoded(KeyPrefixIndexParticipant, "user-10", "m-3")))

	uids, err := repo.ListIndex(ctx, kb.IndexPrefix(KeyPrefixIndexParticipant, "user-1"), kb)

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"m-1", "m-2"}, uids)
}

func TestNatsBaseRepository_MsgpackCodec(t *testing.T) {
	ctx := context.Background()
	mockKV := NewMockKeyValue()
	repo := NewNatsBaseRepositoryWithCodec[TestEntity](mockKV, "job", MsgpackCodec)

	_, err := repo.Put(ctx, "job-1", &TestEntity{ID: "job-1", Name: "reminder"})
	require.NoError(t, err)

	entry, err := mockKV.Get(ctx, "job-1")
	require.NoError(t, err)
	var raw TestEntity
	require.NoError(t, msgpack.Unmarshal(entry.Value(), &raw))
	assert.Equal(t, "reminder", raw.Name)

	got, err := repo.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "job-1", got.ID)
}
