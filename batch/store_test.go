package batch

import (
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/cascade/errors"
	cascadetest "github.com/teranos/cascade/internal/testing"
)

func TestBatchInsertAndGet(t *testing.T) {
	db := cascadetest.CreateTestDB(t)
	store := NewStore(db)

	b := newBatch("test-op", 50, 10, 5, "tenant-one", []byte(`{"target":"orders"}`))
	require.NoError(t, store.Insert(b))

	retrieved, err := store.Get(b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, retrieved.ID)
	assert.Equal(t, "test-op", retrieved.Type)
	assert.Equal(t, 50, retrieved.Size)
	assert.Equal(t, 10, retrieved.JobsPerSeed)
	assert.Equal(t, 5, retrieved.InvocationsPerJob)
	assert.Equal(t, "tenant-one", retrieved.TenantID)
	assert.Equal(t, 1, retrieved.Revision)
	assert.JSONEq(t, `{"target":"orders"}`, string(retrieved.Configuration))
}

func TestBatchUpdateBumpsRevision(t *testing.T) {
	db := cascadetest.CreateTestDB(t)
	store := NewStore(db)

	b := newBatch("test-op", 5, 2, 1, "", nil)
	require.NoError(t, store.Insert(b))

	b.BatchJobDefinitionID = "def-1"
	require.NoError(t, store.Update(b))
	assert.Equal(t, 2, b.Revision)

	retrieved, err := store.Get(b.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, retrieved.Revision)
	assert.Equal(t, "def-1", retrieved.BatchJobDefinitionID)
}

func TestBatchUpdateStaleRevisionConflicts(t *testing.T) {
	db := cascadetest.CreateTestDB(t)
	store := NewStore(db)

	b := newBatch("test-op", 5, 2, 1, "", nil)
	require.NoError(t, store.Insert(b))

	stale, err := store.Get(b.ID)
	require.NoError(t, err)

	b.BatchJobDefinitionID = "def-1"
	require.NoError(t, store.Update(b))

	// The second writer read revision 1, which has since moved on.
	stale.BatchJobDefinitionID = "def-2"
	err = store.Update(stale)
	require.Error(t, err)
	assert.True(t, errors.IsConcurrentModificationError(err))

	// The stale write was not silently applied.
	retrieved, err := store.Get(b.ID)
	require.NoError(t, err)
	assert.Equal(t, "def-1", retrieved.BatchJobDefinitionID)
}

func TestHistoricBatchLifecycle(t *testing.T) {
	db := cascadetest.CreateTestDB(t)
	store := NewHistoricStore(db)

	b := newBatch("test-op", 7, 2, 1, "tenant-one", nil)
	start := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.Insert(b, start))

	historic, err := store.Get(b.ID)
	require.NoError(t, err)
	assert.Equal(t, "test-op", historic.Type)
	assert.Equal(t, 7, historic.Size)
	assert.Nil(t, historic.EndTime)

	end := start.Add(time.Minute)
	require.NoError(t, store.Complete(b.ID, end))

	historic, err = store.Get(b.ID)
	require.NoError(t, err)
	require.NotNil(t, historic.EndTime)
	assert.True(t, historic.EndTime.Equal(end))

	require.NoError(t, store.Delete(b.ID))
	_, err = store.Get(b.ID)
	assert.True(t, errors.IsNotFoundError(err))
}
