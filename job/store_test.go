package job

import (
	"encoding/json"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/cascade/errors"
	cascadetest "github.com/teranos/cascade/internal/testing"
)

func TestCreateAndGetJob(t *testing.T) {
	db := cascadetest.CreateTestDB(t)
	store := NewStore(db)

	j, err := New("test-handler", "", json.RawMessage(`{"work":"unit"}`), nil)
	require.NoError(t, err)

	require.NoError(t, store.Create(j))

	retrieved, err := store.Get(j.ID)
	require.NoError(t, err)
	assert.Equal(t, j.ID, retrieved.ID)
	assert.Equal(t, "test-handler", retrieved.HandlerType)
	assert.JSONEq(t, `{"work":"unit"}`, string(retrieved.Configuration))
	assert.Equal(t, DefaultRetries, retrieved.Retries)
	assert.Nil(t, retrieved.DueDate)
}

func TestGetMissingJob(t *testing.T) {
	db := cascadetest.CreateTestDB(t)
	store := NewStore(db)

	_, err := store.Get("nope")
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestNewJobRequiresHandlerType(t *testing.T) {
	_, err := New("", "", nil, nil)
	require.Error(t, err)
}

func TestAcquireDue(t *testing.T) {
	db := cascadetest.CreateTestDB(t)
	store := NewStore(db)
	now := time.Now()

	past := now.Add(-10 * time.Minute)
	future := now.Add(10 * time.Minute)

	dueJob, err := New("test-handler", "", nil, &past)
	require.NoError(t, err)
	require.NoError(t, store.Create(dueJob))

	futureJob, err := New("test-handler", "", nil, &future)
	require.NoError(t, err)
	require.NoError(t, store.Create(futureJob))

	acquired, err := store.AcquireDue("owner-1", now, 5*time.Minute)
	require.NoError(t, err)
	require.NotNil(t, acquired)
	assert.Equal(t, dueJob.ID, acquired.ID)
	assert.Equal(t, "owner-1", acquired.LockOwner)
	require.NotNil(t, acquired.LockExpiration)

	// The future job is not due yet; the due job is locked.
	next, err := store.AcquireDue("owner-2", now, 5*time.Minute)
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestAcquireDueNilDueDateIsImmediatelyDue(t *testing.T) {
	db := cascadetest.CreateTestDB(t)
	store := NewStore(db)

	j, err := New("test-handler", "", nil, nil)
	require.NoError(t, err)
	require.NoError(t, store.Create(j))

	acquired, err := store.AcquireDue("owner-1", time.Now(), 5*time.Minute)
	require.NoError(t, err)
	require.NotNil(t, acquired)
	assert.Equal(t, j.ID, acquired.ID)
}

func TestAcquireDueSkipsExhaustedRetries(t *testing.T) {
	db := cascadetest.CreateTestDB(t)
	store := NewStore(db)

	j, err := New("test-handler", "", nil, nil)
	require.NoError(t, err)
	require.NoError(t, store.Create(j))
	require.NoError(t, store.Reschedule(j.ID, time.Now().Add(-time.Minute), 0))

	acquired, err := store.AcquireDue("owner-1", time.Now(), 5*time.Minute)
	require.NoError(t, err)
	assert.Nil(t, acquired)

	// Raising retries makes the job acquirable again.
	require.NoError(t, store.SetRetries(j.ID, 1))
	acquired, err = store.AcquireDue("owner-1", time.Now(), 5*time.Minute)
	require.NoError(t, err)
	require.NotNil(t, acquired)
	assert.Equal(t, j.ID, acquired.ID)
}

func TestAcquireDueExpiredLockIsReacquirable(t *testing.T) {
	db := cascadetest.CreateTestDB(t)
	store := NewStore(db)

	j, err := New("test-handler", "", nil, nil)
	require.NoError(t, err)
	require.NoError(t, store.Create(j))

	acquired, err := store.AcquireDue("owner-1", time.Now().Add(-10*time.Minute), 5*time.Minute)
	require.NoError(t, err)
	require.NotNil(t, acquired)

	// The lease expired 5 minutes ago, so another owner may claim it.
	reacquired, err := store.AcquireDue("owner-2", time.Now(), 5*time.Minute)
	require.NoError(t, err)
	require.NotNil(t, reacquired)
	assert.Equal(t, j.ID, reacquired.ID)
	assert.Equal(t, "owner-2", reacquired.LockOwner)
}

func TestCountAndDeleteByDefinition(t *testing.T) {
	db := cascadetest.CreateTestDB(t)
	store := NewStore(db)

	d := NewDefinition("test-handler", "some-batch")
	require.NoError(t, NewDefinitionStore(db).Create(d))

	for i := 0; i < 3; i++ {
		j, err := New("test-handler", d.ID, nil, nil)
		require.NoError(t, err)
		require.NoError(t, store.Create(j))
	}
	other, err := New("test-handler", "", nil, nil)
	require.NoError(t, err)
	require.NoError(t, store.Create(other))

	count, err := store.CountByDefinition(d.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	require.NoError(t, store.DeleteByDefinition(d.ID))

	count, err = store.CountByDefinition(d.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// Jobs outside the definition are untouched.
	_, err = store.Get(other.ID)
	require.NoError(t, err)
}

func TestDeleteMissingJobIsNotFound(t *testing.T) {
	db := cascadetest.CreateTestDB(t)
	store := NewStore(db)

	err := store.Delete("nope")
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestRescheduleClearsLock(t *testing.T) {
	db := cascadetest.CreateTestDB(t)
	store := NewStore(db)

	j, err := New("test-handler", "", nil, nil)
	require.NoError(t, err)
	require.NoError(t, store.Create(j))

	acquired, err := store.AcquireDue("owner-1", time.Now(), 5*time.Minute)
	require.NoError(t, err)
	require.NotNil(t, acquired)

	require.NoError(t, store.Reschedule(j.ID, time.Now().Add(-time.Second), 2))

	retrieved, err := store.Get(j.ID)
	require.NoError(t, err)
	assert.Empty(t, retrieved.LockOwner)
	assert.Nil(t, retrieved.LockExpiration)
	assert.Equal(t, 2, retrieved.Retries)

	reacquired, err := store.AcquireDue("owner-2", time.Now(), 5*time.Minute)
	require.NoError(t, err)
	require.NotNil(t, reacquired)
	assert.Equal(t, j.ID, reacquired.ID)
}

func TestDefinitionLifecycle(t *testing.T) {
	db := cascadetest.CreateTestDB(t)
	store := NewDefinitionStore(db)

	d := NewDefinition("batch-seed", "batch-123")
	require.NoError(t, store.Create(d))

	retrieved, err := store.Get(d.ID)
	require.NoError(t, err)
	assert.Equal(t, "batch-seed", retrieved.HandlerType)
	assert.Equal(t, "batch-123", retrieved.Configuration)

	require.NoError(t, store.Delete(d.ID))
	_, err = store.Get(d.ID)
	assert.True(t, errors.IsNotFoundError(err))
}
