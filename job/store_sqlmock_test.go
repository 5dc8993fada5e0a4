package job

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/cascade/errors"
)

// Minimal sqlmock tests exercising error propagation from the driver.

func TestCreateJobDatabaseError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO jobs").WillReturnError(errors.New("disk I/O error"))

	j, err := New("test-handler", "", nil, nil)
	require.NoError(t, err)

	err = NewStore(db).Create(j)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create job")
	assert.Contains(t, err.Error(), "disk I/O error")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcquireDueQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM jobs").WillReturnError(errors.New("database is locked"))

	_, err = NewStore(db).AcquireDue("owner-1", time.Now(), 5*time.Minute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to find due job")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountByDefinitionQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT COUNT").WillReturnError(errors.New("database is locked"))

	_, err = NewStore(db).CountByDefinition("def-1")
	require.Error(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}
