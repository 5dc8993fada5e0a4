package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInvalidParameter(t *testing.T) {
	err := InvalidParameterf("batch size must be positive, got %d", -1)

	assert.True(t, IsInvalidParameterError(err))
	assert.False(t, IsBadRequestError(err))
	assert.Contains(t, err.Error(), "batch size must be positive, got -1")
}

func TestBadRequest(t *testing.T) {
	err := BadRequestf("Cannot specify a tenant-id for an id-scoped request")

	assert.True(t, IsBadRequestError(err))
	assert.False(t, IsInvalidParameterError(err))
}

func TestConcurrentModification(t *testing.T) {
	err := Wrapf(ErrConcurrentModification, "batch %s", "bat-1")

	assert.True(t, IsConcurrentModificationError(err))
	assert.Contains(t, err.Error(), "bat-1")
}

func TestTaxonomySurvivesWrapping(t *testing.T) {
	err := InvalidParameterf("bad size")
	err = Wrap(err, "submit batch")
	err = WithDetail(err, "type: instance-suspension")

	assert.True(t, IsInvalidParameterError(err))
}

func TestNilChecks(t *testing.T) {
	assert.False(t, IsInvalidParameterError(nil))
	assert.False(t, IsBadRequestError(nil))
	assert.False(t, IsConcurrentModificationError(nil))
}
