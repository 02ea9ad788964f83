package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errSample = New(KindNotFound, "meter_not_found", "meter not found")

func TestWrappedSentinelStillMatches(t *testing.T) {
	err := fmt.Errorf("lookup: %w", errSample.Wrap(errors.New("boom")))

	assert.ErrorIs(t, err, errSample)
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, "meter_not_found", CodeOf(err))
}

func TestStorageWrapsOnlyUnclassifiedErrors(t *testing.T) {
	assert.Nil(t, Storage(nil))

	wrapped := Storage(errors.New("connection refused"))
	assert.Equal(t, KindStorage, KindOf(wrapped))

	assert.Same(t, errSample, Storage(errSample))
}

func TestKindOfUnclassified(t *testing.T) {
	assert.Equal(t, KindStorage, KindOf(errors.New("plain")))
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.False(t, IsKind(nil, KindStorage))
}
