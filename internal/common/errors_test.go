package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	err := Errorf(KindNotFound, "dataset not found: %s", "ds-abc")
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.True(t, IsKind(err, KindNotFound))
	assert.False(t, IsKind(err, KindExpired))
}

func TestKindOfWrapped(t *testing.T) {
	cause := WrapError(KindRemote, errors.New("status 504"), "vision call failed")
	wrapped := fmt.Errorf("identify: %w", cause)

	assert.Equal(t, KindRemote, KindOf(wrapped))
	require.ErrorAs(t, wrapped, new(*Error))
}

func TestKindOfForeignError(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.False(t, IsKind(nil, KindInternal))
}

func TestShortID(t *testing.T) {
	id := ShortID("ds")
	assert.Len(t, id, 3+12)
	assert.Equal(t, "ds-", id[:3])
	assert.NotEqual(t, id, ShortID("ds"))
}
