package contextutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionID(t *testing.T) {
	t.Parallel()

	assert.Empty(t, SessionID(t.Context()))
	assert.Equal(t, "thread-1", SessionID(WithSessionID(t.Context(), "thread-1")))
}
