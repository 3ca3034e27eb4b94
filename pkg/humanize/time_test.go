package humanize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTime(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

	assert.Equal(t, "3 minutes ago", Time(now.Add(-3*time.Minute), now))
	assert.Equal(t, "2 hours ago", Time(now.Add(-2*time.Hour), now))
	assert.Equal(t, "Mar 14, 2026 06:00", Time(now.Add(-12*time.Hour), now))
}
