package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfo_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "v1.2.0 (abc123)", Info{Version: "v1.2.0", Commit: "abc123"}.String())
	assert.Equal(t, "dev", Info{Version: "dev"}.String())
}

func TestGet(t *testing.T) {
	t.Parallel()

	info := Get()
	assert.NotEmpty(t, info.Version)
	assert.NotEmpty(t, info.GoVersion)
}
