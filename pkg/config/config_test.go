package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docker/briefing/pkg/cache"
)

func TestParse_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := Parse([]byte(`version: "1"`))
	require.NoError(t, err)

	assert.Equal(t, DefaultListen, cfg.Server.Listen)
	assert.Equal(t, DefaultModel, cfg.Model.Name)
	assert.Equal(t, cache.KindMemory, cfg.Cache.Kind)
	assert.Equal(t, DefaultStageLimit, cfg.Pipeline.Gather.Timeout)
	assert.Equal(t, 3, cfg.Tools.Retry.MaxAttempts)
	assert.Equal(t, Default(), cfg)
}

func TestParse_Full(t *testing.T) {
	t.Parallel()

	cfg, err := Parse([]byte(`
version: "1"
server:
  listen: unix:///tmp/briefing.sock
  shutdown_timeout: 2m
model:
  name: claude-opus-4-1
  max_tokens: 16000
  thinking_budget: 4096
cache:
  kind: ttl
  ttl: 30m
  max_entries: 100
pipeline:
  default_aspects: [career_stats, injuries]
  gather:
    timeout: 90s
    model: claude-haiku-4-5
  report:
    instructions: Write a short report.
tools:
  concurrency: 2
  retry:
    max_attempts: 5
    initial_interval: 100ms
    max_interval: 1s
  remote:
    - name: career_stats
      description: Career statistics of a player
      url: http://stats.internal/career
      timeout: 10s
      parameters:
        type: object
        properties:
          player:
            type: string
      headers:
        X-Api-Key: ${STATS_API_KEY}
`))
	require.NoError(t, err)

	assert.Equal(t, "unix:///tmp/briefing.sock", cfg.Server.Listen)
	assert.Equal(t, 2*time.Minute, cfg.Server.ShutdownTimeout)
	assert.Equal(t, int64(4096), cfg.Model.ThinkingBudget)
	assert.Equal(t, cache.Config{Kind: cache.KindTTL, TTL: 30 * time.Minute, MaxEntries: 100}, cfg.Cache)
	assert.Equal(t, []string{"career_stats", "injuries"}, cfg.Pipeline.DefaultAspects)
	assert.Equal(t, 90*time.Second, cfg.Pipeline.Gather.Timeout)
	assert.Equal(t, "claude-haiku-4-5", cfg.Pipeline.Gather.Model)
	assert.Equal(t, "Write a short report.", cfg.Pipeline.Report.Instructions)
	assert.Equal(t, 5, cfg.Tools.Retry.Policy().MaxAttempts)

	require.Len(t, cfg.Tools.Remote, 1)
	remote := cfg.Tools.Remote[0]
	assert.Equal(t, 10*time.Second, remote.Timeout)
	assert.Equal(t, "object", remote.Parameters["type"])
}

func TestRemoteTool_DefinitionExpandsEnv(t *testing.T) {
	t.Setenv("STATS_API_KEY", "secret")

	def := RemoteTool{Name: "x", URL: "http://h", Headers: map[string]string{"X-Api-Key": "${STATS_API_KEY}"}}.Definition()

	assert.Equal(t, "secret", def.Headers["X-Api-Key"])
	assert.Nil(t, def.Parameters)
}

func TestParse_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  string
		wantErr string
	}{
		{name: "unknown field", config: "version: \"1\"\nunknown: true\n", wantErr: "unknown"},
		{name: "bad version", config: `version: "9"`, wantErr: "unsupported config version"},
		{name: "sqlite without path", config: "cache:\n  kind: sqlite\n", wantErr: "requires a path"},
		{name: "unsupported cache", config: "cache:\n  kind: redis\n", wantErr: "unsupported cache kind"},
		{name: "thinking budget too large", config: "model:\n  max_tokens: 2000\n  thinking_budget: 4000\n", wantErr: "thinking_budget"},
		{name: "remote without url", config: "tools:\n  remote:\n    - name: x\n", wantErr: "absolute url"},
		{name: "duplicate remote", config: "tools:\n  remote:\n    - name: x\n      url: http://a\n    - name: x\n      url: http://b\n", wantErr: "declared twice"},
		{name: "negative concurrency", config: "tools:\n  concurrency: -1\n", wantErr: "concurrency"},
		{name: "sample rate out of range", config: "tracing:\n  enabled: true\n  sample_rate: 1.5\n", wantErr: "sample_rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse([]byte(tt.config))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "briefing.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache:\n  kind: file\n  path: /tmp/x\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cache.KindFile, cfg.Cache.Kind)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
