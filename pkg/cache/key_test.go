package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveKey_Normalization(t *testing.T) {
	t.Parallel()

	base := DeriveKey("Compare Player A and Player B", []string{"career_stats", "recent_form"})

	tests := []struct {
		name    string
		topic   string
		aspects []string
		same    bool
	}{
		{name: "identical", topic: "Compare Player A and Player B", aspects: []string{"career_stats", "recent_form"}, same: true},
		{name: "case and whitespace", topic: "  compare player a AND player b\t", aspects: []string{"career_stats", "recent_form"}, same: true},
		{name: "aspect order", topic: "Compare Player A and Player B", aspects: []string{"recent_form", "career_stats"}, same: true},
		{name: "aspect removed", topic: "Compare Player A and Player B", aspects: []string{"career_stats"}},
		{name: "aspect added", topic: "Compare Player A and Player B", aspects: []string{"career_stats", "recent_form", "strengths_weaknesses"}},
		{name: "different topic", topic: "Compare Player A and Player C", aspects: []string{"career_stats", "recent_form"}},
		{name: "concatenation ambiguity", topic: "Compare Player A and Player Bcareer_stats", aspects: []string{"recent_form"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := DeriveKey(tt.topic, tt.aspects)
			if tt.same {
				assert.Equal(t, base, got)
			} else {
				assert.NotEqual(t, base, got)
			}
		})
	}
}

func TestDeriveKey_DoesNotMutateAspects(t *testing.T) {
	t.Parallel()

	aspects := []string{"b", "a"}
	DeriveKey("topic", aspects)
	assert.Equal(t, []string{"b", "a"}, aspects)
}

func TestKey_For(t *testing.T) {
	t.Parallel()

	k := DeriveKey("topic", nil)
	assert.Len(t, k.String(), 64)
	assert.Equal(t, "gathered:"+k.String(), k.For(StageGathered))
	assert.Equal(t, "report:"+k.String(), k.For(StageReport))
	assert.NotEqual(t, k.For(StageGathered), k.For(StageReport))
}
