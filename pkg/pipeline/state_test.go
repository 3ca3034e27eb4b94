package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_Advance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		path  []State
		legal bool
	}{
		{name: "full pipeline", path: []State{Gathering, Writing, Completed}, legal: true},
		{name: "skip to writing", path: []State{Writing, Completed}, legal: true},
		{name: "cache short-circuit", path: []State{Completed}, legal: true},
		{name: "rejected request", path: []State{Failed}, legal: true},
		{name: "gathering fails", path: []State{Gathering, Failed}, legal: true},
		{name: "writing fails", path: []State{Gathering, Writing, Failed}, legal: true},
		{name: "gathering cannot complete", path: []State{Gathering, Completed}},
		{name: "no re-entry", path: []State{Gathering, Writing, Gathering}},
		{name: "completed is terminal", path: []State{Completed, Failed}},
		{name: "failed is terminal", path: []State{Failed, Gathering}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := newRun(NewRequest("topic", nil, nil))
			var err error
			for _, s := range tt.path {
				if err = r.Advance(s); err != nil {
					break
				}
			}
			if tt.legal {
				require.NoError(t, err)
				assert.Equal(t, tt.path[len(tt.path)-1], r.State)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestState_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "gathering", Gathering.String())
	assert.Equal(t, "state(42)", State(42).String())
}
