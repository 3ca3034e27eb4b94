package tools

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaToMap_Nil(t *testing.T) {
	t.Parallel()

	m, err := SchemaToMap(nil)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}, m)
}

func TestSchemaToMap_FillsMissingTypes(t *testing.T) {
	t.Parallel()

	m, err := SchemaToMap(map[string]any{
		"properties": map[string]any{
			"filters": map[string]any{
				"properties": map[string]any{
					"league": map[string]any{"type": "string"},
					"extra":  map[string]any{"description": "free-form"},
				},
			},
			"seasons": map[string]any{
				"type": "array",
				"items": map[string]any{
					"properties": map[string]any{
						"year": map[string]any{"description": "season year"},
					},
				},
			},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"type": "object",
		"properties": map[string]any{
			"filters": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"league": map[string]any{"type": "string"},
					"extra":  map[string]any{"type": "object", "description": "free-form"},
				},
			},
			"seasons": map[string]any{
				"type": "array",
				"items": map[string]any{
					"properties": map[string]any{
						"year": map[string]any{"type": "object", "description": "season year"},
					},
				},
			},
		},
	}, m)
}

func TestConvertSchema(t *testing.T) {
	t.Parallel()

	var out struct {
		Type       string         `json:"type"`
		Properties map[string]any `json:"properties"`
	}
	require.NoError(t, ConvertSchema(nil, &out))

	assert.Equal(t, "object", out.Type)
	assert.Empty(t, out.Properties)
}

func TestCompileSchema_Validate(t *testing.T) {
	t.Parallel()

	v, err := CompileSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"player": map[string]any{"type": "string"},
			"season": map[string]any{"type": "integer"},
			"notes":  map[string]any{"description": "free-form"},
		},
		"required": []any{"player"},
	})
	require.NoError(t, err)

	tests := []struct {
		name    string
		args    string
		wantErr string
	}{
		{name: "valid", args: `{"player":"Player A","season":2024}`},
		{name: "untyped property accepts a string", args: `{"player":"Player A","notes":"injured"}`},
		{name: "missing required", args: `{"season":2024}`, wantErr: "invalid arguments"},
		{name: "wrong type", args: `{"player":7}`, wantErr: "invalid arguments"},
		{name: "empty means empty object", args: ``, wantErr: "invalid arguments"},
		{name: "not json", args: `{oops`, wantErr: "not valid JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := v.Validate(json.RawMessage(tt.args))
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCompileSchema_NilAcceptsAnyObject(t *testing.T) {
	t.Parallel()

	v, err := CompileSchema(nil)
	require.NoError(t, err)

	require.NoError(t, v.Validate(nil))
	require.NoError(t, v.Validate(json.RawMessage(`{"anything":[1,2]}`)))
	require.Error(t, v.Validate(json.RawMessage(`"a string"`)))
}

func TestCompileSchema_InvalidSchema(t *testing.T) {
	t.Parallel()

	_, err := CompileSchema(map[string]any{"type": 12})
	require.Error(t, err)
}
