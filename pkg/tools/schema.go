package tools

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// SchemaToMap normalizes a parameter schema into the shape model providers
// accept: a top-level object with a properties map, and a type on every
// nested property.
func SchemaToMap(params any) (map[string]any, error) {
	m, err := decodeSchema(params)
	if err != nil {
		return nil, err
	}

	if m["type"] == nil {
		m["type"] = "object"
	}
	if m["properties"] == nil {
		m["properties"] = map[string]any{}
	}
	if m["required"] == nil {
		delete(m, "required")
	}
	fillPropertyTypes(m)

	return m, nil
}

// ConvertSchema normalizes params and decodes them into v, typically a
// provider-specific schema type.
func ConvertSchema(params, v any) error {
	m, err := SchemaToMap(params)
	if err != nil {
		return err
	}
	buf, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(buf, v)
}

// ArgsValidator checks call arguments against a tool's parameter schema.
type ArgsValidator struct {
	resolved *jsonschema.Resolved
}

// CompileSchema resolves params as a JSON schema. A nil schema accepts any
// object. Unlike SchemaToMap, untyped properties stay unconstrained.
func CompileSchema(params any) (*ArgsValidator, error) {
	m, err := decodeSchema(params)
	if err != nil {
		return nil, err
	}
	if len(m) == 0 {
		m["type"] = "object"
	}

	buf, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	var schema jsonschema.Schema
	if err := json.Unmarshal(buf, &schema); err != nil {
		return nil, fmt.Errorf("decoding parameters schema: %w", err)
	}
	resolved, err := schema.Resolve(&jsonschema.ResolveOptions{})
	if err != nil {
		return nil, fmt.Errorf("resolving parameters schema: %w", err)
	}
	return &ArgsValidator{resolved: resolved}, nil
}

// Validate checks JSON-encoded arguments. Empty arguments are an empty object.
func (v *ArgsValidator) Validate(args json.RawMessage) error {
	var instance any = map[string]any{}
	if len(bytes.TrimSpace(args)) > 0 {
		if err := json.Unmarshal(args, &instance); err != nil {
			return fmt.Errorf("arguments are not valid JSON: %w", err)
		}
	}
	if err := v.resolved.Validate(instance); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func decodeSchema(params any) (map[string]any, error) {
	m := map[string]any{}
	if params == nil {
		return m, nil
	}
	buf, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(buf, &m); err != nil {
		return nil, err
	}
	// A "null" schema leaves m nil.
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

func fillPropertyTypes(schema map[string]any) {
	props, _ := schema["properties"].(map[string]any)
	for _, v := range props {
		prop, ok := v.(map[string]any)
		if !ok {
			continue
		}
		if prop["type"] == nil {
			prop["type"] = "object"
		}
		fillPropertyTypes(prop)
		if items, ok := prop["items"].(map[string]any); ok {
			fillPropertyTypes(items)
		}
	}
}
