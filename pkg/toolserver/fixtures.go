package toolserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/docker/briefing/pkg/tools"
)

// Fixtures describes canned tools, used to run the pipeline against
// predictable data sources.
type Fixtures struct {
	Tools []Fixture `yaml:"tools"`
}

// Fixture is one canned tool. It answers every call with Output, or fails
// with Error when set, after waiting Delay. Calls whose arguments do not
// match Parameters fail without waiting.
type Fixture struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description,omitempty"`
	Parameters  map[string]any `yaml:"parameters,omitempty"`
	Output      any            `yaml:"output,omitempty"`
	Error       string         `yaml:"error,omitempty"`
	Delay       time.Duration  `yaml:"delay,omitempty"`
}

// LoadFixtures reads a fixtures file.
func LoadFixtures(path string) (*tools.Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fixtures: %w", err)
	}
	return ParseFixtures(data)
}

// ParseFixtures builds a tool set from YAML fixtures. Unknown fields are
// rejected.
func ParseFixtures(data []byte) (*tools.Set, error) {
	var f Fixtures
	if err := yaml.UnmarshalWithOptions(data, &f, yaml.DisallowUnknownField()); err != nil {
		return nil, fmt.Errorf("parsing fixtures:\n%s", yaml.FormatError(err, false, true))
	}

	seen := make(map[string]bool, len(f.Tools))
	ts := make([]tools.Tool, 0, len(f.Tools))
	for i, fx := range f.Tools {
		if fx.Name == "" {
			return nil, fmt.Errorf("fixture %d has no name", i)
		}
		if seen[fx.Name] {
			return nil, fmt.Errorf("duplicate fixture %q", fx.Name)
		}
		seen[fx.Name] = true

		t, err := fx.tool()
		if err != nil {
			return nil, err
		}
		ts = append(ts, t)
	}
	return tools.NewSet(ts...), nil
}

func (fx Fixture) tool() (tools.Tool, error) {
	params, err := tools.SchemaToMap(fx.Parameters)
	if err != nil {
		return tools.Tool{}, fmt.Errorf("fixture %q: %w", fx.Name, err)
	}
	validator, err := tools.CompileSchema(fx.Parameters)
	if err != nil {
		return tools.Tool{}, fmt.Errorf("fixture %q: %w", fx.Name, err)
	}

	var output any = fx.Output
	if _, ok := fx.Output.(string); !ok {
		encoded, err := json.Marshal(fx.Output)
		if err != nil {
			return tools.Tool{}, fmt.Errorf("fixture %q: encoding output: %w", fx.Name, err)
		}
		output = json.RawMessage(encoded)
	}

	return tools.Tool{
		Name:        fx.Name,
		Description: fx.Description,
		Parameters:  params,
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			if err := validator.Validate(args); err != nil {
				return nil, err
			}
			if fx.Delay > 0 {
				select {
				case <-time.After(fx.Delay):
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			}
			if fx.Error != "" {
				return nil, errors.New(fx.Error)
			}
			return output, nil
		},
	}, nil
}
