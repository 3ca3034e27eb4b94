package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RemoteDefinition declares a tool served over HTTP by a tool server.
type RemoteDefinition struct {
	Name        string            `json:"name" yaml:"name"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	URL         string            `json:"url" yaml:"url"`
	Parameters  map[string]any    `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Headers     map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Timeout     time.Duration     `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// CallToolRequest is the body posted to a tool server.
type CallToolRequest struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON-encoded arguments
}

// CallToolResponse is the body returned by a tool server.
type CallToolResponse struct {
	Output  string `json:"output"`
	IsError bool   `json:"isError,omitempty"`
}

// ErrorResponse is returned by a tool server on non-2xx statuses.
type ErrorResponse struct {
	Error string `json:"error"`
}

const defaultRemoteTimeout = 30 * time.Second

// Remote builds a Tool that forwards calls to def.URL. Client errors (4xx)
// are permanent; server errors and transport failures may be retried.
func Remote(def RemoteDefinition, client *http.Client) (Tool, error) {
	if def.Name == "" {
		return Tool{}, errors.New("remote tool requires a name")
	}
	if def.URL == "" {
		return Tool{}, fmt.Errorf("remote tool %q requires a url", def.Name)
	}
	if client == nil {
		client = http.DefaultClient
	}
	timeout := def.Timeout
	if timeout <= 0 {
		timeout = defaultRemoteTimeout
	}

	params, err := SchemaToMap(def.Parameters)
	if err != nil {
		return Tool{}, fmt.Errorf("remote tool %q: invalid parameters schema: %w", def.Name, err)
	}
	validator, err := CompileSchema(def.Parameters)
	if err != nil {
		return Tool{}, fmt.Errorf("remote tool %q: %w", def.Name, err)
	}

	handler := func(ctx context.Context, args json.RawMessage) (any, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if err := validator.Validate(args); err != nil {
			return nil, Permanent(err)
		}
		if len(args) == 0 {
			args = json.RawMessage("{}")
		}
		body, err := json.Marshal(CallToolRequest{Name: def.Name, Arguments: string(args)})
		if err != nil {
			return nil, Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, def.URL, bytes.NewReader(body))
		if err != nil {
			return nil, Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range def.Headers {
			req.Header.Set(k, v)
		}

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("calling %s: %w", def.Name, err)
		}
		defer resp.Body.Close()

		buf, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		if err != nil {
			return nil, fmt.Errorf("reading %s response: %w", def.Name, err)
		}

		if resp.StatusCode >= 300 {
			var errResp ErrorResponse
			msg := string(bytes.TrimSpace(buf))
			if json.Unmarshal(buf, &errResp) == nil && errResp.Error != "" {
				msg = errResp.Error
			}
			err := fmt.Errorf("%s returned %d: %s", def.Name, resp.StatusCode, msg)
			if resp.StatusCode < 500 {
				return nil, Permanent(err)
			}
			return nil, err
		}

		var out CallToolResponse
		if err := json.Unmarshal(buf, &out); err != nil {
			return nil, Permanent(fmt.Errorf("decoding %s response: %w", def.Name, err))
		}
		if out.IsError {
			return nil, Permanent(errors.New(out.Output))
		}
		return out.Output, nil
	}

	return Tool{
		Name:        def.Name,
		Description: def.Description,
		Parameters:  params,
		Handler:     handler,
	}, nil
}
