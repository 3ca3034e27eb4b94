// Package anthropic implements agent.Agent on top of the Anthropic Messages
// streaming API, running tool calls requested by the model between turns.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/docker/briefing/pkg/agent"
	"github.com/docker/briefing/pkg/tools"
)

const (
	DefaultModel     = "claude-sonnet-4-5"
	DefaultMaxTokens = 8192
	DefaultMaxTurns  = 8

	minThinkingBudget = 1024
)

type Agent struct {
	client anthropic.Client

	model           string
	maxTokens       int64
	maxTurns        int
	thinkingBudget  int64
	tools           *tools.Set
	toolConcurrency int
	logger          *slog.Logger
}

type Opt func(*Agent)

func WithModel(model string) Opt {
	return func(a *Agent) {
		if model != "" {
			a.model = model
		}
	}
}

func WithMaxTokens(n int64) Opt {
	return func(a *Agent) {
		if n > 0 {
			a.maxTokens = n
		}
	}
}

// WithMaxTurns bounds how many model round trips one invocation may take.
func WithMaxTurns(n int) Opt {
	return func(a *Agent) {
		if n > 0 {
			a.maxTurns = n
		}
	}
}

// WithThinkingBudget enables extended thinking. Budgets below 1024 tokens or
// not below max tokens are ignored.
func WithThinkingBudget(tokens int64) Opt {
	return func(a *Agent) {
		a.thinkingBudget = tokens
	}
}

func WithTools(set *tools.Set) Opt {
	return func(a *Agent) {
		a.tools = set
	}
}

// WithToolConcurrency limits how many tool calls of one turn run at once.
func WithToolConcurrency(n int) Opt {
	return func(a *Agent) {
		a.toolConcurrency = n
	}
}

func WithLogger(logger *slog.Logger) Opt {
	return func(a *Agent) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func New(client anthropic.Client, opts ...Opt) *Agent {
	a := &Agent{
		client:    client,
		model:     DefaultModel,
		maxTokens: DefaultMaxTokens,
		maxTurns:  DefaultMaxTurns,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Agent) Invoke(ctx context.Context, prompt, instructions string) <-chan agent.Event {
	out := make(chan agent.Event)

	go func() {
		defer close(out)
		defer agent.Recover(ctx, out, a.logger)

		if err := a.loop(ctx, prompt, instructions, out); err != nil {
			if ctx.Err() != nil {
				// Guard reports the context failure.
				return
			}
			a.logger.Warn("Agent invocation failed", "model", a.model, "error", err)
			agent.Send(ctx, out, agent.Error(agent.ErrorTypeAgent, err.Error()))
			return
		}
		agent.Send(ctx, out, agent.Completed())
	}()

	return out
}

func (a *Agent) loop(ctx context.Context, prompt, instructions string, out chan<- agent.Event) error {
	toolParams, err := convertTools(a.tools.Tools())
	if err != nil {
		return err
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
		Tools:     toolParams,
	}
	if instructions != "" {
		params.System = []anthropic.TextBlockParam{{Text: instructions}}
	}
	switch {
	case a.thinkingBudget == 0:
	case a.thinkingBudget >= minThinkingBudget && a.thinkingBudget < a.maxTokens:
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(a.thinkingBudget)
	default:
		a.logger.Warn("Ignoring thinking budget", "tokens", a.thinkingBudget, "max_tokens", a.maxTokens)
	}

	for turn := range a.maxTurns {
		a.logger.Debug("Anthropic turn", "model", a.model, "turn", turn, "message_count", len(params.Messages))

		msg, err := a.streamTurn(ctx, params, out)
		if err != nil {
			return err
		}
		params.Messages = append(params.Messages, msg.ToParam())

		calls := toolCalls(msg)
		if msg.StopReason != anthropic.StopReasonToolUse || len(calls) == 0 {
			return nil
		}

		results := tools.CallAll(ctx, a.tools, calls, tools.BatchOptions{
			MaxConcurrency: a.toolConcurrency,
			Hooks: tools.Hooks{
				OnStart:  func(c tools.Call) { agent.Send(ctx, out, agent.ToolCallStarted(c)) },
				OnResult: func(r tools.Result) { agent.Send(ctx, out, agent.ToolResult(r)) },
			},
		})
		if err := ctx.Err(); err != nil {
			return err
		}

		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(results))
		for _, r := range results {
			blocks = append(blocks, anthropic.NewToolResultBlock(r.CallID, r.Output, r.IsError))
		}
		params.Messages = append(params.Messages, anthropic.NewUserMessage(blocks...))
	}

	return fmt.Errorf("agent did not finish within %d turns", a.maxTurns)
}

// streamTurn streams one model response, forwarding text and thinking
// deltas as they arrive, and returns the accumulated message.
func (a *Agent) streamTurn(ctx context.Context, params anthropic.MessageNewParams, out chan<- agent.Event) (anthropic.Message, error) {
	stream := a.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	var msg anthropic.Message
	for stream.Next() {
		ev := stream.Current()
		if err := msg.Accumulate(ev); err != nil {
			return msg, fmt.Errorf("accumulating response: %w", err)
		}

		delta, ok := ev.AsAny().(anthropic.ContentBlockDeltaEvent)
		if !ok {
			continue
		}
		switch d := delta.Delta.AsAny().(type) {
		case anthropic.TextDelta:
			if d.Text != "" && !agent.Send(ctx, out, agent.Content(d.Text)) {
				return msg, ctx.Err()
			}
		case anthropic.ThinkingDelta:
			if d.Thinking != "" && !agent.Send(ctx, out, agent.Thinking(d.Thinking)) {
				return msg, ctx.Err()
			}
		}
	}
	if err := stream.Err(); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return msg, err
		}
		return msg, fmt.Errorf("streaming response: %w", err)
	}
	return msg, nil
}

func toolCalls(msg anthropic.Message) []tools.Call {
	var calls []tools.Call
	for _, block := range msg.Content {
		use, ok := block.AsAny().(anthropic.ToolUseBlock)
		if !ok {
			continue
		}
		args := json.RawMessage(use.Input)
		if len(args) == 0 {
			args = json.RawMessage("{}")
		}
		calls = append(calls, tools.Call{ID: use.ID, Name: use.Name, Arguments: args})
	}
	return calls
}

func convertTools(ts []tools.Tool) ([]anthropic.ToolUnionParam, error) {
	if len(ts) == 0 {
		return nil, nil
	}
	params := make([]anthropic.ToolUnionParam, len(ts))
	for i, t := range ts {
		var schema anthropic.ToolInputSchemaParam
		if err := tools.ConvertSchema(t.Parameters, &schema); err != nil {
			return nil, fmt.Errorf("converting schema of tool %q: %w", t.Name, err)
		}
		params[i] = anthropic.ToolUnionParam{OfTool: &anthropic.ToolParam{
			Name:        t.Name,
			Description: anthropic.String(t.Description),
			InputSchema: schema,
		}}
	}
	return params, nil
}
