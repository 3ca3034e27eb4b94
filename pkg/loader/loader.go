// Package loader turns a configuration into a ready-to-run orchestrator:
// tools, agents, stages and cache wiring.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.opentelemetry.io/otel/trace"

	"github.com/docker/briefing/pkg/agent"
	anthropicagent "github.com/docker/briefing/pkg/agent/anthropic"
	"github.com/docker/briefing/pkg/cache"
	"github.com/docker/briefing/pkg/config"
	"github.com/docker/briefing/pkg/pipeline"
	"github.com/docker/briefing/pkg/tools"
	"github.com/docker/briefing/pkg/toolserver"
)

// AgentFactory builds the agent of one stage.
type AgentFactory func(stage string, model string, set *tools.Set) (agent.Agent, error)

type loadOptions struct {
	store          cache.Store
	metrics        *pipeline.Metrics
	tracerProvider trace.TracerProvider
	httpClient     *http.Client
	apiKey         string
	agentFactory   AgentFactory
	logger         *slog.Logger
}

type Opt func(*loadOptions)

// WithStore sets the cache shared by every orchestrator built from it.
func WithStore(store cache.Store) Opt {
	return func(o *loadOptions) {
		o.store = store
	}
}

func WithMetrics(m *pipeline.Metrics) Opt {
	return func(o *loadOptions) {
		o.metrics = m
	}
}

func WithTracerProvider(tp trace.TracerProvider) Opt {
	return func(o *loadOptions) {
		o.tracerProvider = tp
	}
}

// WithHTTPClient sets the client used for remote tools and the model API.
func WithHTTPClient(c *http.Client) Opt {
	return func(o *loadOptions) {
		o.httpClient = c
	}
}

func WithAPIKey(key string) Opt {
	return func(o *loadOptions) {
		o.apiKey = key
	}
}

// WithAgentFactory replaces the Anthropic agents.
func WithAgentFactory(f AgentFactory) Opt {
	return func(o *loadOptions) {
		o.agentFactory = f
	}
}

func WithLogger(logger *slog.Logger) Opt {
	return func(o *loadOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Load builds an orchestrator from cfg.
func Load(ctx context.Context, cfg *config.Config, opts ...Opt) (*pipeline.Orchestrator, error) {
	lo := loadOptions{
		httpClient: http.DefaultClient,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(&lo)
	}
	if lo.agentFactory == nil {
		lo.agentFactory = anthropicAgents(cfg, &lo)
	}

	set, err := Tools(ctx, cfg, lo.httpClient)
	if err != nil {
		return nil, err
	}
	lo.logger.Debug("Tools loaded", "tools", set.Names())

	gather, err := stage(cfg.Pipeline.Gather, pipeline.GatherStage, pipeline.GatherStageName, cfg.Model.Name, set, lo.agentFactory)
	if err != nil {
		return nil, err
	}
	// The report writer works from the gathered data only.
	report, err := stage(cfg.Pipeline.Report, pipeline.ReportStage, pipeline.ReportStageName, cfg.Model.Name, tools.NewSet(), lo.agentFactory)
	if err != nil {
		return nil, err
	}

	pipelineOpts := []pipeline.Opt{pipeline.WithLogger(lo.logger)}
	if lo.metrics != nil {
		pipelineOpts = append(pipelineOpts, pipeline.WithMetrics(lo.metrics))
	}
	if lo.tracerProvider != nil {
		pipelineOpts = append(pipelineOpts, pipeline.WithTracerProvider(lo.tracerProvider))
	}

	return pipeline.New(gather, report, lo.store, pipelineOpts...)
}

// Tools builds the gatherer's tool set: fixtures first, then remote tools,
// each wrapped with the configured retry policy.
func Tools(_ context.Context, cfg *config.Config, client *http.Client) (*tools.Set, error) {
	var ts []tools.Tool

	if cfg.Tools.Fixtures != "" {
		fixtures, err := toolserver.LoadFixtures(cfg.Tools.Fixtures)
		if err != nil {
			return nil, err
		}
		ts = append(ts, fixtures.Tools()...)
	}

	policy := cfg.Tools.Retry.Policy()
	for _, r := range cfg.Tools.Remote {
		t, err := tools.Remote(r.Definition(), client)
		if err != nil {
			return nil, fmt.Errorf("loading remote tool: %w", err)
		}
		ts = append(ts, tools.WithRetry(t, policy))
	}

	return tools.NewSet(ts...), nil
}

func stage(sc config.StageConfig, base func(agent.Agent) pipeline.Stage, name, model string, set *tools.Set, factory AgentFactory) (pipeline.Stage, error) {
	if sc.Model != "" {
		model = sc.Model
	}
	a, err := factory(name, model, set)
	if err != nil {
		return pipeline.Stage{}, fmt.Errorf("creating %s agent: %w", name, err)
	}

	st := base(a)
	if sc.Instructions != "" {
		st.Instructions = sc.Instructions
	}
	st.Timeout = sc.Timeout
	return st, nil
}

func anthropicAgents(cfg *config.Config, lo *loadOptions) AgentFactory {
	return func(stage, model string, set *tools.Set) (agent.Agent, error) {
		if lo.apiKey == "" && cfg.Model.BaseURL == "" {
			return nil, errors.New("ANTHROPIC_API_KEY is not set")
		}

		clientOpts := []option.RequestOption{
			option.WithAPIKey(lo.apiKey),
			option.WithHTTPClient(lo.httpClient),
		}
		if cfg.Model.BaseURL != "" {
			clientOpts = append(clientOpts, option.WithBaseURL(cfg.Model.BaseURL))
		}

		return anthropicagent.New(anthropic.NewClient(clientOpts...),
			anthropicagent.WithModel(model),
			anthropicagent.WithMaxTokens(cfg.Model.MaxTokens),
			anthropicagent.WithMaxTurns(cfg.Model.MaxTurns),
			anthropicagent.WithThinkingBudget(cfg.Model.ThinkingBudget),
			anthropicagent.WithTools(set),
			anthropicagent.WithToolConcurrency(cfg.Tools.Concurrency),
			anthropicagent.WithLogger(lo.logger.With("stage", stage)),
		), nil
	}
}
