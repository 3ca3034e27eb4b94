package root

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"

	"github.com/docker/briefing/pkg/cache"
	_ "github.com/docker/briefing/pkg/cache/filestore"
	_ "github.com/docker/briefing/pkg/cache/sqlite"
	_ "github.com/docker/briefing/pkg/cache/ttl"
	"github.com/docker/briefing/pkg/config"
	"github.com/docker/briefing/pkg/loader"
	"github.com/docker/briefing/pkg/pipeline"
	"github.com/docker/briefing/pkg/server"
	"github.com/docker/briefing/pkg/telemetry"
)

type configFlags struct {
	path     string
	fixtures string
	model    string
}

func addConfigFlags(cmd *cobra.Command, flags *configFlags) {
	cmd.PersistentFlags().StringVarP(&flags.path, "config", "c", "", "Path to the configuration file")
	cmd.PersistentFlags().StringVar(&flags.fixtures, "fixtures", "", "Serve canned tools from a fixtures file")
	cmd.PersistentFlags().StringVar(&flags.model, "model", "", "Model used by both stages")
}

func (f *configFlags) load() (*config.Config, error) {
	cfg := config.Default()
	if f.path != "" {
		var err error
		if cfg, err = config.Load(f.path); err != nil {
			return nil, err
		}
	}
	f.apply(cfg)
	return cfg, nil
}

// apply lets flags override the file, including on reload.
func (f *configFlags) apply(cfg *config.Config) {
	if f.fixtures != "" {
		cfg.Tools.Fixtures = f.fixtures
	}
	if f.model != "" {
		cfg.Model.Name = f.model
	}
}

func openStore(ctx context.Context, cfg *config.Config) (cache.Store, error) {
	store, err := cache.New(ctx, cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("opening %s cache: %w", cfg.Cache.Kind, err)
	}
	slog.Debug("Cache opened", "kind", cfg.Cache.Kind, "path", cfg.Cache.Path)
	return store, nil
}

// setupTracing starts the span exporter. The returned stop function flushes
// it and never fails the command.
func setupTracing(ctx context.Context, cfg *config.Config) (*telemetry.TracerProvider, func(), error) {
	tp, err := telemetry.NewTracerProvider(ctx, cfg.Tracing)
	if err != nil {
		return nil, nil, err
	}
	return tp, func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Failed to flush traces", "error", err)
		}
	}, nil
}

type runtimeDeps struct {
	store   cache.Store
	metrics *pipeline.Metrics
	tracer  trace.TracerProvider
}

func buildRuntime(ctx context.Context, cfg *config.Config, deps runtimeDeps) (*server.Runtime, error) {
	o, err := loader.Load(ctx, cfg,
		loader.WithStore(deps.store),
		loader.WithMetrics(deps.metrics),
		loader.WithTracerProvider(deps.tracer),
		loader.WithAPIKey(os.Getenv("ANTHROPIC_API_KEY")),
		loader.WithLogger(slog.Default()),
	)
	if err != nil {
		return nil, err
	}
	return &server.Runtime{Orchestrator: o, DefaultAspects: cfg.Pipeline.DefaultAspects}, nil
}
