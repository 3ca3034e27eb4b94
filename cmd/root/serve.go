package root

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/docker/briefing/pkg/config"
	"github.com/docker/briefing/pkg/pipeline"
	"github.com/docker/briefing/pkg/server"
	"github.com/docker/briefing/pkg/session"
)

type serveFlags struct {
	configFlags
	listenAddr string
	noWatch    bool
}

func newServeCmd() *cobra.Command {
	var flags serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the report server",
		Long:  `Start an HTTP server that streams report runs as server-sent events.`,
		Example: `  # Start with defaults
  briefing serve

  # Listen on a Unix socket
  briefing serve --listen unix:///var/run/briefing.sock

  # Request a report
  curl -N -X POST http://localhost:8080/api/reports \
    -H "Content-Type: application/json" \
    -d '{"topic": "Compare Player A and Player B"}'`,
		GroupID: "server",
		Args:    cobra.NoArgs,
		RunE:    flags.runServeCommand,
	}

	addConfigFlags(cmd, &flags.configFlags)
	cmd.Flags().StringVarP(&flags.listenAddr, "listen", "l", "", "Address to listen on (host:port or unix:///path/to/socket)")
	cmd.Flags().BoolVar(&flags.noWatch, "no-watch", false, "Do not reload the configuration file when it changes")

	return cmd
}

func (f *serveFlags) runServeCommand(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := f.load()
	if err != nil {
		return err
	}
	if f.listenAddr != "" {
		cfg.Server.Listen = f.listenAddr
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := pipeline.MustNewMetrics(reg)

	tp, stopTracing, err := setupTracing(ctx, cfg)
	if err != nil {
		return err
	}
	defer stopTracing()

	deps := runtimeDeps{store: store, metrics: metrics, tracer: tp}
	rt, err := buildRuntime(ctx, cfg, deps)
	if err != nil {
		return err
	}

	srv, err := server.New(rt, session.NewMemoryStore(),
		server.WithGatherer(reg),
		server.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		server.WithLogger(slog.Default()),
	)
	if err != nil {
		return err
	}

	if f.path != "" && !f.noWatch {
		watcher, err := config.NewWatcher(f.path)
		if err != nil {
			return err
		}
		defer watcher.Close()
		watcher.Start(ctx)

		go f.reload(ctx, watcher, srv, cfg, func(next *config.Config) (*server.Runtime, error) {
			return buildRuntime(ctx, next, deps)
		})
	}

	ln, err := server.Listen(ctx, cfg.Server.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Server.Listen, err)
	}
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	fmt.Fprintln(cmd.OutOrStdout(), "Listening on "+ln.Addr().String())

	return srv.Serve(ctx, ln)
}

// reload swaps the server runtime on every valid configuration change. The
// cache and listener are kept; changing them requires a restart.
func (f *serveFlags) reload(ctx context.Context, w *config.Watcher, srv *server.Server, current *config.Config, build func(*config.Config) (*server.Runtime, error)) {
	for r := range w.Reloads() {
		if r.Err != nil {
			slog.Error("Ignoring invalid configuration", "path", r.Path, "error", r.Err)
			continue
		}

		next := r.Config
		f.apply(next)
		if next.Cache != current.Cache || next.Server != current.Server || next.Tracing != current.Tracing {
			slog.Warn("Cache, server and tracing settings only apply after a restart", "path", r.Path)
		}

		rt, err := build(next)
		if err != nil {
			slog.Error("Failed to apply configuration", "path", r.Path, "error", err)
			continue
		}
		srv.Swap(rt)

		if ctx.Err() != nil {
			return
		}
	}
}
