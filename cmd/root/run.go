package root

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/docker/briefing/pkg/contextutil"
	"github.com/docker/briefing/pkg/pipeline"
	"github.com/docker/briefing/pkg/stream"
)

type runFlags struct {
	configFlags
	aspects  []string
	threadID string
	json     bool
}

func newRunCmd() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run <topic>",
		Short: "Run the pipeline once and stream its events",
		Example: `  briefing run "Compare Player A and Player B" --aspects career_stats,recent_form
  briefing run "Player A" --fixtures ./fixtures.yaml --json`,
		GroupID: "core",
		Args:    cobra.MinimumNArgs(1),
		RunE:    flags.runRunCommand,
	}

	addConfigFlags(cmd, &flags.configFlags)
	cmd.Flags().StringSliceVar(&flags.aspects, "aspects", nil, "Aspects to cover (comma-separated)")
	cmd.Flags().StringVar(&flags.threadID, "thread-id", "", "Session id to tag events with")
	cmd.Flags().BoolVar(&flags.json, "json", false, "Print one JSON object per event instead of server-sent events")

	return cmd
}

func (f *runFlags) runRunCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := f.load()
	if err != nil {
		return err
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	tp, stopTracing, err := setupTracing(ctx, cfg)
	if err != nil {
		return err
	}
	defer stopTracing()

	rt, err := buildRuntime(ctx, cfg, runtimeDeps{store: store, tracer: tp})
	if err != nil {
		return err
	}

	var sink stream.Sink = stream.NewSSEWriter(cmd.OutOrStdout())
	if f.json {
		sink = stream.NewJSONLinesWriter(cmd.OutOrStdout())
	}

	var failure string
	watched := stream.SinkFunc(func(ev stream.ExternalEvent) error {
		if ev.Type == stream.TypeError {
			failure = fmt.Sprint(ev.Data["message"])
		}
		return sink.Send(ev)
	})

	req := pipeline.NewRequest(strings.Join(args, " "), f.aspects, rt.DefaultAspects)
	translator := stream.NewTranslator(f.threadID)
	ctx = contextutil.WithSessionID(ctx, translator.SessionID())
	if err := translator.Run(ctx, rt.Orchestrator.Run(ctx, req), watched); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if failure != "" {
		return fmt.Errorf("report failed: %s", failure)
	}
	return nil
}
