package root

import (
	"context"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
)

type rootFlags struct {
	debug bool
}

func NewRootCmd() *cobra.Command {
	var flags rootFlags

	cmd := &cobra.Command{
		Use:   "briefing",
		Short: "Gather data and write analytical reports with agents",
		Long: `briefing runs a two-stage agent pipeline: a gatherer collects data with tools,
then a writer turns it into a report. Results are cached by topic and aspects.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			setupLogging(cmd.ErrOrStderr(), flags.debug)
		},
	}

	cmd.PersistentFlags().BoolVarP(&flags.debug, "debug", "d", false, "Enable debug logging")

	cmd.AddGroup(
		&cobra.Group{ID: "core", Title: "Core Commands:"},
		&cobra.Group{ID: "server", Title: "Server Commands:"},
	)
	cmd.AddCommand(
		newRunCmd(),
		newServeCmd(),
		newSessionsCmd(),
		newToolServerCmd(),
		newVersionCmd(),
	)

	return cmd
}

func Execute(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, args ...string) error {
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	return cmd.ExecuteContext(ctx)
}

func setupLogging(w io.Writer, debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}
