package root

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/docker/briefing/pkg/server"
	"github.com/docker/briefing/pkg/toolserver"
)

type toolserverFlags struct {
	listenAddr string
}

func newToolServerCmd() *cobra.Command {
	var flags toolserverFlags

	cmd := &cobra.Command{
		Use:   "tool-server <fixtures-file>",
		Short: "Start a lightweight server exposing tools for remote invocation",
		Long:  `Start a minimal HTTP server that serves the tools of a fixtures file, for use as remote tools.`,
		Example: `  # Start tool server on default port
  briefing tool-server ./fixtures.yaml

  # Listen on a Unix socket
  briefing tool-server ./fixtures.yaml --listen unix:///var/run/briefing-tools.sock

  # Call a tool using curl
  curl -X POST http://localhost:9090/tools/career_stats \
    -H "Content-Type: application/json" \
    -d '{"arguments": "{\"player\": \"Player A\"}"}'`,
		GroupID: "server",
		Args:    cobra.ExactArgs(1),
		RunE:    flags.runToolServerCommand,
	}

	cmd.PersistentFlags().StringVarP(&flags.listenAddr, "listen", "l", ":9090", "Address to listen on (host:port or unix:///path/to/socket)")

	return cmd
}

func (f *toolserverFlags) runToolServerCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	set, err := toolserver.LoadFixtures(args[0])
	if err != nil {
		return err
	}

	ln, err := server.Listen(ctx, f.listenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", f.listenAddr, err)
	}
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	fmt.Fprintln(cmd.OutOrStdout(), "Listening on "+ln.Addr().String())

	return toolserver.New(set, slog.Default()).Serve(ctx, ln)
}
