package root

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/docker/briefing/pkg/humanize"
	"github.com/docker/briefing/pkg/session"
)

type sessionsFlags struct {
	serverURL string
	userID    string
}

func newSessionsCmd() *cobra.Command {
	var flags sessionsFlags

	cmd := &cobra.Command{
		Use:     "sessions",
		Short:   "List the sessions of a running server",
		GroupID: "server",
		Args:    cobra.NoArgs,
		RunE:    flags.runSessionsCommand,
	}

	cmd.Flags().StringVar(&flags.serverURL, "server", "http://127.0.0.1:8080", "Base URL of the report server")
	cmd.Flags().StringVar(&flags.userID, "user", "", "Only list sessions of this user")

	return cmd
}

func (f *sessionsFlags) runSessionsCommand(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	u := strings.TrimSuffix(f.serverURL, "/") + "/api/sessions"
	if f.userID != "" {
		u += "?user_id=" + url.QueryEscape(f.userID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("listing sessions: server returned %s", resp.Status)
	}

	var sessions []session.Session
	if err := json.NewDecoder(resp.Body).Decode(&sessions); err != nil {
		return fmt.Errorf("decoding sessions: %w", err)
	}

	now := time.Now()
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSER\tRUNS\tLAST OUTCOME\tUPDATED")
	for _, s := range sessions {
		outcome := "-"
		if len(s.Runs) > 0 {
			outcome = s.Runs[len(s.Runs)-1].Outcome
		}
		user := s.UserID
		if user == "" {
			user = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", s.ID, user, len(s.Runs), outcome, humanize.Time(s.UpdatedAt, now))
	}
	return w.Flush()
}
