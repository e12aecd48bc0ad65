package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/codeturn-ai/opencode/internal/config"
	"github.com/codeturn-ai/opencode/internal/sessionstore"
	"github.com/codeturn-ai/opencode/pkg/types"
)

var (
	sessionsDir  string
	sessionsJSON bool
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage stored sessions",
}

func workspaceStore(dir string) (*sessionstore.Store, error) {
	workDir, err := GetWorkDir(dir)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(workDir)
	if err != nil {
		return nil, err
	}
	return sessionstore.New(cfg.Storage.SessionDir), nil
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions for the current workspace",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := workspaceStore(sessionsDir)
		if err != nil {
			return err
		}
		listings, err := store.List()
		if err != nil {
			return err
		}

		if sessionsJSON {
			return json.NewEncoder(os.Stdout).Encode(listings)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tUPDATED\tTITLE")
		for _, l := range listings {
			fmt.Fprintf(w, "%s\t%s\t%s\n", l.ID, l.Updated.Format(time.RFC3339), l.Title)
		}
		return w.Flush()
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show a session's messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := workspaceStore(sessionsDir)
		if err != nil {
			return err
		}
		id, err := types.ParseSessionID(args[0])
		if err != nil {
			return fmt.Errorf("bad session id %q: %w", args[0], err)
		}
		sess, err := store.Load(id)
		if err != nil {
			return err
		}

		fmt.Printf("Session: %s\nTitle:   %s\nCreated: %s\n\n",
			sess.ID, sess.Title(), sess.CreatedAt.Format(time.RFC3339))

		for _, msg := range sess.Messages {
			label := string(msg.Role)
			if msg.Role == types.RoleTool && msg.Meta != nil {
				label = "tool:" + msg.Meta.ToolName
			}
			fmt.Printf("[%s] %s\n", label, msg.Content)
		}
		return nil
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := workspaceStore(sessionsDir)
		if err != nil {
			return err
		}
		id, err := types.ParseSessionID(args[0])
		if err != nil {
			return fmt.Errorf("bad session id %q: %w", args[0], err)
		}
		// Deleting an absent session is a no-op, not a failure.
		if err := store.Delete(id); err != nil {
			return err
		}
		fmt.Printf("Deleted session %s\n", id)
		return nil
	},
}

func init() {
	sessionsCmd.PersistentFlags().StringVar(&sessionsDir, "directory", "", "Workspace directory")
	sessionsListCmd.Flags().BoolVar(&sessionsJSON, "json", false, "Emit the listing as JSON")

	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
}
