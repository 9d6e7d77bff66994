package cmd

import (
	"github.com/spf13/cobra"

	"github.com/marcus/fin/internal/output"
	"github.com/marcus/fin/internal/syncclient"
	"github.com/marcus/fin/internal/syncconfig"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Show sync state: cursor, outbox depth, server reachability",
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		store, userID, err := openLocal()
		if err != nil {
			return err
		}
		defer store.Close()

		cursor, err := store.LastCursor()
		if err != nil {
			return err
		}
		pending, err := store.CountPending()
		if err != nil {
			return err
		}

		serverURL := syncconfig.GetServerURL()
		client := syncclient.New(serverURL)
		client.MaxRetries = 0
		serverStatus := "unreachable"
		if _, err := client.HealthCheck(); err == nil {
			serverStatus = "ok"
		}

		if asJSON {
			return output.JSON(map[string]any{
				"user_id":     userID,
				"server_url":  serverURL,
				"server":      serverStatus,
				"last_cursor": cursor,
				"pending":     pending,
			})
		}

		output.Info("user:        %s", userID)
		output.Info("server:      %s (%s)", serverURL, serverStatus)
		output.Info("last cursor: %d", cursor)
		if pending > 0 {
			output.Warning("%d edit(s) waiting for sync", pending)
		} else {
			output.Info("outbox:      empty")
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().Bool("json", false, "print status as JSON")
	rootCmd.AddCommand(statusCmd)
}
