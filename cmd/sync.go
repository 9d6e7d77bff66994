package cmd

import (
	"github.com/spf13/cobra"

	"github.com/marcus/fin/internal/output"
	finsync "github.com/marcus/fin/internal/sync"
	"github.com/marcus/fin/internal/syncclient"
	"github.com/marcus/fin/internal/syncconfig"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	Short:   "Push queued edits and pull changes from the server",
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, userID, err := openLocal()
		if err != nil {
			return err
		}
		defer store.Close()

		client := syncclient.New(syncconfig.GetServerURL())
		session := finsync.NewSession(store, client, userID)

		res, err := session.Run()
		if err != nil {
			output.Error("sync failed: %v", err)
			return err
		}

		output.Success("sync complete")
		output.Info("pushed %d, accepted %d, pulled %d (cursor %d)",
			res.Pushed, res.Accepted, res.Pulled, res.NewCursor)
		if dropped := res.Pushed - res.Accepted; dropped > 0 {
			output.Warning("%d edit(s) superseded by newer changes from another device", dropped)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
