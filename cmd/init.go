package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marcus/fin/internal/localdb"
	"github.com/marcus/fin/internal/output"
	"github.com/marcus/fin/internal/syncclient"
	"github.com/marcus/fin/internal/syncconfig"
)

var initCmd = &cobra.Command{
	Use:     "init",
	Short:   "Configure the user and server, and create the local database",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		server, _ := cmd.Flags().GetString("server")

		cfg, err := syncconfig.Load()
		if err != nil {
			return err
		}
		if user != "" {
			cfg.UserID = user
		}
		if server != "" {
			cfg.ServerURL = server
		}
		if cfg.UserID == "" {
			return fmt.Errorf("--user is required on first init")
		}
		if cfg.DeviceID == "" {
			id, err := syncconfig.GenerateDeviceID()
			if err != nil {
				return err
			}
			cfg.DeviceID = id
		}
		if err := syncconfig.Save(cfg); err != nil {
			return err
		}

		path, err := syncconfig.LocalDBPath(cfg.UserID)
		if err != nil {
			return err
		}
		store, err := localdb.Open(path)
		if err != nil {
			return err
		}
		defer store.Close()

		output.Success("initialized local database at %s", path)
		output.Info("user: %s", cfg.UserID)
		output.Info("server: %s", cfg.ServerURL)

		client := syncclient.New(cfg.ServerURL)
		client.MaxRetries = 0
		if _, err := client.HealthCheck(); err != nil {
			output.Warning("server not reachable: %v", err)
		} else {
			output.Info("server: ok")
		}
		return nil
	},
}

func init() {
	initCmd.Flags().String("user", "", "user id to sync as")
	initCmd.Flags().String("server", "", "sync server base URL")
	rootCmd.AddCommand(initCmd)
}
