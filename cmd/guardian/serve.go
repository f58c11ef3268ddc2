package main

import (
	"github.com/spf13/cobra"

	"privacy-guardian/internal/management"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the privileged side and the management API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		if port, _ := cmd.Flags().GetInt("port"); port != 0 {
			cfg.ManagementPort = port
		}
		printBanner(cfg)

		rt, err := newRuntime(cfg)
		if err != nil {
			return err
		}
		defer rt.Close()

		mgmt := management.New(cfg, rt.store, rt.router, rt.metrics, rt.log.With("MANAGEMENT"))
		// Returns once SIGINT or SIGTERM cancels the command context.
		if err := mgmt.ListenAndServe(cmd.Context()); err != nil {
			return err
		}
		rt.log.Info("shutdown", "stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Int("port", 0, "Management API port (overrides config)")
}
