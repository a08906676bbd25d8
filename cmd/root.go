// Package cmd is the novelhub command line.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cppla/novelhub/config"
	"github.com/cppla/novelhub/utils"
)

var (
	portFlag    string
	ginModeFlag string
)

var rootCmd = &cobra.Command{
	Use:   "novelhub",
	Short: "novelhub serves the novel reading and publishing API",
	Long: `novelhub serves the novel reading and publishing API.

Run without a subcommand to start the HTTP server. Configuration comes from
config/config.json, an optional .env file and environment variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		if portFlag != "" {
			cfg.AppPort = portFlag
		}
		if ginModeFlag != "" {
			cfg.GinMode = ginModeFlag
		}
		config.Override(cfg)

		if err := utils.InitLogger(cfg); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if utils.Logger != nil {
			_ = utils.Logger.Sync()
		}
	},
	RunE: runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&portFlag, "port", "", "HTTP port (overrides APP_PORT)")
	rootCmd.PersistentFlags().StringVar(&ginModeFlag, "gin-mode", "", "gin mode: debug, test or release")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(migrateCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
