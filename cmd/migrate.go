package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cppla/novelhub/config"
	"github.com/cppla/novelhub/models"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		config.InitDatabase(models.All()...)
		fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
		return nil
	},
}
