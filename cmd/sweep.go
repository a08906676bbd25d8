package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cppla/novelhub/config"
	"github.com/cppla/novelhub/models"
)

var sweepAt string

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Publish every scheduled chapter that is due, once",
	Long: `Publish every scheduled chapter whose scheduled time has passed and print
{"publishedCount":N,"publishedIds":[...]}. Suitable for a crontab entry.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		now := time.Now()
		if sweepAt != "" {
			t, err := time.Parse(time.RFC3339, sweepAt)
			if err != nil {
				return fmt.Errorf("--at: %w", err)
			}
			now = t
		}

		cfg := config.Get()
		db := config.InitDatabase(models.All()...)
		a := newApp(cfg, db, nil)

		res, err := a.sweeper.Sweep(cmd.Context(), now)
		if err != nil {
			return err
		}
		out, err := json.Marshal(res)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	sweepCmd.Flags().StringVar(&sweepAt, "at", "", "sweep as of this RFC3339 instant instead of now")
}
