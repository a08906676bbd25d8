package cmd

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cppla/novelhub/config"
	"github.com/cppla/novelhub/models"
	"github.com/cppla/novelhub/routes"
	"github.com/cppla/novelhub/utils"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := config.Get()
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db := config.InitDatabase(models.All()...)
	rc := utils.InitRedis(cfg)
	if rc != nil {
		defer rc.Close()
	}

	if cfg.CronSecret == "" {
		utils.Sugar.Warn("CRON_SECRET is empty, /api/v1/cron/publish accepts unauthenticated calls")
	}

	a := newApp(cfg, db, rc)
	r := routes.SetupRouter(a.dependencies())

	var wg sync.WaitGroup
	if cfg.SweepInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.sweeper.Run(ctx, cfg.SweepInterval, nil)
		}()
		utils.Sugar.Infof("in-process publish sweep every %s", cfg.SweepInterval)
	}

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	err := utils.GraceServer(ctx, ":"+cfg.AppPort, r)
	stop()
	wg.Wait()
	if err != nil {
		utils.Sugar.Errorf("server stopped with error: %v", err)
	}
	return err
}
