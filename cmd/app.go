package cmd

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/cppla/novelhub/config"
	"github.com/cppla/novelhub/metrics"
	"github.com/cppla/novelhub/routes"
	"github.com/cppla/novelhub/services"
	"github.com/cppla/novelhub/store"
	"github.com/cppla/novelhub/utils"
)

// app holds the wired services shared by the subcommands.
type app struct {
	content  *store.ContentStore
	views    *services.ViewService
	sweeper  *services.Sweeper
	registry *prometheus.Registry
}

// newApp wires the services. rc may be nil, in which case view de-duplication is per process.
func newApp(cfg config.AppConfig, db *gorm.DB, rc *redis.Client) *app {
	a := &app{content: store.NewContentStore(db)}

	var recorder metrics.Recorder = metrics.Nop{}
	if cfg.MetricsEnabled {
		a.registry = prometheus.NewRegistry()
		a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		recorder = metrics.NewCollector(a.registry)
	}

	var deduper services.Deduper = services.NewMemoryDeduper()
	if rc != nil {
		deduper = services.NewRedisDeduper(rc)
	}

	a.views = services.NewViewService(a.content,
		services.NewViewTokenCodec(cfg.ViewTokenSecret, cfg.ViewLocation()),
		services.WithDeduper(deduper),
		services.WithViewMetrics(recorder),
		services.WithViewLogger(utils.L().Named("views")),
	)
	a.sweeper = services.NewSweeper(a.content,
		services.WithSecret(cfg.CronSecret),
		services.WithBatchSize(cfg.SweepBatchSize),
		services.WithSweepMetrics(recorder),
		services.WithSweepLogger(utils.L().Named("sweeper")),
	)
	return a
}

func (a *app) dependencies() routes.Dependencies {
	deps := routes.Dependencies{
		Content: a.content,
		Views:   a.views,
		Sweeper: a.sweeper,
	}
	if a.registry != nil {
		deps.Gatherer = a.registry
	}
	return deps
}
