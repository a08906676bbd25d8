package cmd

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/novelhub/config"
	"github.com/cppla/novelhub/models"
	"github.com/cppla/novelhub/services"
	"github.com/cppla/novelhub/store/storetest"
)

func TestNewApp_MetricsAndRedisDedupe(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })

	db := storetest.NewSQLite(t)
	author := storetest.SeedUser(t, db, "author", models.RoleAuthor)
	novel := storetest.SeedNovel(t, db, author.ID, "Book", 0)

	cfg := config.AppConfig{JWTSecret: "app", ViewTimezone: "UTC", MetricsEnabled: true, CronSecret: "c"}
	config.Override(cfg)
	a := newApp(config.Get(), db, rc)

	deps := a.dependencies()
	require.NotNil(t, deps.Gatherer)

	res := a.views.RecordView(context.Background(), models.NovelRef(novel.ID), services.Visit{Fingerprint: "fp"})
	assert.True(t, res.Counted())
	assert.NotEmpty(t, mr.Keys(), "view claim should live in redis")

	families, err := deps.Gatherer.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["novelhub_views_total"])
	assert.True(t, names["go_goroutines"])

	assert.Error(t, a.sweeper.Authorize(""))
	assert.NoError(t, a.sweeper.Authorize("Bearer c"))
}

func TestNewApp_WithoutMetrics(t *testing.T) {
	db := storetest.NewSQLite(t)
	author := storetest.SeedUser(t, db, "author", models.RoleAuthor)
	novel := storetest.SeedNovel(t, db, author.ID, "Book", 0)
	ch := storetest.SeedChapter(t, db, novel.ID, 1, models.ChapterScheduled, storetest.Ptr(time.Now().Add(-time.Minute)))

	config.Override(config.AppConfig{JWTSecret: "app"})
	a := newApp(config.Get(), db, nil)
	assert.Nil(t, a.dependencies().Gatherer)

	res, err := a.sweeper.Sweep(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, []uint{ch.ID}, res.PublishedIDs)
}
