package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadJSONConfig_GroupedSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"app": {"AppPort": "9000", "JWTSecret": "s3cret", "AllowedOrigins": ["https://a.example"]},
		"database": {"Driver": "postgres", "DBHost": "db"},
		"views": {"CookieName": "seen", "Timezone": "Asia/Shanghai"},
		"publish": {"CronSecret": "cron", "SweepIntervalSeconds": 30, "SweepBatchSize": 50},
		"metrics": {"Enabled": true},
		"admin": {"Usernames": ["root"]}
	}`), 0o600))

	var c AppConfig
	require.NoError(t, loadJSONConfig(path, &c))
	applyDefaults(&c)

	assert.Equal(t, "9000", c.AppPort)
	assert.Equal(t, "s3cret", c.JWTSecret)
	assert.Equal(t, []string{"https://a.example"}, c.AllowedOrigins)
	assert.Equal(t, "postgres", c.DBDriver)
	assert.Equal(t, "5432", c.DBPort)
	assert.Equal(t, "seen", c.ViewCookieName)
	assert.Equal(t, "Asia/Shanghai", c.ViewTimezone)
	assert.Equal(t, "cron", c.CronSecret)
	assert.Equal(t, 30*time.Second, c.SweepInterval)
	assert.Equal(t, 50, c.SweepBatchSize)
	assert.True(t, c.MetricsEnabled)
	assert.Equal(t, "/metrics", c.MetricsPath)
	assert.Equal(t, []string{"root"}, c.AdminUsernames)
}

func TestLoadJSONConfig_MissingAndInvalid(t *testing.T) {
	var c AppConfig
	assert.NoError(t, loadJSONConfig(filepath.Join(t.TempDir(), "absent.json"), &c))

	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"app":`), 0o600))
	assert.Error(t, loadJSONConfig(path, &c))
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("CRON_SECRET", "from-env")
	t.Setenv("VIEW_TIMEZONE", "UTC")
	t.Setenv("SWEEP_INTERVAL_SECONDS", "15")
	t.Setenv("METRICS_ENABLED", "true")
	t.Setenv("ADMIN_USERNAMES", " alice , ,bob ")
	t.Setenv("DB_DRIVER", "Postgres")

	c := AppConfig{CronSecret: "from-file", SweepInterval: time.Minute}
	applyEnvOverrides(&c)

	assert.Equal(t, "from-env", c.CronSecret)
	assert.Equal(t, "UTC", c.ViewTimezone)
	assert.Equal(t, 15*time.Second, c.SweepInterval)
	assert.True(t, c.MetricsEnabled)
	assert.Equal(t, []string{"alice", "bob"}, c.AdminUsernames)
	assert.Equal(t, "postgres", c.DBDriver)
}

func TestOverride(t *testing.T) {
	Override(AppConfig{JWTSecret: "jwt"})

	c := Get()
	assert.Equal(t, "jwt", c.ViewTokenSecret)
	assert.Equal(t, "nh_viewed", c.ViewCookieName)
	assert.Equal(t, 500, c.SweepBatchSize)
	assert.Equal(t, 60, c.RateLimitPerMinute)
	assert.True(t, c.IsProduction())

	Override(AppConfig{JWTSecret: "jwt", ViewTokenSecret: "views", GinMode: "debug"})
	assert.Equal(t, "views", Get().ViewTokenSecret)
	assert.False(t, Get().IsProduction())
}

func TestViewLocation(t *testing.T) {
	assert.Equal(t, time.Local, AppConfig{}.ViewLocation())
	assert.Equal(t, time.Local, AppConfig{ViewTimezone: "local"}.ViewLocation())
	assert.Equal(t, time.Local, AppConfig{ViewTimezone: "Nowhere/Special"}.ViewLocation())
	assert.Equal(t, "UTC", AppConfig{ViewTimezone: "UTC"}.ViewLocation().String())
}

func TestDialector(t *testing.T) {
	assert.Equal(t, "postgres", Dialector(AppConfig{DBDriver: "postgres", DBHost: "db", DBPort: "5432"}).Name())
	assert.Equal(t, "mysql", Dialector(AppConfig{DBDriver: "mysql", DatabaseURI: "u:p@tcp(db:3306)/x"}).Name())
}
