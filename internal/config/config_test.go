package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nityess/GenerateWealth/pkg/contracts/domain"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Scraper.Retries)
	assert.Equal(t, 2*time.Second, cfg.Scraper.BackoffBase)
	assert.Equal(t, 60*time.Second, cfg.Scraper.NavigationTimeout)
	assert.Equal(t, 10*time.Second, cfg.Scraper.TableTimeout)
	assert.True(t, cfg.Scraper.Headless)
	assert.Equal(t, 50, cfg.Closure.RowCap)
	assert.Equal(t, 0.75, cfg.Closure.Threshold)
	assert.Equal(t, 365, cfg.Retention.Days)
	assert.Equal(t, 16, cfg.Schedule.Hour)
	assert.Equal(t, "Asia/Kathmandu", cfg.Schedule.Timezone)
	assert.Equal(t, []string{"Saturday"}, cfg.Schedule.WeekendDays)
	assert.Equal(t, "data/nepse_data.db", cfg.Database.Path)

	// Every category ships with a source page.
	for _, category := range domain.AllCategories() {
		assert.NotEmpty(t, cfg.Scraper.Pages[string(category)], "category %s", category)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("GW_SCRAPER_RETRIES", "5")
	t.Setenv("GW_CLOSURE_THRESHOLD", "0.5")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Scraper.Retries)
	assert.Equal(t, 0.5, cfg.Closure.Threshold)
}

func TestLoadFromFileMerges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
database:
  path: /var/lib/gw/market.db
schedule:
  holidays:
    - "2026-09-17"
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/gw/market.db", cfg.Database.Path)
	assert.Equal(t, []string{"2026-09-17"}, cfg.Schedule.Holidays)
}

func TestLoadFromFileMergesScalars(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: 9090
scraper:
  retries: 5
  table_timeout: 20s
closure:
  threshold: 0.9
retention:
  days: 30
schedule:
  hour: 17
  weekly_day: Friday
  weekend_days: [Friday, Saturday]
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Scraper.Retries)
	assert.Equal(t, 20*time.Second, cfg.Scraper.TableTimeout)
	assert.Equal(t, 0.9, cfg.Closure.Threshold)
	assert.Equal(t, 30, cfg.Retention.Days)
	assert.Equal(t, 17, cfg.Schedule.Hour)
	assert.Equal(t, "Friday", cfg.Schedule.WeeklyDay)
	assert.Equal(t, []string{"Friday", "Saturday"}, cfg.Schedule.WeekendDays)
	// Untouched fields keep their defaults.
	assert.Equal(t, 2*time.Second, cfg.Scraper.BackoffBase)
	assert.Equal(t, 50, cfg.Closure.RowCap)
}

func TestLoadEnvBeatsFile(t *testing.T) {
	t.Setenv("GW_SCRAPER_RETRIES", "7")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
scraper:
  retries: 5
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Scraper.Retries)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Scraper.Retries)
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := func(t *testing.T) *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "zero retries", mutate: func(c *Config) { c.Scraper.Retries = 0 }},
		{name: "negative backoff", mutate: func(c *Config) { c.Scraper.BackoffBase = -time.Second }},
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = 0 }},
		{name: "threshold above one", mutate: func(c *Config) { c.Closure.Threshold = 1.5 }},
		{name: "zero row cap", mutate: func(c *Config) { c.Closure.RowCap = 0 }},
		{name: "zero retention", mutate: func(c *Config) { c.Retention.Days = 0 }},
		{name: "bad hour", mutate: func(c *Config) { c.Schedule.Hour = 24 }},
		{name: "bad timezone", mutate: func(c *Config) { c.Schedule.Timezone = "Mars/Olympus" }},
		{name: "unknown category page", mutate: func(c *Config) { c.Scraper.Pages["top_movers"] = "https://x" }},
		{name: "missing category page", mutate: func(c *Config) { delete(c.Scraper.Pages, "top_gainers") }},
		{name: "bad weekend day", mutate: func(c *Config) { c.Schedule.WeekendDays = []string{"Caturday"} }},
		{name: "bad weekly day", mutate: func(c *Config) { c.Schedule.WeeklyDay = "Someday" }},
		{name: "bad holiday date", mutate: func(c *Config) { c.Schedule.Holidays = []string{"17-09-2026"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base(t)
			tt.mutate(cfg)
			assert.Error(t, cfg.validate())
		})
	}
}

func TestWeekendParsing(t *testing.T) {
	sc := ScheduleConfig{WeekendDays: []string{"Saturday", "Sunday"}}
	days, err := sc.Weekend()
	require.NoError(t, err)
	assert.Equal(t, []time.Weekday{time.Saturday, time.Sunday}, days)
}

func TestHolidaySet(t *testing.T) {
	sc := ScheduleConfig{Holidays: []string{"2026-09-17", "2026-10-20"}}
	set, err := sc.HolidaySet()
	require.NoError(t, err)
	assert.True(t, set["2026-09-17"])
	assert.False(t, set["2026-09-18"])
}

func TestWeeklyWeekday(t *testing.T) {
	sc := ScheduleConfig{WeeklyDay: "Sunday"}
	day, err := sc.WeeklyWeekday()
	require.NoError(t, err)
	assert.Equal(t, time.Sunday, day)
}
