package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"github.com/Nityess/GenerateWealth/pkg/contracts/domain"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Database  DatabaseConfig  `yaml:"database" envconfig:"DATABASE"`
	Scraper   ScraperConfig   `yaml:"scraper" envconfig:"SCRAPER"`
	Closure   ClosureConfig   `yaml:"closure" envconfig:"CLOSURE"`
	Retention RetentionConfig `yaml:"retention" envconfig:"RETENTION"`
	Schedule  ScheduleConfig  `yaml:"schedule" envconfig:"SCHEDULE"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format   string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"console"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/app.log"`
}

// DatabaseConfig locates the snapshot database
type DatabaseConfig struct {
	Path string `yaml:"path" envconfig:"PATH" default:"data/nepse_data.db"`
}

// ScraperConfig controls page fetching
type ScraperConfig struct {
	Retries           int               `yaml:"retries" envconfig:"RETRIES" default:"3"`
	BackoffBase       time.Duration     `yaml:"backoff_base" envconfig:"BACKOFF_BASE" default:"2s"`
	NavigationTimeout time.Duration     `yaml:"navigation_timeout" envconfig:"NAVIGATION_TIMEOUT" default:"60s"`
	TableTimeout      time.Duration     `yaml:"table_timeout" envconfig:"TABLE_TIMEOUT" default:"10s"`
	Headless          bool              `yaml:"headless" envconfig:"HEADLESS" default:"true"`
	Pages             map[string]string `yaml:"pages" envconfig:"PAGES"`
}

// ClosureConfig tunes the stale-data detector
type ClosureConfig struct {
	RowCap    int     `yaml:"row_cap" envconfig:"ROW_CAP" default:"50"`
	Threshold float64 `yaml:"threshold" envconfig:"THRESHOLD" default:"0.75"`
}

// RetentionConfig bounds stored history
type RetentionConfig struct {
	Days int `yaml:"days" envconfig:"DAYS" default:"365"`
}

// ScheduleConfig drives the background scheduler
type ScheduleConfig struct {
	Hour         int      `yaml:"hour" envconfig:"HOUR" default:"16"`
	Minute       int      `yaml:"minute" envconfig:"MINUTE" default:"0"`
	Timezone     string   `yaml:"timezone" envconfig:"TIMEZONE" default:"Asia/Kathmandu"`
	WeeklyDay    string   `yaml:"weekly_day" envconfig:"WEEKLY_DAY" default:"Sunday"`
	WeeklyHour   int      `yaml:"weekly_hour" envconfig:"WEEKLY_HOUR" default:"20"`
	WeeklyMinute int      `yaml:"weekly_minute" envconfig:"WEEKLY_MINUTE" default:"0"`
	Holidays     []string `yaml:"holidays" envconfig:"HOLIDAYS"`
	WeekendDays  []string `yaml:"weekend_days" envconfig:"WEEKEND_DAYS" default:"Saturday"`
}

// DefaultPages maps each category to its source URL. Overridable via the
// config file for mirrors or test fixtures.
func DefaultPages() map[string]string {
	return map[string]string{
		string(domain.CategoryGainers):      "https://www.sharesansar.com/top-gainers",
		string(domain.CategoryLosers):       "https://www.sharesansar.com/top-losers",
		string(domain.CategoryTraded):       "https://www.sharesansar.com/top-tradedshares",
		string(domain.CategoryTurnovers):    "https://www.sharesansar.com/top-turnovers",
		string(domain.CategoryTransactions): "https://www.sharesansar.com/top-transactions",
		string(domain.CategoryBrokers):      "https://www.sharesansar.com/top-brokers",
		string(domain.CategoryIPO):          "https://www.sharesansar.com/ipo",
	}
}

// Load loads configuration from environment variables and, when present,
// a YAML config file. Environment variables take precedence.
func Load(configFile string) (*Config, error) {
	var cfg Config

	if err := envconfig.Process("GW", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if configFile != "" {
		if _, err := os.Stat(configFile); err == nil {
			fileCfg, err := loadFromFile(configFile)
			if err != nil {
				return nil, fmt.Errorf("failed to load config from file: %w", err)
			}
			cfg.merge(fileCfg)
		}
	}

	if len(cfg.Scraper.Pages) == 0 {
		cfg.Scraper.Pages = DefaultPages()
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// merge copies file values over built-in defaults. A field the
// environment moved away from its default keeps the environment value;
// zero values in the file are treated as unset.
func (c *Config) merge(file *Config) {
	override(&c.Server.Port, file.Server.Port, 8080)
	override(&c.Server.ReadTimeout, file.Server.ReadTimeout, 15*time.Second)
	override(&c.Server.WriteTimeout, file.Server.WriteTimeout, 15*time.Second)
	override(&c.Server.IdleTimeout, file.Server.IdleTimeout, 60*time.Second)
	override(&c.Server.ShutdownTimeout, file.Server.ShutdownTimeout, 30*time.Second)

	override(&c.Logging.Level, file.Logging.Level, "info")
	override(&c.Logging.Format, file.Logging.Format, "json")
	override(&c.Logging.Output, file.Logging.Output, "console")
	override(&c.Logging.FilePath, file.Logging.FilePath, "logs/app.log")

	override(&c.Database.Path, file.Database.Path, "data/nepse_data.db")

	override(&c.Scraper.Retries, file.Scraper.Retries, 3)
	override(&c.Scraper.BackoffBase, file.Scraper.BackoffBase, 2*time.Second)
	override(&c.Scraper.NavigationTimeout, file.Scraper.NavigationTimeout, 60*time.Second)
	override(&c.Scraper.TableTimeout, file.Scraper.TableTimeout, 10*time.Second)
	if len(c.Scraper.Pages) == 0 {
		c.Scraper.Pages = file.Scraper.Pages
	}

	override(&c.Closure.RowCap, file.Closure.RowCap, 50)
	override(&c.Closure.Threshold, file.Closure.Threshold, 0.75)
	override(&c.Retention.Days, file.Retention.Days, 365)

	override(&c.Schedule.Hour, file.Schedule.Hour, 16)
	override(&c.Schedule.Minute, file.Schedule.Minute, 0)
	override(&c.Schedule.Timezone, file.Schedule.Timezone, "Asia/Kathmandu")
	override(&c.Schedule.WeeklyDay, file.Schedule.WeeklyDay, "Sunday")
	override(&c.Schedule.WeeklyHour, file.Schedule.WeeklyHour, 20)
	override(&c.Schedule.WeeklyMinute, file.Schedule.WeeklyMinute, 0)
	if len(c.Schedule.Holidays) == 0 {
		c.Schedule.Holidays = file.Schedule.Holidays
	}
	if len(file.Schedule.WeekendDays) > 0 &&
		len(c.Schedule.WeekendDays) == 1 && c.Schedule.WeekendDays[0] == "Saturday" {
		c.Schedule.WeekendDays = file.Schedule.WeekendDays
	}
}

func override[T comparable](dst *T, fileVal, def T) {
	var zero T
	if fileVal != zero && *dst == def {
		*dst = fileVal
	}
}

// Weekend returns the configured weekend days as time.Weekday values.
func (c *ScheduleConfig) Weekend() ([]time.Weekday, error) {
	out := make([]time.Weekday, 0, len(c.WeekendDays))
	for _, n := range c.WeekendDays {
		d, ok := weekdayNames[n]
		if !ok {
			return nil, fmt.Errorf("invalid weekend day %q", n)
		}
		out = append(out, d)
	}
	return out, nil
}

var weekdayNames = map[string]time.Weekday{
	"Sunday": time.Sunday, "Monday": time.Monday, "Tuesday": time.Tuesday,
	"Wednesday": time.Wednesday, "Thursday": time.Thursday,
	"Friday": time.Friday, "Saturday": time.Saturday,
}

// WeeklyWeekday parses the configured weekly analysis day.
func (c *ScheduleConfig) WeeklyWeekday() (time.Weekday, error) {
	d, ok := weekdayNames[c.WeeklyDay]
	if !ok {
		return 0, fmt.Errorf("invalid weekly day %q", c.WeeklyDay)
	}
	return d, nil
}

// HolidaySet parses the configured holiday dates into a lookup set keyed
// by the canonical date string.
func (c *ScheduleConfig) HolidaySet() (map[string]bool, error) {
	set := make(map[string]bool, len(c.Holidays))
	for _, h := range c.Holidays {
		if _, err := time.Parse(domain.DateFormat, h); err != nil {
			return nil, fmt.Errorf("invalid holiday date %q: %w", h, err)
		}
		set[h] = true
	}
	return set, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Scraper.Retries < 1 {
		return fmt.Errorf("scraper retries must be at least 1, got %d", c.Scraper.Retries)
	}
	if c.Scraper.BackoffBase <= 0 {
		return fmt.Errorf("scraper backoff base must be positive")
	}
	if c.Scraper.NavigationTimeout <= 0 || c.Scraper.TableTimeout <= 0 {
		return fmt.Errorf("scraper timeouts must be positive")
	}
	for name := range c.Scraper.Pages {
		if _, err := domain.ParseCategory(name); err != nil {
			return fmt.Errorf("pages: %w", err)
		}
	}
	for _, cat := range domain.AllCategories() {
		if c.Scraper.Pages[string(cat)] == "" {
			return fmt.Errorf("pages: no source URL for category %s", cat)
		}
	}
	if c.Closure.RowCap <= 0 {
		return fmt.Errorf("closure row cap must be positive, got %d", c.Closure.RowCap)
	}
	if c.Closure.Threshold <= 0 || c.Closure.Threshold > 1 {
		return fmt.Errorf("closure threshold must be in (0, 1], got %v", c.Closure.Threshold)
	}
	if c.Retention.Days <= 0 {
		return fmt.Errorf("retention days must be positive, got %d", c.Retention.Days)
	}
	if c.Schedule.Hour < 0 || c.Schedule.Hour > 23 || c.Schedule.Minute < 0 || c.Schedule.Minute > 59 {
		return fmt.Errorf("invalid schedule time %02d:%02d", c.Schedule.Hour, c.Schedule.Minute)
	}
	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Schedule.Timezone, err)
	}
	if _, err := c.Schedule.Weekend(); err != nil {
		return err
	}
	if _, err := c.Schedule.WeeklyWeekday(); err != nil {
		return err
	}
	if _, err := c.Schedule.HolidaySet(); err != nil {
		return err
	}
	return nil
}
