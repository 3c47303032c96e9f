// Command scraper runs the market scrape pipeline once and exits.
// Useful for cron setups and manual backfills; the resident service
// with the built-in scheduler lives in cmd/web.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/Nityess/GenerateWealth/internal/app"
	"github.com/Nityess/GenerateWealth/internal/config"
	"github.com/Nityess/GenerateWealth/internal/fetch"
	"github.com/Nityess/GenerateWealth/internal/infrastructure"
	"github.com/Nityess/GenerateWealth/internal/store"
	"github.com/Nityess/GenerateWealth/pkg/contracts/domain"
)

func main() {
	configFile := flag.String("config", "", "path to YAML config file")
	categories := flag.String("categories", "", "comma-separated categories to scrape (default: all)")
	cleanup := flag.Bool("cleanup", false, "purge rows older than the retention window and exit")
	flag.Parse()

	if err := run(*configFile, *categories, *cleanup); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configFile, categories string, cleanup bool) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer infrastructure.CloseLogFile()

	st, err := store.Open(cfg.Database.Path, cfg.Closure.RowCap, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()

	if cleanup {
		removed, err := st.PurgeOlderThan(ctx, cfg.Retention.Days)
		if err != nil {
			return fmt.Errorf("purge: %w", err)
		}
		logger.Info("cleanup finished", slog.Int64("rows_removed", removed))
		return nil
	}

	if categories != "" {
		pages, err := filterPages(cfg.Scraper.Pages, categories)
		if err != nil {
			return err
		}
		cfg.Scraper.Pages = pages
	}

	fetcher := fetch.New(cfg.Scraper, logger)
	defer fetcher.Close()

	orch, err := app.NewOrchestrator(cfg, fetcher, st, logger)
	if err != nil {
		return err
	}

	scrape, err := orch.Run(ctx)
	if err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	if scrape.Status == domain.RunFailed {
		return fmt.Errorf("run %s failed: %s", scrape.ID, scrape.Detail)
	}
	logger.Info("scrape finished",
		slog.String("run_id", scrape.ID),
		slog.String("status", string(scrape.Status)),
		slog.Int("records_added", scrape.Records))
	return nil
}

// filterPages keeps only the requested categories, validating each name.
func filterPages(pages map[string]string, categories string) (map[string]string, error) {
	filtered := make(map[string]string)
	for _, name := range strings.Split(categories, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		category, err := domain.ParseCategory(name)
		if err != nil {
			return nil, err
		}
		url, ok := pages[string(category)]
		if !ok {
			return nil, fmt.Errorf("no page configured for category %s", category)
		}
		filtered[string(category)] = url
	}
	if len(filtered) == 0 {
		return nil, fmt.Errorf("no categories selected from %q", categories)
	}
	return filtered, nil
}
