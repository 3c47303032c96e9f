// Package notify delivers run outcomes and analysis digests to
// whoever is listening. The default sink is the structured log;
// alternative transports implement Notifier.
package notify

import (
	"context"
	"log/slog"

	"github.com/Nityess/GenerateWealth/pkg/contracts/domain"
)

// Notifier receives the events worth telling a human about. Delivery
// is best effort: the pipeline never fails because a notification did.
type Notifier interface {
	// DailySummary reports a finished pipeline run.
	DailySummary(ctx context.Context, run domain.ScrapeRun)
	// MarketClosed reports a run skipped because the exchange replayed
	// stale data.
	MarketClosed(ctx context.Context, date string, decisions []domain.ClosureDecision)
	// Recurrence reports the weekly recurrence digest for one category.
	Recurrence(ctx context.Context, category domain.Category, results []domain.RecurrenceResult)
	// IPODigest reports currently listed IPO offerings.
	IPODigest(ctx context.Context, records []domain.Record)
}

// LogNotifier writes every notification to the structured log.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With(slog.String("component", "notifier"))}
}

func (n *LogNotifier) DailySummary(ctx context.Context, run domain.ScrapeRun) {
	attrs := []any{
		slog.String("run_id", run.ID),
		slog.String("date", run.Date),
		slog.String("status", string(run.Status)),
		slog.Int("records_added", run.Records),
	}
	if run.Detail != "" {
		attrs = append(attrs, slog.String("detail", run.Detail))
	}
	n.logger.InfoContext(ctx, "daily scrape summary", attrs...)
}

func (n *LogNotifier) MarketClosed(ctx context.Context, date string, decisions []domain.ClosureDecision) {
	closed := 0
	for _, d := range decisions {
		if d.Closed {
			closed++
		}
	}
	n.logger.InfoContext(ctx, "market closure detected",
		slog.String("date", date),
		slog.Int("categories_closed", closed),
		slog.Int("categories_checked", len(decisions)))
}

func (n *LogNotifier) Recurrence(ctx context.Context, category domain.Category, results []domain.RecurrenceResult) {
	for _, r := range results {
		n.logger.InfoContext(ctx, "recurring symbol",
			slog.String("category", string(category)),
			slog.String("identity", r.Identity),
			slog.Int("occurrences", r.Occurrences),
			slog.String("avg_metric", r.AvgMetric.String()),
			slog.String("last_seen", r.LastSeen))
	}
}

func (n *LogNotifier) IPODigest(ctx context.Context, records []domain.Record) {
	for _, rec := range records {
		n.logger.InfoContext(ctx, "open ipo listing",
			slog.String("company", rec.Fields["company_name"].Text),
			slog.String("opening_date", rec.Fields["opening_date"].Text),
			slog.String("closing_date", rec.Fields["closing_date"].Text))
	}
}
