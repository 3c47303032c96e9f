package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Nityess/GenerateWealth/pkg/contracts/domain"
)

// RecordRun appends one entry to the run log. Entries are never
// updated or deleted.
func (s *Store) RecordRun(ctx context.Context, run domain.ScrapeRun) error {
	outcomes, err := json.Marshal(run.Outcomes)
	if err != nil {
		return fmt.Errorf("marshal run outcomes: %w", err)
	}

	const query = `
		INSERT INTO scrape_runs (run_id, date, time, status, categories, records_added, error_detail, outcomes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query,
		run.ID, run.Date, run.Time, run.Status, run.Categories,
		run.Records, run.Detail, string(outcomes)); err != nil {
		return fmt.Errorf("record run %s: %w", run.ID, err)
	}
	return nil
}

// Runs returns the most recent run log entries, newest first. A
// positive sinceDays restricts the listing to that trailing window.
func (s *Store) Runs(ctx context.Context, sinceDays, limit int) ([]domain.ScrapeRun, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT run_id, date, time, status, categories, records_added, error_detail, outcomes
		FROM scrape_runs`
	var args []interface{}
	if sinceDays > 0 {
		cutoff := s.now().AddDate(0, 0, -sinceDays).Format(domain.DateFormat)
		query += " WHERE date >= ?"
		args = append(args, cutoff)
	}
	query += " ORDER BY date DESC, time DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.ScrapeRun
	for rows.Next() {
		var run domain.ScrapeRun
		var outcomes string
		if err := rows.Scan(&run.ID, &run.Date, &run.Time, &run.Status,
			&run.Categories, &run.Records, &run.Detail, &outcomes); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if outcomes != "" && outcomes != "null" {
			if err := json.Unmarshal([]byte(outcomes), &run.Outcomes); err != nil {
				return nil, fmt.Errorf("unmarshal run %s outcomes: %w", run.ID, err)
			}
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// LastRunDate returns the date of the most recent committed run, or
// empty when none exists. The scheduler uses it to avoid double runs
// on restart.
func (s *Store) LastRunDate(ctx context.Context) (string, error) {
	const query = `
		SELECT date FROM scrape_runs
		WHERE status = ?
		ORDER BY date DESC, time DESC
		LIMIT 1`

	var date string
	err := s.db.GetContext(ctx, &date, query, domain.RunCommitted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("query last run date: %w", err)
	}
	return date, nil
}
