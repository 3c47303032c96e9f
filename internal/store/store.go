// Package store persists category snapshots and the run log in SQLite.
// Snapshots are append-only: committed rows are never updated, and a
// (date, identity) pair is written at most once.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/Nityess/GenerateWealth/pkg/contracts/domain"
)

// Store wraps the SQLite database holding one table per category plus
// the scrape run log. Numeric fields are stored as exact decimal
// strings so a value reads back byte-for-byte equal to what was
// written.
type Store struct {
	db     *sqlx.DB
	logger *slog.Logger
	rowCap int
	now    func() time.Time
}

// Open creates or opens the snapshot database at path and applies the
// schema. rowCap bounds LatestSnapshot result sizes.
func Open(path string, rowCap int, logger *slog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path)
	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	// SQLite allows one writer; serialize access through a single conn.
	db.SetMaxOpenConns(1)

	s := &Store{
		db:     db,
		logger: logger.With(slog.String("component", "store")),
		rowCap: rowCap,
		now:    time.Now,
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping() error {
	return s.db.Ping()
}

func (s *Store) migrate() error {
	for _, category := range domain.AllCategories() {
		schema, err := domain.SchemaFor(category)
		if err != nil {
			return err
		}
		if _, err := s.db.Exec(createTableSQL(schema)); err != nil {
			return fmt.Errorf("migrate %s: %w", category, err)
		}
	}

	const runLog = `
		CREATE TABLE IF NOT EXISTS scrape_runs (
			run_id        TEXT PRIMARY KEY,
			date          TEXT NOT NULL,
			time          TEXT NOT NULL,
			status        TEXT NOT NULL,
			categories    TEXT NOT NULL,
			records_added INTEGER NOT NULL DEFAULT 0,
			error_detail  TEXT NOT NULL DEFAULT '',
			outcomes      TEXT NOT NULL DEFAULT '{}'
		)`
	if _, err := s.db.Exec(runLog); err != nil {
		return fmt.Errorf("migrate scrape_runs: %w", err)
	}
	return nil
}

// createTableSQL builds the DDL for one category table. Every field is
// a TEXT column; the identity fields join the snapshot date in a
// uniqueness constraint so re-running a day cannot duplicate rows.
func createTableSQL(schema *domain.Schema) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", schema.Category)
	b.WriteString("\tid INTEGER PRIMARY KEY AUTOINCREMENT,\n")
	b.WriteString("\tdate TEXT NOT NULL,\n")
	for _, f := range schema.Fields {
		fmt.Fprintf(&b, "\t%s TEXT,\n", f.Name)
	}
	b.WriteString("\tcreated_at TEXT NOT NULL DEFAULT (datetime('now')),\n")
	fmt.Fprintf(&b, "\tUNIQUE(date, %s)\n)", strings.Join(schema.Identity, ", "))
	return b.String()
}

// Append inserts records for one category, skipping any row whose
// (date, identity) already exists. Returns the number of rows actually
// written. Conflicts are per row, a duplicate never aborts the batch.
func (s *Store) Append(ctx context.Context, category domain.Category, records []domain.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	schema, err := domain.SchemaFor(category)
	if err != nil {
		return 0, err
	}

	cols := make([]string, 0, len(schema.Fields)+1)
	cols = append(cols, "date")
	for _, f := range schema.Fields {
		cols = append(cols, f.Name)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	query := fmt.Sprintf("INSERT OR IGNORE INTO %s (%s) VALUES (%s)",
		schema.Category, strings.Join(cols, ", "), placeholders)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("prepare append: %w", err)
	}
	defer stmt.Close()

	written := 0
	for _, rec := range records {
		args := make([]interface{}, 0, len(cols))
		args = append(args, rec.Date)
		for _, f := range schema.Fields {
			args = append(args, columnValue(rec.Fields[f.Name]))
		}
		res, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return 0, fmt.Errorf("append %s row: %w", category, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("append %s rows affected: %w", category, err)
		}
		written += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit append: %w", err)
	}

	if skipped := len(records) - written; skipped > 0 {
		s.logger.Info("duplicate rows skipped",
			slog.String("category", string(category)),
			slog.Int("written", written),
			slog.Int("skipped", skipped))
	}
	return written, nil
}

// columnValue maps a domain value to its stored form. Null states
// persist as SQL NULL; numerics persist as exact decimal strings.
func columnValue(v domain.Value) interface{} {
	if v.IsNull() {
		return nil
	}
	if v.Numeric {
		return v.Num.String()
	}
	return v.Text
}

// Query returns all snapshots of a category whose date falls within the
// trailing window of sinceDays, newest date first and identities in
// ascending order within a date. sinceDays <= 0 returns everything.
func (s *Store) Query(ctx context.Context, category domain.Category, sinceDays int) ([]domain.Record, error) {
	schema, err := domain.SchemaFor(category)
	if err != nil {
		return nil, err
	}

	orderBy := fmt.Sprintf("date DESC, %s ASC", strings.Join(schema.Identity, " ASC, "))
	query := fmt.Sprintf("SELECT %s FROM %s", selectColumns(schema), schema.Category)
	var args []interface{}
	if sinceDays > 0 {
		cutoff := s.now().AddDate(0, 0, -sinceDays).Format(domain.DateFormat)
		query += " WHERE date >= ?"
		args = append(args, cutoff)
	}
	query += " ORDER BY " + orderBy

	return s.queryRecords(ctx, schema, query, args...)
}

// LatestSnapshot returns the rows of the most recent snapshot date for
// a category, capped and ordered by identity. An empty database yields
// an empty slice, not an error.
func (s *Store) LatestSnapshot(ctx context.Context, category domain.Category) ([]domain.Record, error) {
	schema, err := domain.SchemaFor(category)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE date = (SELECT MAX(date) FROM %s) ORDER BY %s ASC LIMIT %d",
		selectColumns(schema), schema.Category, schema.Category,
		strings.Join(schema.Identity, " ASC, "), s.rowCap)

	return s.queryRecords(ctx, schema, query)
}

func selectColumns(schema *domain.Schema) string {
	cols := make([]string, 0, len(schema.Fields)+1)
	cols = append(cols, "date")
	for _, f := range schema.Fields {
		cols = append(cols, f.Name)
	}
	return strings.Join(cols, ", ")
}

func (s *Store) queryRecords(ctx context.Context, schema *domain.Schema, query string, args ...interface{}) ([]domain.Record, error) {
	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", schema.Category, err)
	}
	defer rows.Close()

	var records []domain.Record
	for rows.Next() {
		row := make(map[string]interface{})
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("scan %s: %w", schema.Category, err)
		}
		records = append(records, recordFromRow(row, schema))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", schema.Category, err)
	}
	return records, nil
}

// recordFromRow rebuilds a domain record from a scanned row. NULL
// columns come back as null values; stored decimal strings parse back
// to the exact numbers that were written.
func recordFromRow(row map[string]interface{}, schema *domain.Schema) domain.Record {
	rec := domain.Record{Fields: make(map[string]domain.Value, len(schema.Fields))}
	if raw, ok := row["date"]; ok {
		rec.Date = asString(raw)
	}
	for _, f := range schema.Fields {
		raw, ok := row[f.Name]
		if !ok || raw == nil {
			rec.Fields[f.Name] = domain.MissingValue()
			continue
		}
		text := asString(raw)
		if !f.Type.IsNumeric() {
			rec.Fields[f.Name] = domain.TextValue(text)
			continue
		}
		d, err := decimal.NewFromString(text)
		if err != nil {
			rec.Fields[f.Name] = domain.InvalidValue(text)
			continue
		}
		rec.Fields[f.Name] = domain.NumberValue(d)
	}
	return rec
}

func asString(raw interface{}) string {
	switch v := raw.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// PurgeOlderThan deletes snapshot rows strictly older than the
// retention window across every category table. A row dated exactly at
// the boundary survives. Returns the total rows removed.
func (s *Store) PurgeOlderThan(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, fmt.Errorf("retention days must be positive, got %d", days)
	}
	cutoff := s.now().AddDate(0, 0, -days).Format(domain.DateFormat)

	var total int64
	for _, category := range domain.AllCategories() {
		res, err := s.db.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE date < ?", category), cutoff)
		if err != nil {
			return total, fmt.Errorf("purge %s: %w", category, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("purge %s rows affected: %w", category, err)
		}
		total += n
	}

	if total > 0 {
		s.logger.Info("old snapshots purged",
			slog.String("cutoff", cutoff),
			slog.Int64("rows", total))
	}
	return total, nil
}
