package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"binder/internal/config"
)

// Store persists run records in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// Open initializes or connects to the run history database under the
// configured log directory.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.HistoryDBPath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

const runColumns = "id, run_id, kind, status, started_at, finished_at, workbooks, links_found, links_updated, links_skipped, links_failed, detail, report_path"

// Append stores a completed run. A missing RunID is assigned, a zero
// FinishedAt defaults to now, and record.ID is set from the insert.
func (s *Store) Append(ctx context.Context, record *RunRecord) error {
	if record == nil {
		return errors.New("record is nil")
	}
	if !KnownKind(record.Kind) {
		return fmt.Errorf("unknown run kind %q", record.Kind)
	}
	if !KnownStatus(record.Status) {
		return fmt.Errorf("unknown run status %q", record.Status)
	}
	if record.RunID == "" {
		record.RunID = uuid.NewString()
	}
	now := time.Now().UTC()
	if record.StartedAt.IsZero() {
		record.StartedAt = now
	}
	if record.FinishedAt.IsZero() {
		record.FinishedAt = now
	}

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO runs (
            run_id, kind, status, started_at, finished_at,
            workbooks, links_found, links_updated, links_skipped, links_failed,
            detail, report_path
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.RunID,
		string(record.Kind),
		string(record.Status),
		record.StartedAt.UTC().Format(time.RFC3339Nano),
		record.FinishedAt.UTC().Format(time.RFC3339Nano),
		record.Workbooks,
		record.LinksFound,
		record.LinksUpdated,
		record.LinksSkipped,
		record.LinksFailed,
		nullableString(record.Detail),
		nullableString(record.ReportPath),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	record.ID = id
	return nil
}

// Get fetches a run by its run identifier. A missing run returns nil.
func (s *Store) Get(ctx context.Context, runID string) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	record, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return record, nil
}

// List returns runs newest first, filtered by kind when kind is non-empty
// and capped at limit when limit is positive.
func (s *Store) List(ctx context.Context, kind Kind, limit int) ([]*RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	var args []any
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, string(kind))
	}
	query += ` ORDER BY started_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var records []*RunRecord
	for rows.Next() {
		record, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// Stats returns run counts grouped by kind and status.
func (s *Store) Stats(ctx context.Context) (Summary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT kind, status, COUNT(1) FROM runs GROUP BY kind, status`)
	if err != nil {
		return Summary{}, fmt.Errorf("run stats: %w", err)
	}
	defer rows.Close()

	summary := Summary{
		ByKind:   make(map[Kind]int),
		ByStatus: make(map[Status]int),
	}
	for rows.Next() {
		var (
			kind   Kind
			status Status
			count  int
		)
		if err := rows.Scan(&kind, &status, &count); err != nil {
			return Summary{}, err
		}
		summary.Total += count
		summary.ByKind[kind] += count
		summary.ByStatus[status] += count
	}
	return summary, rows.Err()
}

// Clear removes all recorded runs.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM runs`)
	if err != nil {
		return 0, fmt.Errorf("clear runs: %w", err)
	}
	return res.RowsAffected()
}

// Prune removes runs that started more than keepDays ago and returns the
// number of deleted rows.
func (s *Store) Prune(ctx context.Context, keepDays int) (int64, error) {
	if keepDays <= 0 {
		return 0, fmt.Errorf("keep days must be positive, got %d", keepDays)
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -keepDays).Format(time.RFC3339Nano)
	res, err := s.execWithRetry(ctx, `DELETE FROM runs WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return res.RowsAffected()
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (*RunRecord, error) {
	var (
		id           int64
		runID        string
		kind         string
		status       string
		startedRaw   string
		finishedRaw  string
		workbooks    int
		linksFound   int
		linksUpdated int
		linksSkipped int
		linksFailed  int
		detail       sql.NullString
		reportPath   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&runID,
		&kind,
		&status,
		&startedRaw,
		&finishedRaw,
		&workbooks,
		&linksFound,
		&linksUpdated,
		&linksSkipped,
		&linksFailed,
		&detail,
		&reportPath,
	); err != nil {
		return nil, err
	}

	record := &RunRecord{
		ID:           id,
		RunID:        runID,
		Kind:         Kind(kind),
		Status:       Status(status),
		Workbooks:    workbooks,
		LinksFound:   linksFound,
		LinksUpdated: linksUpdated,
		LinksSkipped: linksSkipped,
		LinksFailed:  linksFailed,
		Detail:       detail.String,
		ReportPath:   reportPath.String,
	}
	if started, err := parseTimeString(startedRaw); err == nil {
		record.StartedAt = started
	}
	if finished, err := parseTimeString(finishedRaw); err == nil {
		record.FinishedAt = finished
	}
	return record, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
