// Package sqlite implements the alert store on an embedded SQLite database
// (pure Go driver, WAL journal). It suits single-node deployments that need
// alert history to survive restarts.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/river-wqi-etl/internal/domain"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// timeLayout is fixed width so that stored times sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000Z"

const maxListLimit = 500

// Store implements domain.AtomicAlertStore, domain.AlertLookup and
// domain.AlertHistory.
type Store struct {
	db *sql.DB
}

// Open creates the parent directory if needed, opens the database with WAL
// mode and a busy timeout on every connection, and applies the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("sqlite: create data dir: %w", err)
		}
	}

	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "synchronous(NORMAL)")
	db, err := sql.Open("sqlite", "file:"+path+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("sqlite: open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS alert_records (
			id          TEXT PRIMARY KEY,
			station_id  TEXT NOT NULL,
			parameter   TEXT NOT NULL,
			sample_time TEXT NOT NULL,
			value       REAL NOT NULL,
			status      TEXT NOT NULL,
			raised_at   TEXT NOT NULL,
			UNIQUE (station_id, parameter, sample_time)
		);

		CREATE INDEX IF NOT EXISTS idx_alert_records_raised_at ON alert_records (raised_at);
	`)
	return err
}

func (s *Store) Exists(ctx context.Context, key domain.AlertKey) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM alert_records
		WHERE station_id = ? AND parameter = ? AND sample_time = ?
	`, key.StationID, string(key.Parameter), formatTime(key.SampleTime)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query alert exists: %w", err)
	}
	return n > 0, nil
}

func (s *Store) Get(ctx context.Context, key domain.AlertKey) (domain.AlertRecord, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+selectColumns+`
		FROM alert_records
		WHERE station_id = ? AND parameter = ? AND sample_time = ?
	`, key.StationID, string(key.Parameter), formatTime(key.SampleTime))
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AlertRecord{}, false, nil
	}
	if err != nil {
		return domain.AlertRecord{}, false, err
	}
	return rec, true, nil
}

// Insert adds rec, returning domain.ErrAlertExists when its key is taken.
func (s *Store) Insert(ctx context.Context, rec domain.AlertRecord) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO alert_records `+insertColumns, insertArgs(rec)...)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlertExists
		}
		return fmt.Errorf("insert alert record: %w", err)
	}
	return nil
}

// InsertIfAbsent inserts rec unless its key exists, in one statement.
func (s *Store) InsertIfAbsent(ctx context.Context, rec domain.AlertRecord) (bool, error) {
	res, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO alert_records `+insertColumns, insertArgs(rec)...)
	if err != nil {
		return false, fmt.Errorf("insert alert record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert alert record: %w", err)
	}
	return n == 1, nil
}

const insertColumns = `(id, station_id, parameter, sample_time, value, status, raised_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

func insertArgs(rec domain.AlertRecord) []any {
	return []any{
		rec.ID,
		rec.Key.StationID,
		string(rec.Key.Parameter),
		formatTime(rec.Key.SampleTime),
		rec.Value,
		rec.StatusLabel,
		formatTime(rec.RaisedAt),
	}
}

// List returns matching records, most recently raised first.
func (s *Store) List(ctx context.Context, f domain.AlertFilter) ([]domain.AlertRecord, error) {
	limit := f.Limit
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+selectColumns+`
		FROM alert_records
		WHERE (?1 = '' OR station_id = ?1)
		  AND (?2 = '' OR parameter = ?2)
		ORDER BY raised_at DESC, station_id, parameter, sample_time
		LIMIT ?3
	`, f.StationID, string(f.Parameter), limit)
	if err != nil {
		return nil, fmt.Errorf("query alert records: %w", err)
	}
	defer rows.Close()

	var out []domain.AlertRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alert records: %w", err)
	}
	return out, nil
}

const selectColumns = `id, station_id, parameter, sample_time, value, status, raised_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (domain.AlertRecord, error) {
	var (
		rec                  domain.AlertRecord
		stationID, param     string
		sampleTime, raisedAt string
	)
	if err := row.Scan(&rec.ID, &stationID, &param, &sampleTime, &rec.Value, &rec.StatusLabel, &raisedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.AlertRecord{}, err
		}
		return domain.AlertRecord{}, fmt.Errorf("scan alert record: %w", err)
	}
	st, err := time.Parse(timeLayout, sampleTime)
	if err != nil {
		return domain.AlertRecord{}, fmt.Errorf("parse sample_time %q: %w", sampleTime, err)
	}
	if rec.RaisedAt, err = time.Parse(timeLayout, raisedAt); err != nil {
		return domain.AlertRecord{}, fmt.Errorf("parse raised_at %q: %w", raisedAt, err)
	}
	rec.Key = domain.NewAlertKey(stationID, domain.Parameter(param), st)
	return rec, nil
}

func (s *Store) Clear(ctx context.Context, stationID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM alert_records WHERE (?1 = '' OR station_id = ?1)`, stationID)
	if err != nil {
		return 0, fmt.Errorf("clear alert records: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM alert_records WHERE raised_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("purge alert records: %w", err)
	}
	return res.RowsAffected()
}

// Ping reports whether the database is usable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
