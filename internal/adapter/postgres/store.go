package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/river-wqi-etl/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// maxListLimit caps history listings.
const maxListLimit = 500

// Store implements domain.AtomicAlertStore, domain.AlertLookup and
// domain.AlertHistory.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps an open pool. Run RunMigrations first.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Exists(ctx context.Context, key domain.AlertKey) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM alert_records
            WHERE station_id = $1 AND parameter = $2 AND sample_time = $3
        )
    `, key.StationID, string(key.Parameter), key.SampleTime).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query alert exists: %w", err)
	}
	return exists, nil
}

func (s *Store) Get(ctx context.Context, key domain.AlertKey) (domain.AlertRecord, bool, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT id, station_id, parameter, sample_time, value, status, raised_at
        FROM alert_records
        WHERE station_id = $1 AND parameter = $2 AND sample_time = $3
    `, key.StationID, string(key.Parameter), key.SampleTime)
	if err != nil {
		return domain.AlertRecord{}, false, fmt.Errorf("query alert record: %w", err)
	}

	rec, err := pgx.CollectExactlyOneRow(rows, scanRecord)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.AlertRecord{}, false, nil
	}
	if err != nil {
		return domain.AlertRecord{}, false, fmt.Errorf("scan alert record: %w", err)
	}
	return rec, true, nil
}

// Insert adds rec, returning domain.ErrAlertExists when its key is taken.
func (s *Store) Insert(ctx context.Context, rec domain.AlertRecord) error {
	_, err := s.pool.Exec(ctx, insertSQL, insertArgs(rec)...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrAlertExists
		}
		return fmt.Errorf("insert alert record: %w", err)
	}
	return nil
}

// InsertIfAbsent inserts rec unless its key exists, in one statement.
func (s *Store) InsertIfAbsent(ctx context.Context, rec domain.AlertRecord) (bool, error) {
	tag, err := s.pool.Exec(ctx, insertSQL+`
        ON CONFLICT ON CONSTRAINT alert_records_key DO NOTHING
    `, insertArgs(rec)...)
	if err != nil {
		return false, fmt.Errorf("insert alert record: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

const insertSQL = `
        INSERT INTO alert_records
            (id, station_id, parameter, sample_time, value, status, raised_at)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7)`

func insertArgs(rec domain.AlertRecord) []any {
	return []any{
		rec.ID,
		rec.Key.StationID,
		string(rec.Key.Parameter),
		rec.Key.SampleTime,
		rec.Value,
		rec.StatusLabel,
		rec.RaisedAt,
	}
}

// List returns matching records, most recently raised first.
func (s *Store) List(ctx context.Context, f domain.AlertFilter) ([]domain.AlertRecord, error) {
	limit := f.Limit
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}

	rows, err := s.pool.Query(ctx, `
        SELECT id, station_id, parameter, sample_time, value, status, raised_at
        FROM alert_records
        WHERE ($1 = '' OR station_id = $1)
          AND ($2 = '' OR parameter = $2)
        ORDER BY raised_at DESC, station_id, parameter, sample_time
        LIMIT $3
    `, f.StationID, string(f.Parameter), limit)
	if err != nil {
		return nil, fmt.Errorf("query alert records: %w", err)
	}

	out, err := pgx.CollectRows(rows, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("scan alert records: %w", err)
	}
	return out, nil
}

func scanRecord(row pgx.CollectableRow) (domain.AlertRecord, error) {
	var (
		rec        domain.AlertRecord
		stationID  string
		parameter  string
		sampleTime time.Time
	)
	if err := row.Scan(&rec.ID, &stationID, &parameter, &sampleTime, &rec.Value, &rec.StatusLabel, &rec.RaisedAt); err != nil {
		return domain.AlertRecord{}, err
	}
	rec.Key = domain.NewAlertKey(stationID, domain.Parameter(parameter), sampleTime)
	rec.RaisedAt = rec.RaisedAt.UTC()
	return rec, nil
}

func (s *Store) Clear(ctx context.Context, stationID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
        DELETE FROM alert_records WHERE ($1 = '' OR station_id = $1)
    `, stationID)
	if err != nil {
		return 0, fmt.Errorf("clear alert records: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
        DELETE FROM alert_records WHERE raised_at < $1
    `, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge alert records: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
