// Package sqlite implements the storm persistence store on an embedded
// SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/couchcryptid/storm-advisory-ingest/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS regions (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	feed_url TEXT NOT NULL,
	active INTEGER NOT NULL DEFAULT 1,
	position INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS storms (
	storm_id TEXT PRIMARY KEY,
	region_id TEXT NOT NULL,
	season INTEGER NOT NULL,
	storm_name TEXT,
	storm_type TEXT,
	latitude REAL,
	longitude REAL,
	movement TEXT,
	wind_speed INTEGER,
	pressure INTEGER,
	headline TEXT,
	report TEXT,
	report_link TEXT,
	report_date TEXT NOT NULL,
	wallet TEXT,
	wallet_url TEXT,
	status TEXT NOT NULL DEFAULT 'active',
	missed_cycles INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_storms_season ON storms (season);
CREATE INDEX IF NOT EXISTS idx_storms_status ON storms (status);
CREATE INDEX IF NOT EXISTS idx_storms_region ON storms (region_id);

CREATE TABLE IF NOT EXISTS storm_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	storm_id TEXT NOT NULL,
	region_id TEXT NOT NULL,
	season INTEGER NOT NULL,
	storm_name TEXT,
	storm_type TEXT,
	latitude REAL,
	longitude REAL,
	movement TEXT,
	wind_speed INTEGER,
	pressure INTEGER,
	headline TEXT,
	report TEXT,
	report_link TEXT,
	report_date TEXT NOT NULL,
	wallet TEXT,
	wallet_url TEXT,
	status TEXT NOT NULL,
	recorded_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_storm_history_storm_id ON storm_history (storm_id);
CREATE INDEX IF NOT EXISTS idx_storm_history_season ON storm_history (season);
CREATE INDEX IF NOT EXISTS idx_storm_history_recorded_at ON storm_history (recorded_at);
`

// Store is a SQLite-backed storm store. It implements the pipeline's Store
// interface and the query surface used by the read API.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the database at path and bootstraps the
// schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY under
	// concurrent region processing.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// SyncRegions replaces the stored region list with the configured one,
// preserving configuration order.
func (s *Store) SyncRegions(ctx context.Context, regions []domain.Region) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	if _, err := tx.ExecContext(ctx, `DELETE FROM regions`); err != nil {
		return fmt.Errorf("clear regions: %w", err)
	}
	for i, r := range regions {
		active := 0
		if r.Active {
			active = 1
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO regions (id, name, feed_url, active, position) VALUES (?, ?, ?, ?, ?)`,
			r.ID, r.Name, r.FeedURL, active, i)
		if err != nil {
			return fmt.Errorf("insert region %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

// ListActiveRegions returns the active regions in configuration order.
func (s *Store) ListActiveRegions(ctx context.Context) ([]domain.Region, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, feed_url, active FROM regions WHERE active = 1 ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var regions []domain.Region
	for rows.Next() {
		var r domain.Region
		var active int
		if err := rows.Scan(&r.ID, &r.Name, &r.FeedURL, &active); err != nil {
			return nil, err
		}
		r.Active = active != 0
		regions = append(regions, r)
	}
	return regions, rows.Err()
}

const stormColumns = `storm_id, region_id, season, storm_name, storm_type,
	latitude, longitude, movement, wind_speed, pressure, headline, report,
	report_link, report_date, wallet, wallet_url, status, missed_cycles,
	created_at, updated_at`

// GetStormState returns the current state for a storm identifier, or nil
// when the storm has never been seen.
func (s *Store) GetStormState(ctx context.Context, stormID string) (*domain.StormState, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+stormColumns+` FROM storms WHERE storm_id = ?`, stormID)

	state, err := scanStormState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return state, nil
}

// UpsertStormState inserts or fully overwrites the state row for the storm.
func (s *Store) UpsertStormState(ctx context.Context, st domain.StormState) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO storms (`+stormColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(storm_id) DO UPDATE SET
			region_id = excluded.region_id,
			season = excluded.season,
			storm_name = excluded.storm_name,
			storm_type = excluded.storm_type,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			movement = excluded.movement,
			wind_speed = excluded.wind_speed,
			pressure = excluded.pressure,
			headline = excluded.headline,
			report = excluded.report,
			report_link = excluded.report_link,
			report_date = excluded.report_date,
			wallet = excluded.wallet,
			wallet_url = excluded.wallet_url,
			status = excluded.status,
			missed_cycles = excluded.missed_cycles,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at`,
		st.StormID, st.RegionID, st.Season, st.Name, string(st.StormType),
		st.Latitude, st.Longitude, st.Movement, st.WindSpeed, st.Pressure,
		st.Headline, st.Report, st.ReportLink, formatTime(st.ReportTime),
		st.Wallet, st.WalletURL, string(st.Status), st.MissedCycles,
		formatTime(st.CreatedAt), formatTime(st.UpdatedAt))
	return err
}

// AppendHistory appends an immutable history snapshot. History rows are never
// updated or deleted.
func (s *Store) AppendHistory(ctx context.Context, e domain.HistoryEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO storm_history (storm_id, region_id, season, storm_name,
			storm_type, latitude, longitude, movement, wind_speed, pressure,
			headline, report, report_link, report_date, wallet, wallet_url,
			status, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.StormID, e.RegionID, e.Season, e.Name, string(e.StormType),
		e.Latitude, e.Longitude, e.Movement, e.WindSpeed, e.Pressure,
		e.Headline, e.Report, e.ReportLink, formatTime(e.ReportTime),
		e.Wallet, e.WalletURL, string(e.Status), formatTime(e.RecordedAt))
	return err
}

// ListActiveStorms returns the active storms tracked for a region.
func (s *Store) ListActiveStorms(ctx context.Context, regionID string) ([]domain.StormState, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+stormColumns+` FROM storms WHERE status = ? AND region_id = ?`,
		string(domain.StatusActive), regionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectStormStates(rows)
}

// RecordMiss increments the consecutive-miss counter for a storm and returns
// the new count.
func (s *Store) RecordMiss(ctx context.Context, stormID string) (int, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE storms SET missed_cycles = missed_cycles + 1 WHERE storm_id = ?
		 RETURNING missed_cycles`, stormID)
	var misses int
	if err := row.Scan(&misses); err != nil {
		return 0, err
	}
	return misses, nil
}

// MarkInactive transitions a storm to inactive.
func (s *Store) MarkInactive(ctx context.Context, stormID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE storms SET status = ? WHERE storm_id = ?`,
		string(domain.StatusInactive), stormID)
	return err
}

// ListStorms returns storms matching the filter, newest update first, plus
// the total match count before limit/offset.
func (s *Store) ListStorms(ctx context.Context, f domain.StormFilter) ([]domain.StormState, int, error) {
	var conds []string
	var args []any

	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, f.Status)
	}
	if f.Season != 0 {
		conds = append(conds, "season = ?")
		args = append(args, f.Season)
	}
	if f.StormType != "" {
		conds = append(conds, "storm_type LIKE ?")
		args = append(args, "%"+strings.ToUpper(f.StormType)+"%")
	}
	if f.MinWindSpeed != 0 {
		conds = append(conds, "wind_speed >= ?")
		args = append(args, f.MinWindSpeed)
	}
	if f.RegionID != "" {
		conds = append(conds, "region_id = ?")
		args = append(args, f.RegionID)
	}
	if f.Name != "" {
		conds = append(conds, "storm_name LIKE ? COLLATE NOCASE")
		args = append(args, "%"+f.Name+"%")
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM storms`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + stormColumns + ` FROM storms` + where +
		` ORDER BY updated_at DESC LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, append(args, limit, f.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	storms, err := collectStormStates(rows)
	return storms, total, err
}

// ListHistory returns history snapshots for a storm, newest first.
func (s *Store) ListHistory(ctx context.Context, stormID string, limit, offset int) ([]domain.HistoryEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT storm_id, region_id, season, storm_name, storm_type, latitude,
			longitude, movement, wind_speed, pressure, headline, report,
			report_link, report_date, wallet, wallet_url, status, recorded_at
		FROM storm_history WHERE storm_id = ?
		ORDER BY recorded_at DESC LIMIT ? OFFSET ?`,
		stormID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.HistoryEntry
	for rows.Next() {
		var e domain.HistoryEntry
		var lat, lon sql.NullFloat64
		var wind, pressure sql.NullInt64
		var stormType, status, reportDate, recordedAt string
		err := rows.Scan(&e.StormID, &e.RegionID, &e.Season, &e.Name,
			&stormType, &lat, &lon, &e.Movement, &wind, &pressure,
			&e.Headline, &e.Report, &e.ReportLink, &reportDate,
			&e.Wallet, &e.WalletURL, &status, &recordedAt)
		if err != nil {
			return nil, err
		}
		e.StormType = domain.StormType(stormType)
		e.Status = domain.Status(status)
		e.Latitude = nullFloat(lat)
		e.Longitude = nullFloat(lon)
		e.WindSpeed = nullInt(wind)
		e.Pressure = nullInt(pressure)
		e.ReportTime = parseTime(reportDate)
		e.RecordedAt = parseTime(recordedAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountHistory returns the number of history snapshots for a storm.
func (s *Store) CountHistory(ctx context.Context, stormID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM storm_history WHERE storm_id = ?`, stormID).Scan(&n)
	return n, err
}

// --- scanning helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStormState(row rowScanner) (*domain.StormState, error) {
	var st domain.StormState
	var lat, lon sql.NullFloat64
	var wind, pressure sql.NullInt64
	var stormType, status, reportDate, createdAt, updatedAt string

	err := row.Scan(&st.StormID, &st.RegionID, &st.Season, &st.Name,
		&stormType, &lat, &lon, &st.Movement, &wind, &pressure,
		&st.Headline, &st.Report, &st.ReportLink, &reportDate,
		&st.Wallet, &st.WalletURL, &status, &st.MissedCycles,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	st.StormType = domain.StormType(stormType)
	st.Status = domain.Status(status)
	st.Latitude = nullFloat(lat)
	st.Longitude = nullFloat(lon)
	st.WindSpeed = nullInt(wind)
	st.Pressure = nullInt(pressure)
	st.ReportTime = parseTime(reportDate)
	st.CreatedAt = parseTime(createdAt)
	st.UpdatedAt = parseTime(updatedAt)
	return &st, nil
}

func collectStormStates(rows *sql.Rows) ([]domain.StormState, error) {
	var storms []domain.StormState
	for rows.Next() {
		st, err := scanStormState(rows)
		if err != nil {
			return nil, err
		}
		storms = append(storms, *st)
	}
	return storms, rows.Err()
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

// Times are stored as RFC 3339 UTC strings; exact round-tripping matters
// because the report timestamp is compared for equality by the reconciler.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
