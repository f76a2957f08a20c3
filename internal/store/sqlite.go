// Package store persists pipeline artifacts and county reference data in
// SQLite. The database is the service's system of record for generated
// reports; map images live in the map store, not here.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/couchcryptid/clima-scope/internal/domain"
)

// SQLite implements domain.CountyStore and domain.ReportStore.
type SQLite struct {
	db     *sql.DB
	logger *slog.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS counties (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	region TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS weather_reports (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	county_id TEXT NOT NULL REFERENCES counties(id),
	period_start TEXT NOT NULL,
	period_end TEXT NOT NULL,
	year INTEGER NOT NULL,
	week_number INTEGER NOT NULL,
	raw_data BLOB NOT NULL,
	narrative BLOB NOT NULL,
	status TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS pdf_reports (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	weather_report_id INTEGER NOT NULL REFERENCES weather_reports(id),
	county_id TEXT NOT NULL REFERENCES counties(id),
	file_path TEXT NOT NULL,
	maps_available TEXT NOT NULL,
	file_size_bytes INTEGER NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS complete_reports (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	weather_report_id INTEGER NOT NULL REFERENCES weather_reports(id),
	pdf_report_id INTEGER NOT NULL REFERENCES pdf_reports(id),
	county_id TEXT NOT NULL REFERENCES counties(id),
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_weather_reports_county_week
	ON weather_reports(county_id, year, week_number);
`

// Open opens (creating if necessary) the database at path and applies the
// schema. Counties are seeded on first use.
func Open(path string, logger *slog.Logger) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	s := &SQLite{db: db, logger: logger}
	if err := s.seedCounties(); err != nil {
		return nil, err
	}
	logger.Info("report store opened", "path", path)
	return s, nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// CheckReadiness pings the database.
func (s *SQLite) CheckReadiness(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// kenyanCounties is the KNBS county register, keyed by the zero-padded
// county code used throughout the service.
var kenyanCounties = []domain.County{
	{ID: "01", Name: "Mombasa", Region: "Coast"},
	{ID: "02", Name: "Kwale", Region: "Coast"},
	{ID: "03", Name: "Kilifi", Region: "Coast"},
	{ID: "04", Name: "Tana River", Region: "Coast"},
	{ID: "05", Name: "Lamu", Region: "Coast"},
	{ID: "06", Name: "Taita-Taveta", Region: "Coast"},
	{ID: "07", Name: "Garissa", Region: "North Eastern"},
	{ID: "08", Name: "Wajir", Region: "North Eastern"},
	{ID: "09", Name: "Mandera", Region: "North Eastern"},
	{ID: "10", Name: "Marsabit", Region: "Eastern"},
	{ID: "11", Name: "Isiolo", Region: "Eastern"},
	{ID: "12", Name: "Meru", Region: "Eastern"},
	{ID: "13", Name: "Tharaka-Nithi", Region: "Eastern"},
	{ID: "14", Name: "Embu", Region: "Eastern"},
	{ID: "15", Name: "Kitui", Region: "Eastern"},
	{ID: "16", Name: "Machakos", Region: "Eastern"},
	{ID: "17", Name: "Makueni", Region: "Eastern"},
	{ID: "18", Name: "Nyandarua", Region: "Central"},
	{ID: "19", Name: "Nyeri", Region: "Central"},
	{ID: "20", Name: "Kirinyaga", Region: "Central"},
	{ID: "21", Name: "Murang'a", Region: "Central"},
	{ID: "22", Name: "Kiambu", Region: "Central"},
	{ID: "23", Name: "Turkana", Region: "Rift Valley"},
	{ID: "24", Name: "West Pokot", Region: "Rift Valley"},
	{ID: "25", Name: "Samburu", Region: "Rift Valley"},
	{ID: "26", Name: "Trans Nzoia", Region: "Rift Valley"},
	{ID: "27", Name: "Uasin Gishu", Region: "Rift Valley"},
	{ID: "28", Name: "Elgeyo-Marakwet", Region: "Rift Valley"},
	{ID: "29", Name: "Nandi", Region: "Rift Valley"},
	{ID: "30", Name: "Baringo", Region: "Rift Valley"},
	{ID: "31", Name: "Laikipia", Region: "Rift Valley"},
	{ID: "32", Name: "Nakuru", Region: "Rift Valley"},
	{ID: "33", Name: "Narok", Region: "Rift Valley"},
	{ID: "34", Name: "Kajiado", Region: "Rift Valley"},
	{ID: "35", Name: "Kericho", Region: "Rift Valley"},
	{ID: "36", Name: "Bomet", Region: "Rift Valley"},
	{ID: "37", Name: "Kakamega", Region: "Western"},
	{ID: "38", Name: "Vihiga", Region: "Western"},
	{ID: "39", Name: "Bungoma", Region: "Western"},
	{ID: "40", Name: "Busia", Region: "Western"},
	{ID: "41", Name: "Siaya", Region: "Nyanza"},
	{ID: "42", Name: "Kisumu", Region: "Nyanza"},
	{ID: "43", Name: "Homa Bay", Region: "Nyanza"},
	{ID: "44", Name: "Migori", Region: "Nyanza"},
	{ID: "45", Name: "Kisii", Region: "Nyanza"},
	{ID: "46", Name: "Nyamira", Region: "Nyanza"},
	{ID: "47", Name: "Nairobi", Region: "Nairobi"},
}

func (s *SQLite) seedCounties() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin county seed: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, c := range kenyanCounties {
		if _, err := tx.Exec(
			`INSERT INTO counties (id, name, region) VALUES (?, ?, ?)
			 ON CONFLICT(id) DO NOTHING`, c.ID, c.Name, c.Region); err != nil {
			return fmt.Errorf("seed county %s: %w", c.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit county seed: %w", err)
	}
	return nil
}

// GetCounty returns (nil, nil) for an unknown id.
func (s *SQLite) GetCounty(ctx context.Context, id string) (*domain.County, error) {
	var c domain.County
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, region FROM counties WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.Region)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select county: %w", err)
	}
	return &c, nil
}

// CreateWeatherReport inserts the record and returns its id.
func (s *SQLite) CreateWeatherReport(ctx context.Context, rec *domain.WeatherReportRecord) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO weather_reports
		 (county_id, period_start, period_end, year, week_number, raw_data, narrative, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.CountyID, rec.PeriodStart, rec.PeriodEnd, rec.Year, rec.WeekNumber,
		rec.RawData, rec.Narrative, rec.Status, rec.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("insert weather report: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("weather report id: %w", err)
	}
	rec.ID = id
	return id, nil
}

// CreatePDFReport inserts the record and returns its id. The map
// availability set is stored as JSON.
func (s *SQLite) CreatePDFReport(ctx context.Context, rec *domain.PDFReportRecord) (int64, error) {
	mapsJSON, err := json.Marshal(rec.MapsAvailable)
	if err != nil {
		return 0, fmt.Errorf("encode maps availability: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO pdf_reports
		 (weather_report_id, county_id, file_path, maps_available, file_size_bytes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.WeatherReportID, rec.CountyID, rec.FilePath, string(mapsJSON),
		rec.FileSizeBytes, rec.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("insert pdf report: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("pdf report id: %w", err)
	}
	rec.ID = id
	return id, nil
}

// CreateCompleteReport inserts the record and returns its id.
func (s *SQLite) CreateCompleteReport(ctx context.Context, rec *domain.CompleteReportRecord) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO complete_reports (weather_report_id, pdf_report_id, county_id, created_at)
		 VALUES (?, ?, ?, ?)`,
		rec.WeatherReportID, rec.PDFReportID, rec.CountyID, rec.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("insert complete report: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("complete report id: %w", err)
	}
	rec.ID = id
	return id, nil
}

// MarkWeatherReportProcessed flips the report's status once its artifacts
// are linked.
func (s *SQLite) MarkWeatherReportProcessed(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE weather_reports SET status = 'processed' WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark weather report processed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark weather report processed: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("weather report %d not found", id)
	}
	return nil
}
