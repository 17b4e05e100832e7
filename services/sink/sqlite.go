package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"sjsage522/doctorworker/internal/crawler"
	"sjsage522/doctorworker/logger"
	"sjsage522/doctorworker/pkg/errors"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS doctors (
	identity           TEXT PRIMARY KEY,
	name               TEXT NOT NULL,
	specialty          TEXT,
	qualifications     TEXT,
	experience         TEXT,
	reviews_count      TEXT,
	satisfaction       TEXT,
	fee                TEXT,
	city               TEXT,
	hospitals          TEXT NOT NULL DEFAULT '[]',
	available_days     TEXT,
	services           TEXT NOT NULL DEFAULT '[]',
	about              TEXT,
	url                TEXT,
	pmdc_verified      INTEGER NOT NULL DEFAULT 0,
	video_consultation INTEGER NOT NULL DEFAULT 0,
	source             TEXT NOT NULL,
	run_id             TEXT,
	updated_at         TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS doctors_city_specialty ON doctors (city, specialty);
`

const upsert = `
INSERT INTO doctors (
	identity, name, specialty, qualifications, experience, reviews_count,
	satisfaction, fee, city, hospitals, available_days, services, about, url,
	pmdc_verified, video_consultation, source, run_id, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(identity) DO UPDATE SET
	name = excluded.name,
	specialty = excluded.specialty,
	qualifications = excluded.qualifications,
	experience = excluded.experience,
	reviews_count = excluded.reviews_count,
	satisfaction = excluded.satisfaction,
	fee = excluded.fee,
	city = excluded.city,
	hospitals = excluded.hospitals,
	available_days = excluded.available_days,
	services = excluded.services,
	about = excluded.about,
	url = excluded.url,
	pmdc_verified = excluded.pmdc_verified,
	video_consultation = excluded.video_consultation,
	source = excluded.source,
	run_id = excluded.run_id,
	updated_at = excluded.updated_at
`

// SQLiteSink upserts records into a local SQLite database keyed by identity
type SQLiteSink struct {
	db  *sql.DB
	log *logger.Logger
}

// NewSQLiteSink opens (or creates) the database at path and ensures the schema
func NewSQLiteSink(ctx context.Context, path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.NewSink("sqlite", "failed to open "+path, err)
	}
	// one writer at a time; the orchestrator pushes from several goroutines
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, errors.NewSink("sqlite", "failed to create schema", err)
	}
	return &SQLiteSink{db: db, log: logger.ForSink("sqlite")}, nil
}

// Push inserts record or replaces the row with the same identity
func (s *SQLiteSink) Push(ctx context.Context, record crawler.NormalizedRecord) error {
	hospitals, err := jsonList(record.Hospitals)
	if err != nil {
		return errors.NewSink("sqlite", "failed to encode hospitals", err)
	}
	services, err := jsonList(record.Services)
	if err != nil {
		return errors.NewSink("sqlite", "failed to encode services", err)
	}

	_, err = s.db.ExecContext(ctx, upsert,
		record.Identity(),
		nullable(record.Name),
		nullable(record.Specialty),
		nullable(record.Qualifications),
		nullable(record.Experience),
		nullable(record.ReviewsCount),
		nullable(record.Satisfaction),
		nullable(record.Fee),
		nullable(record.City),
		hospitals,
		nullable(record.AvailableDays),
		services,
		nullable(record.About),
		nullable(record.URL),
		record.PMDCVerified,
		record.VideoConsultation,
		record.Source,
		crawler.RunIDFromContext(ctx),
		time.Now().UTC(),
	)
	if err != nil {
		return errors.NewSink("sqlite", "failed to upsert "+record.Identity(), err)
	}
	return nil
}

// Count returns the number of stored doctors
func (s *SQLiteSink) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM doctors").Scan(&n); err != nil {
		return 0, errors.NewSink("sqlite", "failed to count rows", err)
	}
	return n, nil
}

// Close closes the database
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

// nullable maps an absent field to SQL NULL
func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func jsonList(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	b, err := json.Marshal(items)
	return string(b), err
}
