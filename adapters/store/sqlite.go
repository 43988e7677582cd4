package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cdrlens/domain/analysis"
	"cdrlens/domain/carrier"
	"cdrlens/domain/core"
	"cdrlens/internal/pipeline"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	carrier     TEXT NOT NULL,
	source      TEXT NOT NULL,
	state       TEXT NOT NULL,
	started_at  TIMESTAMP NOT NULL,
	finished_at TIMESTAMP NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	insights    TEXT NOT NULL DEFAULT '[]',
	artifacts   TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS geocache (
	cache_key TEXT PRIMARY KEY,
	lat       REAL NOT NULL,
	lon       REAL NOT NULL,
	address   TEXT NOT NULL
);
`

// Store persists run history and the reverse-geocode cache in SQLite.
type Store struct {
	db *sqlx.DB
}

// Open opens (creating if needed) the database at path and applies the
// schema.
func Open(path string) (*Store, error) {
	db, err := sqlx.Connect("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type runRow struct {
	ID         string    `db:"id"`
	Carrier    string    `db:"carrier"`
	Source     string    `db:"source"`
	State      string    `db:"state"`
	StartedAt  time.Time `db:"started_at"`
	FinishedAt time.Time `db:"finished_at"`
	Error      string    `db:"error"`
	Insights   string    `db:"insights"`
	Artifacts  string    `db:"artifacts"`
}

func toRow(rec pipeline.RunRecord) (runRow, error) {
	insights, err := json.Marshal(rec.Insights)
	if err != nil {
		return runRow{}, err
	}
	artifacts, err := json.Marshal(rec.Artifacts)
	if err != nil {
		return runRow{}, err
	}
	return runRow{
		ID:         rec.ID.String(),
		Carrier:    string(rec.Carrier),
		Source:     rec.Source,
		State:      string(rec.State),
		StartedAt:  rec.StartedAt,
		FinishedAt: rec.FinishedAt,
		Error:      rec.Error,
		Insights:   string(insights),
		Artifacts:  string(artifacts),
	}, nil
}

func (r runRow) toRecord() (pipeline.RunRecord, error) {
	rec := pipeline.RunRecord{
		ID:         core.RunID(r.ID),
		Carrier:    carrier.Key(r.Carrier),
		Source:     r.Source,
		State:      analysis.RunState(r.State),
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Error:      r.Error,
	}
	if err := json.Unmarshal([]byte(r.Insights), &rec.Insights); err != nil {
		return rec, err
	}
	if err := json.Unmarshal([]byte(r.Artifacts), &rec.Artifacts); err != nil {
		return rec, err
	}
	return rec, nil
}

// Record upserts a finished run.
func (s *Store) Record(ctx context.Context, rec pipeline.RunRecord) error {
	row, err := toRow(rec)
	if err != nil {
		return fmt.Errorf("encoding run %s: %w", rec.ID, err)
	}
	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO runs (id, carrier, source, state, started_at, finished_at, error, insights, artifacts)
		VALUES (:id, :carrier, :source, :state, :started_at, :finished_at, :error, :insights, :artifacts)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			finished_at = excluded.finished_at,
			error = excluded.error,
			insights = excluded.insights,
			artifacts = excluded.artifacts`, row)
	if err != nil {
		return fmt.Errorf("recording run %s: %w", rec.ID, err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]pipeline.RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []runRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	recs := make([]pipeline.RunRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toRecord()
		if err != nil {
			return nil, fmt.Errorf("decoding run %s: %w", row.ID, err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// GetRun returns one run by id, or ErrRunNotFound.
func (s *Store) GetRun(ctx context.Context, id core.RunID) (pipeline.RunRecord, error) {
	var row runRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM runs WHERE id = ?`, id.String())
	if errors.Is(err, sql.ErrNoRows) {
		return pipeline.RunRecord{}, core.ErrRunNotFound
	}
	if err != nil {
		return pipeline.RunRecord{}, fmt.Errorf("loading run %s: %w", id, err)
	}
	return row.toRecord()
}

// SaveGeocode persists one resolved address.
func (s *Store) SaveGeocode(ctx context.Context, lat, lon float64, address string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO geocache (cache_key, lat, lon, address)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET address = excluded.address`,
		geoKey(lat, lon), lat, lon, address)
	if err != nil {
		return fmt.Errorf("saving geocode: %w", err)
	}
	return nil
}

// LoadGeocodes returns every persisted address keyed by coordinates.
func (s *Store) LoadGeocodes(ctx context.Context) (map[string]string, error) {
	var rows []struct {
		Key     string `db:"cache_key"`
		Address string `db:"address"`
	}
	err := s.db.SelectContext(ctx, &rows, `SELECT cache_key, address FROM geocache`)
	if err != nil {
		return nil, fmt.Errorf("loading geocodes: %w", err)
	}
	out := make(map[string]string, len(rows))
	for _, row := range rows {
		out[row.Key] = row.Address
	}
	return out, nil
}

func geoKey(lat, lon float64) string {
	return fmt.Sprintf("%.6f,%.6f", lat, lon)
}
