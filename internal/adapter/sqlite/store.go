// Package sqlite stores readings and clustering results in a SQLite file
// using the pure-Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/couchcryptid/station-clusters/internal/adapter/sqlschema"
	"github.com/couchcryptid/station-clusters/internal/domain"
)

// Tables names the tables the store reads from and writes to.
type Tables struct {
	Readings  string
	Labels    string
	Centroids string
}

// Store is both a reading source and a result sink.
type Store struct {
	db     *sql.DB
	tables Tables
	window domain.Window
}

// Open opens (or creates) the database at path. Use ":memory:" for a
// throwaway database.
func Open(path string, tables Tables, window domain.Window) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return &Store{db: db, tables: tables, window: window}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Name identifies the store as a sink.
func (s *Store) Name() string { return "sqlite" }

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// EnsureReadingsTable creates the readings table when it does not exist.
func (s *Store) EnsureReadingsTable(ctx context.Context) error {
	ddl := "CREATE TABLE IF NOT EXISTS " + sqlschema.QuoteIdent(s.tables.Readings) +
		" (station_id TEXT NOT NULL, ts TEXT NOT NULL, nb_bikes REAL NOT NULL)"
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create readings table: %w", err)
	}
	return nil
}

// SaveReadings appends readings in one transaction. Timestamps are stored as
// RFC 3339 text.
func (s *Store) SaveReadings(ctx context.Context, readings []domain.Reading) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, sqlschema.InsertStatement(s.tables.Readings,
			[]string{"station_id", "ts", "nb_bikes"}, placeholder))
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range readings {
			if _, err := stmt.ExecContext(ctx, r.StationID, r.TS.Format(time.RFC3339Nano), r.NbBikes); err != nil {
				return fmt.Errorf("insert reading for %s: %w", r.StationID, err)
			}
		}
		return nil
	})
}

// LoadReadings reads every reading inside the configured window.
func (s *Store) LoadReadings(ctx context.Context) ([]domain.Reading, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT station_id, ts, nb_bikes FROM "+sqlschema.QuoteIdent(s.tables.Readings))
	if err != nil {
		return nil, fmt.Errorf("query readings: %w", err)
	}
	defer rows.Close()

	var readings []domain.Reading
	for rows.Next() {
		var (
			r  domain.Reading
			ts string
		)
		if err := rows.Scan(&r.StationID, &ts, &r.NbBikes); err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		r.TS, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("%w: station %s: ts %q", domain.ErrMalformedInput, r.StationID, ts)
		}
		if s.window.Contains(r.TS) {
			readings = append(readings, r)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read readings: %w", err)
	}
	return readings, nil
}

// SaveClusters replaces the labels and centroids tables with the run.
func (s *Store) SaveClusters(ctx context.Context, run domain.ClusterRun) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range []string{
			sqlschema.DropTable(s.tables.Labels),
			sqlschema.CreateLabels(s.tables.Labels, sqlschema.SQLite),
			sqlschema.DropTable(s.tables.Centroids),
			sqlschema.CreateCentroids(s.tables.Centroids, run.Hours, sqlschema.SQLite),
		} {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("prepare result tables: %w", err)
			}
		}

		insertLabel := sqlschema.InsertStatement(s.tables.Labels,
			[]string{sqlschema.ColumnStation, sqlschema.ColumnLabel}, placeholder)
		for _, l := range run.Labels {
			if _, err := tx.ExecContext(ctx, insertLabel, l.StationID, l.Label); err != nil {
				return fmt.Errorf("insert label for %s: %w", l.StationID, err)
			}
		}

		insertCentroid := sqlschema.InsertStatement(s.tables.Centroids,
			sqlschema.CentroidColumns(run.Hours), placeholder)
		for _, row := range sqlschema.CentroidRows(run.Clustering) {
			if _, err := tx.ExecContext(ctx, insertCentroid, row...); err != nil {
				return fmt.Errorf("insert centroid %v: %w", row[0], err)
			}
		}
		return nil
	})
}

// LoadLabels returns the stored labels ordered by station id.
func (s *Store) LoadLabels(ctx context.Context) ([]domain.StationLabel, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+sqlschema.QuoteIdent(sqlschema.ColumnStation)+", "+
		sqlschema.QuoteIdent(sqlschema.ColumnLabel)+" FROM "+sqlschema.QuoteIdent(s.tables.Labels)+
		" ORDER BY 1")
	if err != nil {
		return nil, fmt.Errorf("query labels: %w", err)
	}
	defer rows.Close()

	var labels []domain.StationLabel
	for rows.Next() {
		var l domain.StationLabel
		if err := rows.Scan(&l.StationID, &l.Label); err != nil {
			return nil, fmt.Errorf("scan label: %w", err)
		}
		labels = append(labels, l)
	}
	return labels, rows.Err()
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback() //nolint:errcheck // fn error takes precedence
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func placeholder(int) string { return "?" }
