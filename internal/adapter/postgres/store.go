// Package postgres reads station readings from and writes clustering results
// to PostgreSQL through gorm.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/couchcryptid/station-clusters/internal/adapter/sqlschema"
	"github.com/couchcryptid/station-clusters/internal/config"
	"github.com/couchcryptid/station-clusters/internal/domain"
)

// Store is both a reading source and a result sink.
type Store struct {
	db        *gorm.DB
	readings  string
	labels    string
	centroids string
	window    domain.Window
	batchSize int
}

// readingRow is the scan target for the readings query.
type readingRow struct {
	StationID string    `gorm:"column:station_id"`
	TS        time.Time `gorm:"column:ts"`
	NbBikes   float64   `gorm:"column:nb_bikes"`
}

// labelRow is one row of the labels table.
type labelRow struct {
	IDStation string `gorm:"column:id_station"`
	Labels    int    `gorm:"column:labels"`
}

// Open connects using the configured DSN. SQL statements are logged through
// logger at debug level.
func Open(cfg *config.Config, logger *slog.Logger) (*Store, error) {
	db, err := gorm.Open(postgres.Open(cfg.PostgresDSN()), &gorm.Config{
		Logger: gormlogger.New(
			slog.NewLogLogger(logger.Handler(), slog.LevelDebug),
			gormlogger.Config{
				SlowThreshold:             time.Second,
				LogLevel:                  gormlogger.Warn,
				IgnoreRecordNotFoundError: true,
			},
		),
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return New(db, cfg), nil
}

// New wraps an existing gorm handle.
func New(db *gorm.DB, cfg *config.Config) *Store {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 100
	}
	return &Store{
		db:        db,
		readings:  cfg.ReadingsTable,
		labels:    cfg.LabelsTable,
		centroids: cfg.CentroidsTable,
		window:    cfg.Window,
		batchSize: batch,
	}
}

// Name identifies the store as a sink.
func (s *Store) Name() string { return "postgres" }

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// LoadReadings selects the readings inside the configured window.
func (s *Store) LoadReadings(ctx context.Context) ([]domain.Reading, error) {
	q := s.db.WithContext(ctx).
		Table(s.readings).
		Select("station_id::text AS station_id, ts, nb_bikes::float8 AS nb_bikes")
	q = applyWindow(q, s.window)

	var rows []readingRow
	if err := q.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("query readings: %w", err)
	}

	readings := make([]domain.Reading, len(rows))
	for i, r := range rows {
		readings[i] = domain.Reading{StationID: r.StationID, TS: r.TS, NbBikes: r.NbBikes}
	}
	return readings, nil
}

func applyWindow(q *gorm.DB, w domain.Window) *gorm.DB {
	if !w.Start.IsZero() {
		q = q.Where("ts >= ?", w.Start)
	}
	if !w.End.IsZero() {
		q = q.Where("ts < ?", w.End)
	}
	return q
}

// SaveClusters replaces the labels and centroids tables in one transaction.
func (s *Store) SaveClusters(ctx context.Context, run domain.ClusterRun) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, stmt := range []string{
			sqlschema.DropTable(s.labels),
			sqlschema.CreateLabels(s.labels, sqlschema.Postgres),
			sqlschema.DropTable(s.centroids),
			sqlschema.CreateCentroids(s.centroids, run.Hours, sqlschema.Postgres),
		} {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("prepare result tables: %w", err)
			}
		}

		if rows := labelRows(run.Labels); len(rows) > 0 {
			if err := tx.Table(s.labels).CreateInBatches(rows, s.batchSize).Error; err != nil {
				return fmt.Errorf("insert labels: %w", err)
			}
		}

		// gorm rewrites "?" into the dialect's positional parameters.
		insert := sqlschema.InsertStatement(s.centroids, sqlschema.CentroidColumns(run.Hours), func(int) string { return "?" })
		for _, row := range sqlschema.CentroidRows(run.Clustering) {
			if err := tx.Exec(insert, row...).Error; err != nil {
				return fmt.Errorf("insert centroid %v: %w", row[0], err)
			}
		}
		return nil
	})
}

// LoadLabels returns the stored labels ordered by station id.
func (s *Store) LoadLabels(ctx context.Context) ([]domain.StationLabel, error) {
	var rows []labelRow
	if err := s.db.WithContext(ctx).Table(s.labels).Order("id_station").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query labels: %w", err)
	}
	labels := make([]domain.StationLabel, len(rows))
	for i, r := range rows {
		labels[i] = domain.StationLabel{StationID: r.IDStation, Label: r.Labels}
	}
	return labels, nil
}

func labelRows(labels []domain.StationLabel) []labelRow {
	rows := make([]labelRow, len(labels))
	for i, l := range labels {
		rows[i] = labelRow{IDStation: l.StationID, Labels: l.Label}
	}
	return rows
}
