// Package csv decodes station readings from CSV documents.
package csv

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/couchcryptid/station-clusters/internal/domain"
)

// Column names every readings document must carry.
const (
	ColumnStationID = "station_id"
	ColumnTS        = "ts"
	ColumnNbBikes   = "nb_bikes"
)

// Timestamp layouts accepted in the ts column. Layouts without an offset are
// read as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

// ReadReadings decodes a CSV document with a header row. Extra columns are
// ignored; rows are returned in document order.
func ReadReadings(r io.Reader) ([]domain.Reading, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedInput, df.Err)
	}

	names := df.Names()
	for _, col := range []string{ColumnStationID, ColumnTS, ColumnNbBikes} {
		if !contains(names, col) {
			return nil, fmt.Errorf("%w: missing column %q", domain.ErrMalformedInput, col)
		}
	}

	ids := df.Col(ColumnStationID).Records()
	stamps := df.Col(ColumnTS).Records()
	bikes := df.Col(ColumnNbBikes).Records()

	readings := make([]domain.Reading, df.Nrow())
	for i := range readings {
		ts, err := parseTime(stamps[i])
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", domain.ErrMalformedInput, i+1, err)
		}
		n, err := strconv.ParseFloat(strings.TrimSpace(bikes[i]), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: nb_bikes %q", domain.ErrMalformedInput, i+1, bikes[i])
		}
		readings[i] = domain.Reading{
			StationID: strings.TrimSpace(ids[i]),
			TS:        ts,
			NbBikes:   n,
		}
	}
	if err := domain.ValidateReadings(readings); err != nil {
		return nil, err
	}
	return readings, nil
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable ts %q", s)
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// FileSource loads readings from a CSV file on disk.
type FileSource struct {
	Path string
}

// NewFileSource creates a source reading path on every run.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

// LoadReadings opens and decodes the file.
func (s *FileSource) LoadReadings(_ context.Context) ([]domain.Reading, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open readings file: %w", err)
	}
	defer f.Close()

	readings, err := ReadReadings(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.Path, err)
	}
	return readings, nil
}
