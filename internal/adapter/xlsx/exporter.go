// Package xlsx writes clustering runs to an Excel workbook.
package xlsx

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/station-clusters/internal/domain"
)

// Sheet names of the exported workbook.
const (
	SheetLabels    = "labels"
	SheetCentroids = "centroids"
	SheetRun       = "run"
)

// Exporter overwrites a workbook at Path with every run it receives.
type Exporter struct {
	Path string
}

// NewExporter creates an exporter for path.
func NewExporter(path string) *Exporter {
	return &Exporter{Path: path}
}

// Name identifies the sink.
func (e *Exporter) Name() string { return "xlsx" }

// SaveClusters writes labels, centroids and run metadata sheets, replacing
// any previous file.
func (e *Exporter) SaveClusters(_ context.Context, run domain.ClusterRun) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetLabels); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeLabels(f, run.Labels); err != nil {
		return err
	}
	if err := writeCentroids(f, run.Clustering); err != nil {
		return err
	}
	if err := writeRun(f, run); err != nil {
		return err
	}

	if dir := filepath.Dir(e.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create export directory: %w", err)
		}
	}
	if err := f.SaveAs(e.Path); err != nil {
		return fmt.Errorf("save workbook %s: %w", e.Path, err)
	}
	return nil
}

func writeLabels(f *excelize.File, labels []domain.StationLabel) error {
	if err := setRow(f, SheetLabels, 1, []any{"id_station", "labels"}); err != nil {
		return err
	}
	for i, l := range labels {
		if err := setRow(f, SheetLabels, i+2, []any{l.StationID, l.Label}); err != nil {
			return err
		}
	}
	return nil
}

func writeCentroids(f *excelize.File, c domain.Clustering) error {
	if _, err := f.NewSheet(SheetCentroids); err != nil {
		return fmt.Errorf("create sheet %s: %w", SheetCentroids, err)
	}
	header := []any{"index"}
	for _, h := range c.Hours {
		header = append(header, strconv.Itoa(h))
	}
	if err := setRow(f, SheetCentroids, 1, header); err != nil {
		return err
	}
	for label := range c.ClusterCount() {
		row := []any{label}
		for _, v := range c.Centroid(label) {
			row = append(row, v)
		}
		if err := setRow(f, SheetCentroids, label+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeRun(f *excelize.File, run domain.ClusterRun) error {
	if _, err := f.NewSheet(SheetRun); err != nil {
		return fmt.Errorf("create sheet %s: %w", SheetRun, err)
	}
	rows := [][]any{
		{"run_id", run.RunID},
		{"computed_at", run.ComputedAt.Format(time.RFC3339)},
		{"inertia", run.Inertia},
		{"iterations", run.Iterations},
	}
	for _, d := range run.Profile.Dropped {
		rows = append(rows, []any{"dropped", d.StationID, d.Reason})
	}
	for i, r := range rows {
		if err := setRow(f, SheetRun, i+1, r); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}
