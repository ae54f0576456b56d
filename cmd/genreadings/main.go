// Command genreadings writes a deterministic synthetic readings dataset for
// local runs and fixtures. Stations follow a morning, evening or midday
// pattern, and every fifth station never holds a bike.
//
// Usage:
//
//	go run ./cmd/genreadings \
//	  -out data/readings.csv \
//	  -stations 40 -days 14 -start 2024-04-22 -step 5m -seed 1
//
// An -out path ending in .db writes the readings table of a SQLite database
// instead of a CSV file.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"

	"github.com/couchcryptid/station-clusters/internal/adapter/sqlite"
	"github.com/couchcryptid/station-clusters/internal/domain"
)

// Station patterns.
const (
	patternMorning = iota
	patternEvening
	patternMidday
	patternCount
)

type options struct {
	stations int
	days     int
	start    time.Time
	step     time.Duration
	seed     uint64
}

// csvRow is the gota row shape of the generated CSV.
type csvRow struct {
	StationID string `dataframe:"station_id"`
	TS        string `dataframe:"ts"`
	NbBikes   int    `dataframe:"nb_bikes"`
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path (.csv or .db)")
	stations := flag.Int("stations", 20, "number of stations")
	days := flag.Int("days", 14, "number of days")
	start := flag.String("start", "2024-04-22", "first day (YYYY-MM-DD, UTC)")
	step := flag.Duration("step", 5*time.Minute, "interval between readings")
	seed := flag.Uint64("seed", 0, "random seed")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	first, err := time.Parse(time.DateOnly, *start)
	if err != nil {
		return fmt.Errorf("invalid -start: %w", err)
	}
	if *stations <= 0 || *days <= 0 || *step <= 0 {
		return fmt.Errorf("-stations, -days and -step must be positive")
	}

	readings := generate(options{stations: *stations, days: *days, start: first, step: *step, seed: *seed})
	log.Printf("generated %d readings for %d stations", len(readings), *stations)

	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		return err
	}
	if strings.HasSuffix(*out, ".db") {
		err = writeSQLite(*out, readings)
	} else {
		err = writeCSV(*out, readings)
	}
	if err != nil {
		return fmt.Errorf("writing %s: %w", *out, err)
	}
	log.Printf("wrote %s", *out)
	return nil
}

// generate builds the readings station by station in time order.
func generate(opts options) []domain.Reading {
	rng := rand.New(rand.NewPCG(opts.seed, opts.seed))
	perDay := int((24 * time.Hour) / opts.step)
	readings := make([]domain.Reading, 0, opts.stations*opts.days*perDay)

	for i := range opts.stations {
		id := strconv.Itoa(1001 + i)
		capacity := 10 + rng.IntN(21)
		empty := i%5 == 4
		pattern := i % patternCount

		for t := opts.start; t.Before(opts.start.AddDate(0, 0, opts.days)); t = t.Add(opts.step) {
			n := 0
			if !empty {
				level := shape(pattern, t) + rng.NormFloat64()*0.05
				n = int(math.Round(float64(capacity) * math.Min(1, math.Max(0, level))))
			}
			readings = append(readings, domain.Reading{StationID: id, TS: t, NbBikes: float64(n)})
		}
	}
	return readings
}

// shape returns the expected fill ratio of a pattern at t. Weekends are flat.
func shape(pattern int, t time.Time) float64 {
	if wd := t.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return 0.5
	}
	h := float64(t.Hour()) + float64(t.Minute())/60
	var peak float64
	switch pattern {
	case patternMorning:
		peak = 8.5
	case patternEvening:
		peak = 18
	default:
		peak = 13
	}
	return 0.15 + 0.8*math.Exp(-(h-peak)*(h-peak)/8)
}

func writeCSV(path string, readings []domain.Reading) error {
	rows := make([]csvRow, len(readings))
	for i, r := range readings {
		rows[i] = csvRow{StationID: r.StationID, TS: r.TS.Format(time.RFC3339), NbBikes: int(r.NbBikes)}
	}
	df := dataframe.LoadStructs(rows)
	if df.Err != nil {
		return df.Err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := df.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeSQLite(path string, readings []domain.Reading) error {
	store, err := sqlite.Open(path, sqlite.Tables{Readings: "timeseries"}, domain.Window{})
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.EnsureReadingsTable(ctx); err != nil {
		return err
	}
	return store.SaveReadings(ctx, readings)
}
