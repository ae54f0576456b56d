package domain

import (
	"math"
	"sort"
	"time"
)

// DefaultResamplePeriod is the grid step station series are resampled onto.
const DefaultResamplePeriod = 5 * time.Minute

// series is a station's readings resampled onto a regular grid. values[i]
// holds the bucket starting at start + i*period.
type series struct {
	start  time.Time
	period time.Duration
	values []float64
}

func (s series) at(i int) time.Time {
	return s.start.Add(time.Duration(i) * s.period)
}

// resample buckets a single station's readings onto a grid anchored at
// midnight of the first reading's day, averages each bucket and backward-fills
// empty buckets. It reports false when the series holds no value at all.
func resample(readings []Reading, period time.Duration) (series, bool) {
	if len(readings) == 0 {
		return series{}, false
	}

	sorted := make([]Reading, len(readings))
	copy(sorted, readings)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].TS.Before(sorted[j].TS) })

	first, last := sorted[0].TS, sorted[len(sorted)-1].TS
	origin := time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, first.Location())
	start := origin.Add(first.Sub(origin) / period * period)
	n := int(last.Sub(start)/period) + 1

	sums := make([]float64, n)
	counts := make([]int, n)
	for _, r := range sorted {
		i := int(r.TS.Sub(start) / period)
		sums[i] += r.NbBikes
		counts[i]++
	}

	values := make([]float64, n)
	for i := range values {
		if counts[i] == 0 {
			values[i] = math.NaN()
			continue
		}
		values[i] = sums[i] / float64(counts[i])
	}

	if !backfill(values) {
		return series{}, false
	}
	return series{start: start, period: period, values: values}, true
}

// backfill replaces each NaN with the next non-NaN value in a single
// right-to-left scan. It reports false if any NaN is left, which only happens
// when the trailing buckets are empty.
func backfill(values []float64) bool {
	next := math.NaN()
	for i := len(values) - 1; i >= 0; i-- {
		if math.IsNaN(values[i]) {
			values[i] = next
			continue
		}
		next = values[i]
	}
	return len(values) > 0 && !math.IsNaN(values[len(values)-1])
}
