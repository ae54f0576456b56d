package domain

import (
	"time"
)

// monday is 2024-04-22, a Monday.
var monday = time.Date(2024, time.April, 22, 0, 0, 0, 0, time.UTC)

// generate emits one reading every step from start for the given duration,
// with nb_bikes taken from fn.
func generate(station string, start time.Time, d, step time.Duration, fn func(time.Time) float64) []Reading {
	out := make([]Reading, 0, int(d/step))
	for t := start; t.Before(start.Add(d)); t = t.Add(step) {
		out = append(out, Reading{StationID: station, TS: t, NbBikes: fn(t)})
	}
	return out
}

// morningPeak is full before noon and nearly empty after.
func morningPeak(t time.Time) float64 {
	if t.Hour() < 12 {
		return 18
	}
	return 2
}

// eveningPeak is the mirror image of morningPeak.
func eveningPeak(t time.Time) float64 {
	if t.Hour() < 12 {
		return 3
	}
	return 15
}

// flat is constant all day.
func flat(time.Time) float64 { return 9 }

func always(v float64) func(time.Time) float64 {
	return func(time.Time) float64 { return v }
}
