package domain

import (
	"fmt"
	"math"
	"time"
)

// Reading is one observation of available bikes at a station.
type Reading struct {
	StationID string    `json:"station_id"`
	TS        time.Time `json:"ts"`
	NbBikes   float64   `json:"nb_bikes"`
}

// ValidateReadings checks every reading and reports the first problem found.
func ValidateReadings(readings []Reading) error {
	for i := range readings {
		if err := readings[i].Validate(); err != nil {
			return fmt.Errorf("reading %d: %w", i, err)
		}
	}
	return nil
}

// Validate reports whether r can take part in a profile.
func (r Reading) Validate() error {
	switch {
	case r.StationID == "":
		return fmt.Errorf("%w: empty station_id", ErrMalformedInput)
	case r.TS.IsZero():
		return fmt.Errorf("%w: station %s: missing ts", ErrMalformedInput, r.StationID)
	case math.IsNaN(r.NbBikes) || math.IsInf(r.NbBikes, 0):
		return fmt.Errorf("%w: station %s: nb_bikes is not finite", ErrMalformedInput, r.StationID)
	case r.NbBikes < 0:
		return fmt.Errorf("%w: station %s: negative nb_bikes %g", ErrMalformedInput, r.StationID, r.NbBikes)
	}
	return nil
}

// Window bounds readings to [Start, End). A zero bound is open.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether ts falls inside the window.
func (w Window) Contains(ts time.Time) bool {
	if !w.Start.IsZero() && ts.Before(w.Start) {
		return false
	}
	if !w.End.IsZero() && !ts.Before(w.End) {
		return false
	}
	return true
}

// FilterWindow returns the readings that fall inside w, preserving order.
func FilterWindow(readings []Reading, w Window) []Reading {
	if w.Start.IsZero() && w.End.IsZero() {
		return readings
	}
	out := make([]Reading, 0, len(readings))
	for _, r := range readings {
		if w.Contains(r.TS) {
			out = append(out, r)
		}
	}
	return out
}
