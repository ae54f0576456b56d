package domain

import (
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// HoursPerDay is the number of rows a fully covered profile has.
const HoursPerDay = 24

// Reasons a station is left out of a profile.
const (
	DropInactive          = "inactive"
	DropNoWeekdayCoverage = "no weekday coverage"
)

// ProfileOptions tunes BuildProfile. The zero value resamples on a 5-minute
// grid and reads weekday and hour in each timestamp's own location.
type ProfileOptions struct {
	Period   time.Duration
	Location *time.Location
}

func (o ProfileOptions) period() time.Duration {
	if o.Period <= 0 {
		return DefaultResamplePeriod
	}
	return o.Period
}

// DroppedStation records a station excluded from the profile and why.
type DroppedStation struct {
	StationID string `json:"station_id"`
	Reason    string `json:"reason"`
}

// Profile is the normalized daily availability matrix: one row per hour of day
// present in the data, one column per station.
type Profile struct {
	Hours    []int
	Stations []string
	Values   *mat.Dense
	Dropped  []DroppedStation
}

// Column returns a copy of a station's hourly profile, or nil if the station
// is not part of the matrix.
func (p Profile) Column(stationID string) []float64 {
	j := sort.SearchStrings(p.Stations, stationID)
	if j == len(p.Stations) || p.Stations[j] != stationID {
		return nil
	}
	return mat.Col(nil, j, p.Values)
}

// StationVectors returns the transposed matrix: one row per station.
func (p Profile) StationVectors() *mat.Dense {
	return mat.DenseCopyOf(p.Values.T())
}

// hourAccumulator holds the pivoted weekday sums and counts for one station,
// indexed by hour of day.
type hourAccumulator struct {
	sum   [HoursPerDay]float64
	count [HoursPerDay]int
}

// BuildProfile turns raw readings into the normalized daily profile matrix.
//
// Stations whose bike count never rises above zero are dropped, each remaining
// station is resampled and backward-filled, weekend buckets are discarded, the
// rest are averaged per hour of day and every column is divided by its maximum.
// Readings may arrive in any order; the output columns are sorted by station id.
func BuildProfile(readings []Reading, opts ProfileOptions) (Profile, error) {
	if err := ValidateReadings(readings); err != nil {
		return Profile{}, err
	}
	if len(readings) == 0 {
		return Profile{}, fmt.Errorf("%w: no readings", ErrEmptyProfile)
	}

	byStation := groupByStation(readings, opts.Location)
	stations := make([]string, 0, len(byStation))
	for id := range byStation {
		stations = append(stations, id)
	}
	sort.Strings(stations)

	var dropped []DroppedStation
	active := make([]string, 0, len(stations))
	accs := make([]hourAccumulator, 0, len(stations))
	for _, id := range stations {
		rs := byStation[id]
		if maxBikes(rs) == 0 {
			dropped = append(dropped, DroppedStation{StationID: id, Reason: DropInactive})
			continue
		}
		// groupByStation never yields an empty group, so the last bucket always
		// holds a reading and the backfilled series has no gaps.
		s, _ := resample(rs, opts.period())
		acc := accumulateWeekdayHours(s)
		if acc.empty() {
			dropped = append(dropped, DroppedStation{StationID: id, Reason: DropNoWeekdayCoverage})
			continue
		}
		active = append(active, id)
		accs = append(accs, acc)
	}

	if len(active) == 0 {
		return Profile{Dropped: dropped}, fmt.Errorf("%w: no active station with weekday coverage", ErrEmptyProfile)
	}

	hours := coveredHours(accs)
	values := mat.NewDense(len(hours), len(active), nil)
	col := make([]float64, len(hours))
	for j := range accs {
		hourlyMeans(&accs[j], hours, col)
		normalize(col)
		values.SetCol(j, col)
	}

	return Profile{Hours: hours, Stations: active, Values: values, Dropped: dropped}, nil
}

func groupByStation(readings []Reading, loc *time.Location) map[string][]Reading {
	out := make(map[string][]Reading)
	for _, r := range readings {
		if loc != nil {
			r.TS = r.TS.In(loc)
		}
		out[r.StationID] = append(out[r.StationID], r)
	}
	return out
}

func maxBikes(readings []Reading) float64 {
	m := 0.0
	for _, r := range readings {
		if r.NbBikes > m {
			m = r.NbBikes
		}
	}
	return m
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func accumulateWeekdayHours(s series) hourAccumulator {
	var acc hourAccumulator
	for i, v := range s.values {
		t := s.at(i)
		if isWeekend(t) {
			continue
		}
		h := t.Hour()
		acc.sum[h] += v
		acc.count[h]++
	}
	return acc
}

func (a *hourAccumulator) empty() bool {
	for _, c := range a.count {
		if c > 0 {
			return false
		}
	}
	return true
}

// coveredHours lists, in ascending order, every hour at least one station has data for.
func coveredHours(accs []hourAccumulator) []int {
	var hours []int
	for h := 0; h < HoursPerDay; h++ {
		for i := range accs {
			if accs[i].count[h] > 0 {
				hours = append(hours, h)
				break
			}
		}
	}
	return hours
}

// hourlyMeans writes the station's mean for each hour in hours into dst. An
// hour the station has no data for takes the mean of the next covered hour,
// wrapping past midnight, so the column never carries a missing value.
func hourlyMeans(acc *hourAccumulator, hours []int, dst []float64) {
	for i, h := range hours {
		for k := 0; k < HoursPerDay; k++ {
			hh := (h + k) % HoursPerDay
			if acc.count[hh] > 0 {
				dst[i] = acc.sum[hh] / float64(acc.count[hh])
				break
			}
		}
	}
}

// normalize divides col by its maximum so the peak is exactly 1. An all-zero
// column is left as is.
func normalize(col []float64) {
	if len(col) == 0 {
		return
	}
	m := floats.Max(col)
	if m <= 0 {
		return
	}
	for i := range col {
		col[i] /= m
	}
}
