package domain

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"
)

// DefaultClusterCount is the number of clusters requested when none is configured.
const DefaultClusterCount = 4

// ClusterOptions groups the profile and k-means settings of a clustering run.
type ClusterOptions struct {
	Profile ProfileOptions
	KMeans  KMeansOptions
}

// StationLabel assigns a station to a cluster.
type StationLabel struct {
	StationID string `json:"id_station"`
	Label     int    `json:"labels"`
}

// Clustering is the outcome of ComputeClusters.
type Clustering struct {
	Labels     []StationLabel
	Hours      []int      // feature order of each centroid row
	Centroids  *mat.Dense // one row per cluster label
	Inertia    float64
	Iterations int
	Profile    Profile
}

// ClusterCount returns the number of centroid rows.
func (c Clustering) ClusterCount() int {
	if c.Centroids == nil {
		return 0
	}
	r, _ := c.Centroids.Dims()
	return r
}

// Centroid returns a copy of the centroid for the given label.
func (c Clustering) Centroid(label int) []float64 {
	return mat.Row(nil, label, c.Centroids)
}

// LabelOf returns the cluster a station was assigned to.
func (c Clustering) LabelOf(stationID string) (int, bool) {
	for _, l := range c.Labels {
		if l.StationID == stationID {
			return l.Label, true
		}
	}
	return 0, false
}

// ClusterRun is a clustering stamped with the run that produced it.
type ClusterRun struct {
	RunID      string
	ComputedAt time.Time
	Clustering
}

// ComputeClusters builds the station profile and partitions it into
// nClusters groups using the default k-means settings.
func ComputeClusters(readings []Reading, nClusters int) (Clustering, error) {
	return ComputeClustersWithOptions(readings, nClusters, ClusterOptions{KMeans: DefaultKMeansOptions()})
}

// ComputeClustersWithOptions is ComputeClusters with explicit settings.
func ComputeClustersWithOptions(readings []Reading, nClusters int, opts ClusterOptions) (Clustering, error) {
	if nClusters <= 0 {
		return Clustering{}, fmt.Errorf("%w: %d must be positive", ErrInvalidClusterCount, nClusters)
	}

	profile, err := BuildProfile(readings, opts.Profile)
	if err != nil {
		return Clustering{}, err
	}
	if nClusters > len(profile.Stations) {
		return Clustering{}, fmt.Errorf("%w: %d exceeds %d profiled stations",
			ErrInvalidClusterCount, nClusters, len(profile.Stations))
	}

	res := kmeans(profile.StationVectors(), nClusters, opts.KMeans)

	labels := make([]StationLabel, len(profile.Stations))
	for i, id := range profile.Stations {
		labels[i] = StationLabel{StationID: id, Label: res.labels[i]}
	}
	centroids := mat.NewDense(nClusters, len(profile.Hours), nil)
	for c, row := range res.centroids {
		centroids.SetRow(c, row)
	}

	return Clustering{
		Labels:     labels,
		Hours:      profile.Hours,
		Centroids:  centroids,
		Inertia:    res.inertia,
		Iterations: res.iterations,
		Profile:    profile,
	}, nil
}
