package domain

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestKMeans_SeparatedGroups(t *testing.T) {
	x := mat.NewDense(4, 2, []float64{
		0, 0,
		0, 1,
		10, 10,
		10, 11,
	})

	res := kmeans(x, 2, DefaultKMeansOptions())

	require.Len(t, res.labels, 4)
	assert.Equal(t, res.labels[0], res.labels[1])
	assert.Equal(t, res.labels[2], res.labels[3])
	assert.NotEqual(t, res.labels[0], res.labels[2])
	assert.InDelta(t, 1.0, res.inertia, 1e-12)
	assert.Equal(t, []float64{0, 0.5}, res.centroids[res.labels[0]])
	assert.Equal(t, []float64{10, 10.5}, res.centroids[res.labels[2]])
}

func TestKMeans_SingleCluster(t *testing.T) {
	x := mat.NewDense(3, 1, []float64{1, 2, 6})

	res := kmeans(x, 1, DefaultKMeansOptions())

	assert.Equal(t, []int{0, 0, 0}, res.labels)
	assert.Equal(t, []float64{3}, res.centroids[0])
}

func TestKMeans_OneClusterPerPoint(t *testing.T) {
	x := mat.NewDense(3, 2, []float64{0, 0, 1, 0, 0, 1})

	res := kmeans(x, 3, DefaultKMeansOptions())

	assert.ElementsMatch(t, []int{0, 1, 2}, res.labels)
	assert.InDelta(t, 0.0, res.inertia, 1e-12)
}

func TestSeedPlusPlus_DuplicatePoints(t *testing.T) {
	points := [][]float64{{1, 1}, {1, 1}, {1, 1}}
	rng := rand.New(rand.NewPCG(0, 0))

	centers := seedPlusPlus(points, 3, rng)

	require.Len(t, centers, 3)
	for _, c := range centers {
		assert.Equal(t, []float64{1, 1}, c)
	}
}

func TestKMeans_Deterministic(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 7))
	data := make([]float64, 40*3)
	for i := range data {
		data[i] = rng.Float64()
	}
	x := mat.NewDense(40, 3, data)

	a := kmeans(x, 4, KMeansOptions{Seed: 3})
	b := kmeans(x, 4, KMeansOptions{Seed: 3})

	assert.Equal(t, a.labels, b.labels)
	assert.Equal(t, a.centroids, b.centroids)
	assert.Equal(t, a.inertia, b.inertia)
}

func TestKMeansOptions_WithDefaults(t *testing.T) {
	got := KMeansOptions{Seed: 9}.withDefaults()
	assert.Equal(t, KMeansOptions{Seed: 9, NInit: 10, MaxIter: 300, Tolerance: 0}, got)

	got = KMeansOptions{NInit: 2, MaxIter: 5, Tolerance: -1}.withDefaults()
	assert.Equal(t, KMeansOptions{NInit: 2, MaxIter: 5, Tolerance: 1e-4}, got)
}
