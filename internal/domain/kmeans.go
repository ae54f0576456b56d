package domain

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// KMeansOptions controls the k-means search. Identical options and input
// always give identical results.
type KMeansOptions struct {
	Seed      uint64
	NInit     int     // independent k-means++ initializations, best inertia wins
	MaxIter   int     // Lloyd iterations per initialization
	Tolerance float64 // relative to the mean feature variance
}

// DefaultKMeansOptions returns seed 0, 10 initializations, 300 iterations and
// a 1e-4 relative tolerance.
func DefaultKMeansOptions() KMeansOptions {
	return KMeansOptions{Seed: 0, NInit: 10, MaxIter: 300, Tolerance: 1e-4}
}

func (o KMeansOptions) withDefaults() KMeansOptions {
	d := DefaultKMeansOptions()
	if o.NInit <= 0 {
		o.NInit = d.NInit
	}
	if o.MaxIter <= 0 {
		o.MaxIter = d.MaxIter
	}
	if o.Tolerance < 0 {
		o.Tolerance = d.Tolerance
	}
	return o
}

type kmeansResult struct {
	labels     []int
	centroids  [][]float64
	inertia    float64
	iterations int
}

// kmeans partitions the rows of x into k clusters. k must be in [1, rows].
func kmeans(x *mat.Dense, k int, opts KMeansOptions) kmeansResult {
	opts = opts.withDefaults()
	n, _ := x.Dims()
	points := make([][]float64, n)
	for i := range points {
		points[i] = x.RawRowView(i)
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed))
	tol := opts.Tolerance * meanVariance(x)

	var best kmeansResult
	for run := 0; run < opts.NInit; run++ {
		centers := seedPlusPlus(points, k, rng)
		res := lloyd(points, centers, opts.MaxIter, tol)
		if run == 0 || res.inertia < best.inertia {
			best = res
		}
	}
	return best
}

func meanVariance(x *mat.Dense) float64 {
	r, c := x.Dims()
	var sum float64
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, x)
		_, v := stat.PopMeanVariance(col, nil)
		sum += v
	}
	return sum / float64(c)
}

// seedPlusPlus picks k starting centers with k-means++: the first uniformly,
// each next one with probability proportional to its squared distance to the
// nearest center already chosen.
func seedPlusPlus(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(points)
	centers := make([][]float64, 0, k)
	centers = append(centers, clone(points[rng.IntN(n)]))

	d2 := make([]float64, n)
	for i, p := range points {
		d2[i] = sqDist(p, centers[0])
	}
	for len(centers) < k {
		idx := pickWeighted(d2, rng)
		c := clone(points[idx])
		centers = append(centers, c)
		for i, p := range points {
			if d := sqDist(p, c); d < d2[i] {
				d2[i] = d
			}
		}
	}
	return centers
}

// pickWeighted draws an index with probability proportional to its weight,
// or uniformly when every weight is zero.
func pickWeighted(weights []float64, rng *rand.Rand) int {
	total := floats.Sum(weights)
	if total <= 0 {
		return rng.IntN(len(weights))
	}
	r := rng.Float64() * total
	last := 0
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		last = i
		r -= w
		if r < 0 {
			return i
		}
	}
	return last
}

// lloyd alternates assignment and update steps until the total squared
// center shift drops to tol or maxIter is reached.
func lloyd(points, centers [][]float64, maxIter int, tol float64) kmeansResult {
	labels := make([]int, len(points))
	iter := 0
	for iter < maxIter {
		iter++
		assign(points, centers, labels)
		next := updateCenters(points, centers, labels)
		shift := 0.0
		for c := range centers {
			shift += sqDist(centers[c], next[c])
		}
		centers = next
		if shift <= tol {
			break
		}
	}

	assign(points, centers, labels)
	centers, _ = memberMeans(points, centers, labels)
	inertia := 0.0
	for i, p := range points {
		inertia += sqDist(p, centers[labels[i]])
	}
	return kmeansResult{labels: labels, centroids: centers, inertia: inertia, iterations: iter}
}

// assign sets labels[i] to the nearest center; ties go to the lowest index.
func assign(points, centers [][]float64, labels []int) {
	for i, p := range points {
		bestC, bestD := 0, math.Inf(1)
		for c, center := range centers {
			if d := sqDist(p, center); d < bestD {
				bestC, bestD = c, d
			}
		}
		labels[i] = bestC
	}
}

// updateCenters returns the mean of each cluster's members. An empty cluster
// is moved onto the point farthest from its assigned center.
func updateCenters(points, centers [][]float64, labels []int) [][]float64 {
	next, counts := memberMeans(points, centers, labels)
	taken := make(map[int]bool)
	for c := range next {
		if counts[c] > 0 {
			continue
		}
		if far := farthestPoint(points, centers, labels, taken); far >= 0 {
			taken[far] = true
			copy(next[c], points[far])
		}
	}
	return next
}

// memberMeans averages the points assigned to each center. Empty clusters
// keep their current center.
func memberMeans(points, centers [][]float64, labels []int) ([][]float64, []int) {
	dim := len(centers[0])
	means := make([][]float64, len(centers))
	counts := make([]int, len(centers))
	for c := range means {
		means[c] = make([]float64, dim)
	}
	for i, p := range points {
		floats.Add(means[labels[i]], p)
		counts[labels[i]]++
	}
	for c := range means {
		if counts[c] == 0 {
			copy(means[c], centers[c])
			continue
		}
		for j := range means[c] {
			means[c][j] /= float64(counts[c])
		}
	}
	return means, counts
}

func farthestPoint(points, centers [][]float64, labels []int, taken map[int]bool) int {
	idx, maxD := -1, 0.0
	for i, p := range points {
		if taken[i] {
			continue
		}
		if d := sqDist(p, centers[labels[i]]); d > maxD {
			idx, maxD = i, d
		}
	}
	return idx
}

func sqDist(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

func clone(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
