// Package cluster evaluates encoded representations with k-Means.
package cluster

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// KMeansConfig controls KMeans.
type KMeansConfig struct {
	K int
	// NInit restarts from fresh k-means++ seeds and keeps the lowest inertia.
	NInit   int
	MaxIter int
	// Tol stops Lloyd iterations once centroids move less than this
	// (squared Euclidean, summed over centroids).
	Tol  float64
	Seed uint64
}

// DefaultKMeansConfig uses k=10 with 20 restarts.
func DefaultKMeansConfig() KMeansConfig {
	return KMeansConfig{K: 10, NInit: 20, MaxIter: 300, Tol: 1e-4, Seed: 42}
}

// Result is a fitted clustering.
type Result struct {
	Labels     []int
	Centroids  *mat.Dense
	Inertia    float64
	Iterations int
}

func sqDist(a, b []float64) float64 {
	d := floats.Distance(a, b, 2)
	return d * d
}

// KMeans clusters the rows of x.
func KMeans(x *mat.Dense, cfg KMeansConfig) (*Result, error) {
	n, _ := x.Dims()
	if cfg.K <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", cfg.K)
	}
	if n < cfg.K {
		return nil, fmt.Errorf("%d samples cannot form %d clusters", n, cfg.K)
	}
	if cfg.NInit <= 0 {
		cfg.NInit = 1
	}
	if cfg.MaxIter <= 0 {
		cfg.MaxIter = 300
	}
	rng := rand.New(rand.NewSource(cfg.Seed))

	var best *Result
	for run := 0; run < cfg.NInit; run++ {
		res := lloyd(x, seedPlusPlus(x, cfg.K, rng), cfg)
		if best == nil || res.Inertia < best.Inertia {
			best = res
		}
	}
	return best, nil
}

// seedPlusPlus picks k initial centroids with D² weighting.
func seedPlusPlus(x *mat.Dense, k int, rng *rand.Rand) *mat.Dense {
	n, d := x.Dims()
	centroids := mat.NewDense(k, d, nil)
	centroids.SetRow(0, x.RawRowView(rng.Intn(n)))

	dist := make([]float64, n)
	for i := range dist {
		dist[i] = sqDist(x.RawRowView(i), centroids.RawRowView(0))
	}
	for c := 1; c < k; c++ {
		total := floats.Sum(dist)
		pick := 0
		if total > 0 {
			target := rng.Float64() * total
			for acc := 0.0; pick < n-1; pick++ {
				acc += dist[pick]
				if acc >= target {
					break
				}
			}
		} else {
			pick = rng.Intn(n)
		}
		centroids.SetRow(c, x.RawRowView(pick))
		for i := range dist {
			dist[i] = math.Min(dist[i], sqDist(x.RawRowView(i), centroids.RawRowView(c)))
		}
	}
	return centroids
}

func lloyd(x, centroids *mat.Dense, cfg KMeansConfig) *Result {
	n, d := x.Dims()
	k, _ := centroids.Dims()
	labels := make([]int, n)
	counts := make([]int, k)
	next := mat.NewDense(k, d, nil)

	iter := 0
	for iter < cfg.MaxIter {
		iter++
		assign(x, centroids, labels)

		next.Zero()
		for i := range counts {
			counts[i] = 0
		}
		for i, l := range labels {
			floats.Add(next.RawRowView(l), x.RawRowView(i))
			counts[l]++
		}
		shift := 0.0
		for c := 0; c < k; c++ {
			row := next.RawRowView(c)
			if counts[c] == 0 {
				// empty cluster keeps its centroid
				copy(row, centroids.RawRowView(c))
				continue
			}
			floats.Scale(1/float64(counts[c]), row)
			shift += sqDist(row, centroids.RawRowView(c))
		}
		centroids.Copy(next)
		if shift <= cfg.Tol {
			break
		}
	}
	inertia := assign(x, centroids, labels)
	return &Result{Labels: labels, Centroids: centroids, Inertia: inertia, Iterations: iter}
}

// assign writes the nearest centroid of every row and returns the inertia.
func assign(x, centroids *mat.Dense, labels []int) float64 {
	k, _ := centroids.Dims()
	inertia := 0.0
	for i := range labels {
		row := x.RawRowView(i)
		best, bestD := 0, math.Inf(1)
		for c := 0; c < k; c++ {
			if dd := sqDist(row, centroids.RawRowView(c)); dd < bestD {
				best, bestD = c, dd
			}
		}
		labels[i] = best
		inertia += bestD
	}
	return inertia
}

// Predict assigns each row of x to the nearest fitted centroid.
func (r *Result) Predict(x *mat.Dense) ([]int, error) {
	_, d := x.Dims()
	if _, cd := r.Centroids.Dims(); cd != d {
		return nil, fmt.Errorf("data width %d, centroids %d", d, cd)
	}
	n, _ := x.Dims()
	labels := make([]int, n)
	assign(x, r.Centroids, labels)
	return labels, nil
}
