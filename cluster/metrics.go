package cluster

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ConfusionMatrix counts samples per (true label, predicted cluster). It has
// nTrue rows and nPred columns.
func ConfusionMatrix(truth, pred []int, nTrue, nPred int) (*mat.Dense, error) {
	if len(truth) != len(pred) {
		return nil, fmt.Errorf("%d labels vs %d predictions", len(truth), len(pred))
	}
	cm := mat.NewDense(nTrue, nPred, nil)
	for i := range truth {
		t, p := truth[i], pred[i]
		if t < 0 || t >= nTrue || p < 0 || p >= nPred {
			return nil, fmt.Errorf("sample %d: label %d / cluster %d out of range", i, t, p)
		}
		cm.Set(t, p, cm.At(t, p)+1)
	}
	return cm, nil
}

func maxLabel(xs []int) int {
	m := -1
	for _, x := range xs {
		if x > m {
			m = x
		}
	}
	return m
}

// Accuracy is the fraction of samples whose cluster maps to their label under
// the best one-to-one cluster→label assignment. It also returns that mapping
// (cluster → label; -1 for clusters left unassigned).
func Accuracy(truth, pred []int) (float64, []int, error) {
	if len(truth) == 0 {
		return 0, nil, fmt.Errorf("no samples")
	}
	n := maxLabel(truth) + 1
	if m := maxLabel(pred) + 1; m > n {
		n = m
	}
	cm, err := ConfusionMatrix(truth, pred, n, n)
	if err != nil {
		return 0, nil, err
	}
	// maximise matches: cost[cluster][label] = max - count
	top := mat.Max(cm)
	cost := make([][]float64, n)
	for c := 0; c < n; c++ {
		cost[c] = make([]float64, n)
		for l := 0; l < n; l++ {
			cost[c][l] = top - cm.At(l, c)
		}
	}
	mapping := Hungarian(cost)
	hits := 0.0
	for c, l := range mapping {
		if l >= 0 {
			hits += cm.At(l, c)
		}
	}
	return hits / float64(len(truth)), mapping, nil
}

// AlignedConfusion reorders the columns of a label×cluster confusion matrix
// so that column j holds the cluster mapped to label j.
func AlignedConfusion(cm *mat.Dense, mapping []int) *mat.Dense {
	r, c := cm.Dims()
	out := mat.NewDense(r, c, nil)
	col := make([]float64, r)
	for cluster, label := range mapping {
		if label < 0 || label >= c || cluster >= c {
			continue
		}
		mat.Col(col, cluster, cm)
		out.SetCol(label, col)
	}
	return out
}

// Purity is the fraction of samples belonging to the majority label of their
// cluster.
func Purity(cm *mat.Dense) float64 {
	r, c := cm.Dims()
	col := make([]float64, r)
	hits, total := 0.0, 0.0
	for j := 0; j < c; j++ {
		mat.Col(col, j, cm)
		hits += floats.Max(col)
		total += floats.Sum(col)
	}
	if total == 0 {
		return 0
	}
	return hits / total
}

// Hungarian solves the rectangular assignment problem minimising total cost.
// It returns, for every row, the assigned column or -1.
func Hungarian(cost [][]float64) []int {
	rows := len(cost)
	if rows == 0 {
		return nil
	}
	cols := len(cost[0])
	n := rows
	if cols > n {
		n = cols
	}
	at := func(i, j int) float64 {
		if i < rows && j < cols {
			return cost[i][j]
		}
		return 0
	}

	// potentials and matching are 1-indexed; p[j] is the row matched to column j
	u := make([]float64, n+1)
	v := make([]float64, n+1)
	p := make([]int, n+1)
	way := make([]int, n+1)
	for i := 1; i <= n; i++ {
		p[0] = i
		j0 := 0
		minv := make([]float64, n+1)
		used := make([]bool, n+1)
		for j := range minv {
			minv[j] = math.Inf(1)
		}
		for {
			used[j0] = true
			i0, delta, j1 := p[j0], math.Inf(1), 0
			for j := 1; j <= n; j++ {
				if used[j] {
					continue
				}
				cur := at(i0-1, j-1) - u[i0] - v[j]
				if cur < minv[j] {
					minv[j], way[j] = cur, j0
				}
				if minv[j] < delta {
					delta, j1 = minv[j], j
				}
			}
			for j := 0; j <= n; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if p[j0] == 0 {
				break
			}
		}
		for j0 != 0 {
			j1 := way[j0]
			p[j0] = p[j1]
			j0 = j1
		}
	}

	assignment := make([]int, rows)
	for i := range assignment {
		assignment[i] = -1
	}
	for j := 1; j <= n; j++ {
		if i := p[j] - 1; i >= 0 && i < rows && j-1 < cols {
			assignment[i] = j - 1
		}
	}
	return assignment
}
