// Package data holds in-memory datasets and mini-batch iteration.
package data

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// Dataset is a matrix of samples (one per row) with optional integer labels.
type Dataset struct {
	X      *mat.Dense
	Labels []int
}

// New checks that labels, when present, cover every row.
func New(x *mat.Dense, labels []int) (*Dataset, error) {
	r, _ := x.Dims()
	if labels != nil && len(labels) != r {
		return nil, fmt.Errorf("%d labels for %d samples", len(labels), r)
	}
	return &Dataset{X: x, Labels: labels}, nil
}

// Len is the number of samples.
func (d *Dataset) Len() int {
	r, _ := d.X.Dims()
	return r
}

// Dim is the sample width.
func (d *Dataset) Dim() int {
	_, c := d.X.Dims()
	return c
}

// Head returns a view of the first n samples (all if n<=0 or n>Len).
func (d *Dataset) Head(n int) *Dataset {
	if n <= 0 || n >= d.Len() {
		return d
	}
	out := &Dataset{X: d.X.Slice(0, n, 0, d.Dim()).(*mat.Dense)}
	if d.Labels != nil {
		out.Labels = d.Labels[:n]
	}
	return out
}

// Rows gathers the given rows into a new matrix.
func (d *Dataset) Rows(idx []int) *mat.Dense {
	m := mat.NewDense(len(idx), d.Dim(), nil)
	for i, k := range idx {
		m.SetRow(i, d.X.RawRowView(k))
	}
	return m
}

// Map runs fn over sequential batches and stacks the results into a new
// dataset that keeps the labels.
func (d *Dataset) Map(batchSize int, fn func(*mat.Dense) (*mat.Dense, error)) (*Dataset, error) {
	var out *mat.Dense
	it := NewBatchIterator(d, batchSize, nil)
	row := 0
	for it.Next() {
		y, err := fn(it.Batch())
		if err != nil {
			return nil, err
		}
		n, c := y.Dims()
		if out == nil {
			out = mat.NewDense(d.Len(), c, nil)
		}
		out.Slice(row, row+n, 0, c).(*mat.Dense).Copy(y)
		row += n
	}
	if out == nil {
		return nil, fmt.Errorf("map over empty dataset")
	}
	return &Dataset{X: out, Labels: d.Labels}, nil
}

// BatchIterator walks a dataset in mini-batches. With a random generator the
// order is reshuffled once per iterator; without one it is sequential.
type BatchIterator struct {
	ds        *Dataset
	batchSize int
	order     []int
	pos       int
	cur       []int
}

// NewBatchIterator prepares one pass over ds. batchSize<=0 means full batch.
func NewBatchIterator(ds *Dataset, batchSize int, rng *rand.Rand) *BatchIterator {
	n := ds.Len()
	if batchSize <= 0 || batchSize > n {
		batchSize = n
	}
	var order []int
	if rng != nil {
		order = rng.Perm(n)
	} else {
		order = make([]int, n)
		for i := range order {
			order[i] = i
		}
	}
	return &BatchIterator{ds: ds, batchSize: batchSize, order: order}
}

// Next advances to the next batch; the last batch may be short.
func (it *BatchIterator) Next() bool {
	if it.pos >= len(it.order) {
		return false
	}
	end := it.pos + it.batchSize
	if end > len(it.order) {
		end = len(it.order)
	}
	it.cur = it.order[it.pos:end]
	it.pos = end
	return true
}

// Indices are the dataset rows of the current batch.
func (it *BatchIterator) Indices() []int { return it.cur }

// Batch gathers the current batch.
func (it *BatchIterator) Batch() *mat.Dense { return it.ds.Rows(it.cur) }
