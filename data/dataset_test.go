package data

import (
	"testing"

	"github.com/petar/GoMNIST"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

func sequential(n, d int) *Dataset {
	x := mat.NewDense(n, d, nil)
	labels := make([]int, n)
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			x.Set(i, j, float64(i*d+j))
		}
		labels[i] = i % 3
	}
	ds, _ := New(x, labels)
	return ds
}

func TestNewRejectsLabelMismatch(t *testing.T) {
	if _, err := New(mat.NewDense(3, 2, nil), []int{1}); err == nil {
		t.Fatal("expected label count error")
	}
	ds, err := New(mat.NewDense(3, 2, nil), nil)
	if err != nil {
		t.Fatal(err)
	}
	if ds.Len() != 3 || ds.Dim() != 2 {
		t.Errorf("dataset is %dx%d", ds.Len(), ds.Dim())
	}
}

func TestBatchIteratorCoversEverySample(t *testing.T) {
	ds := sequential(10, 2)
	it := NewBatchIterator(ds, 3, rand.New(rand.NewSource(1)))
	seen := make(map[int]bool)
	var sizes []int
	for it.Next() {
		sizes = append(sizes, len(it.Indices()))
		b := it.Batch()
		for k, idx := range it.Indices() {
			if seen[idx] {
				t.Fatalf("row %d visited twice", idx)
			}
			seen[idx] = true
			if b.At(k, 0) != ds.X.At(idx, 0) {
				t.Fatalf("batch row %d does not match dataset row %d", k, idx)
			}
		}
	}
	if len(seen) != 10 {
		t.Errorf("visited %d rows, want 10", len(seen))
	}
	want := []int{3, 3, 3, 1}
	for i := range want {
		if sizes[i] != want[i] {
			t.Fatalf("batch sizes %v, want %v", sizes, want)
		}
	}
}

func TestBatchIteratorDeterministic(t *testing.T) {
	ds := sequential(20, 1)
	order := func(seed uint64) []int {
		it := NewBatchIterator(ds, 0, rand.New(rand.NewSource(seed)))
		if !it.Next() {
			t.Fatal("no batch")
		}
		if it.Next() {
			t.Fatal("batch size 0 should mean one full batch")
		}
		return append([]int(nil), it.Indices()...)
	}
	a, b := order(7), order(7)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed gave different orders: %v vs %v", a, b)
		}
	}

	seq := NewBatchIterator(ds, 5, nil)
	seq.Next()
	for i, idx := range seq.Indices() {
		if idx != i {
			t.Fatalf("sequential order starts %v", seq.Indices())
		}
	}
}

func TestMapKeepsLabels(t *testing.T) {
	ds := sequential(7, 3)
	out, err := ds.Map(2, func(x *mat.Dense) (*mat.Dense, error) {
		r, _ := x.Dims()
		y := mat.NewDense(r, 1, nil)
		for i := 0; i < r; i++ {
			y.Set(i, 0, mat.Sum(x.RowView(i)))
		}
		return y, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if out.Len() != 7 || out.Dim() != 1 {
		t.Fatalf("mapped dataset is %dx%d", out.Len(), out.Dim())
	}
	for i := 0; i < 7; i++ {
		want := float64(3*i*3 + 3)
		if out.X.At(i, 0) != want {
			t.Errorf("row %d = %f, want %f", i, out.X.At(i, 0), want)
		}
		if out.Labels[i] != ds.Labels[i] {
			t.Errorf("label %d changed", i)
		}
	}
}

func TestHead(t *testing.T) {
	ds := sequential(5, 2)
	h := ds.Head(2)
	if h.Len() != 2 || len(h.Labels) != 2 || h.X.At(1, 1) != 3 {
		t.Errorf("Head(2) = %v", mat.Formatted(h.X))
	}
	if ds.Head(0) != ds || ds.Head(9) != ds {
		t.Error("Head should return the dataset when n is out of range")
	}
}

func TestFromMNISTSet(t *testing.T) {
	set := &GoMNIST.Set{
		NRow:   2,
		NCol:   2,
		Images: []GoMNIST.RawImage{{0, 255, 51, 102}, {255, 255, 0, 0}},
		Labels: []GoMNIST.Label{7, 1},
	}
	ds := fromMNISTSet(set)
	if ds.Len() != 2 || ds.Dim() != 4 {
		t.Fatalf("dataset is %dx%d", ds.Len(), ds.Dim())
	}
	if ds.X.At(0, 1) != 1 || ds.X.At(0, 2) != 0.2 || ds.X.At(1, 3) != 0 {
		t.Errorf("pixels not scaled to [0,1]: %v", mat.Formatted(ds.X))
	}
	if ds.Labels[0] != 7 || ds.Labels[1] != 1 {
		t.Errorf("labels = %v", ds.Labels)
	}
}
